package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"medguard-alert/internal/config"
	"medguard-alert/internal/domain"
)

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *ActiveAlertCache) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cfg := &config.Config{}
	cfg.Cache.ActiveKeyPrefix = "medguard:hospital:"
	cfg.Cache.ActiveSuffix = ":active"
	cfg.Cache.ActiveTTL = 60

	logger := zap.NewNop()
	return mr, NewActiveAlertCache(cfg, redisClient, logger)
}

func TestActiveAlertCache_RoundTrip(t *testing.T) {
	_, c := setupTestCache(t)
	ctx := context.Background()

	hospitalID := "hospital-1"
	alerts := []*domain.Alert{
		{
			AlertID:      "alert-1",
			HospitalID:   hospitalID,
			RoomNumber:   "302-B",
			AlertType:    domain.AlertTypeCodeBlue,
			UrgencyLevel: 5,
			Status:       domain.AlertStatusActive,
			CurrentRole:  domain.RoleNurse,
			CreatedAt:    time.Now().UTC(),
		},
		{
			AlertID:      "alert-2",
			HospitalID:   hospitalID,
			RoomNumber:   "117",
			AlertType:    domain.AlertTypeFire,
			UrgencyLevel: 4,
			Status:       domain.AlertStatusActive,
			CurrentRole:  domain.RoleChargeNurse,
			CreatedAt:    time.Now().UTC(),
		},
	}

	require.NoError(t, c.UpdateActiveAlerts(ctx, hospitalID, alerts))

	got, err := c.GetActiveAlerts(ctx, hospitalID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alert-1", got[0].AlertID)
	assert.Equal(t, domain.AlertTypeCodeBlue, got[0].AlertType)
	assert.Equal(t, "alert-2", got[1].AlertID)
}

func TestActiveAlertCache_Miss(t *testing.T) {
	_, c := setupTestCache(t)

	got, err := c.GetActiveAlerts(context.Background(), "hospital-unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestActiveAlertCache_TTL(t *testing.T) {
	mr, c := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.UpdateActiveAlerts(ctx, "hospital-1", []*domain.Alert{{AlertID: "a"}}))

	mr.FastForward(61 * time.Second)

	got, err := c.GetActiveAlerts(ctx, "hospital-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestActiveAlertCache_Invalidate(t *testing.T) {
	_, c := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.UpdateActiveAlerts(ctx, "hospital-1", []*domain.Alert{{AlertID: "a"}}))
	require.NoError(t, c.Invalidate(ctx, "hospital-1"))

	got, err := c.GetActiveAlerts(ctx, "hospital-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestActiveAlertCache_HospitalIDs(t *testing.T) {
	_, c := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.UpdateActiveAlerts(ctx, "hospital-1", []*domain.Alert{}))
	require.NoError(t, c.UpdateActiveAlerts(ctx, "hospital-2", []*domain.Alert{}))

	ids, err := c.HospitalIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hospital-1", "hospital-2"}, ids)
}
