package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"medguard-alert/internal/cache"
	"medguard-alert/internal/config"
	"medguard-alert/internal/domain"
)

func setupHub(t *testing.T) (*cache.ActiveAlertCache, *Hub) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{}
	cfg.Cache.ActiveKeyPrefix = "medguard:hospital:"
	cfg.Cache.ActiveSuffix = ":active"
	cfg.Cache.ActiveTTL = 60

	c := cache.NewActiveAlertCache(cfg, redisClient, zap.NewNop())
	return c, NewHub(c, 100*time.Millisecond, zap.NewNop())
}

func TestHub_RequiresHospitalID(t *testing.T) {
	_, hub := setupHub(t)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHub_BroadcastsSnapshot(t *testing.T) {
	c, hub := setupHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.UpdateActiveAlerts(ctx, "hospital-1", []*domain.Alert{
		{
			AlertID:      "alert-1",
			HospitalID:   "hospital-1",
			RoomNumber:   "302-B",
			AlertType:    domain.AlertTypeCodeBlue,
			UrgencyLevel: 5,
			Status:       domain.AlertStatusActive,
		},
	}))

	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?hospital_id=hospital-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var snapshot Snapshot
	require.NoError(t, conn.ReadJSON(&snapshot))

	assert.Equal(t, "active_alerts", snapshot.Type)
	assert.Equal(t, "hospital-1", snapshot.HospitalID)
	require.Len(t, snapshot.Alerts, 1)
	assert.Equal(t, "alert-1", snapshot.Alerts[0].AlertID)
}

func TestHub_EmptySnapshotForUnknownHospital(t *testing.T) {
	_, hub := setupHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?hospital_id=hospital-x"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var snapshot Snapshot
	require.NoError(t, conn.ReadJSON(&snapshot))

	assert.Equal(t, "hospital-x", snapshot.HospitalID)
	assert.Empty(t, snapshot.Alerts)
}
