package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"medguard-alert/internal/domain"
	"medguard-alert/internal/policy"
	"medguard-alert/internal/repository"
)

// fakeAlertsRepo 内存版报警Repository
type fakeAlertsRepo struct {
	repository.AlertsRepository

	created []*domain.Alert
	stored  *domain.Alert
	ackErr  error
}

func (f *fakeAlertsRepo) CreateAlert(ctx context.Context, hospitalID string, alert *domain.Alert) error {
	f.created = append(f.created, alert)
	return nil
}

func (f *fakeAlertsRepo) GetAlert(ctx context.Context, hospitalID, alertID string) (*domain.Alert, error) {
	if f.stored == nil || f.stored.AlertID != alertID {
		return nil, repository.ErrNotFound
	}
	return f.stored, nil
}

func (f *fakeAlertsRepo) ListAlerts(ctx context.Context, hospitalID string, filters repository.AlertFilters, page, size int) ([]*domain.Alert, int, error) {
	if f.stored == nil {
		return nil, 0, nil
	}
	return []*domain.Alert{f.stored}, 1, nil
}

func (f *fakeAlertsRepo) AcknowledgeAlert(ctx context.Context, tx *sql.Tx, hospitalID, alertID, userID string, at time.Time) (*domain.Alert, error) {
	if f.ackErr != nil {
		return nil, f.ackErr
	}
	updated := *f.stored
	updated.Status = domain.AlertStatusAcknowledged
	updated.AcknowledgedBy = &userID
	updated.AcknowledgedAt = &at
	updated.NextEscalationAt = nil
	return &updated, nil
}

func (f *fakeAlertsRepo) ResolveAlert(ctx context.Context, tx *sql.Tx, hospitalID, alertID, userID string, at time.Time) (*domain.Alert, error) {
	if f.stored == nil {
		return nil, repository.ErrNotFound
	}
	if f.stored.Status == domain.AlertStatusResolved {
		return nil, repository.ErrAlertNotOpen
	}
	updated := *f.stored
	updated.Status = domain.AlertStatusResolved
	updated.ResolvedBy = &userID
	updated.ResolvedAt = &at
	return &updated, nil
}

type fakeAcksRepo struct {
	repository.AcknowledgmentsRepository

	created []*domain.AlertAcknowledgment
}

func (f *fakeAcksRepo) CreateAcknowledgment(ctx context.Context, tx *sql.Tx, ack *domain.AlertAcknowledgment) error {
	f.created = append(f.created, ack)
	return nil
}

type fakeAuditRepo struct {
	repository.AuditLogsRepository

	created []*domain.AuditLog
}

func (f *fakeAuditRepo) CreateAuditLog(ctx context.Context, tx *sql.Tx, log *domain.AuditLog) error {
	f.created = append(f.created, log)
	return nil
}

type dispatched struct {
	event      string
	targetRole string
}

type fakeNotifier struct {
	events []dispatched
}

func (f *fakeNotifier) Dispatch(ctx context.Context, event string, alert *domain.Alert, targetRole string) {
	f.events = append(f.events, dispatched{event: event, targetRole: targetRole})
}

func newTestService(t *testing.T) (*AlertService, *fakeAlertsRepo, *fakeAcksRepo, *fakeAuditRepo, *fakeNotifier, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	alerts := &fakeAlertsRepo{}
	acks := &fakeAcksRepo{}
	audits := &fakeAuditRepo{}
	n := &fakeNotifier{}

	svc := NewAlertService(db, alerts, acks, nil, audits, policy.NewStore(policy.Default()), n, nil, zap.NewNop())
	return svc, alerts, acks, audits, n, mock
}

func TestCreateAlert_Success(t *testing.T) {
	svc, alerts, _, audits, n, _ := newTestService(t)

	alert, err := svc.CreateAlert(context.Background(), "hospital-1", CreateAlertInput{
		RoomNumber:   "302-B",
		AlertType:    domain.AlertTypeCodeBlue,
		UrgencyLevel: 5,
		CreatedBy:    "u1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, alert.AlertID)
	assert.Equal(t, domain.AlertStatusActive, alert.Status)
	assert.Equal(t, domain.RoleNurse, alert.CurrentRole)
	assert.Equal(t, 0, alert.EscalationLevel)
	// urgency 5 → 60秒确认超时
	require.NotNil(t, alert.NextEscalationAt)
	assert.WithinDuration(t, time.Now().UTC().Add(60*time.Second), *alert.NextEscalationAt, 5*time.Second)

	require.Len(t, alerts.created, 1)
	require.Len(t, audits.created, 1)
	assert.Equal(t, domain.AuditActionAlertCreated, audits.created[0].Action)
	require.Len(t, n.events, 1)
	assert.Equal(t, "alert_created", n.events[0].event)
	assert.Equal(t, domain.RoleNurse, n.events[0].targetRole)
}

func TestCreateAlert_Validation(t *testing.T) {
	svc, _, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAlert(ctx, "", CreateAlertInput{RoomNumber: "1", AlertType: domain.AlertTypeFire, UrgencyLevel: 3, CreatedBy: "u1"})
	assert.ErrorContains(t, err, "hospital_id is required")

	_, err = svc.CreateAlert(ctx, "hospital-1", CreateAlertInput{AlertType: domain.AlertTypeFire, UrgencyLevel: 3, CreatedBy: "u1"})
	assert.ErrorContains(t, err, "room_number is required")

	_, err = svc.CreateAlert(ctx, "hospital-1", CreateAlertInput{RoomNumber: "1", AlertType: "earthquake", UrgencyLevel: 3, CreatedBy: "u1"})
	assert.ErrorContains(t, err, "invalid alert_type")

	_, err = svc.CreateAlert(ctx, "hospital-1", CreateAlertInput{RoomNumber: "1", AlertType: domain.AlertTypeFire, UrgencyLevel: 6, CreatedBy: "u1"})
	assert.ErrorContains(t, err, "urgency_level must be between 1 and 5")

	_, err = svc.CreateAlert(ctx, "hospital-1", CreateAlertInput{RoomNumber: "1", AlertType: domain.AlertTypeFire, UrgencyLevel: 3})
	assert.ErrorContains(t, err, "created_by is required")
}

func TestAcknowledgeAlert_Success(t *testing.T) {
	svc, alerts, acks, audits, n, mock := newTestService(t)

	createdAt := time.Now().UTC().Add(-90 * time.Second)
	alerts.stored = &domain.Alert{
		AlertID:      "alert-1",
		HospitalID:   "hospital-1",
		AlertType:    domain.AlertTypeCodeBlue,
		UrgencyLevel: 5,
		Status:       domain.AlertStatusActive,
		CurrentRole:  domain.RoleNurse,
		CreatedAt:    createdAt,
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	alert, ack, err := svc.AcknowledgeAlert(context.Background(), "hospital-1", "alert-1", AcknowledgeInput{UserID: "u2"})
	require.NoError(t, err)

	assert.Equal(t, domain.AlertStatusAcknowledged, alert.Status)
	assert.Nil(t, alert.NextEscalationAt)

	require.Len(t, acks.created, 1)
	assert.Equal(t, "u2", ack.UserID)
	// 90秒前创建的报警，响应时间约 90秒
	assert.InDelta(t, 90, ack.ResponseTimeSeconds, 5)

	require.Len(t, audits.created, 1)
	assert.Equal(t, domain.AuditActionAlertAcknowledged, audits.created[0].Action)

	require.Len(t, n.events, 1)
	assert.Equal(t, "alert_acknowledged", n.events[0].event)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeAlert_AlreadyAcknowledged(t *testing.T) {
	svc, alerts, acks, _, n, mock := newTestService(t)

	alerts.ackErr = repository.ErrAlertNotActive
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, _, err := svc.AcknowledgeAlert(context.Background(), "hospital-1", "alert-1", AcknowledgeInput{UserID: "u2"})
	assert.ErrorIs(t, err, repository.ErrAlertNotActive)
	assert.Empty(t, acks.created)
	assert.Empty(t, n.events)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveAlert_Success(t *testing.T) {
	svc, alerts, _, audits, n, mock := newTestService(t)

	alerts.stored = &domain.Alert{
		AlertID:     "alert-1",
		HospitalID:  "hospital-1",
		Status:      domain.AlertStatusAcknowledged,
		CurrentRole: domain.RoleNurse,
		CreatedAt:   time.Now().UTC(),
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	alert, err := svc.ResolveAlert(context.Background(), "hospital-1", "alert-1", "u3")
	require.NoError(t, err)

	assert.Equal(t, domain.AlertStatusResolved, alert.Status)
	require.Len(t, audits.created, 1)
	assert.Equal(t, domain.AuditActionAlertResolved, audits.created[0].Action)
	require.Len(t, n.events, 1)
	assert.Equal(t, "alert_resolved", n.events[0].event)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveAlert_AlreadyResolved(t *testing.T) {
	svc, alerts, _, _, _, mock := newTestService(t)

	alerts.stored = &domain.Alert{
		AlertID:    "alert-1",
		HospitalID: "hospital-1",
		Status:     domain.AlertStatusResolved,
	}
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.ResolveAlert(context.Background(), "hospital-1", "alert-1", "u3")
	assert.ErrorIs(t, err, repository.ErrAlertNotOpen)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAlert_NotFound(t *testing.T) {
	svc, _, _, _, _, _ := newTestService(t)

	_, err := svc.GetAlert(context.Background(), "hospital-1", "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListAlerts_RequiresHospitalID(t *testing.T) {
	svc, _, _, _, _, _ := newTestService(t)

	_, _, err := svc.ListAlerts(context.Background(), "", repository.AlertFilters{}, 1, 20)
	assert.ErrorContains(t, err, "hospital_id is required")
}
