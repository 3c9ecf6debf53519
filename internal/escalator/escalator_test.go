package escalator

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

// fakeAlertsRepo 只实现调度器用到的两个方法，其余 panic 以防误用
type fakeAlertsRepo struct {
	repository.AlertsRepository

	due     []*domain.Alert
	applied []appliedEscalation
}

type appliedEscalation struct {
	alertID  string
	toRole   string
	newLevel int
	deadline *time.Time
}

func (f *fakeAlertsRepo) ListDueForEscalation(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]*domain.Alert, error) {
	return f.due, nil
}

func (f *fakeAlertsRepo) ApplyEscalation(ctx context.Context, tx *sql.Tx, hospitalID, alertID, toRole string, newLevel int, nextEscalationAt *time.Time) error {
	f.applied = append(f.applied, appliedEscalation{
		alertID:  alertID,
		toRole:   toRole,
		newLevel: newLevel,
		deadline: nextEscalationAt,
	})
	return nil
}

type fakeEscalationsRepo struct {
	repository.EscalationsRepository

	created []*domain.AlertEscalation
}

func (f *fakeEscalationsRepo) CreateEscalation(ctx context.Context, tx *sql.Tx, esc *domain.AlertEscalation) error {
	f.created = append(f.created, esc)
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
	alertID    string
	targetRole string
}

type fakeNotifier struct {
	events []dispatched
}

func (f *fakeNotifier) Dispatch(ctx context.Context, event string, alert *domain.Alert, targetRole string) {
	f.events = append(f.events, dispatched{event: event, alertID: alert.AlertID, targetRole: targetRole})
}

func dueAlert(id, currentRole string, level int) *domain.Alert {
	deadline := time.Now().UTC().Add(-time.Minute)
	return &domain.Alert{
		AlertID:          id,
		HospitalID:       "hospital-1",
		RoomNumber:       "302-B",
		AlertType:        domain.AlertTypeCodeBlue,
		UrgencyLevel:     5,
		Status:           domain.AlertStatusActive,
		CreatedBy:        "u1",
		EscalationLevel:  level,
		CurrentRole:      currentRole,
		NextEscalationAt: &deadline,
	}
}

func newTestEscalator(t *testing.T, due []*domain.Alert) (*Escalator, *fakeAlertsRepo, *fakeEscalationsRepo, *fakeAuditRepo, *fakeNotifier, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	alerts := &fakeAlertsRepo{due: due}
	escalations := &fakeEscalationsRepo{}
	audits := &fakeAuditRepo{}
	n := &fakeNotifier{}

	e := NewEscalator(db, alerts, escalations, audits, policy.NewStore(policy.Default()), n, zap.NewNop(), time.Second, 50)
	return e, alerts, escalations, audits, n, mock
}

func TestRunOnce_EscalatesDueAlert(t *testing.T) {
	e, alerts, escalations, audits, n, mock := newTestEscalator(t, []*domain.Alert{
		dueAlert("alert-1", domain.RoleNurse, 0),
	})
	mock.ExpectBegin()
	mock.ExpectCommit()

	count, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, alerts.applied, 1)
	assert.Equal(t, domain.RoleChargeNurse, alerts.applied[0].toRole)
	assert.Equal(t, 1, alerts.applied[0].newLevel)
	require.NotNil(t, alerts.applied[0].deadline)
	// urgency 5 → 60秒超时
	assert.WithinDuration(t, time.Now().UTC().Add(60*time.Second), *alerts.applied[0].deadline, 5*time.Second)

	require.Len(t, escalations.created, 1)
	assert.Equal(t, domain.RoleNurse, escalations.created[0].FromRole)
	assert.Equal(t, domain.RoleChargeNurse, escalations.created[0].ToRole)
	assert.Equal(t, "acknowledgment timeout", escalations.created[0].Reason)

	require.Len(t, audits.created, 1)
	assert.Equal(t, domain.AuditActionAlertEscalated, audits.created[0].Action)
	assert.Equal(t, domain.AuditSeverityWarning, audits.created[0].Severity)
	assert.Nil(t, audits.created[0].UserID)

	require.Len(t, n.events, 1)
	assert.Equal(t, "alert_escalated", n.events[0].event)
	assert.Equal(t, domain.RoleChargeNurse, n.events[0].targetRole)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnce_LadderExhausted(t *testing.T) {
	e, alerts, escalations, audits, n, mock := newTestEscalator(t, []*domain.Alert{
		dueAlert("alert-1", domain.RoleOnCallPhysician, 3),
	})
	mock.ExpectBegin()
	mock.ExpectCommit()

	count, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// 角色和级别不变，仅清除升级时间
	require.Len(t, alerts.applied, 1)
	assert.Equal(t, domain.RoleOnCallPhysician, alerts.applied[0].toRole)
	assert.Equal(t, 3, alerts.applied[0].newLevel)
	assert.Nil(t, alerts.applied[0].deadline)

	assert.Empty(t, escalations.created)
	assert.Empty(t, n.events)

	require.Len(t, audits.created, 1)
	assert.Equal(t, domain.AuditSeverityCritical, audits.created[0].Severity)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnce_NoDueAlerts(t *testing.T) {
	e, alerts, _, audits, n, mock := newTestEscalator(t, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	count, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, alerts.applied)
	assert.Empty(t, audits.created)
	assert.Empty(t, n.events)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnce_MixedBatch(t *testing.T) {
	e, alerts, escalations, _, n, mock := newTestEscalator(t, []*domain.Alert{
		dueAlert("alert-1", domain.RoleNurse, 0),
		dueAlert("alert-2", domain.RoleOnCallPhysician, 3),
		dueAlert("alert-3", domain.RoleChargeNurse, 1),
	})
	mock.ExpectBegin()
	mock.ExpectCommit()

	count, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.Len(t, alerts.applied, 3)
	require.Len(t, escalations.created, 2)
	require.Len(t, n.events, 2)
	assert.Equal(t, "alert-1", n.events[0].alertID)
	assert.Equal(t, "alert-3", n.events[1].alertID)
	assert.Equal(t, domain.RoleDepartmentHead, n.events[1].targetRole)

	assert.NoError(t, mock.ExpectationsWereMet())
}
