package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"medguard-alert/internal/domain"
)

func setupMockAlertsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresAlertsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresAlertsRepository(db)

	return db, mock, repo
}

func alertRows(alertID, hospitalID string, status string, createdAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"alert_id", "hospital_id", "room_number", "alert_type", "urgency_level",
		"description", "status", "created_by", "acknowledged_by", "acknowledged_at",
		"resolved_by", "resolved_at", "escalation_level", "current_role_name",
		"next_escalation_at", "created_at", "updated_at",
	}).AddRow(
		alertID, hospitalID, "302-B", "code_blue", 5,
		nil, status, uuid.New().String(), nil, nil,
		nil, nil, 0, "nurse",
		createdAt.Add(3*time.Minute), createdAt, createdAt,
	)
}

// ============================================
// 基础 CRUD 操作测试
// ============================================

func TestGetAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	hospitalID := uuid.New().String()
	alertID := uuid.New().String()
	createdAt := time.Now()

	mock.ExpectQuery(`SELECT`).
		WithArgs(alertID, hospitalID).
		WillReturnRows(alertRows(alertID, hospitalID, "active", createdAt))

	alert, err := repo.GetAlert(ctx, hospitalID, alertID)

	require.NoError(t, err)
	assert.NotNil(t, alert)
	assert.Equal(t, alertID, alert.AlertID)
	assert.Equal(t, hospitalID, alert.HospitalID)
	assert.Equal(t, "302-B", alert.RoomNumber)
	assert.Equal(t, "code_blue", alert.AlertType)
	assert.Equal(t, 5, alert.UrgencyLevel)
	assert.Equal(t, "active", alert.Status)
	assert.Equal(t, "nurse", alert.CurrentRole)
	assert.NotNil(t, alert.NextEscalationAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAlert_NotFound(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	hospitalID := uuid.New().String()
	alertID := uuid.New().String()

	mock.ExpectQuery(`SELECT`).
		WithArgs(alertID, hospitalID).
		WillReturnError(sql.ErrNoRows)

	alert, err := repo.GetAlert(ctx, hospitalID, alertID)

	assert.Error(t, err)
	assert.Nil(t, alert)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAlert_InvalidHospitalID(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()

	alert, err := repo.GetAlert(ctx, "", uuid.New().String())

	assert.Error(t, err)
	assert.Nil(t, alert)
	assert.Contains(t, err.Error(), "hospital_id is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	hospitalID := uuid.New().String()
	next := time.Now().Add(3 * time.Minute)

	alert := &domain.Alert{
		HospitalID:       hospitalID,
		RoomNumber:       "ICU-4",
		AlertType:        domain.AlertTypeCardiacArrest,
		UrgencyLevel:     5,
		CreatedBy:        uuid.New().String(),
		CurrentRole:      domain.RoleNurse,
		NextEscalationAt: &next,
	}

	mock.ExpectExec(`INSERT INTO alerts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateAlert(ctx, hospitalID, alert)

	require.NoError(t, err)
	// 默认值应被填充
	assert.NotEmpty(t, alert.AlertID)
	assert.Equal(t, domain.AlertStatusActive, alert.Status)
	assert.False(t, alert.CreatedAt.IsZero())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAlert_HospitalMismatch(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()

	alert := &domain.Alert{
		HospitalID:   uuid.New().String(),
		RoomNumber:   "101",
		AlertType:    domain.AlertTypeFire,
		UrgencyLevel: 4,
		CreatedBy:    uuid.New().String(),
	}

	err := repo.CreateAlert(ctx, uuid.New().String(), alert)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must match")

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 状态转换测试（CAS 语义）
// ============================================

func TestAcknowledgeAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	hospitalID := uuid.New().String()
	alertID := uuid.New().String()
	userID := uuid.New().String()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE alerts`).
		WithArgs(userID, now, alertID, hospitalID).
		WillReturnRows(alertRows(alertID, hospitalID, "acknowledged", now.Add(-90*time.Second)))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	alert, err := repo.AcknowledgeAlert(ctx, tx, hospitalID, alertID, userID, now)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, "acknowledged", alert.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeAlert_AlreadyAcknowledged(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	hospitalID := uuid.New().String()
	alertID := uuid.New().String()
	now := time.Now()

	mock.ExpectBegin()
	// CAS 未命中：status 已不是 active
	mock.ExpectQuery(`UPDATE alerts`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	alert, err := repo.AcknowledgeAlert(ctx, tx, hospitalID, alertID, uuid.New().String(), now)
	require.NoError(t, tx.Rollback())

	assert.Nil(t, alert)
	assert.ErrorIs(t, err, ErrAlertNotActive)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeAlert_RequiresTx(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	_, err := repo.AcknowledgeAlert(context.Background(), nil, uuid.New().String(), uuid.New().String(), uuid.New().String(), time.Now())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "transaction is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveAlert_AlreadyResolved(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE alerts`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	alert, err := repo.ResolveAlert(ctx, tx, uuid.New().String(), uuid.New().String(), uuid.New().String(), now)
	require.NoError(t, tx.Rollback())

	assert.Nil(t, alert)
	assert.ErrorIs(t, err, ErrAlertNotOpen)

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 升级调度相关测试
// ============================================

func TestListDueForEscalation_Success(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	hospitalID := uuid.New().String()
	alertID := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(now, 10).
		WillReturnRows(alertRows(alertID, hospitalID, "active", now.Add(-10*time.Minute)))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	alerts, err := repo.ListDueForEscalation(ctx, tx, now, 10)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.Len(t, alerts, 1)
	assert.Equal(t, alertID, alerts[0].AlertID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEscalation_AlertNoLongerActive(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE alerts`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	err = repo.ApplyEscalation(ctx, tx, uuid.New().String(), uuid.New().String(), domain.RoleChargeNurse, 1, nil)
	require.NoError(t, tx.Rollback())

	assert.ErrorIs(t, err, ErrAlertNotActive)

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 列表查询测试
// ============================================

func TestListAlerts_WithFilters(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	hospitalID := uuid.New().String()
	alertID := uuid.New().String()
	status := "active"

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(hospitalID, status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT`).
		WithArgs(hospitalID, status, 20, 0).
		WillReturnRows(alertRows(alertID, hospitalID, status, time.Now()))

	alerts, total, err := repo.ListAlerts(ctx, hospitalID, AlertFilters{Status: &status}, 1, 20)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, alerts, 1)
	assert.Equal(t, alertID, alerts[0].AlertID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAlerts_EmptyHospitalID(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	alerts, total, err := repo.ListAlerts(context.Background(), "", AlertFilters{}, 1, 20)

	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, alerts)

	require.NoError(t, mock.ExpectationsWereMet())
}
