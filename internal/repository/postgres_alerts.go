package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"medguard-alert/internal/domain"
)

// PostgresAlertsRepository 报警Repository实现
type PostgresAlertsRepository struct {
	db *sql.DB
}

// NewPostgresAlertsRepository 创建报警Repository
func NewPostgresAlertsRepository(db *sql.DB) *PostgresAlertsRepository {
	return &PostgresAlertsRepository{db: db}
}

// 确保实现了接口
var _ AlertsRepository = (*PostgresAlertsRepository)(nil)

const alertColumns = `
	alert_id::text,
	hospital_id::text,
	room_number,
	alert_type,
	urgency_level,
	description,
	status,
	created_by::text,
	acknowledged_by,
	acknowledged_at,
	resolved_by,
	resolved_at,
	escalation_level,
	current_role_name,
	next_escalation_at,
	created_at,
	updated_at
`

// scanAlert 扫描单行报警（可空字段统一处理）
func scanAlert(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Alert, error) {
	var alert domain.Alert
	var description, acknowledgedBy, resolvedBy sql.NullString
	var acknowledgedAt, resolvedAt, nextEscalationAt sql.NullTime

	err := row.Scan(
		&alert.AlertID,
		&alert.HospitalID,
		&alert.RoomNumber,
		&alert.AlertType,
		&alert.UrgencyLevel,
		&description,
		&alert.Status,
		&alert.CreatedBy,
		&acknowledgedBy,
		&acknowledgedAt,
		&resolvedBy,
		&resolvedAt,
		&alert.EscalationLevel,
		&alert.CurrentRole,
		&nextEscalationAt,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		alert.Description = &description.String
	}
	if acknowledgedBy.Valid {
		alert.AcknowledgedBy = &acknowledgedBy.String
	}
	if acknowledgedAt.Valid {
		alert.AcknowledgedAt = &acknowledgedAt.Time
	}
	if resolvedBy.Valid {
		alert.ResolvedBy = &resolvedBy.String
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = &resolvedAt.Time
	}
	if nextEscalationAt.Valid {
		alert.NextEscalationAt = &nextEscalationAt.Time
	}

	return &alert, nil
}

// buildWhereClause 构建 WHERE 子句（ListAlerts / CountAlerts 共用）
func (r *PostgresAlertsRepository) buildWhereClause(hospitalID string, filters AlertFilters, args *[]interface{}, argN *int) []string {
	where := []string{fmt.Sprintf("hospital_id = $%d", *argN)}
	*args = append(*args, hospitalID)
	*argN++

	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", *argN))
		*args = append(*args, *filters.StartTime)
		*argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", *argN))
		*args = append(*args, *filters.EndTime)
		*argN++
	}

	if filters.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", *argN))
		*args = append(*args, *filters.Status)
		*argN++
	}
	if len(filters.Statuses) > 0 {
		placeholders := make([]string, len(filters.Statuses))
		for i := range filters.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", *argN)
			*args = append(*args, filters.Statuses[i])
			*argN++
		}
		where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filters.AlertType != nil {
		where = append(where, fmt.Sprintf("alert_type = $%d", *argN))
		*args = append(*args, *filters.AlertType)
		*argN++
	}
	if len(filters.AlertTypes) > 0 {
		placeholders := make([]string, len(filters.AlertTypes))
		for i := range filters.AlertTypes {
			placeholders[i] = fmt.Sprintf("$%d", *argN)
			*args = append(*args, filters.AlertTypes[i])
			*argN++
		}
		where = append(where, fmt.Sprintf("alert_type IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filters.UrgencyMin != nil {
		where = append(where, fmt.Sprintf("urgency_level >= $%d", *argN))
		*args = append(*args, *filters.UrgencyMin)
		*argN++
	}
	if filters.UrgencyMax != nil {
		where = append(where, fmt.Sprintf("urgency_level <= $%d", *argN))
		*args = append(*args, *filters.UrgencyMax)
		*argN++
	}

	if filters.RoomNumber != nil {
		where = append(where, fmt.Sprintf("room_number = $%d", *argN))
		*args = append(*args, *filters.RoomNumber)
		*argN++
	}
	if filters.CreatedBy != nil {
		where = append(where, fmt.Sprintf("created_by = $%d", *argN))
		*args = append(*args, *filters.CreatedBy)
		*argN++
	}
	if filters.AcknowledgedBy != nil {
		where = append(where, fmt.Sprintf("acknowledged_by = $%d", *argN))
		*args = append(*args, *filters.AcknowledgedBy)
		*argN++
	}

	if filters.EscalationLevelMin != nil {
		where = append(where, fmt.Sprintf("escalation_level >= $%d", *argN))
		*args = append(*args, *filters.EscalationLevelMin)
		*argN++
	}

	return where
}

// CreateAlert 创建报警（需验证 hospital_id）
func (r *PostgresAlertsRepository) CreateAlert(ctx context.Context, hospitalID string, alert *domain.Alert) error {
	if hospitalID == "" {
		return fmt.Errorf("hospital_id is required")
	}
	if alert == nil {
		return fmt.Errorf("alert is required")
	}
	if alert.HospitalID != hospitalID {
		return fmt.Errorf("alert.hospital_id must match hospital_id parameter")
	}

	// 设置默认值
	if alert.AlertID == "" {
		alert.AlertID = uuid.New().String()
	}
	if alert.Status == "" {
		alert.Status = domain.AlertStatusActive
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = alert.CreatedAt
	}

	query := `
		INSERT INTO alerts (
			alert_id,
			hospital_id,
			room_number,
			alert_type,
			urgency_level,
			description,
			status,
			created_by,
			escalation_level,
			current_role_name,
			next_escalation_at,
			created_at,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		alert.AlertID,
		alert.HospitalID,
		alert.RoomNumber,
		alert.AlertType,
		alert.UrgencyLevel,
		alert.Description,
		alert.Status,
		alert.CreatedBy,
		alert.EscalationLevel,
		alert.CurrentRole,
		alert.NextEscalationAt,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// GetAlert 根据 alert_id 获取单个报警（需验证 hospital_id）
func (r *PostgresAlertsRepository) GetAlert(ctx context.Context, hospitalID, alertID string) (*domain.Alert, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE alert_id = $1
		  AND hospital_id = $2
	`, alertColumns)

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, alertID, hospitalID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("alert not found: alert_id=%s, hospital_id=%s: %w", alertID, hospitalID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return alert, nil
}

// ListAlerts 列表查询（支持多条件过滤、分页，按创建时间倒序）
func (r *PostgresAlertsRepository) ListAlerts(ctx context.Context, hospitalID string, filters AlertFilters, page, size int) ([]*domain.Alert, int, error) {
	if hospitalID == "" {
		return []*domain.Alert{}, 0, nil
	}

	args := []interface{}{}
	argN := 1
	where := r.buildWhereClause(hospitalID, filters, &args, &argN)
	whereClause := "WHERE " + strings.Join(where, " AND ")

	queryCount := fmt.Sprintf(`SELECT COUNT(*) FROM alerts %s`, whereClause)

	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, alertColumns, whereClause, argN, argN+1)

	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*domain.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, total, nil
}

// CountAlerts 统计报警数量（按条件）
func (r *PostgresAlertsRepository) CountAlerts(ctx context.Context, hospitalID string, filters AlertFilters) (int, error) {
	if hospitalID == "" {
		return 0, nil
	}

	args := []interface{}{}
	argN := 1
	where := r.buildWhereClause(hospitalID, filters, &args, &argN)

	query := fmt.Sprintf(`SELECT COUNT(*) FROM alerts WHERE %s`, strings.Join(where, " AND "))

	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	return total, nil
}

// AcknowledgeAlert 确认报警（compare-and-swap）
// 仅当 status='active' 时更新成功，保证同一报警至多一个确认人胜出；
// 同时清空 next_escalation_at，停止升级计时
func (r *PostgresAlertsRepository) AcknowledgeAlert(ctx context.Context, tx *sql.Tx, hospitalID, alertID, userID string, at time.Time) (*domain.Alert, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction is required")
	}

	query := fmt.Sprintf(`
		UPDATE alerts
		SET status = 'acknowledged',
		    acknowledged_by = $1,
		    acknowledged_at = $2,
		    next_escalation_at = NULL,
		    updated_at = $2
		WHERE alert_id = $3
		  AND hospital_id = $4
		  AND status = 'active'
		RETURNING %s
	`, alertColumns)

	alert, err := scanAlert(tx.QueryRowContext(ctx, query, userID, at, alertID, hospitalID))
	if err != nil {
		if err == sql.ErrNoRows {
			// 报警不存在，或已被他人确认/解除
			return nil, ErrAlertNotActive
		}
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	return alert, nil
}

// ResolveAlert 解除报警（active 或 acknowledged → resolved，不允许回退）
func (r *PostgresAlertsRepository) ResolveAlert(ctx context.Context, tx *sql.Tx, hospitalID, alertID, userID string, at time.Time) (*domain.Alert, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction is required")
	}

	// resolved_at 取 max(at, acknowledged_at)，保证 resolved_at >= acknowledged_at
	query := fmt.Sprintf(`
		UPDATE alerts
		SET status = 'resolved',
		    resolved_by = $1,
		    resolved_at = GREATEST($2::timestamptz, COALESCE(acknowledged_at, $2::timestamptz)),
		    next_escalation_at = NULL,
		    updated_at = $2
		WHERE alert_id = $3
		  AND hospital_id = $4
		  AND status IN ('active', 'acknowledged')
		RETURNING %s
	`, alertColumns)

	alert, err := scanAlert(tx.QueryRowContext(ctx, query, userID, at, alertID, hospitalID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAlertNotOpen
		}
		return nil, fmt.Errorf("failed to resolve alert: %w", err)
	}

	return alert, nil
}

// ListDueForEscalation 认领到期待升级的报警
// FOR UPDATE SKIP LOCKED：多实例并发扫描时同一报警只会被一个实例认领
func (r *PostgresAlertsRepository) ListDueForEscalation(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]*domain.Alert, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction is required")
	}
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE status = 'active'
		  AND next_escalation_at IS NOT NULL
		  AND next_escalation_at <= $1
		ORDER BY next_escalation_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, alertColumns)

	rows, err := tx.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*domain.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due alerts: %w", err)
	}

	return alerts, nil
}

// ApplyEscalation 应用一次升级
// nextEscalationAt 为 nil 表示已到阶梯顶端，停止计时（报警保持 active）
func (r *PostgresAlertsRepository) ApplyEscalation(ctx context.Context, tx *sql.Tx, hospitalID, alertID, toRole string, newLevel int, nextEscalationAt *time.Time) error {
	if hospitalID == "" {
		return fmt.Errorf("hospital_id is required")
	}
	if alertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if toRole == "" {
		return fmt.Errorf("to_role is required")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	query := `
		UPDATE alerts
		SET escalation_level = $1,
		    current_role_name = $2,
		    next_escalation_at = $3,
		    updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $4
		  AND hospital_id = $5
		  AND status = 'active'
	`

	result, err := tx.ExecContext(ctx, query, newLevel, toRole, nextEscalationAt, alertID, hospitalID)
	if err != nil {
		return fmt.Errorf("failed to apply escalation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlertNotActive
	}

	return nil
}
