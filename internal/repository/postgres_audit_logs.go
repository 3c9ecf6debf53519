package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"medguard-alert/internal/domain"
)

// PostgresAuditLogsRepository 审计日志Repository实现（append-only）
type PostgresAuditLogsRepository struct {
	db *sql.DB
}

// NewPostgresAuditLogsRepository 创建审计日志Repository
func NewPostgresAuditLogsRepository(db *sql.DB) *PostgresAuditLogsRepository {
	return &PostgresAuditLogsRepository{db: db}
}

var _ AuditLogsRepository = (*PostgresAuditLogsRepository)(nil)

// execer 统一 *sql.DB / *sql.Tx 的写入口
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CreateAuditLog 写入审计日志
// tx 非 nil 时与状态转换同一事务；为 nil 时独立写入（如登录事件）
func (r *PostgresAuditLogsRepository) CreateAuditLog(ctx context.Context, tx *sql.Tx, log *domain.AuditLog) error {
	if log == nil {
		return fmt.Errorf("audit log is required")
	}
	if log.HospitalID == "" {
		return fmt.Errorf("hospital_id is required")
	}
	if log.Action == "" {
		return fmt.Errorf("action is required")
	}

	if log.LogID == "" {
		log.LogID = uuid.New().String()
	}
	if log.Severity == "" {
		log.Severity = domain.AuditSeverityInfo
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	if len(log.Metadata) == 0 {
		log.Metadata = json.RawMessage("{}")
	}

	var ex execer = r.db
	if tx != nil {
		ex = tx
	}

	query := `
		INSERT INTO healthcare_audit_logs (
			log_id,
			hospital_id,
			user_id,
			action,
			entity_type,
			entity_id,
			severity,
			metadata,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := ex.ExecContext(ctx, query,
		log.LogID,
		log.HospitalID,
		log.UserID,
		log.Action,
		log.EntityType,
		log.EntityID,
		log.Severity,
		log.Metadata,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

// ListAuditLogs 查询审计日志（支持多条件过滤、分页，按时间倒序）
func (r *PostgresAuditLogsRepository) ListAuditLogs(ctx context.Context, hospitalID string, filters AuditLogFilters, page, size int) ([]*domain.AuditLog, int, error) {
	if hospitalID == "" {
		return []*domain.AuditLog{}, 0, nil
	}

	where := []string{"hospital_id = $1"}
	args := []interface{}{hospitalID}
	argN := 2

	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", argN))
		args = append(args, *filters.StartTime)
		argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", argN))
		args = append(args, *filters.EndTime)
		argN++
	}
	if filters.UserID != nil {
		where = append(where, fmt.Sprintf("user_id = $%d", argN))
		args = append(args, *filters.UserID)
		argN++
	}
	if filters.Action != nil {
		where = append(where, fmt.Sprintf("action = $%d", argN))
		args = append(args, *filters.Action)
		argN++
	}
	if filters.EntityType != nil {
		where = append(where, fmt.Sprintf("entity_type = $%d", argN))
		args = append(args, *filters.EntityType)
		argN++
	}
	if filters.EntityID != nil {
		where = append(where, fmt.Sprintf("entity_id = $%d", argN))
		args = append(args, *filters.EntityID)
		argN++
	}
	if filters.Severity != nil {
		where = append(where, fmt.Sprintf("severity = $%d", argN))
		args = append(args, *filters.Severity)
		argN++
	}
	if len(filters.Severities) > 0 {
		placeholders := make([]string, len(filters.Severities))
		for i := range filters.Severities {
			placeholders[i] = fmt.Sprintf("$%d", argN)
			args = append(args, filters.Severities[i])
			argN++
		}
		where = append(where, fmt.Sprintf("severity IN (%s)", strings.Join(placeholders, ", ")))
	}

	whereClause := "WHERE " + strings.Join(where, " AND ")

	queryCount := fmt.Sprintf(`SELECT COUNT(*) FROM healthcare_audit_logs %s`, whereClause)

	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
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
		SELECT
			log_id::text,
			hospital_id::text,
			user_id,
			action,
			entity_type,
			entity_id,
			severity,
			metadata,
			created_at
		FROM healthcare_audit_logs
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argN, argN+1)

	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := []*domain.AuditLog{}
	for rows.Next() {
		var log domain.AuditLog
		var userID sql.NullString
		var metadata []byte

		if err := rows.Scan(
			&log.LogID,
			&log.HospitalID,
			&userID,
			&log.Action,
			&log.EntityType,
			&log.EntityID,
			&log.Severity,
			&metadata,
			&log.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit log: %w", err)
		}

		if userID.Valid {
			log.UserID = &userID.String
		}
		if len(metadata) > 0 {
			log.Metadata = metadata
		} else {
			log.Metadata = json.RawMessage("{}")
		}

		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate audit logs: %w", err)
	}

	return logs, total, nil
}
