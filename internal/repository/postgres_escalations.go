package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"medguard-alert/internal/domain"
)

// PostgresEscalationsRepository 升级记录Repository实现（append-only）
type PostgresEscalationsRepository struct {
	db *sql.DB
}

// NewPostgresEscalationsRepository 创建升级记录Repository
func NewPostgresEscalationsRepository(db *sql.DB) *PostgresEscalationsRepository {
	return &PostgresEscalationsRepository{db: db}
}

var _ EscalationsRepository = (*PostgresEscalationsRepository)(nil)

// CreateEscalation 写入升级记录（与报警状态更新同一事务）
func (r *PostgresEscalationsRepository) CreateEscalation(ctx context.Context, tx *sql.Tx, esc *domain.AlertEscalation) error {
	if esc == nil {
		return fmt.Errorf("escalation is required")
	}
	if esc.AlertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if esc.HospitalID == "" {
		return fmt.Errorf("hospital_id is required")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if esc.EscalationID == "" {
		esc.EscalationID = uuid.New().String()
	}
	if esc.EscalatedAt.IsZero() {
		esc.EscalatedAt = time.Now()
	}

	query := `
		INSERT INTO alert_escalations (
			escalation_id,
			alert_id,
			hospital_id,
			from_role,
			to_role,
			escalated_at,
			reason
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := tx.ExecContext(ctx, query,
		esc.EscalationID,
		esc.AlertID,
		esc.HospitalID,
		esc.FromRole,
		esc.ToRole,
		esc.EscalatedAt,
		esc.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}

	return nil
}

// ListEscalations 查询报警的升级历史（按时间正序）
func (r *PostgresEscalationsRepository) ListEscalations(ctx context.Context, hospitalID, alertID string) ([]*domain.AlertEscalation, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}

	query := `
		SELECT
			escalation_id::text,
			alert_id::text,
			hospital_id::text,
			from_role,
			to_role,
			escalated_at,
			reason
		FROM alert_escalations
		WHERE alert_id = $1
		  AND hospital_id = $2
		ORDER BY escalated_at
	`

	rows, err := r.db.QueryContext(ctx, query, alertID, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalations: %w", err)
	}
	defer rows.Close()

	escalations := []*domain.AlertEscalation{}
	for rows.Next() {
		var esc domain.AlertEscalation
		if err := rows.Scan(
			&esc.EscalationID,
			&esc.AlertID,
			&esc.HospitalID,
			&esc.FromRole,
			&esc.ToRole,
			&esc.EscalatedAt,
			&esc.Reason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		escalations = append(escalations, &esc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate escalations: %w", err)
	}

	return escalations, nil
}
