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

// PostgresAcknowledgmentsRepository 响应记录Repository实现（append-only）
type PostgresAcknowledgmentsRepository struct {
	db *sql.DB
}

// NewPostgresAcknowledgmentsRepository 创建响应记录Repository
func NewPostgresAcknowledgmentsRepository(db *sql.DB) *PostgresAcknowledgmentsRepository {
	return &PostgresAcknowledgmentsRepository{db: db}
}

var _ AcknowledgmentsRepository = (*PostgresAcknowledgmentsRepository)(nil)

// CreateAcknowledgment 写入响应记录（与报警状态更新同一事务）
func (r *PostgresAcknowledgmentsRepository) CreateAcknowledgment(ctx context.Context, tx *sql.Tx, ack *domain.AlertAcknowledgment) error {
	if ack == nil {
		return fmt.Errorf("acknowledgment is required")
	}
	if ack.AlertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if ack.HospitalID == "" {
		return fmt.Errorf("hospital_id is required")
	}
	if ack.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if ack.ResponseTimeSeconds < 0 {
		return fmt.Errorf("response_time_seconds must be >= 0")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if ack.AckID == "" {
		ack.AckID = uuid.New().String()
	}
	if ack.AcknowledgedAt.IsZero() {
		ack.AcknowledgedAt = time.Now()
	}

	query := `
		INSERT INTO alert_acknowledgments (
			ack_id,
			alert_id,
			hospital_id,
			user_id,
			acknowledged_at,
			response_time_seconds,
			urgency_assessment,
			response_action,
			notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := tx.ExecContext(ctx, query,
		ack.AckID,
		ack.AlertID,
		ack.HospitalID,
		ack.UserID,
		ack.AcknowledgedAt,
		ack.ResponseTimeSeconds,
		ack.UrgencyAssessment,
		ack.ResponseAction,
		ack.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to create acknowledgment: %w", err)
	}

	return nil
}

// ListAcknowledgments 查询报警的响应历史（按时间正序）
func (r *PostgresAcknowledgmentsRepository) ListAcknowledgments(ctx context.Context, hospitalID, alertID string) ([]*domain.AlertAcknowledgment, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}

	query := `
		SELECT
			ack_id::text,
			alert_id::text,
			hospital_id::text,
			user_id::text,
			acknowledged_at,
			response_time_seconds,
			urgency_assessment,
			response_action,
			notes
		FROM alert_acknowledgments
		WHERE alert_id = $1
		  AND hospital_id = $2
		ORDER BY acknowledged_at
	`

	rows, err := r.db.QueryContext(ctx, query, alertID, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query acknowledgments: %w", err)
	}
	defer rows.Close()

	acks := []*domain.AlertAcknowledgment{}
	for rows.Next() {
		var ack domain.AlertAcknowledgment
		var urgencyAssessment, responseAction, notes sql.NullString

		if err := rows.Scan(
			&ack.AckID,
			&ack.AlertID,
			&ack.HospitalID,
			&ack.UserID,
			&ack.AcknowledgedAt,
			&ack.ResponseTimeSeconds,
			&urgencyAssessment,
			&responseAction,
			&notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan acknowledgment: %w", err)
		}

		if urgencyAssessment.Valid {
			ack.UrgencyAssessment = &urgencyAssessment.String
		}
		if responseAction.Valid {
			ack.ResponseAction = &responseAction.String
		}
		if notes.Valid {
			ack.Notes = &notes.String
		}

		acks = append(acks, &ack)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate acknowledgments: %w", err)
	}

	return acks, nil
}

// ResponseTimeMetrics 按报警类型聚合响应时间（JOIN alerts 取类型）
func (r *PostgresAcknowledgmentsRepository) ResponseTimeMetrics(ctx context.Context, hospitalID string, start, end *time.Time) ([]ResponseTimeMetric, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}

	where := []string{"ack.hospital_id = $1"}
	args := []interface{}{hospitalID}
	argN := 2

	if start != nil {
		where = append(where, fmt.Sprintf("ack.acknowledged_at >= $%d", argN))
		args = append(args, *start)
		argN++
	}
	if end != nil {
		where = append(where, fmt.Sprintf("ack.acknowledged_at <= $%d", argN))
		args = append(args, *end)
		argN++
	}

	query := fmt.Sprintf(`
		SELECT
			a.alert_type,
			COUNT(*),
			AVG(ack.response_time_seconds),
			MAX(ack.response_time_seconds)
		FROM alert_acknowledgments ack
		JOIN alerts a ON ack.alert_id = a.alert_id
		WHERE %s
		GROUP BY a.alert_type
		ORDER BY a.alert_type
	`, strings.Join(where, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query response time metrics: %w", err)
	}
	defer rows.Close()

	metrics := []ResponseTimeMetric{}
	for rows.Next() {
		var m ResponseTimeMetric
		if err := rows.Scan(&m.AlertType, &m.Count, &m.AvgSeconds, &m.MaxSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan response time metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate response time metrics: %w", err)
	}

	return metrics, nil
}
