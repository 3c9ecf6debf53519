package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"medguard-alert/internal/domain"
)

// PostgresHospitalsRepository 医院Repository实现
type PostgresHospitalsRepository struct {
	db *sql.DB
}

// NewPostgresHospitalsRepository 创建医院Repository
func NewPostgresHospitalsRepository(db *sql.DB) *PostgresHospitalsRepository {
	return &PostgresHospitalsRepository{db: db}
}

var _ HospitalsRepository = (*PostgresHospitalsRepository)(nil)

// CreateHospital 创建医院
func (r *PostgresHospitalsRepository) CreateHospital(ctx context.Context, hospital *domain.Hospital) error {
	if hospital == nil {
		return fmt.Errorf("hospital is required")
	}
	if hospital.Name == "" {
		return fmt.Errorf("name is required")
	}

	if hospital.HospitalID == "" {
		hospital.HospitalID = uuid.New().String()
	}
	if hospital.CreatedAt.IsZero() {
		hospital.CreatedAt = time.Now()
	}
	if hospital.UpdatedAt.IsZero() {
		hospital.UpdatedAt = hospital.CreatedAt
	}
	if len(hospital.ContactInfo) == 0 {
		hospital.ContactInfo = json.RawMessage("{}")
	}
	if len(hospital.Settings) == 0 {
		hospital.Settings = json.RawMessage("{}")
	}

	query := `
		INSERT INTO hospitals (
			hospital_id, name, address, contact_info, settings, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		hospital.HospitalID,
		hospital.Name,
		hospital.Address,
		hospital.ContactInfo,
		hospital.Settings,
		hospital.CreatedAt,
		hospital.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create hospital: %w", err)
	}

	return nil
}

// GetHospital 获取单家医院
func (r *PostgresHospitalsRepository) GetHospital(ctx context.Context, hospitalID string) (*domain.Hospital, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}

	query := `
		SELECT
			hospital_id::text, name, address, contact_info, settings, created_at, updated_at
		FROM hospitals
		WHERE hospital_id = $1
	`

	var hospital domain.Hospital
	var contactInfo, settings []byte

	err := r.db.QueryRowContext(ctx, query, hospitalID).Scan(
		&hospital.HospitalID,
		&hospital.Name,
		&hospital.Address,
		&contactInfo,
		&settings,
		&hospital.CreatedAt,
		&hospital.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("hospital not found: hospital_id=%s: %w", hospitalID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get hospital: %w", err)
	}

	if len(contactInfo) > 0 {
		hospital.ContactInfo = contactInfo
	} else {
		hospital.ContactInfo = json.RawMessage("{}")
	}
	if len(settings) > 0 {
		hospital.Settings = settings
	} else {
		hospital.Settings = json.RawMessage("{}")
	}

	return &hospital, nil
}

// ListHospitals 列出全部医院（平台级）
func (r *PostgresHospitalsRepository) ListHospitals(ctx context.Context) ([]*domain.Hospital, error) {
	query := `
		SELECT
			hospital_id::text, name, address, contact_info, settings, created_at, updated_at
		FROM hospitals
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query hospitals: %w", err)
	}
	defer rows.Close()

	hospitals := []*domain.Hospital{}
	for rows.Next() {
		var hospital domain.Hospital
		var contactInfo, settings []byte

		if err := rows.Scan(
			&hospital.HospitalID,
			&hospital.Name,
			&hospital.Address,
			&contactInfo,
			&settings,
			&hospital.CreatedAt,
			&hospital.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan hospital: %w", err)
		}

		if len(contactInfo) > 0 {
			hospital.ContactInfo = contactInfo
		} else {
			hospital.ContactInfo = json.RawMessage("{}")
		}
		if len(settings) > 0 {
			hospital.Settings = settings
		} else {
			hospital.Settings = json.RawMessage("{}")
		}

		hospitals = append(hospitals, &hospital)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hospitals: %w", err)
	}

	return hospitals, nil
}
