package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"medguard-alert/internal/domain"
)

// PostgresHealthcareUsersRepository 医护人员Repository实现
type PostgresHealthcareUsersRepository struct {
	db *sql.DB
}

// NewPostgresHealthcareUsersRepository 创建医护人员Repository
func NewPostgresHealthcareUsersRepository(db *sql.DB) *PostgresHealthcareUsersRepository {
	return &PostgresHealthcareUsersRepository{db: db}
}

var _ HealthcareUsersRepository = (*PostgresHealthcareUsersRepository)(nil)

// UpsertHealthcareUser 创建或更新医护人员档案
// user_id 来自外部认证系统，这里以 (user_id) 为冲突键
func (r *PostgresHealthcareUsersRepository) UpsertHealthcareUser(ctx context.Context, user *domain.HealthcareUser) error {
	if user == nil {
		return fmt.Errorf("user is required")
	}
	if user.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if user.HospitalID == "" {
		return fmt.Errorf("hospital_id is required")
	}
	if user.Role == "" {
		return fmt.Errorf("role is required")
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `
		INSERT INTO healthcare_users (
			user_id, hospital_id, name, role, license_number,
			department, specialization, on_duty, shift_start, shift_end,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (user_id)
		DO UPDATE SET hospital_id = EXCLUDED.hospital_id,
		              name = EXCLUDED.name,
		              role = EXCLUDED.role,
		              license_number = EXCLUDED.license_number,
		              department = EXCLUDED.department,
		              specialization = EXCLUDED.specialization,
		              on_duty = EXCLUDED.on_duty,
		              shift_start = EXCLUDED.shift_start,
		              shift_end = EXCLUDED.shift_end,
		              updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		user.UserID,
		user.HospitalID,
		user.Name,
		user.Role,
		user.LicenseNumber,
		user.Department,
		user.Specialization,
		user.OnDuty,
		user.ShiftStart,
		user.ShiftEnd,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert healthcare user: %w", err)
	}

	return nil
}

const healthcareUserColumns = `
	user_id::text,
	hospital_id::text,
	name,
	role,
	license_number,
	department,
	specialization,
	on_duty,
	shift_start,
	shift_end,
	created_at,
	updated_at
`

func scanHealthcareUser(row interface {
	Scan(dest ...interface{}) error
}) (*domain.HealthcareUser, error) {
	var user domain.HealthcareUser
	var licenseNumber, department, specialization sql.NullString
	var shiftStart, shiftEnd sql.NullTime

	err := row.Scan(
		&user.UserID,
		&user.HospitalID,
		&user.Name,
		&user.Role,
		&licenseNumber,
		&department,
		&specialization,
		&user.OnDuty,
		&shiftStart,
		&shiftEnd,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if licenseNumber.Valid {
		user.LicenseNumber = &licenseNumber.String
	}
	if department.Valid {
		user.Department = &department.String
	}
	if specialization.Valid {
		user.Specialization = &specialization.String
	}
	if shiftStart.Valid {
		user.ShiftStart = &shiftStart.Time
	}
	if shiftEnd.Valid {
		user.ShiftEnd = &shiftEnd.Time
	}

	return &user, nil
}

// GetHealthcareUser 获取单个医护人员（需验证 hospital_id）
func (r *PostgresHealthcareUsersRepository) GetHealthcareUser(ctx context.Context, hospitalID, userID string) (*domain.HealthcareUser, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM healthcare_users
		WHERE user_id = $1
		  AND hospital_id = $2
	`, healthcareUserColumns)

	user, err := scanHealthcareUser(r.db.QueryRowContext(ctx, query, userID, hospitalID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("healthcare user not found: user_id=%s, hospital_id=%s: %w", userID, hospitalID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get healthcare user: %w", err)
	}

	return user, nil
}

// ListOnDutyByRole 查询某角色的值班人员（通知目标解析）
func (r *PostgresHealthcareUsersRepository) ListOnDutyByRole(ctx context.Context, hospitalID, role string) ([]*domain.HealthcareUser, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if role == "" {
		return nil, fmt.Errorf("role is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM healthcare_users
		WHERE hospital_id = $1
		  AND role = $2
		  AND on_duty = TRUE
		ORDER BY name
	`, healthcareUserColumns)

	rows, err := r.db.QueryContext(ctx, query, hospitalID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to query on-duty users: %w", err)
	}
	defer rows.Close()

	users := []*domain.HealthcareUser{}
	for rows.Next() {
		user, err := scanHealthcareUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan healthcare user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate healthcare users: %w", err)
	}

	return users, nil
}

// SetOnDuty 设置值班状态
func (r *PostgresHealthcareUsersRepository) SetOnDuty(ctx context.Context, hospitalID, userID string, onDuty bool) error {
	if hospitalID == "" {
		return fmt.Errorf("hospital_id is required")
	}
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}

	query := `
		UPDATE healthcare_users
		SET on_duty = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $2
		  AND hospital_id = $3
	`

	result, err := r.db.ExecContext(ctx, query, onDuty, userID, hospitalID)
	if err != nil {
		return fmt.Errorf("failed to set on_duty: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("healthcare user not found: user_id=%s, hospital_id=%s: %w", userID, hospitalID, ErrNotFound)
	}

	return nil
}
