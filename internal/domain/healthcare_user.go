package domain

import "time"

// 医护角色（升级阶梯从低到高，具体顺序由策略文件定义）
const (
	RoleNurse           = "nurse"
	RoleChargeNurse     = "charge_nurse"
	RoleDepartmentHead  = "department_head"
	RoleOnCallPhysician = "on_call_physician"
)

// HealthcareUser 医护人员领域模型（对应 healthcare_users 表）
// 与外部认证系统的 user 一对一；值班期间归属一家医院
type HealthcareUser struct {
	// 主键和医院
	UserID     string `json:"user_id" db:"user_id"`
	HospitalID string `json:"hospital_id" db:"hospital_id"`

	// 基本信息
	Name           string  `json:"name" db:"name"`
	Role           string  `json:"role" db:"role"` // nurse, charge_nurse, department_head, on_call_physician
	LicenseNumber  *string `json:"license_number,omitempty" db:"license_number"`
	Department     *string `json:"department,omitempty" db:"department"`
	Specialization *string `json:"specialization,omitempty" db:"specialization"`

	// 值班状态
	OnDuty     bool       `json:"on_duty" db:"on_duty"`
	ShiftStart *time.Time `json:"shift_start,omitempty" db:"shift_start"`
	ShiftEnd   *time.Time `json:"shift_end,omitempty" db:"shift_end"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
