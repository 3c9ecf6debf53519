package domain

import "time"

// 报警类型
const (
	AlertTypeCardiacArrest    = "cardiac_arrest"
	AlertTypeCodeBlue         = "code_blue"
	AlertTypeFire             = "fire"
	AlertTypeSecurity         = "security"
	AlertTypeMedicalEmergency = "medical_emergency"
)

// 报警状态（线性状态机：active → acknowledged → resolved）
const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
)

// ValidAlertTypes 合法的报警类型集合
var ValidAlertTypes = map[string]bool{
	AlertTypeCardiacArrest:    true,
	AlertTypeCodeBlue:         true,
	AlertTypeFire:             true,
	AlertTypeSecurity:         true,
	AlertTypeMedicalEmergency: true,
}

// Alert 报警领域模型（对应 alerts 表）
// 核心可变实体；escalation_level 是状态之外的侧计数器
type Alert struct {
	// 主键和医院
	AlertID    string `json:"alert_id" db:"alert_id"` // UUID, PRIMARY KEY
	HospitalID string `json:"hospital_id" db:"hospital_id"`

	// 报警内容
	RoomNumber   string  `json:"room_number" db:"room_number"`
	AlertType    string  `json:"alert_type" db:"alert_type"`
	UrgencyLevel int     `json:"urgency_level" db:"urgency_level"` // 1-5
	Description  *string `json:"description,omitempty" db:"description"`

	// 生命周期
	Status         string     `json:"status" db:"status"` // active, acknowledged, resolved
	CreatedBy      string     `json:"created_by" db:"created_by"`
	AcknowledgedBy *string    `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	ResolvedBy     *string    `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`

	// 升级状态
	EscalationLevel  int        `json:"escalation_level" db:"escalation_level"`
	CurrentRole      string     `json:"current_role" db:"current_role"` // 当前责任角色
	NextEscalationAt *time.Time `json:"next_escalation_at,omitempty" db:"next_escalation_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsActive 报警是否处于活跃状态
func (a *Alert) IsActive() bool {
	return a.Status == AlertStatusActive
}
