package domain

import "time"

// AlertEscalation 报警升级记录（对应 alert_escalations 表，append-only）
// 每条记录是一次责任角色的交接
type AlertEscalation struct {
	EscalationID string `json:"escalation_id" db:"escalation_id"` // UUID, PRIMARY KEY
	AlertID      string `json:"alert_id" db:"alert_id"`
	HospitalID   string `json:"hospital_id" db:"hospital_id"`

	FromRole    string    `json:"from_role" db:"from_role"`
	ToRole      string    `json:"to_role" db:"to_role"`
	EscalatedAt time.Time `json:"escalated_at" db:"escalated_at"`
	Reason      string    `json:"reason" db:"reason"` // 如 "acknowledgment timeout"
}
