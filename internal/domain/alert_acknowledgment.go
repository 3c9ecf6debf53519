package domain

import "time"

// AlertAcknowledgment 报警响应记录（对应 alert_acknowledgments 表，append-only）
// response_time_seconds 是唯一的派生字段：acknowledged_at - alert.created_at
type AlertAcknowledgment struct {
	AckID      string `json:"ack_id" db:"ack_id"` // UUID, PRIMARY KEY
	AlertID    string `json:"alert_id" db:"alert_id"`
	HospitalID string `json:"hospital_id" db:"hospital_id"`
	UserID     string `json:"user_id" db:"user_id"`

	AcknowledgedAt      time.Time `json:"acknowledged_at" db:"acknowledged_at"`
	ResponseTimeSeconds int       `json:"response_time_seconds" db:"response_time_seconds"`

	UrgencyAssessment *string `json:"urgency_assessment,omitempty" db:"urgency_assessment"`
	ResponseAction    *string `json:"response_action,omitempty" db:"response_action"`
	Notes             *string `json:"notes,omitempty" db:"notes"`
}
