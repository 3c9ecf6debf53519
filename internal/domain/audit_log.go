package domain

import (
	"encoding/json"
	"time"
)

// 审计日志严重级别
const (
	AuditSeverityInfo     = "info"
	AuditSeverityWarning  = "warning"
	AuditSeverityError    = "error"
	AuditSeverityCritical = "critical"
)

// 审计动作（报警生命周期事件）
const (
	AuditActionAlertCreated      = "alert_created"
	AuditActionAlertAcknowledged = "alert_acknowledged"
	AuditActionAlertEscalated    = "alert_escalated"
	AuditActionAlertResolved     = "alert_resolved"
)

// AuditLog 审计日志（对应 healthcare_audit_logs 表，append-only）
// 与报警状态转换在同一事务内写入，不依赖约定
type AuditLog struct {
	LogID      string  `json:"log_id" db:"log_id"` // UUID, PRIMARY KEY
	HospitalID string  `json:"hospital_id" db:"hospital_id"`
	UserID     *string `json:"user_id,omitempty" db:"user_id"` // 系统动作（如自动升级）为 NULL

	Action     string `json:"action" db:"action"`
	EntityType string `json:"entity_type" db:"entity_type"` // alert, user, system
	EntityID   string `json:"entity_id" db:"entity_id"`
	Severity   string `json:"severity" db:"severity"` // info, warning, error, critical

	Metadata  json.RawMessage `json:"metadata" db:"metadata"` // JSONB
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
