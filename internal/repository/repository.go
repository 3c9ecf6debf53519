package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"medguard-alert/internal/domain"
)

// 状态机违规使用哨兵错误，便于上层区分"冲突"和"失败"
var (
	// ErrAlertNotActive 报警不处于 active 状态（确认竞争失败或已解除）
	ErrAlertNotActive = errors.New("alert is not active")
	// ErrAlertNotOpen 报警已解除（resolve 的状态守卫）
	ErrAlertNotOpen = errors.New("alert is already resolved")
	// ErrNotFound 记录不存在或不属于该医院
	ErrNotFound = errors.New("record not found")
)

// AlertFilters 报警查询过滤条件
type AlertFilters struct {
	// 时间段过滤（created_at）
	StartTime *time.Time
	EndTime   *time.Time

	// 状态过滤
	Status   *string
	Statuses []string

	// 类型和紧急度过滤
	AlertType    *string
	AlertTypes   []string
	UrgencyMin   *int
	UrgencyMax   *int

	// 位置和人员过滤
	RoomNumber     *string
	CreatedBy      *string
	AcknowledgedBy *string

	// 升级过滤
	EscalationLevelMin *int
}

// AuditLogFilters 审计日志查询过滤条件
type AuditLogFilters struct {
	StartTime  *time.Time
	EndTime    *time.Time
	UserID     *string
	Action     *string
	EntityType *string
	EntityID   *string
	Severity   *string
	Severities []string
}

// ResponseTimeMetric 按报警类型聚合的响应时间指标
type ResponseTimeMetric struct {
	AlertType  string  `json:"alert_type"`
	Count      int     `json:"count"`
	AvgSeconds float64 `json:"avg_seconds"`
	MaxSeconds int     `json:"max_seconds"`
}

// AlertsRepository 报警Repository接口
// 状态转换方法要求显式事务：同一事务内还会写入 acknowledgment/escalation/audit 记录
type AlertsRepository interface {
	CreateAlert(ctx context.Context, hospitalID string, alert *domain.Alert) error
	GetAlert(ctx context.Context, hospitalID, alertID string) (*domain.Alert, error)
	ListAlerts(ctx context.Context, hospitalID string, filters AlertFilters, page, size int) ([]*domain.Alert, int, error)
	CountAlerts(ctx context.Context, hospitalID string, filters AlertFilters) (int, error)

	// AcknowledgeAlert 确认报警（compare-and-swap：仅 status='active' 时成功）
	// 返回更新后的报警；竞争失败返回 ErrAlertNotActive
	AcknowledgeAlert(ctx context.Context, tx *sql.Tx, hospitalID, alertID, userID string, at time.Time) (*domain.Alert, error)

	// ResolveAlert 解除报警（active 或 acknowledged 均可解除，不允许回退）
	ResolveAlert(ctx context.Context, tx *sql.Tx, hospitalID, alertID, userID string, at time.Time) (*domain.Alert, error)

	// ListDueForEscalation 认领到期待升级的报警（FOR UPDATE SKIP LOCKED，多实例安全）
	ListDueForEscalation(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]*domain.Alert, error)

	// ApplyEscalation 应用一次升级（level+1、责任角色、下一次升级时间）
	ApplyEscalation(ctx context.Context, tx *sql.Tx, hospitalID, alertID, toRole string, newLevel int, nextEscalationAt *time.Time) error
}

// EscalationsRepository 升级记录Repository接口（append-only）
type EscalationsRepository interface {
	CreateEscalation(ctx context.Context, tx *sql.Tx, esc *domain.AlertEscalation) error
	ListEscalations(ctx context.Context, hospitalID, alertID string) ([]*domain.AlertEscalation, error)
}

// AcknowledgmentsRepository 响应记录Repository接口（append-only）
type AcknowledgmentsRepository interface {
	CreateAcknowledgment(ctx context.Context, tx *sql.Tx, ack *domain.AlertAcknowledgment) error
	ListAcknowledgments(ctx context.Context, hospitalID, alertID string) ([]*domain.AlertAcknowledgment, error)
	ResponseTimeMetrics(ctx context.Context, hospitalID string, start, end *time.Time) ([]ResponseTimeMetric, error)
}

// AuditLogsRepository 审计日志Repository接口（append-only）
// tx 可为 nil：独立写入时直接走连接池
type AuditLogsRepository interface {
	CreateAuditLog(ctx context.Context, tx *sql.Tx, log *domain.AuditLog) error
	ListAuditLogs(ctx context.Context, hospitalID string, filters AuditLogFilters, page, size int) ([]*domain.AuditLog, int, error)
}

// HospitalsRepository 医院Repository接口
type HospitalsRepository interface {
	CreateHospital(ctx context.Context, hospital *domain.Hospital) error
	GetHospital(ctx context.Context, hospitalID string) (*domain.Hospital, error)
	ListHospitals(ctx context.Context) ([]*domain.Hospital, error)
}

// HealthcareUsersRepository 医护人员Repository接口
type HealthcareUsersRepository interface {
	UpsertHealthcareUser(ctx context.Context, user *domain.HealthcareUser) error
	GetHealthcareUser(ctx context.Context, hospitalID, userID string) (*domain.HealthcareUser, error)
	ListOnDutyByRole(ctx context.Context, hospitalID, role string) ([]*domain.HealthcareUser, error)
	SetOnDuty(ctx context.Context, hospitalID, userID string, onDuty bool) error
}
