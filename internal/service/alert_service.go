package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"medguard-alert/internal/cache"
	"medguard-alert/internal/domain"
	"medguard-alert/internal/notifier"
	"medguard-alert/internal/policy"
	"medguard-alert/internal/repository"
)

// Notifier 生命周期事件通知接口
type Notifier interface {
	Dispatch(ctx context.Context, event string, alert *domain.Alert, targetRole string)
}

// CreateAlertInput 创建报警的输入参数
type CreateAlertInput struct {
	RoomNumber   string  `json:"room_number"`
	AlertType    string  `json:"alert_type"`
	UrgencyLevel int     `json:"urgency_level"`
	Description  *string `json:"description,omitempty"`
	CreatedBy    string  `json:"created_by"`
}

// AcknowledgeInput 确认报警的输入参数
type AcknowledgeInput struct {
	UserID            string  `json:"user_id"`
	UrgencyAssessment *string `json:"urgency_assessment,omitempty"`
	ResponseAction    *string `json:"response_action,omitempty"`
	Notes             *string `json:"notes,omitempty"`
}

// AlertService 报警服务层
// 职责：
// 1. 业务规则验证
// 2. 状态转换编排（报警 + 响应记录 + 审计日志同一事务）
// 3. 升级策略应用（初始责任角色、确认超时）
// 4. 通知分发和活跃报警缓存刷新（事务提交后）
type AlertService struct {
	db          *sql.DB
	alertsRepo  repository.AlertsRepository
	acksRepo    repository.AcknowledgmentsRepository
	escsRepo    repository.EscalationsRepository
	auditRepo   repository.AuditLogsRepository
	policyStore *policy.Store
	notifier    Notifier
	activeCache *cache.ActiveAlertCache
	logger      *zap.Logger
}

// NewAlertService 创建报警服务
// notifier 和 activeCache 可为 nil（对应能力关闭）
func NewAlertService(
	db *sql.DB,
	alertsRepo repository.AlertsRepository,
	acksRepo repository.AcknowledgmentsRepository,
	escsRepo repository.EscalationsRepository,
	auditRepo repository.AuditLogsRepository,
	policyStore *policy.Store,
	n Notifier,
	activeCache *cache.ActiveAlertCache,
	logger *zap.Logger,
) *AlertService {
	return &AlertService{
		db:          db,
		alertsRepo:  alertsRepo,
		acksRepo:    acksRepo,
		escsRepo:    escsRepo,
		auditRepo:   auditRepo,
		policyStore: policyStore,
		notifier:    n,
		activeCache: activeCache,
		logger:      logger,
	}
}

// ============================================
// 状态管理方法
// ============================================

// CreateAlert 创建报警
// 业务规则：
// - hospital_id, room_number, created_by 必填
// - alert_type 必须合法，urgency_level 必须在 [1,5]
// - 初始责任角色和首次升级时间来自当前升级策略
func (s *AlertService) CreateAlert(ctx context.Context, hospitalID string, input CreateAlertInput) (*domain.Alert, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if input.RoomNumber == "" {
		return nil, fmt.Errorf("room_number is required")
	}
	if input.CreatedBy == "" {
		return nil, fmt.Errorf("created_by is required")
	}
	if !domain.ValidAlertTypes[input.AlertType] {
		return nil, fmt.Errorf("invalid alert_type: %s", input.AlertType)
	}
	if input.UrgencyLevel < 1 || input.UrgencyLevel > 5 {
		return nil, fmt.Errorf("urgency_level must be between 1 and 5, got %d", input.UrgencyLevel)
	}

	p := s.policyStore.Current()
	now := time.Now().UTC()
	deadline := now.Add(p.Timeout(input.AlertType, input.UrgencyLevel))

	alert := &domain.Alert{
		AlertID:          uuid.New().String(),
		HospitalID:       hospitalID,
		RoomNumber:       input.RoomNumber,
		AlertType:        input.AlertType,
		UrgencyLevel:     input.UrgencyLevel,
		Description:      input.Description,
		Status:           domain.AlertStatusActive,
		CreatedBy:        input.CreatedBy,
		EscalationLevel:  0,
		CurrentRole:      p.InitialRole(input.AlertType),
		NextEscalationAt: &deadline,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.alertsRepo.CreateAlert(ctx, hospitalID, alert); err != nil {
		s.logger.Error("Failed to create alert",
			zap.String("hospital_id", hospitalID),
			zap.String("alert_type", input.AlertType),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	s.writeAudit(ctx, nil, hospitalID, &input.CreatedBy, domain.AuditActionAlertCreated, alert.AlertID,
		domain.AuditSeverityInfo, map[string]interface{}{
			"alert_type":    alert.AlertType,
			"urgency_level": alert.UrgencyLevel,
			"room_number":   alert.RoomNumber,
			"initial_role":  alert.CurrentRole,
		})

	if s.notifier != nil {
		s.notifier.Dispatch(ctx, notifier.EventAlertCreated, alert, alert.CurrentRole)
	}
	s.refreshActiveCache(ctx, hospitalID)

	s.logger.Info("Alert created",
		zap.String("hospital_id", hospitalID),
		zap.String("alert_id", alert.AlertID),
		zap.String("alert_type", alert.AlertType),
		zap.Int("urgency_level", alert.UrgencyLevel),
		zap.String("initial_role", alert.CurrentRole),
	)

	return alert, nil
}

// AcknowledgeAlert 确认报警
// 业务规则：
// - 仅 status='active' 的报警可确认（数据库侧 compare-and-swap，竞争只有一人成功）
// - 响应记录的 response_time_seconds = acknowledged_at - created_at
// - 报警更新、响应记录、审计日志同一事务提交
func (s *AlertService) AcknowledgeAlert(ctx context.Context, hospitalID, alertID string, input AcknowledgeInput) (*domain.Alert, *domain.AlertAcknowledgment, error) {
	if hospitalID == "" {
		return nil, nil, fmt.Errorf("hospital_id is required")
	}
	if alertID == "" {
		return nil, nil, fmt.Errorf("alert_id is required")
	}
	if input.UserID == "" {
		return nil, nil, fmt.Errorf("user_id is required")
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	alert, err := s.alertsRepo.AcknowledgeAlert(ctx, tx, hospitalID, alertID, input.UserID, now)
	if err != nil {
		if err == repository.ErrAlertNotActive || err == repository.ErrNotFound {
			return nil, nil, err
		}
		s.logger.Error("Failed to acknowledge alert",
			zap.String("hospital_id", hospitalID),
			zap.String("alert_id", alertID),
			zap.String("user_id", input.UserID),
			zap.Error(err),
		)
		return nil, nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	ack := &domain.AlertAcknowledgment{
		AckID:               uuid.New().String(),
		AlertID:             alertID,
		HospitalID:          hospitalID,
		UserID:              input.UserID,
		AcknowledgedAt:      now,
		ResponseTimeSeconds: int(now.Sub(alert.CreatedAt).Seconds()),
		UrgencyAssessment:   input.UrgencyAssessment,
		ResponseAction:      input.ResponseAction,
		Notes:               input.Notes,
	}
	if err := s.acksRepo.CreateAcknowledgment(ctx, tx, ack); err != nil {
		return nil, nil, fmt.Errorf("failed to record acknowledgment: %w", err)
	}

	if err := s.writeAuditTx(ctx, tx, hospitalID, &input.UserID, domain.AuditActionAlertAcknowledged, alertID,
		domain.AuditSeverityInfo, map[string]interface{}{
			"response_time_seconds": ack.ResponseTimeSeconds,
			"escalation_level":      alert.EscalationLevel,
		}); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit acknowledgment: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Dispatch(ctx, notifier.EventAlertAcknowledged, alert, "")
	}
	s.refreshActiveCache(ctx, hospitalID)

	s.logger.Info("Alert acknowledged",
		zap.String("hospital_id", hospitalID),
		zap.String("alert_id", alertID),
		zap.String("user_id", input.UserID),
		zap.Int("response_time_seconds", ack.ResponseTimeSeconds),
	)

	return alert, ack, nil
}

// ResolveAlert 解除报警
// 业务规则：
// - active 和 acknowledged 均可解除；resolved 为终态
// - 解除时间不早于确认时间
func (s *AlertService) ResolveAlert(ctx context.Context, hospitalID, alertID, userID string) (*domain.Alert, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	alert, err := s.alertsRepo.ResolveAlert(ctx, tx, hospitalID, alertID, userID, now)
	if err != nil {
		if err == repository.ErrAlertNotOpen || err == repository.ErrNotFound {
			return nil, err
		}
		s.logger.Error("Failed to resolve alert",
			zap.String("hospital_id", hospitalID),
			zap.String("alert_id", alertID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to resolve alert: %w", err)
	}

	if err := s.writeAuditTx(ctx, tx, hospitalID, &userID, domain.AuditActionAlertResolved, alertID,
		domain.AuditSeverityInfo, map[string]interface{}{
			"escalation_level": alert.EscalationLevel,
			"was_acknowledged": alert.AcknowledgedAt != nil,
		}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit resolution: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Dispatch(ctx, notifier.EventAlertResolved, alert, "")
	}
	s.refreshActiveCache(ctx, hospitalID)

	s.logger.Info("Alert resolved",
		zap.String("hospital_id", hospitalID),
		zap.String("alert_id", alertID),
		zap.String("user_id", userID),
	)

	return alert, nil
}

// ============================================
// 查询相关方法
// ============================================

// GetAlert 获取单个报警
func (s *AlertService) GetAlert(ctx context.Context, hospitalID, alertID string) (*domain.Alert, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}

	alert, err := s.alertsRepo.GetAlert(ctx, hospitalID, alertID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		s.logger.Error("Failed to get alert",
			zap.String("hospital_id", hospitalID),
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// ListAlerts 查询报警列表（支持多条件过滤和分页）
func (s *AlertService) ListAlerts(ctx context.Context, hospitalID string, filters repository.AlertFilters, page, size int) ([]*domain.Alert, int, error) {
	if hospitalID == "" {
		return nil, 0, fmt.Errorf("hospital_id is required")
	}
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	alerts, total, err := s.alertsRepo.ListAlerts(ctx, hospitalID, filters, page, size)
	if err != nil {
		s.logger.Error("Failed to list alerts",
			zap.String("hospital_id", hospitalID),
			zap.Error(err),
		)
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, total, nil
}

// GetActiveAlerts 获取活跃报警（缓存优先，未命中回源数据库并回填）
func (s *AlertService) GetActiveAlerts(ctx context.Context, hospitalID string) ([]*domain.Alert, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}

	if s.activeCache != nil {
		if cached, err := s.activeCache.GetActiveAlerts(ctx, hospitalID); err == nil && cached != nil {
			return cached, nil
		}
	}

	status := domain.AlertStatusActive
	alerts, _, err := s.alertsRepo.ListAlerts(ctx, hospitalID, repository.AlertFilters{Status: &status}, 1, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}

	if s.activeCache != nil {
		if err := s.activeCache.UpdateActiveAlerts(ctx, hospitalID, alerts); err != nil {
			s.logger.Warn("Failed to backfill active alert cache",
				zap.String("hospital_id", hospitalID),
				zap.Error(err),
			)
		}
	}
	return alerts, nil
}

// ListEscalations 查询报警的升级历史
func (s *AlertService) ListEscalations(ctx context.Context, hospitalID, alertID string) ([]*domain.AlertEscalation, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}
	escs, err := s.escsRepo.ListEscalations(ctx, hospitalID, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	return escs, nil
}

// ListAcknowledgments 查询报警的响应记录
func (s *AlertService) ListAcknowledgments(ctx context.Context, hospitalID, alertID string) ([]*domain.AlertAcknowledgment, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}
	acks, err := s.acksRepo.ListAcknowledgments(ctx, hospitalID, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to list acknowledgments: %w", err)
	}
	return acks, nil
}

// ResponseTimeMetrics 按报警类型聚合的响应时间指标
func (s *AlertService) ResponseTimeMetrics(ctx context.Context, hospitalID string, start, end *time.Time) ([]repository.ResponseTimeMetric, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	metrics, err := s.acksRepo.ResponseTimeMetrics(ctx, hospitalID, start, end)
	if err != nil {
		s.logger.Error("Failed to compute response time metrics",
			zap.String("hospital_id", hospitalID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to compute response time metrics: %w", err)
	}
	return metrics, nil
}

// ============================================
// 内部方法
// ============================================

// refreshActiveCache 状态变更后刷新活跃报警缓存快照
func (s *AlertService) refreshActiveCache(ctx context.Context, hospitalID string) {
	if s.activeCache == nil {
		return
	}

	status := domain.AlertStatusActive
	alerts, _, err := s.alertsRepo.ListAlerts(ctx, hospitalID, repository.AlertFilters{Status: &status}, 1, 100)
	if err != nil {
		s.logger.Warn("Failed to refresh active alert cache",
			zap.String("hospital_id", hospitalID),
			zap.Error(err),
		)
		return
	}
	if err := s.activeCache.UpdateActiveAlerts(ctx, hospitalID, alerts); err != nil {
		s.logger.Warn("Failed to update active alert cache",
			zap.String("hospital_id", hospitalID),
			zap.Error(err),
		)
	}
}

// writeAuditTx 事务内写审计日志（失败使整个事务回滚）
func (s *AlertService) writeAuditTx(ctx context.Context, tx *sql.Tx, hospitalID string, userID *string, action, entityID, severity string, metadata map[string]interface{}) error {
	metadataJSON, _ := json.Marshal(metadata)
	log := &domain.AuditLog{
		LogID:      uuid.New().String(),
		HospitalID: hospitalID,
		UserID:     userID,
		Action:     action,
		EntityType: "alert",
		EntityID:   entityID,
		Severity:   severity,
		Metadata:   metadataJSON,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.auditRepo.CreateAuditLog(ctx, tx, log); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// writeAudit 事务外写审计日志（失败只记录，不影响主流程）
func (s *AlertService) writeAudit(ctx context.Context, tx *sql.Tx, hospitalID string, userID *string, action, entityID, severity string, metadata map[string]interface{}) {
	if err := s.writeAuditTx(ctx, tx, hospitalID, userID, action, entityID, severity, metadata); err != nil {
		s.logger.Error("Failed to write audit log",
			zap.String("hospital_id", hospitalID),
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}
