package escalator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"medguard-alert/internal/domain"
	"medguard-alert/internal/notifier"
	"medguard-alert/internal/policy"
	"medguard-alert/internal/repository"
)

// Notifier 升级事件通知接口
type Notifier interface {
	Dispatch(ctx context.Context, event string, alert *domain.Alert, targetRole string)
}

// Escalator 报警升级调度器
// 周期轮询 next_escalation_at 到期的 active 报警，沿角色阶梯上移责任角色。
// 认领用 FOR UPDATE SKIP LOCKED，多实例并发运行互不重复处理
type Escalator struct {
	db          *sql.DB
	alerts      repository.AlertsRepository
	escalations repository.EscalationsRepository
	audits      repository.AuditLogsRepository
	store       *policy.Store
	notifier    Notifier
	logger      *zap.Logger

	pollInterval time.Duration
	batchSize    int
}

// NewEscalator 创建升级调度器
func NewEscalator(
	db *sql.DB,
	alerts repository.AlertsRepository,
	escalations repository.EscalationsRepository,
	audits repository.AuditLogsRepository,
	store *policy.Store,
	n Notifier,
	logger *zap.Logger,
	pollInterval time.Duration,
	batchSize int,
) *Escalator {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Escalator{
		db:           db,
		alerts:       alerts,
		escalations:  escalations,
		audits:       audits,
		store:        store,
		notifier:     n,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Run 启动轮询循环（阻塞，ctx 取消后返回）
func (e *Escalator) Run(ctx context.Context) {
	e.logger.Info("Escalator started",
		zap.Duration("poll_interval", e.pollInterval),
		zap.Int("batch_size", e.batchSize),
	)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Escalator stopped")
			return
		case <-ticker.C:
			if count, err := e.RunOnce(ctx); err != nil {
				e.logger.Error("Escalation pass failed", zap.Error(err))
			} else if count > 0 {
				e.logger.Info("Escalation pass completed", zap.Int("escalated", count))
			}
		}
	}
}

// RunOnce 执行一轮升级扫描，返回处理的报警数
// 整批在一个事务内完成：认领、状态更新、升级记录、审计日志一起提交
func (e *Escalator) RunOnce(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	due, err := e.alerts.ListDueForEscalation(ctx, tx, now, e.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list due alerts: %w", err)
	}
	if len(due) == 0 {
		return 0, tx.Commit()
	}

	p := e.store.Current()

	// 提交成功后才分发通知，避免通知了未提交的转换
	type pendingNotify struct {
		alert      *domain.Alert
		targetRole string
	}
	var notifies []pendingNotify

	count := 0
	for _, alert := range due {
		nextRole, ok := p.NextRole(alert.AlertType, alert.CurrentRole)
		if !ok {
			// 阶梯已到顶：清除升级时间，报警保持 active 等待人工处理
			if err := e.exhaustLadder(ctx, tx, alert, now); err != nil {
				return 0, err
			}
			continue
		}

		newLevel := alert.EscalationLevel + 1
		deadline := now.Add(p.Timeout(alert.AlertType, alert.UrgencyLevel))

		if err := e.alerts.ApplyEscalation(ctx, tx, alert.HospitalID, alert.AlertID, nextRole, newLevel, &deadline); err != nil {
			return 0, fmt.Errorf("failed to apply escalation for alert %s: %w", alert.AlertID, err)
		}

		esc := &domain.AlertEscalation{
			EscalationID: uuid.New().String(),
			AlertID:      alert.AlertID,
			HospitalID:   alert.HospitalID,
			FromRole:     alert.CurrentRole,
			ToRole:       nextRole,
			EscalatedAt:  now,
			Reason:       "acknowledgment timeout",
		}
		if err := e.escalations.CreateEscalation(ctx, tx, esc); err != nil {
			return 0, fmt.Errorf("failed to record escalation for alert %s: %w", alert.AlertID, err)
		}

		metadata, _ := json.Marshal(map[string]interface{}{
			"from_role":        alert.CurrentRole,
			"to_role":          nextRole,
			"escalation_level": newLevel,
			"urgency_level":    alert.UrgencyLevel,
		})
		audit := &domain.AuditLog{
			LogID:      uuid.New().String(),
			HospitalID: alert.HospitalID,
			UserID:     nil, // 系统自动动作
			Action:     domain.AuditActionAlertEscalated,
			EntityType: "alert",
			EntityID:   alert.AlertID,
			Severity:   domain.AuditSeverityWarning,
			Metadata:   metadata,
			CreatedAt:  now,
		}
		if err := e.audits.CreateAuditLog(ctx, tx, audit); err != nil {
			return 0, fmt.Errorf("failed to write audit log for alert %s: %w", alert.AlertID, err)
		}

		updated := *alert
		updated.EscalationLevel = newLevel
		updated.CurrentRole = nextRole
		updated.NextEscalationAt = &deadline
		updated.UpdatedAt = now
		notifies = append(notifies, pendingNotify{alert: &updated, targetRole: nextRole})
		count++

		e.logger.Info("Alert escalated",
			zap.String("alert_id", alert.AlertID),
			zap.String("hospital_id", alert.HospitalID),
			zap.String("from_role", alert.CurrentRole),
			zap.String("to_role", nextRole),
			zap.Int("escalation_level", newLevel),
		)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit escalation batch: %w", err)
	}

	if e.notifier != nil {
		for _, n := range notifies {
			e.notifier.Dispatch(ctx, notifier.EventAlertEscalated, n.alert, n.targetRole)
		}
	}

	return count, nil
}

// exhaustLadder 阶梯顶端处理：清除 next_escalation_at 停止重复扫描，
// 角色和级别不变，写一条 critical 审计日志
func (e *Escalator) exhaustLadder(ctx context.Context, tx *sql.Tx, alert *domain.Alert, now time.Time) error {
	if err := e.alerts.ApplyEscalation(ctx, tx, alert.HospitalID, alert.AlertID, alert.CurrentRole, alert.EscalationLevel, nil); err != nil {
		return fmt.Errorf("failed to clear escalation deadline for alert %s: %w", alert.AlertID, err)
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"current_role":     alert.CurrentRole,
		"escalation_level": alert.EscalationLevel,
		"reason":           "escalation ladder exhausted",
	})
	audit := &domain.AuditLog{
		LogID:      uuid.New().String(),
		HospitalID: alert.HospitalID,
		UserID:     nil,
		Action:     domain.AuditActionAlertEscalated,
		EntityType: "alert",
		EntityID:   alert.AlertID,
		Severity:   domain.AuditSeverityCritical,
		Metadata:   metadata,
		CreatedAt:  now,
	}
	if err := e.audits.CreateAuditLog(ctx, tx, audit); err != nil {
		return fmt.Errorf("failed to write audit log for alert %s: %w", alert.AlertID, err)
	}

	e.logger.Warn("Escalation ladder exhausted, alert stays unacknowledged",
		zap.String("alert_id", alert.AlertID),
		zap.String("hospital_id", alert.HospitalID),
		zap.String("current_role", alert.CurrentRole),
	)
	return nil
}
