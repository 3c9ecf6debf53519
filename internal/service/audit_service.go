package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"medguard-alert/internal/domain"
	"medguard-alert/internal/repository"
)

// AuditService 审计日志查询服务
type AuditService struct {
	auditRepo repository.AuditLogsRepository
	logger    *zap.Logger
}

// NewAuditService 创建审计日志服务
func NewAuditService(auditRepo repository.AuditLogsRepository, logger *zap.Logger) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// ListAuditLogs 查询审计日志（支持多条件过滤和分页）
// 业务规则：
// - hospital_id 必填
// - severity 过滤值必须合法
func (s *AuditService) ListAuditLogs(ctx context.Context, hospitalID string, filters repository.AuditLogFilters, page, size int) ([]*domain.AuditLog, int, error) {
	if hospitalID == "" {
		return nil, 0, fmt.Errorf("hospital_id is required")
	}
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 200 {
		size = 200
	}

	if filters.Severity != nil {
		switch *filters.Severity {
		case domain.AuditSeverityInfo, domain.AuditSeverityWarning, domain.AuditSeverityError, domain.AuditSeverityCritical:
		default:
			return nil, 0, fmt.Errorf("invalid severity: %s", *filters.Severity)
		}
	}

	logs, total, err := s.auditRepo.ListAuditLogs(ctx, hospitalID, filters, page, size)
	if err != nil {
		s.logger.Error("Failed to list audit logs",
			zap.String("hospital_id", hospitalID),
			zap.Error(err),
		)
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, total, nil
}
