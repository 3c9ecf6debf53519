package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
	"medguard-alert/internal/domain"
	"medguard-alert/internal/repository"
	"medguard-alert/internal/service"
)

// AuditHandler 审计日志 Handler
type AuditHandler struct {
	auditService *service.AuditService
	logger       *zap.Logger
}

// NewAuditHandler 创建审计日志 Handler
func NewAuditHandler(auditService *service.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// ListAuditLogs 查询审计日志
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("size"), 20)

	filters := repository.AuditLogFilters{
		StartTime: parseTimeParam(strings.TrimSpace(q.Get("start_time"))),
		EndTime:   parseTimeParam(strings.TrimSpace(q.Get("end_time"))),
	}
	if userID := strings.TrimSpace(q.Get("user_id")); userID != "" {
		filters.UserID = &userID
	}
	if action := strings.TrimSpace(q.Get("action")); action != "" {
		filters.Action = &action
	}
	if entityType := strings.TrimSpace(q.Get("entity_type")); entityType != "" {
		filters.EntityType = &entityType
	}
	if entityID := strings.TrimSpace(q.Get("entity_id")); entityID != "" {
		filters.EntityID = &entityID
	}
	if severity := strings.TrimSpace(q.Get("severity")); severity != "" {
		filters.Severity = &severity
	}
	if severitiesStr := strings.TrimSpace(q.Get("severities")); severitiesStr != "" {
		filters.Severities = strings.Split(severitiesStr, ",")
	}

	logs, total, err := h.auditService.ListAuditLogs(ctx, hospitalID, filters, page, size)
	if err != nil {
		h.logger.Error("ListAuditLogs failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(PagedResult[*domain.AuditLog]{
		Items: logs,
		Total: total,
		Page:  page,
		Size:  size,
	}))
}
