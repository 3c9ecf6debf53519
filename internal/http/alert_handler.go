package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"medguard-alert/internal/domain"
	"medguard-alert/internal/repository"
	"medguard-alert/internal/service"
)

// AlertHandler 报警 Handler
type AlertHandler struct {
	alertService *service.AlertService
	logger       *zap.Logger
}

// NewAlertHandler 创建报警 Handler
func NewAlertHandler(alertService *service.AlertService, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		logger:       logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *AlertHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 路由分发
	path := r.URL.Path
	switch {
	case path == "/alert/api/v1/alerts" && r.Method == http.MethodGet:
		h.ListAlerts(w, r)
	case path == "/alert/api/v1/alerts" && r.Method == http.MethodPost:
		h.CreateAlert(w, r)
	case path == "/alert/api/v1/alerts/active" && r.Method == http.MethodGet:
		h.GetActiveAlerts(w, r)
	case strings.HasSuffix(path, "/acknowledge") && r.Method == http.MethodPut:
		if alertID, ok := alertIDFromPath(path, "/acknowledge"); ok {
			h.AcknowledgeAlert(w, r, alertID)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasSuffix(path, "/resolve") && r.Method == http.MethodPut:
		if alertID, ok := alertIDFromPath(path, "/resolve"); ok {
			h.ResolveAlert(w, r, alertID)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasSuffix(path, "/escalations") && r.Method == http.MethodGet:
		if alertID, ok := alertIDFromPath(path, "/escalations"); ok {
			h.ListEscalations(w, r, alertID)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasSuffix(path, "/acknowledgments") && r.Method == http.MethodGet:
		if alertID, ok := alertIDFromPath(path, "/acknowledgments"); ok {
			h.ListAcknowledgments(w, r, alertID)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasPrefix(path, "/alert/api/v1/alerts/") && r.Method == http.MethodGet:
		alertID := strings.TrimPrefix(path, "/alert/api/v1/alerts/")
		if alertID != "" && !strings.Contains(alertID, "/") {
			h.GetAlert(w, r, alertID)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// alertIDFromPath 从 /alert/api/v1/alerts/{id}{suffix} 提取 alert_id
func alertIDFromPath(path, suffix string) (string, bool) {
	id := strings.TrimSuffix(path, suffix)
	id = strings.TrimPrefix(id, "/alert/api/v1/alerts/")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// CreateAlert 创建报警
func (h *AlertHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	var input service.CreateAlertInput
	if err := readBodyJSON(r, 1<<20, &input); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	if input.CreatedBy == "" {
		input.CreatedBy = r.Header.Get("X-User-Id")
	}

	alert, err := h.alertService.CreateAlert(ctx, hospitalID, input)
	if err != nil {
		h.logger.Error("CreateAlert failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(alert))
}

// ListAlerts 查询报警列表
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	// 解析查询参数
	q := r.URL.Query()
	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("size"), 20)

	filters := repository.AlertFilters{
		StartTime: parseTimeParam(strings.TrimSpace(q.Get("start_time"))),
		EndTime:   parseTimeParam(strings.TrimSpace(q.Get("end_time"))),
	}
	if status := strings.TrimSpace(q.Get("status")); status != "" {
		filters.Status = &status
	}
	if alertType := strings.TrimSpace(q.Get("alert_type")); alertType != "" {
		filters.AlertType = &alertType
	}
	if typesStr := strings.TrimSpace(q.Get("alert_types")); typesStr != "" {
		filters.AlertTypes = strings.Split(typesStr, ",")
	}
	if roomNumber := strings.TrimSpace(q.Get("room_number")); roomNumber != "" {
		filters.RoomNumber = &roomNumber
	}
	if urgencyMin := q.Get("urgency_min"); urgencyMin != "" {
		v := parseInt(urgencyMin, 1)
		filters.UrgencyMin = &v
	}
	if urgencyMax := q.Get("urgency_max"); urgencyMax != "" {
		v := parseInt(urgencyMax, 5)
		filters.UrgencyMax = &v
	}
	if levelMin := q.Get("escalation_level_min"); levelMin != "" {
		v := parseInt(levelMin, 0)
		filters.EscalationLevelMin = &v
	}

	alerts, total, err := h.alertService.ListAlerts(ctx, hospitalID, filters, page, size)
	if err != nil {
		h.logger.Error("ListAlerts failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(PagedResult[*domain.Alert]{
		Items: alerts,
		Total: total,
		Page:  page,
		Size:  size,
	}))
}

// GetActiveAlerts 获取活跃报警（缓存优先）
func (h *AlertHandler) GetActiveAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	alerts, err := h.alertService.GetActiveAlerts(ctx, hospitalID)
	if err != nil {
		h.logger.Error("GetActiveAlerts failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	if alerts == nil {
		alerts = []*domain.Alert{}
	}

	writeJSON(w, http.StatusOK, Ok(alerts))
}

// GetAlert 获取单个报警
func (h *AlertHandler) GetAlert(w http.ResponseWriter, r *http.Request, alertID string) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	alert, err := h.alertService.GetAlert(ctx, hospitalID, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("alert not found"))
			return
		}
		h.logger.Error("GetAlert failed", zap.String("alert_id", alertID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(alert))
}

// AcknowledgeAlert 确认报警
func (h *AlertHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request, alertID string) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	var input service.AcknowledgeInput
	if err := readBodyJSON(r, 1<<20, &input); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	if input.UserID == "" {
		input.UserID = r.Header.Get("X-User-Id")
	}

	alert, ack, err := h.alertService.AcknowledgeAlert(ctx, hospitalID, alertID, input)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeJSON(w, http.StatusNotFound, Fail("alert not found"))
		case errors.Is(err, repository.ErrAlertNotActive):
			writeJSON(w, http.StatusConflict, Fail("alert is not active"))
		default:
			h.logger.Error("AcknowledgeAlert failed", zap.String("alert_id", alertID), zap.Error(err))
			writeJSON(w, http.StatusOK, Fail(err.Error()))
		}
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"alert":          alert,
		"acknowledgment": ack,
	}))
}

// ResolveAlert 解除报警
func (h *AlertHandler) ResolveAlert(w http.ResponseWriter, r *http.Request, alertID string) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	var body struct {
		UserID string `json:"user_id"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	if body.UserID == "" {
		body.UserID = r.Header.Get("X-User-Id")
	}

	alert, err := h.alertService.ResolveAlert(ctx, hospitalID, alertID, body.UserID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeJSON(w, http.StatusNotFound, Fail("alert not found"))
		case errors.Is(err, repository.ErrAlertNotOpen):
			writeJSON(w, http.StatusConflict, Fail("alert is already resolved"))
		default:
			h.logger.Error("ResolveAlert failed", zap.String("alert_id", alertID), zap.Error(err))
			writeJSON(w, http.StatusOK, Fail(err.Error()))
		}
		return
	}

	writeJSON(w, http.StatusOK, Ok(alert))
}

// ListEscalations 查询报警升级历史
func (h *AlertHandler) ListEscalations(w http.ResponseWriter, r *http.Request, alertID string) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	escs, err := h.alertService.ListEscalations(ctx, hospitalID, alertID)
	if err != nil {
		h.logger.Error("ListEscalations failed", zap.String("alert_id", alertID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	if escs == nil {
		escs = []*domain.AlertEscalation{}
	}

	writeJSON(w, http.StatusOK, Ok(escs))
}

// ListAcknowledgments 查询报警响应记录
func (h *AlertHandler) ListAcknowledgments(w http.ResponseWriter, r *http.Request, alertID string) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	acks, err := h.alertService.ListAcknowledgments(ctx, hospitalID, alertID)
	if err != nil {
		h.logger.Error("ListAcknowledgments failed", zap.String("alert_id", alertID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	if acks == nil {
		acks = []*domain.AlertAcknowledgment{}
	}

	writeJSON(w, http.StatusOK, Ok(acks))
}

// ResponseTimeMetrics 响应时间指标（按报警类型聚合）
func (h *AlertHandler) ResponseTimeMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	start := parseTimeParam(strings.TrimSpace(q.Get("start_time")))
	end := parseTimeParam(strings.TrimSpace(q.Get("end_time")))

	metrics, err := h.alertService.ResponseTimeMetrics(ctx, hospitalID, start, end)
	if err != nil {
		h.logger.Error("ResponseTimeMetrics failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	if metrics == nil {
		metrics = []repository.ResponseTimeMetric{}
	}

	writeJSON(w, http.StatusOK, Ok(metrics))
}
