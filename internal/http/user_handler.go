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

// UserHandler 医护人员管理 Handler
type UserHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

// NewUserHandler 创建医护人员管理 Handler
func NewUserHandler(userService *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *UserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/alert/api/v1/healthcare-users" && r.Method == http.MethodPut:
		h.UpsertUser(w, r)
	case path == "/alert/api/v1/healthcare-users/on-duty" && r.Method == http.MethodGet:
		h.ListOnDutyByRole(w, r)
	case strings.HasSuffix(path, "/on-duty") && r.Method == http.MethodPut:
		userID := strings.TrimSuffix(path, "/on-duty")
		userID = strings.TrimPrefix(userID, "/alert/api/v1/healthcare-users/")
		if userID != "" && !strings.Contains(userID, "/") {
			h.SetOnDuty(w, r, userID)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasPrefix(path, "/alert/api/v1/healthcare-users/") && r.Method == http.MethodGet:
		userID := strings.TrimPrefix(path, "/alert/api/v1/healthcare-users/")
		if userID != "" && !strings.Contains(userID, "/") {
			h.GetUser(w, r, userID)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// UpsertUser 创建或更新医护人员档案
func (h *UserHandler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	var user domain.HealthcareUser
	if err := readBodyJSON(r, 1<<20, &user); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	if err := h.userService.UpsertUser(ctx, hospitalID, &user); err != nil {
		h.logger.Error("UpsertUser failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(&user))
}

// GetUser 获取单个医护人员
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUser(ctx, hospitalID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("healthcare user not found"))
			return
		}
		h.logger.Error("GetUser failed", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(user))
}

// ListOnDutyByRole 查询某角色的值班人员
func (h *UserHandler) ListOnDutyByRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	role := strings.TrimSpace(r.URL.Query().Get("role"))
	if role == "" {
		writeJSON(w, http.StatusOK, Fail("role is required"))
		return
	}

	users, err := h.userService.ListOnDutyByRole(ctx, hospitalID, role)
	if err != nil {
		h.logger.Error("ListOnDutyByRole failed", zap.String("role", role), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	if users == nil {
		users = []*domain.HealthcareUser{}
	}

	writeJSON(w, http.StatusOK, Ok(users))
}

// SetOnDuty 更新值班状态
func (h *UserHandler) SetOnDuty(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()

	hospitalID, ok := hospitalIDFromReq(w, r)
	if !ok {
		return
	}

	var body struct {
		OnDuty *bool `json:"on_duty"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil || body.OnDuty == nil {
		writeJSON(w, http.StatusOK, Fail("on_duty is required"))
		return
	}

	if err := h.userService.SetOnDuty(ctx, hospitalID, userID, *body.OnDuty); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("healthcare user not found"))
			return
		}
		h.logger.Error("SetOnDuty failed", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"user_id": userID,
		"on_duty": *body.OnDuty,
	}))
}
