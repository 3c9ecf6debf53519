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

// HospitalHandler 医院管理 Handler
type HospitalHandler struct {
	hospitalService *service.HospitalService
	logger          *zap.Logger
}

// NewHospitalHandler 创建医院管理 Handler
func NewHospitalHandler(hospitalService *service.HospitalService, logger *zap.Logger) *HospitalHandler {
	return &HospitalHandler{
		hospitalService: hospitalService,
		logger:          logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *HospitalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/alert/api/v1/hospitals" && r.Method == http.MethodGet:
		h.ListHospitals(w, r)
	case path == "/alert/api/v1/hospitals" && r.Method == http.MethodPost:
		h.CreateHospital(w, r)
	case strings.HasPrefix(path, "/alert/api/v1/hospitals/") && r.Method == http.MethodGet:
		hospitalID := strings.TrimPrefix(path, "/alert/api/v1/hospitals/")
		if hospitalID != "" && !strings.Contains(hospitalID, "/") {
			h.GetHospital(w, r, hospitalID)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// CreateHospital 创建医院
func (h *HospitalHandler) CreateHospital(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var hospital domain.Hospital
	if err := readBodyJSON(r, 1<<20, &hospital); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	if err := h.hospitalService.CreateHospital(ctx, &hospital); err != nil {
		h.logger.Error("CreateHospital failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(&hospital))
}

// GetHospital 获取单个医院
func (h *HospitalHandler) GetHospital(w http.ResponseWriter, r *http.Request, hospitalID string) {
	ctx := r.Context()

	hospital, err := h.hospitalService.GetHospital(ctx, hospitalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("hospital not found"))
			return
		}
		h.logger.Error("GetHospital failed", zap.String("hospital_id", hospitalID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(hospital))
}

// ListHospitals 查询所有医院
func (h *HospitalHandler) ListHospitals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hospitals, err := h.hospitalService.ListHospitals(ctx)
	if err != nil {
		h.logger.Error("ListHospitals failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	if hospitals == nil {
		hospitals = []*domain.Hospital{}
	}

	writeJSON(w, http.StatusOK, Ok(hospitals))
}
