package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"medguard-alert/internal/domain"
	"medguard-alert/internal/repository"
)

// HospitalService 医院管理服务
type HospitalService struct {
	hospitalsRepo repository.HospitalsRepository
	logger        *zap.Logger
}

// NewHospitalService 创建医院管理服务
func NewHospitalService(hospitalsRepo repository.HospitalsRepository, logger *zap.Logger) *HospitalService {
	return &HospitalService{
		hospitalsRepo: hospitalsRepo,
		logger:        logger,
	}
}

// CreateHospital 创建医院
// 业务规则：
// - name 必填
// - hospital_id 为空时自动生成
func (s *HospitalService) CreateHospital(ctx context.Context, hospital *domain.Hospital) error {
	if hospital == nil {
		return fmt.Errorf("hospital is required")
	}
	if hospital.Name == "" {
		return fmt.Errorf("name is required")
	}
	if hospital.HospitalID == "" {
		hospital.HospitalID = uuid.New().String()
	}

	now := time.Now().UTC()
	hospital.CreatedAt = now
	hospital.UpdatedAt = now

	if err := s.hospitalsRepo.CreateHospital(ctx, hospital); err != nil {
		s.logger.Error("Failed to create hospital",
			zap.String("hospital_id", hospital.HospitalID),
			zap.String("name", hospital.Name),
			zap.Error(err),
		)
		return fmt.Errorf("failed to create hospital: %w", err)
	}

	s.logger.Info("Hospital created",
		zap.String("hospital_id", hospital.HospitalID),
		zap.String("name", hospital.Name),
	)
	return nil
}

// GetHospital 获取单个医院
func (s *HospitalService) GetHospital(ctx context.Context, hospitalID string) (*domain.Hospital, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}

	hospital, err := s.hospitalsRepo.GetHospital(ctx, hospitalID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get hospital: %w", err)
	}
	return hospital, nil
}

// ListHospitals 查询所有医院
func (s *HospitalService) ListHospitals(ctx context.Context) ([]*domain.Hospital, error) {
	hospitals, err := s.hospitalsRepo.ListHospitals(ctx)
	if err != nil {
		s.logger.Error("Failed to list hospitals", zap.Error(err))
		return nil, fmt.Errorf("failed to list hospitals: %w", err)
	}
	return hospitals, nil
}
