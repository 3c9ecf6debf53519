package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"medguard-alert/internal/domain"
	"medguard-alert/internal/repository"
)

// 合法的医护角色集合
var validRoles = map[string]bool{
	domain.RoleNurse:           true,
	domain.RoleChargeNurse:     true,
	domain.RoleDepartmentHead:  true,
	domain.RoleOnCallPhysician: true,
}

// UserService 医护人员管理服务
type UserService struct {
	usersRepo repository.HealthcareUsersRepository
	logger    *zap.Logger
}

// NewUserService 创建医护人员管理服务
func NewUserService(usersRepo repository.HealthcareUsersRepository, logger *zap.Logger) *UserService {
	return &UserService{
		usersRepo: usersRepo,
		logger:    logger,
	}
}

// UpsertUser 创建或更新医护人员档案
// 业务规则：
// - user_id, hospital_id, name 必填
// - role 必须合法
func (s *UserService) UpsertUser(ctx context.Context, hospitalID string, user *domain.HealthcareUser) error {
	if hospitalID == "" {
		return fmt.Errorf("hospital_id is required")
	}
	if user == nil {
		return fmt.Errorf("user is required")
	}
	if user.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if user.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !validRoles[user.Role] {
		return fmt.Errorf("invalid role: %s", user.Role)
	}
	if user.HospitalID == "" {
		user.HospitalID = hospitalID
	}
	if user.HospitalID != hospitalID {
		return fmt.Errorf("user hospital_id (%s) does not match provided hospital_id (%s)", user.HospitalID, hospitalID)
	}

	user.UpdatedAt = time.Now().UTC()

	if err := s.usersRepo.UpsertHealthcareUser(ctx, user); err != nil {
		s.logger.Error("Failed to upsert healthcare user",
			zap.String("hospital_id", hospitalID),
			zap.String("user_id", user.UserID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to upsert healthcare user: %w", err)
	}

	s.logger.Info("Healthcare user upserted",
		zap.String("hospital_id", hospitalID),
		zap.String("user_id", user.UserID),
		zap.String("role", user.Role),
	)
	return nil
}

// GetUser 获取单个医护人员
func (s *UserService) GetUser(ctx context.Context, hospitalID, userID string) (*domain.HealthcareUser, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	user, err := s.usersRepo.GetHealthcareUser(ctx, hospitalID, userID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get healthcare user: %w", err)
	}
	return user, nil
}

// ListOnDutyByRole 查询某角色的值班人员
func (s *UserService) ListOnDutyByRole(ctx context.Context, hospitalID, role string) ([]*domain.HealthcareUser, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if !validRoles[role] {
		return nil, fmt.Errorf("invalid role: %s", role)
	}

	users, err := s.usersRepo.ListOnDutyByRole(ctx, hospitalID, role)
	if err != nil {
		s.logger.Error("Failed to list on-duty users",
			zap.String("hospital_id", hospitalID),
			zap.String("role", role),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to list on-duty users: %w", err)
	}
	return users, nil
}

// SetOnDuty 更新值班状态
func (s *UserService) SetOnDuty(ctx context.Context, hospitalID, userID string, onDuty bool) error {
	if hospitalID == "" {
		return fmt.Errorf("hospital_id is required")
	}
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}

	if err := s.usersRepo.SetOnDuty(ctx, hospitalID, userID, onDuty); err != nil {
		if err == repository.ErrNotFound {
			return err
		}
		s.logger.Error("Failed to set on-duty status",
			zap.String("hospital_id", hospitalID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to set on-duty status: %w", err)
	}

	s.logger.Info("On-duty status updated",
		zap.String("hospital_id", hospitalID),
		zap.String("user_id", userID),
		zap.Bool("on_duty", onDuty),
	)
	return nil
}
