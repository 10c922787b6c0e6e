package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"affiliate-api/internal/models"
	"affiliate-api/internal/repository"
)

// AdminService manages the commission table. Edits create a new version;
// distributions already written keep the percentages they were computed
// with.
type AdminService interface {
	GetCommissionSettings(ctx context.Context) (*models.CommissionSettings, error)
	UpdateCommissionSettings(ctx context.Context, req *UpdateSettingsRequest) (*models.CommissionSettings, error)
}

type adminService struct {
	settingsRepo repository.SettingsRepository
}

func NewAdminService(settingsRepo repository.SettingsRepository) AdminService {
	return &adminService{
		settingsRepo: settingsRepo,
	}
}

type UpdateSettingsRequest struct {
	Levels    map[string]string `json:"levels" binding:"required"`
	UpdatedBy string            `json:"updated_by"`
}

func (s *adminService) GetCommissionSettings(ctx context.Context) (*models.CommissionSettings, error) {
	settings, err := s.settingsRepo.GetLatest(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		// Never configured: expose the implicit default schedule.
		settings = &models.CommissionSettings{
			Levels: map[string]string{"1": models.DefaultCommissionPercentage.String()},
		}
	}
	return settings, nil
}

func (s *adminService) UpdateCommissionSettings(ctx context.Context, req *UpdateSettingsRequest) (*models.CommissionSettings, error) {
	settings := &models.CommissionSettings{
		Levels:    req.Levels,
		UpdatedBy: req.UpdatedBy,
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if err := s.settingsRepo.Create(ctx, settings); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"version":    settings.Version,
		"updated_by": settings.UpdatedBy,
	}).Info("Commission settings updated")

	return settings, nil
}
