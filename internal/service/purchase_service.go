package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"affiliate-api/internal/engine"
	"affiliate-api/internal/external"
	"affiliate-api/internal/models"
	"affiliate-api/internal/repository"
)

type PurchaseService interface {
	RecordPurchaseAndDistribute(ctx context.Context, req *RecordPurchaseRequest) (*RecordPurchaseResponse, error)
	GetDistributions(ctx context.Context, purchaseID primitive.ObjectID) ([]*models.CommissionDistribution, error)
}

type purchaseService struct {
	purchaseRepo       repository.PurchaseRepository
	distributionRepo   repository.DistributionRepository
	distributionEngine engine.DistributionEngine
	publisher          external.EventPublisher
}

func NewPurchaseService(
	purchaseRepo repository.PurchaseRepository,
	distributionRepo repository.DistributionRepository,
	distributionEngine engine.DistributionEngine,
	publisher external.EventPublisher,
) PurchaseService {
	return &purchaseService{
		purchaseRepo:       purchaseRepo,
		distributionRepo:   distributionRepo,
		distributionEngine: distributionEngine,
		publisher:          publisher,
	}
}

type RecordPurchaseRequest struct {
	CustomerCoupon     string          `json:"customer_coupon" binding:"required"`
	PurchaseValue      decimal.Decimal `json:"purchase_value" binding:"required"`
	CashbackPercentage decimal.Decimal `json:"cashback_percentage" binding:"required"`
}

type RecordPurchaseResponse struct {
	PurchaseID        string                           `json:"purchase_id"`
	CashbackGenerated decimal.Decimal                  `json:"cashback_generated"`
	Rows              []*models.CommissionDistribution `json:"distribution_rows"`
}

// RecordPurchaseAndDistribute records the purchase and runs the commission
// walk in the same request. An unenrolled coupon still records the
// purchase; it just produces zero commission rows.
func (s *purchaseService) RecordPurchaseAndDistribute(ctx context.Context, req *RecordPurchaseRequest) (*RecordPurchaseResponse, error) {
	purchase := models.NewPurchase(req.CustomerCoupon, req.PurchaseValue, req.CashbackPercentage)
	if err := purchase.Validate(); err != nil {
		return nil, err
	}

	if err := s.purchaseRepo.Create(ctx, purchase); err != nil {
		return nil, err
	}

	result, err := s.distributionEngine.Distribute(ctx, purchase.ID)
	if err != nil {
		return nil, err
	}

	if len(result.Rows) > 0 && !result.WasIdempotent {
		s.publisher.Publish(ctx, "purchase.distributed", map[string]interface{}{
			"purchase_id":        purchase.ID.Hex(),
			"cashback_generated": purchase.CashbackGenerated.String(),
			"rows":               len(result.Rows),
		})
	}

	logrus.WithFields(logrus.Fields{
		"purchase_id": purchase.ID.Hex(),
		"coupon":      purchase.CustomerCoupon,
		"rows":        len(result.Rows),
	}).Info("Purchase recorded")

	return &RecordPurchaseResponse{
		PurchaseID:        purchase.ID.Hex(),
		CashbackGenerated: purchase.CashbackGenerated,
		Rows:              result.Rows,
	}, nil
}

func (s *purchaseService) GetDistributions(ctx context.Context, purchaseID primitive.ObjectID) ([]*models.CommissionDistribution, error) {
	return s.distributionRepo.GetByPurchaseID(ctx, purchaseID)
}
