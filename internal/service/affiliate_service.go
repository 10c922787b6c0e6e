package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"affiliate-api/internal/engine"
	"affiliate-api/internal/external"
	"affiliate-api/internal/models"
	"affiliate-api/internal/repository"
)

type AffiliateService interface {
	Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error)
	GetAffiliate(ctx context.Context, id primitive.ObjectID) (*models.Affiliate, error)
	GetBalance(ctx context.Context, id primitive.ObjectID) (*BalanceResponse, error)
	SetPreference(ctx context.Context, id primitive.ObjectID, preference string) error
	SetPixKey(ctx context.Context, id primitive.ObjectID, pixKey string) error
}

type affiliateService struct {
	affiliateRepo   repository.AffiliateRepository
	ledgerRepo      repository.LedgerRepository
	placementEngine engine.PlacementEngine
	publisher       external.EventPublisher
}

func NewAffiliateService(
	affiliateRepo repository.AffiliateRepository,
	ledgerRepo repository.LedgerRepository,
	placementEngine engine.PlacementEngine,
	publisher external.EventPublisher,
) AffiliateService {
	return &affiliateService{
		affiliateRepo:   affiliateRepo,
		ledgerRepo:      ledgerRepo,
		placementEngine: placementEngine,
		publisher:       publisher,
	}
}

type RegisterRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Coupon      string `json:"coupon" binding:"required"`
	SponsorCode string `json:"sponsor_code,omitempty"`
	Preference  string `json:"preference,omitempty"`
}

type RegisterResponse struct {
	AffiliateID  string `json:"affiliate_id"`
	ReferralCode string `json:"referral_code"`
	SponsorID    string `json:"sponsor_id,omitempty"`
	AssignedSlot string `json:"assigned_slot,omitempty"`
}

type BalanceResponse struct {
	AffiliateID       string          `json:"affiliate_id"`
	AvailableBalance  decimal.Decimal `json:"available_balance"`
	FrozenBalance     decimal.Decimal `json:"frozen_balance"`
	TotalEarnings     decimal.Decimal `json:"total_earnings"`
	ActiveThisMonth   bool            `json:"active_this_month"`
	PixKeyConfigured  bool            `json:"pix_key_configured"`
}

// Register places a new affiliate into the sponsor's tree and opens an
// empty ledger. Placement failure rejects the registration whole; no
// partial record survives.
func (s *affiliateService) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	preference := req.Preference
	if preference == "" {
		preference = models.PreferenceAuto
	}
	if !models.ValidPreference(preference) {
		return nil, fmt.Errorf("invalid preference: %s", preference)
	}

	affiliate := models.NewAffiliate(req.Name, req.Coupon)
	affiliate.Preference = preference

	var placement *engine.PlacementResult
	if req.SponsorCode != "" {
		sponsor, err := s.affiliateRepo.GetByReferralCode(ctx, req.SponsorCode)
		if err != nil {
			if errors.Is(err, models.ErrAffiliateNotFound) {
				return nil, models.ErrSponsorNotFound
			}
			return nil, err
		}

		placement, err = s.placementEngine.Place(ctx, sponsor.ID, affiliate.ID, preference)
		if err != nil {
			return nil, err
		}

		affiliate.SponsorID = &placement.SponsorID
		affiliate.PositionSlot = placement.Slot
	}

	if err := affiliate.Validate(); err != nil {
		s.undoPlacement(ctx, placement, affiliate.ID)
		return nil, err
	}

	if err := s.affiliateRepo.Create(ctx, affiliate); err != nil {
		// Roll the claimed slot back so registration never half-completes.
		s.undoPlacement(ctx, placement, affiliate.ID)
		return nil, err
	}

	if err := s.ledgerRepo.Create(ctx, models.NewLedgerBalance(affiliate.ID)); err != nil {
		s.undoPlacement(ctx, placement, affiliate.ID)
		if delErr := s.affiliateRepo.Delete(ctx, affiliate.ID); delErr != nil {
			logrus.WithError(delErr).Error("Failed to roll back affiliate after ledger creation failure")
		}
		return nil, err
	}

	s.publisher.Publish(ctx, "affiliate.registered", map[string]interface{}{
		"affiliate_id":  affiliate.ID.Hex(),
		"referral_code": affiliate.ReferralCode,
		"sponsor_id":    hexOrEmpty(affiliate.SponsorID),
		"slot":          affiliate.PositionSlot,
	})

	resp := &RegisterResponse{
		AffiliateID:  affiliate.ID.Hex(),
		ReferralCode: affiliate.ReferralCode,
	}
	if placement != nil {
		resp.SponsorID = placement.SponsorID.Hex()
		resp.AssignedSlot = placement.Slot
	}

	logrus.WithFields(logrus.Fields{
		"affiliate_id": resp.AffiliateID,
		"sponsor_id":   resp.SponsorID,
		"slot":         resp.AssignedSlot,
	}).Info("Affiliate registered")

	return resp, nil
}

func (s *affiliateService) undoPlacement(ctx context.Context, placement *engine.PlacementResult, childID primitive.ObjectID) {
	if placement == nil {
		return
	}
	if err := s.affiliateRepo.ReleaseSlot(ctx, placement.SponsorID, placement.Slot, childID); err != nil {
		logrus.WithFields(logrus.Fields{
			"sponsor_id": placement.SponsorID.Hex(),
			"slot":       placement.Slot,
		}).WithError(err).Error("Failed to release slot after registration failure")
	}
}

func (s *affiliateService) GetAffiliate(ctx context.Context, id primitive.ObjectID) (*models.Affiliate, error) {
	affiliate, err := s.affiliateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Reads refresh the recency signal used for the tree-display flag.
	if err := s.affiliateRepo.TouchLastAccess(ctx, id); err != nil {
		logrus.WithError(err).Warn("Failed to update last access")
	}

	return affiliate, nil
}

func (s *affiliateService) GetBalance(ctx context.Context, id primitive.ObjectID) (*BalanceResponse, error) {
	ledger, err := s.ledgerRepo.GetByAffiliateID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &BalanceResponse{
		AffiliateID:      id.Hex(),
		AvailableBalance: ledger.AvailableBalance,
		FrozenBalance:    ledger.FrozenBalance,
		TotalEarnings:    ledger.TotalEarnings,
		ActiveThisMonth:  ledger.IsActiveThisMonth(timeNow()),
		PixKeyConfigured: ledger.PixKey != "",
	}, nil
}

func (s *affiliateService) SetPreference(ctx context.Context, id primitive.ObjectID, preference string) error {
	if !models.ValidPreference(preference) {
		return fmt.Errorf("invalid preference: %s", preference)
	}
	return s.affiliateRepo.SetPreference(ctx, id, preference)
}

func (s *affiliateService) SetPixKey(ctx context.Context, id primitive.ObjectID, pixKey string) error {
	if pixKey == "" {
		return fmt.Errorf("pix key is required")
	}
	return s.ledgerRepo.SetPixKey(ctx, id, pixKey)
}

func hexOrEmpty(id *primitive.ObjectID) string {
	if id == nil {
		return ""
	}
	return id.Hex()
}
