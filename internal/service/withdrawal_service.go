package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"affiliate-api/internal/external"
	"affiliate-api/internal/models"
	"affiliate-api/internal/repository"
)

// Withdrawal requests are only accepted on these days of the month.
var withdrawalDays = map[int]bool{10: true, 15: true}

const ledgerLockTTL = 10 * time.Second

// timeNow is swapped in tests to pin the withdrawal window and the
// monthly-activity period.
var timeNow = time.Now

type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, req *WithdrawalRequest) (*WithdrawalResponse, error)
	ProcessWithdrawal(ctx context.Context, req *ProcessWithdrawalRequest) (*models.Withdrawal, error)
	GetWithdrawals(ctx context.Context, affiliateID primitive.ObjectID, limit, offset int) ([]*models.Withdrawal, error)
}

type withdrawalService struct {
	withdrawalRepo repository.WithdrawalRepository
	ledgerRepo     repository.LedgerRepository
	lockManager    *repository.NetworkLockManager
	publisher      external.EventPublisher
	fee            decimal.Decimal
}

func NewWithdrawalService(
	withdrawalRepo repository.WithdrawalRepository,
	ledgerRepo repository.LedgerRepository,
	lockManager *repository.NetworkLockManager,
	publisher external.EventPublisher,
	feeAmount decimal.Decimal,
) WithdrawalService {
	return &withdrawalService{
		withdrawalRepo: withdrawalRepo,
		ledgerRepo:     ledgerRepo,
		lockManager:    lockManager,
		publisher:      publisher,
		fee:            feeAmount,
	}
}

type WithdrawalRequest struct {
	AffiliateID primitive.ObjectID `json:"affiliate_id"`
	Amount      decimal.Decimal    `json:"amount"`
}

type WithdrawalResponse struct {
	WithdrawalID string          `json:"withdrawal_id"`
	Amount       decimal.Decimal `json:"amount"`
	FeeAmount    decimal.Decimal `json:"fee_amount"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	Status       string          `json:"status"`
}

type ProcessWithdrawalRequest struct {
	WithdrawalID primitive.ObjectID `json:"withdrawal_id"`
	Approve      bool               `json:"approve"`
	ProcessedBy  string             `json:"processed_by"`
	Reason       string             `json:"reason,omitempty"`
}

// RequestWithdrawal runs the eligibility gate and, on success, creates a
// pending withdrawal while immediately reserving the amount out of the
// available balance so a concurrent request cannot double-spend it.
func (s *withdrawalService) RequestWithdrawal(ctx context.Context, req *WithdrawalRequest) (*WithdrawalResponse, error) {
	// Serialize per affiliate: the reservation must see a settled balance.
	if s.lockManager != nil {
		lock, err := s.lockManager.LockLedger(ctx, req.AffiliateID.Hex(), ledgerLockTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrTransientConflict, err)
		}
		defer s.lockManager.ReleaseLock(ctx, lock)
	}

	ledger, err := s.ledgerRepo.GetByAffiliateID(ctx, req.AffiliateID)
	if err != nil {
		return nil, err
	}

	now := timeNow()
	if err := s.validateRequest(ctx, req, ledger, now); err != nil {
		return nil, err
	}

	withdrawal := models.NewWithdrawal(req.AffiliateID, req.Amount, s.fee, ledger.PixKey)
	if err := withdrawal.Validate(); err != nil {
		return nil, err
	}

	if err := s.withdrawalRepo.Create(ctx, withdrawal); err != nil {
		return nil, err
	}

	// Reserve the funds. If the debit fails the pending request must not
	// survive, otherwise it would block the monthly window for nothing.
	if err := s.ledgerRepo.DebitAvailable(ctx, req.AffiliateID, req.Amount); err != nil {
		if setErr := s.withdrawalRepo.SetStatus(ctx, withdrawal.ID, models.WithdrawalRejected, "system", "reservation failed"); setErr != nil {
			logrus.WithError(setErr).Error("Failed to void withdrawal after reservation failure")
		}
		return nil, err
	}

	s.publisher.Publish(ctx, "withdrawal.requested", map[string]interface{}{
		"withdrawal_id": withdrawal.ID.Hex(),
		"affiliate_id":  req.AffiliateID.Hex(),
		"amount":        req.Amount.String(),
	})

	logrus.WithFields(logrus.Fields{
		"withdrawal_id": withdrawal.ID.Hex(),
		"affiliate_id":  req.AffiliateID.Hex(),
		"amount":        req.Amount.String(),
	}).Info("Withdrawal requested")

	return &WithdrawalResponse{
		WithdrawalID: withdrawal.ID.Hex(),
		Amount:       withdrawal.AmountRequested,
		FeeAmount:    withdrawal.FeeAmount,
		NetAmount:    withdrawal.NetAmount,
		Status:       withdrawal.Status,
	}, nil
}

func (s *withdrawalService) validateRequest(ctx context.Context, req *WithdrawalRequest, ledger *models.LedgerBalance, now time.Time) error {
	if req.Amount.LessThanOrEqual(decimal.Zero) || req.Amount.GreaterThan(ledger.AvailableBalance) {
		return models.ErrInsufficientBalance
	}

	if ledger.PixKey == "" {
		return models.ErrMissingPixKey
	}

	if !ledger.IsActiveThisMonth(now) {
		return models.ErrNotActiveThisMonth
	}

	if !withdrawalDays[now.Day()] {
		return models.ErrOutsideWithdrawalWindow
	}

	exists, err := s.withdrawalRepo.ExistsThisMonth(ctx, req.AffiliateID, now)
	if err != nil {
		return err
	}
	if exists {
		return models.ErrDuplicateMonthlyRequest
	}

	return nil
}

// ProcessWithdrawal applies an admin decision. Rejection restores the
// reserved amount; approval finalizes the payout. Both are terminal.
func (s *withdrawalService) ProcessWithdrawal(ctx context.Context, req *ProcessWithdrawalRequest) (*models.Withdrawal, error) {
	withdrawal, err := s.withdrawalRepo.GetByID(ctx, req.WithdrawalID)
	if err != nil {
		return nil, err
	}

	if withdrawal.IsTerminal() {
		return nil, models.ErrWithdrawalNotPending
	}

	status := models.WithdrawalRejected
	if req.Approve {
		status = models.WithdrawalApproved
	}

	if err := s.withdrawalRepo.SetStatus(ctx, withdrawal.ID, status, req.ProcessedBy, req.Reason); err != nil {
		return nil, err
	}

	if !req.Approve {
		if err := s.ledgerRepo.RestoreAvailable(ctx, withdrawal.AffiliateID, withdrawal.AmountRequested); err != nil {
			return nil, fmt.Errorf("failed to restore reserved amount: %w", err)
		}
	}

	s.publisher.Publish(ctx, "withdrawal."+status, map[string]interface{}{
		"withdrawal_id": withdrawal.ID.Hex(),
		"affiliate_id":  withdrawal.AffiliateID.Hex(),
		"amount":        withdrawal.AmountRequested.String(),
	})

	updated, err := s.withdrawalRepo.GetByID(ctx, withdrawal.ID)
	if err != nil {
		if errors.Is(err, models.ErrWithdrawalNotFound) {
			return withdrawal, nil
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"withdrawal_id": updated.ID.Hex(),
		"status":        updated.Status,
		"processed_by":  req.ProcessedBy,
	}).Info("Withdrawal processed")

	return updated, nil
}

func (s *withdrawalService) GetWithdrawals(ctx context.Context, affiliateID primitive.ObjectID, limit, offset int) ([]*models.Withdrawal, error) {
	return s.withdrawalRepo.ListByAffiliateID(ctx, affiliateID, limit, offset)
}
