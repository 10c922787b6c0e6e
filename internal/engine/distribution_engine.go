package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"affiliate-api/internal/models"
	"affiliate-api/internal/repository"
)

// Fixed business split: 70% of generated cashback is distributable to the
// network, 30% is retained platform margin.
var (
	distributableShare  = decimal.NewFromFloat(0.70)
	platformMarginShare = decimal.NewFromFloat(0.30)
	hundred             = decimal.NewFromInt(100)
)

// MaxCommissionLevels bounds the ancestor walk (levels 0 through 9).
const MaxCommissionLevels = 10

// invariantEpsilon is the tolerance on the row-sum reconciliation check.
var invariantEpsilon = decimal.New(1, -6)

const purchaseLockTTL = 30 * time.Second

// DistributionEngine orchestrates the per-purchase ancestor walk, writing
// one commission row per visited level plus the platform sentinel row, and
// crediting ledgers through the ledger repository.
type DistributionEngine interface {
	Distribute(ctx context.Context, purchaseID primitive.ObjectID) (*DistributionResult, error)
}

type DistributionResult struct {
	Rows          []*models.CommissionDistribution `json:"rows"`
	WasIdempotent bool                             `json:"was_idempotent"`
}

type distributionEngine struct {
	purchaseRepo     repository.PurchaseRepository
	affiliateRepo    repository.AffiliateRepository
	distributionRepo repository.DistributionRepository
	ledgerRepo       repository.LedgerRepository
	settingsRepo     repository.SettingsRepository
	qualification    QualificationEvaluator
	lockManager      *repository.NetworkLockManager
}

func NewDistributionEngine(
	purchaseRepo repository.PurchaseRepository,
	affiliateRepo repository.AffiliateRepository,
	distributionRepo repository.DistributionRepository,
	ledgerRepo repository.LedgerRepository,
	settingsRepo repository.SettingsRepository,
	qualification QualificationEvaluator,
	lockManager *repository.NetworkLockManager,
) DistributionEngine {
	return &distributionEngine{
		purchaseRepo:     purchaseRepo,
		affiliateRepo:    affiliateRepo,
		distributionRepo: distributionRepo,
		ledgerRepo:       ledgerRepo,
		settingsRepo:     settingsRepo,
		qualification:    qualification,
		lockManager:      lockManager,
	}
}

// walkEntry is one (affiliate, level) pair of the materialized ancestor
// chain.
type walkEntry struct {
	affiliate *models.Affiliate
	level     int
}

// Distribute is idempotent: when rows already exist for the purchase they
// are returned unchanged and no ledger is touched again.
func (e *distributionEngine) Distribute(ctx context.Context, purchaseID primitive.ObjectID) (*DistributionResult, error) {
	existing, err := e.distributionRepo.GetByPurchaseID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &DistributionResult{Rows: existing, WasIdempotent: true}, nil
	}

	// Serialize concurrent triggers per purchase. The distributed-flag
	// compare-and-set below stays as the hard guard.
	if e.lockManager != nil {
		lock, err := e.lockManager.LockPurchase(ctx, purchaseID.Hex(), purchaseLockTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrTransientConflict, err)
		}
		defer e.lockManager.ReleaseLock(ctx, lock)

		// Re-check after acquiring the lock.
		existing, err = e.distributionRepo.GetByPurchaseID(ctx, purchaseID)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return &DistributionResult{Rows: existing, WasIdempotent: true}, nil
		}
	}

	purchase, err := e.purchaseRepo.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}

	// Unmatched coupon: the purchase simply generates no commission.
	purchaser, err := e.affiliateRepo.GetByCoupon(ctx, purchase.CustomerCoupon)
	if err != nil {
		if errors.Is(err, models.ErrAffiliateNotFound) {
			logrus.WithFields(logrus.Fields{
				"purchase_id": purchaseID.Hex(),
				"coupon":      purchase.CustomerCoupon,
			}).Info("Purchase coupon not enrolled, skipping distribution")
			return &DistributionResult{Rows: nil}, nil
		}
		return nil, err
	}

	// The commission table is read fresh per call so admin edits only
	// affect subsequent purchases.
	settings, err := e.settingsRepo.GetLatest(ctx)
	if err != nil {
		return nil, err
	}

	chain, err := e.materializeChain(ctx, purchaser)
	if err != nil {
		return nil, err
	}

	baseCashback := purchase.CashbackGenerated
	totalDistributable := baseCashback.Mul(distributableShare)

	rows := make([]*models.CommissionDistribution, 0, len(chain)+1)
	distributed := decimal.Zero

	for _, entry := range chain {
		percentage := settings.PercentageForLevel(entry.level)
		amount := totalDistributable.Mul(percentage).Div(hundred)

		qualified, err := e.qualification.Qualifies(ctx, entry.affiliate.ID, entry.level)
		if err != nil {
			return nil, err
		}

		rows = append(rows, &models.CommissionDistribution{
			PurchaseID:           purchaseID,
			AffiliateID:          entry.affiliate.ID,
			Level:                entry.level,
			CommissionAmount:     amount,
			CommissionPercentage: percentage,
			BaseCashback:         baseCashback,
			IsBlocked:            !qualified,
		})
		distributed = distributed.Add(amount)
	}

	// Margin plus whatever an early-terminated chain left undistributed.
	undistributed := totalDistributable.Sub(distributed)
	platformShare := baseCashback.Mul(platformMarginShare).Add(undistributed)
	rows = append(rows, &models.CommissionDistribution{
		PurchaseID:       purchaseID,
		AffiliateID:      models.PlatformSentinelID,
		Level:            models.PlatformSentinelLevel,
		CommissionAmount: platformShare,
		BaseCashback:     baseCashback,
	})

	// Verify the bookkeeping invariant before any credit is written.
	if err := verifyRowSum(rows, baseCashback); err != nil {
		logrus.WithFields(logrus.Fields{
			"purchase_id":   purchaseID.Hex(),
			"base_cashback": baseCashback.String(),
		}).Error("Distribution invariant violated, aborting before first credit")
		return nil, err
	}

	// Claim the distribution guard; a concurrent run that won it owns the
	// credit set.
	if err := e.purchaseRepo.MarkDistributed(ctx, purchaseID); err != nil {
		if errors.Is(err, models.ErrAlreadyDistributed) {
			existing, getErr := e.distributionRepo.GetByPurchaseID(ctx, purchaseID)
			if getErr != nil {
				return nil, getErr
			}
			return &DistributionResult{Rows: existing, WasIdempotent: true}, nil
		}
		return nil, err
	}

	if err := e.distributionRepo.CreateMany(ctx, rows); err != nil {
		return nil, err
	}

	for _, row := range rows {
		if row.IsSentinel() {
			// Reconciliation-only row, never credited to a ledger.
			continue
		}
		if row.CommissionAmount.IsZero() {
			// A 0% level keeps its row for the audit trail but moves no
			// money, and the ledger rejects non-positive credits.
			continue
		}
		if err := e.ledgerRepo.Credit(ctx, row.AffiliateID, row.CommissionAmount, row.IsBlocked); err != nil {
			logrus.WithFields(logrus.Fields{
				"purchase_id":  purchaseID.Hex(),
				"affiliate_id": row.AffiliateID.Hex(),
				"level":        row.Level,
			}).WithError(err).Error("Failed to credit commission")
			return nil, fmt.Errorf("failed to credit level %d commission: %w", row.Level, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"purchase_id":    purchaseID.Hex(),
		"levels_visited": len(chain),
		"platform_share": platformShare.String(),
	}).Info("Purchase distributed")

	return &DistributionResult{Rows: rows}, nil
}

// materializeChain walks single-parent lookups into an explicit bounded
// list of (affiliate, level) pairs, starting at the purchaser (level 0).
func (e *distributionEngine) materializeChain(ctx context.Context, purchaser *models.Affiliate) ([]walkEntry, error) {
	chain := []walkEntry{{affiliate: purchaser, level: 0}}

	current := purchaser
	for level := 1; level < MaxCommissionLevels; level++ {
		if current.SponsorID == nil {
			break
		}

		ancestor, err := e.affiliateRepo.GetByID(ctx, *current.SponsorID)
		if err != nil {
			if errors.Is(err, models.ErrAffiliateNotFound) {
				break
			}
			return nil, err
		}

		chain = append(chain, walkEntry{affiliate: ancestor, level: level})
		current = ancestor
	}

	return chain, nil
}

// verifyRowSum checks that all rows, sentinel included, sum back to the
// generated cashback within tolerance.
func verifyRowSum(rows []*models.CommissionDistribution, baseCashback decimal.Decimal) error {
	sum := decimal.Zero
	for _, row := range rows {
		sum = sum.Add(row.CommissionAmount)
	}

	if sum.Sub(baseCashback).Abs().GreaterThan(invariantEpsilon) {
		return fmt.Errorf("%w: rows sum to %s, expected %s",
			models.ErrLedgerInvariant, sum.String(), baseCashback.String())
	}

	return nil
}
