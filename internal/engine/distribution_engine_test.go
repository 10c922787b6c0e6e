package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"affiliate-api/internal/models"
)

type distributionMocks struct {
	purchases     *MockPurchaseRepository
	affiliates    *MockAffiliateRepository
	distributions *MockDistributionRepository
	ledgers       *MockLedgerRepository
	settings      *MockSettingsRepository
	qualification *MockQualificationEvaluator
}

func newDistributionMocks() *distributionMocks {
	return &distributionMocks{
		purchases:     &MockPurchaseRepository{},
		affiliates:    &MockAffiliateRepository{},
		distributions: &MockDistributionRepository{},
		ledgers:       &MockLedgerRepository{},
		settings:      &MockSettingsRepository{},
		qualification: &MockQualificationEvaluator{},
	}
}

func (m *distributionMocks) engine() DistributionEngine {
	return NewDistributionEngine(
		m.purchases, m.affiliates, m.distributions, m.ledgers, m.settings,
		m.qualification, nil,
	)
}

func (m *distributionMocks) assertExpectations(t *testing.T) {
	m.purchases.AssertExpectations(t)
	m.affiliates.AssertExpectations(t)
	m.distributions.AssertExpectations(t)
	m.ledgers.AssertExpectations(t)
	m.settings.AssertExpectations(t)
	m.qualification.AssertExpectations(t)
}

// Three-level chain: a 100.00 purchase at 5% cashback generates 5.00, of
// which 3.50 is distributable. At 10% per level each of the three chain
// members earns 0.35 and the sentinel absorbs 3.95, summing back to 5.00.
func TestDistributionEngine_Distribute_ThreeLevelChain(t *testing.T) {
	m := newDistributionMocks()

	purchase := models.NewPurchase("COUPON-A", decimal.NewFromInt(100), decimal.NewFromInt(5))

	grand := &models.Affiliate{ID: primitive.NewObjectID(), Name: "grand", Coupon: "COUPON-C"}
	sponsor := &models.Affiliate{ID: primitive.NewObjectID(), Name: "sponsor", Coupon: "COUPON-B", SponsorID: &grand.ID}
	purchaser := &models.Affiliate{ID: primitive.NewObjectID(), Name: "buyer", Coupon: "COUPON-A", SponsorID: &sponsor.ID}

	settings := &models.CommissionSettings{
		Version: 1,
		Levels:  map[string]string{"1": "10", "2": "10"},
	}

	m.distributions.On("GetByPurchaseID", mock.Anything, purchase.ID).Return([]*models.CommissionDistribution{}, nil)
	m.purchases.On("GetByID", mock.Anything, purchase.ID).Return(purchase, nil)
	m.affiliates.On("GetByCoupon", mock.Anything, "COUPON-A").Return(purchaser, nil)
	m.settings.On("GetLatest", mock.Anything).Return(settings, nil)
	m.affiliates.On("GetByID", mock.Anything, sponsor.ID).Return(sponsor, nil)
	m.affiliates.On("GetByID", mock.Anything, grand.ID).Return(grand, nil)

	m.qualification.On("Qualifies", mock.Anything, purchaser.ID, 0).Return(true, nil)
	m.qualification.On("Qualifies", mock.Anything, sponsor.ID, 1).Return(true, nil)
	m.qualification.On("Qualifies", mock.Anything, grand.ID, 2).Return(false, nil)

	m.purchases.On("MarkDistributed", mock.Anything, purchase.ID).Return(nil)
	m.distributions.On("CreateMany", mock.Anything, mock.AnythingOfType("[]*models.CommissionDistribution")).Return(nil)

	m.ledgers.On("Credit", mock.Anything, purchaser.ID, mock.Anything, false).Return(nil)
	m.ledgers.On("Credit", mock.Anything, sponsor.ID, mock.Anything, false).Return(nil)
	m.ledgers.On("Credit", mock.Anything, grand.ID, mock.Anything, true).Return(nil)

	result, err := m.engine().Distribute(context.Background(), purchase.ID)

	assert.NoError(t, err)
	assert.False(t, result.WasIdempotent)
	assert.Len(t, result.Rows, 4)

	assert.Equal(t, "0.35", result.Rows[0].CommissionAmount.String())
	assert.Equal(t, "0.35", result.Rows[1].CommissionAmount.String())
	assert.Equal(t, "0.35", result.Rows[2].CommissionAmount.String())
	assert.True(t, result.Rows[2].IsBlocked)

	sentinel := result.Rows[3]
	assert.True(t, sentinel.IsSentinel())
	assert.Equal(t, models.PlatformSentinelID, sentinel.AffiliateID)
	assert.Equal(t, "3.95", sentinel.CommissionAmount.String())

	sum := decimal.Zero
	for _, row := range result.Rows {
		sum = sum.Add(row.CommissionAmount)
	}
	assert.Equal(t, "5", sum.String())

	m.assertExpectations(t)
}

func TestDistributionEngine_Distribute_RootPurchaser(t *testing.T) {
	m := newDistributionMocks()

	purchase := models.NewPurchase("COUPON-A", decimal.NewFromInt(100), decimal.NewFromInt(5))
	purchaser := &models.Affiliate{ID: primitive.NewObjectID(), Name: "root", Coupon: "COUPON-A"}

	m.distributions.On("GetByPurchaseID", mock.Anything, purchase.ID).Return([]*models.CommissionDistribution{}, nil)
	m.purchases.On("GetByID", mock.Anything, purchase.ID).Return(purchase, nil)
	m.affiliates.On("GetByCoupon", mock.Anything, "COUPON-A").Return(purchaser, nil)
	m.settings.On("GetLatest", mock.Anything).Return(&models.CommissionSettings{
		Version: 1,
		Levels:  map[string]string{"1": "10"},
	}, nil)
	m.qualification.On("Qualifies", mock.Anything, purchaser.ID, 0).Return(true, nil)
	m.purchases.On("MarkDistributed", mock.Anything, purchase.ID).Return(nil)
	m.distributions.On("CreateMany", mock.Anything, mock.Anything).Return(nil)
	m.ledgers.On("Credit", mock.Anything, purchaser.ID, mock.Anything, false).Return(nil)

	result, err := m.engine().Distribute(context.Background(), purchase.ID)

	assert.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.Equal(t, "0.35", result.Rows[0].CommissionAmount.String())

	// Sentinel absorbs the margin plus everything the short chain left
	// undistributed: 1.50 + 3.15.
	assert.Equal(t, "4.65", result.Rows[1].CommissionAmount.String())

	m.assertExpectations(t)
}

// A level configured at 0% yields a zero-amount row. The run must still
// finish and credit the remaining levels; a zero row is recorded but never
// sent to the ledger, which rejects non-positive credits.
func TestDistributionEngine_Distribute_ZeroPercentLevelStillCompletes(t *testing.T) {
	m := newDistributionMocks()

	purchase := models.NewPurchase("COUPON-A", decimal.NewFromInt(100), decimal.NewFromInt(5))

	grand := &models.Affiliate{ID: primitive.NewObjectID(), Name: "grand", Coupon: "COUPON-C"}
	sponsor := &models.Affiliate{ID: primitive.NewObjectID(), Name: "sponsor", Coupon: "COUPON-B", SponsorID: &grand.ID}
	purchaser := &models.Affiliate{ID: primitive.NewObjectID(), Name: "buyer", Coupon: "COUPON-A", SponsorID: &sponsor.ID}

	settings := &models.CommissionSettings{
		Version: 2,
		Levels:  map[string]string{"1": "10", "2": "0"},
	}

	m.distributions.On("GetByPurchaseID", mock.Anything, purchase.ID).Return([]*models.CommissionDistribution{}, nil)
	m.purchases.On("GetByID", mock.Anything, purchase.ID).Return(purchase, nil)
	m.affiliates.On("GetByCoupon", mock.Anything, "COUPON-A").Return(purchaser, nil)
	m.settings.On("GetLatest", mock.Anything).Return(settings, nil)
	m.affiliates.On("GetByID", mock.Anything, sponsor.ID).Return(sponsor, nil)
	m.affiliates.On("GetByID", mock.Anything, grand.ID).Return(grand, nil)

	m.qualification.On("Qualifies", mock.Anything, purchaser.ID, 0).Return(true, nil)
	m.qualification.On("Qualifies", mock.Anything, sponsor.ID, 1).Return(true, nil)
	m.qualification.On("Qualifies", mock.Anything, grand.ID, 2).Return(true, nil)

	m.purchases.On("MarkDistributed", mock.Anything, purchase.ID).Return(nil)
	m.distributions.On("CreateMany", mock.Anything, mock.AnythingOfType("[]*models.CommissionDistribution")).Return(nil)

	m.ledgers.On("Credit", mock.Anything, purchaser.ID, mock.Anything, false).Return(nil)
	m.ledgers.On("Credit", mock.Anything, sponsor.ID, mock.Anything, false).Return(nil)

	result, err := m.engine().Distribute(context.Background(), purchase.ID)

	assert.NoError(t, err)
	assert.Len(t, result.Rows, 4)
	assert.Equal(t, "0.35", result.Rows[0].CommissionAmount.String())
	assert.Equal(t, "0.35", result.Rows[1].CommissionAmount.String())
	assert.True(t, result.Rows[2].CommissionAmount.IsZero())

	// Sentinel absorbs the margin plus the zero level's unspent share:
	// 1.50 + 2.80.
	assert.Equal(t, "4.3", result.Rows[3].CommissionAmount.String())

	m.ledgers.AssertNotCalled(t, "Credit", mock.Anything, grand.ID, mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestDistributionEngine_Distribute_Idempotent(t *testing.T) {
	m := newDistributionMocks()

	purchaseID := primitive.NewObjectID()
	existing := []*models.CommissionDistribution{
		{PurchaseID: purchaseID, Level: 0, CommissionAmount: decimal.NewFromFloat(0.35)},
		{PurchaseID: purchaseID, Level: models.PlatformSentinelLevel, CommissionAmount: decimal.NewFromFloat(4.65)},
	}

	m.distributions.On("GetByPurchaseID", mock.Anything, purchaseID).Return(existing, nil)

	result, err := m.engine().Distribute(context.Background(), purchaseID)

	assert.NoError(t, err)
	assert.True(t, result.WasIdempotent)
	assert.Equal(t, existing, result.Rows)

	// No ledger was touched on the replay.
	m.ledgers.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestDistributionEngine_Distribute_UnenrolledCoupon(t *testing.T) {
	m := newDistributionMocks()

	purchase := models.NewPurchase("UNKNOWN", decimal.NewFromInt(50), decimal.NewFromInt(5))

	m.distributions.On("GetByPurchaseID", mock.Anything, purchase.ID).Return([]*models.CommissionDistribution{}, nil)
	m.purchases.On("GetByID", mock.Anything, purchase.ID).Return(purchase, nil)
	m.affiliates.On("GetByCoupon", mock.Anything, "UNKNOWN").Return(nil, models.ErrAffiliateNotFound)

	result, err := m.engine().Distribute(context.Background(), purchase.ID)

	assert.NoError(t, err)
	assert.Empty(t, result.Rows)
	m.assertExpectations(t)
}

func TestDistributionEngine_Distribute_LostDistributionRace(t *testing.T) {
	m := newDistributionMocks()

	purchase := models.NewPurchase("COUPON-A", decimal.NewFromInt(100), decimal.NewFromInt(5))
	purchaser := &models.Affiliate{ID: primitive.NewObjectID(), Name: "buyer", Coupon: "COUPON-A"}

	winner := []*models.CommissionDistribution{
		{PurchaseID: purchase.ID, Level: 0, CommissionAmount: decimal.NewFromFloat(0.35)},
	}

	m.distributions.On("GetByPurchaseID", mock.Anything, purchase.ID).Return([]*models.CommissionDistribution{}, nil).Once()
	m.purchases.On("GetByID", mock.Anything, purchase.ID).Return(purchase, nil)
	m.affiliates.On("GetByCoupon", mock.Anything, "COUPON-A").Return(purchaser, nil)
	m.settings.On("GetLatest", mock.Anything).Return(&models.CommissionSettings{Version: 1, Levels: map[string]string{"1": "10"}}, nil)
	m.qualification.On("Qualifies", mock.Anything, purchaser.ID, 0).Return(true, nil)

	// A concurrent run claimed the guard first; its rows are returned.
	m.purchases.On("MarkDistributed", mock.Anything, purchase.ID).Return(models.ErrAlreadyDistributed)
	m.distributions.On("GetByPurchaseID", mock.Anything, purchase.ID).Return(winner, nil).Once()

	result, err := m.engine().Distribute(context.Background(), purchase.ID)

	assert.NoError(t, err)
	assert.True(t, result.WasIdempotent)
	assert.Equal(t, winner, result.Rows)
	m.ledgers.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.assertExpectations(t)
}
