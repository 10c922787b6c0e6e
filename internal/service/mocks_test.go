package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"affiliate-api/internal/engine"
	"affiliate-api/internal/models"
)

type MockAffiliateRepository struct {
	mock.Mock
}

func (m *MockAffiliateRepository) Create(ctx context.Context, affiliate *models.Affiliate) error {
	args := m.Called(ctx, affiliate)
	return args.Error(0)
}

func (m *MockAffiliateRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Affiliate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Affiliate), args.Error(1)
}

func (m *MockAffiliateRepository) GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Affiliate), args.Error(1)
}

func (m *MockAffiliateRepository) GetByCoupon(ctx context.Context, coupon string) (*models.Affiliate, error) {
	args := m.Called(ctx, coupon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Affiliate), args.Error(1)
}

func (m *MockAffiliateRepository) Update(ctx context.Context, affiliate *models.Affiliate) error {
	args := m.Called(ctx, affiliate)
	return args.Error(0)
}

func (m *MockAffiliateRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAffiliateRepository) ClaimSlot(ctx context.Context, sponsorID primitive.ObjectID, slot string, childID primitive.ObjectID) error {
	args := m.Called(ctx, sponsorID, slot, childID)
	return args.Error(0)
}

func (m *MockAffiliateRepository) ReleaseSlot(ctx context.Context, sponsorID primitive.ObjectID, slot string, childID primitive.ObjectID) error {
	args := m.Called(ctx, sponsorID, slot, childID)
	return args.Error(0)
}

func (m *MockAffiliateRepository) CountActiveChildren(ctx context.Context, sponsorID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, sponsorID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAffiliateRepository) SetPreference(ctx context.Context, id primitive.ObjectID, preference string) error {
	args := m.Called(ctx, id, preference)
	return args.Error(0)
}

func (m *MockAffiliateRepository) TouchLastAccess(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAffiliateRepository) CreateIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Create(ctx context.Context, ledger *models.LedgerBalance) error {
	args := m.Called(ctx, ledger)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByAffiliateID(ctx context.Context, affiliateID primitive.ObjectID) (*models.LedgerBalance, error) {
	args := m.Called(ctx, affiliateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerBalance), args.Error(1)
}

func (m *MockLedgerRepository) Credit(ctx context.Context, affiliateID primitive.ObjectID, amount decimal.Decimal, blocked bool) error {
	args := m.Called(ctx, affiliateID, amount, blocked)
	return args.Error(0)
}

func (m *MockLedgerRepository) DebitAvailable(ctx context.Context, affiliateID primitive.ObjectID, amount decimal.Decimal) error {
	args := m.Called(ctx, affiliateID, amount)
	return args.Error(0)
}

func (m *MockLedgerRepository) RestoreAvailable(ctx context.Context, affiliateID primitive.ObjectID, amount decimal.Decimal) error {
	args := m.Called(ctx, affiliateID, amount)
	return args.Error(0)
}

func (m *MockLedgerRepository) SetPixKey(ctx context.Context, affiliateID primitive.ObjectID, pixKey string) error {
	args := m.Called(ctx, affiliateID, pixKey)
	return args.Error(0)
}

func (m *MockLedgerRepository) ResetMonthlyActivity(ctx context.Context, before string) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) CreateIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	args := m.Called(ctx, withdrawal)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) ExistsThisMonth(ctx context.Context, affiliateID primitive.ObjectID, now time.Time) (bool, error) {
	args := m.Called(ctx, affiliateID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockWithdrawalRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status, processedBy, reason string) error {
	args := m.Called(ctx, id, status, processedBy, reason)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) ListByAffiliateID(ctx context.Context, affiliateID primitive.ObjectID, limit, offset int) ([]*models.Withdrawal, error) {
	args := m.Called(ctx, affiliateID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) CreateIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockPlacementEngine struct {
	mock.Mock
}

func (m *MockPlacementEngine) Place(ctx context.Context, sponsorID, newAffiliateID primitive.ObjectID, preference string) (*engine.PlacementResult, error) {
	args := m.Called(ctx, sponsorID, newAffiliateID, preference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.PlacementResult), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	args := m.Called(ctx, routingKey, payload)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
