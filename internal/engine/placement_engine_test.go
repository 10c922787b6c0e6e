package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"affiliate-api/internal/config"
	"affiliate-api/internal/models"
)

func testNetworkConfig() config.NetworkConfig {
	return config.NetworkConfig{
		MaxPlacementDepth: 10,
		MaxTreeDepth:      10,
		PlacementRetries:  3,
		PlacementBackoff:  time.Millisecond,
	}
}

func affiliateNode(children models.Children) *models.Affiliate {
	return &models.Affiliate{
		ID:       primitive.NewObjectID(),
		Name:     "node",
		Coupon:   "COUPON",
		Children: children,
	}
}

func TestPlacementEngine_Place_PreferredSlotFree(t *testing.T) {
	repo := &MockAffiliateRepository{}
	sponsor := affiliateNode(models.Children{})
	newID := primitive.NewObjectID()

	repo.On("GetByID", mock.Anything, sponsor.ID).Return(sponsor, nil)
	repo.On("ClaimSlot", mock.Anything, sponsor.ID, models.SlotCenter, newID).Return(nil)

	e := NewPlacementEngine(repo, nil, testNetworkConfig())
	result, err := e.Place(context.Background(), sponsor.ID, newID, models.PreferenceCenter)

	assert.NoError(t, err)
	assert.Equal(t, sponsor.ID, result.SponsorID)
	assert.Equal(t, models.SlotCenter, result.Slot)
	repo.AssertExpectations(t)
}

func TestPlacementEngine_Place_AutoTakesFirstFreeSlot(t *testing.T) {
	repo := &MockAffiliateRepository{}
	leftChild := primitive.NewObjectID()
	sponsor := affiliateNode(models.Children{Left: &leftChild})
	newID := primitive.NewObjectID()

	repo.On("GetByID", mock.Anything, sponsor.ID).Return(sponsor, nil)
	repo.On("ClaimSlot", mock.Anything, sponsor.ID, models.SlotCenter, newID).Return(nil)

	e := NewPlacementEngine(repo, nil, testNetworkConfig())
	result, err := e.Place(context.Background(), sponsor.ID, newID, models.PreferenceAuto)

	assert.NoError(t, err)
	assert.Equal(t, models.SlotCenter, result.Slot)
	repo.AssertExpectations(t)
}

func TestPlacementEngine_Place_SpilloverToChild(t *testing.T) {
	repo := &MockAffiliateRepository{}

	// Sponsor is full; the left child has all three slots open, so the
	// breadth-first search should land there.
	child := affiliateNode(models.Children{})
	full := primitive.NewObjectID()
	sponsor := affiliateNode(models.Children{
		Left:   &child.ID,
		Center: &full,
		Right:  &full,
	})
	fullNode := affiliateNode(models.Children{Left: &full, Center: &full, Right: &full})
	fullNode.ID = full
	newID := primitive.NewObjectID()

	repo.On("GetByID", mock.Anything, sponsor.ID).Return(sponsor, nil)
	repo.On("GetByID", mock.Anything, child.ID).Return(child, nil)
	repo.On("ClaimSlot", mock.Anything, child.ID, models.SlotLeft, newID).Return(nil)

	e := NewPlacementEngine(repo, nil, testNetworkConfig())
	result, err := e.Place(context.Background(), sponsor.ID, newID, models.PreferenceAuto)

	assert.NoError(t, err)
	assert.Equal(t, child.ID, result.SponsorID)
	assert.Equal(t, models.SlotLeft, result.Slot)
	repo.AssertExpectations(t)
}

func TestPlacementEngine_Place_RetriesAfterLostSlotRace(t *testing.T) {
	repo := &MockAffiliateRepository{}
	sponsorID := primitive.NewObjectID()
	newID := primitive.NewObjectID()

	// First read sees left free, but the conditional claim loses the race.
	before := affiliateNode(models.Children{})
	before.ID = sponsorID
	taken := primitive.NewObjectID()
	after := affiliateNode(models.Children{Left: &taken})
	after.ID = sponsorID

	repo.On("GetByID", mock.Anything, sponsorID).Return(before, nil).Twice()
	repo.On("ClaimSlot", mock.Anything, sponsorID, models.SlotLeft, newID).Return(models.ErrSlotTaken).Once()
	repo.On("GetByID", mock.Anything, sponsorID).Return(after, nil).Twice()
	repo.On("ClaimSlot", mock.Anything, sponsorID, models.SlotCenter, newID).Return(nil).Once()

	e := NewPlacementEngine(repo, nil, testNetworkConfig())
	result, err := e.Place(context.Background(), sponsorID, newID, models.PreferenceAuto)

	assert.NoError(t, err)
	assert.Equal(t, models.SlotCenter, result.Slot)
	repo.AssertExpectations(t)
}

func TestPlacementEngine_Place_NetworkFull(t *testing.T) {
	repo := &MockAffiliateRepository{}
	occupied := primitive.NewObjectID()
	sponsor := affiliateNode(models.Children{Left: &occupied, Center: &occupied, Right: &occupied})
	newID := primitive.NewObjectID()

	cfg := testNetworkConfig()
	cfg.MaxPlacementDepth = 1
	repo.On("GetByID", mock.Anything, sponsor.ID).Return(sponsor, nil)

	e := NewPlacementEngine(repo, nil, cfg)
	result, err := e.Place(context.Background(), sponsor.ID, newID, models.PreferenceAuto)

	assert.ErrorIs(t, err, models.ErrNetworkFull)
	assert.Nil(t, result)
}

func TestPlacementEngine_Place_SponsorNotFound(t *testing.T) {
	repo := &MockAffiliateRepository{}
	sponsorID := primitive.NewObjectID()

	repo.On("GetByID", mock.Anything, sponsorID).Return(nil, models.ErrAffiliateNotFound)

	e := NewPlacementEngine(repo, nil, testNetworkConfig())
	result, err := e.Place(context.Background(), sponsorID, primitive.NewObjectID(), models.PreferenceAuto)

	assert.ErrorIs(t, err, models.ErrSponsorNotFound)
	assert.Nil(t, result)
}

func TestPlacementEngine_Place_ExhaustedRetries(t *testing.T) {
	repo := &MockAffiliateRepository{}
	sponsor := affiliateNode(models.Children{})
	newID := primitive.NewObjectID()

	repo.On("GetByID", mock.Anything, sponsor.ID).Return(sponsor, nil)
	repo.On("ClaimSlot", mock.Anything, sponsor.ID, models.SlotLeft, newID).Return(models.ErrSlotTaken)

	e := NewPlacementEngine(repo, nil, testNetworkConfig())
	result, err := e.Place(context.Background(), sponsor.ID, newID, models.PreferenceLeft)

	assert.ErrorIs(t, err, models.ErrTransientConflict)
	assert.Nil(t, result)
}
