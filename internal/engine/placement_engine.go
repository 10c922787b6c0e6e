package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"affiliate-api/internal/config"
	"affiliate-api/internal/models"
	"affiliate-api/internal/repository"
)

// PlacementEngine assigns a new affiliate a sponsor and slot in the
// ternary tree, spilling over to descendants once a sponsor is full.
type PlacementEngine interface {
	Place(ctx context.Context, sponsorID, newAffiliateID primitive.ObjectID, preference string) (*PlacementResult, error)
}

type PlacementResult struct {
	SponsorID primitive.ObjectID `json:"sponsor_id"`
	Slot      string             `json:"slot"`
}

type placementEngine struct {
	affiliateRepo repository.AffiliateRepository
	lockManager   *repository.NetworkLockManager
	maxDepth      int
	retries       int
	backoff       time.Duration
}

const sponsorLockTTL = 10 * time.Second

func NewPlacementEngine(
	affiliateRepo repository.AffiliateRepository,
	lockManager *repository.NetworkLockManager,
	cfg config.NetworkConfig,
) PlacementEngine {
	return &placementEngine{
		affiliateRepo: affiliateRepo,
		lockManager:   lockManager,
		maxDepth:      cfg.MaxPlacementDepth,
		retries:       cfg.PlacementRetries,
		backoff:       cfg.PlacementBackoff,
	}
}

// Place tries the preferred slot directly under the sponsor, then falls
// back to a breadth-first search in slot order. Slot assignment is a
// conditional update; a lost race re-runs the search against the
// now-current tree state.
func (e *placementEngine) Place(ctx context.Context, sponsorID, newAffiliateID primitive.ObjectID, preference string) (*PlacementResult, error) {
	attempts := e.retries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.backoff):
			}
		}

		result, err := e.tryPlace(ctx, sponsorID, newAffiliateID, preference)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, models.ErrSlotTaken) {
			logrus.WithFields(logrus.Fields{
				"sponsor_id": sponsorID.Hex(),
				"attempt":    attempt + 1,
			}).Debug("Lost slot race, re-evaluating placement")
			continue
		}
		return nil, err
	}

	return nil, models.ErrTransientConflict
}

func (e *placementEngine) tryPlace(ctx context.Context, sponsorID, newAffiliateID primitive.ObjectID, preference string) (*PlacementResult, error) {
	// Best-effort serialization per sponsor. The conditional slot update
	// remains the real guard; the lock only narrows the race window.
	if e.lockManager != nil {
		if lock, err := e.lockManager.LockSponsor(ctx, sponsorID.Hex(), sponsorLockTTL); err == nil {
			defer e.lockManager.ReleaseLock(ctx, lock)
		}
	}

	sponsor, err := e.affiliateRepo.GetByID(ctx, sponsorID)
	if err != nil {
		if errors.Is(err, models.ErrAffiliateNotFound) {
			return nil, models.ErrSponsorNotFound
		}
		return nil, err
	}

	// Direct assignment when the preferred slot is free.
	if models.ValidSlot(preference) && sponsor.Children.Slot(preference) == nil {
		if err := e.affiliateRepo.ClaimSlot(ctx, sponsor.ID, preference, newAffiliateID); err != nil {
			return nil, err
		}
		return &PlacementResult{SponsorID: sponsor.ID, Slot: preference}, nil
	}

	return e.searchAndClaim(ctx, sponsor, newAffiliateID)
}

// searchAndClaim walks the subtree breadth-first, visiting children in
// slot order, and claims the first free slot found within the depth bound.
func (e *placementEngine) searchAndClaim(ctx context.Context, root *models.Affiliate, newAffiliateID primitive.ObjectID) (*PlacementResult, error) {
	type queued struct {
		id    primitive.ObjectID
		depth int
	}

	queue := []queued{{id: root.ID, depth: 0}}
	visited := map[primitive.ObjectID]bool{root.ID: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node, err := e.affiliateRepo.GetByID(ctx, current.id)
		if err != nil {
			return nil, err
		}

		if slot := node.Children.FreeSlot(); slot != "" {
			if err := e.affiliateRepo.ClaimSlot(ctx, node.ID, slot, newAffiliateID); err != nil {
				return nil, err
			}
			return &PlacementResult{SponsorID: node.ID, Slot: slot}, nil
		}

		if current.depth+1 >= e.maxDepth {
			continue
		}

		for _, childID := range node.Children.All() {
			if !visited[childID] {
				visited[childID] = true
				queue = append(queue, queued{id: childID, depth: current.depth + 1})
			}
		}
	}

	return nil, models.ErrNetworkFull
}
