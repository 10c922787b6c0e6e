package engine

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"affiliate-api/internal/repository"
)

// MinActiveReferrals is the qualification threshold for unblocked network
// commission beyond the direct sponsor level.
const MinActiveReferrals = 3

// QualificationEvaluator decides whether an ancestor is eligible for an
// unblocked commission credit at a given walk level.
type QualificationEvaluator interface {
	Qualifies(ctx context.Context, affiliateID primitive.ObjectID, level int) (bool, error)
}

type qualificationEvaluator struct {
	affiliateRepo repository.AffiliateRepository
}

func NewQualificationEvaluator(affiliateRepo repository.AffiliateRepository) QualificationEvaluator {
	return &qualificationEvaluator{
		affiliateRepo: affiliateRepo,
	}
}

// Qualifies always passes the purchaser (level 0) and the direct sponsor
// (level 1). Deeper levels need at least MinActiveReferrals active direct
// referrals, counted fresh against the store at evaluation time. A
// referral completing mid-distribution may or may not be counted; that
// race is accepted and never corrected retroactively.
func (q *qualificationEvaluator) Qualifies(ctx context.Context, affiliateID primitive.ObjectID, level int) (bool, error) {
	if level <= 1 {
		return true, nil
	}

	count, err := q.affiliateRepo.CountActiveChildren(ctx, affiliateID)
	if err != nil {
		return false, err
	}

	return count >= MinActiveReferrals, nil
}
