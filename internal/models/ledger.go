package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LedgerBalance holds an affiliate's two-bucket balance. A single credit
// lands in exactly one of available/frozen, never split. Mutated only by
// the ledger repository.
type LedgerBalance struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	AffiliateID      primitive.ObjectID `bson:"affiliate_id" json:"affiliate_id"`
	AvailableBalance decimal.Decimal    `bson:"available_balance" json:"available_balance"`
	FrozenBalance    decimal.Decimal    `bson:"frozen_balance" json:"frozen_balance"`
	TotalEarnings    decimal.Decimal    `bson:"total_earnings" json:"total_earnings"`
	ActivePeriod     string             `bson:"active_period,omitempty" json:"active_period,omitempty"`
	PixKey           string             `bson:"pix_key,omitempty" json:"pix_key,omitempty"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}

// NewLedgerBalance creates an empty ledger for a freshly placed affiliate.
func NewLedgerBalance(affiliateID primitive.ObjectID) *LedgerBalance {
	now := time.Now()
	return &LedgerBalance{
		AffiliateID:      affiliateID,
		AvailableBalance: decimal.Zero,
		FrozenBalance:    decimal.Zero,
		TotalEarnings:    decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ActivityPeriod formats t as the calendar month key stored on credits.
func ActivityPeriod(t time.Time) string {
	return t.Format("2006-01")
}

// IsActiveThisMonth reports whether the ledger received any credit in the
// current calendar month. Feeds the withdrawal gate's monthly-activity
// check; distinct from the tree-display recency flag.
func (l *LedgerBalance) IsActiveThisMonth(now time.Time) bool {
	return l.ActivePeriod == ActivityPeriod(now)
}

// Validate validates the ledger balance data
func (l *LedgerBalance) Validate() error {
	if l.AffiliateID.IsZero() {
		return fmt.Errorf("affiliate ID is required")
	}
	if l.AvailableBalance.LessThan(decimal.Zero) {
		return fmt.Errorf("available balance cannot be negative")
	}
	if l.FrozenBalance.LessThan(decimal.Zero) {
		return fmt.Errorf("frozen balance cannot be negative")
	}
	return nil
}
