package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlatformSentinelLevel marks the reconciliation-only row that carries the
// platform margin plus any undistributed remainder. It is never credited
// to a ledger.
const PlatformSentinelLevel = 999

// PlatformSentinelID is the affiliate id written on sentinel rows.
var PlatformSentinelID = primitive.NilObjectID

// CommissionDistribution is one credited (or blocked) commission row for a
// purchase. (purchase_id, affiliate_id, level) is unique.
type CommissionDistribution struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PurchaseID           primitive.ObjectID `bson:"purchase_id" json:"purchase_id"`
	AffiliateID          primitive.ObjectID `bson:"affiliate_id" json:"affiliate_id"`
	Level                int                `bson:"level" json:"level"`
	CommissionAmount     decimal.Decimal    `bson:"commission_amount" json:"commission_amount"`
	CommissionPercentage decimal.Decimal    `bson:"commission_percentage" json:"commission_percentage"`
	BaseCashback         decimal.Decimal    `bson:"base_cashback" json:"base_cashback"`
	IsBlocked            bool               `bson:"is_blocked" json:"is_blocked"`
	CreatedAt            time.Time          `bson:"created_at" json:"created_at"`
}

// IsSentinel reports whether the row is the platform reconciliation row.
func (d *CommissionDistribution) IsSentinel() bool {
	return d.Level == PlatformSentinelLevel
}

// CommissionSettings is a versioned per-level percentage schedule. A new
// document is written per admin edit; distributions read the latest version
// at distribution time and never recompute retroactively.
type CommissionSettings struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Version   int                `bson:"version" json:"version"`
	Levels    map[string]string  `bson:"levels" json:"levels"`
	UpdatedBy string             `bson:"updated_by" json:"updated_by"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// DefaultCommissionPercentage applies to levels the schedule leaves unset.
var DefaultCommissionPercentage = decimal.NewFromInt(10)

// PercentageForLevel resolves the percentage for a walk level. Level 0
// (the purchaser) shares the level-1 entry; unset levels fall back to the
// default.
func (s *CommissionSettings) PercentageForLevel(level int) decimal.Decimal {
	if level == 0 {
		level = 1
	}
	if s == nil || s.Levels == nil {
		return DefaultCommissionPercentage
	}
	raw, ok := s.Levels[strconv.Itoa(level)]
	if !ok {
		return DefaultCommissionPercentage
	}
	pct, err := decimal.NewFromString(raw)
	if err != nil {
		return DefaultCommissionPercentage
	}
	return pct
}

// Validate checks that every configured level parses to a sane percentage.
func (s *CommissionSettings) Validate() error {
	for level, raw := range s.Levels {
		if _, err := strconv.Atoi(level); err != nil {
			return fmt.Errorf("invalid level key %q", level)
		}
		pct, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid percentage for level %s: %v", level, err)
		}
		if pct.LessThan(decimal.Zero) || pct.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("percentage for level %s must be between 0 and 100", level)
		}
	}
	return nil
}
