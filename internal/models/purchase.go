package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Purchase represents a store purchase attributed to an affiliate coupon.
// Purchases are created once and never mutated; the distribution engine
// only flags them as distributed.
type Purchase struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CustomerCoupon     string             `bson:"customer_coupon" json:"customer_coupon"`
	PurchaseValue      decimal.Decimal    `bson:"purchase_value" json:"purchase_value"`
	CashbackPercentage decimal.Decimal    `bson:"cashback_percentage" json:"cashback_percentage"`
	CashbackGenerated  decimal.Decimal    `bson:"cashback_generated" json:"cashback_generated"`
	Distributed        bool               `bson:"distributed" json:"distributed"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
}

// NewPurchase creates a purchase and derives the generated cashback.
func NewPurchase(customerCoupon string, purchaseValue, cashbackPercentage decimal.Decimal) *Purchase {
	return &Purchase{
		ID:                 primitive.NewObjectID(),
		CustomerCoupon:     customerCoupon,
		PurchaseValue:      purchaseValue,
		CashbackPercentage: cashbackPercentage,
		CashbackGenerated:  purchaseValue.Mul(cashbackPercentage).Div(decimal.NewFromInt(100)),
		CreatedAt:          time.Now(),
	}
}

// Validate validates the purchase data
func (p *Purchase) Validate() error {
	if p.CustomerCoupon == "" {
		return fmt.Errorf("customer coupon is required")
	}
	if p.PurchaseValue.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("purchase value must be positive")
	}
	if p.CashbackPercentage.LessThan(decimal.Zero) || p.CashbackPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("cashback percentage must be between 0 and 100")
	}
	return nil
}
