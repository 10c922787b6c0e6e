package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Withdrawal statuses. A withdrawal is created pending and transitions only
// via admin action; approved and rejected are terminal.
const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
)

// Withdrawal is an affiliate's request to pay out available balance to a
// pix key. The requested amount is reserved (debited from available) at
// creation time.
type Withdrawal struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	AffiliateID     primitive.ObjectID `bson:"affiliate_id" json:"affiliate_id"`
	AmountRequested decimal.Decimal    `bson:"amount_requested" json:"amount_requested"`
	FeeAmount       decimal.Decimal    `bson:"fee_amount" json:"fee_amount"`
	NetAmount       decimal.Decimal    `bson:"net_amount" json:"net_amount"`
	Status          string             `bson:"status" json:"status"`
	PixKey          string             `bson:"pix_key" json:"pix_key"`
	ProcessedBy     string             `bson:"processed_by,omitempty" json:"processed_by,omitempty"`
	RejectReason    string             `bson:"reject_reason,omitempty" json:"reject_reason,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	ProcessedAt     *time.Time         `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// NewWithdrawal creates a pending withdrawal with the fee already applied.
func NewWithdrawal(affiliateID primitive.ObjectID, amount, fee decimal.Decimal, pixKey string) *Withdrawal {
	return &Withdrawal{
		ID:              primitive.NewObjectID(),
		AffiliateID:     affiliateID,
		AmountRequested: amount,
		FeeAmount:       fee,
		NetAmount:       amount.Sub(fee),
		Status:          WithdrawalPending,
		PixKey:          pixKey,
		CreatedAt:       time.Now(),
	}
}

// IsTerminal reports whether the withdrawal can no longer transition.
func (w *Withdrawal) IsTerminal() bool {
	return w.Status == WithdrawalApproved || w.Status == WithdrawalRejected
}

// Validate validates the withdrawal data
func (w *Withdrawal) Validate() error {
	if w.AffiliateID.IsZero() {
		return fmt.Errorf("affiliate ID is required")
	}
	if w.AmountRequested.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount must be positive")
	}
	if w.NetAmount.LessThan(decimal.Zero) {
		return fmt.Errorf("net amount cannot be negative")
	}
	if w.PixKey == "" {
		return fmt.Errorf("pix key is required")
	}
	switch w.Status {
	case WithdrawalPending, WithdrawalApproved, WithdrawalRejected:
	default:
		return fmt.Errorf("invalid status: %s", w.Status)
	}
	return nil
}
