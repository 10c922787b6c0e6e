package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Position slots under a sponsor. The fan-out is a hard ternary invariant,
// so children are modeled as a fixed three-slot structure instead of a list.
const (
	SlotLeft   = "left"
	SlotCenter = "center"
	SlotRight  = "right"
)

// Placement preferences accepted at registration time.
const (
	PreferenceLeft   = SlotLeft
	PreferenceCenter = SlotCenter
	PreferenceRight  = SlotRight
	PreferenceAuto   = "auto"
)

// SlotOrder is the canonical visiting order for placement and tree reads.
var SlotOrder = []string{SlotLeft, SlotCenter, SlotRight}

// Affiliate represents a node in the sponsorship tree
type Affiliate struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	Name         string              `bson:"name" json:"name"`
	Coupon       string              `bson:"coupon" json:"coupon"`
	ReferralCode string              `bson:"referral_code" json:"referral_code"`
	SponsorID    *primitive.ObjectID `bson:"sponsor_id,omitempty" json:"sponsor_id,omitempty"`
	PositionSlot string              `bson:"position_slot,omitempty" json:"position_slot,omitempty"`
	Preference   string              `bson:"preference" json:"preference"`
	Children     Children            `bson:"children" json:"children"`
	IsActive     bool                `bson:"is_active" json:"is_active"`
	CreatedAt    time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `bson:"updated_at" json:"updated_at"`
	LastAccessAt time.Time           `bson:"last_access_at" json:"last_access_at"`
}

// Children holds the three direct referral slots of a sponsor.
// A nil entry is a free slot.
type Children struct {
	Left   *primitive.ObjectID `bson:"left,omitempty" json:"left,omitempty"`
	Center *primitive.ObjectID `bson:"center,omitempty" json:"center,omitempty"`
	Right  *primitive.ObjectID `bson:"right,omitempty" json:"right,omitempty"`
}

// Slot returns the child occupying the given slot, or nil when free.
func (c *Children) Slot(slot string) *primitive.ObjectID {
	switch slot {
	case SlotLeft:
		return c.Left
	case SlotCenter:
		return c.Center
	case SlotRight:
		return c.Right
	}
	return nil
}

// FreeSlot returns the first free slot in canonical order, or "" when full.
func (c *Children) FreeSlot() string {
	for _, slot := range SlotOrder {
		if c.Slot(slot) == nil {
			return slot
		}
	}
	return ""
}

// IsFull reports whether all three slots are occupied.
func (c *Children) IsFull() bool {
	return c.FreeSlot() == ""
}

// All returns the occupied children in slot order.
func (c *Children) All() []primitive.ObjectID {
	var ids []primitive.ObjectID
	for _, slot := range SlotOrder {
		if id := c.Slot(slot); id != nil {
			ids = append(ids, *id)
		}
	}
	return ids
}

// NewAffiliate creates a new affiliate record before placement.
// Sponsor and slot are assigned by the placement engine.
func NewAffiliate(name, coupon string) *Affiliate {
	now := time.Now()
	return &Affiliate{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Coupon:       coupon,
		ReferralCode: generateReferralCode(),
		Preference:   PreferenceAuto,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastAccessAt: now,
	}
}

// IsRoot reports whether the affiliate sits at the top of a tree.
func (a *Affiliate) IsRoot() bool {
	return a.SponsorID == nil
}

// IsRecentlyActive reports whether the affiliate accessed the platform
// within the given window. This drives the tree-display active flag and is
// unrelated to the monthly-activity flag on the ledger.
func (a *Affiliate) IsRecentlyActive(window time.Duration) bool {
	return time.Since(a.LastAccessAt) <= window
}

// Validate validates the affiliate data
func (a *Affiliate) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	if a.Coupon == "" {
		return fmt.Errorf("coupon is required")
	}
	if a.ReferralCode == "" {
		return fmt.Errorf("referral code is required")
	}
	if !ValidPreference(a.Preference) {
		return fmt.Errorf("invalid preference: %s", a.Preference)
	}
	if a.PositionSlot != "" && !ValidSlot(a.PositionSlot) {
		return fmt.Errorf("invalid position slot: %s", a.PositionSlot)
	}
	if a.SponsorID == nil && a.PositionSlot != "" {
		return fmt.Errorf("root affiliate cannot have a position slot")
	}
	return nil
}

// ValidSlot reports whether s names one of the three position slots.
func ValidSlot(s string) bool {
	return s == SlotLeft || s == SlotCenter || s == SlotRight
}

// ValidPreference reports whether p is a valid placement preference.
func ValidPreference(p string) bool {
	return p == PreferenceAuto || ValidSlot(p)
}

func generateReferralCode() string {
	return "REF-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:10])
}
