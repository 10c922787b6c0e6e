package models

import "errors"

// Placement errors.
var (
	// ErrNetworkFull is returned when no free slot exists within the
	// bounded placement search depth. Registration is rejected whole.
	ErrNetworkFull = errors.New("network full: no free slot within search depth")

	// ErrSlotTaken signals a lost slot compare-and-set; the placement
	// engine retries against current tree state before surfacing it.
	ErrSlotTaken = errors.New("slot already taken")

	ErrSponsorNotFound   = errors.New("sponsor not found")
	ErrAffiliateNotFound = errors.New("affiliate not found")
)

// Distribution errors.
var (
	// ErrAlreadyDistributed marks a duplicate distribution trigger.
	// Callers treat it as success and return the existing rows.
	ErrAlreadyDistributed = errors.New("purchase already distributed")

	ErrPurchaseNotFound = errors.New("purchase not found")

	// ErrLedgerInvariant is raised when the post-distribution row sum does
	// not match the generated cashback. Fatal and alerting, never absorbed.
	ErrLedgerInvariant = errors.New("distribution rows do not sum to generated cashback")
)

// Withdrawal gate rejections, each surfaced distinctly.
var (
	ErrInsufficientBalance     = errors.New("insufficient available balance")
	ErrMissingPixKey           = errors.New("pix key not configured")
	ErrNotActiveThisMonth      = errors.New("affiliate not active this month")
	ErrOutsideWithdrawalWindow = errors.New("outside withdrawal window")
	ErrDuplicateMonthlyRequest = errors.New("withdrawal already requested this month")
	ErrWithdrawalNotPending    = errors.New("withdrawal is not pending")
	ErrWithdrawalNotFound      = errors.New("withdrawal not found")
)

// ErrTransientConflict wraps store lock/CAS conflicts that survived the
// bounded retry budget.
var ErrTransientConflict = errors.New("transient store conflict")
