package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nuzulstay/nuzulstay/internal/shared"
)

// EntryType enumerates ledger charge categories.
type EntryType string

const (
	TypeRent          EntryType = "RENT"
	TypeRenewalRent   EntryType = "RENEWAL_RENT"
	TypeProtectionFee EntryType = "PROTECTION_FEE"
	TypeDeposit       EntryType = "DEPOSIT"
	TypeCleaning      EntryType = "CLEANING"
	TypePenalty       EntryType = "PENALTY"
	TypeRefund        EntryType = "REFUND"
	TypeAdjustment    EntryType = "ADJUSTMENT"
)

// EntryStatus enumerates ledger entry lifecycle values.
type EntryStatus string

const (
	StatusDue      EntryStatus = "DUE"
	StatusPending  EntryStatus = "PENDING"
	StatusPaid     EntryStatus = "PAID"
	StatusFailed   EntryStatus = "FAILED"
	StatusRefunded EntryStatus = "REFUNDED"
	StatusVoid     EntryStatus = "VOID"
)

var (
	// ErrInvalidTransition indicates the requested status change is not in
	// the transition table.
	ErrInvalidTransition = errors.New("ledger: invalid status transition")
	// ErrActorNotAllowed indicates the actor class may not set the target
	// status.
	ErrActorNotAllowed = errors.New("ledger: actor class may not set this status")
	// ErrEntryImmutable indicates an attempted edit of a PAID or REFUNDED
	// entry.
	ErrEntryImmutable = errors.New("ledger: paid and refunded entries are immutable")
	// ErrAdjustmentNotAllowed indicates the adjustment parent is not PAID.
	ErrAdjustmentNotAllowed = errors.New("ledger: adjustments require a paid parent entry")
	// ErrInvalidAdjustmentAmount indicates an adjustment amount outside
	// (0, parent amount].
	ErrInvalidAdjustmentAmount = errors.New("ledger: adjustment amount must be positive and at most the parent amount")
	// ErrDuplicateInvoiceNumber surfaces only after generation retries are
	// exhausted.
	ErrDuplicateInvoiceNumber = errors.New("ledger: invoice number already exists")
	// ErrConcurrentModification indicates a lost optimistic-lock race.
	ErrConcurrentModification = errors.New("ledger: entry changed concurrently")
)

// transitions is the directed legal-transition table. Any pair absent here is
// rejected. REFUNDED and VOID are terminal.
var transitions = map[EntryStatus][]EntryStatus{
	StatusDue:      {StatusPending, StatusPaid, StatusVoid},
	StatusPending:  {StatusPaid, StatusFailed, StatusVoid},
	StatusPaid:     {StatusRefunded},
	StatusFailed:   {StatusPending, StatusDue, StatusVoid},
	StatusRefunded: nil,
	StatusVoid:     nil,
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to EntryStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// actorTargets lists the statuses each actor class may set. PAID and REFUNDED
// represent externally confirmed money movement and are reachable only through
// webhook ingestion; no UI action can forge them.
var actorTargets = map[shared.ActorClass][]EntryStatus{
	shared.ActorClassAdmin:   {StatusDue, StatusPending, StatusFailed, StatusVoid},
	shared.ActorClassWebhook: {StatusPaid, StatusFailed, StatusRefunded, StatusPending},
	shared.ActorClassSystem:  {StatusDue, StatusPending, StatusVoid},
}

// ActorMaySet reports whether the actor class is allowed to set the target
// status.
func ActorMaySet(class shared.ActorClass, target EntryStatus) bool {
	for _, allowed := range actorTargets[class] {
		if allowed == target {
			return true
		}
	}
	return false
}

// PaymentLedgerEntry is the financial record of a single charge or refund.
// Corrections to PAID entries are expressed as child entries referencing
// ParentLedgerID, never as field updates.
type PaymentLedgerEntry struct {
	ID             int64
	BookingID      int64
	UnitID         int64
	Type           EntryType
	Amount         decimal.Decimal
	Currency       string
	Status         EntryStatus
	Method         string
	GuestName      string
	GuestPhone     string
	InvoiceNumber  string
	ParentLedgerID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsImmutable reports whether field updates are forbidden for the entry.
func (e PaymentLedgerEntry) IsImmutable() bool {
	return e.Status == StatusPaid || e.Status == StatusRefunded
}

// ValidType reports whether t is a known entry type.
func ValidType(t EntryType) bool {
	switch t {
	case TypeRent, TypeRenewalRent, TypeProtectionFee, TypeDeposit, TypeCleaning, TypePenalty, TypeRefund, TypeAdjustment:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known entry status.
func ValidStatus(s EntryStatus) bool {
	switch s {
	case StatusDue, StatusPending, StatusPaid, StatusFailed, StatusRefunded, StatusVoid:
		return true
	}
	return false
}
