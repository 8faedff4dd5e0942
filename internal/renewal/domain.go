package renewal

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrChangeNoteRequired = errors.New("renewal: change note required")
	ErrNotEligible        = errors.New("renewal: booking not eligible")
)

// EligibilityError carries the human-readable refusal reason of a failed
// renewal attempt. It matches ErrNotEligible under errors.Is.
type EligibilityError struct {
	Reason string
}

func (e *EligibilityError) Error() string {
	return "renewal: booking not eligible: " + e.Reason
}

// UserMessage satisfies shared.UserFacing.
func (e *EligibilityError) UserMessage() string {
	return e.Reason
}

func (e *EligibilityError) Is(target error) bool {
	return target == ErrNotEligible
}

// Booking is the snapshot the eligibility engine evaluates. It is read once
// per attempt; eligibility is never cached across time.
type Booking struct {
	ID           int64
	UnitID       int64
	Status       string
	Term         int
	RenewalsUsed int
	MaxRenewals  int
	StartDate    time.Time
	EndDate      time.Time
	MonthlyRent  decimal.Decimal
	Currency     string
	GuestName    string
	GuestPhone   string
}

// Eligibility carries the verdict plus a human-readable refusal reason.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// IsEligibleForRenewal runs the five ordered checks, short-circuiting on the
// first failure. Pure given the snapshot and now.
func IsEligibleForRenewal(booking Booking, now time.Time, renewalWindowDays int) Eligibility {
	if booking.Status != "active" {
		return Eligibility{Reason: "Booking is not active"}
	}
	if booking.Term != 1 {
		return Eligibility{Reason: "Only single-term bookings can be renewed"}
	}
	if booking.RenewalsUsed >= booking.MaxRenewals {
		return Eligibility{Reason: "Maximum renewals reached"}
	}
	windowOpens := booking.EndDate.AddDate(0, 0, -renewalWindowDays)
	if now.Before(windowOpens) {
		return Eligibility{Reason: "Renewal window has not opened yet"}
	}
	if now.After(booking.EndDate) {
		return Eligibility{Reason: "Booking has already ended"}
	}
	return Eligibility{Eligible: true}
}

// Path routes an approved renewal to its execution mechanism.
type Path string

const (
	PathDirectRenewal  Path = "DIRECT_RENEWAL"
	PathLocalExtension Path = "LOCAL_EXTENSION"
	PathBeds24API      Path = "BEDS24_API"
)

// DecideRenewalPath picks the execution path. Units the platform owns renew
// directly; externally controlled units either delegate the write to the
// channel-manager API or fall back to a locally recorded extension that a
// human mirrors into the external system.
func DecideRenewalPath(isExternallyControlled, apiSafeForWrites bool) Path {
	if !isExternallyControlled {
		return PathDirectRenewal
	}
	if apiSafeForWrites {
		return PathBeds24API
	}
	return PathLocalExtension
}

// CanApproveExtension requires a textual change note whenever the extension
// must be mirrored into the external system by hand. Without the note, local
// and external state could silently diverge.
func CanApproveExtension(requiresExternalUpdate bool, changeNote string) error {
	if requiresExternalUpdate && changeNote == "" {
		return ErrChangeNoteRequired
	}
	return nil
}

// Extension is one approved booking extension.
type Extension struct {
	ID                     int64     `json:"id"`
	BookingID              int64     `json:"booking_id"`
	UnitID                 int64     `json:"unit_id"`
	PreviousEndDate        time.Time `json:"previous_end_date"`
	NewEndDate             time.Time `json:"new_end_date"`
	Path                   Path      `json:"path"`
	RequiresExternalUpdate bool      `json:"requires_external_update"`
	ChangeNote             *string   `json:"change_note,omitempty"`
	LedgerEntryID          int64     `json:"ledger_entry_id"`
	CreatedAt              time.Time `json:"created_at"`
}
