package renewal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nuzulstay/nuzulstay/internal/audit"
	"github.com/nuzulstay/nuzulstay/internal/guard"
	"github.com/nuzulstay/nuzulstay/internal/ledger"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

// RecordFunc appends the audit row inside the mutation's transaction.
type RecordFunc func(ctx context.Context, q audit.Execer) error

// Config holds the renewal knobs, passed explicitly so the engine stays pure.
type Config struct {
	RenewalWindowDays int
	APISafeForWrites  bool
}

// BookingReader loads the booking snapshot the engine evaluates.
type BookingReader interface {
	GetBooking(ctx context.Context, id int64) (*Booking, error)
}

// RepositoryPort persists approved extensions. Approve writes the extension
// row and advances the booking's end date and renewal count in one
// transaction.
type RepositoryPort interface {
	Approve(ctx context.Context, ext Extension, record RecordFunc) (*Extension, error)
	ListByBooking(ctx context.Context, bookingID int64) ([]Extension, error)
}

// Asserter is the Conflict Guard slice the service needs.
type Asserter interface {
	AssertNotExternallyControlled(ctx context.Context, unitID int64, op guard.Operation) error
}

// LedgerCreator creates the RENEWAL_RENT charge for an approved extension.
type LedgerCreator interface {
	CreateEntry(ctx context.Context, input ledger.CreateEntryInput, actor shared.Actor) (*ledger.PaymentLedgerEntry, error)
}

// ExternalExtender delegates the extension write to the channel-manager
// client. Core code never talks to the external system except through it.
type ExternalExtender interface {
	ExtendBooking(ctx context.Context, bookingID int64, newEnd time.Time) error
}

// Service coordinates eligibility, guard routing, and extension approval.
type Service struct {
	bookings BookingReader
	repo     RepositoryPort
	guard    Asserter
	charges  LedgerCreator
	extender ExternalExtender
	auditor  *audit.Recorder
	cfg      Config
	now      func() time.Time
}

// NewService wires the renewal dependencies. extender may be nil when no
// channel-manager client is configured; the BEDS24_API path then degrades to
// LOCAL_EXTENSION.
func NewService(bookings BookingReader, repo RepositoryPort, asserter Asserter, charges LedgerCreator, extender ExternalExtender, auditor *audit.Recorder, cfg Config) *Service {
	return &Service{
		bookings: bookings,
		repo:     repo,
		guard:    asserter,
		charges:  charges,
		extender: extender,
		auditor:  auditor,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Eligibility re-evaluates the five renewal checks against the current time.
func (s *Service) Eligibility(ctx context.Context, bookingID int64) (Eligibility, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Eligibility{}, err
	}
	if booking == nil {
		return Eligibility{}, shared.ErrNotFound
	}
	return IsEligibleForRenewal(*booking, s.now(), s.cfg.RenewalWindowDays), nil
}

// ApproveExtensionInput groups the approval request fields.
type ApproveExtensionInput struct {
	BookingID  int64
	NewEndDate time.Time
	ChangeNote string
}

// ApproveExtension runs the full approval flow: eligibility, conflict-guard
// routing, change-note enforcement, the external write when delegated, the
// RENEWAL_RENT charge, and the audited extension record.
func (s *Service) ApproveExtension(ctx context.Context, input ApproveExtensionInput, actor shared.Actor) (*Extension, error) {
	booking, err := s.bookings.GetBooking(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, shared.ErrNotFound
	}
	if !input.NewEndDate.After(booking.EndDate) {
		return nil, errors.New("renewal: new end date must be after the current end date")
	}

	if elig := IsEligibleForRenewal(*booking, s.now(), s.cfg.RenewalWindowDays); !elig.Eligible {
		return nil, &EligibilityError{Reason: elig.Reason}
	}

	controlled := false
	if err := s.guard.AssertNotExternallyControlled(ctx, booking.UnitID, guard.OpAutoApproveExtension); err != nil {
		if _, ok := guard.AsExternalConflict(err); !ok {
			return nil, err
		}
		controlled = true
	}

	path := DecideRenewalPath(controlled, s.cfg.APISafeForWrites && s.extender != nil)
	requiresExternalUpdate := path == PathLocalExtension
	if err := CanApproveExtension(requiresExternalUpdate, input.ChangeNote); err != nil {
		return nil, err
	}

	if path == PathBeds24API {
		if err := s.extender.ExtendBooking(ctx, booking.ID, input.NewEndDate); err != nil {
			return nil, fmt.Errorf("renewal: delegate extension to channel manager: %w", err)
		}
	}

	charge, err := s.charges.CreateEntry(ctx, ledger.CreateEntryInput{
		BookingID:  booking.ID,
		UnitID:     booking.UnitID,
		Type:       ledger.TypeRenewalRent,
		Amount:     booking.MonthlyRent,
		Currency:   booking.Currency,
		Status:     ledger.StatusDue,
		GuestName:  booking.GuestName,
		GuestPhone: booking.GuestPhone,
	}, actor)
	if err != nil {
		return nil, err
	}

	ext := Extension{
		BookingID:              booking.ID,
		UnitID:                 booking.UnitID,
		PreviousEndDate:        booking.EndDate,
		NewEndDate:             input.NewEndDate,
		Path:                   path,
		RequiresExternalUpdate: requiresExternalUpdate,
		LedgerEntryID:          charge.ID,
	}
	if input.ChangeNote != "" {
		ext.ChangeNote = &input.ChangeNote
	}

	approved, err := s.repo.Approve(ctx, ext, func(ctx context.Context, q audit.Execer) error {
		return s.auditor.RecordIn(ctx, q, audit.Entry{
			EntityType: "booking_extension",
			EntityID:   strconv.FormatInt(booking.ID, 10),
			Action:     "EXTENSION_APPROVED",
			Actor:      actor,
			Changes: map[string]any{
				"path":            string(path),
				"new_end_date":    input.NewEndDate.Format(time.RFC3339),
				"ledger_entry_id": charge.ID,
				"change_note":     input.ChangeNote,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// Extensions lists the approved extensions for a booking.
func (s *Service) Extensions(ctx context.Context, bookingID int64) ([]Extension, error) {
	return s.repo.ListByBooking(ctx, bookingID)
}
