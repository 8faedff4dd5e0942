package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nuzulstay/nuzulstay/internal/audit"
	"github.com/nuzulstay/nuzulstay/internal/observability"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

// RecordFunc appends the audit row inside the same transaction as the
// mutation it describes. Audit completeness is a correctness property: a
// failed audit write aborts the whole mutation.
type RecordFunc func(ctx context.Context, q audit.Execer) error

// CreateEntryInput groups fields for creating a ledger entry.
type CreateEntryInput struct {
	BookingID      int64
	UnitID         int64
	Type           EntryType
	Amount         decimal.Decimal
	Currency       string
	Status         EntryStatus
	Method         string
	GuestName      string
	GuestPhone     string
	ParentLedgerID *int64
}

// UpdateEntryInput holds optional field updates; nil pointers leave the
// stored value untouched.
type UpdateEntryInput struct {
	Amount     *decimal.Decimal
	Method     *string
	GuestName  *string
	GuestPhone *string
}

// SearchRequest filters the admin ledger listing.
type SearchRequest struct {
	Status  EntryStatus
	Type    EntryType
	Method  string
	From    time.Time
	To      time.Time
	Query   string
	Page    int
	PerPage int
}

// RepositoryPort defines data access for the ledger.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*PaymentLedgerEntry, error)
	Insert(ctx context.Context, input CreateEntryInput, invoiceNumber string, record RecordFunc) (*PaymentLedgerEntry, error)
	NextInvoiceSequence(ctx context.Context, bookingID int64) (int, error)
	ApplyTransition(ctx context.Context, id int64, from, to EntryStatus, record RecordFunc) error
	UpdateFields(ctx context.Context, id int64, input UpdateEntryInput, record RecordFunc) (*PaymentLedgerEntry, error)
	Search(ctx context.Context, req SearchRequest) ([]PaymentLedgerEntry, int, error)
	OutstandingBalance(ctx context.Context, unitID int64) (decimal.Decimal, error)
	CollectedBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
}

// invoiceRetries bounds the collision retry loop for invoice numbers.
const invoiceRetries = 3

// Service enforces the ledger state machine and immutability rules.
type Service struct {
	repo    RepositoryPort
	auditor *audit.Recorder
	metrics *observability.Metrics
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, auditor *audit.Recorder, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, auditor: auditor, metrics: metrics}
}

// CreateEntry creates a DUE or PENDING ledger entry with a generated invoice
// number. Webhook actors never create entries; they only transition them.
func (s *Service) CreateEntry(ctx context.Context, input CreateEntryInput, actor shared.Actor) (*PaymentLedgerEntry, error) {
	if actor.IsWebhook() {
		return nil, ErrActorNotAllowed
	}
	if !ValidType(input.Type) {
		return nil, errors.New("ledger: unknown entry type")
	}
	if input.BookingID == 0 {
		return nil, errors.New("ledger: booking ID required")
	}
	if input.UnitID == 0 {
		return nil, errors.New("ledger: unit ID required")
	}
	if !input.Amount.IsPositive() {
		return nil, errors.New("ledger: amount must be positive")
	}
	if input.Currency == "" {
		return nil, errors.New("ledger: currency required")
	}
	if input.Status == "" {
		input.Status = StatusDue
	}
	if input.Status != StatusDue && input.Status != StatusPending {
		return nil, errors.New("ledger: new entries start as DUE or PENDING")
	}

	seq, err := s.repo.NextInvoiceSequence(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var entry *PaymentLedgerEntry
	for attempt := 0; attempt < invoiceRetries; attempt++ {
		number := FormatInvoiceNumber(input.Type, input.BookingID, seq+attempt, now)
		entry, err = s.repo.Insert(ctx, input, number, func(ctx context.Context, q audit.Execer) error {
			return s.auditor.RecordIn(ctx, q, audit.Entry{
				EntityType: "payment_ledger",
				EntityID:   number,
				Action:     "ledger.create",
				Actor:      actor,
				Changes: map[string]any{
					"booking_id": input.BookingID,
					"unit_id":    input.UnitID,
					"type":       string(input.Type),
					"amount":     input.Amount.String(),
					"currency":   input.Currency,
					"status":     string(input.Status),
				},
			})
		})
		if errors.Is(err, ErrDuplicateInvoiceNumber) {
			continue
		}
		return entry, err
	}
	return nil, ErrDuplicateInvoiceNumber
}

// Transition applies one status change under the transition table and the
// actor-class authorization rules.
func (s *Service) Transition(ctx context.Context, id int64, target EntryStatus, actor shared.Actor) (*PaymentLedgerEntry, error) {
	if !ValidStatus(target) {
		return nil, ErrInvalidTransition
	}
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, shared.ErrNotFound
	}
	if !CanTransition(entry.Status, target) {
		return nil, ErrInvalidTransition
	}
	if !ActorMaySet(actor.Class, target) {
		return nil, ErrActorNotAllowed
	}

	from := entry.Status
	err = s.repo.ApplyTransition(ctx, id, from, target, func(ctx context.Context, q audit.Execer) error {
		return s.auditor.RecordIn(ctx, q, audit.Entry{
			EntityType: "payment_ledger",
			EntityID:   entry.InvoiceNumber,
			Action:     "ledger.transition",
			Actor:      actor,
			Changes: map[string]any{
				"status": map[string]any{"old": string(from), "new": string(target)},
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLedgerTransition(string(from), string(target))
	entry.Status = target
	return entry, nil
}

// UpdateEntry applies field-level updates. Entries that are PAID or REFUNDED
// are immutable regardless of actor class; corrections go through
// CreateAdjustment.
func (s *Service) UpdateEntry(ctx context.Context, id int64, input UpdateEntryInput, actor shared.Actor) (*PaymentLedgerEntry, error) {
	if !actor.IsAdmin() {
		return nil, ErrActorNotAllowed
	}
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, shared.ErrNotFound
	}
	if entry.IsImmutable() {
		return nil, ErrEntryImmutable
	}
	if input.Amount != nil && !input.Amount.IsPositive() {
		return nil, errors.New("ledger: amount must be positive")
	}

	changes := map[string]any{}
	if input.Amount != nil {
		changes["amount"] = map[string]any{"old": entry.Amount.String(), "new": input.Amount.String()}
	}
	if input.Method != nil {
		changes["method"] = map[string]any{"old": entry.Method, "new": *input.Method}
	}
	if input.GuestName != nil {
		changes["guest_name"] = map[string]any{"old": entry.GuestName, "new": *input.GuestName}
	}
	if input.GuestPhone != nil {
		changes["guest_phone"] = map[string]any{"old": entry.GuestPhone, "new": *input.GuestPhone}
	}

	return s.repo.UpdateFields(ctx, id, input, func(ctx context.Context, q audit.Execer) error {
		return s.auditor.RecordIn(ctx, q, audit.Entry{
			EntityType: "payment_ledger",
			EntityID:   entry.InvoiceNumber,
			Action:     "ledger.update",
			Actor:      actor,
			Changes:    changes,
		})
	})
}

// CreateAdjustment creates a correction entry for a PAID parent. The child
// references the parent, starts as DUE and follows the same state machine.
func (s *Service) CreateAdjustment(ctx context.Context, parentID int64, typ EntryType, amount decimal.Decimal, actor shared.Actor) (*PaymentLedgerEntry, error) {
	if typ != TypeAdjustment && typ != TypeRefund {
		return nil, errors.New("ledger: adjustments must be of type ADJUSTMENT or REFUND")
	}
	parent, err := s.repo.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, shared.ErrNotFound
	}
	if parent.Status != StatusPaid {
		return nil, ErrAdjustmentNotAllowed
	}
	if !amount.IsPositive() || amount.GreaterThan(parent.Amount) {
		return nil, ErrInvalidAdjustmentAmount
	}

	return s.CreateEntry(ctx, CreateEntryInput{
		BookingID:      parent.BookingID,
		UnitID:         parent.UnitID,
		Type:           typ,
		Amount:         amount,
		Currency:       parent.Currency,
		Status:         StatusDue,
		GuestName:      parent.GuestName,
		GuestPhone:     parent.GuestPhone,
		ParentLedgerID: &parent.ID,
	}, actor)
}

// Get returns a single entry.
func (s *Service) Get(ctx context.Context, id int64) (*PaymentLedgerEntry, error) {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, shared.ErrNotFound
	}
	return entry, nil
}

// Search returns filtered entries with the total match count.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]PaymentLedgerEntry, int, error) {
	return s.repo.Search(ctx, req)
}

// OutstandingBalance sums DUE, PENDING and FAILED amounts for a unit. Units
// with a non-zero balance cannot be archived.
func (s *Service) OutstandingBalance(ctx context.Context, unitID int64) (decimal.Decimal, error) {
	return s.repo.OutstandingBalance(ctx, unitID)
}

// CollectedBetween sums PAID amounts confirmed in the window, feeding the
// run-rate KPIs.
func (s *Service) CollectedBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return s.repo.CollectedBetween(ctx, from, to)
}
