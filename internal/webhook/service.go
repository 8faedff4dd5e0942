package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nuzulstay/nuzulstay/internal/ledger"
	"github.com/nuzulstay/nuzulstay/internal/observability"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

// ErrUnknownEventType indicates a payload type outside the closed set.
var ErrUnknownEventType = errors.New("webhook: unknown event type")

// Event is one already-verified payment-provider callback. Signature
// verification happens upstream; this layer only applies the state change.
type Event struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	LedgerEntryID int64     `json:"ledger_entry_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// eventTargets maps provider event types onto ledger statuses. Webhooks are
// the only actor class allowed to reach PAID and REFUNDED.
var eventTargets = map[string]ledger.EntryStatus{
	"payment.pending":   ledger.StatusPending,
	"payment.confirmed": ledger.StatusPaid,
	"payment.failed":    ledger.StatusFailed,
	"payment.refunded":  ledger.StatusRefunded,
}

// Outcome reports how an event was handled.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
)

// Deduper is the idempotency slice the service needs; satisfied by
// shared.IdempotencyStore.
type Deduper interface {
	CheckAndInsert(ctx context.Context, key, source string) error
	Delete(ctx context.Context, key string) error
}

// Transitioner drives the ledger state machine; satisfied by ledger.Service.
type Transitioner interface {
	Transition(ctx context.Context, id int64, target ledger.EntryStatus, actor shared.Actor) (*ledger.PaymentLedgerEntry, error)
}

const dedupeSource = "webhook"

var webhookActor = shared.Actor{Name: "payment-webhook", Class: shared.ActorClassWebhook}

// Service ingests payment events exactly once each.
type Service struct {
	deduper Deduper
	ledger  Transitioner
	metrics *observability.Metrics
}

// NewService wires the webhook dependencies.
func NewService(deduper Deduper, transitioner Transitioner, metrics *observability.Metrics) *Service {
	return &Service{deduper: deduper, ledger: transitioner, metrics: metrics}
}

// Process dedupes on the provider event id, then applies the ledger
// transition as the webhook actor. Replays of a processed event succeed as
// duplicates without touching the ledger. A failed transition releases the
// dedupe key so the provider's retry can be reprocessed.
func (s *Service) Process(ctx context.Context, event Event) (Outcome, error) {
	if event.EventID == "" {
		return "", errors.New("webhook: event ID required")
	}
	if event.LedgerEntryID <= 0 {
		return "", errors.New("webhook: ledger entry ID required")
	}
	target, ok := eventTargets[event.Type]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, event.Type)
	}

	if err := s.deduper.CheckAndInsert(ctx, event.EventID, dedupeSource); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			s.metrics.ObserveWebhookEvent(string(OutcomeDuplicate))
			return OutcomeDuplicate, nil
		}
		return "", err
	}

	if _, err := s.ledger.Transition(ctx, event.LedgerEntryID, target, webhookActor); err != nil {
		if deleteErr := s.deduper.Delete(ctx, event.EventID); deleteErr != nil {
			err = errors.Join(err, deleteErr)
		}
		s.metrics.ObserveWebhookEvent("failed")
		return "", err
	}
	s.metrics.ObserveWebhookEvent(string(OutcomeApplied))
	return OutcomeApplied, nil
}
