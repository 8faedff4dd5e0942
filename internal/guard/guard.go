package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/nuzulstay/nuzulstay/internal/observability"
	"github.com/nuzulstay/nuzulstay/internal/occupancy"
)

// Operation names a local mutation that could desynchronize platform state
// from the external channel manager. The set is closed; every write path that
// touches a unit must assert with one of these before mutating.
type Operation string

const (
	OpAutoApproveExtension Operation = "AUTO_APPROVE_EXTENSION"
	OpMutateBookingDates   Operation = "MUTATE_BOOKING_DATES"
	OpMutateBookingStatus  Operation = "MUTATE_BOOKING_STATUS"
	OpCreateBooking        Operation = "CREATE_BOOKING"
	OpUpdateInventory      Operation = "UPDATE_INVENTORY"
)

// ExternalConflictError reports a blocked operation on an externally
// controlled unit. Callers are expected to catch it and route the request to
// the human-approval flow instead of surfacing it raw.
type ExternalConflictError struct {
	Operation Operation
	UnitID    int64
}

func (e *ExternalConflictError) Error() string {
	return fmt.Sprintf("guard: operation %s blocked on externally controlled unit %d", e.Operation, e.UnitID)
}

// UserMessage satisfies shared.UserFacing.
func (e *ExternalConflictError) UserMessage() string {
	return "This unit is managed by the external channel manager. Use the approval flow with a change note instead of editing it directly."
}

// AsExternalConflict unwraps err into an ExternalConflictError when present.
func AsExternalConflict(err error) (*ExternalConflictError, bool) {
	var conflict *ExternalConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}

// SourceResolver is the slice of the occupancy service the guard needs. The
// lookup is mapping-table-only; the guard must stay free of network calls.
type SourceResolver interface {
	SourceOfTruthByUnit(ctx context.Context, unitID int64) (occupancy.SourceOfTruth, bool, error)
}

// Guard is the assertion entry point for external-source conflicts.
type Guard struct {
	resolver SourceResolver
	metrics  *observability.Metrics
}

// New builds a Guard.
func New(resolver SourceResolver, metrics *observability.Metrics) *Guard {
	return &Guard{resolver: resolver, metrics: metrics}
}

// AssertNotExternallyControlled fails with ExternalConflictError when the
// unit's source of truth is the external system. Unmapped units and units
// mapped with a local source of truth pass.
func (g *Guard) AssertNotExternallyControlled(ctx context.Context, unitID int64, op Operation) error {
	source, found, err := g.resolver.SourceOfTruthByUnit(ctx, unitID)
	if err != nil {
		return fmt.Errorf("guard: resolve source of truth for unit %d: %w", unitID, err)
	}
	if !found || source != occupancy.SourceOfTruthBeds24 {
		return nil
	}
	g.metrics.ObserveGuardTrip(string(op))
	return &ExternalConflictError{Operation: op, UnitID: unitID}
}
