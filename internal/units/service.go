package units

import (
	"context"
	"errors"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/nuzulstay/nuzulstay/internal/audit"
	"github.com/nuzulstay/nuzulstay/internal/guard"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

// RecordFunc appends the audit row inside the mutation's transaction.
type RecordFunc func(ctx context.Context, q audit.Execer) error

// RepositoryPort defines data access for buildings and units.
type RepositoryPort interface {
	CreateBuilding(ctx context.Context, b Building, record RecordFunc) (*Building, error)
	ListBuildings(ctx context.Context) ([]Building, error)
	ArchiveBuilding(ctx context.Context, id int64, record RecordFunc) error
	CountUnarchivedUnits(ctx context.Context, buildingID int64) (int, error)

	CreateUnit(ctx context.Context, u Unit, record RecordFunc) (*Unit, error)
	GetUnit(ctx context.Context, id int64) (*Unit, error)
	ListUnits(ctx context.Context, buildingID int64) ([]Unit, error)
	UpdateUnit(ctx context.Context, id int64, input UpdateUnitInput, record RecordFunc) (*Unit, error)
	ArchiveUnit(ctx context.Context, id int64, record RecordFunc) error
	CountActiveBookings(ctx context.Context, unitID int64) (int, error)
}

// BalanceReader sums a unit's uncollected ledger entries.
type BalanceReader interface {
	OutstandingBalance(ctx context.Context, unitID int64) (decimal.Decimal, error)
}

// Asserter is the Conflict Guard slice the service needs.
type Asserter interface {
	AssertNotExternallyControlled(ctx context.Context, unitID int64, op guard.Operation) error
}

// UpdateUnitInput holds optional field updates; nil pointers leave the stored
// value untouched.
type UpdateUnitInput struct {
	MonthlyBaseRent *decimal.Decimal
	Status          *UnitStatus
}

// Service owns building and unit administration.
type Service struct {
	repo     RepositoryPort
	balances BalanceReader
	guard    Asserter
	auditor  *audit.Recorder
}

// NewService wires the units dependencies.
func NewService(repo RepositoryPort, balances BalanceReader, asserter Asserter, auditor *audit.Recorder) *Service {
	return &Service{repo: repo, balances: balances, guard: asserter, auditor: auditor}
}

func (s *Service) record(entityType string, entityID int64, action string, actor shared.Actor, changes map[string]any) RecordFunc {
	return func(ctx context.Context, q audit.Execer) error {
		return s.auditor.RecordIn(ctx, q, audit.Entry{
			EntityType: entityType,
			EntityID:   strconv.FormatInt(entityID, 10),
			Action:     action,
			Actor:      actor,
			Changes:    changes,
		})
	}
}

// CreateBuilding registers a building.
func (s *Service) CreateBuilding(ctx context.Context, b Building, actor shared.Actor) (*Building, error) {
	if b.Name == "" {
		return nil, errors.New("units: building name required")
	}
	return s.repo.CreateBuilding(ctx, b, s.record("building", 0, "BUILDING_CREATED", actor, map[string]any{
		"name": b.Name,
	}))
}

// ListBuildings returns all buildings.
func (s *Service) ListBuildings(ctx context.Context) ([]Building, error) {
	return s.repo.ListBuildings(ctx)
}

// ArchiveBuilding soft-archives a building once every unit in it is archived.
func (s *Service) ArchiveBuilding(ctx context.Context, id int64, actor shared.Actor) error {
	remaining, err := s.repo.CountUnarchivedUnits(ctx, id)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return &ArchiveRefusedError{Reason: "All units must be archived before the building can be archived."}
	}
	return s.repo.ArchiveBuilding(ctx, id, s.record("building", id, "BUILDING_ARCHIVED", actor, nil))
}

// CreateUnit registers a unit. Unit numbers are unique within a building.
func (s *Service) CreateUnit(ctx context.Context, u Unit, actor shared.Actor) (*Unit, error) {
	if u.BuildingID == 0 {
		return nil, errors.New("units: building ID required")
	}
	if u.UnitNumber == "" {
		return nil, errors.New("units: unit number required")
	}
	if !u.MonthlyBaseRent.IsPositive() {
		return nil, errors.New("units: monthly base rent must be positive")
	}
	if u.Status == "" {
		u.Status = StatusAvailable
	}
	if !ValidStatus(u.Status) {
		return nil, errors.New("units: unknown unit status")
	}
	return s.repo.CreateUnit(ctx, u, s.record("unit", 0, "UNIT_CREATED", actor, map[string]any{
		"building_id": u.BuildingID,
		"unit_number": u.UnitNumber,
	}))
}

// GetUnit fetches one unit.
func (s *Service) GetUnit(ctx context.Context, id int64) (*Unit, error) {
	unit, err := s.repo.GetUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, shared.ErrNotFound
	}
	return unit, nil
}

// ListUnits returns units, optionally scoped to one building (0 = all).
func (s *Service) ListUnits(ctx context.Context, buildingID int64) ([]Unit, error) {
	return s.repo.ListUnits(ctx, buildingID)
}

// UpdateUnit patches rent or status. Inventory updates on externally
// controlled units are blocked by the Conflict Guard.
func (s *Service) UpdateUnit(ctx context.Context, id int64, input UpdateUnitInput, actor shared.Actor) (*Unit, error) {
	if err := s.guard.AssertNotExternallyControlled(ctx, id, guard.OpUpdateInventory); err != nil {
		return nil, err
	}
	changes := map[string]any{}
	if input.MonthlyBaseRent != nil {
		if !input.MonthlyBaseRent.IsPositive() {
			return nil, errors.New("units: monthly base rent must be positive")
		}
		changes["monthly_base_rent"] = input.MonthlyBaseRent.String()
	}
	if input.Status != nil {
		if !ValidStatus(*input.Status) {
			return nil, errors.New("units: unknown unit status")
		}
		changes["status"] = string(*input.Status)
	}
	if len(changes) == 0 {
		return nil, errors.New("units: no fields to update")
	}
	return s.repo.UpdateUnit(ctx, id, input, s.record("unit", id, "UNIT_UPDATED", actor, changes))
}

// ArchiveUnit soft-archives a unit once it has no active bookings and no
// outstanding ledger balance.
func (s *Service) ArchiveUnit(ctx context.Context, id int64, actor shared.Actor) error {
	if err := s.guard.AssertNotExternallyControlled(ctx, id, guard.OpUpdateInventory); err != nil {
		return err
	}
	active, err := s.repo.CountActiveBookings(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return &ArchiveRefusedError{Reason: "Unit still has active bookings."}
	}
	balance, err := s.balances.OutstandingBalance(ctx, id)
	if err != nil {
		return err
	}
	if !balance.IsZero() {
		return &ArchiveRefusedError{Reason: "Unit has an outstanding ledger balance."}
	}
	return s.repo.ArchiveUnit(ctx, id, s.record("unit", id, "UNIT_ARCHIVED", actor, nil))
}
