package units

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nuzulstay/nuzulstay/internal/audit"
	"github.com/nuzulstay/nuzulstay/internal/guard"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

type nopExecer struct{}

func (nopExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

type unitKey struct {
	buildingID int64
	number     string
}

type memoryUnitsRepo struct {
	buildings      map[int64]*Building
	units          map[int64]*Unit
	byNumber       map[unitKey]int64
	activeBookings map[int64]int
	nextID         int64
}

func newMemoryUnitsRepo() *memoryUnitsRepo {
	return &memoryUnitsRepo{
		buildings:      make(map[int64]*Building),
		units:          make(map[int64]*Unit),
		byNumber:       make(map[unitKey]int64),
		activeBookings: make(map[int64]int),
	}
}

func (r *memoryUnitsRepo) CreateBuilding(ctx context.Context, b Building, record RecordFunc) (*Building, error) {
	if err := record(ctx, nopExecer{}); err != nil {
		return nil, err
	}
	r.nextID++
	b.ID = r.nextID
	r.buildings[b.ID] = &b
	return &b, nil
}

func (r *memoryUnitsRepo) ListBuildings(ctx context.Context) ([]Building, error) {
	var out []Building
	for _, b := range r.buildings {
		if b.ArchivedAt == nil {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memoryUnitsRepo) ArchiveBuilding(ctx context.Context, id int64, record RecordFunc) error {
	b, ok := r.buildings[id]
	if !ok || b.ArchivedAt != nil {
		return shared.ErrNotFound
	}
	if err := record(ctx, nopExecer{}); err != nil {
		return err
	}
	now := time.Now()
	b.ArchivedAt = &now
	return nil
}

func (r *memoryUnitsRepo) CountUnarchivedUnits(ctx context.Context, buildingID int64) (int, error) {
	count := 0
	for _, u := range r.units {
		if u.BuildingID == buildingID && u.ArchivedAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *memoryUnitsRepo) CreateUnit(ctx context.Context, u Unit, record RecordFunc) (*Unit, error) {
	key := unitKey{buildingID: u.BuildingID, number: u.UnitNumber}
	if _, exists := r.byNumber[key]; exists {
		return nil, shared.ErrUniquenessViolation
	}
	if err := record(ctx, nopExecer{}); err != nil {
		return nil, err
	}
	r.nextID++
	u.ID = r.nextID
	r.units[u.ID] = &u
	r.byNumber[key] = u.ID
	return &u, nil
}

func (r *memoryUnitsRepo) GetUnit(ctx context.Context, id int64) (*Unit, error) {
	u, ok := r.units[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (r *memoryUnitsRepo) ListUnits(ctx context.Context, buildingID int64) ([]Unit, error) {
	var out []Unit
	for _, u := range r.units {
		if u.ArchivedAt != nil {
			continue
		}
		if buildingID > 0 && u.BuildingID != buildingID {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (r *memoryUnitsRepo) UpdateUnit(ctx context.Context, id int64, input UpdateUnitInput, record RecordFunc) (*Unit, error) {
	u, ok := r.units[id]
	if !ok || u.ArchivedAt != nil {
		return nil, shared.ErrNotFound
	}
	if err := record(ctx, nopExecer{}); err != nil {
		return nil, err
	}
	if input.MonthlyBaseRent != nil {
		u.MonthlyBaseRent = *input.MonthlyBaseRent
	}
	if input.Status != nil {
		u.Status = *input.Status
	}
	copied := *u
	return &copied, nil
}

func (r *memoryUnitsRepo) ArchiveUnit(ctx context.Context, id int64, record RecordFunc) error {
	u, ok := r.units[id]
	if !ok || u.ArchivedAt != nil {
		return shared.ErrNotFound
	}
	if err := record(ctx, nopExecer{}); err != nil {
		return err
	}
	now := time.Now()
	u.ArchivedAt = &now
	return nil
}

func (r *memoryUnitsRepo) CountActiveBookings(ctx context.Context, unitID int64) (int, error) {
	return r.activeBookings[unitID], nil
}

type stubBalances struct {
	balances map[int64]decimal.Decimal
}

func (s stubBalances) OutstandingBalance(ctx context.Context, unitID int64) (decimal.Decimal, error) {
	if b, ok := s.balances[unitID]; ok {
		return b, nil
	}
	return decimal.Zero, nil
}

type stubAsserter struct {
	controlled map[int64]bool
}

func (a stubAsserter) AssertNotExternallyControlled(ctx context.Context, unitID int64, op guard.Operation) error {
	if a.controlled[unitID] {
		return &guard.ExternalConflictError{Operation: op, UnitID: unitID}
	}
	return nil
}

var unitsAdmin = shared.Actor{ID: 1, Name: "admin", Class: shared.ActorClassAdmin}

func newUnitsService(repo *memoryUnitsRepo, balances stubBalances, asserter stubAsserter) *Service {
	if balances.balances == nil {
		balances.balances = map[int64]decimal.Decimal{}
	}
	if asserter.controlled == nil {
		asserter.controlled = map[int64]bool{}
	}
	return NewService(repo, balances, asserter, audit.NewRecorder(nil))
}

func rent(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestUnitNumberUniquePerBuilding(t *testing.T) {
	repo := newMemoryUnitsRepo()
	svc := newUnitsService(repo, stubBalances{}, stubAsserter{})
	ctx := context.Background()

	_, err := svc.CreateUnit(ctx, Unit{BuildingID: 1, UnitNumber: "101", MonthlyBaseRent: rent("2500")}, unitsAdmin)
	require.NoError(t, err)

	_, err = svc.CreateUnit(ctx, Unit{BuildingID: 2, UnitNumber: "101", MonthlyBaseRent: rent("2500")}, unitsAdmin)
	require.NoError(t, err, "the same unit number may exist in another building")

	_, err = svc.CreateUnit(ctx, Unit{BuildingID: 1, UnitNumber: "101", MonthlyBaseRent: rent("3000")}, unitsAdmin)
	require.ErrorIs(t, err, shared.ErrUniquenessViolation)
}

func TestCreateUnitDefaultsToAvailable(t *testing.T) {
	svc := newUnitsService(newMemoryUnitsRepo(), stubBalances{}, stubAsserter{})

	created, err := svc.CreateUnit(context.Background(), Unit{BuildingID: 1, UnitNumber: "101", MonthlyBaseRent: rent("2500")}, unitsAdmin)
	require.NoError(t, err)
	require.Equal(t, StatusAvailable, created.Status)
}

func TestCreateUnitRejectsNonPositiveRent(t *testing.T) {
	svc := newUnitsService(newMemoryUnitsRepo(), stubBalances{}, stubAsserter{})

	_, err := svc.CreateUnit(context.Background(), Unit{BuildingID: 1, UnitNumber: "101", MonthlyBaseRent: rent("0")}, unitsAdmin)
	require.Error(t, err)
}

func TestArchiveUnitBlockedByActiveBookings(t *testing.T) {
	repo := newMemoryUnitsRepo()
	svc := newUnitsService(repo, stubBalances{}, stubAsserter{})
	ctx := context.Background()

	created, err := svc.CreateUnit(ctx, Unit{BuildingID: 1, UnitNumber: "101", MonthlyBaseRent: rent("2500")}, unitsAdmin)
	require.NoError(t, err)
	repo.activeBookings[created.ID] = 1

	err = svc.ArchiveUnit(ctx, created.ID, unitsAdmin)
	require.ErrorIs(t, err, ErrArchiveBlocked)
	require.Equal(t, "Unit still has active bookings.", shared.UserSafeMessage(err))
}

func TestArchiveUnitBlockedByOutstandingBalance(t *testing.T) {
	repo := newMemoryUnitsRepo()
	svc := newUnitsService(repo, stubBalances{balances: map[int64]decimal.Decimal{1: rent("1500")}}, stubAsserter{})
	ctx := context.Background()

	_, err := svc.CreateUnit(ctx, Unit{BuildingID: 1, UnitNumber: "101", MonthlyBaseRent: rent("2500")}, unitsAdmin)
	require.NoError(t, err)

	err = svc.ArchiveUnit(ctx, 1, unitsAdmin)
	require.ErrorIs(t, err, ErrArchiveBlocked)
	require.Equal(t, "Unit has an outstanding ledger balance.", shared.UserSafeMessage(err))
}

func TestArchiveUnitSucceedsWhenClear(t *testing.T) {
	repo := newMemoryUnitsRepo()
	svc := newUnitsService(repo, stubBalances{}, stubAsserter{})
	ctx := context.Background()

	created, err := svc.CreateUnit(ctx, Unit{BuildingID: 1, UnitNumber: "101", MonthlyBaseRent: rent("2500")}, unitsAdmin)
	require.NoError(t, err)
	require.NoError(t, svc.ArchiveUnit(ctx, created.ID, unitsAdmin))
	require.NotNil(t, repo.units[created.ID].ArchivedAt)
}

func TestUpdateUnitBlockedWhenExternallyControlled(t *testing.T) {
	repo := newMemoryUnitsRepo()
	svc := newUnitsService(repo, stubBalances{}, stubAsserter{controlled: map[int64]bool{1: true}})
	ctx := context.Background()

	_, err := svc.CreateUnit(ctx, Unit{BuildingID: 1, UnitNumber: "101", MonthlyBaseRent: rent("2500")}, unitsAdmin)
	require.NoError(t, err)

	status := StatusBlocked
	_, err = svc.UpdateUnit(ctx, 1, UpdateUnitInput{Status: &status}, unitsAdmin)
	conflict, ok := guard.AsExternalConflict(err)
	require.True(t, ok)
	require.Equal(t, guard.OpUpdateInventory, conflict.Operation)
}

func TestArchiveBuildingRequiresAllUnitsArchived(t *testing.T) {
	repo := newMemoryUnitsRepo()
	svc := newUnitsService(repo, stubBalances{}, stubAsserter{})
	ctx := context.Background()

	building, err := svc.CreateBuilding(ctx, Building{Name: "Al Salam Tower"}, unitsAdmin)
	require.NoError(t, err)
	unit, err := svc.CreateUnit(ctx, Unit{BuildingID: building.ID, UnitNumber: "101", MonthlyBaseRent: rent("2500")}, unitsAdmin)
	require.NoError(t, err)

	err = svc.ArchiveBuilding(ctx, building.ID, unitsAdmin)
	require.ErrorIs(t, err, ErrArchiveBlocked)

	require.NoError(t, svc.ArchiveUnit(ctx, unit.ID, unitsAdmin))
	require.NoError(t, svc.ArchiveBuilding(ctx, building.ID, unitsAdmin))
}

func TestUpdateUnitRequiresFields(t *testing.T) {
	repo := newMemoryUnitsRepo()
	svc := newUnitsService(repo, stubBalances{}, stubAsserter{})
	ctx := context.Background()

	_, err := svc.CreateUnit(ctx, Unit{BuildingID: 1, UnitNumber: "101", MonthlyBaseRent: rent("2500")}, unitsAdmin)
	require.NoError(t, err)

	_, err = svc.UpdateUnit(ctx, 1, UpdateUnitInput{}, unitsAdmin)
	require.Error(t, err)
}
