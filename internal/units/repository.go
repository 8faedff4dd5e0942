package units

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nuzulstay/nuzulstay/internal/kpi"
	"github.com/nuzulstay/nuzulstay/internal/platform/db"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

// Repository provides PostgreSQL backed persistence for buildings and units.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const buildingColumns = `id, name, address, archived_at, created_at, updated_at`

func scanBuilding(row pgx.Row) (*Building, error) {
	var b Building
	if err := row.Scan(&b.ID, &b.Name, &b.Address, &b.ArchivedAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

const unitColumns = `id, building_id, unit_number, monthly_base_rent, status, archived_at, created_at, updated_at`

func scanUnit(row pgx.Row) (*Unit, error) {
	var u Unit
	if err := row.Scan(&u.ID, &u.BuildingID, &u.UnitNumber, &u.MonthlyBaseRent, &u.Status, &u.ArchivedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateBuilding inserts a building together with its audit row.
func (r *Repository) CreateBuilding(ctx context.Context, b Building, record RecordFunc) (*Building, error) {
	var created *Building
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO buildings (name, address, created_at, updated_at)
			VALUES ($1, $2, NOW(), NOW())
			RETURNING `+buildingColumns, b.Name, b.Address)
		var err error
		created, err = scanBuilding(row)
		if err != nil {
			return err
		}
		return record(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListBuildings returns unarchived buildings.
func (r *Repository) ListBuildings(ctx context.Context) ([]Building, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+buildingColumns+` FROM buildings WHERE archived_at IS NULL ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ArchiveBuilding stamps archived_at on a building.
func (r *Repository) ArchiveBuilding(ctx context.Context, id int64, record RecordFunc) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE buildings SET archived_at = NOW(), updated_at = NOW() WHERE id = $1 AND archived_at IS NULL`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return record(ctx, tx)
	})
}

// CountUnarchivedUnits counts the units still blocking a building archive.
func (r *Repository) CountUnarchivedUnits(ctx context.Context, buildingID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM units WHERE building_id = $1 AND archived_at IS NULL`, buildingID).Scan(&count)
	return count, err
}

// CreateUnit inserts a unit. The composite unique index keeps unit numbers
// unique per building, not globally.
func (r *Repository) CreateUnit(ctx context.Context, u Unit, record RecordFunc) (*Unit, error) {
	var created *Unit
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO units (building_id, unit_number, monthly_base_rent, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			RETURNING `+unitColumns,
			u.BuildingID, u.UnitNumber, u.MonthlyBaseRent, u.Status)
		var err error
		created, err = scanUnit(row)
		if err != nil {
			if db.IsUniqueViolation(err, "units_building_id_unit_number_key") {
				return shared.ErrUniquenessViolation
			}
			return err
		}
		return record(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetUnit returns a unit; nil when absent.
func (r *Repository) GetUnit(ctx context.Context, id int64) (*Unit, error) {
	unit, err := scanUnit(r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return unit, err
}

// ListUnits returns unarchived units, scoped to a building when buildingID > 0.
func (r *Repository) ListUnits(ctx context.Context, buildingID int64) ([]Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units WHERE archived_at IS NULL`
	args := []any{}
	if buildingID > 0 {
		query += ` AND building_id = $1`
		args = append(args, buildingID)
	}
	query += ` ORDER BY building_id, unit_number`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UpdateUnit patches rent and status with COALESCE semantics.
func (r *Repository) UpdateUnit(ctx context.Context, id int64, input UpdateUnitInput, record RecordFunc) (*Unit, error) {
	var updated *Unit
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE units
			SET monthly_base_rent = COALESCE($2, monthly_base_rent),
			    status = COALESCE($3, status),
			    updated_at = NOW()
			WHERE id = $1 AND archived_at IS NULL
			RETURNING `+unitColumns,
			id, input.MonthlyBaseRent, input.Status)
		var err error
		updated, err = scanUnit(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		if err != nil {
			return err
		}
		return record(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ArchiveUnit stamps archived_at on a unit.
func (r *Repository) ArchiveUnit(ctx context.Context, id int64, record RecordFunc) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE units SET archived_at = NOW(), updated_at = NOW() WHERE id = $1 AND archived_at IS NULL`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return record(ctx, tx)
	})
}

// CountActiveBookings counts bookings still blocking a unit archive.
func (r *Repository) CountActiveBookings(ctx context.Context, unitID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE unit_id = $1 AND status = 'active'`, unitID).Scan(&count)
	return count, err
}

// Snapshot aggregates the inventory slice the KPI engine reads. Occupancy is
// computed from active bookings at read time, never stored on the unit.
func (r *Repository) Snapshot(ctx context.Context) (kpi.UnitSnapshot, error) {
	var snapshot kpi.UnitSnapshot
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'BLOCKED'),
		       COUNT(*) FILTER (WHERE status = 'MAINTENANCE')
		FROM units WHERE archived_at IS NULL`).Scan(&snapshot.Total, &snapshot.Blocked, &snapshot.Maintenance)
	if err != nil {
		return kpi.UnitSnapshot{}, err
	}
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT b.unit_id)
		FROM bookings b
		JOIN units u ON u.id = b.unit_id
		WHERE b.status = 'active' AND u.archived_at IS NULL`).Scan(&snapshot.Occupied)
	if err != nil {
		return kpi.UnitSnapshot{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT monthly_base_rent FROM units WHERE archived_at IS NULL`)
	if err != nil {
		return kpi.UnitSnapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var rent decimal.Decimal
		if err := rows.Scan(&rent); err != nil {
			return kpi.UnitSnapshot{}, err
		}
		snapshot.MonthlyRents = append(snapshot.MonthlyRents, rent)
	}
	return snapshot, rows.Err()
}
