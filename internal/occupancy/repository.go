package occupancy

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nuzulstay/nuzulstay/internal/platform/db"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

// Repository provides PostgreSQL backed persistence for external mappings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const mappingColumns = `id, unit_id, connection_type, source_of_truth, property_id, import_url, created_at, updated_at`

func scanMapping(row pgx.Row) (*ExternalMapping, error) {
	var m ExternalMapping
	err := row.Scan(&m.ID, &m.UnitID, &m.ConnectionType, &m.SourceOfTruth, &m.PropertyID, &m.ImportURL, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByUnit returns the mapping for a unit; nil when the unit is unmapped.
func (r *Repository) GetByUnit(ctx context.Context, unitID int64) (*ExternalMapping, error) {
	mapping, err := scanMapping(r.pool.QueryRow(ctx, `SELECT `+mappingColumns+` FROM external_mapping WHERE unit_id = $1`, unitID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return mapping, err
}

// Create inserts the mapping and its audit row in one transaction. The unique
// index on unit_id enforces at most one mapping per unit.
func (r *Repository) Create(ctx context.Context, mapping ExternalMapping, record RecordFunc) (*ExternalMapping, error) {
	var created *ExternalMapping
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO external_mapping (unit_id, connection_type, source_of_truth, property_id, import_url, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			RETURNING `+mappingColumns,
			mapping.UnitID, mapping.ConnectionType, mapping.SourceOfTruth, mapping.PropertyID, mapping.ImportURL)
		var err error
		created, err = scanMapping(row)
		if err != nil {
			if db.IsUniqueViolation(err, "external_mapping_unit_id_key") {
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

// Update replaces the mapping row for a unit.
func (r *Repository) Update(ctx context.Context, mapping ExternalMapping, record RecordFunc) (*ExternalMapping, error) {
	var updated *ExternalMapping
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE external_mapping
			SET connection_type = $2, source_of_truth = $3, property_id = $4, import_url = $5, updated_at = NOW()
			WHERE unit_id = $1
			RETURNING `+mappingColumns,
			mapping.UnitID, mapping.ConnectionType, mapping.SourceOfTruth, mapping.PropertyID, mapping.ImportURL)
		var err error
		updated, err = scanMapping(row)
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

// Delete removes the mapping for a unit.
func (r *Repository) Delete(ctx context.Context, unitID int64, record RecordFunc) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM external_mapping WHERE unit_id = $1`, unitID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return record(ctx, tx)
	})
}

// List returns all mappings.
func (r *Repository) List(ctx context.Context) ([]ExternalMapping, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+mappingColumns+` FROM external_mapping ORDER BY unit_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExternalMapping
	for rows.Next() {
		mapping, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *mapping)
	}
	return out, rows.Err()
}
