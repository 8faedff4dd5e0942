package renewal

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nuzulstay/nuzulstay/internal/platform/db"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

// Repository provides PostgreSQL backed persistence for renewals.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetBooking loads the renewal snapshot of a booking; nil when absent.
func (r *Repository) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	var b Booking
	err := r.pool.QueryRow(ctx, `
		SELECT id, unit_id, status, term, renewals_used, max_renewals,
		       start_date, end_date, monthly_rent, currency, guest_name, guest_phone
		FROM bookings WHERE id = $1`, id).Scan(
		&b.ID, &b.UnitID, &b.Status, &b.Term, &b.RenewalsUsed, &b.MaxRenewals,
		&b.StartDate, &b.EndDate, &b.MonthlyRent, &b.Currency, &b.GuestName, &b.GuestPhone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const extensionColumns = `id, booking_id, unit_id, previous_end_date, new_end_date, path, requires_external_update, change_note, ledger_entry_id, created_at`

func scanExtension(row pgx.Row) (*Extension, error) {
	var e Extension
	err := row.Scan(&e.ID, &e.BookingID, &e.UnitID, &e.PreviousEndDate, &e.NewEndDate, &e.Path, &e.RequiresExternalUpdate, &e.ChangeNote, &e.LedgerEntryID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Approve inserts the extension row and advances the booking's end date and
// renewal count in one transaction, together with the audit row.
func (r *Repository) Approve(ctx context.Context, ext Extension, record RecordFunc) (*Extension, error) {
	var approved *Extension
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO booking_extensions (booking_id, unit_id, previous_end_date, new_end_date, path, requires_external_update, change_note, ledger_entry_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			RETURNING `+extensionColumns,
			ext.BookingID, ext.UnitID, ext.PreviousEndDate, ext.NewEndDate, ext.Path, ext.RequiresExternalUpdate, ext.ChangeNote, ext.LedgerEntryID)
		var err error
		approved, err = scanExtension(row)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE bookings
			SET end_date = $2, renewals_used = renewals_used + 1, updated_at = NOW()
			WHERE id = $1`, ext.BookingID, ext.NewEndDate)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return record(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// ListByBooking returns extensions newest-first.
func (r *Repository) ListByBooking(ctx context.Context, bookingID int64) ([]Extension, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+extensionColumns+` FROM booking_extensions WHERE booking_id = $1 ORDER BY created_at DESC`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Extension
	for rows.Next() {
		ext, err := scanExtension(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ext)
	}
	return out, rows.Err()
}
