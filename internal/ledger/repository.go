package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nuzulstay/nuzulstay/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, booking_id, unit_id, type, amount, currency, status, method, guest_name, guest_phone, invoice_number, parent_ledger_id, created_at, updated_at`

func scanEntry(row pgx.Row) (*PaymentLedgerEntry, error) {
	var e PaymentLedgerEntry
	err := row.Scan(&e.ID, &e.BookingID, &e.UnitID, &e.Type, &e.Amount, &e.Currency, &e.Status,
		&e.Method, &e.GuestName, &e.GuestPhone, &e.InvoiceNumber, &e.ParentLedgerID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Get retrieves an entry by ID; nil when absent.
func (r *Repository) Get(ctx context.Context, id int64) (*PaymentLedgerEntry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM payment_ledger WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// NextInvoiceSequence returns the next per-booking sequence number. Races
// between concurrent creators surface as unique violations on the invoice
// number and are absorbed by the service's retry loop.
func (r *Repository) NextInvoiceSequence(ctx context.Context, bookingID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payment_ledger WHERE booking_id = $1`, bookingID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

// Insert creates an entry and its audit row in one transaction.
func (r *Repository) Insert(ctx context.Context, input CreateEntryInput, invoiceNumber string, record RecordFunc) (*PaymentLedgerEntry, error) {
	var entry *PaymentLedgerEntry
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO payment_ledger (booking_id, unit_id, type, amount, currency, status, method, guest_name, guest_phone, invoice_number, parent_ledger_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
			RETURNING `+entryColumns,
			input.BookingID, input.UnitID, input.Type, input.Amount, input.Currency, input.Status,
			input.Method, input.GuestName, input.GuestPhone, invoiceNumber, input.ParentLedgerID)
		var err error
		entry, err = scanEntry(row)
		if err != nil {
			if db.IsUniqueViolation(err, "payment_ledger_invoice_number_key") {
				return ErrDuplicateInvoiceNumber
			}
			return err
		}
		return record(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ApplyTransition performs a compare-and-swap on the current status and writes
// the audit row in the same transaction. A lost race against a concurrent
// writer surfaces as ErrConcurrentModification, never a silent overwrite.
func (r *Repository) ApplyTransition(ctx context.Context, id int64, from, to EntryStatus, record RecordFunc) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE payment_ledger SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
			to, id, from)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConcurrentModification
		}
		return record(ctx, tx)
	})
}

// UpdateFields patches mutable fields of a non-immutable entry. The status
// guard is re-checked in the WHERE clause so a concurrent webhook payment
// cannot be edited over.
func (r *Repository) UpdateFields(ctx context.Context, id int64, input UpdateEntryInput, record RecordFunc) (*PaymentLedgerEntry, error) {
	var entry *PaymentLedgerEntry
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE payment_ledger SET
				amount = COALESCE($2, amount),
				method = COALESCE($3, method),
				guest_name = COALESCE($4, guest_name),
				guest_phone = COALESCE($5, guest_phone),
				updated_at = NOW()
			WHERE id = $1 AND status NOT IN ('PAID', 'REFUNDED')
			RETURNING `+entryColumns,
			id, input.Amount, input.Method, input.GuestName, input.GuestPhone)
		var err error
		entry, err = scanEntry(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEntryImmutable
		}
		if err != nil {
			return err
		}
		return record(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Search lists entries with filters and the total match count.
func (r *Repository) Search(ctx context.Context, req SearchRequest) ([]PaymentLedgerEntry, int, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if req.Status != "" {
		add("status = $%d", req.Status)
	}
	if req.Type != "" {
		add("type = $%d", req.Type)
	}
	if req.Method != "" {
		add("method = $%d", req.Method)
	}
	if !req.From.IsZero() {
		add("created_at >= $%d", req.From)
	}
	if !req.To.IsZero() {
		add("created_at <= $%d", req.To)
	}
	if q := strings.TrimSpace(req.Query); q != "" {
		args = append(args, q)
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(guest_name ILIKE '%%' || $%d || '%%' OR guest_phone ILIKE '%%' || $%d || '%%' OR invoice_number ILIKE '%%' || $%d || '%%')", n, n, n))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payment_ledger`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	query := `SELECT ` + entryColumns + ` FROM payment_ledger` + where +
		fmt.Sprintf(" ORDER BY created_at DESC OFFSET $%d LIMIT $%d", len(args)+1, len(args)+2)
	args = append(args, (page-1)*perPage, perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []PaymentLedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *entry)
	}
	return out, total, rows.Err()
}

// OutstandingBalance sums not-yet-settled amounts for a unit.
func (r *Repository) OutstandingBalance(ctx context.Context, unitID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payment_ledger WHERE unit_id = $1 AND status IN ('DUE', 'PENDING', 'FAILED')`,
		unitID).Scan(&sum)
	return sum, err
}

// CollectedBetween sums PAID amounts confirmed inside the window.
func (r *Repository) CollectedBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payment_ledger WHERE status = 'PAID' AND updated_at >= $1 AND updated_at < $2`,
		from, to).Scan(&sum)
	return sum, err
}
