package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads the audit timeline from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs the repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// TimelineWindow returns one page of the timeline, newest first.
func (r *PGRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	query, args := buildTimelineQuery(filters)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC OFFSET $%d LIMIT $%d", len(args)+1, len(args)+2)
	args = append(args, offset, limit)
	return r.queryRows(ctx, query, args)
}

// TimelineAll returns the full timeline matching filters, newest first.
func (r *PGRepository) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	query, args := buildTimelineQuery(filters)
	query += " ORDER BY occurred_at DESC"
	return r.queryRows(ctx, query, args)
}

func buildTimelineQuery(filters TimelineFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at <= $%d", filters.To)
	}
	if actor := strings.TrimSpace(filters.Actor); actor != "" {
		add("actor_name ILIKE '%%' || $%d || '%%'", actor)
	}
	if entity := strings.TrimSpace(filters.Entity); entity != "" {
		add("entity_type = $%d", entity)
	}
	if action := strings.TrimSpace(filters.Action); action != "" {
		add("action = $%d", action)
	}
	query := `SELECT occurred_at, actor_id, actor_name, actor_class, action, entity_type, entity_id, changes FROM audit_log`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	return query, args
}

func (r *PGRepository) queryRows(ctx context.Context, query string, args []any) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var (
			row TimelineRow
			at  time.Time
		)
		if err := rows.Scan(&at, &row.ActorID, &row.ActorName, &row.ActorClass, &row.Action, &row.EntityType, &row.EntityID, &row.Changes); err != nil {
			return nil, err
		}
		row.At = at
		out = append(out, row)
	}
	return out, rows.Err()
}
