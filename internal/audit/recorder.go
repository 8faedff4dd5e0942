package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Execer is the executor subset the recorder needs. Both *pgxpool.Pool and
// pgx.Tx satisfy it, so audit rows can join the transaction of the mutation
// they describe.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder writes rows into audit_log. A failed write must abort the
// enclosing mutation; callers never treat audit errors as best-effort.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record persists the entry using the recorder's own pool.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if r == nil || r.pool == nil {
		return errors.New("audit recorder not initialised")
	}
	return r.RecordIn(ctx, r.pool, entry)
}

// RecordIn persists the entry through the given executor, typically the
// transaction carrying the mutation being audited.
func (r *Recorder) RecordIn(ctx context.Context, q Execer, entry Entry) error {
	if q == nil {
		return errors.New("audit recorder requires an executor")
	}
	if entry.Action == "" || entry.EntityType == "" || entry.EntityID == "" {
		return errors.New("audit entry requires action/entity_type/entity_id")
	}
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return err
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err = q.Exec(ctx,
		`INSERT INTO audit_log (entity_type, entity_id, action, actor_id, actor_name, actor_class, changes, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.EntityType, entry.EntityID, entry.Action,
		entry.Actor.ID, entry.Actor.Name, string(entry.Actor.Class),
		changes, at)
	return err
}
