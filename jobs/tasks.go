package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/nuzulstay/nuzulstay/internal/jobs"
	"github.com/nuzulstay/nuzulstay/internal/occupancy"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAvailabilityWarmup refreshes the external-availability cache for
	// every mapped unit so admin reads rarely pay probe latency.
	TaskAvailabilityWarmup = "occupancy:availability_warmup"
	// TaskIdempotencyCleanup prunes processed webhook event keys.
	TaskIdempotencyCleanup = "webhook:idempotency_cleanup"
)

// NewAvailabilityWarmupTask constructs the warmup task.
func NewAvailabilityWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskAvailabilityWarmup, nil)
}

// NewAvailabilityWarmupHandler walks all external mappings and resolves each
// one, letting the cached checker store fresh successful probes.
func NewAvailabilityWarmupHandler(svc *occupancy.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("availability_warmup")
		mappings, err := svc.ListMappings(ctx)
		if err != nil {
			return tracker.End(err)
		}
		unknown := 0
		for _, mapping := range mappings {
			res, err := svc.ResolveForUnit(ctx, mapping.UnitID)
			if err != nil {
				return tracker.End(err)
			}
			if res.Source == occupancy.SourceUnknown {
				unknown++
			}
		}
		logger.Info("availability warmup",
			slog.Int("mappings", len(mappings)),
			slog.Int("unknown", unknown))
		return tracker.End(nil)
	}
}

// IdempotencyCleanupPayload bounds the retention of processed event keys.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// NewIdempotencyCleanupHandler prunes keys older than the payload retention
// (default 30 days). Keys must outlive the provider's retry horizon or a late
// replay would be applied twice.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("idempotency_cleanup")
		var payload IdempotencyCleanupPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}
		retention := time.Duration(payload.RetentionHours) * time.Hour
		if retention <= 0 {
			retention = 30 * 24 * time.Hour
		}
		if err := store.Cleanup(ctx, retention); err != nil {
			return tracker.End(err)
		}
		logger.Info("idempotency cleanup", slog.Duration("retention", retention))
		return tracker.End(nil)
	}
}
