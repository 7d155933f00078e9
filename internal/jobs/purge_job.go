package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Purger removes expired idempotency records.
type Purger interface {
	PurgeIdempotencyKeys(ctx context.Context) (int64, error)
}

// IdempotencyPurgeJob deletes expired idempotency records on a cron schedule.
type IdempotencyPurgeJob struct {
	purger   Purger
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

func NewIdempotencyPurgeJob(purger Purger, schedule string, logger *slog.Logger) *IdempotencyPurgeJob {
	return &IdempotencyPurgeJob{
		purger:   purger,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "idempotency_purge_job"),
	}
}

// RunOnce performs a single purge pass.
func (j *IdempotencyPurgeJob) RunOnce(ctx context.Context) (int64, error) {
	n, err := j.purger.PurgeIdempotencyKeys(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.InfoContext(ctx, "purged expired idempotency keys", "count", n)
	}
	return n, nil
}

func (j *IdempotencyPurgeJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		ctx := context.Background()
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.ErrorContext(ctx, "idempotency purge failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", j.schedule, err)
	}
	j.cron.Start()
	j.logger.Info("idempotency purge job started", "schedule", j.schedule)
	return nil
}

// Stop halts scheduling and waits for a running pass to finish.
func (j *IdempotencyPurgeJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("idempotency purge job stopped")
}
