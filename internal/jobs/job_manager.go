// Package jobs runs scheduled maintenance on github.com/robfig/cron/v3.
package jobs

import (
	"fmt"
	"log/slog"
)

// JobManager starts and stops the background jobs of a running server.
type JobManager struct {
	purgeJob *IdempotencyPurgeJob
}

func NewJobManager(purger Purger, purgeSchedule string, logger *slog.Logger) *JobManager {
	return &JobManager{
		purgeJob: NewIdempotencyPurgeJob(purger, purgeSchedule, logger),
	}
}

func (jm *JobManager) StartAll() error {
	if err := jm.purgeJob.Start(); err != nil {
		return fmt.Errorf("failed to start idempotency purge job: %w", err)
	}
	return nil
}

func (jm *JobManager) StopAll() {
	jm.purgeJob.Stop()
}
