package jobs_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quoteline/internal/jobs"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeIdempotencyKeys(context.Context) (int64, error) {
	p.calls.Add(1)
	return 3, p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce(t *testing.T) {
	p := &countingPurger{}
	job := jobs.NewIdempotencyPurgeJob(p, "@every 1h", discardLogger())
	n, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	p.err = errors.New("boom")
	_, err = job.RunOnce(context.Background())
	require.EqualError(t, err, "boom")
}

func TestScheduledRuns(t *testing.T) {
	p := &countingPurger{}
	jm := jobs.NewJobManager(p, "@every 1s", discardLogger())
	require.NoError(t, jm.StartAll())
	require.Eventually(t, func() bool { return p.calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
	jm.StopAll()
}

func TestInvalidSchedule(t *testing.T) {
	jm := jobs.NewJobManager(&countingPurger{}, "every so often", discardLogger())
	require.Error(t, jm.StartAll())
}
