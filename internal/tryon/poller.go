package tryon

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"tryon/internal/infra"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultMaxAttempts  = 30
)

// StatusFunc queries the remote status of one job.
type StatusFunc func(ctx context.Context, handle JobHandle) (StatusReport, error)

// WaitFunc suspends for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Poller repeatedly queries a job until it reaches a terminal status or the
// attempt budget runs out. The interval is fixed, so the worst case lasts
// exactly MaxAttempts * Interval.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	Wait        WaitFunc
	Logger      *infra.Logger
}

// NewPoller returns a poller with default interval and budget.
func NewPoller() *Poller {
	return &Poller{Interval: DefaultPollInterval, MaxAttempts: DefaultMaxAttempts}
}

// SleepContext parks the goroutine on a timer and wakes early on cancellation.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poll returns the completed status report. A failed job yields
// RemoteJobFailed, an exhausted budget PollTimeout, and a cancelled context
// Cancelled. Status query errors are returned as they are.
func (p *Poller) Poll(ctx context.Context, handle JobHandle, status StatusFunc) (StatusReport, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	wait := p.Wait
	if wait == nil {
		wait = SleepContext
	}
	logger := p.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}

	var waited time.Duration
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return StatusReport{}, &Cancelled{Err: err}
		}
		report, err := status(ctx, handle)
		if err != nil {
			return StatusReport{}, cancelled(err)
		}
		logger.Debug().
			Str("provider", handle.ProviderName).
			Str("job_id", handle.ID).
			Int("attempt", attempt).
			Str("status", string(report.Status)).
			Msg("tryon: polled job status")

		switch report.Status {
		case JobStatusCompleted:
			return report, nil
		case JobStatusFailed:
			return StatusReport{}, &RemoteJobFailed{JobID: handle.ID, Details: report.Details}
		}

		if err := ctx.Err(); err != nil {
			return StatusReport{}, &Cancelled{Err: err}
		}
		if err := wait(ctx, interval); err != nil {
			return StatusReport{}, &Cancelled{Err: err}
		}
		waited += interval
	}
	return StatusReport{}, &PollTimeout{JobID: handle.ID, Attempts: maxAttempts, Elapsed: waited}
}
