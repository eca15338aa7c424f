package tryon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock records waits instead of sleeping.
type fakeClock struct {
	waits []time.Duration
}

func (c *fakeClock) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.waits = append(c.waits, d)
	return nil
}

func scriptedStatus(statuses ...JobStatus) (StatusFunc, *int) {
	calls := 0
	return func(ctx context.Context, h JobHandle) (StatusReport, error) {
		s := statuses[len(statuses)-1]
		if calls < len(statuses) {
			s = statuses[calls]
		}
		calls++
		return StatusReport{Status: s, Details: "boom", Payload: []byte(`{"n":1}`)}, nil
	}, &calls
}

func TestPollReturnsImmediatelyOnCompleted(t *testing.T) {
	clock := &fakeClock{}
	p := &Poller{Interval: time.Second, MaxAttempts: 5, Wait: clock.wait}
	status, calls := scriptedStatus(JobStatusCompleted)

	report, err := p.Poll(context.Background(), JobHandle{ID: "j"}, status)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, report.Status)
	assert.Equal(t, 1, *calls)
	assert.Empty(t, clock.waits)
}

func TestPollWaitsBetweenNonTerminalAnswers(t *testing.T) {
	clock := &fakeClock{}
	p := &Poller{Interval: 2 * time.Second, MaxAttempts: 5, Wait: clock.wait}
	status, calls := scriptedStatus(JobStatusQueued, JobStatusProcessing, JobStatusCompleted)

	_, err := p.Poll(context.Background(), JobHandle{ID: "j"}, status)
	require.NoError(t, err)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, clock.waits)
}

func TestPollFailedIsNotRetried(t *testing.T) {
	clock := &fakeClock{}
	p := &Poller{Interval: time.Second, MaxAttempts: 5, Wait: clock.wait}
	status, calls := scriptedStatus(JobStatusProcessing, JobStatusFailed, JobStatusCompleted)

	_, err := p.Poll(context.Background(), JobHandle{ID: "j"}, status)
	var remote *RemoteJobFailed
	require.True(t, errors.As(err, &remote), "got %v", err)
	assert.Equal(t, "boom", remote.Details)
	assert.Equal(t, 2, *calls)
}

func TestPollTimesOutAfterMaxAttempts(t *testing.T) {
	clock := &fakeClock{}
	p := &Poller{Interval: 10 * time.Second, MaxAttempts: 30, Wait: clock.wait}
	status, calls := scriptedStatus(JobStatusProcessing)

	_, err := p.Poll(context.Background(), JobHandle{ID: "j"}, status)
	var timeout *PollTimeout
	require.True(t, errors.As(err, &timeout), "got %v", err)
	assert.Equal(t, 30, *calls)
	assert.Equal(t, 30, timeout.Attempts)
	assert.Equal(t, 300*time.Second, timeout.Elapsed)
}

func TestPollStatusErrorIsNotRetried(t *testing.T) {
	calls := 0
	boom := &ProviderError{Provider: "fashn", StatusCode: 500}
	p := &Poller{Interval: time.Second, MaxAttempts: 5, Wait: (&fakeClock{}).wait}

	_, err := p.Poll(context.Background(), JobHandle{ID: "j"}, func(context.Context, JobHandle) (StatusReport, error) {
		calls++
		return StatusReport{}, boom
	})
	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestPollObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := &Poller{Interval: time.Second, MaxAttempts: 5, Wait: (&fakeClock{}).wait}

	_, err := p.Poll(ctx, JobHandle{ID: "j"}, func(context.Context, JobHandle) (StatusReport, error) {
		calls++
		cancel()
		return StatusReport{Status: JobStatusProcessing}, nil
	})
	var c *Cancelled
	require.True(t, errors.As(err, &c), "got %v", err)
	assert.Equal(t, 1, calls)
}

func TestSleepContextWakesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := SleepContext(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPollUsesRealTimerWhenWaitUnset(t *testing.T) {
	p := &Poller{Interval: time.Millisecond, MaxAttempts: 2}
	status, calls := scriptedStatus(JobStatusQueued, JobStatusCompleted)

	_, err := p.Poll(context.Background(), JobHandle{ID: "j"}, status)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)
}
