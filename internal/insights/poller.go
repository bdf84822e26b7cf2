package insights

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is the fixed delay between two status requests.
const DefaultPollInterval = 10 * time.Second

// StatusGetter returns the current status of an extraction job.
type StatusGetter interface {
	Status(ctx context.Context, jobID string) (ExtractionStatus, error)
}

// Clock abstracts time for the Poller.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller waits for an extraction job to finish by polling its status at a
// fixed interval. A Poller holds no per-job state and may be shared.
type Poller struct {
	getter   StatusGetter
	interval time.Duration
	clock    Clock
	logger   *zap.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) PollerOption {
	return func(p *Poller) { p.clock = c }
}

// WithPollLogger configures structured logging of each observed status.
func WithPollLogger(l *zap.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPoller returns a Poller reading statuses from getter.
func NewPoller(getter StatusGetter, opts ...PollerOption) *Poller {
	p := &Poller{
		getter:   getter,
		interval: DefaultPollInterval,
		clock:    realClock{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WaitForCompletion polls jobID until it reaches Succeeded or Failed.
//
// The deadline is checked before each poll, never during one, so a slow
// request can overrun timeout by its own latency. On timeout it returns the
// last observed status with a *TimeoutError. A failed poll is logged and ends
// the wait with the last observed status and a *PollError; it is never
// retried. A timeout <= 0 disables the deadline, leaving ctx in charge.
func (p *Poller) WaitForCompletion(ctx context.Context, jobID string, timeout time.Duration) (ExtractionStatus, error) {
	status := ExtractionStatus{State: StatePending}
	start := p.clock.Now()
	log := p.logger.With(zap.String("job_id", jobID))

	for attempt := 1; status.State.InProgress(); attempt++ {
		elapsed := p.clock.Now().Sub(start)
		if timeout > 0 && elapsed > timeout {
			log.Warn("extraction wait timed out",
				zap.Duration("elapsed", elapsed),
				zap.Duration("timeout", timeout),
				zap.String("state", string(status.State)))
			return status, &TimeoutError{JobID: jobID, Timeout: timeout, Elapsed: elapsed, LastState: status.State}
		}

		next, err := p.getter.Status(ctx, jobID)
		if err != nil {
			log.Error("extraction status poll failed", zap.Int("attempt", attempt), zap.Error(err))
			return status, &PollError{JobID: jobID, Attempt: attempt, Err: err}
		}
		status = next

		log.Info("retrieved extraction status",
			zap.String("state", string(status.State)),
			zap.String("reason", status.Reason),
			zap.Duration("elapsed", p.clock.Now().Sub(start)))

		if !status.State.Known() {
			return status, &InvalidResponseError{Operation: "poll extraction " + jobID, Reason: "unknown state " + string(status.State)}
		}
		if status.State.Terminal() {
			break
		}
		if err := p.clock.Sleep(ctx, p.interval); err != nil {
			return status, err
		}
	}
	return status, nil
}
