package mcp

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iTwin/insights-api-sample-console-app/internal/insights"
	"github.com/iTwin/insights-api-sample-console-app/internal/runlog"
)

// WatchState is the lifecycle of a background extraction watch.
type WatchState string

const (
	WatchRunning WatchState = "watching"
	WatchDone    WatchState = "done"
	WatchError   WatchState = "error"
)

// Watch waits for one extraction job in the background and records a
// terminal outcome in the run log.
type Watch struct {
	IModelID string
	JobID    string

	mu     sync.Mutex
	state  WatchState
	status insights.ExtractionStatus
	err    error
	doneCh chan struct{}
	cancel context.CancelFunc
}

// startWatch spawns the waiting goroutine and returns immediately. The
// goroutine outlives the tool call that started it, so it runs under its
// own context.
func startWatch(extraction *insights.ExtractionClient, runs runlog.Store, logger *zap.Logger,
	iModelID, jobID string, timeout time.Duration, opts ...insights.PollerOption) *Watch {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watch{
		IModelID: iModelID,
		JobID:    jobID,
		state:    WatchRunning,
		status:   insights.ExtractionStatus{State: insights.StateQueued},
		doneCh:   make(chan struct{}),
		cancel:   cancel,
	}
	go func() {
		defer close(w.doneCh)
		status, err := extraction.Wait(ctx, jobID, timeout, opts...)

		if err == nil && status.State.Terminal() {
			if ferr := runs.Finish(context.Background(), jobID, string(status.State), status.Reason); ferr != nil && !errors.Is(ferr, runlog.ErrNotFound) {
				logger.Warn("record extraction outcome", zap.String("job_id", jobID), zap.Error(ferr))
			}
		}

		w.mu.Lock()
		defer w.mu.Unlock()
		w.status, w.err = status, err
		if err != nil {
			w.state = WatchError
		} else {
			w.state = WatchDone
		}
		logger.Info("extraction watch finished",
			zap.String("job_id", jobID),
			zap.String("state", string(status.State)),
			zap.Error(err))
	}()
	return w
}

// Snapshot returns the watch state, the last observed status and the error
// that ended the watch, if any.
func (w *Watch) Snapshot() (WatchState, insights.ExtractionStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.status, w.err
}

// Done is closed when the watch ends.
func (w *Watch) Done() <-chan struct{} { return w.doneCh }

// Cancel stops the watch.
func (w *Watch) Cancel() { w.cancel() }
