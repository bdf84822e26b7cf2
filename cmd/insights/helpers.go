package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/iTwin/insights-api-sample-console-app/internal/insights"
	"github.com/iTwin/insights-api-sample-console-app/internal/logging"
	"github.com/iTwin/insights-api-sample-console-app/internal/runlog"
)

// client builds an Insights client from the loaded configuration.
func (a *app) client() (*insights.Client, error) {
	tokens, err := a.cfg.ResolveToken()
	if err != nil {
		return nil, err
	}
	opts := append(a.cfg.ClientOptions(), insights.WithLogger(logging.New("insights")))
	return insights.New(a.cfg.API.BaseURL, tokens, opts...)
}

func (a *app) openRuns() (runlog.Store, error) {
	st, err := runlog.Open(a.cfg.RunLog.Path)
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", a.cfg.RunLog.Path, err)
	}
	return st, nil
}

// waitAndReport polls jobID until it finishes or the configured poll timeout
// passes, prints the outcome and records terminal states in runs.
func (a *app) waitAndReport(ctx context.Context, out io.Writer, extraction *insights.ExtractionClient, runs runlog.Store, jobID string) error {
	timeout := a.cfg.Poll.Timeout
	status, err := extraction.Wait(ctx, jobID, timeout,
		insights.WithPollInterval(a.cfg.Poll.Interval),
		insights.WithPollLogger(logging.New("poller")))
	switch {
	case insights.IsTimeout(err):
		fmt.Fprintf(out, "Extraction run out of time. Given timeout: %s\n", timeout)
		return nil
	case err != nil:
		return err
	}

	fmt.Fprintf(out, "Extraction finished with status: %s - %s\n", status.State, status.Reason)
	a.finish(ctx, runs, jobID, status)
	return nil
}

// finish records a terminal status. Jobs launched elsewhere are not in the
// run log and are skipped.
func (a *app) finish(ctx context.Context, runs runlog.Store, jobID string, status insights.ExtractionStatus) {
	if !status.State.Terminal() {
		return
	}
	err := runs.Finish(ctx, jobID, string(status.State), status.Reason)
	if err != nil && !errors.Is(err, runlog.ErrNotFound) {
		a.logger.Warn("record extraction outcome", zap.String("job_id", jobID), zap.Error(err))
	}
}
