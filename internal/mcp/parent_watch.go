package mcp

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
)

// ParentCheckInterval is how often WatchParent samples the parent pid.
var ParentCheckInterval = 2 * time.Second

// WatchParent calls cancel when the parent process goes away (the editor or
// agent that spawned the stdio server exited), so the server does not linger.
//
// It must not read stdin: the stdio transport owns it.
func WatchParent(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ppid := os.Getppid()
	go func() {
		ticker := time.NewTicker(ParentCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if os.Getppid() != ppid {
					logger.Warn("parent process exited, shutting down", zap.Int("parent_pid", ppid))
					cancel()
					return
				}
			}
		}
	}()
}
