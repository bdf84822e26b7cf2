// Package runlog keeps a local history of launched extraction runs so a
// later command can report on, or resume waiting for, the latest run of an
// iModel.
package runlog

import (
	"context"
	"errors"
	"time"
)

// DefaultDBPath is the default relative path of the SQLite database.
const DefaultDBPath = ".insights/runs.db"

// ErrNotFound is returned when no run matches.
var ErrNotFound = errors.New("runlog: run not found")

// Run is one extraction job launched from this machine.
type Run struct {
	ID         int64
	IModelID   string
	JobID      string
	State      string
	Reason     string
	StartedAt  time.Time
	FinishedAt time.Time // zero until Finish
}

// Finished reports whether an outcome has been recorded.
func (r *Run) Finished() bool { return !r.FinishedAt.IsZero() }

// Store is the persistence facade for runs. Implementations are SQLite
// (SqlStore) or in-memory (MemStore).
type Store interface {
	// Record stores a newly launched job in state.
	Record(ctx context.Context, iModelID, jobID, state string) (*Run, error)
	// Finish stores the last observed state of jobID.
	Finish(ctx context.Context, jobID, state, reason string) error
	// Latest returns the most recently recorded run of iModelID.
	Latest(ctx context.Context, iModelID string) (*Run, error)
	// List returns up to limit runs of iModelID, newest first. limit <= 0 means all.
	List(ctx context.Context, iModelID string, limit int) ([]*Run, error)
	Close() error
}

var (
	_ Store = (*SqlStore)(nil)
	_ Store = (*MemStore)(nil)
)
