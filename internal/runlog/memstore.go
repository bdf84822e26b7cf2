package runlog

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemStore implements Store in memory.
type MemStore struct {
	mu   sync.Mutex
	runs []*Run
	next int64
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Record implements Store.
func (s *MemStore) Record(_ context.Context, iModelID, jobID, state string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.JobID == jobID {
			return nil, fmt.Errorf("record run %s: job already recorded", jobID)
		}
	}
	s.next++
	r := &Run{ID: s.next, IModelID: iModelID, JobID: jobID, State: state, StartedAt: time.Now().UTC()}
	s.runs = append(s.runs, r)
	cp := *r
	return &cp, nil
}

// Finish implements Store.
func (s *MemStore) Finish(_ context.Context, jobID, state, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.JobID == jobID {
			r.State, r.Reason, r.FinishedAt = state, reason, time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("finish run %s: %w", jobID, ErrNotFound)
}

// Latest implements Store.
func (s *MemStore) Latest(ctx context.Context, iModelID string) (*Run, error) {
	runs, _ := s.List(ctx, iModelID, 1)
	if len(runs) == 0 {
		return nil, fmt.Errorf("latest run of %s: %w", iModelID, ErrNotFound)
	}
	return runs[0], nil
}

// List implements Store.
func (s *MemStore) List(_ context.Context, iModelID string, limit int) ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Run
	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].IModelID != iModelID {
			continue
		}
		cp := *s.runs[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }
