package runlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sql, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sql.Close() })
	return map[string]Store{"sqlite": sql, "memory": NewMemStore()}
}

func TestStore_RecordAndLatest(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first, err := s.Record(ctx, "im-1", "job-1", "Queued")
			require.NoError(t, err)
			assert.Equal(t, "job-1", first.JobID)
			assert.False(t, first.Finished())

			_, err = s.Record(ctx, "im-2", "job-2", "Queued")
			require.NoError(t, err)
			_, err = s.Record(ctx, "im-1", "job-3", "Queued")
			require.NoError(t, err)

			latest, err := s.Latest(ctx, "im-1")
			require.NoError(t, err)
			assert.Equal(t, "job-3", latest.JobID)
			assert.Equal(t, "Queued", latest.State)
			assert.False(t, latest.StartedAt.IsZero())
		})
	}
}

func TestStore_Finish(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Record(ctx, "im-1", "job-1", "Queued")
			require.NoError(t, err)

			require.NoError(t, s.Finish(ctx, "job-1", "Failed", "bad query"))

			run, err := s.Latest(ctx, "im-1")
			require.NoError(t, err)
			assert.Equal(t, "Failed", run.State)
			assert.Equal(t, "bad query", run.Reason)
			assert.True(t, run.Finished())
			assert.False(t, run.FinishedAt.Before(run.StartedAt))

			err = s.Finish(ctx, "missing", "Succeeded", "")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ListOrderAndLimit(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, job := range []string{"a", "b", "c", "d"} {
				_, err := s.Record(ctx, "im", job, "Queued")
				require.NoError(t, err)
			}

			all, err := s.List(ctx, "im", 0)
			require.NoError(t, err)
			var jobs []string
			for _, r := range all {
				jobs = append(jobs, r.JobID)
			}
			assert.Equal(t, []string{"d", "c", "b", "a"}, jobs)

			two, err := s.List(ctx, "im", 2)
			require.NoError(t, err)
			require.Len(t, two, 2)
			assert.Equal(t, "d", two[0].JobID)

			none, err := s.List(ctx, "other", 0)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStore_LatestNotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Latest(context.Background(), "im")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_DuplicateJob(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Record(ctx, "im", "job", "Queued")
			require.NoError(t, err)
			_, err = s.Record(ctx, "im", "job", "Queued")
			assert.Error(t, err)
		})
	}
}

func TestSqlStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Record(ctx, "im", "job-1", "Running")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	run, err := s.Latest(ctx, "im")
	require.NoError(t, err)
	assert.Equal(t, "job-1", run.JobID)
	assert.Equal(t, "Running", run.State)
}
