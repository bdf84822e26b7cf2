package runlog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates the database at path, creating its parent
// directory (e.g. .insights) when missing.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create runlog dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version > schemaVersion:
		return fmt.Errorf("runlog schema version %d is newer than supported %d", version, schemaVersion)
	}
	return nil
}

// Record implements Store.
func (s *SqlStore) Record(ctx context.Context, iModelID, jobID, state string) (*Run, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (imodel_id, job_id, state, started_at) VALUES (?, ?, ?, ?)",
		iModelID, jobID, state, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("record run %s: %w", jobID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("record run %s: %w", jobID, err)
	}
	return &Run{ID: id, IModelID: iModelID, JobID: jobID, State: state, StartedAt: now}, nil
}

// Finish implements Store.
func (s *SqlStore) Finish(ctx context.Context, jobID, state, reason string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET state = ?, reason = ?, finished_at = ? WHERE job_id = ?",
		state, reason, time.Now().UTC().UnixNano(), jobID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", jobID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", jobID, ErrNotFound)
	}
	return nil
}

// Latest implements Store.
func (s *SqlStore) Latest(ctx context.Context, iModelID string) (*Run, error) {
	runs, err := s.List(ctx, iModelID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("latest run of %s: %w", iModelID, ErrNotFound)
	}
	return runs[0], nil
}

// List implements Store.
func (s *SqlStore) List(ctx context.Context, iModelID string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, imodel_id, job_id, state, reason, started_at, finished_at
		 FROM runs WHERE imodel_id = ? ORDER BY id DESC LIMIT ?`, iModelID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.IModelID, &r.JobID, &r.State, &r.Reason, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64).UTC()
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// Close implements Store.
func (s *SqlStore) Close() error {
	return s.db.Close()
}
