// Package history persists one snapshot per grammar build so that the effect
// of catalog and parameter changes on grammar size stays traceable over time.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Snapshot records one completed grammar build. Programs holds the exact
// derivation count as decimal text; the values routinely exceed any integer
// column.
type Snapshot struct {
	ProjectKey    string
	SchemaVersion int
	BuildID       string
	Job           string
	Timestamp     time.Time

	TypeRequest      string
	MaxDepth         int
	NGram            int
	MinVariableDepth int
	Recursive        bool

	StateCount          int
	RuleCount           int
	PrunedNonProductive int
	PrunedUnreachable   int
	Programs            string
	Fingerprint         string
	Duration            time.Duration
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) SaveSnapshot(projectKey string, snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectKey = strings.TrimSpace(projectKey)
	if projectKey == "" {
		projectKey = "default"
	}

	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now().UTC()
	}
	if snapshot.SchemaVersion == 0 {
		snapshot.SchemaVersion = SchemaVersion
	}
	if snapshot.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported snapshot schema version %d", snapshot.SchemaVersion)
	}
	if strings.TrimSpace(snapshot.BuildID) == "" {
		return fmt.Errorf("snapshot build id must not be empty")
	}
	if strings.TrimSpace(snapshot.Job) == "" {
		return fmt.Errorf("snapshot job must not be empty")
	}
	if strings.TrimSpace(snapshot.Programs) == "" {
		snapshot.Programs = "0"
	}

	recursive := 0
	if snapshot.Recursive {
		recursive = 1
	}

	query := `
INSERT INTO grammar_snapshots (
  project_key, schema_version, build_id, job, ts_utc, type_request,
  max_depth, n_gram, min_variable_depth, recursive,
  state_count, rule_count, pruned_non_productive, pruned_unreachable,
  programs, fingerprint, duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(project_key, job, build_id) DO UPDATE SET
  schema_version=excluded.schema_version,
  ts_utc=excluded.ts_utc,
  type_request=excluded.type_request,
  max_depth=excluded.max_depth,
  n_gram=excluded.n_gram,
  min_variable_depth=excluded.min_variable_depth,
  recursive=excluded.recursive,
  state_count=excluded.state_count,
  rule_count=excluded.rule_count,
  pruned_non_productive=excluded.pruned_non_productive,
  pruned_unreachable=excluded.pruned_unreachable,
  programs=excluded.programs,
  fingerprint=excluded.fingerprint,
  duration_ms=excluded.duration_ms
`
	return s.withRetry("save snapshot", func() error {
		_, err := s.db.Exec(
			query,
			projectKey,
			snapshot.SchemaVersion,
			snapshot.BuildID,
			snapshot.Job,
			snapshot.Timestamp.UTC().Format(time.RFC3339Nano),
			snapshot.TypeRequest,
			snapshot.MaxDepth,
			snapshot.NGram,
			snapshot.MinVariableDepth,
			recursive,
			snapshot.StateCount,
			snapshot.RuleCount,
			snapshot.PrunedNonProductive,
			snapshot.PrunedUnreachable,
			snapshot.Programs,
			snapshot.Fingerprint,
			snapshot.Duration.Milliseconds(),
		)
		return err
	})
}

// LoadSnapshots returns the snapshots of a project in timestamp order. An
// empty job matches all jobs; a zero since matches from the beginning.
func (s *Store) LoadSnapshots(projectKey, job string, since time.Time) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectKey = strings.TrimSpace(projectKey)
	if projectKey == "" {
		projectKey = "default"
	}

	base := `
SELECT
  project_key, schema_version, build_id, job, ts_utc, type_request,
  max_depth, n_gram, min_variable_depth, recursive,
  state_count, rule_count, pruned_non_productive, pruned_unreachable,
  programs, fingerprint, duration_ms
FROM grammar_snapshots
 WHERE project_key = ?`
	args := make([]any, 0, 3)
	args = append(args, projectKey)
	if strings.TrimSpace(job) != "" {
		base += " AND job = ?"
		args = append(args, job)
	}
	if !since.IsZero() {
		base += " AND ts_utc >= ?"
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	base += " ORDER BY ts_utc ASC, job ASC, build_id ASC"

	var rows *sql.Rows
	err := s.withRetry("load snapshots", func() error {
		var qErr error
		rows, qErr = s.db.Query(base, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		var (
			tsRaw      string
			recursive  int
			durationMS int64
			snapshot   Snapshot
		)
		if err := rows.Scan(
			&snapshot.ProjectKey,
			&snapshot.SchemaVersion,
			&snapshot.BuildID,
			&snapshot.Job,
			&tsRaw,
			&snapshot.TypeRequest,
			&snapshot.MaxDepth,
			&snapshot.NGram,
			&snapshot.MinVariableDepth,
			&recursive,
			&snapshot.StateCount,
			&snapshot.RuleCount,
			&snapshot.PrunedNonProductive,
			&snapshot.PrunedUnreachable,
			&snapshot.Programs,
			&snapshot.Fingerprint,
			&durationMS,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot timestamp %q: %w", tsRaw, err)
		}
		snapshot.Timestamp = ts.UTC()
		snapshot.Recursive = recursive != 0
		snapshot.Duration = time.Duration(durationMS) * time.Millisecond

		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snapshots, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
