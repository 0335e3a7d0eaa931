// Package history keeps a SQLite index of triage records so repeated
// failures of the same test can be summarized across runs. The JSON stores
// stay the source of truth; the index is rebuilt from them on every Sync.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"qatriage/internal/artifacts"
	"qatriage/internal/assistant"
	"qatriage/internal/logging"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultFile is the index file name inside the artifacts directory.
const DefaultFile = "history.db"

// Index is a SQLite-backed view over both artifact stores.
type Index struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// TestSummary aggregates every record stored for one test id.
type TestSummary struct {
	TestID        string
	LatestTitle   string
	Failures      int
	Suggestions   int
	WorstSeverity assistant.Severity
	FirstSeen     time.Time
	LastSeen      time.Time
}

// Open opens (or creates) the index at path. ":memory:" gives a throwaway index.
func Open(path string) (*Index, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across queries.
	db.SetMaxOpenConns(1)

	idx := &Index{db: db, dbPath: path}
	if err := idx.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bug_reports (
		id TEXT PRIMARY KEY,
		test_id TEXT NOT NULL,
		title TEXT NOT NULL,
		severity TEXT NOT NULL,
		severity_rank INTEGER NOT NULL,
		url TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bug_reports_test ON bug_reports(test_id);

	CREATE TABLE IF NOT EXISTS fix_suggestions (
		id TEXT PRIMARY KEY,
		test_id TEXT NOT NULL,
		test_file TEXT,
		confidence TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fix_suggestions_test ON fix_suggestions(test_id);
	`
	if _, err := i.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

func severityRank(s assistant.Severity) int {
	switch s {
	case assistant.SeverityCritical:
		return 4
	case assistant.SeverityHigh:
		return 3
	case assistant.SeverityMedium:
		return 2
	default:
		return 1
	}
}

var severityByRank = map[int]assistant.Severity{
	1: assistant.SeverityLow,
	2: assistant.SeverityMedium,
	3: assistant.SeverityHigh,
	4: assistant.SeverityCritical,
}

// recordKeys namespaces keys derived for records written without an id.
var recordKeys = uuid.NewSHA1(uuid.NameSpaceURL, []byte("qatriage/history-record"))

// recordKey returns id, or a stable key derived from the record's content
// when the writer left id empty.
func recordKey(id string, parts ...string) string {
	if id != "" {
		return id
	}
	return "derived-" + uuid.NewSHA1(recordKeys, []byte(strings.Join(parts, "\x00"))).String()
}

// Sync inserts records not yet indexed. Records are keyed by their id (or a
// content-derived key when id is empty), so syncing the same store twice is a no-op.
func (i *Index) Sync(ctx context.Context, bugs []artifacts.BugReportRecord, fixes []artifacts.FixSuggestionRecord) (added int, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryStore, "history sync")
	defer timer.Stop()

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin sync: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, b := range bugs {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO bug_reports (id, test_id, title, severity, severity_rank, url, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			recordKey(b.ID, b.TestID, b.CreatedAt.UTC().Format(time.RFC3339Nano), b.Title, string(b.Severity)), b.TestID, b.Title, string(b.Severity), severityRank(b.Severity), b.URL, b.CreatedAt.UnixNano())
		if err != nil {
			return 0, fmt.Errorf("failed to index bug report for %s: %w", b.TestID, err)
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}

	for _, f := range fixes {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO fix_suggestions (id, test_id, test_file, confidence, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			recordKey(f.ID, f.TestID, f.CreatedAt.UTC().Format(time.RFC3339Nano), f.TestName, f.Description), f.TestID, f.TestFile, string(f.Confidence), f.CreatedAt.UnixNano())
		if err != nil {
			return 0, fmt.Errorf("failed to index fix suggestion for %s: %w", f.TestID, err)
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sync: %w", err)
	}
	logging.StoreDebug("history: indexed %d new record(s) in %s", added, i.dbPath)
	return added, nil
}

// Summaries returns one row per test with at least one bug report, most
// frequent failures first.
func (i *Index) Summaries(ctx context.Context) ([]TestSummary, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	rows, err := i.db.QueryContext(ctx, `
	SELECT b.test_id,
	       (SELECT title FROM bug_reports l WHERE l.test_id = b.test_id ORDER BY l.created_at DESC LIMIT 1),
	       COUNT(*),
	       (SELECT COUNT(*) FROM fix_suggestions f WHERE f.test_id = b.test_id),
	       MAX(b.severity_rank),
	       MIN(b.created_at),
	       MAX(b.created_at)
	FROM bug_reports b
	GROUP BY b.test_id
	ORDER BY COUNT(*) DESC, MAX(b.created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []TestSummary
	for rows.Next() {
		var s TestSummary
		var rank int
		var first, last int64
		if err := rows.Scan(&s.TestID, &s.LatestTitle, &s.Failures, &s.Suggestions, &rank, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		s.WorstSeverity = severityByRank[rank]
		s.FirstSeen = time.Unix(0, first).UTC()
		s.LastSeen = time.Unix(0, last).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the database.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.db.Close()
}
