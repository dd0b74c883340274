// ABOUTME: SQLite implementation of the mutation audit ledger
// ABOUTME: Append-only entries with actor attribution, queryable per tenant

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Action constants for ledger entries.
const (
	ActionBlock     = "block"
	ActionUnblock   = "unblock"
	ActionToggle    = "toggle"
	ActionReset     = "reset"
	ActionAutoSleep = "auto_sleep"
)

// Entry is one audited action against a tenant's block-lists.
type Entry struct {
	ID        string
	SelfID    string
	Actor     string // user who triggered the action; "system" for auto-sleep
	Action    string
	List      string // group, user, private; empty for toggles and resets
	IDs       []string
	Detail    string
	CreatedAt time.Time
}

// Ledger is a SQLite-backed audit trail.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the audit ledger at the given path. Parent
// directories are created if needed.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audit")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS audit_entries (
			id TEXT PRIMARY KEY,
			self_id TEXT NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			list TEXT NOT NULL DEFAULT '',
			ids TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audit_self_created
			ON audit_entries(self_id, created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	logger.Info("audit ledger opened", "path", path)
	return &Ledger{db: db, logger: logger}, nil
}

// Record appends an entry to the ledger. The entry ID and timestamp
// are filled in when absent.
func (l *Ledger) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, self_id, actor, action, list, ids, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SelfID, entry.Actor, entry.Action, entry.List,
		strings.Join(entry.IDs, ","), entry.Detail, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries for the tenant, newest first.
func (l *Ledger) Recent(ctx context.Context, selfID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, self_id, actor, action, list, ids, detail, created_at
		FROM audit_entries
		WHERE self_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?`, selfID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var ids string
		if err := rows.Scan(&e.ID, &e.SelfID, &e.Actor, &e.Action, &e.List, &ids, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if ids != "" {
			e.IDs = strings.Split(ids, ",")
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
