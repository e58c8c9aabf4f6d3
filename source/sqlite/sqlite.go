/*
Package sqlite provides a local mirror implementation of engine.DataSource.

PURPOSE:
  Keeps a sqlite copy of the sheet rows so the dashboard can keep serving
  (read-only in spirit) when the external sheet is unreachable, and gives
  tests a hermetic DataSource. The mirror is refreshed from each
  published snapshot via SyncFrom.

SCHEMA:
  sheet_rows:
    seq   INTEGER PRIMARY KEY AUTOINCREMENT   preserves sheet row order
    code  TEXT                                project code, indexed
    doc   TEXT NOT NULL                       row as a JSON object

  Rows are stored as JSON documents rather than 39 Korean-named columns;
  the row schema lives in engine.SheetColumns, not in SQL.

WAL MODE:
  Opened with WAL so mirror refreshes don't block concurrent readers.

SEE ALSO:
  - engine/source.go: the interface implemented here
  - source/gsheet: the authoritative upstream
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/siteops/sheetsync/engine"
)

// Mirror is a sqlite-backed DataSource.
type Mirror struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) a mirror at the given path. Use ":memory:"
// for tests.
func New(path string) (*Mirror, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}
	m := &Mirror{db: db}
	if err := m.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *Mirror) migrate() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS sheet_rows (
			seq  INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT,
			doc  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sheet_rows_code ON sheet_rows(code);
	`)
	if err != nil {
		return fmt.Errorf("migrate mirror: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (m *Mirror) Close() error {
	return m.db.Close()
}

// FetchRows implements engine.DataSource.
func (m *Mirror) FetchRows(ctx context.Context) ([]string, []engine.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.QueryContext(ctx, `SELECT doc FROM sheet_rows ORDER BY seq`)
	if err != nil {
		return nil, nil, &engine.FetchError{Cause: err}
	}
	defer rows.Close()

	var out []engine.Row
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, nil, &engine.FetchError{Cause: err}
		}
		var row engine.Row
		if err := json.Unmarshal([]byte(doc), &row); err != nil {
			return nil, nil, &engine.FetchError{Cause: err}
		}
		if row.Code() == "" {
			continue
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &engine.FetchError{Cause: err}
	}
	return engine.SheetColumns, out, nil
}

// AppendRow implements engine.DataSource.
func (m *Mirror) AppendRow(ctx context.Context, row engine.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := json.Marshal(row)
	if err != nil {
		return &engine.WriteError{Op: "append", Cause: err}
	}
	if _, err := m.db.ExecContext(ctx,
		`INSERT INTO sheet_rows (code, doc) VALUES (?, ?)`, row.Code(), string(doc)); err != nil {
		return &engine.WriteError{Op: "append", Cause: err}
	}
	return nil
}

// UpdateRow implements engine.DataSource.
func (m *Mirror) UpdateRow(ctx context.Context, code string, row engine.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := json.Marshal(row)
	if err != nil {
		return &engine.WriteError{Op: "update", Cause: err}
	}
	res, err := m.db.ExecContext(ctx,
		`UPDATE sheet_rows SET code = ?, doc = ? WHERE code = ?`, row.Code(), string(doc), code)
	if err != nil {
		return &engine.WriteError{Op: "update", Cause: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &engine.WriteError{Op: "update", Cause: fmt.Errorf("project code %s not found", code)}
	}
	return nil
}

// SyncFrom replaces the mirror contents with the snapshot's rows, in
// snapshot order, inside one transaction.
func (m *Mirror) SyncFrom(ctx context.Context, snap *engine.Snapshot) error {
	if snap == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return &engine.WriteError{Op: "sync", Cause: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows`); err != nil {
		return &engine.WriteError{Op: "sync", Cause: err}
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sheet_rows (code, doc) VALUES (?, ?)`)
	if err != nil {
		return &engine.WriteError{Op: "sync", Cause: err}
	}
	defer stmt.Close()

	for _, row := range snap.Rows {
		doc, err := json.Marshal(row)
		if err != nil {
			return &engine.WriteError{Op: "sync", Cause: err}
		}
		if _, err := stmt.ExecContext(ctx, row.Code(), string(doc)); err != nil {
			return &engine.WriteError{Op: "sync", Cause: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &engine.WriteError{Op: "sync", Cause: err}
	}
	return nil
}
