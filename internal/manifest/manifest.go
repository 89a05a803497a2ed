// Package manifest keeps a SQLite ledger of merge runs and of every
// override record each run applied.
package manifest

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at INTEGER NOT NULL,
	finished_at INTEGER,
	input TEXT NOT NULL,
	output TEXT NOT NULL,
	overrides TEXT NOT NULL,
	key_mode TEXT NOT NULL,
	updated INTEGER DEFAULT 0,
	appended INTEGER DEFAULT 0,
	unmodified INTEGER DEFAULT 0,
	bytes_out INTEGER DEFAULT 0,
	status TEXT NOT NULL,
	error TEXT
);

CREATE TABLE IF NOT EXISTS applied (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	seq INTEGER NOT NULL,
	action TEXT NOT NULL,
	key TEXT NOT NULL,
	title TEXT,
	path TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_applied_key ON applied(key);
`

// Status values of a run.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// Run is one row of the runs table.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Input      string
	Output     string
	Overrides  string
	KeyMode    string
	Updated    int
	Appended   int
	Unmodified int
	BytesOut   int64
	Status     string
	Error      string
}

// Applied is one override record written by a run.
type Applied struct {
	Action string
	Key    string
	Title  string
	Path   string
}

// Result carries the final counts of a run.
type Result struct {
	Updated    int
	Appended   int
	Unmodified int
	BytesOut   int64
}

// Manifest is an open ledger. It is not safe for concurrent use.
type Manifest struct {
	db          *sql.DB
	tx          *sql.Tx
	stmtApplied *sql.Stmt
	batchSize   int
	count       int
	seq         int
	runID       int64
}

// Open opens or creates the ledger at path.
func Open(path string) (*Manifest, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Manifest{db: db, batchSize: 1000}, nil
}

// Begin records the start of a run and opens the batch transaction for its
// applied records.
func (m *Manifest) Begin(run Run) (int64, error) {
	if m.runID != 0 {
		return 0, errors.New("manifest: run already in progress")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	res, err := m.db.Exec(
		`INSERT INTO runs (started_at, input, output, overrides, key_mode, status) VALUES (?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UnixNano(), run.Input, run.Output, run.Overrides, run.KeyMode, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	m.runID = id
	m.seq = 0
	m.count = 0
	if err := m.beginTx(); err != nil {
		return 0, err
	}
	return id, nil
}

func (m *Manifest) beginTx() error {
	var err error
	m.tx, err = m.db.Begin()
	if err != nil {
		return err
	}
	m.stmtApplied, err = m.tx.Prepare(`INSERT INTO applied (run_id, seq, action, key, title, path) VALUES (?, ?, ?, ?, ?, ?)`)
	return err
}

func (m *Manifest) commitTx() error {
	if m.tx == nil {
		return nil
	}
	if m.stmtApplied != nil {
		_ = m.stmtApplied.Close()
		m.stmtApplied = nil
	}
	err := m.tx.Commit()
	m.tx = nil
	return err
}

// Record adds one applied override to the current run.
func (m *Manifest) Record(a Applied) error {
	if m.runID == 0 {
		return errors.New("manifest: no run in progress")
	}
	m.seq++
	if _, err := m.stmtApplied.Exec(m.runID, m.seq, a.Action, a.Key, a.Title, a.Path); err != nil {
		return fmt.Errorf("insert applied %s: %w", a.Key, err)
	}
	m.count++
	if m.count >= m.batchSize {
		if err := m.commitTx(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		if err := m.beginTx(); err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		m.count = 0
	}
	return nil
}

// Finish commits the applied records and closes the run as ok, or as failed
// when runErr is set.
func (m *Manifest) Finish(res Result, runErr error) error {
	if m.runID == 0 {
		return errors.New("manifest: no run in progress")
	}
	if err := m.commitTx(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	status, msg := StatusOK, sql.NullString{}
	if runErr != nil {
		status = StatusFailed
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := m.db.Exec(
		`UPDATE runs SET finished_at = ?, updated = ?, appended = ?, unmodified = ?, bytes_out = ?, status = ?, error = ? WHERE id = ?`,
		time.Now().UnixNano(), res.Updated, res.Appended, res.Unmodified, res.BytesOut, status, msg, m.runID,
	)
	m.runID = 0
	m.count = 0
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Close commits any pending batch and closes the database.
func (m *Manifest) Close() error {
	if err := m.commitTx(); err != nil {
		_ = m.db.Close()
		return err
	}
	return m.db.Close()
}

// Runs returns the most recent runs, newest first. limit <= 0 means all.
func (m *Manifest) Runs(limit int) ([]Run, error) {
	q := `SELECT id, started_at, finished_at, input, output, overrides, key_mode,
		updated, appended, unmodified, bytes_out, status, error
		FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := m.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
			msg      sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Input, &r.Output, &r.Overrides, &r.KeyMode,
			&r.Updated, &r.Appended, &r.Unmodified, &r.BytesOut, &r.Status, &msg); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64)
		}
		r.Error = msg.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Applied returns the override records applied by a run, in output order.
func (m *Manifest) Applied(runID int64) ([]Applied, error) {
	rows, err := m.db.Query(`SELECT action, key, title, path FROM applied WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query applied: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Applied
	for rows.Next() {
		var (
			a     Applied
			title sql.NullString
		)
		if err := rows.Scan(&a.Action, &a.Key, &title, &a.Path); err != nil {
			return nil, fmt.Errorf("scan applied: %w", err)
		}
		a.Title = title.String
		out = append(out, a)
	}
	return out, rows.Err()
}
