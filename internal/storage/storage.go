// Package storage persists observed case counts and forecast runs in SQLite.
//
// Observations are keyed by (group, day) and upserted, so re-polling a source
// overwrites revised counts. Each forecast run is stored with its parameters
// and summary, and its result series in long format (series, day, value).
// RotateRuns bounds the number of retained runs.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	group_key TEXT NOT NULL,
	day       TEXT NOT NULL,
	count     REAL NOT NULL,
	PRIMARY KEY (group_key, day)
);
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	model      TEXT NOT NULL,
	group_key  TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	params     TEXT NOT NULL DEFAULT '',
	summary    TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at);
CREATE TABLE IF NOT EXISTS run_rows (
	run_id     TEXT NOT NULL,
	series     TEXT NOT NULL,
	day        INTEGER NOT NULL,
	date       TEXT NOT NULL DEFAULT '',
	value      REAL NOT NULL,
	prediction INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, series, day)
);
`

// Storage provides SQLite-backed persistence
type Storage struct {
	db      *sql.DB
	maxRuns int
}

// New opens (creating if needed) the database at dbPath and applies the schema.
func New(maxRuns int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "epiforecast", "epiforecast.db")
	}
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Storage{db: db, maxRuns: maxRuns}, nil
}

// Open opens an existing database read-only. It never creates files or
// applies the schema; a missing path is reported with an error wrapping
// os.ErrNotExist.
func Open(dbPath string) (*Storage, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("failed to open database: %s is a directory", dbPath)
	}

	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(dbPath)+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// UpsertObservations inserts or replaces observations and returns how many
// were written.
func (s *Storage) UpsertObservations(obs []models.Observation) (int, error) {
	for i := range obs {
		if err := obs[i].Validate(); err != nil {
			return 0, fmt.Errorf("invalid observation: %w", err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO observations (group_key, day, count) VALUES (?, ?, ?)
		ON CONFLICT (group_key, day) DO UPDATE SET count = excluded.count`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.Exec(o.Group, models.Day(o.Date).Format(models.DateLayout), o.Count); err != nil {
			return 0, fmt.Errorf("failed to upsert observation %s/%s: %w", o.Group, o.Date.Format(models.DateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit observations: %w", err)
	}
	return len(obs), nil
}

// GetObservations returns a group's observations ordered by day.
func (s *Storage) GetObservations(group string) ([]models.Observation, error) {
	rows, err := s.db.Query(`SELECT day, count FROM observations WHERE group_key = ? ORDER BY day`, group)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var obs []models.Observation
	for rows.Next() {
		var day string
		o := models.Observation{Group: group}
		if err := rows.Scan(&day, &o.Count); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		if o.Date, err = time.Parse(models.DateLayout, day); err != nil {
			return nil, fmt.Errorf("failed to parse observation day %q: %w", day, err)
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// GetGroups returns every group with at least one observation, sorted.
func (s *Storage) GetGroups() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT group_key FROM observations ORDER BY group_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// SaveRun stores a run and its result rows atomically.
func (s *Storage) SaveRun(run *models.Run, rows []models.RunRow) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			return fmt.Errorf("invalid row %d: %w", i, err)
		}
	}

	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT INTO runs (id, model, group_key, created_at, params, summary) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Model), run.Group, run.CreatedAt.UnixNano(), string(run.Params), string(summary)); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO run_rows (run_id, series, day, date, value, prediction) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		date := ""
		if !r.Date.IsZero() {
			date = r.Date.Format(models.DateLayout)
		}
		if _, err := stmt.Exec(run.ID, r.Series, r.Day, date, r.Value, r.Prediction); err != nil {
			return fmt.Errorf("failed to insert row %s/%d: %w", r.Series, r.Day, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

func scanRun(scan func(dest ...any) error) (*models.Run, error) {
	var (
		run       models.Run
		model     string
		createdAt int64
		params    string
		summary   string
	)
	if err := scan(&run.ID, &model, &run.Group, &createdAt, &params, &summary); err != nil {
		return nil, err
	}
	run.Model = models.Model(model)
	run.CreatedAt = time.Unix(0, createdAt)
	if params != "" {
		run.Params = json.RawMessage(params)
	}
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary of run %s: %w", run.ID, err)
	}
	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *Storage) GetRun(id string) (*models.Run, error) {
	row := s.db.QueryRow(`SELECT id, model, group_key, created_at, params, summary FROM runs WHERE id = ?`, id)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetRunRows returns a run's rows ordered by series then day.
func (s *Storage) GetRunRows(id string) ([]models.RunRow, error) {
	rows, err := s.db.Query(`SELECT series, day, date, value, prediction FROM run_rows WHERE run_id = ? ORDER BY series, day`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run rows: %w", err)
	}
	defer rows.Close()

	var out []models.RunRow
	for rows.Next() {
		var (
			r    models.RunRow
			date string
		)
		if err := rows.Scan(&r.Series, &r.Day, &date, &r.Value, &r.Prediction); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if date != "" {
			if r.Date, err = time.Parse(models.DateLayout, date); err != nil {
				return nil, fmt.Errorf("failed to parse row date %q: %w", date, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRuns returns up to limit runs, newest first. An empty model lists all.
func (s *Storage) ListRuns(model models.Model, limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = s.maxRuns
	}
	rows, err := s.db.Query(`SELECT id, model, group_key, created_at, params, summary FROM runs
		WHERE (? = '' OR model = ?) ORDER BY created_at DESC, id DESC LIMIT ?`, string(model), string(model), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RotateRuns removes the oldest runs and their rows beyond the retention limit.
func (s *Storage) RotateRuns() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const stale = `SELECT id FROM runs ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?`
	if _, err := tx.Exec(`DELETE FROM run_rows WHERE run_id IN (`+stale+`)`, s.maxRuns); err != nil {
		return fmt.Errorf("failed to delete stale rows: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE id IN (`+stale+`)`, s.maxRuns); err != nil {
		return fmt.Errorf("failed to delete stale runs: %w", err)
	}
	return tx.Commit()
}
