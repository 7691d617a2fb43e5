package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS analysis_outputs (
	output_id    TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL,
	zone_id      TEXT NOT NULL,
	standard_id  TEXT NOT NULL,
	analyst_id   TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	UNIQUE (project_id, zone_id, standard_id)
);

CREATE TABLE IF NOT EXISTS evaluation_versions (
	version_id      TEXT PRIMARY KEY,
	output_id       TEXT NOT NULL,
	version_number  INTEGER NOT NULL CHECK (version_number >= 1),
	content         BLOB NOT NULL,
	content_digest  TEXT NOT NULL,
	total_rating    INTEGER NOT NULL,
	class           TEXT NOT NULL,
	stress          TEXT NOT NULL,
	recommendations TEXT,
	created_by      TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	UNIQUE (output_id, version_number),
	FOREIGN KEY (output_id) REFERENCES analysis_outputs(output_id)
);

CREATE TABLE IF NOT EXISTS evaluation_log (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	output_id       TEXT,
	version_number  INTEGER,
	event           TEXT NOT NULL,
	actor           TEXT,
	detail          TEXT,
	created_at      TEXT NOT NULL
);

CREATE TRIGGER IF NOT EXISTS analysis_outputs_no_update
BEFORE UPDATE ON analysis_outputs
BEGIN
	SELECT RAISE(ABORT, 'analysis outputs are immutable');
END;

CREATE TRIGGER IF NOT EXISTS analysis_outputs_no_delete
BEFORE DELETE ON analysis_outputs
BEGIN
	SELECT RAISE(ABORT, 'analysis outputs are immutable');
END;

CREATE TRIGGER IF NOT EXISTS evaluation_versions_no_update
BEFORE UPDATE ON evaluation_versions
BEGIN
	SELECT RAISE(ABORT, 'evaluation versions are immutable');
END;

CREATE TRIGGER IF NOT EXISTS evaluation_versions_no_delete
BEFORE DELETE ON evaluation_versions
BEGIN
	SELECT RAISE(ABORT, 'evaluation versions are immutable');
END;
`
// #endregion schema

// #region store-struct
// Store persists analysis outputs and their append-only versions in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite has a single writer; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if dbPath == ":memory:" {
		if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma fk: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (audit log, field store).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion close

// #region outputs
// EnsureOutput returns the output for (project, zone, standard), creating it
// from o when none exists. created reports whether this call created it.
func (s *Store) EnsureOutput(ctx context.Context, o Output) (Output, bool, error) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_outputs (output_id, project_id, zone_id, standard_id, analyst_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (project_id, zone_id, standard_id) DO NOTHING`,
		o.ID, o.ProjectID, o.ZoneID, o.StandardID, o.AnalystID, o.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Output{}, false, fmt.Errorf("insert output: %w", classifyErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Output{}, false, fmt.Errorf("rows affected: %w", err)
	}
	got, err := s.FindOutput(ctx, o.ProjectID, o.ZoneID, o.StandardID)
	if err != nil {
		return Output{}, false, err
	}
	return got, n == 1, nil
}

// GetOutput reads an output by id.
func (s *Store) GetOutput(ctx context.Context, id string) (Output, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT output_id, project_id, zone_id, standard_id, analyst_id, created_at
		 FROM analysis_outputs WHERE output_id = ?`, id)
	o, err := scanOutput(row)
	if err != nil {
		return Output{}, fmt.Errorf("get output %s: %w", id, err)
	}
	return o, nil
}

// FindOutput reads the output for a (project, zone, standard) tuple.
func (s *Store) FindOutput(ctx context.Context, projectID, zoneID, standardID string) (Output, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT output_id, project_id, zone_id, standard_id, analyst_id, created_at
		 FROM analysis_outputs WHERE project_id = ? AND zone_id = ? AND standard_id = ?`,
		projectID, zoneID, standardID)
	o, err := scanOutput(row)
	if err != nil {
		return Output{}, fmt.Errorf("find output %s/%s/%s: %w", projectID, zoneID, standardID, err)
	}
	return o, nil
}

// ListOutputs returns outputs, newest first.
func (s *Store) ListOutputs(ctx context.Context, limit int) ([]Output, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT output_id, project_id, zone_id, standard_id, analyst_id, created_at
		 FROM analysis_outputs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	defer rows.Close()

	var out []Output
	for rows.Next() {
		o, err := scanOutput(rows)
		if err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
// #endregion outputs

// #region append-version
// AppendVersion writes rec as the next version of its output. A zero
// rec.Number allocates max+1 in the same statement that inserts the row; a
// positive rec.Number claims exactly that number. A number already taken
// returns ErrConflict and nothing is written.
func (s *Store) AppendVersion(ctx context.Context, rec VersionRecord) (VersionRecord, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	args := []any{
		rec.ID, rec.OutputID, rec.Content, rec.Digest, rec.Total, rec.Class, rec.Stress,
		nullIfEmpty(rec.Recommendations), rec.CreatedBy, rec.CreatedAt.Format(time.RFC3339Nano),
	}

	var query string
	if rec.Number > 0 {
		query = `INSERT INTO evaluation_versions
			(version_id, output_id, content, content_digest, total_rating, class, stress, recommendations, created_by, created_at, version_number)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING version_number`
		args = append(args, rec.Number)
	} else {
		query = `INSERT INTO evaluation_versions
			(version_id, output_id, content, content_digest, total_rating, class, stress, recommendations, created_by, created_at, version_number)
			SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(MAX(version_number), 0) + 1
			FROM evaluation_versions WHERE output_id = ?
			RETURNING version_number`
		args = append(args, rec.OutputID)
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&rec.Number); err != nil {
		return VersionRecord{}, fmt.Errorf("insert version for %s: %w", rec.OutputID, classifyErr(err))
	}
	return rec, nil
}
// #endregion append-version

// #region get-version
// GetVersion reads a version of an output. number <= 0 selects the latest.
func (s *Store) GetVersion(ctx context.Context, outputID string, number int) (VersionRecord, error) {
	var row *sql.Row
	if number > 0 {
		row = s.db.QueryRowContext(ctx, selectVersion+` WHERE output_id = ? AND version_number = ?`, outputID, number)
	} else {
		row = s.db.QueryRowContext(ctx, selectVersion+` WHERE output_id = ? ORDER BY version_number DESC LIMIT 1`, outputID)
	}
	rec, err := scanVersion(row)
	if err != nil {
		return VersionRecord{}, fmt.Errorf("get version %s#%d: %w", outputID, number, err)
	}
	return rec, nil
}

// LatestNumber returns the highest version number of an output, 0 if none.
func (s *Store) LatestNumber(ctx context.Context, outputID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_number), 0) FROM evaluation_versions WHERE output_id = ?`, outputID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("latest number %s: %w", outputID, err)
	}
	return n, nil
}

// ListVersions returns all versions of an output in ascending order.
func (s *Store) ListVersions(ctx context.Context, outputID string) ([]VersionRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectVersion+` WHERE output_id = ? ORDER BY version_number ASC`, outputID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []VersionRecord
	for rows.Next() {
		rec, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

const selectVersion = `SELECT version_id, output_id, version_number, content, content_digest,
	total_rating, class, stress, recommendations, created_by, created_at
	FROM evaluation_versions`
// #endregion get-version

// #region scan
type scanner interface {
	Scan(dest ...any) error
}

func scanOutput(sc scanner) (Output, error) {
	var o Output
	var createdStr string
	err := sc.Scan(&o.ID, &o.ProjectID, &o.ZoneID, &o.StandardID, &o.AnalystID, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return Output{}, ErrNotFound
	}
	if err != nil {
		return Output{}, err
	}
	o.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return o, nil
}

func scanVersion(sc scanner) (VersionRecord, error) {
	var rec VersionRecord
	var recs sql.NullString
	var createdStr string
	err := sc.Scan(&rec.ID, &rec.OutputID, &rec.Number, &rec.Content, &rec.Digest,
		&rec.Total, &rec.Class, &rec.Stress, &recs, &rec.CreatedBy, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return VersionRecord{}, ErrNotFound
	}
	if err != nil {
		return VersionRecord{}, err
	}
	if recs.Valid {
		rec.Recommendations = recs.String
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}
// #endregion scan

// #region errors
// classifyErr maps SQLite failures onto the store's sentinel errors.
func classifyErr(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_CONSTRAINT:
		msg := se.Error()
		switch {
		case strings.Contains(msg, "UNIQUE"):
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case strings.Contains(msg, "FOREIGN KEY"):
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		}
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
// #endregion errors
