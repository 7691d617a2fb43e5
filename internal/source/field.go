package source

// #region imports
import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/survey"
)
// #endregion imports

// #region schema
const fieldSchema = `
CREATE TABLE IF NOT EXISTS projects (
	project_id TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	client     TEXT,
	place      TEXT
);

CREATE TABLE IF NOT EXISTS zones (
	zone_id    TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(project_id),
	field      TEXT,
	name       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS datapoints (
	datapoint_id TEXT PRIMARY KEY,
	zone_id      TEXT NOT NULL REFERENCES zones(zone_id),
	measured_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS datapoint_values (
	datapoint_id TEXT NOT NULL REFERENCES datapoints(datapoint_id),
	code         TEXT NOT NULL,
	raw_value    TEXT NOT NULL,
	PRIMARY KEY (datapoint_id, code)
);
`
// #endregion schema

// #region store
// FieldStore keeps the surveyed projects, zones and raw datapoints in SQLite.
// It is the read side the engine evaluates from.
type FieldStore struct {
	db *sql.DB
}

// NewFieldStore creates the field tables if needed and returns a store.
func NewFieldStore(db *sql.DB) (*FieldStore, error) {
	if _, err := db.Exec(fieldSchema); err != nil {
		return nil, fmt.Errorf("create field tables: %w", err)
	}
	return &FieldStore{db: db}, nil
}

// PutProject inserts or replaces a project.
func (s *FieldStore) PutProject(ctx context.Context, p survey.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (project_id, name, client, place) VALUES (?, ?, ?, ?)
		 ON CONFLICT (project_id) DO UPDATE SET name = excluded.name, client = excluded.client, place = excluded.place`,
		p.ID, p.Name, p.Client, p.Place)
	if err != nil {
		return fmt.Errorf("put project %s: %w", p.ID, err)
	}
	return nil
}

// PutZone inserts or replaces a zone. The project must exist.
func (s *FieldStore) PutZone(ctx context.Context, z survey.Zone) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO zones (zone_id, project_id, field, name) VALUES (?, ?, ?, ?)
		 ON CONFLICT (zone_id) DO UPDATE SET project_id = excluded.project_id, field = excluded.field, name = excluded.name`,
		z.ID, z.ProjectID, z.Field, z.Name)
	if err != nil {
		return fmt.Errorf("put zone %s: %w", z.ID, err)
	}
	return nil
}

// PutDatapoint replaces a datapoint and all of its values in one transaction.
func (s *FieldStore) PutDatapoint(ctx context.Context, dp survey.Datapoint) error {
	if dp.Timestamp.IsZero() {
		dp.Timestamp = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datapoints (datapoint_id, zone_id, measured_at) VALUES (?, ?, ?)
		 ON CONFLICT (datapoint_id) DO UPDATE SET zone_id = excluded.zone_id, measured_at = excluded.measured_at`,
		dp.ID, dp.ZoneID, dp.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("put datapoint %s: %w", dp.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM datapoint_values WHERE datapoint_id = ?`, dp.ID); err != nil {
		return fmt.Errorf("clear values of %s: %w", dp.ID, err)
	}
	for code, raw := range dp.Values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO datapoint_values (datapoint_id, code, raw_value) VALUES (?, ?, ?)`,
			dp.ID, code, raw); err != nil {
			return fmt.Errorf("put value %s/%s: %w", dp.ID, code, err)
		}
	}
	return tx.Commit()
}
// #endregion store

// #region read
// FetchProject returns a project by id.
func (s *FieldStore) FetchProject(ctx context.Context, id string) (survey.Project, error) {
	var p survey.Project
	var client, place sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT project_id, name, client, place FROM projects WHERE project_id = ?`, id,
	).Scan(&p.ID, &p.Name, &client, &place)
	if errors.Is(err, sql.ErrNoRows) {
		return survey.Project{}, fmt.Errorf("project %s: %w", id, survey.ErrNotFound)
	}
	if err != nil {
		return survey.Project{}, fmt.Errorf("fetch project %s: %w", id, err)
	}
	p.Client, p.Place = client.String, place.String
	return p, nil
}

// FetchZone returns a zone by id.
func (s *FieldStore) FetchZone(ctx context.Context, id string) (survey.Zone, error) {
	var z survey.Zone
	var field sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT zone_id, project_id, field, name FROM zones WHERE zone_id = ?`, id,
	).Scan(&z.ID, &z.ProjectID, &field, &z.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return survey.Zone{}, fmt.Errorf("zone %s: %w", id, survey.ErrNotFound)
	}
	if err != nil {
		return survey.Zone{}, fmt.Errorf("fetch zone %s: %w", id, err)
	}
	z.Field = field.String
	return z, nil
}

// ListZones returns the zones of a project ordered by id.
func (s *FieldStore) ListZones(ctx context.Context, projectID string) ([]survey.Zone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT zone_id, project_id, field, name FROM zones WHERE project_id = ? ORDER BY zone_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	defer rows.Close()

	var zones []survey.Zone
	for rows.Next() {
		var z survey.Zone
		var field sql.NullString
		if err := rows.Scan(&z.ID, &z.ProjectID, &field, &z.Name); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		z.Field = field.String
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// FetchDatapoints returns every datapoint of a zone with its raw values,
// ordered by datapoint id. A zone without datapoints yields an empty slice.
func (s *FieldStore) FetchDatapoints(ctx context.Context, zoneID string) ([]survey.Datapoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.datapoint_id, d.measured_at, v.code, v.raw_value
		 FROM datapoints d LEFT JOIN datapoint_values v ON v.datapoint_id = d.datapoint_id
		 WHERE d.zone_id = ?
		 ORDER BY d.datapoint_id, v.code`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("fetch datapoints of %s: %w", zoneID, err)
	}
	defer rows.Close()

	var out []survey.Datapoint
	for rows.Next() {
		var id, measured string
		var code, raw sql.NullString
		if err := rows.Scan(&id, &measured, &code, &raw); err != nil {
			return nil, fmt.Errorf("scan datapoint: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			ts, _ := time.Parse(time.RFC3339Nano, measured)
			out = append(out, survey.Datapoint{ID: id, ZoneID: zoneID, Timestamp: ts, Values: map[string]string{}})
		}
		if code.Valid {
			out[len(out)-1].Values[code.String] = raw.String
		}
	}
	return out, rows.Err()
}
// #endregion read
