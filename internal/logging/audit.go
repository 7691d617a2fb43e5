package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// #region log-event
// LogEvent writes an audit entry to the evaluation_log table.
func LogEvent(ctx context.Context, db *sql.DB, entry AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var version any
	if entry.VersionNumber > 0 {
		version = entry.VersionNumber
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO evaluation_log (output_id, version_number, event, actor, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.OutputID),
		version,
		entry.Event,
		nullIfEmpty(entry.Actor),
		nullIfEmpty(entry.Detail),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}
// #endregion log-event

// #region list-events
// ListEvents returns the audit trail of an output, oldest first.
func ListEvents(ctx context.Context, db *sql.DB, outputID string) ([]AuditEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT output_id, version_number, event, actor, detail, created_at
		 FROM evaluation_log WHERE output_id = ? ORDER BY id ASC`, outputID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var output, actor, detail sql.NullString
		var version sql.NullInt64
		var created string
		if err := rows.Scan(&output, &version, &e.Event, &actor, &detail, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.OutputID = output.String
		e.VersionNumber = int(version.Int64)
		e.Actor = actor.String
		e.Detail = detail.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}
// #endregion list-events

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
