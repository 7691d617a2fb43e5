package logging

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE evaluation_log (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		output_id      TEXT,
		version_number INTEGER,
		event          TEXT NOT NULL,
		actor          TEXT,
		detail         TEXT,
		created_at     TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}
// #endregion helpers

// #region log-event-tests
func TestLogEvent_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	ctx := context.Background()

	err := LogEvent(ctx, db, AuditEntry{
		OutputID:      "o1",
		VersionNumber: 2,
		Event:         EventVersionCreated,
		Actor:         "analyst-1",
		Detail:        `{"total":-6}`,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events, err := ListEvents(ctx, db, "o1")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].VersionNumber != 2 || events[0].Event != EventVersionCreated {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestLogEvent_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	if err := LogEvent(context.Background(), db, AuditEntry{OutputID: "o1", Event: EventConflict}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM evaluation_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogEvent_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	if err := LogEvent(context.Background(), db, AuditEntry{Event: EventRejected}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var output, actor, detail sql.NullString
	var version sql.NullInt64
	db.QueryRow("SELECT output_id, version_number, actor, detail FROM evaluation_log").Scan(&output, &version, &actor, &detail)
	if output.Valid || version.Valid || actor.Valid || detail.Valid {
		t.Error("expected NULL for empty optional fields")
	}
}

func TestLogEvent_Error(t *testing.T) {
	db := setupDB(t)
	db.Close()

	if err := LogEvent(context.Background(), db, AuditEntry{Event: EventRejected}); err == nil {
		t.Fatal("expected error on closed db")
	}
}
// #endregion log-event-tests

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "warn", true)
	log.Info("hidden")
	log.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON warn line, got %q", out)
	}
}
