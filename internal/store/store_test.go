package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustOutput(t *testing.T, s *Store, id string) Output {
	t.Helper()
	o, created, err := s.EnsureOutput(context.Background(), Output{
		ID: id, ProjectID: "p1", ZoneID: "z-" + id, StandardID: "DIN-50929-3", AnalystID: "analyst",
	})
	if err != nil {
		t.Fatalf("EnsureOutput: %v", err)
	}
	if !created {
		t.Fatalf("expected output %s to be created", id)
	}
	return o
}

func record(outputID, id string) VersionRecord {
	return VersionRecord{
		ID:        id,
		OutputID:  outputID,
		Content:   []byte(`{"total":-3}`),
		Digest:    "d-" + id,
		Total:     -3,
		Class:     "Ib",
		Stress:    "low",
		CreatedBy: "analyst",
	}
}

func TestEnsureOutputIsIdempotent(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	first := mustOutput(t, s, "o1")

	again, created, err := s.EnsureOutput(ctx, Output{
		ID: "other-id", ProjectID: "p1", ZoneID: "z-o1", StandardID: "DIN-50929-3", AnalystID: "someone-else",
	})
	if err != nil {
		t.Fatalf("EnsureOutput: %v", err)
	}
	if created {
		t.Fatal("expected existing output to be returned")
	}
	if again.ID != first.ID || again.AnalystID != "analyst" {
		t.Fatalf("expected original output, got %+v", again)
	}

	got, err := s.GetOutput(ctx, "o1")
	if err != nil {
		t.Fatalf("GetOutput: %v", err)
	}
	if got.ZoneID != "z-o1" {
		t.Fatalf("unexpected zone %s", got.ZoneID)
	}
}

func TestGetOutputNotFound(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetOutput(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendVersionAllocatesSequentialNumbers(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	o := mustOutput(t, s, "o1")

	for want := 1; want <= 4; want++ {
		rec, err := s.AppendVersion(ctx, record(o.ID, "v"+string(rune('0'+want))))
		if err != nil {
			t.Fatalf("AppendVersion: %v", err)
		}
		if rec.Number != want {
			t.Fatalf("expected version %d, got %d", want, rec.Number)
		}
	}

	n, err := s.LatestNumber(ctx, o.ID)
	if err != nil {
		t.Fatalf("LatestNumber: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected latest 4, got %d", n)
	}
}

func TestVersionNumbersArePerOutput(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	a := mustOutput(t, s, "a")
	b := mustOutput(t, s, "b")

	s.AppendVersion(ctx, record(a.ID, "a1"))
	s.AppendVersion(ctx, record(a.ID, "a2"))
	rec, err := s.AppendVersion(ctx, record(b.ID, "b1"))
	if err != nil {
		t.Fatalf("AppendVersion: %v", err)
	}
	if rec.Number != 1 {
		t.Fatalf("expected first version of b to be 1, got %d", rec.Number)
	}
}

func TestAppendVersionExplicitNumberConflict(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	o := mustOutput(t, s, "o1")

	first := record(o.ID, "v1")
	first.Number = 1
	if _, err := s.AppendVersion(ctx, first); err != nil {
		t.Fatalf("AppendVersion: %v", err)
	}

	dup := record(o.ID, "v1-dup")
	dup.Number = 1
	_, err := s.AppendVersion(ctx, dup)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	versions, _ := s.ListVersions(ctx, o.ID)
	if len(versions) != 1 || versions[0].ID != "v1" {
		t.Fatalf("expected only the original version, got %+v", versions)
	}
}

func TestAppendVersionUnknownOutput(t *testing.T) {
	s := tempDB(t)
	_, err := s.AppendVersion(context.Background(), record("missing", "v1"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetVersionLatestAndByNumber(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	o := mustOutput(t, s, "o1")

	v1 := record(o.ID, "v1")
	v1.Recommendations = "apply cathodic protection"
	v1.CreatedAt = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	s.AppendVersion(ctx, v1)
	v2 := record(o.ID, "v2")
	v2.Content = []byte(`{"total":-12}`)
	s.AppendVersion(ctx, v2)

	latest, err := s.GetVersion(ctx, o.ID, 0)
	if err != nil {
		t.Fatalf("GetVersion latest: %v", err)
	}
	if latest.Number != 2 || latest.ID != "v2" {
		t.Fatalf("expected v2 as latest, got %+v", latest)
	}

	first, err := s.GetVersion(ctx, o.ID, 1)
	if err != nil {
		t.Fatalf("GetVersion 1: %v", err)
	}
	if first.Recommendations != "apply cathodic protection" {
		t.Fatalf("unexpected recommendations %q", first.Recommendations)
	}
	if !first.CreatedAt.Equal(v1.CreatedAt) {
		t.Fatalf("expected created_at %v, got %v", v1.CreatedAt, first.CreatedAt)
	}
	if !bytes.Equal(first.Content, v1.Content) {
		t.Fatalf("content changed: %s", first.Content)
	}

	_, err = s.GetVersion(ctx, o.ID, 3)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing version, got %v", err)
	}
	_, err = s.GetVersion(ctx, "nope", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing output, got %v", err)
	}
}

func TestVersionsRejectUpdateAndDelete(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	o := mustOutput(t, s, "o1")
	s.AppendVersion(ctx, record(o.ID, "v1"))

	if _, err := s.DB().Exec(`UPDATE evaluation_versions SET total_rating = 5 WHERE version_id = 'v1'`); err == nil {
		t.Fatal("expected update to be rejected")
	}
	if _, err := s.DB().Exec(`DELETE FROM evaluation_versions WHERE version_id = 'v1'`); err == nil {
		t.Fatal("expected delete to be rejected")
	}
	if _, err := s.DB().Exec(`UPDATE analysis_outputs SET analyst_id = 'x'`); err == nil {
		t.Fatal("expected output update to be rejected")
	}

	got, err := s.GetVersion(ctx, o.ID, 1)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if got.Total != -3 {
		t.Fatalf("expected untouched total -3, got %d", got.Total)
	}
}

func TestListOutputs(t *testing.T) {
	s := tempDB(t)
	mustOutput(t, s, "a")
	mustOutput(t, s, "b")

	outs, err := s.ListOutputs(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListOutputs: %v", err)
	}
	if len(outs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outs))
	}
}

func TestMemoryStore(t *testing.T) {
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()
	o := mustOutput(t, s, "m")
	if _, err := s.AppendVersion(context.Background(), record(o.ID, "v1")); err != nil {
		t.Fatalf("AppendVersion: %v", err)
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}
