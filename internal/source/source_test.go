package source

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/store"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/survey"
)

func tempFieldStore(t *testing.T) *FieldStore {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "field.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	fs, err := NewFieldStore(st.DB())
	if err != nil {
		t.Fatalf("NewFieldStore: %v", err)
	}
	return fs
}

func seeded(t *testing.T) *FieldStore {
	t.Helper()
	fs := tempFieldStore(t)
	f, err := LoadFixture(filepath.Join("testdata", "site.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	counts, err := Seed(context.Background(), fs, f)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if counts != (SeedCounts{Projects: 1, Zones: 2, Datapoints: 3}) {
		t.Fatalf("unexpected counts %+v", counts)
	}
	return fs
}

func TestSeedAndFetch(t *testing.T) {
	fs := seeded(t)
	ctx := context.Background()

	p, err := fs.FetchProject(ctx, "p-north")
	if err != nil {
		t.Fatalf("FetchProject: %v", err)
	}
	if p.Name != "Pipeline North" || p.Place != "Kiel" {
		t.Errorf("unexpected project %+v", p)
	}

	z, err := fs.FetchZone(ctx, "z-marsh")
	if err != nil {
		t.Fatalf("FetchZone: %v", err)
	}
	if z.ProjectID != "p-north" || z.Field != "F1" {
		t.Errorf("unexpected zone %+v", z)
	}

	dps, err := fs.FetchDatapoints(ctx, "z-marsh")
	if err != nil {
		t.Fatalf("FetchDatapoints: %v", err)
	}
	if len(dps) != 2 {
		t.Fatalf("expected 2 datapoints, got %d", len(dps))
	}
	if dps[0].ID != "dp-001" || dps[1].ID != "dp-002" {
		t.Errorf("unexpected order %s, %s", dps[0].ID, dps[1].ID)
	}
	if got := dps[0].Values["PH"]; got != "9,0" {
		t.Errorf("string value: got %q", got)
	}
	if got := dps[0].Values["RESISTIVITY"]; got != "20" {
		t.Errorf("number value: got %q", got)
	}
	want := time.Date(2026, 4, 2, 9, 15, 0, 0, time.UTC)
	if !dps[0].Timestamp.Equal(want) {
		t.Errorf("timestamp: got %v, want %v", dps[0].Timestamp, want)
	}

	zones, err := fs.ListZones(ctx, "p-north")
	if err != nil {
		t.Fatalf("ListZones: %v", err)
	}
	if len(zones) != 2 || zones[0].ID != "z-marsh" {
		t.Errorf("unexpected zones %+v", zones)
	}
}

func TestFetchMissing(t *testing.T) {
	fs := tempFieldStore(t)
	ctx := context.Background()

	if _, err := fs.FetchProject(ctx, "nope"); !errors.Is(err, survey.ErrNotFound) {
		t.Errorf("project: expected ErrNotFound, got %v", err)
	}
	if _, err := fs.FetchZone(ctx, "nope"); !errors.Is(err, survey.ErrNotFound) {
		t.Errorf("zone: expected ErrNotFound, got %v", err)
	}
	dps, err := fs.FetchDatapoints(ctx, "nope")
	if err != nil {
		t.Fatalf("FetchDatapoints: %v", err)
	}
	if len(dps) != 0 {
		t.Errorf("expected no datapoints, got %d", len(dps))
	}
}

func TestPutDatapointReplacesValues(t *testing.T) {
	fs := seeded(t)
	ctx := context.Background()

	err := fs.PutDatapoint(ctx, survey.Datapoint{ID: "dp-101", ZoneID: "z-ridge", Values: map[string]string{"PH": "5"}})
	if err != nil {
		t.Fatalf("PutDatapoint: %v", err)
	}
	dps, err := fs.FetchDatapoints(ctx, "z-ridge")
	if err != nil {
		t.Fatalf("FetchDatapoints: %v", err)
	}
	if len(dps) != 1 || len(dps[0].Values) != 1 || dps[0].Values["PH"] != "5" {
		t.Errorf("expected only PH=5, got %+v", dps)
	}
}

func TestPutZoneRequiresProject(t *testing.T) {
	fs := tempFieldStore(t)
	err := fs.PutZone(context.Background(), survey.Zone{ID: "z", ProjectID: "missing", Name: "Z"})
	if err == nil {
		t.Fatal("expected foreign key error, got nil")
	}
}

func TestLoadFixtureErrors(t *testing.T) {
	if _, err := LoadFixture("testdata/nonexistent.json"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not valid json}"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if _, err := LoadFixture(path); err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestFixtureRejectsNonScalarValue(t *testing.T) {
	fd := FixtureDatapoint{ID: "dp", Values: map[string]json.RawMessage{"PH": json.RawMessage(`true`)}}
	if _, err := fd.ToDatapoint("z"); err == nil {
		t.Fatal("expected error for boolean value, got nil")
	}
}

func TestCatalogStandards(t *testing.T) {
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	src := CatalogStandards{Catalog: c}
	std, err := src.FetchStandard(context.Background(), "DIN-50929-3")
	if err != nil {
		t.Fatalf("FetchStandard: %v", err)
	}
	if std.ID != "DIN-50929-3" {
		t.Errorf("got %s", std.ID)
	}
	if _, err := src.FetchStandard(context.Background(), "X"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStaticIdentity(t *testing.T) {
	u := survey.User{ID: "u-1", DisplayName: "A"}
	got, err := StaticIdentity{User: u}.CurrentUser(context.Background())
	if err != nil || got != u {
		t.Fatalf("got %+v, %v", got, err)
	}
	if _, err := (StaticIdentity{}).CurrentUser(context.Background()); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("expected ErrNoIdentity, got %v", err)
	}
}
