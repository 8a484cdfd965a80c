package persistence

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/spirob/internal/spiral"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPresetRoundTrip(t *testing.T) {
	db := openTestDB(t)

	p := spiral.DefaultParams()
	p.A = 7.5
	p.TwoCable = false
	if err := db.SavePreset("wide", p); err != nil {
		t.Fatal(err)
	}

	got, err := db.LoadPreset("wide")
	if err != nil {
		t.Fatal(err)
	}
	if got.Params != p {
		t.Errorf("Expected params %+v, got %+v", p, got.Params)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Expected a creation timestamp")
	}
}

func TestPresetReplaceKeepsOneRow(t *testing.T) {
	db := openTestDB(t)

	p := spiral.DefaultParams()
	if err := db.SavePreset("default", p); err != nil {
		t.Fatal(err)
	}
	p.B = 0.2
	if err := db.SavePreset("default", p); err != nil {
		t.Fatal(err)
	}

	presets, err := db.ListPresets()
	if err != nil {
		t.Fatal(err)
	}
	if len(presets) != 1 {
		t.Fatalf("Expected 1 preset after replace, got %d", len(presets))
	}
	if presets[0].Params.B != 0.2 {
		t.Errorf("Expected replaced b=0.2, got %v", presets[0].Params.B)
	}
}

func TestLoadMissingPreset(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.LoadPreset("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := db.DeletePreset("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on delete, got %v", err)
	}
}

func TestDeletePreset(t *testing.T) {
	db := openTestDB(t)

	if err := db.SavePreset("gone", spiral.DefaultParams()); err != nil {
		t.Fatal(err)
	}
	if err := db.DeletePreset("gone"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.LoadPreset("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestExportHistory(t *testing.T) {
	db := openTestDB(t)

	for _, kind := range []string{"cad", "xml", "sketch"} {
		rec := ExportRecord{
			ID:        uuid.NewString(),
			Kind:      kind,
			Path:      "exports/20260827_120000",
			Bytes:     1024,
			CreatedAt: time.Now().UTC(),
		}
		if err := db.RecordExport(rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := db.ListExports(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Errorf("Expected limit to cap results at 2, got %d", len(recs))
	}

	all, err := db.ListExports(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 records, got %d", len(all))
	}
}

func TestMetaRoundTrip(t *testing.T) {
	db := openTestDB(t)

	if err := db.SaveMeta("last_export", "exports/20260827_120000"); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetMeta("last_export")
	if err != nil {
		t.Fatal(err)
	}
	if got != "exports/20260827_120000" {
		t.Errorf("Expected stored value back, got %q", got)
	}
}
