package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"kpiboard/internal/core"
)

func testRepo(t *testing.T) *PresetRepository {
	t.Helper()
	repo, err := NewPresetRepository(filepath.Join(t.TempDir(), "presets.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveGetRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	mapping := core.Mapping{
		core.FieldDate:    "Task Date",
		core.FieldMember:  "Assignee",
		core.FieldQuality: "QA Score",
	}
	if err := repo.SavePreset(ctx, Preset{Name: "weekly", Mapping: mapping, DateLayout: "2006-01-02"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.GetPreset(ctx, "weekly")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Mapping[core.FieldMember] != "Assignee" || got.DateLayout != "2006-01-02" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestSaveOverwritesByName(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	first := Preset{Name: "p", Mapping: core.Mapping{core.FieldDate: "A", core.FieldMember: "B"}}
	if err := repo.SavePreset(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := Preset{Name: "p", Mapping: core.Mapping{core.FieldDate: "X", core.FieldMember: "Y"}}
	if err := repo.SavePreset(ctx, second); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	got, err := repo.GetPreset(ctx, "p")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Mapping[core.FieldDate] != "X" {
		t.Fatalf("overwrite did not take: %+v", got.Mapping)
	}

	list, err := repo.ListPresets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected a single preset, got %d", len(list))
	}
}

func TestGetAndDeleteMissing(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if _, err := repo.GetPreset(ctx, "nope"); !errors.Is(err, ErrPresetNotFound) {
		t.Fatalf("expected ErrPresetNotFound, got %v", err)
	}
	if err := repo.DeletePreset(ctx, "nope"); !errors.Is(err, ErrPresetNotFound) {
		t.Fatalf("expected ErrPresetNotFound, got %v", err)
	}
}
