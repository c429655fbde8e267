// Package storage persists named column-mapping presets. Presets are user
// configuration, not uploaded data, so they may outlive a session.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"kpiboard/internal/core"
)

var ErrPresetNotFound = errors.New("preset not found")

// Preset is a saved column mapping a user can re-apply to later uploads.
type Preset struct {
	ID         int64
	Name       string
	Mapping    core.Mapping
	DateLayout string
	CreatedAt  time.Time
}

type PresetRepository struct {
	db *sql.DB
}

func NewPresetRepository(dbPath string) (*PresetRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PresetRepository{db: db}, nil
}

func (r *PresetRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SavePreset inserts or replaces a preset by name.
func (r *PresetRepository) SavePreset(ctx context.Context, p Preset) error {
	if p.Name == "" {
		return errors.New("preset name required")
	}
	mappingJSON, err := json.Marshal(p.Mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO mapping_presets (name, mapping, date_layout)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			mapping = excluded.mapping,
			date_layout = excluded.date_layout`,
		p.Name, string(mappingJSON), p.DateLayout)
	if err != nil {
		return fmt.Errorf("save preset %q: %w", p.Name, err)
	}

	slog.InfoContext(ctx, "Mapping preset saved", "name", p.Name, "fields", len(p.Mapping))
	return nil
}

// GetPreset fetches one preset by name.
func (r *PresetRepository) GetPreset(ctx context.Context, name string) (Preset, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, mapping, date_layout, created_at
		FROM mapping_presets WHERE name = ?`, name)

	p, err := scanPreset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Preset{}, fmt.Errorf("%w: %q", ErrPresetNotFound, name)
	}
	if err != nil {
		return Preset{}, fmt.Errorf("get preset %q: %w", name, err)
	}
	return p, nil
}

// ListPresets returns all presets, newest first.
func (r *PresetRepository) ListPresets(ctx context.Context) ([]Preset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, mapping, date_layout, created_at
		FROM mapping_presets ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer rows.Close()

	var out []Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan preset: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePreset removes a preset by name.
func (r *PresetRepository) DeletePreset(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mapping_presets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete preset %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrPresetNotFound, name)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreset(row rowScanner) (Preset, error) {
	var (
		p           Preset
		mappingJSON string
	)
	if err := row.Scan(&p.ID, &p.Name, &mappingJSON, &p.DateLayout, &p.CreatedAt); err != nil {
		return Preset{}, err
	}
	if err := json.Unmarshal([]byte(mappingJSON), &p.Mapping); err != nil {
		return Preset{}, fmt.Errorf("unmarshal mapping: %w", err)
	}
	return p, nil
}
