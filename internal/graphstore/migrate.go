package graphstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/reconkg/engine/internal/graphstore/migrations"
	"github.com/reconkg/engine/internal/kgerrors"
)

// Migration is one versioned step in the schema's evolution, grounded on the
// teacher's dolt/migrations.go Migration{Name, Func} shape.
type Migration struct {
	Version int
	Name    string
	Func    func(ctx context.Context, db *sql.DB) error
}

// registeredMigrations is the ordered list of every migration above v0,
// applied in order during Migrate. Each Func must be idempotent: migrations
// run again against an already-migrated database (e.g. a second process
// racing to initialize) must be no-ops.
var registeredMigrations = []Migration{
	{Version: 1, Name: "legacy_rewrite", Func: migrations.LegacyRewrite},
	{Version: 2, Name: "additional_indexes", Func: migrations.AdditionalIndexes},
}

// Migrate brings the database to LatestVersion (spec §4.1). It is safe to
// call on an empty database, a database already at LatestVersion (no-op),
// or a database at any earlier version (including an un-versioned database
// that still carries the legacy entity tables, which is treated as v0).
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, baseDDL); err != nil {
		return fmt.Errorf("%w: apply base schema: %v", kgerrors.ErrMigration, err)
	}

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("%w: read schema version: %v", kgerrors.ErrMigration, err)
	}

	if current >= LatestVersion {
		return nil
	}

	for _, m := range registeredMigrations {
		if m.Version <= current {
			continue
		}
		s.logger.Info("applying migration", "version", m.Version, "name", m.Name)
		if err := m.Func(ctx, s.db); err != nil {
			return fmt.Errorf("%w: migration %d (%s): %v", kgerrors.ErrMigration, m.Version, m.Name, err)
		}
		if err := s.setSchemaVersion(ctx, m.Version); err != nil {
			return fmt.Errorf("%w: record schema version %d: %v", kgerrors.ErrMigration, m.Version, err)
		}
	}
	return nil
}

// PendingMigrations reports the migrations that Migrate would apply without
// applying them (supplements spec §4.1 with a dry-run check, see SPEC_FULL.md).
func (s *Store) PendingMigrations(ctx context.Context) ([]string, error) {
	current, err := s.schemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, m := range registeredMigrations {
		if m.Version > current {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM schema_meta WHERE key = 'version'`).Scan(&value)
	if err == sql.ErrNoRows {
		// No version recorded yet. If the legacy tables are present, this
		// database predates versioning entirely and is treated as v0 so
		// that migrations from v1 onward (including the legacy rewrite)
		// still run (spec §4.1's "no version but legacy tables present").
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v int
	if _, err := fmt.Sscanf(value, "%d", &v); err != nil {
		return 0, fmt.Errorf("invalid schema_meta version %q: %w", value, err)
	}
	return v, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, v int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schema_meta (key, value) VALUES ('version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, fmt.Sprintf("%d", v))
	return err
}
