package graphstore

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/reconkg/engine/internal/graphmodel"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func TestMigrateFreshDatabaseReachesLatestVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.schemaVersion(ctx)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if v != LatestVersion {
		t.Fatalf("expected fresh database at version %d, got %d", LatestVersion, v)
	}

	pending, err := s.PendingMigrations(ctx)
	if err != nil {
		t.Fatalf("PendingMigrations: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending migrations on a fresh database, got %v", pending)
	}
}

func TestMigrateRewritesLegacySchema(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=1")
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE legacy_hosts (
			id INTEGER PRIMARY KEY, authority_kind TEXT, authority TEXT,
			resolved_ips_json TEXT, evidence_artifact_id INTEGER, created_at TEXT, updated_at TEXT
		);
		CREATE TABLE legacy_services (
			id INTEGER PRIMARY KEY, host_id INTEGER, transport TEXT, port INTEGER,
			app_proto TEXT, proto_confidence TEXT, state TEXT, banner TEXT, product TEXT, version TEXT,
			evidence_artifact_id INTEGER, created_at TEXT, updated_at TEXT
		);
	`); err != nil {
		t.Fatalf("create legacy tables: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO legacy_hosts (id, authority_kind, authority, resolved_ips_json, created_at, updated_at)
		VALUES (1, 'IP', '192.168.1.10', '[]', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')
	`); err != nil {
		t.Fatalf("insert legacy host: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO legacy_services (id, host_id, transport, port, app_proto, proto_confidence, state, banner, product, version, created_at, updated_at)
		VALUES (1, 1, 'tcp', 22, 'ssh', 'high', 'open', 'OpenSSH', 'OpenSSH', '9.0', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')
	`); err != nil {
		t.Fatalf("insert legacy service: %v", err)
	}

	s := &Store{db: db, path: ":memory:", logger: slog.Default()}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	hosts, err := s.FindByKind(ctx, NodeFilter{Kind: graphmodel.KindHost})
	if err != nil {
		t.Fatalf("FindByKind hosts: %v", err)
	}
	if len(hosts) != 1 {
		t.Fatalf("expected 1 host rewritten from legacy_hosts, got %d", len(hosts))
	}
	if hosts[0].Props["authority"] != "192.168.1.10" {
		t.Fatalf("unexpected host authority: %v", hosts[0].Props["authority"])
	}

	services, err := s.FindByKind(ctx, NodeFilter{Kind: graphmodel.KindService})
	if err != nil {
		t.Fatalf("FindByKind services: %v", err)
	}
	if len(services) != 1 {
		t.Fatalf("expected 1 service rewritten from legacy_services, got %d", len(services))
	}

	edges, err := s.EdgesFrom(ctx, hosts[0].ID, graphmodel.EdgeHostService)
	if err != nil {
		t.Fatalf("EdgesFrom: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 HOST_SERVICE edge reconstructed from the legacy foreign key, got %d", len(edges))
	}

	row := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='legacy_hosts'`)
	var n int
	if err := row.Scan(&n); err != nil {
		t.Fatalf("check legacy table dropped: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected legacy_hosts to be dropped after migration")
	}
}
