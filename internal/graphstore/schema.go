package graphstore

import "context"

// LatestVersion is the compiled-in target schema version (spec §4.1).
const LatestVersion = 2

// baseDDL creates the tables and indices that exist from v0 onward: the
// (nodes, edges) property graph plus the collaborator tables the schema
// depends on for foreign keys (artifacts, scans) or that ride along in the
// same file (technique_docs, datalog_rules) without being in this core's
// scope (spec §6.1).
const baseDDL = `
CREATE TABLE IF NOT EXISTS schema_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scans (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	tool       TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT
);

CREATE TABLE IF NOT EXISTS artifacts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	scan_id    INTEGER REFERENCES scans(id) ON DELETE CASCADE,
	path       TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
	id                   TEXT PRIMARY KEY,
	kind                 TEXT NOT NULL,
	natural_key          TEXT NOT NULL UNIQUE,
	props_json           TEXT NOT NULL DEFAULT '{}',
	evidence_artifact_id INTEGER REFERENCES artifacts(id) ON DELETE SET NULL,
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(kind);
CREATE INDEX IF NOT EXISTS idx_nodes_evidence ON nodes(evidence_artifact_id);

CREATE TABLE IF NOT EXISTS edges (
	id                   TEXT PRIMARY KEY,
	kind                 TEXT NOT NULL,
	source_id            TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	target_id            TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	props_json           TEXT NOT NULL DEFAULT '{}',
	evidence_artifact_id INTEGER REFERENCES artifacts(id) ON DELETE SET NULL,
	created_at           TEXT NOT NULL,
	UNIQUE(kind, source_id, target_id)
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
CREATE INDEX IF NOT EXISTS idx_edges_kind ON edges(kind);

CREATE TABLE IF NOT EXISTS technique_docs (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	title    TEXT NOT NULL,
	body     TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS technique_docs_fts USING fts5(
	title, body,
	content='technique_docs', content_rowid='id'
);

CREATE TABLE IF NOT EXISTS datalog_rules (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL UNIQUE,
	description  TEXT NOT NULL DEFAULT '',
	rule_text    TEXT NOT NULL,
	generated_by TEXT NOT NULL DEFAULT 'human',
	is_preset    INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL
);
`

// legacyTableNames are the pre-graph, row-per-entity tables that the pivotal
// migration (migrations/legacy_rewrite.go) rewrites into (nodes, edges). Approximately a
// dozen tables per spec §4.1; this teaching/reference deployment carries
// ten of them plus the two link-less join columns folded into child rows.
var legacyTableNames = []string{
	"legacy_hosts", "legacy_vhosts", "legacy_services", "legacy_endpoints",
	"legacy_inputs", "legacy_observations", "legacy_credentials",
	"legacy_vulnerabilities", "legacy_cves", "legacy_svc_observations",
}

func hasLegacyTables(ctx context.Context, s *Store) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name IN (
			'legacy_hosts','legacy_vhosts','legacy_services','legacy_endpoints',
			'legacy_inputs','legacy_observations','legacy_credentials',
			'legacy_vulnerabilities','legacy_cves','legacy_svc_observations'
		)`)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
