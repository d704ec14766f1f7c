package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// AdditionalIndexes adds the indices that support the graphquery and facts
// packages' read patterns (recency-ordered listing, per-kind fact
// extraction) without changing any table's shape. Safe to run against a
// database already carrying these indices.
func AdditionalIndexes(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_nodes_created_at ON nodes(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_kind_created_at ON nodes(kind, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_kind_source ON edges(kind, source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_datalog_rules_is_preset ON datalog_rules(is_preset)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}
