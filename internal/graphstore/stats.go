package graphstore

import (
	"context"
	"fmt"

	"github.com/reconkg/engine/internal/graphmodel"
	"github.com/reconkg/engine/internal/kgerrors"
)

// Stats summarizes the graph's size, supplementing spec §4.3 with a cheap
// overview operation for the CLI and facade "status" calls (SPEC_FULL.md).
type Stats struct {
	NodeCount    int64
	EdgeCount    int64
	NodesByKind  map[graphmodel.NodeKind]int64
	EdgesByKind  map[graphmodel.EdgeKind]int64
	SchemaVersion int
}

// Stats computes node/edge counts, overall and by kind.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &Stats{NodesByKind: map[graphmodel.NodeKind]int64{}, EdgesByKind: map[graphmodel.EdgeKind]int64{}}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&out.NodeCount); err != nil {
		return nil, fmt.Errorf("%w: count nodes: %v", kgerrors.ErrStorage, err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&out.EdgeCount); err != nil {
		return nil, fmt.Errorf("%w: count edges: %v", kgerrors.ErrStorage, err)
	}

	nodeRows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM nodes GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("%w: count nodes by kind: %v", kgerrors.ErrStorage, err)
	}
	defer nodeRows.Close()
	for nodeRows.Next() {
		var kind string
		var n int64
		if err := nodeRows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out.NodesByKind[graphmodel.NodeKind(kind)] = n
	}
	if err := nodeRows.Err(); err != nil {
		return nil, err
	}

	edgeRows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM edges GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("%w: count edges by kind: %v", kgerrors.ErrStorage, err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var kind string
		var n int64
		if err := edgeRows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out.EdgesByKind[graphmodel.EdgeKind(kind)] = n
	}
	if err := edgeRows.Err(); err != nil {
		return nil, err
	}

	version, err := s.schemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	out.SchemaVersion = version

	return out, nil
}
