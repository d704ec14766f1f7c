package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/reconkg/engine/internal/graphmodel"
	"github.com/reconkg/engine/internal/idgen"
	"github.com/reconkg/engine/internal/kgerrors"
)

// UpsertEdge inserts the edge (kind, sourceID, targetID) if it does not
// already exist, or merges props into the existing one (spec §3.2's
// UNIQUE(kind, source_id, target_id) natural identity for edges).
func (s *Store) UpsertEdge(ctx context.Context, kind graphmodel.EdgeKind, sourceID, targetID string, props map[string]any, evidenceArtifactID *int64) (*graphmodel.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !kind.Valid() {
		return nil, kgerrors.NewValidation(string(kind), "kind", "not a recognized edge kind")
	}

	existing, err := s.findEdgeLocked(ctx, kind, sourceID, targetID)
	if err != nil && !kgerrors.IsNotFound(err) {
		return nil, err
	}

	now := nowRFC3339()
	if existing == nil {
		e := &graphmodel.Edge{
			ID: idgen.New(), Kind: kind, SourceID: sourceID, TargetID: targetID,
			Props: props, EvidenceArtifactID: evidenceArtifactID, CreatedAt: now,
		}
		if err := s.insertEdge(ctx, e); err != nil {
			return nil, err
		}
		return e, nil
	}

	existing.Props = graphmodel.MergeProps(existing.Props, props)
	if evidenceArtifactID != nil {
		existing.EvidenceArtifactID = evidenceArtifactID
	}
	if err := s.updateEdgePropsLocked(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Store) insertEdge(ctx context.Context, e *graphmodel.Edge) error {
	propsJSON, err := json.Marshal(e.Props)
	if err != nil {
		return fmt.Errorf("marshal edge props: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO edges (id, kind, source_id, target_id, props_json, evidence_artifact_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.Kind), e.SourceID, e.TargetID, string(propsJSON), e.EvidenceArtifactID, e.CreatedAt)
	if isUniqueConstraintErr(err) {
		return fmt.Errorf("%w: edge %s %s->%s", kgerrors.ErrDuplicateNaturalKey, e.Kind, e.SourceID, e.TargetID)
	}
	if err != nil {
		return fmt.Errorf("%w: insert edge: %v", kgerrors.ErrStorage, err)
	}
	return nil
}

func (s *Store) updateEdgePropsLocked(ctx context.Context, e *graphmodel.Edge) error {
	propsJSON, err := json.Marshal(e.Props)
	if err != nil {
		return fmt.Errorf("marshal edge props: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE edges SET props_json = ?, evidence_artifact_id = ? WHERE id = ?
	`, string(propsJSON), e.EvidenceArtifactID, e.ID)
	if err != nil {
		return fmt.Errorf("%w: update edge: %v", kgerrors.ErrStorage, err)
	}
	return nil
}

// FindEdge fetches the edge identified by (kind, sourceID, targetID).
func (s *Store) FindEdge(ctx context.Context, kind graphmodel.EdgeKind, sourceID, targetID string) (*graphmodel.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findEdgeLocked(ctx, kind, sourceID, targetID)
}

func (s *Store) findEdgeLocked(ctx context.Context, kind graphmodel.EdgeKind, sourceID, targetID string) (*graphmodel.Edge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, source_id, target_id, props_json, evidence_artifact_id, created_at
		FROM edges WHERE kind = ? AND source_id = ? AND target_id = ?`, string(kind), sourceID, targetID)
	e, err := scanEdgeGeneric(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: edge", kgerrors.ErrNotFound)
	}
	return e, err
}

// EdgesFrom lists edges whose source_id is nodeID, optionally filtered by
// kind (empty kind = all kinds). Grounds the graphquery package's
// neighbor-expansion step.
func (s *Store) EdgesFrom(ctx context.Context, nodeID string, kind graphmodel.EdgeKind) ([]*graphmodel.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows *sql.Rows
	var err error
	if kind == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, kind, source_id, target_id, props_json, evidence_artifact_id, created_at
			FROM edges WHERE source_id = ?`, nodeID)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, kind, source_id, target_id, props_json, evidence_artifact_id, created_at
			FROM edges WHERE source_id = ? AND kind = ?`, nodeID, string(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: edges from: %v", kgerrors.ErrStorage, err)
	}
	defer rows.Close()
	return scanEdgeList(rows)
}

// EdgesTo lists edges whose target_id is nodeID, optionally filtered by kind.
func (s *Store) EdgesTo(ctx context.Context, nodeID string, kind graphmodel.EdgeKind) ([]*graphmodel.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows *sql.Rows
	var err error
	if kind == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, kind, source_id, target_id, props_json, evidence_artifact_id, created_at
			FROM edges WHERE target_id = ?`, nodeID)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, kind, source_id, target_id, props_json, evidence_artifact_id, created_at
			FROM edges WHERE target_id = ? AND kind = ?`, nodeID, string(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: edges to: %v", kgerrors.ErrStorage, err)
	}
	defer rows.Close()
	return scanEdgeList(rows)
}

// DeleteEdge removes one edge by id.
func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete edge: %v", kgerrors.ErrStorage, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: edge %q", kgerrors.ErrNotFound, id)
	}
	return nil
}

func scanEdgeList(rows *sql.Rows) ([]*graphmodel.Edge, error) {
	var out []*graphmodel.Edge
	for rows.Next() {
		e, err := scanEdgeGeneric(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEdgeGeneric(s rowScanner) (*graphmodel.Edge, error) {
	var e graphmodel.Edge
	var kind, propsJSON string
	var evidenceArtifactID sql.NullInt64
	if err := s.Scan(&e.ID, &kind, &e.SourceID, &e.TargetID, &propsJSON, &evidenceArtifactID, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Kind = graphmodel.EdgeKind(kind)
	if evidenceArtifactID.Valid {
		v := evidenceArtifactID.Int64
		e.EvidenceArtifactID = &v
	}
	if err := json.Unmarshal([]byte(propsJSON), &e.Props); err != nil {
		return nil, fmt.Errorf("unmarshal props for edge %s: %w", e.ID, err)
	}
	return &e, nil
}
