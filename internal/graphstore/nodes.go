package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/reconkg/engine/internal/graphmodel"
	"github.com/reconkg/engine/internal/idgen"
	"github.com/reconkg/engine/internal/kgerrors"
)

// NodeFilter narrows FindByKind results (spec §4.3's "filtered listing").
type NodeFilter struct {
	Kind   graphmodel.NodeKind
	Props  map[string]string // exact-match equality filters on props_json fields
	Limit  int
	Offset int
}

// CreateNode validates props against kind's schema, derives the natural key,
// and inserts a brand-new node. It does not upsert: a colliding natural key
// returns kgerrors.ErrDuplicateNaturalKey. Callers that want upsert semantics
// should use UpsertNode.
func (s *Store) CreateNode(ctx context.Context, kind graphmodel.NodeKind, props map[string]any, parentID string, evidenceArtifactID *int64) (*graphmodel.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	validated, err := graphmodel.Validate(kind, props)
	if err != nil {
		return nil, kgerrors.NewValidation(string(kind), "props", err.Error())
	}

	freshUUID := ""
	if graphmodel.NeedsFreshUUID(kind) {
		freshUUID = idgen.NewUUID()
	}
	naturalKey, err := graphmodel.DeriveNaturalKey(kind, validated, parentID, freshUUID)
	if err != nil {
		return nil, kgerrors.NewValidation(string(kind), "parentId", err.Error())
	}

	now := nowRFC3339()
	node := &graphmodel.Node{
		ID: idgen.New(), Kind: kind, NaturalKey: naturalKey, Props: validated,
		EvidenceArtifactID: evidenceArtifactID, CreatedAt: now, UpdatedAt: now,
	}
	if err := s.insertNode(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

// UpsertNode implements spec §8's "Upsert merge" property: if a node with the
// derived natural key already exists, its props are merged (incoming wins on
// overlapping keys) and updated_at advances; otherwise a new node is created.
func (s *Store) UpsertNode(ctx context.Context, kind graphmodel.NodeKind, props map[string]any, parentID string, evidenceArtifactID *int64) (*graphmodel.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	validated, err := graphmodel.Validate(kind, props)
	if err != nil {
		return nil, kgerrors.NewValidation(string(kind), "props", err.Error())
	}

	freshUUID := ""
	if graphmodel.NeedsFreshUUID(kind) {
		freshUUID = idgen.NewUUID()
	}
	naturalKey, err := graphmodel.DeriveNaturalKey(kind, validated, parentID, freshUUID)
	if err != nil {
		return nil, kgerrors.NewValidation(string(kind), "parentId", err.Error())
	}

	existing, err := s.findNodeByNaturalKeyLocked(ctx, naturalKey)
	if err != nil && !kgerrors.IsNotFound(err) {
		return nil, err
	}

	now := nowRFC3339()
	if existing == nil {
		node := &graphmodel.Node{
			ID: idgen.New(), Kind: kind, NaturalKey: naturalKey, Props: validated,
			EvidenceArtifactID: evidenceArtifactID, CreatedAt: now, UpdatedAt: now,
		}
		if err := s.insertNode(ctx, node); err != nil {
			return nil, err
		}
		return node, nil
	}

	merged := graphmodel.MergeProps(existing.Props, validated)
	existing.Props = merged
	existing.UpdatedAt = now
	if evidenceArtifactID != nil {
		existing.EvidenceArtifactID = evidenceArtifactID
	}
	if err := s.updateNodeLocked(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Store) insertNode(ctx context.Context, n *graphmodel.Node) error {
	propsJSON, err := json.Marshal(n.Props)
	if err != nil {
		return fmt.Errorf("marshal props: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nodes (id, kind, natural_key, props_json, evidence_artifact_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID, string(n.Kind), n.NaturalKey, string(propsJSON), n.EvidenceArtifactID, n.CreatedAt, n.UpdatedAt)
	if isUniqueConstraintErr(err) {
		return fmt.Errorf("%w: natural key %q", kgerrors.ErrDuplicateNaturalKey, n.NaturalKey)
	}
	if err != nil {
		return fmt.Errorf("%w: insert node: %v", kgerrors.ErrStorage, err)
	}
	return nil
}

func (s *Store) updateNodeLocked(ctx context.Context, n *graphmodel.Node) error {
	propsJSON, err := json.Marshal(n.Props)
	if err != nil {
		return fmt.Errorf("marshal props: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE nodes SET props_json = ?, evidence_artifact_id = ?, updated_at = ? WHERE id = ?
	`, string(propsJSON), n.EvidenceArtifactID, n.UpdatedAt, n.ID)
	if err != nil {
		return fmt.Errorf("%w: update node: %v", kgerrors.ErrStorage, err)
	}
	return nil
}

// UpdateNodeProps merges newProps into the node's existing props (incoming
// wins) and advances updated_at, without touching the natural key.
func (s *Store) UpdateNodeProps(ctx context.Context, id string, newProps map[string]any) (*graphmodel.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.findNodeByIDLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	validated, err := graphmodel.Validate(n.Kind, graphmodel.MergeProps(n.Props, newProps))
	if err != nil {
		return nil, kgerrors.NewValidation(string(n.Kind), "props", err.Error())
	}
	n.Props = validated
	n.UpdatedAt = nowRFC3339()
	if err := s.updateNodeLocked(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// FindByID fetches one node by id.
func (s *Store) FindByID(ctx context.Context, id string) (*graphmodel.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findNodeByIDLocked(ctx, id)
}

func (s *Store) findNodeByIDLocked(ctx context.Context, id string) (*graphmodel.Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, natural_key, props_json, evidence_artifact_id, created_at, updated_at
		FROM nodes WHERE id = ?`, id)
	return scanNode(row)
}

// FindByNaturalKey fetches one node by its natural key, or ErrNotFound.
func (s *Store) FindByNaturalKey(ctx context.Context, naturalKey string) (*graphmodel.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findNodeByNaturalKeyLocked(ctx, naturalKey)
}

func (s *Store) findNodeByNaturalKeyLocked(ctx context.Context, naturalKey string) (*graphmodel.Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, natural_key, props_json, evidence_artifact_id, created_at, updated_at
		FROM nodes WHERE natural_key = ?`, naturalKey)
	return scanNode(row)
}

// FindByKind lists nodes of kind, in natural_key order, narrowed by filter.
func (s *Store) FindByKind(ctx context.Context, filter NodeFilter) ([]*graphmodel.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.Builder{}
	query.WriteString(`SELECT id, kind, natural_key, props_json, evidence_artifact_id, created_at, updated_at FROM nodes WHERE kind = ?`)
	args := []any{string(filter.Kind)}

	for field, want := range filter.Props {
		query.WriteString(` AND json_extract(props_json, '$.' || ?) = ?`)
		args = append(args, field, want)
	}
	query.WriteString(` ORDER BY natural_key`)
	if filter.Limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query.WriteString(` OFFSET ?`)
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: find by kind: %v", kgerrors.ErrStorage, err)
	}
	defer rows.Close()

	var out []*graphmodel.Node
	for rows.Next() {
		n, err := scanNodeRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteNode removes a node and, via ON DELETE CASCADE, every edge that
// touches it (spec §3.2's cascade-delete invariant).
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete node: %v", kgerrors.ErrStorage, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: node %q", kgerrors.ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row *sql.Row) (*graphmodel.Node, error) {
	n, err := scanNodeGeneric(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: node", kgerrors.ErrNotFound)
	}
	return n, err
}

func scanNodeRows(rows *sql.Rows) (*graphmodel.Node, error) {
	return scanNodeGeneric(rows)
}

func scanNodeGeneric(s rowScanner) (*graphmodel.Node, error) {
	var n graphmodel.Node
	var kind, propsJSON string
	var evidenceArtifactID sql.NullInt64
	if err := s.Scan(&n.ID, &kind, &n.NaturalKey, &propsJSON, &evidenceArtifactID, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Kind = graphmodel.NodeKind(kind)
	if evidenceArtifactID.Valid {
		v := evidenceArtifactID.Int64
		n.EvidenceArtifactID = &v
	}
	if err := json.Unmarshal([]byte(propsJSON), &n.Props); err != nil {
		return nil, fmt.Errorf("unmarshal props for node %s: %w", n.ID, err)
	}
	return &n, nil
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
