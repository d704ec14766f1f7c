// Package rules persists Datalog programs (spec §4.8): named rule text that
// either a human or an automated advisor authored, plus the built-in preset
// programs seeded on first use.
package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reconkg/engine/internal/graphstore"
	"github.com/reconkg/engine/internal/kgerrors"
)

// GeneratedBy is the closed enum of spec §4.8.
type GeneratedBy string

const (
	GeneratedByHuman  GeneratedBy = "human"
	GeneratedByAI     GeneratedBy = "ai"
	GeneratedByPreset GeneratedBy = "preset"
)

// Rule is one saved Datalog program row.
type Rule struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	RuleText    string      `json:"ruleText"`
	GeneratedBy GeneratedBy `json:"generatedBy"`
	IsPreset    bool        `json:"isPreset"`
	CreatedAt   string      `json:"createdAt"`
}

// Store is the datalog_rules repository, backed by the same database handle
// as the graph store.
type Store struct {
	db *sql.DB
}

// NewStore wraps gs's underlying handle for rule persistence.
func NewStore(gs *graphstore.Store) *Store {
	return &Store{db: gs.DB()}
}

// Save inserts a new rule. A duplicate name reports kgerrors.ErrDuplicateName.
func (s *Store) Save(ctx context.Context, name, description, ruleText string, generatedBy GeneratedBy) (*Rule, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO datalog_rules (name, description, rule_text, generated_by, is_preset, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		name, description, ruleText, string(generatedBy), now)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return nil, fmt.Errorf("save rule %q: %w", name, kgerrors.ErrDuplicateName)
		}
		return nil, fmt.Errorf("save rule: %w", kgerrors.ErrStorage)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("save rule: %w", kgerrors.ErrStorage)
	}
	return s.FindByID(ctx, id)
}

func (s *Store) seedPreset(ctx context.Context, name, description, ruleText string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO datalog_rules (name, description, rule_text, generated_by, is_preset, created_at)
		VALUES (?, ?, ?, 'preset', 1, ?)
		ON CONFLICT(name) DO NOTHING`,
		name, description, ruleText, now)
	if err != nil {
		return fmt.Errorf("seed preset %q: %w", name, kgerrors.ErrStorage)
	}
	return nil
}

// List returns every saved rule, ordered by name.
func (s *Store) List(ctx context.Context) ([]*Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, rule_text, generated_by, is_preset, created_at
		FROM datalog_rules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", kgerrors.ErrStorage)
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindByName looks up a rule by its unique name.
func (s *Store) FindByName(ctx context.Context, name string) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, rule_text, generated_by, is_preset, created_at
		FROM datalog_rules WHERE name = ?`, name)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %q: %w", name, kgerrors.ErrNotFound)
	}
	return r, err
}

// FindByID looks up a rule by its primary key.
func (s *Store) FindByID(ctx context.Context, id int64) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, rule_text, generated_by, is_preset, created_at
		FROM datalog_rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule id %d: %w", id, kgerrors.ErrNotFound)
	}
	return r, err
}

// Delete removes a rule by name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM datalog_rules WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete rule %q: %w", name, kgerrors.ErrStorage)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule %q: %w", name, kgerrors.ErrStorage)
	}
	if n == 0 {
		return fmt.Errorf("rule %q: %w", name, kgerrors.ErrNotFound)
	}
	return nil
}

// Search finds rules whose name, description, or rule text contains query
// (case-insensitive). This supplements spec §4.8, which names lookup only by
// exact name; free-text search over saved rules is a natural operator-facing
// addition once rules accumulate beyond the seeded presets.
func (s *Store) Search(ctx context.Context, query string) ([]*Rule, error) {
	like := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, rule_text, generated_by, is_preset, created_at
		FROM datalog_rules
		WHERE lower(name) LIKE ? OR lower(description) LIKE ? OR lower(rule_text) LIKE ?
		ORDER BY name`, like, like, like)
	if err != nil {
		return nil, fmt.Errorf("search rules: %w", kgerrors.ErrStorage)
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type ruleScanner interface {
	Scan(dest ...any) error
}

func scanRule(s ruleScanner) (*Rule, error) {
	var r Rule
	var generatedBy string
	var isPreset int
	if err := s.Scan(&r.ID, &r.Name, &r.Description, &r.RuleText, &generatedBy, &isPreset, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan rule: %w", kgerrors.ErrStorage)
	}
	r.GeneratedBy = GeneratedBy(generatedBy)
	r.IsPreset = isPreset != 0
	return &r, nil
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
