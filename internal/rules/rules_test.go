package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/reconkg/engine/internal/graphstore"
	"github.com/reconkg/engine/internal/kgerrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	gs, err := graphstore.OpenMemory(ctx, nil)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { gs.Close() })
	return NewStore(gs)
}

func TestSaveAndFindByName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	saved, err := s.Save(ctx, "my_rule", "a test rule", `?- host(H, A, K).`, GeneratedByHuman)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Name != "my_rule" || saved.IsPreset {
		t.Fatalf("unexpected saved rule: %+v", saved)
	}

	found, err := s.FindByName(ctx, "my_rule")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if found.ID != saved.ID {
		t.Fatalf("expected matching id, got %d vs %d", found.ID, saved.ID)
	}
}

func TestSaveDuplicateNameRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Save(ctx, "dup", "", `?- host(H, A, K).`, GeneratedByHuman); err != nil {
		t.Fatalf("first save: %v", err)
	}
	_, err := s.Save(ctx, "dup", "", `?- host(H, A, K).`, GeneratedByAI)
	if !errors.Is(err, kgerrors.ErrDuplicateName) {
		t.Fatalf("expected DuplicateName error, got %v", err)
	}
}

func TestSeedPresetsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.SeedPresets(ctx); err != nil {
		t.Fatalf("SeedPresets: %v", err)
	}
	list1, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if err := s.SeedPresets(ctx); err != nil {
		t.Fatalf("second SeedPresets: %v", err)
	}
	list2, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list1) != len(list2) {
		t.Fatalf("seeding twice should not duplicate rows: %d vs %d", len(list1), len(list2))
	}
	for _, r := range list2 {
		if !r.IsPreset {
			t.Fatalf("expected seeded rule to be marked preset: %+v", r)
		}
	}
}

func TestResolveRuleTextUnknownNameNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.ResolveRuleText(ctx, "does_not_exist")
	if err == nil {
		t.Fatalf("expected NotFound error")
	}
}

func TestDeleteRule(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Save(ctx, "throwaway", "", `?- host(H, A, K).`, GeneratedByHuman); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(ctx, "throwaway"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "throwaway"); err == nil {
		t.Fatalf("expected NotFound deleting an already-deleted rule")
	}
}
