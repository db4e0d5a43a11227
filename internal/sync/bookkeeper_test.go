package sync

import (
	"testing"
	"time"
)

func TestBookkeeperFirstCommitCreatesState(t *testing.T) {
	store := newFakeStore()
	book := NewBookkeeper(store)

	req := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	srv := time.Date(2026, 3, 1, 9, 59, 0, 0, time.UTC)
	if err := book.Commit(EntityTaxes, req, srv); err != nil {
		t.Fatalf("commit: %v", err)
	}

	st, err := book.Config(EntityTaxes)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if st == nil {
		t.Fatal("expected state after commit")
	}
	if !st.LastRequest.Equal(req) || !st.LastUpdated.Equal(srv) {
		t.Errorf("got %v/%v, want %v/%v", st.LastRequest, st.LastUpdated, req, srv)
	}
}

func TestBookkeeperNeverRegresses(t *testing.T) {
	store := newFakeStore()
	book := NewBookkeeper(store)

	newer := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	if err := book.Commit(EntityProducts, newer, newer); err != nil {
		t.Fatalf("commit: %v", err)
	}
	// a delayed run reporting older timestamps must not move anything back
	if err := book.Commit(EntityProducts, older, older); err != nil {
		t.Fatalf("commit: %v", err)
	}

	st, _ := book.Config(EntityProducts)
	if !st.LastRequest.Equal(newer) {
		t.Errorf("LastRequest regressed to %v", st.LastRequest)
	}
	if !st.LastUpdated.Equal(newer) {
		t.Errorf("LastUpdated regressed to %v", st.LastUpdated)
	}
}

func TestBookkeeperUnsyncedEntityIsNil(t *testing.T) {
	book := NewBookkeeper(newFakeStore())
	st, err := book.Config(EntityUsers)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if st != nil {
		t.Errorf("expected nil state for never-synced entity, got %+v", st)
	}
}
