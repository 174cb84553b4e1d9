package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/yourorg/referraldesk/internal/domain"
)

type testDoc struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	id, err := s.Insert(ctx, "things", testDoc{Name: "first"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}

	var got testDoc
	if err := s.Get(ctx, "things", id, &got); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ID != id || got.Name != "first" {
		t.Fatalf("unexpected doc: %+v", got)
	}

	got.Count = 3
	if err := s.Update(ctx, "things", id, got); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	var after testDoc
	if err := s.Get(ctx, "things", id, &after); err != nil {
		t.Fatalf("get after update failed: %v", err)
	}
	if after.Count != 3 {
		t.Fatalf("expected count 3, got %d", after.Count)
	}

	if err := s.Delete(ctx, "things", id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := s.Get(ctx, "things", id, &got); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemStoreUpdateMissing(t *testing.T) {
	s := NewMemStore()
	err := s.Update(context.Background(), "things", "nope", testDoc{Name: "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStoreListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		id, err := s.Insert(ctx, "things", testDoc{Name: name})
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		ids = append(ids, id)
	}

	// Updating the first doc must not move it to the end
	if err := s.Update(ctx, "things", ids[0], testDoc{ID: ids[0], Name: "a", Count: 9}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	docs, err := s.List(ctx, "things")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(docs))
	}
	var names []string
	for _, raw := range docs {
		var d testDoc
		if err := json.Unmarshal(raw, &d); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		names = append(names, d.Name)
	}
	if names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Fatalf("unexpected order: %v", names)
	}
}

func TestMemStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	for _, name := range []string{"x", "y", "x"} {
		if _, err := s.Insert(ctx, "things", testDoc{Name: name}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	docs, err := s.Query(ctx, "things", "name", "x")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(docs))
	}
}

func TestTransactCommitsAtomically(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	err := s.Transact(ctx, func(tx Tx) error {
		if err := tx.Put("things", "one", testDoc{ID: "one", Name: "one"}); err != nil {
			return err
		}
		return tx.Put("things", "two", testDoc{ID: "two", Name: "two"})
	})
	if err != nil {
		t.Fatalf("transact failed: %v", err)
	}

	var got testDoc
	if err := s.Get(ctx, "things", "one", &got); err != nil {
		t.Fatalf("expected committed doc: %v", err)
	}
	if err := s.Get(ctx, "things", "two", &got); err != nil {
		t.Fatalf("expected committed doc: %v", err)
	}
}

func TestTransactBodyErrorDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	boom := errors.New("boom")
	err := s.Transact(ctx, func(tx Tx) error {
		if err := tx.Put("things", "one", testDoc{ID: "one"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected body error, got %v", err)
	}

	var got testDoc
	if err := s.Get(ctx, "things", "one", &got); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no committed writes, got %v", err)
	}
}

func TestTransactAbortsOnConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	if err := s.Transact(ctx, func(tx Tx) error {
		return tx.Put("things", "one", testDoc{ID: "one", Count: 1})
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	err := s.Transact(ctx, func(tx Tx) error {
		var d testDoc
		if err := tx.Get("things", "one", &d); err != nil {
			return err
		}
		// Another writer lands after our read and before commit
		d2 := testDoc{ID: "one", Count: 99}
		if err := s.Update(ctx, "things", "one", d2); err != nil {
			return err
		}
		d.Count++
		return tx.Put("things", "one", d)
	})
	if !errors.Is(err, domain.ErrTransactionAborted) {
		t.Fatalf("expected ErrTransactionAborted, got %v", err)
	}

	var got testDoc
	if err := s.Get(ctx, "things", "one", &got); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Count != 99 {
		t.Fatalf("aborted transaction must not overwrite, got count %d", got.Count)
	}
}

func TestTransactAbortsOnObservedAbsence(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	err := s.Transact(ctx, func(tx Tx) error {
		var d testDoc
		if err := tx.Get("things", "one", &d); !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		// Absence was observed; a concurrent insert must abort the commit
		return s.Transact(ctx, func(inner Tx) error {
			return inner.Put("things", "one", testDoc{ID: "one"})
		})
	})
	if !errors.Is(err, domain.ErrTransactionAborted) {
		t.Fatalf("expected ErrTransactionAborted, got %v", err)
	}
}
