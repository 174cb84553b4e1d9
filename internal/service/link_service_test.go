package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/yourorg/referraldesk/internal/catalog"
	"github.com/yourorg/referraldesk/internal/domain"
	"github.com/yourorg/referraldesk/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*DSAService, *LinkService, *store.MemStore) {
	t.Helper()
	st := store.NewMemStore()
	log := testLogger()
	dsas := NewDSAService(st, log)
	links := NewLinkService(st, catalog.NewStatic(), nil, log, "https://refer.example.com")
	return dsas, links, st
}

func mustCreateDSA(t *testing.T, dsas *DSAService, name string) *domain.DSA {
	t.Helper()
	dsa, err := dsas.Create(context.Background(), name, strings.ToLower(name)+"@example.com", "", "")
	if err != nil {
		t.Fatalf("create dsa failed: %v", err)
	}
	return dsa
}

func TestCreateLink(t *testing.T) {
	ctx := context.Background()
	dsas, links, _ := newTestEngine(t)
	alice := mustCreateDSA(t, dsas, "Alice")

	link, err := links.Create(ctx, alice.ID, "prod1", "alice20")
	if err != nil {
		t.Fatalf("create link failed: %v", err)
	}

	if link.Code != "ALICE20" {
		t.Fatalf("expected normalized code ALICE20, got %q", link.Code)
	}
	if link.DSAName != "Alice" {
		t.Fatalf("expected dsa name snapshot, got %q", link.DSAName)
	}
	if link.ProductName == "" {
		t.Fatalf("expected product name snapshot")
	}
	if link.ConversionRate != "0.00%" {
		t.Fatalf("expected fresh link rate 0.00%%, got %q", link.ConversionRate)
	}
	if link.Link != "https://refer.example.com/refer/ALICE20" {
		t.Fatalf("unexpected share url %q", link.Link)
	}

	got, err := dsas.Get(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get dsa failed: %v", err)
	}
	if got.ActiveLinks != 1 {
		t.Fatalf("expected activeLinks 1, got %d", got.ActiveLinks)
	}
}

func TestCreateLinkDuplicateCode(t *testing.T) {
	ctx := context.Background()
	dsas, links, _ := newTestEngine(t)
	alice := mustCreateDSA(t, dsas, "Alice")
	bob := mustCreateDSA(t, dsas, "Bob")

	if _, err := links.Create(ctx, alice.ID, "prod1", "SHARED"); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	// Same code in different case must collide
	_, err := links.Create(ctx, bob.ID, "prod2", "shared")
	if !errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}

	// The failed create must not have bumped Bob's counter
	got, err := dsas.Get(ctx, bob.ID)
	if err != nil {
		t.Fatalf("get dsa failed: %v", err)
	}
	if got.ActiveLinks != 0 {
		t.Fatalf("failed create leaked a counter increment: %d", got.ActiveLinks)
	}
}

func TestCreateLinkValidation(t *testing.T) {
	ctx := context.Background()
	dsas, links, _ := newTestEngine(t)
	alice := mustCreateDSA(t, dsas, "Alice")

	for _, code := range []string{"", "a", "has space", "way-too-long-for-a-referral-code-by-far", "bad!chars"} {
		if _, err := links.Create(ctx, alice.ID, "prod1", code); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("code %q: expected ErrValidation, got %v", code, err)
		}
	}

	if _, err := links.Create(ctx, alice.ID, "no-such-product", "OK99"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown product: expected ErrNotFound, got %v", err)
	}
	if _, err := links.Create(ctx, "no-such-dsa", "prod1", "OK99"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown dsa: expected ErrNotFound, got %v", err)
	}
}

func TestRecordClickAndSignup(t *testing.T) {
	ctx := context.Background()
	dsas, links, _ := newTestEngine(t)
	alice := mustCreateDSA(t, dsas, "Alice")
	link, err := links.Create(ctx, alice.ID, "prod1", "ALICE20")
	if err != nil {
		t.Fatalf("create link failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := links.RecordClick(ctx, "alice20"); err != nil {
			t.Fatalf("record click failed: %v", err)
		}
	}
	updated, err := links.RecordSignup(ctx, "ALICE20")
	if err != nil {
		t.Fatalf("record signup failed: %v", err)
	}

	if updated.Clicks != 3 || updated.Signups != 1 {
		t.Fatalf("expected 3 clicks / 1 signup, got %d/%d", updated.Clicks, updated.Signups)
	}
	if updated.ConversionRate != "33.33%" {
		t.Fatalf("expected rate 33.33%%, got %q", updated.ConversionRate)
	}

	got, err := dsas.Get(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get dsa failed: %v", err)
	}
	if got.Signups != 1 {
		t.Fatalf("expected dsa signups 1, got %d", got.Signups)
	}

	if _, err := links.RecordClick(ctx, "NOPE"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown code: expected ErrNotFound, got %v", err)
	}
	_ = link
}

func TestUpdateLinkPropagatesSignupDelta(t *testing.T) {
	ctx := context.Background()
	dsas, links, _ := newTestEngine(t)
	alice := mustCreateDSA(t, dsas, "Alice")
	link, err := links.Create(ctx, alice.ID, "prod2", "ALICE20")
	if err != nil {
		t.Fatalf("create link failed: %v", err)
	}

	clicks, signups := 10, 4
	updated, err := links.Update(ctx, link.ID, LinkPatch{Clicks: &clicks, Signups: &signups})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.ConversionRate != "40.00%" {
		t.Fatalf("expected rate 40.00%%, got %q", updated.ConversionRate)
	}

	got, err := dsas.Get(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get dsa failed: %v", err)
	}
	if got.Signups != 4 {
		t.Fatalf("expected dsa signups 4, got %d", got.Signups)
	}

	// Lowering the link's signups applies a negative delta
	lower := 1
	if _, err := links.Update(ctx, link.ID, LinkPatch{Signups: &lower}); err != nil {
		t.Fatalf("second update failed: %v", err)
	}
	got, _ = dsas.Get(ctx, alice.ID)
	if got.Signups != 1 {
		t.Fatalf("expected dsa signups 1 after lowering, got %d", got.Signups)
	}

	neg := -1
	if _, err := links.Update(ctx, link.ID, LinkPatch{Clicks: &neg}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for negative clicks, got %v", err)
	}
}

func TestDeleteLinkSettlesCounters(t *testing.T) {
	ctx := context.Background()
	dsas, links, _ := newTestEngine(t)
	alice := mustCreateDSA(t, dsas, "Alice")
	link, err := links.Create(ctx, alice.ID, "prod1", "ALICE20")
	if err != nil {
		t.Fatalf("create link failed: %v", err)
	}
	if _, err := links.RecordClick(ctx, "ALICE20"); err != nil {
		t.Fatalf("record click failed: %v", err)
	}
	if _, err := links.RecordSignup(ctx, "ALICE20"); err != nil {
		t.Fatalf("record signup failed: %v", err)
	}

	if err := links.Delete(ctx, link.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	got, err := dsas.Get(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get dsa failed: %v", err)
	}
	if got.ActiveLinks != 0 || got.Signups != 0 {
		t.Fatalf("expected counters settled to 0/0, got %d/%d", got.ActiveLinks, got.Signups)
	}

	// The code is free again
	if _, err := links.Create(ctx, alice.ID, "prod1", "ALICE20"); err != nil {
		t.Fatalf("expected code reusable after delete: %v", err)
	}
}

func TestDeleteLinkIdempotent(t *testing.T) {
	ctx := context.Background()
	_, links, _ := newTestEngine(t)

	if err := links.Delete(ctx, "never-existed"); err != nil {
		t.Fatalf("deleting an absent link must succeed, got %v", err)
	}
}

func TestListByDSA(t *testing.T) {
	ctx := context.Background()
	dsas, links, _ := newTestEngine(t)
	alice := mustCreateDSA(t, dsas, "Alice")
	bob := mustCreateDSA(t, dsas, "Bob")

	if _, err := links.Create(ctx, alice.ID, "prod1", "A1"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := links.Create(ctx, alice.ID, "prod2", "A2"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := links.Create(ctx, bob.ID, "prod1", "B1"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	mine, err := links.ListByDSA(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list by dsa failed: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 links for alice, got %d", len(mine))
	}

	all, err := links.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 links total, got %d", len(all))
	}
}
