package service

import (
	"context"
	"testing"
	"time"

	"github.com/yourorg/referraldesk/internal/catalog"
	"github.com/yourorg/referraldesk/internal/domain"
	"github.com/yourorg/referraldesk/internal/store"
)

func TestSummaryEmpty(t *testing.T) {
	st := store.NewMemStore()
	dash := NewDashboardService(st, testLogger(), 0)

	sum, err := dash.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if sum.TotalDSAs != 0 || sum.TotalLinks != 0 || sum.TotalClicks != 0 || sum.TotalSignups != 0 {
		t.Fatalf("expected zero totals, got %+v", sum)
	}
	if sum.ConversionRate != "0%" {
		t.Fatalf("expected rate 0%% with no clicks, got %q", sum.ConversionRate)
	}
}

func TestSummaryAggregates(t *testing.T) {
	ctx := context.Background()
	dsas, links, st := newTestEngine(t)
	dash := NewDashboardService(st, testLogger(), 0)

	alice := mustCreateDSA(t, dsas, "Alice")
	bob := mustCreateDSA(t, dsas, "Bob")

	if _, err := links.Create(ctx, alice.ID, "prod1", "A1"); err != nil {
		t.Fatalf("create link failed: %v", err)
	}
	if _, err := links.Create(ctx, bob.ID, "prod2", "B1"); err != nil {
		t.Fatalf("create link failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := links.RecordClick(ctx, "A1"); err != nil {
			t.Fatalf("record click failed: %v", err)
		}
	}
	if _, err := links.RecordSignup(ctx, "A1"); err != nil {
		t.Fatalf("record signup failed: %v", err)
	}

	sum, err := dash.Summary(ctx)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if sum.TotalDSAs != 2 || sum.TotalLinks != 2 {
		t.Fatalf("unexpected totals: %+v", sum)
	}
	if sum.TotalClicks != 4 || sum.TotalSignups != 1 {
		t.Fatalf("unexpected traffic totals: %+v", sum)
	}
	if sum.ConversionRate != "25.00%" {
		t.Fatalf("expected rate 25.00%%, got %q", sum.ConversionRate)
	}
}

func TestTopDSAsRanking(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	dash := NewDashboardService(st, testLogger(), 0)

	seed := []domain.DSA{
		{Name: "Low", Status: domain.StatusActive, Signups: 30},
		{Name: "Suspended", Status: domain.StatusSuspended, Signups: 500},
		{Name: "Top", Status: domain.StatusActive, Signups: 250},
		{Name: "Mid", Status: domain.StatusActive, Signups: 120},
		{Name: "TieA", Status: domain.StatusActive, Signups: 85},
		{Name: "TieB", Status: domain.StatusActive, Signups: 85},
	}
	for _, dsa := range seed {
		if _, err := st.Insert(ctx, domain.CollectionDSAs, dsa); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	top, err := dash.TopDSAs(ctx, 5)
	if err != nil {
		t.Fatalf("top failed: %v", err)
	}
	if len(top) != 5 {
		t.Fatalf("expected 5 results, got %d", len(top))
	}

	wantOrder := []string{"Top", "Mid", "TieA", "TieB", "Low"}
	for i, want := range wantOrder {
		if top[i].Name != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, top[i].Name)
		}
	}
	for _, dsa := range top {
		if dsa.Status != domain.StatusActive {
			t.Fatalf("suspended dsa %q leaked into top list", dsa.Name)
		}
	}

	// Truncation below the active count
	top2, err := dash.TopDSAs(ctx, 2)
	if err != nil {
		t.Fatalf("top failed: %v", err)
	}
	if len(top2) != 2 || top2[0].Name != "Top" || top2[1].Name != "Mid" {
		t.Fatalf("unexpected truncated list: %+v", top2)
	}
}

func TestSummaryCaching(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	log := testLogger()
	dsas := NewDSAService(st, log)
	links := NewLinkService(st, catalog.NewStatic(), nil, log, "https://example.com")
	dash := NewDashboardService(st, log, time.Minute)

	alice, err := dsas.Create(ctx, "Alice", "alice@example.com", "", "")
	if err != nil {
		t.Fatalf("create dsa failed: %v", err)
	}

	first, err := dash.Summary(ctx)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if first.TotalDSAs != 1 {
		t.Fatalf("expected 1 dsa, got %d", first.TotalDSAs)
	}

	if _, err := links.Create(ctx, alice.ID, "prod1", "A1"); err != nil {
		t.Fatalf("create link failed: %v", err)
	}

	cached, err := dash.Summary(ctx)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if cached.TotalLinks != 0 {
		t.Fatalf("expected cached snapshot, got %+v", cached)
	}

	dash.Invalidate()
	fresh, err := dash.Summary(ctx)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if fresh.TotalLinks != 1 {
		t.Fatalf("expected fresh snapshot after invalidate, got %+v", fresh)
	}
}
