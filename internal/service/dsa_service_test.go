package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yourorg/referraldesk/internal/domain"
)

func TestCreateDSADefaults(t *testing.T) {
	ctx := context.Background()
	dsas, _, _ := newTestEngine(t)

	dsa, err := dsas.Create(ctx, "  Alice Johnson  ", "alice@example.com", "", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if dsa.ID == "" {
		t.Fatalf("expected generated id")
	}
	if dsa.Name != "Alice Johnson" {
		t.Fatalf("expected trimmed name, got %q", dsa.Name)
	}
	if dsa.Status != domain.StatusActive {
		t.Fatalf("expected default status Active, got %q", dsa.Status)
	}
	if dsa.ActiveLinks != 0 || dsa.Signups != 0 {
		t.Fatalf("expected zeroed counters, got %d/%d", dsa.ActiveLinks, dsa.Signups)
	}
}

func TestCreateDSAValidation(t *testing.T) {
	ctx := context.Background()
	dsas, _, _ := newTestEngine(t)

	if _, err := dsas.Create(ctx, "", "a@b.com", "", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty name: expected ErrValidation, got %v", err)
	}
	if _, err := dsas.Create(ctx, "Alice", "not-an-email", "", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad email: expected ErrValidation, got %v", err)
	}
	if _, err := dsas.Create(ctx, "Alice", "a@b.com", "Retired", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad status: expected ErrValidation, got %v", err)
	}
}

func TestUpdateDSA(t *testing.T) {
	ctx := context.Background()
	dsas, links, _ := newTestEngine(t)
	alice := mustCreateDSA(t, dsas, "Alice")
	if _, err := links.Create(ctx, alice.ID, "prod1", "ALICE20"); err != nil {
		t.Fatalf("create link failed: %v", err)
	}

	suspended := domain.StatusSuspended
	newName := "Alice J."
	updated, err := dsas.Update(ctx, alice.ID, DSAPatch{Name: &newName, Status: &suspended})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "Alice J." || updated.Status != domain.StatusSuspended {
		t.Fatalf("patch not applied: %+v", updated)
	}
	// Counters survive registry updates untouched
	if updated.ActiveLinks != 1 {
		t.Fatalf("expected activeLinks preserved, got %d", updated.ActiveLinks)
	}

	if _, err := dsas.Update(ctx, "missing", DSAPatch{Name: &newName}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDSANameSnapshotSurvivesRename(t *testing.T) {
	ctx := context.Background()
	dsas, links, _ := newTestEngine(t)
	alice := mustCreateDSA(t, dsas, "Alice")
	link, err := links.Create(ctx, alice.ID, "prod1", "ALICE20")
	if err != nil {
		t.Fatalf("create link failed: %v", err)
	}

	newName := "Alicia"
	if _, err := dsas.Update(ctx, alice.ID, DSAPatch{Name: &newName}); err != nil {
		t.Fatalf("rename failed: %v", err)
	}

	got, err := links.Get(ctx, link.ID)
	if err != nil {
		t.Fatalf("get link failed: %v", err)
	}
	if got.DSAName != "Alice" {
		t.Fatalf("link snapshot should keep the name at creation, got %q", got.DSAName)
	}
}

func TestDeleteDSARefusedWhileLinksExist(t *testing.T) {
	ctx := context.Background()
	dsas, links, _ := newTestEngine(t)
	alice := mustCreateDSA(t, dsas, "Alice")
	link, err := links.Create(ctx, alice.ID, "prod1", "ALICE20")
	if err != nil {
		t.Fatalf("create link failed: %v", err)
	}

	if err := dsas.Delete(ctx, alice.ID); !errors.Is(err, domain.ErrLinksExist) {
		t.Fatalf("expected ErrLinksExist, got %v", err)
	}

	if err := links.Delete(ctx, link.ID); err != nil {
		t.Fatalf("delete link failed: %v", err)
	}
	if err := dsas.Delete(ctx, alice.ID); err != nil {
		t.Fatalf("delete dsa failed: %v", err)
	}

	// Idempotent second delete
	if err := dsas.Delete(ctx, alice.ID); err != nil {
		t.Fatalf("second delete should succeed, got %v", err)
	}
}
