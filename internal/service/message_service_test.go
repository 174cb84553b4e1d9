package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yourorg/referraldesk/internal/domain"
)

func validDraft() DraftRequest {
	return DraftRequest{
		ProductName:  "Super Saas Suite",
		DSAName:      "Alice",
		Incentive:    "20% off the first year",
		ReferralLink: "https://example.com/refer/ALICE20",
	}
}

func TestDraftValidation(t *testing.T) {
	s := NewMessageService("http://unused.invalid", testLogger())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*DraftRequest)
	}{
		{"missing product", func(r *DraftRequest) { r.ProductName = "" }},
		{"missing dsa", func(r *DraftRequest) { r.DSAName = " " }},
		{"missing incentive", func(r *DraftRequest) { r.Incentive = "" }},
		{"relative link", func(r *DraftRequest) { r.ReferralLink = "/refer/ALICE20" }},
		{"no scheme", func(r *DraftRequest) { r.ReferralLink = "example.com/refer/X" }},
	}
	for _, c := range cases {
		req := validDraft()
		c.mutate(&req)
		if _, err := s.Draft(ctx, req); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", c.name, err)
		}
	}
}

func TestDraftSuccess(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req DraftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("backend received bad payload: %v", err)
		}
		if req.ProductName != "Super Saas Suite" {
			t.Errorf("unexpected payload: %+v", req)
		}
		json.NewEncoder(w).Encode(DraftResponse{Message: "Hey! Alice thinks you'd love Super Saas Suite."})
	}))
	defer backend.Close()

	s := NewMessageService(backend.URL, testLogger())
	msg, err := s.Draft(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("draft failed: %v", err)
	}
	if msg == "" {
		t.Fatalf("expected a message")
	}
}

func TestDraftBackendFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer backend.Close()

	s := NewMessageService(backend.URL, testLogger())
	_, err := s.Draft(context.Background(), validDraft())
	if !errors.Is(err, ErrDraftingFailed) {
		t.Fatalf("expected ErrDraftingFailed, got %v", err)
	}
}

func TestDraftCircuitOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer backend.Close()

	s := NewMessageService(backend.URL, testLogger())
	for i := 0; i < 10; i++ {
		if _, err := s.Draft(context.Background(), validDraft()); !errors.Is(err, ErrDraftingFailed) {
			t.Fatalf("attempt %d: expected ErrDraftingFailed, got %v", i, err)
		}
	}
	// The breaker trips at 5 failures, so later attempts never reach the backend
	if calls >= 10 {
		t.Fatalf("expected circuit to stop calls to the backend, saw %d", calls)
	}
}

func TestDraftNoEndpointConfigured(t *testing.T) {
	s := NewMessageService("", testLogger())
	_, err := s.Draft(context.Background(), validDraft())
	if !errors.Is(err, ErrDraftingFailed) {
		t.Fatalf("expected ErrDraftingFailed, got %v", err)
	}
}
