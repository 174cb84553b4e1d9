package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yourorg/referraldesk/internal/domain"
	"github.com/yourorg/referraldesk/internal/store"
)

// DSAService is the registry for Direct Selling Agents. It owns every DSA
// field except the two denormalized counters: activeLinks and signups are
// written only by the link engine and the reconcile worker, and DSAPatch
// deliberately cannot express them.
type DSAService struct {
	store  store.Store
	logger *slog.Logger
}

// DSAPatch is a partial update of the registry-owned fields
type DSAPatch struct {
	Name   *string           `json:"name,omitempty"`
	Email  *string           `json:"email,omitempty"`
	Status *domain.DSAStatus `json:"status,omitempty"`
	Avatar *string           `json:"avatar,omitempty"`
}

// NewDSAService creates a new DSA registry
func NewDSAService(st store.Store, logger *slog.Logger) *DSAService {
	return &DSAService{store: st, logger: logger}
}

// List returns all DSAs in creation order
func (s *DSAService) List(ctx context.Context) ([]*domain.DSA, error) {
	docs, err := s.store.List(ctx, domain.CollectionDSAs)
	if err != nil {
		return nil, fmt.Errorf("failed to list dsas: %w", err)
	}
	return decodeDSAs(docs)
}

// Get returns one DSA by id
func (s *DSAService) Get(ctx context.Context, id string) (*domain.DSA, error) {
	var dsa domain.DSA
	if err := s.store.Get(ctx, domain.CollectionDSAs, id, &dsa); err != nil {
		return nil, fmt.Errorf("failed to get dsa: %w", err)
	}
	return &dsa, nil
}

// Create registers a new agent with zeroed counters
func (s *DSAService) Create(ctx context.Context, name, email string, status domain.DSAStatus, avatar string) (*domain.DSA, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", domain.ErrValidation)
	}
	if status == "" {
		status = domain.StatusActive
	}
	if status != domain.StatusActive && status != domain.StatusSuspended {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}

	dsa := domain.DSA{
		Name:        name,
		Email:       email,
		Status:      status,
		Avatar:      avatar,
		ActiveLinks: 0,
		Signups:     0,
	}

	id, err := s.store.Insert(ctx, domain.CollectionDSAs, dsa)
	if err != nil {
		return nil, fmt.Errorf("failed to create dsa: %w", err)
	}
	dsa.ID = id

	s.logger.Info("dsa created", slog.String("dsa_id", id), slog.String("name", name))
	return &dsa, nil
}

// Update applies a partial update to registry-owned fields
func (s *DSAService) Update(ctx context.Context, id string, patch DSAPatch) (*domain.DSA, error) {
	if patch.Status != nil && *patch.Status != domain.StatusActive && *patch.Status != domain.StatusSuspended {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, *patch.Status)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrValidation)
	}
	if patch.Email != nil && !strings.Contains(*patch.Email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", domain.ErrValidation)
	}

	var updated domain.DSA
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		var dsa domain.DSA
		if err := tx.Get(domain.CollectionDSAs, id, &dsa); err != nil {
			return err
		}
		if patch.Name != nil {
			dsa.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Email != nil {
			dsa.Email = strings.TrimSpace(*patch.Email)
		}
		if patch.Status != nil {
			dsa.Status = *patch.Status
		}
		if patch.Avatar != nil {
			dsa.Avatar = *patch.Avatar
		}
		if err := tx.Put(domain.CollectionDSAs, id, dsa); err != nil {
			return err
		}
		updated = dsa
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update dsa: %w", err)
	}
	return &updated, nil
}

// Delete removes a DSA. Deletion is refused while referral links still
// reference the agent; deleting an absent DSA is an idempotent success.
func (s *DSAService) Delete(ctx context.Context, id string) error {
	links, err := s.store.Query(ctx, domain.CollectionLinks, "dsaId", id)
	if err != nil {
		return fmt.Errorf("failed to check links before dsa delete: %w", err)
	}
	if len(links) > 0 {
		return fmt.Errorf("%w: %d link(s) still reference dsa %s", domain.ErrLinksExist, len(links), id)
	}

	err = s.store.Transact(ctx, func(tx store.Tx) error {
		var dsa domain.DSA
		if err := tx.Get(domain.CollectionDSAs, id, &dsa); err != nil {
			return err
		}
		tx.Delete(domain.CollectionDSAs, id)
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete dsa: %w", err)
	}

	s.logger.Info("dsa deleted", slog.String("dsa_id", id))
	return nil
}

func decodeDSAs(docs []json.RawMessage) ([]*domain.DSA, error) {
	dsas := make([]*domain.DSA, 0, len(docs))
	for _, raw := range docs {
		var dsa domain.DSA
		if err := json.Unmarshal(raw, &dsa); err != nil {
			return nil, fmt.Errorf("failed to decode dsa: %w", err)
		}
		dsas = append(dsas, &dsa)
	}
	return dsas, nil
}
