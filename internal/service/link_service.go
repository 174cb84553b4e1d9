package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/referraldesk/internal/domain"
	"github.com/yourorg/referraldesk/internal/journal"
	"github.com/yourorg/referraldesk/internal/observability/metrics"
	"github.com/yourorg/referraldesk/internal/store"
)

// codePattern constrains referral codes after uppercase normalization
var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{2,32}$`)

// ProductResolver looks up promotable products; satisfied by catalog.Catalog
type ProductResolver interface {
	Lookup(id string) (domain.Product, bool)
}

// EventRecorder appends accepted click/signup events; satisfied by
// journal.Journal. May be absent (nil LinkService.journal) when no Postgres
// is configured.
type EventRecorder interface {
	Record(ctx context.Context, ev journal.Event) error
}

// LinkService is the referral link engine. It owns the full link lifecycle and
// is the only writer of the DSA activeLinks/signups counters, which it keeps
// consistent with the link set through the store's optimistic transactions:
// every counter delta commits in the same transaction as the link write it
// derives from.
type LinkService struct {
	store    store.Store
	products ProductResolver
	journal  EventRecorder
	logger   *slog.Logger
	baseURL  string
}

// LinkPatch is a partial update of a link's counters. Identity fields, name
// snapshots and the derived conversion rate are not updatable.
type LinkPatch struct {
	Clicks  *int `json:"clicks,omitempty"`
	Signups *int `json:"signups,omitempty"`
}

// NewLinkService creates the engine. recorder may be nil.
func NewLinkService(st store.Store, products ProductResolver, recorder EventRecorder, logger *slog.Logger, baseURL string) *LinkService {
	return &LinkService{
		store:    st,
		products: products,
		journal:  recorder,
		logger:   logger,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// List returns all referral links in creation order
func (s *LinkService) List(ctx context.Context) ([]*domain.ReferralLink, error) {
	docs, err := s.store.List(ctx, domain.CollectionLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return decodeLinks(docs)
}

// Get returns one link by id
func (s *LinkService) Get(ctx context.Context, id string) (*domain.ReferralLink, error) {
	var link domain.ReferralLink
	if err := s.store.Get(ctx, domain.CollectionLinks, id, &link); err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return &link, nil
}

// ListByDSA returns the links owned by one DSA
func (s *LinkService) ListByDSA(ctx context.Context, dsaID string) ([]*domain.ReferralLink, error) {
	docs, err := s.store.Query(ctx, domain.CollectionLinks, "dsaId", dsaID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links by dsa: %w", err)
	}
	return decodeLinks(docs)
}

// Create makes a new referral link for a DSA/product pair. The uniqueness
// check, the link insert and the activeLinks increment all commit in one
// transaction: the normalized code is itself a document id in the
// referralCodes collection, so two concurrent creates of the same code
// conflict on the same watched key and one of them aborts.
func (s *LinkService) Create(ctx context.Context, dsaID, productID, rawCode string) (*domain.ReferralLink, error) {
	start := time.Now()

	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if !codePattern.MatchString(code) {
		return nil, fmt.Errorf("%w: code must be 2-32 chars of A-Z, 0-9, '-' or '_'", domain.ErrValidation)
	}

	product, ok := s.products.Lookup(productID)
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}

	var created domain.ReferralLink
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		var ref domain.CodeRef
		err := tx.Get(domain.CollectionCodes, code, &ref)
		if err == nil {
			return fmt.Errorf("code %s: %w", code, domain.ErrDuplicateCode)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		var dsa domain.DSA
		if err := tx.Get(domain.CollectionDSAs, dsaID, &dsa); err != nil {
			return err
		}

		link := domain.ReferralLink{
			ID:             uuid.NewString(),
			Code:           code,
			DSAID:          dsaID,
			DSAName:        dsa.Name,
			ProductID:      product.ID,
			ProductName:    product.Name,
			Clicks:         0,
			Signups:        0,
			ConversionRate: domain.ConversionRate(0, 0),
			CreationDate:   time.Now().UTC(),
			Link:           s.shareURL(code),
		}
		dsa.ActiveLinks++

		if err := tx.Put(domain.CollectionLinks, link.ID, link); err != nil {
			return err
		}
		if err := tx.Put(domain.CollectionCodes, code, domain.CodeRef{LinkID: link.ID, Code: code}); err != nil {
			return err
		}
		if err := tx.Put(domain.CollectionDSAs, dsaID, dsa); err != nil {
			return err
		}
		created = link
		return nil
	})
	if err != nil {
		s.observe("create", err, start)
		return nil, err
	}

	s.observe("create", nil, start)
	s.logger.Info("referral link created",
		slog.String("link_id", created.ID),
		slog.String("code", created.Code),
		slog.String("dsa_id", dsaID),
		slog.String("product_id", productID),
	)
	return &created, nil
}

// Update merges a partial counter update into a link and recomputes the
// conversion rate. If signups changed, the owning DSA's signups counter is
// adjusted by the exact delta inside the same transaction; a missing DSA is
// logged and skipped rather than failing the update.
func (s *LinkService) Update(ctx context.Context, id string, patch LinkPatch) (*domain.ReferralLink, error) {
	start := time.Now()

	if patch.Clicks != nil && *patch.Clicks < 0 {
		return nil, fmt.Errorf("%w: clicks cannot be negative", domain.ErrValidation)
	}
	if patch.Signups != nil && *patch.Signups < 0 {
		return nil, fmt.Errorf("%w: signups cannot be negative", domain.ErrValidation)
	}

	var updated domain.ReferralLink
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		var link domain.ReferralLink
		if err := tx.Get(domain.CollectionLinks, id, &link); err != nil {
			return err
		}

		oldSignups := link.Signups
		if patch.Clicks != nil {
			link.Clicks = *patch.Clicks
		}
		if patch.Signups != nil {
			link.Signups = *patch.Signups
		}
		if patch.Clicks != nil || patch.Signups != nil {
			link.ConversionRate = domain.ConversionRate(link.Clicks, link.Signups)
		}

		if err := tx.Put(domain.CollectionLinks, id, link); err != nil {
			return err
		}

		if link.Signups != oldSignups {
			if err := s.applySignupDelta(tx, link.DSAID, link.Signups-oldSignups); err != nil {
				return err
			}
		}
		updated = link
		return nil
	})
	s.observe("update", err, start)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// RecordClick resolves a code and increments its link's click counter in one
// transaction
func (s *LinkService) RecordClick(ctx context.Context, code string) (*domain.ReferralLink, error) {
	return s.record(ctx, code, journal.KindClick)
}

// RecordSignup resolves a code and increments its link's signup counter and
// the owning DSA's signup counter in one transaction
func (s *LinkService) RecordSignup(ctx context.Context, code string) (*domain.ReferralLink, error) {
	return s.record(ctx, code, journal.KindSignup)
}

func (s *LinkService) record(ctx context.Context, rawCode, kind string) (*domain.ReferralLink, error) {
	start := time.Now()
	code := strings.ToUpper(strings.TrimSpace(rawCode))

	var updated domain.ReferralLink
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		var ref domain.CodeRef
		if err := tx.Get(domain.CollectionCodes, code, &ref); err != nil {
			return err
		}
		var link domain.ReferralLink
		if err := tx.Get(domain.CollectionLinks, ref.LinkID, &link); err != nil {
			return err
		}

		switch kind {
		case journal.KindClick:
			link.Clicks++
		case journal.KindSignup:
			link.Signups++
		}
		link.ConversionRate = domain.ConversionRate(link.Clicks, link.Signups)

		if err := tx.Put(domain.CollectionLinks, link.ID, link); err != nil {
			return err
		}
		if kind == journal.KindSignup {
			if err := s.applySignupDelta(tx, link.DSAID, 1); err != nil {
				return err
			}
		}
		updated = link
		return nil
	})
	s.observe("record_"+kind, err, start)
	if err != nil {
		return nil, err
	}

	metrics.ObserveReferralEvent(kind)
	if s.journal != nil {
		ev := journal.Event{LinkID: updated.ID, Code: code, Kind: kind}
		if err := s.journal.Record(ctx, ev); err != nil {
			// The counter already committed; the journal is best-effort
			s.logger.Warn("failed to journal referral event",
				slog.String("link_id", updated.ID),
				slog.String("kind", kind),
				slog.String("error", err.Error()),
			)
		}
	}
	return &updated, nil
}

// Delete removes a link and settles the owning DSA's counters in the same
// transaction. Deleting an absent link is an idempotent success.
func (s *LinkService) Delete(ctx context.Context, id string) error {
	start := time.Now()

	deleted := false
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		var link domain.ReferralLink
		if err := tx.Get(domain.CollectionLinks, id, &link); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}

		tx.Delete(domain.CollectionLinks, id)
		tx.Delete(domain.CollectionCodes, link.Code)

		var dsa domain.DSA
		err := tx.Get(domain.CollectionDSAs, link.DSAID, &dsa)
		if errors.Is(err, domain.ErrNotFound) {
			deleted = true
			return nil
		}
		if err != nil {
			return err
		}
		dsa.ActiveLinks = max(0, dsa.ActiveLinks-1)
		dsa.Signups = max(0, dsa.Signups-link.Signups)
		if err := tx.Put(domain.CollectionDSAs, link.DSAID, dsa); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	s.observe("delete", err, start)
	if err != nil {
		return err
	}
	if deleted {
		s.logger.Info("referral link deleted", slog.String("link_id", id))
	}
	return nil
}

// applySignupDelta adjusts a DSA's signup counter; absence is tolerated so a
// link update survives its owner having been removed out from under it
func (s *LinkService) applySignupDelta(tx store.Tx, dsaID string, delta int) error {
	var dsa domain.DSA
	err := tx.Get(domain.CollectionDSAs, dsaID, &dsa)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("owning dsa missing during signup propagation", slog.String("dsa_id", dsaID))
		return nil
	}
	if err != nil {
		return err
	}
	dsa.Signups = max(0, dsa.Signups+delta)
	return tx.Put(domain.CollectionDSAs, dsaID, dsa)
}

func (s *LinkService) shareURL(code string) string {
	return s.baseURL + "/refer/" + code
}

func (s *LinkService) observe(op string, err error, start time.Time) {
	result := "success"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrTransactionAborted):
		result = "conflict"
		metrics.ObserveConflict(op)
	default:
		result = "error"
	}
	metrics.ObserveEngineOp(op, result, time.Since(start))
}

func decodeLinks(docs []json.RawMessage) ([]*domain.ReferralLink, error) {
	links := make([]*domain.ReferralLink, 0, len(docs))
	for _, raw := range docs {
		var link domain.ReferralLink
		if err := json.Unmarshal(raw, &link); err != nil {
			return nil, fmt.Errorf("failed to decode link: %w", err)
		}
		links = append(links, &link)
	}
	return links, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
