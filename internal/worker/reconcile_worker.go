package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/yourorg/referraldesk/internal/domain"
	"github.com/yourorg/referraldesk/internal/observability/metrics"
	"github.com/yourorg/referraldesk/internal/store"
)

// ReconcileWorker periodically recomputes each DSA's denormalized counters
// from the actual link set and repairs any drift. Under normal operation the
// link engine keeps the counters exact; this worker exists for the abnormal
// cases, like documents edited out of band or a bug that slipped a delta.
type ReconcileWorker struct {
	store    store.Store
	logger   *slog.Logger
	interval time.Duration
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(st store.Store, logger *slog.Logger, interval time.Duration) *ReconcileWorker {
	return &ReconcileWorker{store: st, logger: logger, interval: interval}
}

// Start begins the reconcile loop
func (w *ReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("reconcile worker started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker stopped")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("reconcile pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce performs a single reconcile pass over every DSA
func (w *ReconcileWorker) RunOnce(ctx context.Context) error {
	linkDocs, err := w.store.List(ctx, domain.CollectionLinks)
	if err != nil {
		return err
	}

	type tally struct {
		links   int
		signups int
	}
	byDSA := make(map[string]tally)
	for _, raw := range linkDocs {
		var link domain.ReferralLink
		if err := json.Unmarshal(raw, &link); err != nil {
			w.logger.Error("skipping undecodable link doc", slog.String("error", err.Error()))
			continue
		}
		t := byDSA[link.DSAID]
		t.links++
		t.signups += link.Signups
		byDSA[link.DSAID] = t
	}
	metrics.SetActiveLinks(len(linkDocs))

	dsaDocs, err := w.store.List(ctx, domain.CollectionDSAs)
	if err != nil {
		return err
	}

	repaired := 0
	for _, raw := range dsaDocs {
		var dsa domain.DSA
		if err := json.Unmarshal(raw, &dsa); err != nil {
			w.logger.Error("skipping undecodable dsa doc", slog.String("error", err.Error()))
			continue
		}
		want := byDSA[dsa.ID]
		if dsa.ActiveLinks == want.links && dsa.Signups == want.signups {
			continue
		}
		if err := w.repair(ctx, dsa.ID, want.links, want.signups); err != nil {
			w.logger.Error("failed to repair dsa counters",
				slog.String("dsa_id", dsa.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		repaired++
	}

	if repaired > 0 {
		w.logger.Warn("reconcile repaired drifted counters", slog.Int("dsas", repaired))
	}
	return nil
}

// repair rewrites one DSA's counters in a transaction so a concurrent engine
// write aborts the repair instead of being overwritten with stale numbers
func (w *ReconcileWorker) repair(ctx context.Context, dsaID string, links, signups int) error {
	return w.store.Transact(ctx, func(tx store.Tx) error {
		var dsa domain.DSA
		if err := tx.Get(domain.CollectionDSAs, dsaID, &dsa); err != nil {
			return err
		}
		if dsa.ActiveLinks != links {
			w.logger.Info("repairing activeLinks",
				slog.String("dsa_id", dsaID),
				slog.Int("stored", dsa.ActiveLinks),
				slog.Int("actual", links),
			)
			dsa.ActiveLinks = links
			metrics.ObserveCounterRepair("active_links")
		}
		if dsa.Signups != signups {
			w.logger.Info("repairing signups",
				slog.String("dsa_id", dsaID),
				slog.Int("stored", dsa.Signups),
				slog.Int("actual", signups),
			)
			dsa.Signups = signups
			metrics.ObserveCounterRepair("signups")
		}
		return tx.Put(domain.CollectionDSAs, dsaID, dsa)
	})
}
