package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/yourorg/referraldesk/internal/domain"
	"github.com/yourorg/referraldesk/internal/store"
	"github.com/yourorg/referraldesk/pkg/cache"
)

// Summary is the aggregated program snapshot shown at the top of the dashboard
type Summary struct {
	TotalDSAs      int    `json:"totalDsas"`
	TotalLinks     int    `json:"totalLinks"`
	TotalClicks    int    `json:"totalClicks"`
	TotalSignups   int    `json:"totalSignups"`
	ConversionRate string `json:"conversionRate"`
}

// DashboardService aggregates registry and link data into read models. Results
// are cached briefly so dashboard polling and the websocket feed do not hammer
// the store.
type DashboardService struct {
	store        store.Store
	logger       *slog.Logger
	summaryCache *cache.Cache[Summary]
	topCache     *cache.Cache[[]*domain.DSA]
	ttl          time.Duration
}

// NewDashboardService creates the aggregator. ttl <= 0 disables caching.
func NewDashboardService(st store.Store, logger *slog.Logger, ttl time.Duration) *DashboardService {
	return &DashboardService{
		store:        st,
		logger:       logger,
		summaryCache: cache.New[Summary](),
		topCache:     cache.New[[]*domain.DSA](),
		ttl:          ttl,
	}
}

// Summary computes the program-wide totals. Clicks are summed from the links;
// signups come from the DSA counters the link engine maintains, so the two
// halves of the summary agree with the registry and link list views.
func (s *DashboardService) Summary(ctx context.Context) (Summary, error) {
	if s.ttl > 0 {
		if cached, ok := s.summaryCache.Get("summary"); ok {
			return cached, nil
		}
	}

	dsaDocs, err := s.store.List(ctx, domain.CollectionDSAs)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to aggregate dsas: %w", err)
	}
	dsas, err := decodeDSAs(dsaDocs)
	if err != nil {
		return Summary{}, err
	}

	linkDocs, err := s.store.List(ctx, domain.CollectionLinks)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to aggregate links: %w", err)
	}
	links, err := decodeLinks(linkDocs)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{TotalDSAs: len(dsas), TotalLinks: len(links)}
	for _, link := range links {
		sum.TotalClicks += link.Clicks
	}
	for _, dsa := range dsas {
		sum.TotalSignups += dsa.Signups
	}
	sum.ConversionRate = overallRate(sum.TotalClicks, sum.TotalSignups)

	if s.ttl > 0 {
		s.summaryCache.Set("summary", sum, s.ttl)
	}
	return sum, nil
}

// TopDSAs returns the n best-performing active agents by signups, ties kept in
// registry creation order
func (s *DashboardService) TopDSAs(ctx context.Context, n int) ([]*domain.DSA, error) {
	if n <= 0 {
		n = 5
	}
	key := "top:" + strconv.Itoa(n)
	if s.ttl > 0 {
		if cached, ok := s.topCache.Get(key); ok {
			return cached, nil
		}
	}

	docs, err := s.store.List(ctx, domain.CollectionDSAs)
	if err != nil {
		return nil, fmt.Errorf("failed to rank dsas: %w", err)
	}
	dsas, err := decodeDSAs(docs)
	if err != nil {
		return nil, err
	}

	active := make([]*domain.DSA, 0, len(dsas))
	for _, dsa := range dsas {
		if dsa.Status == domain.StatusActive {
			active = append(active, dsa)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Signups > active[j].Signups
	})
	if len(active) > n {
		active = active[:n]
	}

	if s.ttl > 0 {
		s.topCache.Set(key, active, s.ttl)
	}
	return active, nil
}

// Invalidate drops cached aggregates after a mutation
func (s *DashboardService) Invalidate() {
	s.summaryCache.Clear()
	s.topCache.Clear()
}

// overallRate formats the program-wide conversion rate. Unlike the per-link
// rate this renders as a bare "0%" when there are no clicks yet.
func overallRate(clicks, signups int) string {
	if clicks <= 0 {
		return "0%"
	}
	rate := float64(signups) / float64(clicks) * 100
	return strconv.FormatFloat(rate, 'f', 2, 64) + "%"
}
