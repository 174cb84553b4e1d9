package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/referraldesk/internal/domain"
	"github.com/yourorg/referraldesk/internal/security/middleware"
	"github.com/yourorg/referraldesk/internal/security/ratelimit"
	"github.com/yourorg/referraldesk/internal/service"
)

// ReferHandler serves the public referral endpoints. These are the only routes
// anonymous visitors hit, so they carry their own stricter rate limit on top
// of the global one.
type ReferHandler struct {
	links       *service.LinkService
	limiter     *ratelimit.Limiter
	logger      *slog.Logger
	redirectURL string
	maxPerMin   int
}

// NewReferHandler creates a new public referral handler
func NewReferHandler(links *service.LinkService, limiter *ratelimit.Limiter, logger *slog.Logger, redirectURL string, maxPerMin int) *ReferHandler {
	return &ReferHandler{
		links:       links,
		limiter:     limiter,
		logger:      logger,
		redirectURL: redirectURL,
		maxPerMin:   maxPerMin,
	}
}

// Click handles GET /refer/{code}: records the click and bounces the visitor
// to the signup landing page. An unknown code still redirects so a dead link
// degrades to a plain visit instead of an error page.
func (h *ReferHandler) Click(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}
	code := r.PathValue("code")

	_, err := retryAborted(r.Context(), h.logger, "record_click", func(ctx context.Context) (*domain.ReferralLink, error) {
		return h.links.RecordClick(ctx, code)
	})
	if err != nil {
		h.logger.Warn("click not recorded",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}

	http.Redirect(w, r, h.redirectURL, http.StatusFound)
}

// Signup handles POST /api/refer/{code}/signup
func (h *ReferHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}
	code := r.PathValue("code")

	link, err := retryAborted(r.Context(), h.logger, "record_signup", func(ctx context.Context) (*domain.ReferralLink, error) {
		return h.links.RecordSignup(ctx, code)
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (h *ReferHandler) allow(w http.ResponseWriter, r *http.Request) bool {
	key := middleware.ClientIP(r)
	if h.limiter.AllowStrict(key, h.maxPerMin, time.Minute) {
		return true
	}
	h.logger.Warn("public referral rate limit exceeded", slog.String("client_ip", key))
	writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
	return false
}
