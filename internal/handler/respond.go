package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/referraldesk/internal/domain"
	"github.com/yourorg/referraldesk/internal/reliability/retry"
	"github.com/yourorg/referraldesk/internal/service"
)

// writeJSON encodes a response body with the given status
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto HTTP statuses. Store-level failure detail
// never reaches the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var status int
	var msg string

	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrDuplicateCode):
		status, msg = http.StatusConflict, "referral code already in use"
	case errors.Is(err, domain.ErrLinksExist):
		status, msg = http.StatusConflict, "referral links still reference this dsa"
	case errors.Is(err, domain.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrDraftingFailed):
		status, msg = http.StatusBadGateway, service.ErrDraftingFailed.Error()
	case errors.Is(err, domain.ErrTransactionAborted), errors.Is(err, domain.ErrStoreUnavailable):
		status, msg = http.StatusServiceUnavailable, "store temporarily unavailable"
	default:
		status, msg = http.StatusInternalServerError, "internal error"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.Int("status", status), slog.String("error", err.Error()))
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// abortRetryConfig retries only optimistic-transaction conflicts; every other
// error is final
func abortRetryConfig() *retry.Config {
	return &retry.Config{
		MaxAttempts:       3,
		InitialBackoff:    25 * time.Millisecond,
		MaxBackoff:        250 * time.Millisecond,
		BackoffMultiplier: 2.0,
		RetryIf: func(err error) bool {
			return errors.Is(err, domain.ErrTransactionAborted)
		},
	}
}

// retryAborted reruns an engine call when it lost an optimistic-transaction
// race. Conflicts are transient by construction, so a couple of retries
// usually absorb them without surfacing a 503.
func retryAborted[T any](ctx context.Context, logger *slog.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	return retry.Do(ctx, abortRetryConfig(), logger, op, fn)
}
