package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/referraldesk/internal/domain"
	"github.com/yourorg/referraldesk/internal/observability/metrics"
	"github.com/yourorg/referraldesk/internal/reliability/circuitbreaker"
)

// DraftRequest carries the facts the drafting backend turns into shareable copy
type DraftRequest struct {
	ProductName  string `json:"productName"`
	DSAName      string `json:"dsaName"`
	Incentive    string `json:"incentive"`
	ReferralLink string `json:"referralLink"`
}

// DraftResponse is the backend's reply shape
type DraftResponse struct {
	Message string `json:"message"`
}

// ErrDraftingFailed is the only failure callers of Draft see for backend
// problems; the underlying cause goes to the log, not the client
var ErrDraftingFailed = errors.New("message generation failed")

// MessageService calls an external drafting backend to produce referral
// messages. The backend is treated as unreliable: requests run under a circuit
// breaker and every backend failure collapses into ErrDraftingFailed.
type MessageService struct {
	endpoint string
	client   *http.Client
	breaker  *circuitbreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewMessageService creates the drafting boundary. An empty endpoint leaves the
// service constructed but permanently failing, which keeps the HTTP surface
// uniform in environments without a drafting backend.
func NewMessageService(endpoint string, logger *slog.Logger) *MessageService {
	breaker := circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("drafting circuit state changed",
			slog.Int("from", int(from)),
			slog.Int("to", int(to)),
		)
	})
	return &MessageService{
		endpoint: endpoint,
		client: &http.Client{
			Transport: otelhttp.NewTransport(nil),
			Timeout:   10 * time.Second,
		},
		breaker: breaker,
		logger:  logger,
	}
}

// Draft validates the request and asks the backend for a message. Validation
// errors surface as ErrValidation before any network I/O; everything after
// that boundary is ErrDraftingFailed.
func (s *MessageService) Draft(ctx context.Context, req DraftRequest) (string, error) {
	if err := validateDraft(req); err != nil {
		return "", err
	}

	var message string
	err := s.breaker.Execute(func() error {
		m, err := s.post(ctx, req)
		if err != nil {
			return err
		}
		message = m
		return nil
	})
	if err != nil {
		metrics.ObserveMessageDraft("failure")
		s.logger.Error("message draft failed",
			slog.String("product", req.ProductName),
			slog.String("error", err.Error()),
		)
		return "", ErrDraftingFailed
	}

	metrics.ObserveMessageDraft("success")
	return message, nil
}

func (s *MessageService) post(ctx context.Context, req DraftRequest) (string, error) {
	if s.endpoint == "" {
		return "", errors.New("no drafting endpoint configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode draft request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build draft request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("drafting backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("drafting backend returned status %d", resp.StatusCode)
	}

	var out DraftResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode draft response: %w", err)
	}
	if strings.TrimSpace(out.Message) == "" {
		return "", errors.New("drafting backend returned an empty message")
	}
	return out.Message, nil
}

func validateDraft(req DraftRequest) error {
	if strings.TrimSpace(req.ProductName) == "" {
		return fmt.Errorf("%w: productName is required", domain.ErrValidation)
	}
	if strings.TrimSpace(req.DSAName) == "" {
		return fmt.Errorf("%w: dsaName is required", domain.ErrValidation)
	}
	if strings.TrimSpace(req.Incentive) == "" {
		return fmt.Errorf("%w: incentive is required", domain.ErrValidation)
	}
	u, err := url.Parse(req.ReferralLink)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: referralLink must be an absolute URL", domain.ErrValidation)
	}
	return nil
}
