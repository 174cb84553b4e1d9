package worker

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/yourorg/referraldesk/internal/domain"
	"github.com/yourorg/referraldesk/internal/service"
)

// DemoTraffic drives synthetic clicks and the occasional signup against
// existing links so local and staging environments have live-looking numbers.
// It goes through the same engine path as real traffic.
type DemoTraffic struct {
	links             *service.LinkService
	logger            *slog.Logger
	interval          time.Duration
	signupProbability float64
	enabled           bool
}

// NewDemoTraffic creates a demo traffic generator, disabled by default
func NewDemoTraffic(links *service.LinkService, logger *slog.Logger, interval time.Duration, signupProbability float64) *DemoTraffic {
	if signupProbability < 0.0 {
		signupProbability = 0.0
	}
	if signupProbability > 1.0 {
		signupProbability = 1.0
	}
	return &DemoTraffic{
		links:             links,
		logger:            logger,
		interval:          interval,
		signupProbability: signupProbability,
		enabled:           false,
	}
}

// SetEnabled toggles the generator on/off
func (d *DemoTraffic) SetEnabled(enabled bool) {
	d.enabled = enabled
	status := "disabled"
	if enabled {
		status = "enabled"
	}
	d.logger.Info("demo traffic status changed", slog.String("status", status))
}

// Start begins the demo traffic loop
func (d *DemoTraffic) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("demo traffic started",
		slog.Duration("interval", d.interval),
		slog.Float64("signup_probability", d.signupProbability),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("demo traffic stopped")
			return
		case <-ticker.C:
			if d.enabled {
				d.tick(ctx)
			}
		}
	}
}

// tick records one click against a random link, sometimes followed by a signup
func (d *DemoTraffic) tick(ctx context.Context) {
	links, err := d.links.List(ctx)
	if err != nil {
		d.logger.Error("failed to list links for demo traffic", slog.String("error", err.Error()))
		return
	}
	if len(links) == 0 {
		return
	}

	target := links[rand.Intn(len(links))]
	if _, err := d.links.RecordClick(ctx, target.Code); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			d.logger.Error("demo click failed",
				slog.String("code", target.Code),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	if rand.Float64() < d.signupProbability {
		if _, err := d.links.RecordSignup(ctx, target.Code); err != nil && !errors.Is(err, domain.ErrNotFound) {
			d.logger.Error("demo signup failed",
				slog.String("code", target.Code),
				slog.String("error", err.Error()),
			)
		}
	}
}
