package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourorg/referraldesk/internal/catalog"
	"github.com/yourorg/referraldesk/internal/featureflags"
	"github.com/yourorg/referraldesk/internal/handler"
	"github.com/yourorg/referraldesk/internal/infrastructure/logger"
	"github.com/yourorg/referraldesk/internal/infrastructure/redis"
	"github.com/yourorg/referraldesk/internal/journal"
	"github.com/yourorg/referraldesk/internal/observability/metrics"
	"github.com/yourorg/referraldesk/internal/observability/tracing"
	"github.com/yourorg/referraldesk/internal/security/audit"
	"github.com/yourorg/referraldesk/internal/security/middleware"
	"github.com/yourorg/referraldesk/internal/security/ratelimit"
	"github.com/yourorg/referraldesk/internal/service"
	"github.com/yourorg/referraldesk/internal/store"
	"github.com/yourorg/referraldesk/internal/worker"
	"github.com/yourorg/referraldesk/pkg/config"
	"github.com/yourorg/referraldesk/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting ReferralDesk server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing (no-op unless an OTLP endpoint is configured)
	shutdownTracing, err := tracing.Init(ctx, log, "referraldesk", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Initialize the document store: Redis when configured, in-memory otherwise
	var docStore store.Store
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		docStore = store.NewRedisStore(redisClient, log)
		log.Info("using redis store")
	} else {
		docStore = store.NewMemStore()
		log.Warn("REDIS_URL not set, using in-memory store; data will not survive restarts")
	}

	// 5. Initialize the optional click/signup journal
	var db *database.ConnectionPool
	var eventJournal *journal.Journal
	if cfg.PostgresDSN != "" {
		db, err = database.NewConnectionPool(ctx, cfg.PostgresDSN, log)
		if err != nil {
			log.Error("failed to connect to postgres", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()

		eventJournal = journal.New(db.GetDB(), log)
		if err := eventJournal.EnsureSchema(ctx); err != nil {
			log.Error("failed to prepare journal schema", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		log.Info("POSTGRES_DSN not set, event journal disabled")
	}

	// 6. Initialize services
	productCatalog := catalog.NewStatic()
	dsaService := service.NewDSAService(docStore, log)
	var recorder service.EventRecorder
	if eventJournal != nil {
		recorder = eventJournal
	}
	linkService := service.NewLinkService(docStore, productCatalog, recorder, log, cfg.BaseURL)
	dashboardService := service.NewDashboardService(docStore, log, time.Duration(cfg.DashboardCacheSeconds)*time.Second)
	messageService := service.NewMessageService(cfg.DraftingEndpoint, log)

	// 7. Initialize security components
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	auditLogger := audit.NewLogger(log)

	// 8. Initialize handlers
	dsaHandler := handler.NewDSAHandler(dsaService, linkService, auditLogger, log)
	linkHandler := handler.NewLinkHandler(linkService, auditLogger, log)
	referHandler := handler.NewReferHandler(linkService, rateLimiter, log, cfg.SignupRedirectURL, cfg.ReferRateLimitPerMinute)
	var feed handler.ActivityFeed
	if eventJournal != nil {
		feed = eventJournal
	}
	dashboardHandler := handler.NewDashboardHandler(dashboardService, feed, log)
	dashboardWS := handler.NewDashboardWSHandler(dashboardService, log, cfg.CORSAllowedOrigins)
	messageHandler := handler.NewMessageHandler(messageService, auditLogger, log)
	productsHandler := handler.NewProductsHandler(productCatalog, log)
	healthHandler := handler.NewHealthHandler(docStore, db, log)

	// 9. Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/dsas", dsaHandler.List)
	mux.HandleFunc("POST /api/dsas", dsaHandler.Create)
	mux.HandleFunc("GET /api/dsas/{id}", dsaHandler.Get)
	mux.HandleFunc("PATCH /api/dsas/{id}", dsaHandler.Patch)
	mux.HandleFunc("DELETE /api/dsas/{id}", dsaHandler.Delete)
	mux.HandleFunc("GET /api/dsas/{id}/links", dsaHandler.Links)
	mux.HandleFunc("GET /api/links", linkHandler.List)
	mux.HandleFunc("POST /api/links", linkHandler.Create)
	mux.HandleFunc("GET /api/links/{id}", linkHandler.Get)
	mux.HandleFunc("PATCH /api/links/{id}", linkHandler.Patch)
	mux.HandleFunc("DELETE /api/links/{id}", linkHandler.Delete)
	mux.HandleFunc("GET /refer/{code}", referHandler.Click)
	mux.HandleFunc("POST /api/refer/{code}/signup", referHandler.Signup)
	mux.Handle("GET /api/products", productsHandler)
	mux.HandleFunc("GET /api/dashboard/summary", dashboardHandler.Summary)
	mux.HandleFunc("GET /api/dashboard/top", dashboardHandler.Top)
	mux.HandleFunc("GET /api/dashboard/activity", dashboardHandler.Activity)
	mux.Handle("GET /ws/dashboard", dashboardWS)
	mux.HandleFunc("POST /api/messages/generate", messageHandler.Generate)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> sanitize -> content type -> audit ->
	// rate limit -> metrics -> CORS
	rootHandler := withRequestID(
		middleware.SanitizeInputs(log)(
			middleware.ValidateJSONContentType(log)(
				middleware.AuditMiddleware(auditLogger)(
					middleware.RateLimitMiddleware(rateLimiter, log)(
						metrics.HTTPMetricsMiddleware(handlerWithCORS),
					),
				),
			),
		),
		log,
	)

	// 10. Start background workers
	if !featureflags.Enabled(featureflags.ReconcileDisabled) {
		reconciler := worker.NewReconcileWorker(docStore, log, time.Duration(cfg.ReconcileIntervalSeconds)*time.Second)
		go reconciler.Start(ctx)
	} else {
		log.Warn("reconcile worker disabled by flag")
	}

	if featureflags.Enabled(featureflags.DemoTraffic) && cfg.Environment != "production" {
		demo := worker.NewDemoTraffic(linkService, log, 3*time.Second, 0.3)
		demo.SetEnabled(true)
		go demo.Start(ctx)
	}

	// 11. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.String("rate_limit_window", "1m"),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop background workers
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

// withRequestID attaches a request ID to the context and response headers for
// traceability; audit entries pick it up from the context
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := audit.WithRequestID(r.Context(), reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
