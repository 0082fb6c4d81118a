package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"github.com/Strob0t/circulation/internal/adapter/cachedpolicy"
	cirhttp "github.com/Strob0t/circulation/internal/adapter/http"
	cirnats "github.com/Strob0t/circulation/internal/adapter/nats"
	"github.com/Strob0t/circulation/internal/adapter/natskv"
	cirotel "github.com/Strob0t/circulation/internal/adapter/otel"
	"github.com/Strob0t/circulation/internal/adapter/postgres"
	"github.com/Strob0t/circulation/internal/adapter/ristretto"
	"github.com/Strob0t/circulation/internal/adapter/tiered"
	"github.com/Strob0t/circulation/internal/config"
	"github.com/Strob0t/circulation/internal/domain/policy"
	"github.com/Strob0t/circulation/internal/logger"
	"github.com/Strob0t/circulation/internal/middleware"
	"github.com/Strob0t/circulation/internal/port/lookup"
	"github.com/Strob0t/circulation/internal/port/messagequeue"
	"github.com/Strob0t/circulation/internal/resilience"
	"github.com/Strob0t/circulation/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"tlr_enabled", cfg.Circulation.TitleLevelRequestsEnabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownOtel, err := cirotel.Setup(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := cirotel.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	store := postgres.NewStore(pool)

	// NATS
	queue, err := cirnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() {
		if err := queue.Drain(); err != nil {
			slog.Warn("nats drain", "error", err)
		}
	}()

	if dir := cfg.Circulation.PolicyDir; dir != "" {
		doc, err := policy.LoadFromDirectory(dir)
		if err != nil {
			return fmt.Errorf("policies: %w", err)
		}
		rev, err := importPolicies(ctx, store, queue, middleware.DefaultTenantID, doc)
		if err != nil {
			return fmt.Errorf("policies: %w", err)
		}
		slog.Info("policies imported", "dir", dir, "revision", rev,
			"loan_policies", len(doc.LoanPolicies), "request_policies", len(doc.RequestPolicies), "rules", len(doc.Rules.Rules))
	}

	// Policy cache: ristretto in front of a NATS KV bucket shared by replicas.
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()
	kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
	if err != nil {
		return fmt.Errorf("l2 cache: %w", err)
	}
	policies := cachedpolicy.New(store, store, tiered.New(l1, natskv.New(kv), cfg.Cache.PolicyTTL), cfg.Cache.PolicyTTL)
	stopRevisions, err := queue.Subscribe(ctx, messagequeue.SubjectPoliciesImported, policies.HandleImported)
	if err != nil {
		return fmt.Errorf("subscribe policy revisions: %w", err)
	}
	defer stopRevisions()

	// --- Services ---
	guard := service.NewLookupGuard(cfg.Breaker, cfg.Lookup)
	lookups := service.GuardLookups(lookup.Set{
		Items:              store,
		Patrons:            store,
		Loans:              store,
		ProxyRelationships: store,
		AutomatedBlocks:    store,
		ManualBlocks:       store,
		RequestQueues:      store,
		Policies:           policies,
	}, guard)

	obs := service.Observers(service.LogObserver{Logger: log}, cirotel.NewObserver(metrics))
	tlr := cfg.Circulation.TitleLevelRequestsEnabled

	handlers := &cirhttp.Handlers{
		CheckOut: service.NewCheckOutService(lookups, store, queue, obs),
		Renewal:  service.NewRenewalService(lookups, store, queue, obs),
		Requests: service.NewRequestService(lookups, store, queue, obs, tlr),
		Queues:   service.NewQueueService(lookups.RequestQueues, store, queue, tlr),
	}

	// --- HTTP ---
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cirotel.HTTPMiddleware(cfg.OTel.ServiceName))
	r.Use(cirhttp.SecurityHeaders)
	r.Use(cirhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(middleware.Tenant)
	r.Use(cirhttp.Logger)
	r.Use(middleware.Operator)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", healthHandler(pool, queue, guard.Breakers()))

	r.Group(func(r chi.Router) {
		if cfg.Server.RateLimit > 0 {
			limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
			limiter.StartCleanup(ctx, time.Minute, 10*time.Minute)
			r.Use(limiter.Handler)
		}
		r.Use(middleware.Idempotency(l1, cfg.Server.IdempotencyTTL))
		cirhttp.MountRoutes(r, handlers, cfg.Server.EnforcePermissions)
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// importPolicies stores doc as the tenant's circulation rules and announces
// the new revision so running instances stop serving cached policies. A nil
// queue skips the announcement; instances then notice within cache.policy_ttl.
func importPolicies(ctx context.Context, store *postgres.Store, q messagequeue.Queue, tenant string, doc *policy.Document) (int64, error) {
	ctx = middleware.WithTenant(ctx, tenant)
	rev, err := store.ImportPolicies(ctx, doc)
	if err != nil {
		return 0, err
	}
	if q == nil {
		return rev, nil
	}
	data, err := json.Marshal(messagequeue.PoliciesImportedPayload{
		Revision:        rev,
		LoanPolicies:    len(doc.LoanPolicies),
		RequestPolicies: len(doc.RequestPolicies),
		Rules:           len(doc.Rules.Rules),
	})
	if err != nil {
		return rev, err
	}
	if err := q.Publish(ctx, messagequeue.SubjectPoliciesImported, data); err != nil {
		return rev, fmt.Errorf("announce policy revision %d: %w", rev, err)
	}
	return rev, nil
}

// healthHandler reports whether PostgreSQL and NATS are reachable and which
// collaborator breakers are open. Open breakers mark the service degraded
// without failing the check.
func healthHandler(pool *pgxpool.Pool, queue *cirnats.Queue, breakers *resilience.Breakers) http.HandlerFunc {
	type healthStatus struct {
		Status       string   `json:"status"`
		Postgres     string   `json:"postgres"`
		NATS         string   `json:"nats"`
		OpenBreakers []string `json:"open_breakers,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{Status: "ok", Postgres: "ok", NATS: "ok"}
		code := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			status.Status, status.Postgres, code = "degraded", "unreachable", http.StatusServiceUnavailable
		}
		if !queue.IsConnected() {
			status.Status, status.NATS, code = "degraded", "disconnected", http.StatusServiceUnavailable
		}
		if breakers != nil {
			if open := breakers.Open(); len(open) > 0 {
				status.Status, status.OpenBreakers = "degraded", open
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
