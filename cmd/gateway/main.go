package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/softmax/underwriting-gateway/internal/auth"
	"github.com/softmax/underwriting-gateway/internal/config"
	"github.com/softmax/underwriting-gateway/internal/db"
	"github.com/softmax/underwriting-gateway/internal/httpapi"
	"github.com/softmax/underwriting-gateway/internal/jobstore"
	"github.com/softmax/underwriting-gateway/internal/metrics"
	"github.com/softmax/underwriting-gateway/internal/pipeline"
	"github.com/softmax/underwriting-gateway/internal/queue"
	"github.com/softmax/underwriting-gateway/internal/ratelimit"
	"github.com/softmax/underwriting-gateway/internal/storage"
	"github.com/softmax/underwriting-gateway/internal/tenant"
	"github.com/softmax/underwriting-gateway/internal/vault"
	"github.com/softmax/underwriting-gateway/internal/webhook"
	"github.com/softmax/underwriting-gateway/internal/worker"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "underwriting-gateway").Logger()

	cfg := config.Load()

	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	if cfg.EncryptionKey == "" {
		log.Fatal().Msg("ENCRYPTION_KEY is required")
	}

	v, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize crypto vault")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		tenants tenant.Store
		jobs    jobstore.Store
	)

	if cfg.DatabaseURL != "" {
		pool, dbErr := db.Open(ctx, cfg.DatabaseURL)
		if dbErr != nil {
			log.Fatal().Err(dbErr).Msg("failed to connect to postgres")
		}
		defer pool.Close()
		tenants = tenant.NewPgStore(pool)
		jobs = jobstore.NewPgStore(pool, v)
	} else {
		log.Warn().Msg("DATABASE_URL not set, running with in-memory stores (not for production)")
		tenants = tenant.NewMemoryStore()
		jobs = jobstore.NewMemoryStore()
	}

	if err := tenant.Bootstrap(ctx, tenants, cfg.TenantsBootstrap); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap tenants")
	}

	var notifier queue.Notifier
	if cfg.RedisURL != "" {
		opts, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Fatal().Err(parseErr).Msg("invalid REDIS_URL")
		}
		notifier = queue.NewRedis(redis.NewClient(opts), "")
	} else {
		log.Warn().Msg("REDIS_URL not set, running with an in-process queue (not durable across restarts)")
		notifier = queue.NewMemory(256)
	}
	defer notifier.Close()

	reg := metrics.New(cfg.PrometheusPrefix, nil)

	scratch := storage.New(cfg.TmpDir, cfg.PDFMaxBytes, &http.Client{Timeout: cfg.PDFDownloadTimeout})

	underwriter := &worker.Underwriter{
		Store:      jobs,
		Tenants:    tenants,
		Scratch:    scratch,
		Parser:     pipeline.SandboxParser{},
		Collateral: pipeline.SandboxCollateral{},
		LLM:        pipeline.SandboxLLM{},
		Rules:      pipeline.ThresholdRuleEvaluator{},
		Webhook:    webhook.NewSender(&http.Client{Timeout: cfg.WebhookTimeout}, cfg.WebhookMaxAttempts, cfg.WebhookBackoffBase),
		Metrics:    reg,
		Log:        log.Logger,
	}

	srv := &httpapi.Server{
		Store:           jobs,
		Tenants:         tenants,
		Resolver:        auth.NewResolver(tenants, []byte(cfg.EncryptionKey), cfg.OAuth2TokenTTL),
		RateLimiter:     ratelimit.New(),
		Queue:           notifier,
		Underwriter:     underwriter,
		Metrics:         reg,
		RequestIDHeader: cfg.RequestIDHeader,
		Sandbox:         cfg.Sandbox,
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go runDispatcher(ctx, &wg, i, notifier, jobs, underwriter)
	}

	go reportQueueBacklog(ctx, notifier, reg)

	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("gateway stopped")
}

// runDispatcher waits for a tenant wake-up, then reserves and runs that
// tenant's queued jobs one at a time, oldest first, until none is left. It
// never trusts the notification count: one wake-up drains every queued job
// of the tenant, and a redelivered notification finds nothing to reserve
// (spec §4.6).
func runDispatcher(ctx context.Context, wg *sync.WaitGroup, id int, notifier queue.Notifier, jobs jobstore.Store, underwriter *worker.Underwriter) {
	defer wg.Done()
	logger := log.With().Int("dispatcher_id", id).Logger()

	for {
		tenantID, err := notifier.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("queue consume failed, retrying")
			continue
		}

		for {
			reserved, err := jobs.ReserveNextJobs(ctx, tenantID, 1)
			if err != nil {
				logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to reserve job")
				break
			}
			if len(reserved) == 0 {
				break
			}
			for _, rj := range reserved {
				if err := underwriter.Run(ctx, rj.JobID); err != nil {
					logger.Error().Err(err).Str("job_id", rj.JobID).Msg("pipeline run failed")
				}
			}
		}
	}
}

func reportQueueBacklog(ctx context.Context, notifier queue.Notifier, reg *metrics.Registry) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := notifier.Backlog(ctx); err == nil {
				reg.QueueBacklog.WithLabelValues("underwrite").Set(float64(n))
			}
		}
	}
}
