package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ampli-network/ampli/internal/api"
	"github.com/ampli-network/ampli/internal/app/orchestrator"
	"github.com/ampli-network/ampli/internal/collab"
	"github.com/ampli-network/ampli/internal/domain"
	"github.com/ampli-network/ampli/internal/health"
	"github.com/ampli-network/ampli/internal/infra/breaker"
	"github.com/ampli-network/ampli/internal/infra/evolution"
	"github.com/ampli-network/ampli/internal/infra/finops"
	"github.com/ampli-network/ampli/internal/infra/idempotency"
	_ "github.com/ampli-network/ampli/internal/infra/metrics" // Register Prometheus metrics
	"github.com/ampli-network/ampli/internal/infra/queue"
	"github.com/ampli-network/ampli/internal/infra/rollout"
	"github.com/ampli-network/ampli/internal/infra/slo"
	"github.com/ampli-network/ampli/internal/infra/sqlite"
)

// Daemon is the core Ampli runtime. It wires together all services.
type Daemon struct {
	Config       Config
	DB           *sqlite.DB
	Orchestrator *orchestrator.Orchestrator
	Server       *api.Server
	Health       *health.Checker

	Idempotency *idempotency.Store
	Estimator   *finops.Estimator
	Budget      *slo.Tracker
	Gate        *rollout.Gate
	Evolution   *evolution.Pipeline

	cancel context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	db, err := sqlite.Open(ampliHome())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	estimator := finops.NewEstimator(finops.Config{
		PlatformRateMicro:       cfg.FinOps.PlatformRateMicro,
		CompetitionVariantMicro: cfg.FinOps.VariantRateMicro,
		MarginMicro:             cfg.FinOps.MarginMicro,
		DefaultMarginMicro:      cfg.FinOps.DefaultMarginMicro,
		Window:                  parseDuration(cfg.FinOps.Window, 24*time.Hour),
	}, db)

	budget := slo.NewTracker(slo.Config{
		AllottedBudget: cfg.SLO.AllottedBudget,
		Window:         parseDuration(cfg.SLO.Window, 24*time.Hour),
	})

	gate := rollout.NewGate(cfg.Rollouts)
	pipeline := evolution.NewPipeline(evolution.Config{}, gate, db)
	store := idempotency.NewStore(idempotency.Config{})

	simCfg := collab.SimConfig{
		Latency:     time.Duration(cfg.Collaborators.LatencyMs) * time.Millisecond,
		FailureRate: cfg.Collaborators.FailureRate,
		Seed:        cfg.Collaborators.Seed,
	}
	news := collab.NewNews(simCfg)
	share := collab.NewShare(simCfg)

	newsBreaker := breaker.New(news.Name(), breaker.Config{
		ErrorThreshold: cfg.Breakers.ErrorThreshold,
		ResetInterval:  parseDuration(cfg.Breakers.ResetInterval, 30*time.Second),
		CallTimeout:    parseDuration(cfg.Breakers.NewsCallTimeout, 2*time.Second),
	})
	shareBreaker := breaker.New(share.Name(), breaker.Config{
		ErrorThreshold: cfg.Breakers.ErrorThreshold,
		ResetInterval:  parseDuration(cfg.Breakers.ResetInterval, 30*time.Second),
		CallTimeout:    parseDuration(cfg.Breakers.ShareCallTimeout, 8*time.Second),
	})

	queueCfg := queue.Config{
		BackPressureSoft:   cfg.Queue.SoftLimit,
		BackPressureMedium: cfg.Queue.MediumLimit,
		BackPressureHard:   cfg.Queue.HardLimit,
	}
	taskQueue := queue.New[*domain.Task](queueCfg)
	compQueue := queue.New[*domain.Competition](queueCfg)

	orch := orchestrator.New(orchestrator.Config{
		Workers:           cfg.Orchestrator.Workers,
		Competitors:       cfg.Orchestrator.Competitors,
		EvolutionMinDelta: cfg.Orchestrator.EvolutionMinDelta,
		ResultRetention:   parseDuration(cfg.Orchestrator.ResultRetention, 24*time.Hour),
	}, orchestrator.Deps{
		Idempotency:  store,
		Estimator:    estimator,
		Budget:       budget,
		Gate:         gate,
		Evolution:    pipeline,
		Audit:        db,
		News:         news,
		Share:        share,
		NewsBreaker:  newsBreaker,
		ShareBreaker: shareBreaker,
		TaskQueue:    taskQueue,
		CompQueue:    compQueue,
	})

	checker := health.NewChecker(db, budget,
		[]health.Depths{taskQueue, compQueue},
		[]*breaker.Breaker{newsBreaker, shareBreaker})

	srv := api.NewServer(orch)
	srv.SetHealthChecker(checker)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:       cfg,
		DB:           db,
		Orchestrator: orch,
		Server:       srv,
		Health:       checker,
		Idempotency:  store,
		Estimator:    estimator,
		Budget:       budget,
		Gate:         gate,
		Evolution:    pipeline,
	}, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.Orchestrator.Start(ctx)
	go d.Health.Run(ctx)
	go d.Idempotency.Run(ctx.Done())

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		d.Orchestrator.Stop()
		d.Evolution.Close()
		d.Estimator.Close()
		if err := d.DB.Close(); err != nil {
			log.Printf("[daemon] close database: %v", err)
		}
	}()

	fmt.Printf("Ampli serving on http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	d.Evolution.Close()
	d.Estimator.Close()
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
