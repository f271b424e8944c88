package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	apphandler "onboard/internal/application/handler"
	appmodels "onboard/internal/application/models"
	appstore "onboard/internal/application/store"
	"onboard/internal/audit"
	"onboard/internal/certificate"
	onboardhandler "onboard/internal/onboarding/handler"
	onboardmetrics "onboard/internal/onboarding/metrics"
	onboardservice "onboard/internal/onboarding/service"
	"onboard/internal/platform/config"
	"onboard/internal/platform/httpserver"
	"onboard/internal/platform/logger"
	"onboard/internal/platform/metrics"
	"onboard/internal/platform/postgres"
	"onboard/internal/platform/redis"
	ratelimitmetrics "onboard/internal/ratelimit/metrics"
	ratelimit "onboard/internal/ratelimit/middleware"
	"onboard/internal/ratelimit/store/bucket"
	httptransport "onboard/internal/transport/http"
	"onboard/internal/upload"
)

const auditBufferSize = 256

// applicationStore is what both the submission flow and the reviewer API need.
type applicationStore interface {
	Insert(ctx context.Context, sub appmodels.Submission) (int64, error)
	FindByID(ctx context.Context, id int64) (*appmodels.Application, error)
	ListRecent(ctx context.Context, limit int) ([]*appmodels.Application, error)
}

type infra struct {
	db     *sql.DB
	redis  *redis.Client
	kafka  *audit.KafkaStore
	apps   applicationStore
	events audit.Store
}

func (i *infra) close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "onboard: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close(log)

	publisher := audit.NewPublisher(deps.events,
		audit.WithAsyncBuffer(auditBufferSize),
		audit.WithLogger(log),
	)
	defer publisher.Close()

	validator := certificate.NewValidator(certificate.WithDecodeTimeout(cfg.Certificate.DecodeTimeout))
	svc := onboardservice.New(validator, deps.apps,
		onboardservice.WithAuditPublisher(publisher),
		onboardservice.WithMetrics(onboardmetrics.New(reg)),
		onboardservice.WithLogger(log),
		onboardservice.WithDBTimeout(cfg.Database.Timeout),
	)
	uploads := upload.NewStore(cfg.Upload.Dir,
		upload.WithMaxFileBytes(cfg.Upload.MaxBytes),
		upload.WithLogger(log),
	)
	limiter := newRateLimiter(cfg, deps, reg, log)

	handlers := []httptransport.Registrar{
		onboardhandler.New(svc, uploads, log, limiter.RateLimit),
	}
	if cfg.Admin.TokenHash != "" {
		handlers = append(handlers, apphandler.New(deps.apps, []byte(cfg.Admin.TokenHash), log))
	} else {
		log.Info("reviewer API disabled: ADMIN_TOKEN_HASH not set")
	}

	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	routerDeps := httptransport.RouterDeps{
		Logger:        log,
		Metrics:       metrics.New(reg),
		HealthChecks:  healthChecks(deps),
		HealthTimeout: cfg.Database.Timeout,
		Handlers:      handlers,
	}
	if cfg.Server.MetricsAddr == "" {
		routerDeps.MetricsHandler = metricsHandler
	}

	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(routerDeps))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		metricsSrv := &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			return httpserver.Run(gctx, metricsSrv, cfg.Server.ShutdownTimeout, log)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("onboard stopped")
	return nil
}

// buildInfra connects the optional backends. Without Postgres applications
// stay in memory; without Redis the limiter counts in-process; audit events go
// to Kafka, else Postgres, else memory.
func buildInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	deps := &infra{}

	if cfg.Database.Enabled() {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		deps.db = db
		if err := appstore.EnsureSchema(ctx, db); err != nil {
			deps.close(log)
			return nil, err
		}
		deps.apps = appstore.NewPostgres(db)
		log.Info("database connected")
	} else {
		deps.apps = appstore.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, applications are kept in memory")
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		deps.close(log)
		return nil, err
	}
	deps.redis = client

	if cfg.Kafka.Enabled() {
		store, err := audit.NewKafkaStore(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			deps.close(log)
			return nil, err
		}
		deps.kafka = store
		deps.events = store
		log.Info("audit events published to kafka", "topic", cfg.Kafka.Topic)
	} else if deps.db != nil {
		if err := audit.EnsureSchema(ctx, deps.db); err != nil {
			deps.close(log)
			return nil, err
		}
		deps.events = audit.NewPostgresStore(deps.db)
		log.Info("audit events stored in postgres")
	} else {
		deps.events = audit.NewInMemoryStore()
	}

	return deps, nil
}

func newRateLimiter(cfg config.Config, deps *infra, reg prometheus.Registerer, log *slog.Logger) *ratelimit.Middleware {
	fallback := bucket.NewInMemoryBucketStore()
	var primary ratelimit.BucketStore = fallback
	if deps.redis != nil {
		primary = bucket.NewRedisBucketStore(deps.redis)
	}
	return ratelimit.New(primary, cfg.RateLimit.PerMinute, log,
		ratelimit.WithFallback(fallback),
		ratelimit.WithMetrics(ratelimitmetrics.New(reg)),
	)
}

func healthChecks(deps *infra) []httptransport.HealthCheck {
	var checks []httptransport.HealthCheck
	if deps.db != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "database", Check: deps.db.PingContext})
	}
	if deps.redis != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Check: deps.redis.Health})
	}
	if deps.kafka != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "kafka", Check: deps.kafka.Ping})
	}
	return checks
}
