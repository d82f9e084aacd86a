package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"mountpass/internal/passes/handler"
	"mountpass/internal/passes/media"
	passmetrics "mountpass/internal/passes/metrics"
	"mountpass/internal/passes/outbox"
	"mountpass/internal/passes/service"
	outboxstore "mountpass/internal/passes/store/outbox"
	passstore "mountpass/internal/passes/store/pass"
	submitterstore "mountpass/internal/passes/store/submitter"
	"mountpass/internal/platform/config"
	"mountpass/internal/platform/metrics"
	"mountpass/internal/platform/postgres"
	"mountpass/internal/platform/redis"
	ratelimitmetrics "mountpass/internal/ratelimit/metrics"
	ratelimitmw "mountpass/internal/ratelimit/middleware"
	ratelimitmodels "mountpass/internal/ratelimit/models"
	"mountpass/internal/ratelimit/store/bucket"
	"mountpass/pkg/platform/middleware/moderator"
)

// eventStore is the outbox as seen by both the service and the relay.
type eventStore interface {
	service.Outbox
	outbox.Source
}

// app holds the wired dependencies of one server process.
type app struct {
	router  http.Handler
	relay   *outbox.Relay
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// buildApp wires stores, services and routes from cfg. ctx bounds
// background listeners started here.
func buildApp(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	httpMetrics := metrics.NewWithRegisterer(reg)
	passMetrics := passmetrics.NewWithRegisterer(reg)
	mediaStore := media.New(cfg.Media.Root, cfg.Media.URLPrefix, cfg.Media.MaxImageBytes)

	var (
		submitters service.SubmitterStore
		passes     service.PassStore
		events     eventStore
		wake       <-chan struct{}
		db         *sql.DB
		checks     []readinessCheck
	)
	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(passMetrics),
		service.WithSubmitterRefresh(cfg.Moderation.RefreshSubmitter),
	}

	if cfg.Database.URL != "" {
		db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if cfg.Database.AutoMigrate {
			applied, err := postgres.Migrate(ctx, db)
			if err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			if len(applied) > 0 {
				log.InfoContext(ctx, "database migrations applied", "files", applied)
			}
		}
		submitters = submitterstore.NewPostgres(db)
		passes = passstore.NewPostgres(db)
		events = outboxstore.NewPostgres(db)
		svcOpts = append(svcOpts, service.WithTx(postgres.NewTx(db)))
		checks = append(checks, readinessCheck{name: "database", check: db.PingContext})
	} else {
		log.WarnContext(ctx, "no database configured, passes are kept in memory")
		memOutbox := outboxstore.NewInMemory()
		submitters = submitterstore.NewInMemory()
		passes = passstore.NewInMemory()
		events = memOutbox
		wake = memOutbox.Notify()
	}

	if cfg.Events.Enabled {
		svcOpts = append(svcOpts, service.WithOutbox(events))
		publisher, err := outbox.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { publisher.Close(); return nil })
		if err := publisher.EnsureTopic(ctx, cfg.Events.TopicPartitions, cfg.Events.TopicReplication); err != nil {
			return nil, err
		}
		if db != nil {
			wake = outbox.Listen(ctx, cfg.Database.URL, outboxstore.NotifyChannel, log)
		}
		a.relay = outbox.New(events, publisher,
			outbox.Config{PollInterval: cfg.Events.PollInterval, BatchSize: cfg.Events.BatchSize},
			outbox.WithWakeup(wake),
			outbox.WithLogger(log),
			outbox.WithMetrics(passMetrics),
		)
		checks = append(checks, readinessCheck{name: "kafka", check: publisher.Ping})
	}

	var limiter *ratelimitmw.Limiter
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		a.closers = append(a.closers, redisClient.Close)
		limiter = ratelimitmw.NewLimiter(bucket.NewRedis(redisClient), bucket.New(), log).
			WithMetrics(ratelimitmetrics.NewWithRegisterer(reg))
		checks = append(checks, readinessCheck{name: "redis", check: redisClient.Health})
	} else {
		limiter = ratelimitmw.NewLimiter(bucket.New(), nil, log)
	}
	rateLimit := ratelimitmw.New(limiter, log,
		ratelimitmw.WithDisabled(cfg.RateLimit.Disabled),
		ratelimitmw.WithMetrics(httpMetrics),
	)

	if cfg.Moderation.TokenHash == "" {
		log.WarnContext(ctx, "no moderator token configured, status updates are open to everyone")
	}

	svc := service.New(submitters, passes, mediaStore, svcOpts...)
	passHandler := handler.New(svc, mediaStore, log, httpMetrics,
		handler.WithTimeout(cfg.Server.RequestTimeout),
		handler.WithSubmitMiddleware(rateLimit.RateLimit(ratelimitmodels.ScopeSubmit, ratelimitmodels.Limit{
			Requests: cfg.RateLimit.Submissions,
			Window:   cfg.RateLimit.Window,
		})),
		handler.WithModeratorMiddleware(moderator.RequireToken(cfg.Moderation.TokenHash, log)),
	)

	r := chi.NewRouter()
	if cfg.Server.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Get("/healthz", handleLiveness)
	r.Get("/readyz", readinessHandler(checks))
	r.Handle("/metrics", metrics.HandlerFor(gatherer))
	r.Handle(cfg.Media.URLPrefix+"/*", mediaStore.Handler())
	passHandler.Register(r)

	a.router = r
	return a, nil
}
