package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/layer-3/rola/adapters/events"
	"github.com/layer-3/rola/adapters/radix"
	"github.com/layer-3/rola/adapters/store"
	"github.com/layer-3/rola/internal/config"
	"github.com/layer-3/rola/internal/logger"
	"github.com/layer-3/rola/internal/metrics"
	"github.com/layer-3/rola/ports"
	"github.com/layer-3/rola/service"
	transport "github.com/layer-3/rola/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// backends holds the repositories and publisher selected by configuration
type backends struct {
	challenges ports.ChallengeRepository
	personas   ports.PersonaRepository
	events     ports.EventRepository
	publisher  ports.EventPublisher

	closers []func() error
}

func (b *backends) Close(log *zap.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Warn("failed to close backend", zap.Error(err))
		}
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Environment, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// openBackends connects the store, event log and publisher named by cfg
func openBackends(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backends, error) {
	b := &backends{}
	var redisClient *redis.Client

	connectRedis := func() (*redis.Client, error) {
		if redisClient != nil {
			return redisClient, nil
		}
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		redisClient = client
		return client, nil
	}

	fail := func(err error) (*backends, error) {
		b.Close(log)
		return nil, err
	}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		mem := store.NewMemoryStore()
		b.challenges, b.personas, b.events = mem, mem, mem
	case config.BackendRedis:
		client, err := connectRedis()
		if err != nil {
			return fail(err)
		}
		rs := store.NewRedisStore(client)
		b.challenges, b.personas, b.events = rs, rs, rs
	case config.BackendPostgres:
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			return fail(err)
		}
		db, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return fail(err)
		}
		b.closers = append(b.closers, db.Close)
		ps := store.NewPostgresStore(db)
		if err := ps.Ping(ctx); err != nil {
			return fail(fmt.Errorf("failed to connect to postgres: %w", err))
		}
		b.challenges, b.personas, b.events = ps, ps, ps
	}

	if cfg.EventLogBackend == config.EventLogClickHouse {
		conn, err := store.OpenClickHouse(ctx, store.ClickHouseOptions{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			return fail(err)
		}
		b.closers = append(b.closers, conn.Close)
		eventLog := store.NewClickHouseEventLog(conn)
		if err := eventLog.EnsureSchema(ctx); err != nil {
			return fail(err)
		}
		b.events = eventLog
	}

	switch cfg.EventPublisher {
	case config.PublisherRedis:
		client, err := connectRedis()
		if err != nil {
			return fail(err)
		}
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: client,
			},
			events.NewWatermillLogger(log),
		)
		if err != nil {
			return fail(fmt.Errorf("failed to create redis stream publisher: %w", err))
		}
		b.closers = append(b.closers, publisher.Close)
		b.publisher = events.NewWatermillPublisher(publisher, cfg.EventTopic)
	case config.PublisherKafka:
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventTopic)
		b.closers = append(b.closers, publisher.Close)
		b.publisher = publisher
	}

	log.Info("backends ready",
		zap.String("store", cfg.StoreBackend),
		zap.String("event_log", cfg.EventLogBackend),
		zap.String("publisher", cfg.EventPublisher),
	)
	return b, nil
}

func serve(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := c.Context
	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close(log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	authService := service.NewAuthService(
		service.NewChallengeStore(b.challenges, cfg.ChallengeTTL, log.Named("challenges")),
		b.personas,
		service.NewEventLog(b.events, b.publisher, log.Named("events"), collector),
		radix.NewAddressCodec(cfg.AddressHRPs...),
		radix.NewSignatureVerifier(),
		log.Named("auth"),
		collector,
	)
	sweeper := service.NewSweeper(b.challenges, cfg.SweepInterval, log.Named("sweeper"), collector)

	limiter := transport.NewRateLimiter(
		transport.PerMinute(cfg.ChallengeRatePerMinute, cfg.ChallengeRateBurst),
		log.Named("ratelimit"),
		collector,
	)
	defer limiter.Stop()

	server := &http.Server{
		Addr: cfg.ServerAddr,
		Handler: transport.SetupRouter(authService, transport.Options{
			Logger:         log.Named("http"),
			Metrics:        collector,
			MetricsHandler: metrics.Handler(registry),
			ChallengeLimit: limiter,
			TrustedProxies: cfg.TrustedProxies,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func migrateSchema(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	switch {
	case cfg.StoreBackend == config.BackendPostgres:
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
		log.Info("postgres schema is up to date")
	case cfg.EventLogBackend != config.EventLogClickHouse:
		log.Info("nothing to migrate", zap.String("store", cfg.StoreBackend))
		return nil
	}

	if cfg.EventLogBackend == config.EventLogClickHouse {
		conn, err := store.OpenClickHouse(c.Context, store.ClickHouseOptions{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := store.NewClickHouseEventLog(conn).EnsureSchema(c.Context); err != nil {
			return err
		}
		log.Info("clickhouse schema is up to date")
	}
	return nil
}

func sweep(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	b, err := openBackends(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close(log)

	_, err = service.NewSweeper(b.challenges, cfg.SweepInterval, log.Named("sweeper"), nil).RunOnce(c.Context)
	return err
}
