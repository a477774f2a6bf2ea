package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/careline/internal/alerts"
	"github.com/gosuda/careline/internal/api/ws"
	"github.com/gosuda/careline/internal/clientlock"
	"github.com/gosuda/careline/internal/config"
	"github.com/gosuda/careline/internal/dashboard"
	"github.com/gosuda/careline/internal/domain"
	"github.com/gosuda/careline/internal/episode"
	"github.com/gosuda/careline/internal/notify"
	"github.com/gosuda/careline/internal/schema"
	"github.com/gosuda/careline/internal/server"
	"github.com/gosuda/careline/internal/store/memory"
	"github.com/gosuda/careline/internal/store/postgres"
	"github.com/gosuda/careline/internal/store/records"
	redisstore "github.com/gosuda/careline/internal/store/redis"
	"github.com/gosuda/careline/internal/tasksync"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	setupLogging(cfg.Log)

	ctx := context.Background()

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	health := make(map[string]server.Pinger)

	recordStore, closeStore, err := openStore(ctx, cfg, health)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis is optional; without it change events stay in-process.
	var pubsub *redisstore.PubSub
	if cfg.Redis.Enabled() {
		pubsub, err = redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer pubsub.Close()
		health["redis"] = pubsub
	}

	registry, err := schema.Load(cfg.Sync.SchemaPath)
	if err != nil {
		// Without a schema the service still serves data, but no task is
		// created, recomputed or removed.
		log.Error().Err(err).Str("path", cfg.Sync.SchemaPath).Msg("task schema unavailable; synchronization disabled")
	} else {
		log.Info().Int("tasks", registry.Len()).Str("path", cfg.Sync.SchemaPath).Msg("task schema loaded")
	}

	repos := records.New(recordStore)
	locks := clientlock.New()
	rules := alerts.DefaultRules()

	discharges := alerts.NewRepoDischargeView(repos.Clients(), repos.TaskStates(), rules.PacketTaskID, alerts.DefaultDischargeWindowDays)
	aggregator := alerts.NewAggregator(registry, repos.Clients(), repos.TaskStates(), discharges, rules)

	cache, err := dashboard.NewCache(aggregator, repos.Clients(), dashboard.Config{
		TTL:             cfg.Dashboard.TTL,
		RefreshInterval: cfg.Dashboard.RefreshInterval,
		MaxScopes:       cfg.Dashboard.MaxScopes,
	})
	if err != nil {
		return err
	}

	broker := dashboard.NewBroker()
	channel := redisstore.ClientEventsChannel(cfg.Redis.Namespace)

	var notifier *dashboard.Notifier
	if pubsub != nil {
		notifier = dashboard.NewNotifier(cache, broker, pubsub, channel)
		go func() {
			if watchErr := dashboard.Watch(ctx, pubsub, channel, cache, broker); watchErr != nil {
				log.Error().Err(watchErr).Msg("change event watcher stopped")
			}
		}()
	} else {
		notifier = dashboard.NewNotifier(cache, broker, nil, channel)
	}

	syncSvc := tasksync.NewService(registry, repos, locks, notifier, tasksync.BridgeMode(cfg.Sync.LegacyBridge))
	timeline := episode.NewService(repos.Episodes(), locks, notifier).WithResyncer(syncSvc)

	if cfg.Sync.OnStartup {
		report, syncErr := syncSvc.SyncAll(ctx)
		if syncErr != nil {
			log.Error().Err(syncErr).Msg("startup sync failed")
		} else {
			log.Info().Int("synced", report.Synced).Int("changed", report.Changed).
				Int("failed", len(report.Failed)).Msg("startup sync complete")
		}
	}

	go cache.Start(ctx)

	if cfg.Slack.Enabled() {
		escalator := notify.NewEscalator(cache, notify.NewSlack(cfg.Slack.BotToken, cfg.Slack.Channel))
		events, unsubscribe := broker.Subscribe()
		defer unsubscribe()
		go escalator.Run(ctx, cfg.Slack.Interval, events)
		log.Info().Str("channel", cfg.Slack.Channel).Msg("red-zone escalation to Slack enabled")
	}

	srv := server.New(ctx, cfg, server.Deps{
		Dashboard: cache,
		Sync:      syncSvc,
		Timeline:  timeline,
		Hub:       ws.NewHub(cache, broker, cfg.Server.CORSOrigins),
		Health:    health,
	})

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("store", cfg.Store.Backend).
			Bool("redis", pubsub != nil).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}

func setupLogging(cfg config.LogConfig) {
	level, parseErr := zerolog.ParseLevel(cfg.Level)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

// openStore selects the record store backend and registers it for health
// checks when it has a remote dependency.
func openStore(ctx context.Context, cfg *config.Config, health map[string]server.Pinger) (domain.RecordStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
			return nil, nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
		}
		store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		health["store"] = store
		return store, store.Close, nil
	default:
		log.Warn().Msg("using in-memory record store; data is lost on restart")
		return memory.New(), func() {}, nil
	}
}
