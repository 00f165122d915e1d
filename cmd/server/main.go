package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/adapters/analytics"
	router "github.com/dkeye/Pairup/internal/adapters/http"
	"github.com/dkeye/Pairup/internal/adapters/rtc"
	wsignal "github.com/dkeye/Pairup/internal/adapters/signal"
	"github.com/dkeye/Pairup/internal/adapters/store/memory"
	"github.com/dkeye/Pairup/internal/adapters/store/redis"
	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/app/match"
	"github.com/dkeye/Pairup/internal/app/orch"
	"github.com/dkeye/Pairup/internal/config"
	"github.com/dkeye/Pairup/internal/core"
)

type stores struct {
	queue   core.QueueStore
	waiting core.WaitingStore
	health  func(ctx context.Context) error
	close   func()
	// lost is closed when another instance takes over the shared pool.
	lost    <-chan struct{}
}

func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	switch cfg.Store.Backend {
	case "redis":
		rdb, err := redis.Dial(ctx, redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err != nil {
			return stores{}, err
		}
		lease, err := redis.AcquireLease(ctx, rdb, redis.LeaseKey, uuid.NewString(), cfg.Store.LeaseTTL)
		if err != nil {
			_ = rdb.Close()
			return stores{}, err
		}
		return stores{
			queue:   redis.NewQueueStore(rdb),
			waiting: redis.NewWaitingStore(rdb, cfg.WaitingTTL),
			health:  func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			close: func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := lease.Release(releaseCtx); err != nil {
					log.Warn().Err(err).Msg("release redis lease")
				}
				_ = rdb.Close()
			},
			lost: lease.Lost(),
		}, nil
	default:
		waiting := memory.NewWaitingStore(cfg.WaitingTTL)
		return stores{
			queue:   memory.NewQueueStore(),
			waiting: waiting,
			close:   waiting.Close,
		}, nil
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store.Backend).Msg("failed to open stores")
	}
	defer st.close()

	var (
		tracker core.Tracker = analytics.Nop{}
		stats   core.AnalyticsReader
	)
	if cfg.Analytics.Enabled {
		db, err := analytics.Open(cfg.Analytics.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Analytics.Path).Msg("failed to open analytics")
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("close analytics")
			}
		}()
		dispatcher := analytics.NewDispatcher(db, cfg.Analytics.Buffer, cfg.Analytics.Workers)
		defer dispatcher.Close()
		tracker, stats = dispatcher, db
	}

	o := &orch.Orchestrator{
		Registry:           app.NewRegistry(),
		Sessions:           app.NewSessions(),
		Games:              app.NewGames(),
		Matcher:            match.New(st.queue, st.waiting),
		Catalog:            cfg.BuildCatalog(),
		Tracker:            tracker,
		Policy:             app.SimplePolicy{},
		NegotiationTimeout: cfg.NegotiationTimeout,
		Classify:           rtc.Classify,
	}
	limiter := wsignal.NewAdmitRateLimiter(cfg.AdmitLimit, cfg.AdmitInterval)
	ctl := wsignal.NewSignalWSController(o, limiter, cfg.ReadLimit, cfg.PingPeriod)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:    o,
		Signal:  ctl,
		Tracker: tracker,
		Stats:   stats,
		Health:  st.health,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("store", cfg.Store.Backend).Msg("Pairup server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	select {
	case <-ctx.Done():
	case <-st.lost:
		log.Error().Msg("redis pool taken over by another instance")
	}
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
