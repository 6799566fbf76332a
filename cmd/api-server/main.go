package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-scheduling/internal/api"
	"github.com/hackgods/clinic-booking-scheduling/internal/auth"
	"github.com/hackgods/clinic-booking-scheduling/internal/booking"
	"github.com/hackgods/clinic-booking-scheduling/internal/cache"
	"github.com/hackgods/clinic-booking-scheduling/internal/config"
	"github.com/hackgods/clinic-booking-scheduling/internal/db"
	"github.com/hackgods/clinic-booking-scheduling/internal/directory"
	"github.com/hackgods/clinic-booking-scheduling/internal/observability"
	redisclient "github.com/hackgods/clinic-booking-scheduling/internal/redis"
	"github.com/hackgods/clinic-booking-scheduling/internal/stats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := newBootLogger(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	logger := observability.NewLogger("api-server", cfg.Env, cfg.LogLevel)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	migrateCtx, cancelMigrate := context.WithTimeout(rootCtx, 30*time.Second)
	applied, err := db.Migrate(migrateCtx, pgPool)
	cancelMigrate()
	if err != nil {
		logger.Fatal().Err(err).Msg("migration error")
	}
	logger.Info().Int("applied", applied).Msg("schema up to date")

	// Redis is optional: without it bookings rely on the unique index alone
	var (
		rdb       *redis.Client
		locker    redisclient.Locker = redisclient.NoopLocker{}
		nameCache cache.Cache        = cache.NewNoop()
	)
	rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.OptionsFromConfig(cfg))
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, running without slot lock and name cache")
		rdb = nil
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, cfg.LockWait)
		nameCache = cache.NewRedis(rdb, "")
		logger.Info().Msg("connected to Redis")
	}

	metrics, err := observability.NewBookingMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("metrics init error")
	}

	pgDirectory := directory.NewPgDirectory(pgPool)
	users := directory.NewCachedUserDirectory(pgDirectory, nameCache, cfg.NameCacheTTL, logger)

	repo := booking.NewPgRepository(pgPool)
	svc := booking.NewService(repo, pgDirectory, users, locker, metrics, cfg, logger)
	engine := stats.NewEngine(stats.NewPgSource(pgPool, repo), pgDirectory, users, cfg.Location, logger)

	router := api.NewRouter(api.RouterConfig{
		Bookings: svc,
		Stats:    engine,
		Tokens:   auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL),
		PgPool:   pgPool,
		Redis:    rdb,
		Logger:   logger,
		Env:      cfg.Env,
		Version:  cfg.Version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}

	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newBootLogger logs failures that happen before config, and so the
// configured logger, is available.
func newBootLogger(out io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: true}).With().Timestamp().Logger()
}
