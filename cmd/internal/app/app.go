// Package app wires the Agora auth server runtime: config, logging, stores,
// HTTP routes, and the background sweeper.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"agora/cmd/internal/accounts"
	"agora/cmd/internal/auth/api"
	"agora/cmd/internal/auth/authn"
	"agora/cmd/internal/auth/epoch"
	"agora/cmd/internal/auth/jwt"
	"agora/cmd/internal/auth/refresh"
	"agora/cmd/security/token"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const pgSchema = "agora"

// Store is a small app-level lifecycle abstraction for closable resources.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// App is the Agora server runtime.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool
	redis     *redis.Client

	auth    *api.Handler
	authn   *authn.Authenticator
	sweeper *refresh.Sweeper
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	ctx := context.Background()

	st, dbPool, dbEnabled, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var (
		acctStore  accounts.Store
		refStore   refresh.Store
		epochStore epoch.Store
	)
	if dbEnabled {
		if acctStore, err = accounts.NewPostgresStore(dbPool, pgSchema); err != nil {
			return nil, err
		}
		if refStore, err = refresh.NewPostgresStore(dbPool, pgSchema); err != nil {
			return nil, err
		}
		if epochStore, err = epoch.NewPostgresStore(dbPool, pgSchema); err != nil {
			return nil, err
		}
	} else {
		acctStore = accounts.NewMemoryStore()
		refStore = refresh.NewMemoryStore()
		epochStore = epoch.NewMemoryStore()
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		cached, err := epoch.NewRedisCache(epochStore, redisClient, cfg.EpochCacheTTL, log)
		if err != nil {
			return nil, err
		}
		epochStore = cached
		log.Info("epoch.cache.enabled")
	}

	hasher, err := token.NewHasherFromEnv(cfg.RequireTokenHMAC)
	if err != nil {
		return nil, err
	}

	refreshCfg, err := refresh.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	refreshSvc := refresh.NewService(refreshCfg, refStore, hasher, log)

	codec, err := jwt.NewCodec(jwt.Config{
		Secret:    []byte(cfg.JWTSecret),
		Issuer:    cfg.JWTIssuer,
		AccessTTL: cfg.AccessTTL,
		Leeway:    cfg.ClockSkew,
	})
	if err != nil {
		return nil, err
	}

	authHandler, err := api.NewHandler(log, api.LoadConfigFromEnv(), dbPool, acctStore, refreshSvc, epochStore, codec)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		redis:     redisClient,
		auth:      authHandler,
		authn:     authn.New(codec, epochStore, log),
		sweeper:   refresh.NewSweeper(refStore, refreshCfg.SweepInterval, log),
	}, nil
}

// Run starts the HTTP server and the sweeper, and blocks until context
// cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth)

	handler := WithRequestLogging(a.authn.Middleware(mux), a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go a.sweeper.Run(sweepCtx)

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	stopSweeper()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
	}
	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between Postgres-backed persistence and the in-memory
// dev store.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")
	return dbStore{pool: pool}, pool, true, nil
}

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
