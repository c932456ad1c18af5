// Package app wires the parley server runtime: config, logging, stores,
// HTTP routes, and the realtime gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"parley/cmd/identity"
	authapi "parley/cmd/internal/auth/api"
	"parley/cmd/internal/auth/session"
	"parley/cmd/internal/cache"
	"parley/cmd/internal/realtime"
	"parley/cmd/security/password"
)

// App owns the server's long-lived dependencies.
type App struct {
	cfg Config
	log Logger

	pool   *pgxpool.Pool
	tokens cache.TokenStore

	registry *prometheus.Registry
	monitor  *realtime.LivenessMonitor
	gateway  *realtime.Gateway
	routes   []string

	auth *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	ctx := context.Background()

	a := &App{cfg: cfg, log: log}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	var (
		userStore identity.Store
		members   realtime.MembershipStore
	)

	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled.inmemory_store")
		userStore = identity.NewMemoryStore()
		mem, err := devMembershipStore(a.cfg.DevMemberships)
		if err != nil {
			return err
		}
		members = mem
	} else {
		pool, err := NewDBPool(ctx, a.cfg)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		a.pool = pool
		a.log.Info("db.enabled.postgres_store", "schema", a.cfg.DBSchema)

		pgUsers, err := identity.NewPostgresStore(pool, identity.WithSchema(a.cfg.DBSchema))
		if err != nil {
			return err
		}
		userStore = pgUsers

		pgMembers, err := realtime.NewPostgresMembershipStore(pool, realtime.WithMembershipSchema(a.cfg.DBSchema))
		if err != nil {
			return err
		}
		members = pgMembers
	}

	pwCfg, err := password.FromEnv()
	if err != nil {
		return err
	}
	users, err := identity.NewService(userStore, pwCfg)
	if err != nil {
		return err
	}

	cacheCfg, err := cache.LoadConfig()
	if err != nil {
		return err
	}
	if cacheCfg.UseRedis() {
		rs, err := cache.OpenRedis(ctx, cacheCfg)
		if err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		a.tokens = rs
		a.log.Info("cache.enabled.redis", "addr", cacheCfg.RedisAddr, "db", cacheCfg.RedisDB)
	} else {
		a.tokens = cache.NewMemoryStore()
		a.log.Warn("cache.inmemory_store", "note", "credentials do not survive restart")
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	tokens, err := session.NewAccessTokenManager(sessCfg)
	if err != nil {
		return err
	}
	issuer, err := session.NewIssuer(sessCfg, tokens)
	if err != nil {
		return err
	}
	sessions, err := session.NewService(sessCfg, issuer, a.tokens, users, session.WithLogger(a.log))
	if err != nil {
		return err
	}
	a.log.Info("auth.configured", "format", sessCfg.Format, "alg", tokens.Algorithm(),
		"access_ttl", sessCfg.AccessTokenTTL.String(), "refresh_ttl", sessCfg.RefreshTokenTTL.String(),
		"realtime_ttl", sessCfg.RealtimeTokenTTL.String())

	a.auth, err = authapi.NewHandler(a.log, authapi.LoadConfigFromEnv(), users, sessions, pwCfg)
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := realtime.NewMetrics(a.registry)

	rtCfg := realtime.LoadConfigFromEnv()
	a.monitor = realtime.NewLivenessMonitor(rtCfg, a.log, metrics)

	table := realtime.NewRouteTable()
	for _, pattern := range rtCfg.Routes {
		h, err := realtime.NewConnHandler(handlerName(pattern), realtime.HandlerOptions{
			Verifier: sessions,
			Members:  members,
			Monitor:  a.monitor,
			Config:   rtCfg,
			Log:      a.log,
			Metrics:  metrics,
		})
		if err != nil {
			return err
		}
		if err := table.Register(pattern, h); err != nil {
			return err
		}
	}
	a.routes = rtCfg.Routes

	a.gateway, err = realtime.NewGateway(rtCfg, table, sessions, a.monitor, a.log, metrics)
	return err
}

func devMembershipStore(spec string) (*realtime.InMemoryMembershipStore, error) {
	store := realtime.NewInMemoryMembershipStore()
	seed, err := parseMemberships(spec)
	if err != nil {
		return nil, err
	}
	for convID, pids := range seed {
		store.SetMembers(convID, pids...)
	}
	return store, nil
}

// Run serves HTTP and runs the liveness monitor until ctx is done or either fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		base := runtimeBaseURL(a.cfg.HTTPAddr)
		a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "base_url", base, "ws_url", wsBaseURL(base),
			"routes", a.routes, "db_enabled", a.pool != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.monitor.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		// Hijacked websocket conns are not tracked by Shutdown.
		a.monitor.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	err := g.Wait()
	a.Close()
	a.log.Info("server.stopped")
	return err
}

// Close releases the credential store and the DB pool. Safe on a partially built App.
func (a *App) Close() {
	if a.tokens != nil {
		if err := a.tokens.Close(); err != nil {
			a.log.Error("cache.close.fail", "err", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
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
