package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agrotrace/agrocheck/internal/audit"
	"github.com/agrotrace/agrocheck/internal/auth"
	"github.com/agrotrace/agrocheck/internal/cache"
	"github.com/agrotrace/agrocheck/internal/checker"
	"github.com/agrotrace/agrocheck/internal/checker/checkers"
	"github.com/agrotrace/agrocheck/internal/db"
	"github.com/agrotrace/agrocheck/internal/geocode"
	"github.com/agrotrace/agrocheck/internal/health"
	"github.com/agrotrace/agrocheck/internal/input"
	"github.com/agrotrace/agrocheck/internal/orchestrator"
)

// env holds the wired application dependencies shared by the commands.
type env struct {
	Pool         db.Pool
	PoolCloser   func()
	Redis        *redis.Client
	Cache        *cache.ResultCache
	Registry     *checker.Registry
	Orchestrator *orchestrator.Orchestrator
	AuditStore   audit.Store
	Auth         *auth.Authenticator
	Monitor      *health.Monitor
}

// initEnv wires the application from configuration. Components downstream of
// the pool share one connection pool.
func initEnv(ctx context.Context) (*env, error) {
	if cfg.Database.URL == "" {
		return nil, eris.New("database.url is required (AGROCHECK_DATABASE_URL)")
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL, db.PoolConfig{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, err
	}

	e := &env{Pool: pool, PoolCloser: pool.Close}

	// Redis is optional; without it every checker run goes to the database.
	if cfg.Cache.Enabled {
		client, err := cache.NewRedisClient(cfg.Cache.URL)
		if err != nil {
			e.Close()
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			zap.L().Warn("redis unreachable, caching disabled", zap.Error(err))
			client.Close()
		} else {
			e.Redis = client
		}
	}
	e.Cache = cache.NewResultCache(e.Redis, e.Redis != nil)

	providers := []geocode.Provider{
		geocode.NewNominatimProvider(
			cfg.Geocode.NominatimBaseURL,
			cfg.Geocode.UserAgent,
			geocode.WithNominatimRateLimit(cfg.Geocode.RateLimitRPS),
		),
		geocode.NewLocationIQProvider(cfg.Geocode.LocationIQURL, cfg.Geocode.LocationIQKey),
	}
	geocoder := geocode.NewCascadeClient(pool, providers,
		geocode.WithCacheTTLDays(cfg.Geocode.CacheTTLDays),
	)

	registry, err := checkers.BuildRegistry(cfg.Checkers, pool)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Registry = registry

	switch cfg.Audit.Driver {
	case "sqlite":
		store, err := audit.NewSQLite(cfg.Audit.SQLitePath)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.AuditStore = store
	default:
		e.AuditStore = audit.NewPostgres(pool)
	}

	e.Auth = auth.New(pool)
	e.Monitor = health.NewMonitor(pool, e.Cache, cfg.Health)

	e.Orchestrator = orchestrator.New(
		input.NewNormalizer(geocoder),
		registry,
		checker.NewRunner(e.Cache),
		e.AuditStore,
		cfg.Server.APIVersion,
		cfg.Server.RequestSlack(),
	)

	return e, nil
}

// Close releases everything initEnv opened.
func (e *env) Close() {
	if e.AuditStore != nil {
		e.AuditStore.Close()
	}
	if e.Redis != nil {
		e.Redis.Close()
	}
	if e.PoolCloser != nil {
		e.PoolCloser()
	}
}
