package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"travelhub/internal/adapters/elastic"
	"travelhub/internal/adapters/googleplaces"
	server "travelhub/internal/adapters/http_server"
	"travelhub/internal/adapters/locationstore"
	"travelhub/internal/adapters/memcache"
	"travelhub/internal/adapters/observability"
	"travelhub/internal/adapters/platform"
	redisad "travelhub/internal/adapters/redis"
	"travelhub/internal/adapters/tripadvisor"
	"travelhub/internal/app"
	"travelhub/internal/domain"
	"travelhub/internal/shared"
	mysqlrepo "travelhub/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api")
	reg := observability.InitRegistry()

	// db: the sync gateway still works without it, snapshots are just not kept
	var repo domain.SyncRepository
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Warn().Err(err).Msg("database unavailable; sync persistence disabled")
	} else if err := mysqlrepo.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	} else {
		repo = mysqlrepo.New(db)
		log.Info().Msg("database connection ok")
	}

	cache := newCache(ctx, cfg)
	store := newStore(cfg)

	// search engine
	catalog := app.NewCatalog(store, cache, cfg.CacheTTL)
	history := app.NewSearchHistory(app.DefaultHistoryCapacity)
	trending := app.NewTrendingCache(app.NewTrendingBuilder(store, catalog, history, time.Now), cfg.TrendingInterval)
	go trending.Run(ctx)
	engine := app.NewEngine(store, catalog, history, trending)

	// sync gateway
	ta, gp := platformClients(cfg)
	opts := []app.SyncOption{
		app.WithCatalog(catalog),
		app.WithLanguage(cfg.SyncLanguage),
		app.WithBulkDelay(cfg.BulkDelay),
		app.WithObserver(func(p domain.Platform, ok bool) { observability.ObserveSync(string(p), ok) }),
	}
	if repo != nil {
		opts = append(opts, app.WithRepository(repo))
	}
	syncer := app.NewSyncService(ta, gp, opts...)

	// http
	srv := server.New(server.Options{
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.HTTPRateLimitMin,
		// bulk sync runs inline and waits on platform windows
		Timeout: 2 * time.Minute,
	})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Search: engine, Sync: syncer})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newCache prefers redis and falls back to an in-process cache when it is unreachable.
func newCache(ctx context.Context, cfg shared.Config) domain.Cache {
	rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable; using in-memory cache")
		_ = rc.Close()
		return memcache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return rc
}

func newStore(cfg shared.Config) domain.LocationStore {
	switch cfg.StoreBackend {
	case "elasticsearch", "elastic":
		s, err := elastic.New(cfg.ESAddr, cfg.ESIndex)
		if err != nil {
			log.Fatal().Err(err).Msg("elasticsearch store init failed")
		}
		log.Info().Str("addr", cfg.ESAddr).Str("index", cfg.ESIndex).Msg("location store: elasticsearch")
		return s
	default:
		s, err := locationstore.New(cfg.StoreBase, cfg.StoreKey, cfg.StoreRPS, cfg.UpstreamTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("location store init failed")
		}
		log.Info().Str("base", cfg.StoreBase).Msg("location store: rest")
		return s
	}
}

// platformClients builds one client per configured platform. A platform
// without a key stays nil and its syncs fail with "not configured".
func platformClients(cfg shared.Config) (ta, gp domain.PlatformClient) {
	taLimiter := platform.NewWindowLimiter(string(domain.PlatformTripAdvisor), cfg.TripAdvisor.Quota)
	gpLimiter := platform.NewWindowLimiter(string(domain.PlatformGooglePlaces), cfg.GooglePlaces.Quota)

	if c, err := tripadvisor.New(tripadvisor.Config{
		BaseURL: cfg.TripAdvisor.BaseURL,
		APIKey:  cfg.TripAdvisor.APIKey,
		Timeout: cfg.UpstreamTimeout,
	}, taLimiter); err != nil {
		log.Warn().Err(err).Msg("tripadvisor sync disabled")
	} else {
		ta = c
	}
	if c, err := googleplaces.New(googleplaces.Config{
		BaseURL: cfg.GooglePlaces.BaseURL,
		APIKey:  cfg.GooglePlaces.APIKey,
		Timeout: cfg.UpstreamTimeout,
	}, gpLimiter); err != nil {
		log.Warn().Err(err).Msg("google places sync disabled")
	} else {
		gp = c
	}
	return ta, gp
}
