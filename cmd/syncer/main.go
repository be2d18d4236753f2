package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"travelhub/internal/adapters/googleplaces"
	"travelhub/internal/adapters/observability"
	"travelhub/internal/adapters/platform"
	"travelhub/internal/adapters/tripadvisor"
	"travelhub/internal/app"
	"travelhub/internal/domain"
	"travelhub/internal/shared"
	mysqlrepo "travelhub/internal/storage/mysql"
)

const chunkSize = 10

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "syncer")
	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())

	items, err := readManifestFile(cfg.SyncManifest)
	if err != nil {
		log.Fatal().Err(err).Str("manifest", cfg.SyncManifest).Msg("manifest not loaded")
	}
	log.Info().
		Str("manifest", cfg.SyncManifest).
		Int("locations", len(items)).
		Int("workers", cfg.SyncWorkers).
		Msg("syncer starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	if err := mysqlrepo.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}
	log.Info().Msg("db ping ok")

	ta, gp := platformClients(cfg)
	if ta == nil && gp == nil {
		log.Fatal().Msg("no platform API key configured")
	}
	svc := app.NewSyncService(ta, gp,
		app.WithRepository(mysqlrepo.New(db)),
		app.WithLanguage(cfg.SyncLanguage),
		app.WithBulkDelay(cfg.BulkDelay),
		app.WithObserver(func(p domain.Platform, ok bool) { observability.ObserveSync(string(p), ok) }),
	)

	succeeded, failed := run(ctx, svc, items, cfg.SyncWorkers)
	log.Info().Int("succeeded", succeeded).Int("failed", failed).Msg("sync completed")
	if failed > 0 {
		os.Exit(1)
	}
}

type bulkSyncer interface {
	BulkSync(ctx context.Context, items []domain.BulkSyncItem) domain.BulkSyncReport
}

// run feeds the manifest to svc in chunks, at most workers chunks at a time.
// Every worker goes through the same svc and so the same platform limiters.
func run(ctx context.Context, svc bulkSyncer, items []domain.BulkSyncItem, workers int) (succeeded, failed int) {
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, chunk := range chunks(items, chunkSize) {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("interrupted; waiting for running chunks")
			break
		}
		wg.Add(1)
		go func(chunk []domain.BulkSyncItem) {
			defer wg.Done()
			defer sem.Release(1)

			rep := svc.BulkSync(ctx, chunk)
			mu.Lock()
			succeeded += rep.Succeeded
			failed += rep.Failed
			mu.Unlock()
		}(chunk)
	}
	wg.Wait()
	return succeeded, failed
}

func chunks(items []domain.BulkSyncItem, size int) [][]domain.BulkSyncItem {
	var out [][]domain.BulkSyncItem
	for size < len(items) {
		out = append(out, items[:size:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

func readManifestFile(path string) ([]domain.BulkSyncItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readManifest(f)
}

// readManifest accepts a bare array of items or an {"items": [...]} object.
func readManifest(r io.Reader) ([]domain.BulkSyncItem, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var items []domain.BulkSyncItem
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapped struct {
			Items []domain.BulkSyncItem `json:"items"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
		items = wrapped.Items
	}

	out := items[:0]
	for _, it := range items {
		if it.InternalID == "" || (it.PlatformIDs.TripAdvisor == "" && it.PlatformIDs.GooglePlaces == "") {
			log.Warn().Str("internal_id", it.InternalID).Msg("manifest entry skipped: missing ids")
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

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
