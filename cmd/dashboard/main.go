// Command dashboard serves the read-only analytics API over the RequestLog
// and OcrResponse event tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/apiwatch/dashboard/internal/analytics"
	"github.com/apiwatch/dashboard/internal/api"
	"github.com/apiwatch/dashboard/internal/api/handlers/dashboard"
	"github.com/apiwatch/dashboard/internal/config"
	"github.com/apiwatch/dashboard/internal/daterange"
	"github.com/apiwatch/dashboard/internal/exchangerate"
	"github.com/apiwatch/dashboard/internal/logging"
	"github.com/apiwatch/dashboard/internal/pricing"
	"github.com/apiwatch/dashboard/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.WithError(err).Error("fatal")
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.DefaultConfigFile, "path to the YAML configuration file")
	migrate := flag.Bool("migrate", false, "create missing event tables and exit")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.Logging, cfg.Debug)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	log.WithFields(log.Fields{
		"port":      cfg.Port,
		"driver":    cfg.Database.Driver,
		"max_conns": cfg.Database.MaxConns,
		"timezone":  cfg.Analytics.Timezone,
	}).Info("config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, store.Options{
		Driver:          store.Dialect(cfg.Database.Driver),
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() { _ = db.Close() }()

	if *migrate || cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if *migrate {
			log.Info("migrations applied")
			return nil
		}
	}

	rates := newRateCache(cfg.ExchangeRate)
	refresher := exchangerate.NewRefresher(rates, cfg.ExchangeRate.RefreshInterval)
	if refresher != nil {
		refresher.Start()
		defer refresher.Stop()
	}

	loc, err := cfg.Analytics.Location()
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	normalizer := daterange.NewNormalizer(loc)
	normalizer.MaxDays = cfg.Analytics.MaxDays

	svc, err := analytics.NewService(db, analytics.Options{
		Normalizer: normalizer,
		Rates:      rates,
		Pricing: pricing.Pricing{
			InputPerMillion:  cfg.OCR.InputPerMillion,
			OutputPerMillion: cfg.OCR.OutputPerMillion,
		},
		OcrPath:         cfg.OCR.Path,
		OcrMethod:       cfg.OCR.Method,
		CacheTTL:        cfg.Analytics.CacheTTL,
		CacheMaxEntries: cfg.Analytics.CacheMaxEntries,
	})
	if err != nil {
		return fmt.Errorf("analytics: %w", err)
	}
	defer svc.Close()

	server := api.NewServer(cfg, dashboard.NewHandler(svc, rates))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// newRateCache builds the exchange rate cache and seeds it from the
// snapshot of a previous run when one exists.
func newRateCache(cfg config.ExchangeRateConfig) *exchangerate.Cache {
	opts := []exchangerate.Option{
		exchangerate.WithTTL(cfg.TTL),
		exchangerate.WithFallbackRate(cfg.Fallback),
	}
	if cfg.SnapshotPath != "" {
		opts = append(opts, exchangerate.WithSnapshot(cfg.SnapshotPath))
	}
	rates := exchangerate.NewCache(exchangerate.NewHTTPFetcher(cfg.URL, cfg.Timeout), opts...)

	if cfg.SnapshotPath == "" {
		return rates
	}
	snapshot, ok, err := exchangerate.LoadSnapshot(cfg.SnapshotPath)
	switch {
	case err != nil:
		log.WithError(err).Warn("failed to load exchange rate snapshot")
	case ok:
		rates.Restore(snapshot)
		log.WithField("rate", snapshot.Rate).Debug("exchange rate restored from snapshot")
	}
	return rates
}
