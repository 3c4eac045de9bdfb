package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"legalhelp/api/internal/app"
	"legalhelp/api/internal/blob"
	"legalhelp/api/internal/compliance"
	"legalhelp/api/internal/config"
	"legalhelp/api/internal/export"
	"legalhelp/api/internal/generation"
	"legalhelp/api/internal/lineage"
	"legalhelp/api/internal/logger"
	"legalhelp/api/internal/metrics"
	"legalhelp/api/internal/normalize"
	"legalhelp/api/internal/store"
	"legalhelp/api/internal/usage"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the environment is read")
	flag.Parse()

	loader, err := config.Load(config.Options{File: *configPath, EnvFile: *envFile})
	if err != nil {
		logger.New("info", "json").Fatal("config load failed: " + err.Error())
	}
	cfg := loader.Config()

	zl := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = zl.Sync() }()
	log := logger.NewZapAdapter(zl)
	fatal := func(msg string, err error) {
		log.WithError(err).Error(msg, nil)
		_ = zl.Sync()
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.Database.URL)
	if err != nil {
		fatal("database connection failed", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.Database.MigrationsDir); err != nil {
		fatal("migrations failed", err)
	}

	checks := map[string]app.Pinger{}

	var blobs store.BlobReader
	if strings.TrimSpace(cfg.Storage.Endpoint) != "" {
		blobStore, err := blob.New(blob.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			fatal("object storage setup failed", err)
		}
		blobs = blobStore
		checks["storage"] = blobStore
	}

	dataStore := store.NewPostgresStore(db, blobs)
	checks["database"] = dataStore

	var (
		counter     generation.UsageCounter = dataStore
		usageReader app.UsageReader
	)
	if strings.TrimSpace(cfg.Redis.URL) != "" {
		log.Info("using redis for usage counters", nil)
		redisStore, err := usage.NewRedisStore(cfg.Redis.URL)
		if err != nil {
			fatal("redis connection failed", err)
		}
		defer redisStore.Close()
		counter = redisStore
		usageReader = redisStore
		checks["redis"] = redisStore
	} else {
		log.Info("using postgres for usage counters", nil)
	}

	var (
		archive  generation.Archive
		versions app.VersionReader
	)
	if cfg.Archive.Enabled {
		if err := os.MkdirAll(cfg.Archive.Dir, 0o755); err != nil {
			fatal("failed to create lineage dir", err)
		}
		lineageArchive := lineage.New(cfg.Archive.Dir)
		archive = lineageArchive
		versions = lineageArchive
	}

	jurisdiction, err := normalize.Singapore.WithCurrency(cfg.Generation.Currency)
	if err != nil {
		fatal("invalid currency", err)
	}
	policy, err := compliance.ParsePolicy(cfg.Generation.CompliancePolicy)
	if err != nil {
		fatal("invalid compliance policy", err)
	}

	collector := metrics.New()
	formatter := export.NewFormatter(
		&export.ChromeEngine{ExecPath: cfg.PDF.ChromePath, Timeout: cfg.PDF.Timeout},
		export.WithJurisdiction(jurisdiction),
	)
	service := generation.NewService(generation.Deps{
		Templates: dataStore,
		History:   dataStore,
		Usage:     counter,
		Archive:   archive,
		Formatter: formatter,
		Metrics:   collector,
		Logger:    log,
	},
		generation.WithPolicy(policy),
		generation.WithPersistTimeout(cfg.Generation.PersistTimeout),
		generation.WithJurisdiction(jurisdiction),
	)

	loader.Watch(func(next config.Config) {
		p, err := compliance.ParsePolicy(next.Generation.CompliancePolicy)
		if err != nil {
			return
		}
		if p != service.Policy() {
			service.SetPolicy(p)
			log.Info("compliance policy changed", map[string]interface{}{"policy": string(p)})
		}
	}, func(err error) {
		log.WithError(err).Warn("ignoring invalid config change", nil)
	})

	httpServer := app.NewHTTPServer(app.Options{
		Generator:  service,
		Usage:      usageReader,
		Versions:   versions,
		Checks:     checks,
		Metrics:    collector.Handler(),
		Logger:     log,
		CORSOrigin: cfg.CORSOrigin,
	})
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.PDF.Timeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("LegalHelp API listening", map[string]interface{}{"addr": cfg.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("server failed", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error", nil)
	}
	if err := service.Drain(shutdownCtx); err != nil {
		log.WithError(err).Warn("background writes did not finish", nil)
	}
}
