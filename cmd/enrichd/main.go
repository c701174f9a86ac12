// Package main wires together the enrichment service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcppubsub "cloud.google.com/go/pubsub"
	gcpstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/radarhq/enrichd/internal/acquire"
	"github.com/radarhq/enrichd/internal/api"
	"github.com/radarhq/enrichd/internal/archive"
	"github.com/radarhq/enrichd/internal/clock/system"
	"github.com/radarhq/enrichd/internal/config"
	"github.com/radarhq/enrichd/internal/embed"
	"github.com/radarhq/enrichd/internal/entity"
	"github.com/radarhq/enrichd/internal/extract"
	"github.com/radarhq/enrichd/internal/hash/sha256"
	"github.com/radarhq/enrichd/internal/id/uuid"
	"github.com/radarhq/enrichd/internal/logging"
	"github.com/radarhq/enrichd/internal/pipeline"
	memorypublisher "github.com/radarhq/enrichd/internal/publisher/memory"
	pubsubpublisher "github.com/radarhq/enrichd/internal/publisher/pubsub"
	"github.com/radarhq/enrichd/internal/ratelimit"
	"github.com/radarhq/enrichd/internal/storage/gcs"
	"github.com/radarhq/enrichd/internal/storage/local"
	memorystorage "github.com/radarhq/enrichd/internal/storage/memory"
	"github.com/radarhq/enrichd/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.New()

	store, closeStore, err := buildStore(ctx, cfg, idGen, clock)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	acquirer, closeAcquirer := buildAcquirer(cfg, clock, logger)
	defer closeAcquirer()

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.RateLimit.RPS,
		DefaultBurst: cfg.RateLimit.Burst,
	})
	extractor, err := buildExtractor(cfg, limiter, logger)
	if err != nil {
		logger.Fatal("extractor init failed", zap.Error(err))
	}

	var embedder entity.Embedder
	if cfg.Embedding.Enabled {
		key := cfg.Embedding.APIKey
		if key == "" {
			key = cfg.LLM.Primary.APIKey
		}
		embedder = embed.New(embed.Config{
			Endpoint: cfg.Embedding.Endpoint,
			Model:    cfg.Embedding.Model,
			APIKey:   key,
			Dim:      cfg.Embedding.Dim,
		}, limiter, logger)
	}

	archiver, closeArchive, err := buildArchiver(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("archive init failed", zap.Error(err))
	}
	defer closeArchive()

	publisher, closePublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer closePublisher()

	pipe, err := pipeline.New(store, acquirer, extractor, embedder, archiver, publisher, clock, pipeline.Config{
		FreshnessInterval: cfg.FreshnessInterval(),
		EventTopic:        cfg.PubSub.TopicName,
	}, logger)
	if err != nil {
		logger.Fatal("pipeline init failed", zap.Error(err))
	}

	apiServer := api.NewServer(store, pipe, cfg, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildStore(ctx context.Context, cfg config.Config, idGen entity.IDGenerator, clock entity.Clock) (entity.Store, func(), error) {
	if cfg.DB.Driver == "postgres" {
		store, err := postgres.NewEntityStore(ctx, postgres.EntityStoreConfig{
			DSN:             cfg.DB.DSN,
			Table:           cfg.DB.Table,
			VectorDim:       cfg.Embedding.Dim,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeMin) * time.Minute,
		}, idGen, clock)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return memorystorage.NewEntityStore(idGen, clock), func() {}, nil
}

func buildAcquirer(cfg config.Config, clock entity.Clock, logger *zap.Logger) (entity.Acquirer, func()) {
	var reader *acquire.Reader
	if cfg.Reader.Endpoint != "" {
		reader = acquire.NewReader(acquire.ReaderConfig{
			Endpoint:  cfg.Reader.Endpoint,
			APIKey:    cfg.Reader.APIKey,
			UserAgent: cfg.Reader.UserAgent,
			Timeout:   time.Duration(cfg.Reader.TimeoutSeconds) * time.Second,
		})
	}
	var direct *acquire.Direct
	if cfg.Direct.Enabled {
		direct = acquire.NewDirect(acquire.DirectConfig{
			UserAgent: cfg.Direct.UserAgent,
			Timeout:   time.Duration(cfg.Direct.TimeoutSeconds) * time.Second,
		})
	}

	closeHeadless := func() {}
	var headless *acquire.Headless
	if cfg.Headless.Enabled {
		h, err := acquire.NewHeadless(acquire.HeadlessConfig{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Direct.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("headless renderer init failed", zap.Error(err))
		} else {
			headless = h
			closeHeadless = h.Close
		}
	}

	detector := acquire.NewHeuristic(cfg.Headless.PromotionThresh)
	chain := acquire.NewChain(reader, direct, headless, detector, clock, acquire.ChainConfig{}, logger)
	return chain, closeHeadless
}

func buildExtractor(cfg config.Config, limiter *ratelimit.Limiter, logger *zap.Logger) (entity.Extractor, error) {
	var providers []extract.Provider
	if cfg.LLM.Primary.APIKey != "" {
		primary, err := extract.NewOpenAIProvider(extract.OpenAIConfig{
			Endpoint:    cfg.LLM.Primary.Endpoint,
			Model:       cfg.LLM.Primary.Model,
			APIKey:      cfg.LLM.Primary.APIKey,
			Temperature: cfg.LLM.Temperature,
		}, logger)
		if err != nil {
			return nil, err
		}
		providers = append(providers, primary)
	}
	if cfg.LLM.Secondary.APIKey != "" {
		secondary, err := extract.NewAnthropicProvider(extract.AnthropicConfig{
			Model:     cfg.LLM.Secondary.Model,
			APIKey:    cfg.LLM.Secondary.APIKey,
			MaxTokens: cfg.LLM.MaxTokens,
		}, logger)
		if err != nil {
			return nil, err
		}
		providers = append(providers, secondary)
	}
	return extract.NewChain(providers, limiter, logger)
}

func buildArchiver(ctx context.Context, cfg config.Config, logger *zap.Logger) (pipeline.SnapshotArchiver, func(), error) {
	var blobs entity.BlobStore
	closeFn := func() {}
	switch cfg.Archive.Backend {
	case "":
		return nil, closeFn, nil
	case "memory":
		blobs = memorystorage.NewBlobStore()
	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.Archive.BaseDir})
		if err != nil {
			return nil, nil, err
		}
		blobs = store
	case "gcs":
		client, err := gcpstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			return nil, nil, err
		}
		blobs = store
		closeFn = func() { _ = client.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
	return archive.New(blobs, sha256.New(), cfg.Archive.Prefix, logger), closeFn, nil
}

func buildPublisher(ctx context.Context, cfg config.Config) (entity.Publisher, func(), error) {
	if !cfg.PubSub.Enabled {
		return memorypublisher.New(), func() {}, nil
	}
	client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	pub, err := pubsubpublisher.New(client)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		pub.Close()
		_ = client.Close()
	}
	return pub, closeFn, nil
}
