// Package main wires together the scrape service binary.
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

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Bai-ee/Agent-cy/internal/api"
	"github.com/Bai-ee/Agent-cy/internal/clock/system"
	"github.com/Bai-ee/Agent-cy/internal/config"
	"github.com/Bai-ee/Agent-cy/internal/dispatcher"
	collyfetcher "github.com/Bai-ee/Agent-cy/internal/fetcher/colly"
	headlessfetcher "github.com/Bai-ee/Agent-cy/internal/fetcher/headless"
	"github.com/Bai-ee/Agent-cy/internal/hash/sha256"
	"github.com/Bai-ee/Agent-cy/internal/id/uuid"
	"github.com/Bai-ee/Agent-cy/internal/logging"
	"github.com/Bai-ee/Agent-cy/internal/metrics"
	memorypublisher "github.com/Bai-ee/Agent-cy/internal/publisher/memory"
	pubsubpublisher "github.com/Bai-ee/Agent-cy/internal/publisher/pubsub"
	queueMemory "github.com/Bai-ee/Agent-cy/internal/queue/memory"
	"github.com/Bai-ee/Agent-cy/internal/ratelimit"
	"github.com/Bai-ee/Agent-cy/internal/retry"
	"github.com/Bai-ee/Agent-cy/internal/scrape"
	gcsStorage "github.com/Bai-ee/Agent-cy/internal/storage/gcs"
	localStorage "github.com/Bai-ee/Agent-cy/internal/storage/local"
	memoryStorage "github.com/Bai-ee/Agent-cy/internal/storage/memory"
	postgresStorage "github.com/Bai-ee/Agent-cy/internal/storage/postgres"
	"github.com/Bai-ee/Agent-cy/internal/strategy"
	"github.com/Bai-ee/Agent-cy/internal/summarize"
	"github.com/Bai-ee/Agent-cy/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
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
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobStore, closeJobStore, err := buildJobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("job store init failed", zap.Error(err))
	}
	defer closeJobStore()

	blobStore, err := buildBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	publisher, closePublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer closePublisher()

	queue := queueMemory.NewQueue(cfg.Jobs.QueueDepth)
	hasher := sha256.New()
	clock := system.New()
	idGen := uuid.New()

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Fetch.DomainRPS,
		DefaultBurst: cfg.Fetch.DomainBurst,
	})
	lightweight := collyfetcher.New(collyfetcher.Config{
		Timeout: cfg.FetchTimeout(),
		Retry: retry.Spec{
			MaxAttempts: cfg.Fetch.MaxRetries,
			BaseDelay:   time.Duration(cfg.Fetch.BackoffBaseMs) * time.Millisecond,
		},
	}, limiter, logger.Named("fetch"))

	var rendered scrape.Fetcher
	if cfg.Headless.Enabled {
		headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Headless.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("rendered fetcher init failed, falling back to lightweight only", zap.Error(err))
		} else {
			rendered = headless
			defer headless.Close()
		}
	}

	var summarizer scrape.Summarizer
	if cfg.Summarizer.APIKey != "" {
		summarizer = summarize.NewChain(
			openai.NewClient(cfg.Summarizer.APIKey),
			summarize.Config{
				Model:         cfg.Summarizer.Model,
				FallbackModel: cfg.Summarizer.FallbackModel,
				MaxInputChars: cfg.Summarizer.MaxInputChars,
				MaxTokens:     cfg.Summarizer.MaxTokens,
			},
			logger.Named("summarize"),
		)
	} else {
		// Without an API key the chain starts at the degraded tier.
		summarizer = summarize.NewChain(nil, summarize.Config{
			MaxInputChars: cfg.Summarizer.MaxInputChars,
		}, logger.Named("summarize"))
	}

	staticDomains := cfg.Strategy.StaticDomains
	if len(staticDomains) == 0 {
		staticDomains = strategy.DefaultStaticDomains
	}

	pipeline := worker.NewPipeline(
		lightweight,
		rendered,
		summarizer,
		blobStore,
		hasher,
		clock,
		idGen,
		worker.PipelineConfig{
			Strategy: strategy.Config{
				RenderEnabled: cfg.Strategy.RenderEnabled,
				StaticDomains: staticDomains,
			},
			BlobPrefix: cfg.Storage.Prefix,
		},
		logger.Named("pipeline"),
	)

	workerCfg := worker.Config{
		Concurrency: cfg.Jobs.Concurrency,
		Topic:       cfg.PubSub.TopicName,
	}
	var workers []*worker.Worker
	for i := 0; i < cfg.Jobs.Workers; i++ {
		workers = append(workers, worker.New(
			queue,
			jobStore,
			blobStore,
			publisher,
			pipeline,
			clock,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	syncWorker := worker.New(nil, jobStore, blobStore, publisher, pipeline, clock, workerCfg, logger.Named("sync"))
	apiServer := api.NewServer(jobStore, dispatch, syncWorker, idGen, clock, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", cfg.Jobs.Workers))
		dispatch.Run(ctx)
	}()

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
	queue.Close()
}

func buildJobStore(ctx context.Context, cfg config.Config) (scrape.JobStore, func(), error) {
	if cfg.DB.DSN == "" {
		return memoryStorage.NewJobStore(), func() {}, nil
	}
	store, err := postgresStorage.NewJobStore(ctx, postgresStorage.JobStoreConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeMinute) * time.Minute,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("postgres job store: %w", err)
	}
	return store, store.Close, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (scrape.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "", "none":
		return nil, nil
	case "local":
		store, err := localStorage.New(localStorage.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store: %w", err)
		}
		return store, nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		store, err := gcsStorage.New(client, gcsStorage.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (scrape.Publisher, func(), error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return memorypublisher.New(), func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	pub := pubsubpublisher.New(client)
	return pub, pub.Close, nil
}
