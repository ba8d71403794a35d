package main

import (
	"context"
	"fmt"

	gcpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/config"
	collyfetcher "github.com/JakeFAU/catalog-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/catalog-crawler/internal/fetcher/retry"
	"github.com/JakeFAU/catalog-crawler/internal/orchestrator"
	"github.com/JakeFAU/catalog-crawler/internal/policy/ratelimit"
	pubmemory "github.com/JakeFAU/catalog-crawler/internal/publisher/memory"
	pubpubsub "github.com/JakeFAU/catalog-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/catalog-crawler/internal/storage/gcs"
	"github.com/JakeFAU/catalog-crawler/internal/storage/local"
	"github.com/JakeFAU/catalog-crawler/internal/storage/memory"
	"github.com/JakeFAU/catalog-crawler/internal/storage/postgres"
)

// newBlobStore selects the configured backend. The returned func releases
// backend clients.
func newBlobStore(ctx context.Context, cfg config.StorageConfig) (catalog.BlobStore, func(), error) {
	switch cfg.Backend {
	case "memory":
		return memory.NewBlobStore(), func() {}, nil
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.Prefix})
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("gcs blob store: %w", err)
		}
		return store, func() { _ = client.Close() }, nil
	default:
		store, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, nil, fmt.Errorf("local blob store: %w", err)
		}
		return store, func() {}, nil
	}
}

func newRecordStore(ctx context.Context, cfg config.DBConfig) (*postgres.RecordStore, error) {
	store, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.DSN,
		Table:    cfg.Table,
		MaxConns: cfg.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("record store: %w", err)
	}
	if err := store.EnsureTable(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func newPublisher(ctx context.Context, cfg config.PubSubConfig, logger *zap.Logger) (catalog.Publisher, func(), error) {
	if cfg.DryRun {
		return pubmemory.New(logger), func() {}, nil
	}
	client, err := gcpubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub := pubpubsub.New(client, cfg.TopicName)
	return pub, func() {
		pub.Close()
		_ = client.Close()
	}, nil
}

// newDeps builds the fetch side of the crawler: one colly client per phase,
// the identity pool and the optional per-host limiter.
func newDeps(cfg config.Config, logger *zap.Logger) (orchestrator.Deps, error) {
	agents, err := retry.NewAgentPool(cfg.Crawler.UserAgents)
	if err != nil {
		return orchestrator.Deps{}, fmt.Errorf("user agents: %w", err)
	}
	httpCfg := collyfetcher.Config{
		Timeout:            cfg.HTTP.Timeout(),
		InsecureSkipVerify: cfg.HTTP.InsecureSkipVerify,
	}
	deps := orchestrator.Deps{
		NewClient: func() (catalog.Client, error) {
			return collyfetcher.New(httpCfg), nil
		},
		Agents: agents,
		Logger: logger.Named("crawler"),
	}
	if cfg.Crawler.RateLimitRPS > 0 {
		deps.Limiter = ratelimit.New(ratelimit.Config{
			RPS:   cfg.Crawler.RateLimitRPS,
			Burst: cfg.Crawler.RateLimitBurst,
		})
	}
	return deps, nil
}
