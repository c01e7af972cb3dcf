// Package app assembles the services shared by the API server and the
// worker from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"productimport/internal/config"
	"productimport/internal/connectors"
	"productimport/internal/database"
	"productimport/internal/events"
	"productimport/internal/importer"
	"productimport/internal/logger"
	"productimport/internal/progress"
	"productimport/internal/services/shopify"
	"productimport/internal/store"
)

type App struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *database.Database
	Store     *store.Store
	Cache     progress.Cache
	Publisher *events.Publisher
	Tracker   *importer.Tracker
	Importer  *importer.Orchestrator
}

// New connects the database and the optional Redis and Kafka backends.
// Without REDIS_URL progress is cached in memory; without KAFKA_BROKERS no
// jobs or progress events are published.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{
		Config: cfg,
		Logger: log,
		DB:     db,
		Store:  store.New(db.DB),
	}

	if cfg.RedisURL != "" {
		cache, err := progress.NewRedisCache(ctx, cfg.RedisURL, cfg.ProgressTTL)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.Cache = cache
		log.Info("Progress cache: redis")
	} else {
		a.Cache = progress.NewMemoryCache(cfg.ProgressTTL)
		log.Info("Progress cache: in-memory")
	}

	sinks := []importer.ProgressSink{}
	a.Tracker = importer.NewTracker(a.Store, a.Cache, log)
	sinks = append(sinks, a.Tracker)

	if len(cfg.KafkaBrokers) > 0 {
		a.Publisher = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaJobsTopic, cfg.KafkaProgressTopic)
		sinks = append(sinks, progressEvents(a.Publisher))
		log.Info("Publishing import events to %v", cfg.KafkaBrokers)
	}

	remote := connectors.NewRemote(cfg.SourceFetchTimeout, log)
	a.Importer = importer.New(a.Store, a.catalogProvider(), remote, log, importer.Options{
		ItemDelay: cfg.ImportItemDelay,
	}, sinks...)

	return a, nil
}

// catalogProvider builds an Admin API client from the shop's stored token.
func (a *App) catalogProvider() importer.CatalogProvider {
	return func(ctx context.Context, shop string) (importer.CatalogClient, error) {
		conn, err := a.Store.GetShopConnection(ctx, shop)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", importer.ErrShopNotConnected, shop)
		}
		if err != nil {
			return nil, err
		}
		if err := a.Store.TouchShopConnection(ctx, shop, time.Now()); err != nil {
			a.Logger.Warn("Failed to record import time for %s: %v", shop, err)
		}
		return shopify.NewClient(shop, conn.AccessToken, a.Logger, shopify.WithAPIVersion(a.Config.ShopifyAPIVersion)), nil
	}
}

// progressPublishTimeout bounds each progress publish; runs carry no deadline.
const progressPublishTimeout = 5 * time.Second

type progressPublisher interface {
	PublishProgress(ctx context.Context, ev events.ProgressEvent) error
}

func progressEvents(p progressPublisher) importer.SinkFunc {
	return func(ctx context.Context, snap progress.Snapshot) error {
		ctx, cancel := context.WithTimeout(ctx, progressPublishTimeout)
		defer cancel()
		return p.PublishProgress(ctx, events.ProgressEvent{
			SessionID:      snap.SessionID,
			Status:         snap.Status,
			Imported:       snap.Imported,
			Failed:         snap.Failed,
			TotalProducts:  snap.Total,
			CurrentProduct: snap.CurrentProduct,
			Timestamp:      snap.UpdatedAt,
		})
	}
}

func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Error("Failed to close event publisher: %v", err)
		}
	}
	if err := a.Cache.Close(); err != nil {
		a.Logger.Error("Failed to close progress cache: %v", err)
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("Failed to close database: %v", err)
	}
}
