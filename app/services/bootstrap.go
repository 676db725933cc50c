package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/internal/external"
	"github.com/address-resolver/internal/parser"
	"github.com/address-resolver/internal/pipeline"
	"github.com/address-resolver/internal/queue"
	"github.com/address-resolver/internal/search"
	"github.com/address-resolver/internal/store"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Cache and store drivers handled here.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheMongo  = "mongo"
	CacheHybrid = "hybrid"

	StoreMeili = "meili"
)

// Runtime holds everything a binary needs, built from configuration.
type Runtime struct {
	App      config.AppCfg
	Resolver config.ResolverCfg
	Assets   pipeline.Assets
	Pipeline *pipeline.Orchestrator
	Store    store.CandidateStore
	Cache    ICacheService
	Queue    *queue.Queue
	Search   *search.Client

	Addresses *AddressService
	Admin     *AdminService

	// Probes are dependency checks behind the readiness endpoint.
	Probes map[string]func(context.Context) error

	logger  *zap.Logger
	closers []func(context.Context) error
}

// Bootstrap loads assets and connects the configured backends. Optional
// backends that fail to connect are logged and left out; the store does
// not degrade because results would silently lose candidates.
func Bootstrap(ctx context.Context, app config.AppCfg, logger *zap.Logger) (*Runtime, error) {
	rc, err := config.Read(app.ResolverConfigPath)
	if err != nil {
		return nil, err
	}
	config.C = rc

	rt := &Runtime{App: app, Resolver: rc, logger: logger, Probes: map[string]func(context.Context) error{}}
	if rt.Assets, err = pipeline.LoadAssets(rc.Data, logger); err != nil {
		return nil, err
	}

	if app.Meili.Host != "" {
		client, err := search.NewClient(app.Meili, logger.Named("search"))
		if err != nil {
			if app.Store.Driver == StoreMeili {
				return nil, err
			}
			logger.Warn("Meilisearch unavailable, reference search uses the local index", zap.Error(err))
		} else {
			rt.Search = client
			rt.Probes["meilisearch"] = client.Ping
		}
	}

	if rt.Store, err = rt.openStore(ctx); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("open candidate store: %w", err)
	}
	rt.closers = append(rt.closers, rt.Store.Close)

	var redisClient *redis.Client
	if app.RedisURL != "" && (app.QueueName != "" || app.Cache.Driver == CacheRedis || app.Cache.Driver == CacheHybrid) {
		redisClient, err = queue.Connect(ctx, app.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, jobs run in-process", zap.Error(err))
			redisClient = nil
		} else {
			rt.closers = append(rt.closers, func(context.Context) error { return redisClient.Close() })
			rt.Probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
	}
	if redisClient != nil && app.QueueName != "" {
		rt.Queue = queue.New(redisClient, app.QueueName, 0, logger.Named("queue"))
	}

	if rt.Cache, err = rt.openCache(ctx, redisClient); err != nil {
		logger.Warn("Cache unavailable, continuing without cache", zap.Error(err))
		rt.Cache = nil
	}

	var extractor parser.EntityExtractor
	if app.UseLibpostal {
		extractor = external.NewLibpostal(logger.Named("libpostal"))
	}
	rt.Pipeline = pipeline.Build(rc, rt.Assets, pipeline.Options{
		Extractor: extractor,
		Embedder:  external.NewHTTPEmbedder(app.Embedding, logger.Named("embedder")),
		Store:     rt.Store,
	}, logger)

	var refIndex *search.ReferenceIndex
	if rt.Search != nil {
		refIndex = search.NewReferenceIndex(rt.Search)
	}
	rt.Addresses = NewAddressService(rt.Pipeline, rt.Cache, rt.Queue, logger.Named("address"))
	rt.Admin = NewAdminService(rt.Store, rt.Assets.Index, refIndex, rt.Cache, rt.Addresses, logger.Named("admin"))
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context) (store.CandidateStore, error) {
	if rt.App.Store.Driver != StoreMeili {
		return store.Open(ctx, rt.App, rt.logger.Named("store"))
	}
	if rt.Search == nil {
		return nil, errors.New("meili store driver needs meilisearch.url")
	}
	ai := search.NewAddressIndex(rt.Search)
	if err := ai.EnsureSettings(); err != nil {
		return nil, err
	}
	return store.NewPooled(ai, rt.App.Store), nil
}

func (rt *Runtime) openCache(ctx context.Context, redisClient *redis.Client) (ICacheService, error) {
	cfg := rt.App.Cache
	switch cfg.Driver {
	case CacheNone:
		return nil, nil
	case CacheMemory, "":
		return NewCacheService(cfg.L1Size, cfg.TTL), nil
	case CacheRedis:
		if redisClient == nil {
			return nil, errors.New("redis cache needs a reachable redis.url")
		}
		return NewRedisCacheServiceWithClient(redisClient, cfg.TTL, rt.logger.Named("cache")), nil
	case CacheMongo, CacheHybrid:
		mc, err := rt.openMongoCache(ctx)
		if err != nil {
			return nil, err
		}
		if cfg.Driver == CacheMongo {
			return mc, nil
		}
		if redisClient == nil {
			return nil, errors.New("hybrid cache needs a reachable redis.url")
		}
		hc := NewHybridCacheService(NewRedisCacheServiceWithClient(redisClient, cfg.TTL, rt.logger.Named("cache")), mc, rt.logger.Named("cache"))
		if _, err := hc.WarmUp(ctx, cfg.L1Size/10); err != nil {
			rt.logger.Warn("Cache warm up failed", zap.Error(err))
		}
		return hc, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

func (rt *Runtime) openMongoCache(ctx context.Context) (*MongoCacheService, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(rt.App.Mongo.URI).
		SetMinPoolSize(rt.App.Mongo.MinPoolSize).
		SetMaxPoolSize(rt.App.Mongo.MaxPoolSize))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	rt.closers = append(rt.closers, client.Disconnect)
	rt.Probes["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	return NewMongoCacheService(ctx, client.Database(rt.App.Mongo.Database), rt.App.Cache.L1Size, rt.logger.Named("cache"))
}

// Close releases backends in reverse order of opening.
func (rt *Runtime) Close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			rt.logger.Warn("Close failed", zap.Error(err))
		}
	}
	rt.closers = nil
}
