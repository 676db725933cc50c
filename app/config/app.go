package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type MongoCfg struct {
	URI         string
	Database    string
	Collection  string
	MinPoolSize uint64
	MaxPoolSize uint64
}

type StoreCfg struct {
	// Driver is one of mongo, postgres, sqlite, meili, memory.
	Driver        string
	PostgresDSN   string
	SQLitePath    string
	MaxConcurrent int64
	AcquireWait   time.Duration
	RatePerSecond float64
	Timeout       time.Duration
}

type MeiliCfg struct {
	Host           string
	APIKey         string
	AddressIndex   string
	ReferenceIndex string
	Timeout        time.Duration
}

type CacheCfg struct {
	// Driver is one of memory, redis, mongo, hybrid, none.
	Driver string
	L1Size int
	TTL    time.Duration
}

type EmbeddingCfg struct {
	URL     string
	Timeout time.Duration
}

type HTTPCfg struct {
	// RateLimit is requests per second across the API; zero disables it.
	RateLimit float64
	RateBurst int
	Gzip      bool
}

// AppCfg holds infrastructure settings for the binaries.
type AppCfg struct {
	Port               string
	Env                string
	HTTP               HTTPCfg
	ResolverConfigPath string
	Mongo              MongoCfg
	Store              StoreCfg
	Meili              MeiliCfg
	RedisURL           string
	Cache              CacheCfg
	Embedding          EmbeddingCfg
	UseLibpostal       bool
	QueueName          string
}

// LoadApp reads app.yaml from ./config or . and the environment.
func LoadApp() (AppCfg, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("http.rate_limit", 0)
	v.SetDefault("http.rate_burst", 50)
	v.SetDefault("http.gzip", true)
	v.SetDefault("resolver.config_path", "")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "address_resolver")
	v.SetDefault("mongo.collection", "addresses")
	v.SetDefault("mongo.min_pool_size", 2)
	v.SetDefault("mongo.max_pool_size", 20)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.postgres_dsn", "postgres://localhost:5432/address_resolver?sslmode=disable")
	v.SetDefault("store.sqlite_path", "address_resolver.db")
	v.SetDefault("store.max_concurrent", 20)
	v.SetDefault("store.acquire_wait", "500ms")
	v.SetDefault("store.rate_per_second", 0)
	v.SetDefault("store.timeout", "2s")
	v.SetDefault("meilisearch.url", "http://localhost:7700")
	v.SetDefault("meilisearch.master_key", "")
	v.SetDefault("meilisearch.address_index", "addresses")
	v.SetDefault("meilisearch.reference_index", "reference_units")
	v.SetDefault("meilisearch.timeout", "5s")
	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.l1_size", 10000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("embedding.url", "")
	v.SetDefault("embedding.timeout", "3s")
	v.SetDefault("libpostal.enabled", false)
	v.SetDefault("queue.name", "resolver:jobs")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return AppCfg{}, err
		}
	}

	return AppCfg{
		Port: v.GetString("app.port"),
		Env:  v.GetString("app.env"),
		HTTP: HTTPCfg{
			RateLimit: v.GetFloat64("http.rate_limit"),
			RateBurst: v.GetInt("http.rate_burst"),
			Gzip:      v.GetBool("http.gzip"),
		},
		ResolverConfigPath: v.GetString("resolver.config_path"),
		Mongo: MongoCfg{
			URI:         v.GetString("mongo.uri"),
			Database:    v.GetString("mongo.database"),
			Collection:  v.GetString("mongo.collection"),
			MinPoolSize: v.GetUint64("mongo.min_pool_size"),
			MaxPoolSize: v.GetUint64("mongo.max_pool_size"),
		},
		Store: StoreCfg{
			Driver:        v.GetString("store.driver"),
			PostgresDSN:   v.GetString("store.postgres_dsn"),
			SQLitePath:    v.GetString("store.sqlite_path"),
			MaxConcurrent: v.GetInt64("store.max_concurrent"),
			AcquireWait:   v.GetDuration("store.acquire_wait"),
			RatePerSecond: v.GetFloat64("store.rate_per_second"),
			Timeout:       v.GetDuration("store.timeout"),
		},
		Meili: MeiliCfg{
			Host:           v.GetString("meilisearch.url"),
			APIKey:         v.GetString("meilisearch.master_key"),
			AddressIndex:   v.GetString("meilisearch.address_index"),
			ReferenceIndex: v.GetString("meilisearch.reference_index"),
			Timeout:        v.GetDuration("meilisearch.timeout"),
		},
		RedisURL: v.GetString("redis.url"),
		Cache: CacheCfg{
			Driver: v.GetString("cache.driver"),
			L1Size: v.GetInt("cache.l1_size"),
			TTL:    v.GetDuration("cache.ttl"),
		},
		Embedding: EmbeddingCfg{
			URL:     v.GetString("embedding.url"),
			Timeout: v.GetDuration("embedding.timeout"),
		},
		UseLibpostal: v.GetBool("libpostal.enabled"),
		QueueName:    v.GetString("queue.name"),
	}, nil
}
