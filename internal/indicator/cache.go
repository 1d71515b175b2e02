package indicator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
)

// Cache stores resolved indicator values per country code.
type Cache interface {
	Get(ctx context.Context, country string) ([]*float64, bool, error)
	Set(ctx context.Context, country string, values []*float64) error
}

type RedisCache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to redis and verifies it with a ping. An empty
// address disables caching and returns nil.
func NewRedisCache(ctx context.Context, cfg config.RedisConfig, ttl time.Duration, log *logger.Logger) (*RedisCache, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{
		log:    log.With("service", "IndicatorCache"),
		rdb:    rdb,
		prefix: cfg.Prefix,
		ttl:    ttl,
	}, nil
}

func (c *RedisCache) key(country string) string {
	return c.prefix + "wb:" + country
}

// Cached entries are keyed by indicator name so a catalog change invalidates them.
type cachedSet map[string]*float64

func (c *RedisCache) Get(ctx context.Context, country string) ([]*float64, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(country)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var set cachedSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, false, nil
	}
	out := make([]*float64, len(Catalog))
	for i, d := range Catalog {
		v, ok := set[d.Name]
		if !ok {
			return nil, false, nil
		}
		out[i] = v
	}
	return out, true, nil
}

func (c *RedisCache) Set(ctx context.Context, country string, values []*float64) error {
	if len(values) != len(Catalog) {
		return fmt.Errorf("cache set: %d values for %d indicators", len(values), len(Catalog))
	}
	set := make(cachedSet, len(values))
	for i, d := range Catalog {
		set[d.Name] = values[i]
	}
	b, err := json.Marshal(set)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(country), b, c.ttl).Err()
}

func (c *RedisCache) Close() error { return c.rdb.Close() }
