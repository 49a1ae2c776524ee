package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
)

const tradeCacheKeyPrefix = "trades:"

// TradeCache stores complete trade reports per lowercased wallet address
type TradeCache interface {
	Get(ctx context.Context, address string) (*models.TradeReport, bool)
	Set(ctx context.Context, address string, report *models.TradeReport)
	Delete(ctx context.Context, address string)
}

// MemoryTradeCache keeps reports in an in-process expiring LRU
type MemoryTradeCache struct {
	reports *expirable.LRU[string, *models.TradeReport]
}

var _ TradeCache = (*MemoryTradeCache)(nil)

// NewMemoryTradeCache creates an LRU holding at most size reports for ttl
func NewMemoryTradeCache(size int, ttl time.Duration) *MemoryTradeCache {
	if size <= 0 {
		size = 256
	}
	return &MemoryTradeCache{
		reports: expirable.NewLRU[string, *models.TradeReport](size, nil, ttl),
	}
}

func (c *MemoryTradeCache) Get(_ context.Context, address string) (*models.TradeReport, bool) {
	return c.reports.Get(address)
}

func (c *MemoryTradeCache) Set(_ context.Context, address string, report *models.TradeReport) {
	c.reports.Add(address, report)
}

func (c *MemoryTradeCache) Delete(_ context.Context, address string) {
	c.reports.Remove(address)
}

// RedisTradeCache shares reports between instances through Redis.
// Redis failures are logged and treated as misses.
type RedisTradeCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ TradeCache = (*RedisTradeCache)(nil)

// NewRedisTradeCache connects to Redis and verifies the connection
func NewRedisTradeCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisTradeCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisTradeCache{client: client, ttl: ttl}, nil
}

func (c *RedisTradeCache) Get(ctx context.Context, address string) (*models.TradeReport, bool) {
	data, err := c.client.Get(ctx, tradeCacheKeyPrefix+address).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("TradeCache: redis get failed for %s: %v", address, err)
		}
		return nil, false
	}

	var report models.TradeReport
	if err := json.Unmarshal(data, &report); err != nil {
		log.Warnf("TradeCache: dropping undecodable report for %s: %v", address, err)
		c.Delete(ctx, address)
		return nil, false
	}
	relinkSummary(&report)
	return &report, true
}

func (c *RedisTradeCache) Set(ctx context.Context, address string, report *models.TradeReport) {
	data, err := json.Marshal(report)
	if err != nil {
		log.Warnf("TradeCache: failed to marshal report for %s: %v", address, err)
		return
	}
	if err := c.client.Set(ctx, tradeCacheKeyPrefix+address, data, c.ttl).Err(); err != nil {
		log.Warnf("TradeCache: redis set failed for %s: %v", address, err)
	}
}

func (c *RedisTradeCache) Delete(ctx context.Context, address string) {
	if err := c.client.Del(ctx, tradeCacheKeyPrefix+address).Err(); err != nil {
		log.Warnf("TradeCache: redis delete failed for %s: %v", address, err)
	}
}

// Close releases the Redis connection pool
func (c *RedisTradeCache) Close() error {
	return c.client.Close()
}

// NewTradeCache picks Redis when an address is configured and reachable,
// otherwise the in-memory LRU.
func NewTradeCache(ctx context.Context, redisAddr, redisPassword string, redisDB, size int, ttl time.Duration) TradeCache {
	if redisAddr != "" {
		cache, err := NewRedisTradeCache(ctx, redisAddr, redisPassword, redisDB, ttl)
		if err == nil {
			log.Infof("TradeCache: using redis at %s (ttl %s)", redisAddr, ttl)
			return cache
		}
		log.Warnf("TradeCache: %v, falling back to in-memory cache", err)
	}
	log.Infof("TradeCache: using in-memory LRU (size %d, ttl %s)", size, ttl)
	return NewMemoryTradeCache(size, ttl)
}

// relinkSummary points best/worst back at the buckets they were copied from,
// so a decoded report shares bucket identity like a freshly built one.
func relinkSummary(report *models.TradeReport) {
	if best := report.TotalTradeStats.BestTrade; best != nil {
		if bucket, ok := report.TradesByCollection.Get(best.Slug); ok {
			report.TotalTradeStats.BestTrade = bucket
		}
	}
	if worst := report.TotalTradeStats.WorstTrade; worst != nil {
		if bucket, ok := report.TradesByCollection.Get(worst.Slug); ok {
			report.TotalTradeStats.WorstTrade = bucket
		}
	}
}
