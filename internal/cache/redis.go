// Package cache provides a Redis-backed cache for per-file analysis
// results, so repeated analyze calls skip re-scanning unchanged uploads.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/dataveil/dataveil/internal/config"
)

// AnalysisEntry is the cached outcome of one analyze call. It carries
// column names, categories and suggested strategies only - never cell
// values.
type AnalysisEntry struct {
	Filename           string            `json:"filename"`
	Columns            []string          `json:"columns"`
	Rows               int               `json:"rows"`
	DetectedPIIColumns []string          `json:"detected_pii_columns"`
	Suggestions        map[string]string `json:"suggestions"`
	RiskLevels         map[string]string `json:"risk_levels"`
	GlobalScore        int               `json:"global_score"`
	CachedAt           time.Time         `json:"cached_at"`
}

// AnalysisCache caches analysis results in Redis.
type AnalysisCache struct {
	client *redis.Client
	config config.CacheConfig
	logger *zap.Logger
}

// NewAnalysisCache connects to Redis and verifies the connection.
func NewAnalysisCache(cfg config.CacheConfig, logger *zap.Logger) (*AnalysisCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	cache := &AnalysisCache{
		client: client,
		config: cfg,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Analysis cache initialized",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Duration("default_ttl", cfg.DefaultTTL),
	)

	return cache, nil
}

// Get returns the cached analysis for a file, or (nil, nil) on a miss.
func (c *AnalysisCache) Get(ctx context.Context, filename string, size int64) (*AnalysisEntry, error) {
	data, err := c.client.Get(ctx, c.key(filename, size)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var entry AnalysisEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse cached analysis: %w", err)
	}

	c.logger.Debug("Analysis cache hit", zap.String("filename", filename))
	return &entry, nil
}

// Set stores an analysis result with the configured TTL.
func (c *AnalysisCache) Set(ctx context.Context, entry *AnalysisEntry, size int64) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis entry: %w", err)
	}

	if err := c.client.Set(ctx, c.key(entry.Filename, size), data, c.config.DefaultTTL).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Invalidate removes a file's cached analysis, e.g. after re-upload.
func (c *AnalysisCache) Invalidate(ctx context.Context, filename string, size int64) error {
	return c.client.Del(ctx, c.key(filename, size)).Err()
}

// Close closes the Redis connection.
func (c *AnalysisCache) Close() error {
	return c.client.Close()
}

// key hashes filename and size so a re-uploaded file with new content
// misses the stale entry.
func (c *AnalysisCache) key(filename string, size int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", filename, size)))
	return c.config.KeyPrefix + hex.EncodeToString(sum[:16])
}

// maskRedisURL hides credentials for logging.
func maskRedisURL(url string) string {
	if at := strings.LastIndex(url, "@"); at != -1 {
		if scheme := strings.Index(url, "://"); scheme != -1 {
			return url[:scheme+3] + "***" + url[at:]
		}
	}
	return url
}
