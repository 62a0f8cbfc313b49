package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/config"
)

// Cache 赔率读视图缓存（Redis）。addr未配置时所有操作为no-op，
// 缓存异常只降级为直查数据库，从不阻断请求
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// New 创建缓存，cfg.Addr为空时返回禁用态的实例
func New(cfg *config.RedisConfig, logger *logrus.Logger) *Cache {
	c := &Cache{ttl: cfg.TTL, logger: logger}
	if cfg.Addr == "" {
		logger.Info("Redis未配置，赔率视图缓存已禁用")
		return c
	}
	c.rdb = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return c
}

// GetJSON 命中时反序列化到dest并返回true
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	if c.rdb == nil {
		return false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("key", key).Warn("缓存读取失败")
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("缓存内容反序列化失败")
		return false
	}
	return true
}

// SetJSON 写入带TTL的JSON值
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}) {
	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("缓存内容序列化失败")
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("缓存写入失败")
	}
}

// DeletePattern 按模式批量失效（采集完成后清掉所有赔率视图）
func (c *Cache) DeletePattern(ctx context.Context, pattern string) {
	if c.rdb == nil {
		return
	}
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.WithError(err).WithField("pattern", pattern).Warn("缓存扫描失败")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.WithError(err).WithField("pattern", pattern).Warn("缓存批量删除失败")
	}
}
