package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"medguard-alert/internal/config"
	"medguard-alert/internal/domain"
)

// ActiveAlertCache 活跃报警缓存管理器
// 每次状态转换后刷新；WebSocket 推送和列表快路径读取
type ActiveAlertCache struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewActiveAlertCache 创建缓存管理器
func NewActiveAlertCache(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *ActiveAlertCache {
	return &ActiveAlertCache{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// key 构建缓存键：medguard:hospital:{id}:active
func (c *ActiveAlertCache) key(hospitalID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Cache.ActiveKeyPrefix,
		hospitalID,
		c.config.Cache.ActiveSuffix,
	)
}

// UpdateActiveAlerts 覆盖写入医院的活跃报警快照（带 TTL）
func (c *ActiveAlertCache) UpdateActiveAlerts(ctx context.Context, hospitalID string, alerts []*domain.Alert) error {
	if hospitalID == "" {
		return fmt.Errorf("hospital_id is required")
	}

	jsonData, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("failed to marshal active alerts: %w", err)
	}

	err = c.redisClient.Set(
		ctx,
		c.key(hospitalID),
		jsonData,
		time.Duration(c.config.Cache.ActiveTTL)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set active alert cache: %w", err)
	}

	c.logger.Debug("Updated active alert cache",
		zap.String("hospital_id", hospitalID),
		zap.Int("alert_count", len(alerts)),
	)

	return nil
}

// GetActiveAlerts 读取医院的活跃报警快照
// 缓存未命中返回 (nil, nil)，调用方回源数据库
func (c *ActiveAlertCache) GetActiveAlerts(ctx context.Context, hospitalID string) ([]*domain.Alert, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("hospital_id is required")
	}

	val, err := c.redisClient.Get(ctx, c.key(hospitalID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active alert cache: %w", err)
	}

	var alerts []*domain.Alert
	if err := json.Unmarshal([]byte(val), &alerts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal active alerts: %w", err)
	}

	return alerts, nil
}

// Invalidate 使医院的快照失效（状态转换后由服务层重建）
func (c *ActiveAlertCache) Invalidate(ctx context.Context, hospitalID string) error {
	if hospitalID == "" {
		return fmt.Errorf("hospital_id is required")
	}

	if err := c.redisClient.Del(ctx, c.key(hospitalID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate active alert cache: %w", err)
	}

	return nil
}

// HospitalIDs 扫描缓存中有快照的医院（WebSocket 广播用）
func (c *ActiveAlertCache) HospitalIDs(ctx context.Context) ([]string, error) {
	pattern := fmt.Sprintf("%s*%s",
		c.config.Cache.ActiveKeyPrefix,
		c.config.Cache.ActiveSuffix,
	)

	var hospitalIDs []string
	iter := c.redisClient.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id := key[len(c.config.Cache.ActiveKeyPrefix):]
		id = id[:len(id)-len(c.config.Cache.ActiveSuffix)]
		hospitalIDs = append(hospitalIDs, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan active alert keys: %w", err)
	}

	return hospitalIDs, nil
}
