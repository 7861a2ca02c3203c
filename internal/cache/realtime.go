package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"

	"go.uber.org/zap"
)

// RealtimeSnapshot 设备最新一帧数据的缓存形态
type RealtimeSnapshot struct {
	Frame    models.TelemetryFrame  `json:"frame"`
	Analysis *models.AnalysisResult `json:"analysis,omitempty"`
	CachedAt time.Time              `json:"cached_at"`
}

// RealtimeCache Redis 实时缓存管理器
// 每个设备两个键：最新一帧（无 TTL，永远保留最后已知状态）
// 和最近一次报警（带 TTL，过期即视为报警解除）
type RealtimeCache struct {
	config *config.Config
	kv     KVStore
	logger *zap.Logger
}

// NewRealtimeCache 创建实时缓存管理器
func NewRealtimeCache(cfg *config.Config, kv KVStore, logger *zap.Logger) *RealtimeCache {
	return &RealtimeCache{
		config: cfg,
		kv:     kv,
		logger: logger,
	}
}

func (c *RealtimeCache) realtimeKey(deviceID string) string {
	return fmt.Sprintf("%s%s%s", c.config.Cache.RealtimeKeyPrefix, deviceID, c.config.Cache.RealtimeSuffix)
}

func (c *RealtimeCache) alertKey(deviceID string) string {
	return fmt.Sprintf("%s%s%s", c.config.Cache.RealtimeKeyPrefix, deviceID, c.config.Cache.AlertSuffix)
}

// UpdateRealtime 更新设备的实时数据缓存
func (c *RealtimeCache) UpdateRealtime(ctx context.Context, frame models.TelemetryFrame, analysis *models.AnalysisResult) error {
	snapshot := RealtimeSnapshot{
		Frame:    frame,
		Analysis: analysis,
		CachedAt: time.Now(),
	}

	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime snapshot: %w", err)
	}

	key := c.realtimeKey(frame.DeviceID)
	if err := c.kv.Set(ctx, key, string(jsonData), 0); err != nil {
		return fmt.Errorf("failed to set realtime cache: %w", err)
	}

	c.logger.Debug("Updated realtime cache",
		zap.String("device_id", frame.DeviceID),
		zap.String("key", key),
	)
	return nil
}

// GetRealtime 读取设备的实时数据缓存
func (c *RealtimeCache) GetRealtime(ctx context.Context, deviceID string) (*RealtimeSnapshot, error) {
	raw, err := c.kv.Get(ctx, c.realtimeKey(deviceID))
	if err != nil {
		return nil, err
	}

	var snapshot RealtimeSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal realtime snapshot: %w", err)
	}
	return &snapshot, nil
}

// UpdateAlert 写入设备最近一次报警（带 TTL，过期即视为报警解除）
func (c *RealtimeCache) UpdateAlert(ctx context.Context, event models.EmergencyEvent) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal emergency event: %w", err)
	}

	ttl := time.Duration(c.config.Cache.AlertTTL) * time.Second
	key := c.alertKey(event.DeviceID)
	if err := c.kv.Set(ctx, key, string(jsonData), ttl); err != nil {
		return fmt.Errorf("failed to set alert cache: %w", err)
	}

	c.logger.Debug("Updated alert cache",
		zap.String("device_id", event.DeviceID),
		zap.String("event_id", event.EventID),
		zap.Duration("ttl", ttl),
	)
	return nil
}

// GetAlert 读取设备最近一次报警（过期或不存在返回 ErrCacheMiss）
func (c *RealtimeCache) GetAlert(ctx context.Context, deviceID string) (*models.EmergencyEvent, error) {
	raw, err := c.kv.Get(ctx, c.alertKey(deviceID))
	if err != nil {
		return nil, err
	}

	var event models.EmergencyEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal emergency event: %w", err)
	}
	return &event, nil
}

// ClearDevice 清除设备的全部缓存键（设备停用时调用）
func (c *RealtimeCache) ClearDevice(ctx context.Context, deviceID string) error {
	if err := c.kv.Del(ctx, c.realtimeKey(deviceID)); err != nil {
		return fmt.Errorf("failed to delete realtime cache: %w", err)
	}
	if err := c.kv.Del(ctx, c.alertKey(deviceID)); err != nil {
		return fmt.Errorf("failed to delete alert cache: %w", err)
	}
	return nil
}
