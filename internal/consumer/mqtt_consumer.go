package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"
	"wisefido-vitals/internal/mqtt"

	"go.uber.org/zap"
)

// 真实手环上报数据的主题（与模拟器生成的数据走同一条处理链）
const wearableDataTopic = "wearable/+/data"

// Ingestor 遥测帧的接收方（由监测服务实现）
type Ingestor interface {
	IngestFrame(ctx context.Context, frame models.TelemetryFrame) error
}

// Broker MQTT订阅接口（用于在单元测试中替换真实客户端）
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTConsumer MQTT消息消费者：接收真实手环设备上报的遥测数据
type MQTTConsumer struct {
	config   *config.Config
	broker   Broker
	ingestor Ingestor
	logger   *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.Config,
	broker Broker,
	ingestor Ingestor,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:   cfg,
		broker:   broker,
		ingestor: ingestor,
		logger:   logger,
	}
}

// Start 启动消费者（阻塞直到上下文取消）
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.broker.Subscribe(wearableDataTopic, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to wearable data topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", wearableDataTopic),
	)

	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.broker.Unsubscribe(wearableDataTopic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理MQTT消息
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	// 1. 从主题中提取设备标识符
	// 主题格式: wearable/{device_id}/data
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	deviceID := parts[1]

	// 2. 解析消息
	var frame models.TelemetryFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.logger.Error("Failed to unmarshal MQTT message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	// 3. 主题中的设备标识是权威来源，覆盖消息体里的值
	frame.DeviceID = deviceID

	// 4. 交给监测服务走统一的处理链（分析 → 分类 → 分发）
	if err := c.ingestor.IngestFrame(context.Background(), frame); err != nil {
		c.logger.Warn("Failed to ingest frame from MQTT",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to ingest frame: %w", err)
	}

	return nil
}
