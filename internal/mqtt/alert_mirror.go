package mqtt

import (
	"encoding/json"
	"fmt"

	"wisefido-vitals/internal/models"

	"go.uber.org/zap"
)

// Publisher 消息发布接口（用于在单元测试中替换真实客户端）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// AlertMirror 把紧急事件镜像发布到MQTT，供院外系统（护士站大屏、家属App推送网关）订阅
// 主题格式: wisefido/alerts/{patient_id}
type AlertMirror struct {
	publisher Publisher
	qos       byte
	logger    *zap.Logger
}

// NewAlertMirror 创建报警镜像发布器
func NewAlertMirror(publisher Publisher, qos byte, logger *zap.Logger) *AlertMirror {
	return &AlertMirror{
		publisher: publisher,
		qos:       qos,
		logger:    logger,
	}
}

// PublishEmergency 发布一条紧急事件
func (m *AlertMirror) PublishEmergency(event models.EmergencyEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal emergency event: %w", err)
	}

	topic := fmt.Sprintf("wisefido/alerts/%s", event.PatientID)
	if err := m.publisher.Publish(topic, m.qos, false, payload); err != nil {
		return fmt.Errorf("failed to publish emergency alert: %w", err)
	}

	m.logger.Info("Published emergency alert to MQTT",
		zap.String("topic", topic),
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
	)
	return nil
}
