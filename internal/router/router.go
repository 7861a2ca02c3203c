package router

import (
	"sync"
	"time"

	"wisefido-vitals/internal/models"

	"go.uber.org/zap"
)

// Topic 订阅主题
type Topic string

// TopicDeviceStatus 设备状态变更主题（全局单主题）
const TopicDeviceStatus Topic = "device-status"

// PatientTopic 单个患者的数据主题
func PatientTopic(patientID string) Topic {
	return Topic("patient-" + patientID)
}

// HospitalTopic 医院聚合主题（该医院所有设备的数据）
func HospitalTopic(hospitalID string) Topic {
	return Topic("hospital-" + hospitalID)
}

// 消息类型
const (
	MessageHealthUpdate   = "health-update"
	MessageEmergencyAlert = "emergency-alert"
	MessageDeviceStatus   = "device-status"
)

// Message 路由消息。按 Type 取对应的负载字段
type Message struct {
	Type  string `json:"type"`
	Topic Topic  `json:"topic"`

	Frame    *models.TelemetryFrame `json:"frame,omitempty"`
	Analysis *models.AnalysisResult `json:"analysis,omitempty"`
	Event    *models.EmergencyEvent `json:"event,omitempty"`
	Devices  []models.Device        `json:"devices,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// Subscription 订阅句柄。通过 C() 消费，用 EventRouter.Unsubscribe 归还
type Subscription struct {
	topic Topic
	id    uint64
	ch    chan Message
}

// C 订阅消息通道。Unsubscribe 后通道被关闭
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Topic 订阅的主题
func (s *Subscription) Topic() Topic {
	return s.topic
}

const defaultBufferSize = 16

// EventRouter 进程内事件路由：按主题把遥测帧和紧急事件扇出给订阅方
// 投递是非阻塞的：订阅方缓冲满时丢弃该条消息并告警，慢消费者不拖慢发布路径
type EventRouter struct {
	mu     sync.RWMutex
	subs   map[Topic]map[uint64]*Subscription
	nextID uint64

	bufferSize int
	logger     *zap.Logger
}

// NewEventRouter 创建事件路由
func NewEventRouter(logger *zap.Logger) *EventRouter {
	return &EventRouter{
		subs:       make(map[Topic]map[uint64]*Subscription),
		bufferSize: defaultBufferSize,
		logger:     logger,
	}
}

// Subscribe 订阅一个主题
func (r *EventRouter) Subscribe(topic Topic) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	sub := &Subscription{
		topic: topic,
		id:    r.nextID,
		ch:    make(chan Message, r.bufferSize),
	}

	if r.subs[topic] == nil {
		r.subs[topic] = make(map[uint64]*Subscription)
	}
	r.subs[topic][sub.id] = sub

	r.logger.Debug("Subscriber added",
		zap.String("topic", string(topic)),
		zap.Uint64("subscription_id", sub.id),
	)
	return sub
}

// Unsubscribe 取消订阅并关闭消息通道（重复调用是空操作）
func (r *EventRouter) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	topicSubs, ok := r.subs[sub.topic]
	if !ok {
		return
	}
	if _, ok := topicSubs[sub.id]; !ok {
		return
	}

	delete(topicSubs, sub.id)
	if len(topicSubs) == 0 {
		delete(r.subs, sub.topic)
	}
	close(sub.ch)
}

// SubscriberCount 某主题当前的订阅数
func (r *EventRouter) SubscriberCount(topic Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[topic])
}

// PublishFrame 发布一帧遥测数据到患者主题和所属医院主题
// 无论分类结果如何都发布（阳性帧既产生告警也照常发布数据）
func (r *EventRouter) PublishFrame(frame models.TelemetryFrame, analysis *models.AnalysisResult, hospitalID string) {
	msg := Message{
		Type:        MessageHealthUpdate,
		Frame:       &frame,
		Analysis:    analysis,
		PublishedAt: time.Now(),
	}

	r.publish(PatientTopic(frame.PatientID), msg)
	if hospitalID != "" {
		r.publish(HospitalTopic(hospitalID), msg)
	}
}

// PublishEmergency 发布紧急事件到患者主题和所属医院主题
func (r *EventRouter) PublishEmergency(event models.EmergencyEvent) {
	msg := Message{
		Type:        MessageEmergencyAlert,
		Event:       &event,
		PublishedAt: time.Now(),
	}

	r.publish(PatientTopic(event.PatientID), msg)
	if event.HospitalID != "" {
		r.publish(HospitalTopic(event.HospitalID), msg)
	}
}

// PublishDeviceStatus 在设备状态变更（注册/停用）时发布注册表整体快照
func (r *EventRouter) PublishDeviceStatus(devices []models.Device) {
	r.publish(TopicDeviceStatus, Message{
		Type:        MessageDeviceStatus,
		Devices:     devices,
		PublishedAt: time.Now(),
	})
}

func (r *EventRouter) publish(topic Topic, msg Message) {
	msg.Topic = topic

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sub := range r.subs[topic] {
		select {
		case sub.ch <- msg:
		default:
			// 缓冲满：丢弃这一条，发布方不等待慢消费者
			r.logger.Warn("Subscriber buffer full, message dropped",
				zap.String("topic", string(topic)),
				zap.Uint64("subscription_id", sub.id),
				zap.String("message_type", msg.Type),
			)
		}
	}
}
