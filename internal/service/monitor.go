package service

import (
	"context"
	"errors"

	"wisefido-vitals/internal/classifier"
	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"
	"wisefido-vitals/internal/registry"
	"wisefido-vitals/internal/router"
	"wisefido-vitals/internal/simulator"

	"go.uber.org/zap"
)

var (
	// ErrInvalidDevice 设备注册参数不合法
	ErrInvalidDevice = errors.New("device_id and patient_id are required")
	// ErrInvalidFrame 遥测帧不合法
	ErrInvalidFrame = errors.New("invalid telemetry frame")
)

// Analyzer 外部AI分析客户端（返回 nil 表示分析缺失）
type Analyzer interface {
	Analyze(ctx context.Context, frame models.TelemetryFrame) *models.AnalysisResult
}

// SnapshotCache 实时缓存（可选依赖，为 nil 时跳过缓存写入）
type SnapshotCache interface {
	UpdateRealtime(ctx context.Context, frame models.TelemetryFrame, analysis *models.AnalysisResult) error
	UpdateAlert(ctx context.Context, event models.EmergencyEvent) error
	ClearDevice(ctx context.Context, deviceID string) error
}

// EventStore 紧急事件持久化（可选依赖，为 nil 时跳过持久化）
type EventStore interface {
	CreateEmergencyEvent(ctx context.Context, event *models.EmergencyEvent) error
}

// AlertSink 紧急事件的MQTT镜像（可选依赖）
type AlertSink interface {
	PublishEmergency(event models.EmergencyEvent) error
}

// MonitorService 生命体征监测服务：设备管理 + 遥测处理链的编排
// 处理链: 生成/接收 → AI分析 → 紧急分类 → 事件分发 → 缓存/持久化
type MonitorService struct {
	config    *config.Config
	registry  *registry.DeviceRegistry
	generator *simulator.Generator
	analyzer  Analyzer
	router    *router.EventRouter
	cache     SnapshotCache
	events    EventStore
	alertSink AlertSink
	logger    *zap.Logger
}

// NewMonitorService 创建监测服务。cache、events、alertSink 允许为 nil（降级运行）
func NewMonitorService(
	cfg *config.Config,
	reg *registry.DeviceRegistry,
	gen *simulator.Generator,
	analyzer Analyzer,
	eventRouter *router.EventRouter,
	snapshotCache SnapshotCache,
	eventStore EventStore,
	alertSink AlertSink,
	logger *zap.Logger,
) *MonitorService {
	return &MonitorService{
		config:    cfg,
		registry:  reg,
		generator: gen,
		analyzer:  analyzer,
		router:    eventRouter,
		cache:     snapshotCache,
		events:    eventStore,
		alertSink: alertSink,
		logger:    logger,
	}
}

// RegisterDevice 注册设备并广播设备状态变更
func (s *MonitorService) RegisterDevice(deviceID, patientID string, info models.DeviceInfo) (models.Device, error) {
	if deviceID == "" || patientID == "" {
		return models.Device{}, ErrInvalidDevice
	}

	device := s.registry.Register(deviceID, patientID, info)
	// device-status 主题携带注册表整体快照，订阅方无需自行维护增量状态
	s.router.PublishDeviceStatus(s.registry.List())
	return device, nil
}

// DeactivateDevice 停用设备：不再为其生成遥测，清除实时缓存
func (s *MonitorService) DeactivateDevice(ctx context.Context, deviceID string) error {
	if err := s.registry.SetActive(deviceID, false); err != nil {
		return err
	}

	s.router.PublishDeviceStatus(s.registry.List())

	if s.cache != nil {
		if err := s.cache.ClearDevice(ctx, deviceID); err != nil {
			s.logger.Warn("Failed to clear device cache",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
			// 继续处理，不中断
		}
	}

	s.logger.Info("Device deactivated", zap.String("device_id", deviceID))
	return nil
}

// StartMonitoring 启动遥测生成
func (s *MonitorService) StartMonitoring(ctx context.Context) error {
	return s.generator.Start(ctx, s)
}

// StopMonitoring 停止遥测生成
func (s *MonitorService) StopMonitoring() {
	s.generator.Stop()
}

// Monitoring 遥测生成是否在运行
func (s *MonitorService) Monitoring() bool {
	return s.generator.Running()
}

// Registry 设备注册表（供入口层查询）
func (s *MonitorService) Registry() *registry.DeviceRegistry {
	return s.registry
}

// Router 事件路由（供入口层订阅）
func (s *MonitorService) Router() *router.EventRouter {
	return s.router
}

// hasRequiredVitals 心率、体温、血氧是帧的必需体征字段，缺失（零值）视为畸形帧
func hasRequiredVitals(v models.VitalSigns) bool {
	return v.HeartRate > 0 && v.Temperature > 0 && v.OxygenSaturation > 0
}

// IngestFrame 接收外部推送的遥测帧（MQTT上报或HTTP推送），走统一处理链
// 设备必须已注册，未注册返回 registry.ErrDeviceNotFound
// 畸形帧（缺必需体征字段）在入口直接拒绝：不分析、不分类、不发布
func (s *MonitorService) IngestFrame(ctx context.Context, frame models.TelemetryFrame) error {
	if frame.DeviceID == "" || frame.CapturedAt.IsZero() {
		return ErrInvalidFrame
	}
	if !hasRequiredVitals(frame.Vitals) {
		return ErrInvalidFrame
	}

	device, err := s.registry.Get(frame.DeviceID)
	if err != nil {
		return err
	}

	// 患者关联以注册表为准
	frame.PatientID = device.PatientID

	// 回写设备状态（电量/位置/最后在线时间）
	update := models.DeviceUpdate{LastSeen: &frame.CapturedAt}
	if frame.Battery > 0 {
		update.Battery = &frame.Battery
	}
	if frame.Latitude != 0 || frame.Longitude != 0 {
		update.Latitude = &frame.Latitude
		update.Longitude = &frame.Longitude
	}
	if err := s.registry.Touch(frame.DeviceID, update); err != nil {
		s.logger.Warn("Failed to update device state",
			zap.String("device_id", frame.DeviceID),
			zap.Error(err),
		)
		// 继续处理，不中断
	}

	s.HandleFrame(ctx, frame)
	return nil
}

// HandleFrame 遥测帧的统一处理链（实现 simulator.Sink）
//
// 1. AI分析（失败即缺失，不阻断）
// 2. 紧急分类（分析结论优先，缺失时退化为启发式）
// 3. 数据帧无条件发布到患者/医院主题
// 4. 阳性判定物化为紧急事件：发布、缓存、持久化、MQTT镜像
// 5. 更新实时缓存
//
// 各下游环节互相隔离：任何一环失败只记日志，不影响其它环节
func (s *MonitorService) HandleFrame(ctx context.Context, frame models.TelemetryFrame) {
	// 1. AI分析
	analysis := s.analyzer.Analyze(ctx, frame)

	// 2. 紧急分类
	verdict := classifier.Classify(frame, analysis)

	hospitalID := ""
	if device, err := s.registry.Get(frame.DeviceID); err == nil {
		hospitalID = device.HospitalID
	}

	// 3. 数据帧无条件发布（阳性帧既产生告警也照常发布数据）
	s.router.PublishFrame(frame, analysis, hospitalID)

	// 4. 阳性判定 → 紧急事件
	if verdict.Emergency {
		event := classifier.BuildEmergencyEvent(frame, hospitalID, verdict)

		s.logger.Warn("Emergency detected",
			zap.String("event_id", event.EventID),
			zap.String("device_id", event.DeviceID),
			zap.String("patient_id", event.PatientID),
			zap.String("event_type", event.EventType),
			zap.String("severity", event.Severity),
			zap.String("source", verdict.Source),
		)

		s.router.PublishEmergency(event)

		if s.cache != nil {
			if err := s.cache.UpdateAlert(ctx, event); err != nil {
				s.logger.Warn("Failed to cache alert",
					zap.String("event_id", event.EventID),
					zap.Error(err),
				)
				// 继续处理，不中断
			}
		}

		if s.events != nil {
			if err := s.events.CreateEmergencyEvent(ctx, &event); err != nil {
				s.logger.Error("Failed to persist emergency event",
					zap.String("event_id", event.EventID),
					zap.Error(err),
				)
				// 继续处理，不中断
			}
		}

		if s.alertSink != nil {
			if err := s.alertSink.PublishEmergency(event); err != nil {
				s.logger.Warn("Failed to mirror alert to MQTT",
					zap.String("event_id", event.EventID),
					zap.Error(err),
				)
				// 继续处理，不中断
			}
		}
	}

	// 5. 实时缓存
	if s.cache != nil {
		if err := s.cache.UpdateRealtime(ctx, frame, analysis); err != nil {
			s.logger.Warn("Failed to update realtime cache",
				zap.String("device_id", frame.DeviceID),
				zap.Error(err),
			)
		}
	}
}
