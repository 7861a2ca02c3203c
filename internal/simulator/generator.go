package simulator

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"
	"wisefido-vitals/internal/registry"

	"go.uber.org/zap"
)

// 各项生命体征的基线和抖动范围
const (
	baselineHeartRate   = 75.0
	baselineTemperature = 36.8
	baselineSystolic    = 120.0
	baselineDiastolic   = 80.0

	jitterHeartRate   = 7.5
	jitterTemperature = 0.6
	jitterSystolic    = 10.0
	jitterDiastolic   = 7.5

	spo2Min = 96.0
	spo2Max = 100.0

	baselineRespiratoryRate = 16.0
	jitterRespiratoryRate   = 2.0

	// 强制异常的取值区间
	tachycardiaMin  = 140.0
	tachycardiaMax  = 160.0
	hyperthermiaMin = 38.5
	hyperthermiaMax = 40.0

	// 电量随机游走范围
	batteryMin = 75.0
	batteryMax = 100.0

	// GPS 微抖动幅度（约±50米）
	locationJitter = 0.0005
)

// ErrAlreadyRunning 生成器已在运行
var ErrAlreadyRunning = errors.New("generator already running")

// Sink 遥测帧的下游处理器（由监测服务实现：分析 → 分类 → 分发）
type Sink interface {
	HandleFrame(ctx context.Context, frame models.TelemetryFrame)
}

// Generator 遥测生成器：按固定周期为每个活跃设备合成一帧生命体征数据
// 异常注入（默认 2%/tick）是启发式标记的唯一来源
type Generator struct {
	config   *config.Config
	registry *registry.DeviceRegistry
	logger   *zap.Logger

	// rng 由 mu 保护；nowFn 可在测试中替换
	mu    sync.Mutex
	rng   *rand.Rand
	nowFn func() time.Time

	// 运行状态以 done 通道为准：nil 表示从未启动，已关闭表示已停止
	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGenerator 创建遥测生成器
func NewGenerator(cfg *config.Config, reg *registry.DeviceRegistry, logger *zap.Logger) *Generator {
	return &Generator{
		config:   cfg,
		registry: reg,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		nowFn:    time.Now,
	}
}

// Start 启动定时生成（非阻塞）。注册表中没有活跃设备时定时器自行停止
func (g *Generator) Start(ctx context.Context, sink Sink) error {
	g.runMu.Lock()
	defer g.runMu.Unlock()

	if g.done != nil {
		select {
		case <-g.done:
			// 上一次运行已结束，允许重新启动
		default:
			return ErrAlreadyRunning
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})

	interval := time.Duration(g.config.Simulator.TickInterval) * time.Second

	g.logger.Info("Telemetry generator started",
		zap.Duration("interval", interval),
		zap.Float64("anomaly_probability", g.config.Simulator.AnomalyProbability),
	)

	go g.run(runCtx, interval, sink)

	return nil
}

// Stop 停止生成。返回后不会再有新的 tick（同步可观察）
// 本 tick 内已发出的分析调用允许自然完成或超时
func (g *Generator) Stop() {
	g.runMu.Lock()
	defer g.runMu.Unlock()

	if g.done == nil {
		return
	}
	select {
	case <-g.done:
		// 已经自行停止（比如活跃设备清零）
		return
	default:
	}

	g.cancel()
	<-g.done

	g.logger.Info("Telemetry generator stopped")
}

// Running 生成器是否在运行
func (g *Generator) Running() bool {
	g.runMu.Lock()
	defer g.runMu.Unlock()

	if g.done == nil {
		return false
	}
	select {
	case <-g.done:
		return false
	default:
		return true
	}
}

func (g *Generator) run(ctx context.Context, interval time.Duration, sink Sink) {
	defer close(g.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			devices := g.registry.ListActive()
			if len(devices) == 0 {
				// 没有活跃设备时不空转，停掉自己的定时器
				g.logger.Info("No active devices, generator timer stopped")
				return
			}
			g.tick(ctx, devices, sink)
		}
	}
}

// tick 为每个设备生成一帧并交给下游
// 帧按设备顺序生成（保证同一设备内的顺序），下游处理按设备并发
// （单次分析调用最多阻塞一个超时窗口，不拖慢其它设备）
func (g *Generator) tick(ctx context.Context, devices []models.Device, sink Sink) {
	now := g.now()

	var wg sync.WaitGroup
	for _, device := range devices {
		frame := g.Generate(device, now)

		// 副作用：回写电量游走、位置抖动和最后在线时间
		if err := g.registry.Touch(device.DeviceID, models.DeviceUpdate{
			Battery:   &frame.Battery,
			Latitude:  &frame.Latitude,
			Longitude: &frame.Longitude,
			LastSeen:  &frame.CapturedAt,
		}); err != nil {
			g.logger.Warn("Failed to update device state",
				zap.String("device_id", device.DeviceID),
				zap.Error(err),
			)
			// 继续处理其它设备，不中断
		}

		wg.Add(1)
		go func(frame models.TelemetryFrame) {
			defer wg.Done()
			sink.HandleFrame(ctx, frame)
		}(frame)
	}
	wg.Wait()
}

// Generate 为单个设备合成一帧遥测数据
// 三层扰动：按时段的确定性调整 → 逐项有界随机抖动 → 低概率异常注入
func (g *Generator) Generate(device models.Device, now time.Time) models.TelemetryFrame {
	g.mu.Lock()
	defer g.mu.Unlock()

	heartRate := baselineHeartRate

	// 按时段调整（在随机抖动之前）：夜间(0-7, 22-24)心率-10，日间(9-18)+5
	hour := now.Hour()
	switch {
	case hour < 7 || hour >= 22:
		heartRate -= 10
	case hour >= 9 && hour < 18:
		heartRate += 5
	}

	heartRate += g.uniform(-jitterHeartRate, jitterHeartRate)
	temperature := baselineTemperature + g.uniform(-jitterTemperature, jitterTemperature)
	systolic := baselineSystolic + g.uniform(-jitterSystolic, jitterSystolic)
	diastolic := baselineDiastolic + g.uniform(-jitterDiastolic, jitterDiastolic)
	spo2 := g.uniform(spo2Min, spo2Max)
	respiratoryRate := baselineRespiratoryRate + g.uniform(-jitterRespiratoryRate, jitterRespiratoryRate)

	// 异常注入：等概率强制心动过速或高热，这是启发式标记的唯一来源
	heuristicEmergency := false
	heuristicType := ""
	if g.rng.Float64() < g.config.Simulator.AnomalyProbability {
		heuristicEmergency = true
		if g.rng.Float64() < 0.5 {
			heartRate = g.uniform(tachycardiaMin, tachycardiaMax)
			heuristicType = "tachycardia"
		} else {
			temperature = g.uniform(hyperthermiaMin, hyperthermiaMax)
			heuristicType = "hyperthermia"
		}
	}

	// 电量在 75-100 内独立随机游走
	battery := device.Battery + g.uniform(-1.0, 1.0)
	if battery < batteryMin {
		battery = batteryMin
	}
	if battery > batteryMax {
		battery = batteryMax
	}

	// 位置在固定原点附近微抖动（模拟GPS噪声）
	latitude := g.config.Simulator.OriginLatitude + g.uniform(-locationJitter, locationJitter)
	longitude := g.config.Simulator.OriginLongitude + g.uniform(-locationJitter, locationJitter)

	return models.TelemetryFrame{
		DeviceID:   device.DeviceID,
		PatientID:  device.PatientID,
		CapturedAt: now,
		Vitals: models.VitalSigns{
			HeartRate:              round1(heartRate),
			BloodPressureSystolic:  round1(systolic),
			BloodPressureDiastolic: round1(diastolic),
			Temperature:            round1(temperature),
			OxygenSaturation:       round1(spo2),
			RespiratoryRate:        round1(respiratoryRate),
		},
		Motion: models.Motion{
			StepCount: g.rng.Intn(25),
			AccelX:    round1(g.uniform(-0.3, 0.3)),
			AccelY:    round1(g.uniform(-0.3, 0.3)),
			AccelZ:    round1(9.8 + g.uniform(-0.3, 0.3)),
		},
		Battery:            round1(battery),
		Latitude:           latitude,
		Longitude:          longitude,
		HeuristicEmergency: heuristicEmergency,
		HeuristicType:      heuristicType,
	}
}

func (g *Generator) uniform(min, max float64) float64 {
	return min + g.rng.Float64()*(max-min)
}

func (g *Generator) now() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nowFn()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
