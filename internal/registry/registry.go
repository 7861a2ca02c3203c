package registry

import (
	"errors"
	"sync"
	"time"

	"wisefido-vitals/internal/models"

	"go.uber.org/zap"
)

// ErrDeviceNotFound 设备未注册
var ErrDeviceNotFound = errors.New("device not found")

// DeviceRegistry 设备注册表（内存缓存，保存已知设备的实时连接状态）
// 不做持久化：进程重启后状态丢失是可接受的，注册表只是连接状态缓存，不是数据源
type DeviceRegistry struct {
	mu      sync.RWMutex
	devices map[string]*models.Device
	logger  *zap.Logger
}

// NewDeviceRegistry 创建设备注册表
func NewDeviceRegistry(logger *zap.Logger) *DeviceRegistry {
	return &DeviceRegistry{
		devices: make(map[string]*models.Device),
		logger:  logger,
	}
}

// Register 注册设备（幂等 upsert）
// 重复注册同一 device_id 不会创建第二条记录，返回已有记录（更新显式提供的字段）
func (r *DeviceRegistry) Register(deviceID, patientID string, info models.DeviceInfo) models.Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	if existing, ok := r.devices[deviceID]; ok {
		// 幂等：更新患者关联和静态信息，保留可变状态
		existing.PatientID = patientID
		if info.HospitalID != "" {
			existing.HospitalID = info.HospitalID
		}
		if info.Model != "" {
			existing.Info.Model = info.Model
		}
		if info.FirmwareVersion != "" {
			existing.Info.FirmwareVersion = info.FirmwareVersion
		}
		existing.Active = true
		return *existing
	}

	device := &models.Device{
		DeviceID:     deviceID,
		PatientID:    patientID,
		HospitalID:   info.HospitalID,
		Info:         info,
		Active:       true,
		LastSeen:     now,
		Battery:      100,
		RegisteredAt: now,
	}
	r.devices[deviceID] = device

	r.logger.Info("Device registered",
		zap.String("device_id", deviceID),
		zap.String("patient_id", patientID),
		zap.String("hospital_id", info.HospitalID),
	)

	return *device
}

// Get 获取设备记录
func (r *DeviceRegistry) Get(deviceID string) (models.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return models.Device{}, ErrDeviceNotFound
	}
	return *device, nil
}

// Touch 合并设备状态更新（电量/位置/信号/最后在线时间）
func (r *DeviceRegistry) Touch(deviceID string, update models.DeviceUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return ErrDeviceNotFound
	}

	if update.Battery != nil {
		device.Battery = *update.Battery
	}
	if update.Signal != nil {
		device.Signal = *update.Signal
	}
	if update.Latitude != nil {
		device.Latitude = *update.Latitude
	}
	if update.Longitude != nil {
		device.Longitude = *update.Longitude
	}
	if update.LastSeen != nil {
		device.LastSeen = *update.LastSeen
	} else {
		device.LastSeen = time.Now()
	}

	return nil
}

// SetActive 设置设备活跃标记（停用归外部协作方所有，核心不做硬删除）
func (r *DeviceRegistry) SetActive(deviceID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return ErrDeviceNotFound
	}
	device.Active = active
	return nil
}

// List 返回所有设备的时间点快照（值拷贝，并发修改下迭代安全）
func (r *DeviceRegistry) List() []models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]models.Device, 0, len(r.devices))
	for _, device := range r.devices {
		snapshot = append(snapshot, *device)
	}
	return snapshot
}

// ListActive 返回活跃设备的时间点快照
func (r *DeviceRegistry) ListActive() []models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]models.Device, 0, len(r.devices))
	for _, device := range r.devices {
		if device.Active {
			snapshot = append(snapshot, *device)
		}
	}
	return snapshot
}

// ActiveCount 活跃设备数量
func (r *DeviceRegistry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, device := range r.devices {
		if device.Active {
			count++
		}
	}
	return count
}
