package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"wisefido-vitals/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry() *DeviceRegistry {
	return NewDeviceRegistry(zap.NewNop())
}

func TestRegister_NewDevice(t *testing.T) {
	r := newTestRegistry()

	device := r.Register("device-1", "patient-1", models.DeviceInfo{
		Model:      "wristband-v2",
		HospitalID: "hospital-1",
	})

	assert.Equal(t, "device-1", device.DeviceID)
	assert.Equal(t, "patient-1", device.PatientID)
	assert.Equal(t, "hospital-1", device.HospitalID)
	assert.True(t, device.Active)
	assert.Equal(t, float64(100), device.Battery)
	assert.False(t, device.RegisteredAt.IsZero())
}

func TestRegister_Idempotent(t *testing.T) {
	r := newTestRegistry()

	first := r.Register("device-1", "patient-1", models.DeviceInfo{HospitalID: "hospital-1"})
	second := r.Register("device-1", "patient-1", models.DeviceInfo{})

	// 重复注册不会创建第二条记录
	assert.Len(t, r.List(), 1)
	assert.Equal(t, first.DeviceID, second.DeviceID)
	assert.Equal(t, first.RegisteredAt, second.RegisteredAt)
	// 未显式更新的字段保持不变
	assert.Equal(t, "hospital-1", second.HospitalID)
}

func TestRegister_Relink(t *testing.T) {
	r := newTestRegistry()

	r.Register("device-1", "patient-1", models.DeviceInfo{})
	relinked := r.Register("device-1", "patient-2", models.DeviceInfo{})

	// 设备在任意时刻只有一个活跃的患者关联
	assert.Equal(t, "patient-2", relinked.PatientID)
	assert.Len(t, r.List(), 1)
}

func TestGet_NotFound(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Get("unknown")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestTouch_PartialUpdate(t *testing.T) {
	r := newTestRegistry()
	r.Register("device-1", "patient-1", models.DeviceInfo{})

	battery := 88.5
	lat := 21.15
	err := r.Touch("device-1", models.DeviceUpdate{
		Battery:  &battery,
		Latitude: &lat,
	})
	require.NoError(t, err)

	device, err := r.Get("device-1")
	require.NoError(t, err)
	assert.Equal(t, 88.5, device.Battery)
	assert.Equal(t, 21.15, device.Latitude)
	// 未提供的字段不被修改
	assert.Equal(t, float64(0), device.Longitude)
}

func TestTouch_UnknownDevice(t *testing.T) {
	r := newTestRegistry()

	err := r.Touch("unknown", models.DeviceUpdate{})
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestTouch_DefaultsLastSeen(t *testing.T) {
	r := newTestRegistry()
	r.Register("device-1", "patient-1", models.DeviceInfo{})

	before := time.Now()
	err := r.Touch("device-1", models.DeviceUpdate{})
	require.NoError(t, err)

	device, _ := r.Get("device-1")
	assert.False(t, device.LastSeen.Before(before))
}

func TestList_Snapshot(t *testing.T) {
	r := newTestRegistry()
	r.Register("device-1", "patient-1", models.DeviceInfo{})
	r.Register("device-2", "patient-2", models.DeviceInfo{})

	snapshot := r.List()
	assert.Len(t, snapshot, 2)

	// 快照是值拷贝，修改注册表不影响已有快照
	r.Register("device-3", "patient-3", models.DeviceInfo{})
	assert.Len(t, snapshot, 2)
}

func TestListActive_ExcludesInactive(t *testing.T) {
	r := newTestRegistry()
	r.Register("device-1", "patient-1", models.DeviceInfo{})
	r.Register("device-2", "patient-2", models.DeviceInfo{})

	require.NoError(t, r.SetActive("device-2", false))

	active := r.ListActive()
	assert.Len(t, active, 1)
	assert.Equal(t, "device-1", active[0].DeviceID)
	assert.Equal(t, 1, r.ActiveCount())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			deviceID := fmt.Sprintf("device-%d", n)
			r.Register(deviceID, fmt.Sprintf("patient-%d", n), models.DeviceInfo{})
			battery := float64(80 + n%20)
			_ = r.Touch(deviceID, models.DeviceUpdate{Battery: &battery})
			_ = r.List()
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.List(), 20)
}
