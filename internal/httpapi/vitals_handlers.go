package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"wisefido-vitals/internal/cache"
	"wisefido-vitals/internal/models"
	"wisefido-vitals/internal/registry"
	"wisefido-vitals/internal/repository"
	"wisefido-vitals/internal/service"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// SnapshotReader 实时缓存读接口（可选，为 nil 时相关端点返回 503）
type SnapshotReader interface {
	GetRealtime(ctx context.Context, deviceID string) (*cache.RealtimeSnapshot, error)
	GetAlert(ctx context.Context, deviceID string) (*models.EmergencyEvent, error)
}

// EventsStore 紧急事件查询与状态流转接口（可选，为 nil 时相关端点返回 503）
type EventsStore interface {
	GetEmergencyEvent(ctx context.Context, eventID string) (*models.EmergencyEvent, error)
	ListEmergencyEvents(ctx context.Context, filters repository.EmergencyEventFilters, page, size int) ([]*models.EmergencyEvent, int, error)
	UpdateEmergencyEventStatus(ctx context.Context, eventID, status string) error
}

// HealthChecker 外部分析服务健康探测
type HealthChecker interface {
	CheckHealth(ctx context.Context) models.ServiceHealth
}

// VitalsHandler 生命体征监测服务的HTTP入口
type VitalsHandler struct {
	service   *service.MonitorService
	snapshots SnapshotReader
	events    EventsStore
	health    HealthChecker
	logger    *zap.Logger
}

// NewVitalsHandler 创建HTTP入口处理器
func NewVitalsHandler(
	svc *service.MonitorService,
	snapshots SnapshotReader,
	events EventsStore,
	health HealthChecker,
	logger *zap.Logger,
) *VitalsHandler {
	return &VitalsHandler{
		service:   svc,
		snapshots: snapshots,
		events:    events,
		health:    health,
		logger:    logger,
	}
}

type registerDeviceRequest struct {
	DeviceID        string `json:"deviceId"`
	PatientID       string `json:"patientId"`
	HospitalID      string `json:"hospitalId"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"firmwareVersion"`
}

// RegisterDevice POST /vitals/api/v1/devices/register
func (h *VitalsHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	device, err := h.service.RegisterDevice(req.DeviceID, req.PatientID, models.DeviceInfo{
		Model:           req.Model,
		FirmwareVersion: req.FirmwareVersion,
		HospitalID:      req.HospitalID,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(device))
}

// ListDevices GET /vitals/api/v1/devices
func (h *VitalsHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices := h.service.Registry().List()
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": devices,
		"total": len(devices),
	}))
}

// DeactivateDevice POST /vitals/api/v1/devices/{id}/deactivate
func (h *VitalsHandler) DeactivateDevice(w http.ResponseWriter, r *http.Request, deviceID string) {
	if err := h.service.DeactivateDevice(r.Context(), deviceID); err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("device not found"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"deviceId": deviceID, "status": "deactivated"}))
}

// GetRealtime GET /vitals/api/v1/devices/{id}/realtime
func (h *VitalsHandler) GetRealtime(w http.ResponseWriter, r *http.Request, deviceID string) {
	if h.snapshots == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("realtime cache not configured"))
		return
	}

	snapshot, err := h.snapshots.GetRealtime(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			writeJSON(w, http.StatusNotFound, Fail("no realtime data for device"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}

	// 报警键过期（缺失）表示当前没有活动报警
	alert, err := h.snapshots.GetAlert(r.Context(), deviceID)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		h.logger.Warn("Failed to read alert cache",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"snapshot": snapshot,
		"alert":    alert,
	}))
}

// PushTelemetry POST /vitals/api/v1/telemetry/push
func (h *VitalsHandler) PushTelemetry(w http.ResponseWriter, r *http.Request) {
	var frame models.TelemetryFrame
	if err := readBodyJSON(r, maxBodyBytes, &frame); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if frame.CapturedAt.IsZero() {
		frame.CapturedAt = time.Now()
	}

	if err := h.service.IngestFrame(r.Context(), frame); err != nil {
		switch {
		case errors.Is(err, registry.ErrDeviceNotFound):
			writeJSON(w, http.StatusNotFound, Fail("device not registered"))
		case errors.Is(err, service.ErrInvalidFrame):
			writeJSON(w, http.StatusBadRequest, Fail("invalid telemetry frame"))
		default:
			writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		}
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "accepted"}))
}

// StartMonitoring POST /vitals/api/v1/monitoring/start
func (h *VitalsHandler) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	if err := h.service.StartMonitoring(context.Background()); err != nil {
		writeJSON(w, http.StatusConflict, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"monitoring": true}))
}

// StopMonitoring POST /vitals/api/v1/monitoring/stop
func (h *VitalsHandler) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	h.service.StopMonitoring()
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"monitoring": false}))
}

// MonitoringStatus GET /vitals/api/v1/monitoring/status
func (h *VitalsHandler) MonitoringStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"monitoring":    h.service.Monitoring(),
		"activeDevices": h.service.Registry().ActiveCount(),
	}))
}

// ListEvents GET /vitals/api/v1/events
func (h *VitalsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("event store not configured"))
		return
	}

	q := r.URL.Query()
	filters := repository.EmergencyEventFilters{}
	if v := q.Get("deviceId"); v != "" {
		filters.DeviceID = &v
	}
	if v := q.Get("patientId"); v != "" {
		filters.PatientID = &v
	}
	if v := q.Get("hospitalId"); v != "" {
		filters.HospitalID = &v
	}
	if v := q.Get("severity"); v != "" {
		filters.Severity = &v
	}
	if v := q.Get("status"); v != "" {
		filters.Status = &v
	}

	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("size"), 20)

	events, total, err := h.events.ListEmergencyEvents(r.Context(), filters, page, size)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": events,
		"total": total,
		"page":  page,
		"size":  size,
	}))
}

// UpdateEventStatus POST /vitals/api/v1/events/{id}/{action}
// action: acknowledge | resolve | cancel
func (h *VitalsHandler) UpdateEventStatus(w http.ResponseWriter, r *http.Request, eventID, action string) {
	if h.events == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("event store not configured"))
		return
	}

	status, ok := map[string]string{
		"acknowledge": models.EmergencyStatusAcknowledged,
		"resolve":     models.EmergencyStatusResolved,
		"cancel":      models.EmergencyStatusCancelled,
	}[action]
	if !ok {
		writeJSON(w, http.StatusBadRequest, Fail("unknown action: "+action))
		return
	}

	if err := h.events.UpdateEmergencyEventStatus(r.Context(), eventID, status); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("event not found"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]string{"eventId": eventID, "status": status}))
}

// Health GET /health（不鉴权）
func (h *VitalsHandler) Health(w http.ResponseWriter, r *http.Request) {
	analysisHealth := models.ServiceHealthUnreachable
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		analysisHealth = h.health.CheckHealth(ctx)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"monitoring":      h.service.Monitoring(),
		"activeDevices":   h.service.Registry().ActiveCount(),
		"analysisService": analysisHealth,
	})
}
