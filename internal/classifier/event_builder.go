package classifier

import (
	"time"

	"wisefido-vitals/internal/models"

	"github.com/google/uuid"
)

// BuildEmergencyEvent 把阳性判定物化为一条紧急事件
// 事件携带检测时刻的完整快照（体征/位置），状态固定为 detected，
// 后续状态流转归外部紧急事件管理方所有
func BuildEmergencyEvent(frame models.TelemetryFrame, hospitalID string, verdict Verdict) models.EmergencyEvent {
	now := time.Now()
	return models.EmergencyEvent{
		EventID:    uuid.New().String(),
		DeviceID:   frame.DeviceID,
		PatientID:  frame.PatientID,
		HospitalID: hospitalID,
		EventType:  verdict.EventType,
		Severity:   verdict.Severity,
		Status:     models.EmergencyStatusDetected,
		Vitals:     frame.Vitals,
		Latitude:   frame.Latitude,
		Longitude:  frame.Longitude,
		DetectedAt: frame.CapturedAt,
		Analysis:   verdict.Analysis,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
