package models

import "time"

// 报警级别（low|medium|high|critical）
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// 紧急事件状态。核心只写入 detected；
// 后续状态流转归外部紧急事件管理方所有
const (
	EmergencyStatusDetected     = "detected"
	EmergencyStatusAcknowledged = "acknowledged"
	EmergencyStatusResolved     = "resolved"
	EmergencyStatusCancelled    = "cancelled"
)

// EmergencyEvent 紧急事件（每个阳性判定产生一条，必须对应一个真实产生的遥测帧）
type EmergencyEvent struct {
	EventID    string `json:"event_id"`
	DeviceID   string `json:"device_id"`
	PatientID  string `json:"patient_id"`
	HospitalID string `json:"hospital_id,omitempty"`

	EventType string `json:"event_type"`
	Severity  string `json:"severity"`
	Status    string `json:"status"`

	// 检测时刻的快照
	Vitals    VitalSigns `json:"vitals"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`

	DetectedAt time.Time `json:"detected_at"`

	// 触发该事件的分析结果（仅启发式触发时为空）
	Analysis *AnalysisResult `json:"analysis,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
