package models

import "time"

// VitalSigns 一次采样的生命体征
type VitalSigns struct {
	HeartRate              float64 `json:"heartRate"`
	BloodPressureSystolic  float64 `json:"bloodPressureSystolic"`
	BloodPressureDiastolic float64 `json:"bloodPressureDiastolic"`
	Temperature            float64 `json:"temperature"`
	OxygenSaturation       float64 `json:"oxygenSaturation"`
	RespiratoryRate        float64 `json:"respiratoryRate"`
}

// Motion 运动数据（步数 + 三轴加速度）
type Motion struct {
	StepCount int     `json:"stepCount"`
	AccelX    float64 `json:"accelX"`
	AccelY    float64 `json:"accelY"`
	AccelZ    float64 `json:"accelZ"`
}

// TelemetryFrame 遥测帧（生成后不可变；分析结果是独立附加的注解，不修改帧本身）
type TelemetryFrame struct {
	DeviceID   string     `json:"deviceId"`
	PatientID  string     `json:"patientId"`
	CapturedAt time.Time  `json:"capturedAt"`
	Vitals     VitalSigns `json:"vitals"`
	Motion     Motion     `json:"motion"`

	// 采样时刻的设备快照
	Battery   float64 `json:"battery"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// 本地启发式判断（异常注入是唯一来源）
	HeuristicEmergency bool   `json:"heuristicEmergency"`
	HeuristicType      string `json:"heuristicType,omitempty"`
}
