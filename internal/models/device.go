package models

import "time"

// DeviceInfo 设备注册时的静态信息
type DeviceInfo struct {
	Model           string `json:"model,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	HospitalID      string `json:"hospital_id,omitempty"` // 所属机构（可选）
}

// Device 可穿戴设备（注册表中的实时连接状态，不是持久化记录）
type Device struct {
	DeviceID   string     `json:"device_id"`
	PatientID  string     `json:"patient_id"`
	HospitalID string     `json:"hospital_id,omitempty"`
	Info       DeviceInfo `json:"info"`

	// 可变状态（每次成功上报后更新）
	Active    bool      `json:"active"`
	LastSeen  time.Time `json:"last_seen"`
	Battery   float64   `json:"battery"` // 0-100
	Signal    int       `json:"signal"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`

	RegisteredAt time.Time `json:"registered_at"`
}

// DeviceUpdate 设备状态的部分更新（nil 字段不修改）
type DeviceUpdate struct {
	Battery   *float64
	Signal    *int
	Latitude  *float64
	Longitude *float64
	LastSeen  *time.Time
}
