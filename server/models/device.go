package models

import "time"

type Device struct {
	BaseModel
	DeviceID   string    `json:"device_id" validate:"required" gorm:"not null"`
	DeviceType string    `json:"device_type" validate:"required" gorm:"not null"`
	OSVersion  string    `json:"os_version,omitempty"`
	AppVersion string    `json:"app_version,omitempty"`
	LastActive time.Time `json:"last_active"`
	UserID     uint      `json:"user_id" gorm:"not null"`
}
