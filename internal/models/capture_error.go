package models

import (
	"time"

	"gorm.io/gorm"
)

type CaptureError struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
	SessionID string         `gorm:"not null;index" json:"session_id"`
	AppName   string         `json:"app_name"`
	Message   string         `gorm:"not null" json:"message"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
