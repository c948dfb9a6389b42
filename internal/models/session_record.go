package models

import (
	"time"

	"gorm.io/gorm"
)

type SessionRecord struct {
	ID              string         `gorm:"primaryKey" json:"id"` // session directory name, e.g. 20250601-120000
	Dir             string         `gorm:"not null" json:"dir"`
	StartedAt       time.Time      `gorm:"not null;index" json:"started_at"`
	EndedAt         *time.Time     `json:"ended_at,omitempty"`
	Reason          string         `json:"reason,omitempty"` // "user-stopped" or "inactivity-timeout"
	EventCount      int            `gorm:"not null;default:0" json:"event_count"`
	ScreenshotCount int            `gorm:"not null;default:0" json:"screenshot_count"`
	DisplayServer   string         `gorm:"not null" json:"display_server"` // "x11" or "wayland"
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

type AppUsage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"not null;index" json:"session_id"`
	AppName    string    `gorm:"not null;index" json:"app_name"`
	Seconds    float64   `gorm:"not null;default:0" json:"seconds"`
	FocusCount int       `gorm:"not null;default:0" json:"focus_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
