package domain

import (
	"time"

	"gorm.io/gorm"
)

// GatewaySetting is one flat key/value pair; keys are prefixed with the gateway key,
// e.g. "cardgw_secret_key".
type GatewaySetting struct {
	ID        uint           `gorm:"primaryKey"`
	Key       string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_gateway_settings_key"`
	Value     string         `gorm:"type:text;not null"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (GatewaySetting) TableName() string { return "gateway_settings" }
