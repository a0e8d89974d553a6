package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Audit entities are append-only side-channel records. They never take part in the
// order state machine.

type LogRequest struct {
	ID        uint           `gorm:"primaryKey"`
	Gateway   string         `gorm:"type:varchar(64);not null;index"`
	RequestID string         `gorm:"type:varchar(64)"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (LogRequest) TableName() string { return "log_requests" }

type LogRequestError struct {
	ID        uint           `gorm:"primaryKey"`
	Gateway   string         `gorm:"type:varchar(64);not null;index"`
	OrderID   *string        `gorm:"type:uuid"`
	RequestID string         `gorm:"type:varchar(64)"`
	Message   string         `gorm:"type:text;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (LogRequestError) TableName() string { return "log_request_errors" }

type LogWebhook struct {
	ID        uint           `gorm:"primaryKey"`
	Gateway   string         `gorm:"type:varchar(64);not null;index"`
	OrderID   *string        `gorm:"type:uuid"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (LogWebhook) TableName() string { return "log_webhooks" }

// LogWebhookError keeps the raw body as text because rejected payloads are not
// guaranteed to be JSON.
type LogWebhookError struct {
	ID        uint      `gorm:"primaryKey"`
	Gateway   string    `gorm:"type:varchar(64);not null;index"`
	Message   string    `gorm:"type:text;not null"`
	Payload   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (LogWebhookError) TableName() string { return "log_webhook_errors" }
