package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OrderType string

const (
	OrderPayIn  OrderType = "PAYIN"
	OrderPayOut OrderType = "PAYOUT"
)

// StatusUnset is the zero status. Orders are created in their adapter's new status, and
// every adapter's own status constants start above it.
const StatusUnset = 0

// PaymentOrder is one charge attempt, correlatable to exactly one provider-side document.
// Status values are owned by the adapter named in Gateway.
type PaymentOrder struct {
	ID                    uuid.UUID
	Type                  OrderType
	Gateway               string
	Amount                int64 // minor units
	Currency              string
	CheckCode             string
	ServiceDocumentID     *string
	Status                int
	Service               string
	ServiceRef            string
	Document              json.RawMessage
	UserID                string
	CompletionPublishedAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
	DeletedAt             *time.Time
}

func (o *PaymentOrder) HasDocument() bool {
	return o.ServiceDocumentID != nil && *o.ServiceDocumentID != ""
}
