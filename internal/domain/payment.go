package domain

import (
	"github.com/google/uuid"
)

// PaymentCompleted is published once per order when its adapter reports terminal success.
type PaymentCompleted struct {
	Gateway        string    `json:"gateway"`
	PaymentOrderID uuid.UUID `json:"payment_order_id"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	Service        string    `json:"service"`
	UserID         string    `json:"user_id"`
}
