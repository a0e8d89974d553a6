package database

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"payment-orchestrator/internal/domain"
)

const createPaymentOrders = `
CREATE TABLE IF NOT EXISTS payment_orders (
	id                      uuid PRIMARY KEY,
	type                    varchar(16)  NOT NULL,
	gateway                 varchar(64)  NOT NULL,
	amount                  bigint       NOT NULL CHECK (amount > 0),
	currency                char(3)      NOT NULL,
	check_code              varchar(64)  NOT NULL,
	service_document_id     varchar(255),
	status                  integer      NOT NULL DEFAULT 0,
	service                 varchar(128) NOT NULL DEFAULT '',
	service_ref             varchar(255) NOT NULL DEFAULT '',
	document                jsonb,
	user_id                 varchar(64)  NOT NULL DEFAULT '',
	completion_published_at timestamptz,
	created_at              timestamptz  NOT NULL,
	updated_at              timestamptz  NOT NULL,
	deleted_at              timestamptz,
	CONSTRAINT ux_payment_orders_check_code UNIQUE (check_code)
);
CREATE INDEX IF NOT EXISTS ix_payment_orders_webhook
	ON payment_orders (gateway, service_document_id, check_code);
CREATE INDEX IF NOT EXISTS ix_payment_orders_lost
	ON payment_orders (gateway, status, created_at);
`

// Migrate creates the order table by hand and lets gorm manage the settings and
// audit tables.
func Migrate(ctx context.Context, db *sql.DB, gormDB *gorm.DB) error {
	if _, err := db.ExecContext(ctx, createPaymentOrders); err != nil {
		return fmt.Errorf("create payment_orders: %w", err)
	}
	err := gormDB.WithContext(ctx).AutoMigrate(
		&domain.GatewaySetting{},
		&domain.LogRequest{},
		&domain.LogRequestError{},
		&domain.LogWebhook{},
		&domain.LogWebhookError{},
	)
	if err != nil {
		return fmt.Errorf("gorm.AutoMigrate: %w", err)
	}
	return nil
}
