package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"payment-orchestrator/internal/domain"
)

type OrderRepo interface {
	CreateOrder(ctx context.Context, order *domain.PaymentOrder) error
	FindById(ctx context.Context, id uuid.UUID) (*domain.PaymentOrder, error)
	// AttachDocument sets the provider document id once, together with the adapter's new status.
	AttachDocument(ctx context.Context, id uuid.UUID, documentID string, status int) error
	FindForWebhook(ctx context.Context, gateway, documentID, checkCode string) (*domain.PaymentOrder, error)
	// TransitionStatus locks the order row and writes the status decide returns, if any.
	TransitionStatus(ctx context.Context, id uuid.UUID, decide func(current int) (int, bool)) (*domain.PaymentOrder, bool, error)
	// ClaimCompletion marks the completion event as published; false if already claimed.
	ClaimCompletion(ctx context.Context, id uuid.UUID) (bool, error)
	ReleaseCompletion(ctx context.Context, id uuid.UUID) error
	FindLostOrders(ctx context.Context, gateway string, status int, createdBefore time.Time, limit int) ([]domain.PaymentOrder, error)
}

const orderColumns = `id, type, gateway, amount, currency, check_code, service_document_id, status,
	service, service_ref, document, user_id, completion_published_at, created_at, updated_at, deleted_at`

const insertOrder = `
INSERT INTO payment_orders (
	id, type, gateway, amount, currency, check_code, status,
	service, service_ref, document, user_id, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

const selectOrderByID = `SELECT ` + orderColumns + `
FROM payment_orders
WHERE id = $1 AND deleted_at IS NULL
`

const selectOrderForUpdate = selectOrderByID + ` FOR UPDATE`

const selectOrderForWebhook = `SELECT ` + orderColumns + `
FROM payment_orders
WHERE gateway = $1 AND service_document_id = $2 AND check_code = $3 AND deleted_at IS NULL
`

const attachDocument = `
UPDATE payment_orders
SET service_document_id = $2, status = $3, updated_at = $4
WHERE id = $1 AND service_document_id IS NULL AND deleted_at IS NULL
`

const updateOrderStatus = `
UPDATE payment_orders
SET status = $2, updated_at = $3
WHERE id = $1
`

const claimCompletion = `
UPDATE payment_orders
SET completion_published_at = $2
WHERE id = $1 AND completion_published_at IS NULL
`

const releaseCompletion = `
UPDATE payment_orders
SET completion_published_at = NULL
WHERE id = $1
`

const selectLostOrders = `SELECT ` + orderColumns + `
FROM payment_orders
WHERE gateway = $1 AND status = $2 AND created_at < $3 AND deleted_at IS NULL
ORDER BY created_at
LIMIT $4
`

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

func (r *orderRepo) CreateOrder(ctx context.Context, order *domain.PaymentOrder) error {
	var document any
	if len(order.Document) > 0 {
		document = []byte(order.Document)
	}
	_, err := r.db.ExecContext(ctx, insertOrder,
		order.ID,
		order.Type,
		order.Gateway,
		order.Amount,
		order.Currency,
		order.CheckCode,
		order.Status,
		order.Service,
		order.ServiceRef,
		document,
		order.UserID,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if isUniqueViolation(err, "ux_payment_orders_check_code") {
		return ErrDuplicateCheckCode
	}
	if err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}
	return nil
}

func (r *orderRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.PaymentOrder, error) {
	return scanOrder(r.db.QueryRowContext(ctx, selectOrderByID, id))
}

func (r *orderRepo) AttachDocument(ctx context.Context, id uuid.UUID, documentID string, status int) error {
	res, err := r.db.ExecContext(ctx, attachDocument, id, documentID, status, time.Now())
	if err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("result.RowsAffected: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := r.FindById(ctx, id); err != nil {
		return err
	}
	return ErrDocumentAlreadySet
}

func (r *orderRepo) FindForWebhook(ctx context.Context, gateway, documentID, checkCode string) (*domain.PaymentOrder, error) {
	return scanOrder(r.db.QueryRowContext(ctx, selectOrderForWebhook, gateway, documentID, checkCode))
}

func (r *orderRepo) TransitionStatus(
	ctx context.Context,
	id uuid.UUID,
	decide func(current int) (int, bool),
) (*domain.PaymentOrder, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("db.BeginTx: %w", err)
	}
	defer tx.Rollback()

	order, err := scanOrder(tx.QueryRowContext(ctx, selectOrderForUpdate, id))
	if err != nil {
		return nil, false, err
	}

	next, ok := decide(order.Status)
	if !ok || next == order.Status {
		return order, false, nil
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, updateOrderStatus, id, next, now); err != nil {
		return nil, false, fmt.Errorf("tx.ExecContext: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("tx.Commit: %w", err)
	}
	order.Status = next
	order.UpdatedAt = now
	return order, true, nil
}

func (r *orderRepo) ClaimCompletion(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, claimCompletion, id, time.Now())
	if err != nil {
		return false, fmt.Errorf("db.ExecContext: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("result.RowsAffected: %w", err)
	}
	return n == 1, nil
}

func (r *orderRepo) ReleaseCompletion(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, releaseCompletion, id); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}
	return nil
}

func (r *orderRepo) FindLostOrders(
	ctx context.Context,
	gateway string,
	status int,
	createdBefore time.Time,
	limit int,
) ([]domain.PaymentOrder, error) {
	rows, err := r.db.QueryContext(ctx, selectLostOrders, gateway, status, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("db.QueryContext: %w", err)
	}
	defer rows.Close()

	var orders []domain.PaymentOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return orders, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.PaymentOrder, error) {
	var (
		o        domain.PaymentOrder
		document []byte
	)
	err := row.Scan(
		&o.ID,
		&o.Type,
		&o.Gateway,
		&o.Amount,
		&o.Currency,
		&o.CheckCode,
		&o.ServiceDocumentID,
		&o.Status,
		&o.Service,
		&o.ServiceRef,
		&document,
		&o.UserID,
		&o.CompletionPublishedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("row.Scan: %w", err)
	}
	if len(document) > 0 {
		o.Document = document
	}
	return &o, nil
}
