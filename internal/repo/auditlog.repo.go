package repo

import (
	"context"

	"gorm.io/gorm"

	"payment-orchestrator/internal/domain"
)

type AuditRepo interface {
	CreateRequestLog(ctx context.Context, l *domain.LogRequest) error
	CreateRequestErrorLog(ctx context.Context, l *domain.LogRequestError) error
	CreateWebhookLog(ctx context.Context, l *domain.LogWebhook) error
	CreateWebhookErrorLog(ctx context.Context, l *domain.LogWebhookError) error
}

type auditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) AuditRepo {
	return &auditRepo{db: db}
}

func (r *auditRepo) CreateRequestLog(ctx context.Context, l *domain.LogRequest) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *auditRepo) CreateRequestErrorLog(ctx context.Context, l *domain.LogRequestError) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *auditRepo) CreateWebhookLog(ctx context.Context, l *domain.LogWebhook) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *auditRepo) CreateWebhookErrorLog(ctx context.Context, l *domain.LogWebhookError) error {
	return r.db.WithContext(ctx).Create(l).Error
}
