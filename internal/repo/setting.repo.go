package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"payment-orchestrator/internal/domain"
)

type SettingRepo interface {
	ListByPrefix(ctx context.Context, prefix string) ([]domain.GatewaySetting, error)
	Upsert(ctx context.Context, key, value string) error
}

type settingRepo struct {
	db *gorm.DB
}

func NewSettingRepo(db *gorm.DB) SettingRepo {
	return &settingRepo{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *settingRepo) ListByPrefix(ctx context.Context, prefix string) ([]domain.GatewaySetting, error) {
	var rows []domain.GatewaySetting
	err := r.db.WithContext(ctx).
		Where(`"key" LIKE ?`, likeEscaper.Replace(prefix)+"%").
		Order(`"key"`).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gateway_settings list %q: %w", prefix, err)
	}
	return rows, nil
}

// Upsert also revives a soft-deleted key.
func (r *settingRepo) Upsert(ctx context.Context, key, value string) error {
	now := time.Now()
	row := domain.GatewaySetting{Key: key, Value: value, CreatedAt: now, UpdatedAt: now}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "key"}},
			DoUpdates: clause.Assignments(map[string]any{
				"value":      value,
				"updated_at": now,
				"deleted_at": nil,
			}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("gateway_settings upsert %q: %w", key, err)
	}
	return nil
}
