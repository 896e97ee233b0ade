package repository

import (
	"context"
	"errors"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type DefaultWebhookEventRepository struct {
	db *gorm.DB
}

func NewDefaultWebhookEventRepository(db *gorm.DB) *DefaultWebhookEventRepository {
	return &DefaultWebhookEventRepository{db: db}
}

func (r *DefaultWebhookEventRepository) Record(ctx context.Context, record *domain.WebhookEventRecord) error {
	if err := r.db.WithContext(ctx).Create(mappers.ToGORMWebhookEvent(record)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateWebhookEvent
		}
		return err
	}
	return nil
}

func (r *DefaultWebhookEventRepository) Find(ctx context.Context, provider, eventID string) (*domain.WebhookEventRecord, error) {
	var model models.WebhookEventModel
	err := r.db.WithContext(ctx).
		Where("provider = ? AND event_id = ?", provider, eventID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrWebhookEventNotFound
		}
		return nil, err
	}
	return mappers.ToDomainWebhookEvent(&model), nil
}
