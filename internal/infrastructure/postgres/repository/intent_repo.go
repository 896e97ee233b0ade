package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type DefaultIntentRepository struct {
	db *gorm.DB
}

func NewDefaultIntentRepository(db *gorm.DB) *DefaultIntentRepository {
	return &DefaultIntentRepository{db: db}
}

func (r *DefaultIntentRepository) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	model, err := mappers.ToGORMIntent(intent)
	if err != nil {
		return fmt.Errorf("failed to encode intent metadata: %w", err)
	}
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *DefaultIntentRepository) GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	var model models.PaymentIntentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrIntentNotFound
		}
		return nil, err
	}
	return mappers.ToDomainIntent(&model)
}

func (r *DefaultIntentRepository) GetByProviderTransactionID(ctx context.Context, provider, transactionID string) (*domain.PaymentIntent, error) {
	var model models.PaymentIntentModel
	err := r.db.WithContext(ctx).
		Where("payment_method = ? AND provider_transaction_id = ?", provider, transactionID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrIntentNotFound
		}
		return nil, err
	}
	return mappers.ToDomainIntent(&model)
}

// TransitionStatus is a single conditional UPDATE; the affected row count
// decides the race between concurrent callers.
func (r *DefaultIntentRepository) TransitionStatus(ctx context.Context, id string, from, to domain.IntentStatus, update domain.IntentUpdate) error {
	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": time.Now(),
	}
	if update.ProviderTransactionID != "" {
		updates["provider_transaction_id"] = gorm.Expr("COALESCE(provider_transaction_id, ?)", update.ProviderTransactionID)
	}
	if update.FailureReason != "" {
		updates["failure_reason"] = update.FailureReason
	}

	result := r.db.WithContext(ctx).
		Model(&models.PaymentIntentModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to transition intent %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return r.missOrStale(ctx, id)
	}
	return nil
}

func (r *DefaultIntentRepository) AttachProviderTransaction(ctx context.Context, id, transactionID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentIntentModel{}).
		Where("id = ? AND status = ? AND provider_transaction_id IS NULL", id, string(domain.IntentProcessing)).
		Updates(map[string]interface{}{
			"provider_transaction_id": transactionID,
			"updated_at":              time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to attach provider transaction to %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return r.missOrStale(ctx, id)
	}
	return nil
}

func (r *DefaultIntentRepository) missOrStale(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PaymentIntentModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrIntentNotFound
	}
	return domain.ErrStaleTransition
}

func (r *DefaultIntentRepository) FindStaleProcessing(ctx context.Context, expiredBefore time.Time, limit int) ([]*domain.PaymentIntent, error) {
	var rows []models.PaymentIntentModel
	query := r.db.WithContext(ctx).
		Where("status = ?", string(domain.IntentProcessing)).
		Where("expires_at < ?", expiredBefore).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	intents := make([]*domain.PaymentIntent, 0, len(rows))
	for i := range rows {
		intent, err := mappers.ToDomainIntent(&rows[i])
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, nil
}
