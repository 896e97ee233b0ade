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

// DefaultTransactionRepository exposes no delete and one bounded update.
type DefaultTransactionRepository struct {
	db *gorm.DB
}

func NewDefaultTransactionRepository(db *gorm.DB) *DefaultTransactionRepository {
	return &DefaultTransactionRepository{db: db}
}

func (r *DefaultTransactionRepository) Append(ctx context.Context, tx *domain.Transaction) error {
	model, err := mappers.ToGORMTransaction(tx)
	if err != nil {
		return fmt.Errorf("failed to encode ledger amounts: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateTransaction
		}
		return err
	}
	return nil
}

func (r *DefaultTransactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var model models.TransactionModel
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return mappers.ToDomainTransaction(&model)
}

func (r *DefaultTransactionRepository) ListByIntent(ctx context.Context, intentID string) ([]*domain.Transaction, error) {
	var rows []models.TransactionModel
	if err := r.db.WithContext(ctx).Where("intent_id = ?", intentID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	txs := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		tx, err := mappers.ToDomainTransaction(&rows[i])
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (r *DefaultTransactionRepository) SettleStatus(ctx context.Context, transactionID string, to domain.TransactionStatus, errorMessage *string) (bool, error) {
	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": time.Now(),
	}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}

	result := r.db.WithContext(ctx).
		Model(&models.TransactionModel{}).
		Where("transaction_id = ? AND status = ?", transactionID, string(domain.TransactionProcessing)).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TransactionModel{}).Where("transaction_id = ?", transactionID).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, domain.ErrTransactionNotFound
	}
	return false, nil
}
