package repository

import (
	"context"
	"errors"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DefaultRateRepository struct {
	db *gorm.DB
}

func NewDefaultRateRepository(db *gorm.DB) *DefaultRateRepository {
	return &DefaultRateRepository{db: db}
}

func (r *DefaultRateRepository) GetRate(ctx context.Context, base, target string) (*domain.CurrencyRate, error) {
	var model models.CurrencyRateModel
	err := r.db.WithContext(ctx).
		Where("base_currency = ? AND target_currency = ?", base, target).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRateNotFound
		}
		return nil, err
	}
	rate := mappers.ToDomainRate(&model)
	return &rate, nil
}

func (r *DefaultRateRepository) ListRates(ctx context.Context) ([]domain.CurrencyRate, error) {
	var rows []models.CurrencyRateModel
	if err := r.db.WithContext(ctx).Order("base_currency, target_currency").Find(&rows).Error; err != nil {
		return nil, err
	}
	rates := make([]domain.CurrencyRate, 0, len(rows))
	for i := range rows {
		rates = append(rates, mappers.ToDomainRate(&rows[i]))
	}
	return rates, nil
}

// ApplyRateUpdates runs the whole batch in one database transaction. Existing
// rows are locked on postgres so that two concurrent batches touching the same
// pair record a consistent old rate.
func (r *DefaultRateRepository) ApplyRateUpdates(ctx context.Context, updates []domain.RateUpdate, actor, source string) ([]domain.RateChange, error) {
	var changes []domain.RateChange
	lockRows := r.db.Dialector.Name() == "postgres"

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, u := range updates {
			var existing models.CurrencyRateModel
			query := tx
			if lockRows {
				query = query.Clauses(clause.Locking{Strength: "UPDATE"})
			}
			err := query.Where("base_currency = ? AND target_currency = ?", u.From, u.To).Take(&existing).Error
			found := err == nil
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if found && existing.Rate.Equal(u.Rate) {
				continue
			}

			rate := models.CurrencyRateModel{
				BaseCurrency:   u.From,
				TargetCurrency: u.To,
				Rate:           u.Rate,
				UpdatedAt:      now,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "base_currency"}, {Name: "target_currency"}},
				DoUpdates: clause.AssignmentColumns([]string{"rate", "updated_at"}),
			}).Create(&rate).Error; err != nil {
				return err
			}

			history := models.CurrencyRateHistoryModel{
				BaseCurrency:   u.From,
				TargetCurrency: u.To,
				NewRate:        u.Rate,
				ChangedBy:      actor,
				Source:         source,
				CreatedAt:      now,
			}
			if found {
				history.OldRate = decimal.NewNullDecimal(existing.Rate)
			}
			if err := tx.Create(&history).Error; err != nil {
				return err
			}
			changes = append(changes, mappers.ToDomainRateChange(&history))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// ListHistory returns the newest changes first.
func (r *DefaultRateRepository) ListHistory(ctx context.Context, limit int) ([]domain.RateChange, error) {
	var rows []models.CurrencyRateHistoryModel
	query := r.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	changes := make([]domain.RateChange, 0, len(rows))
	for i := range rows {
		changes = append(changes, mappers.ToDomainRateChange(&rows[i]))
	}
	return changes, nil
}
