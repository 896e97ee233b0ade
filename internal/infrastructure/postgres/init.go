package postgres

import (
	"fmt"
	"log"

	"github.com/LavaJover/shvark-payment-service/internal/config"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects with TranslateError enabled so unique violations surface as
// gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open payment db: %w", err)
	}
	return db, nil
}

func MustInitDB(cfg *config.PaymentConfig) *gorm.DB {
	db, err := Open(cfg.PaymentDB.Dsn)
	if err != nil {
		log.Fatalf("failed to init db: %v\n", err.Error())
	}
	return db
}

// AutoMigrate creates the schema from the models. Production uses the SQL
// migrations; this is for tests and local tooling.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.PaymentIntentModel{},
		&models.TransactionModel{},
		&models.CurrencyRateModel{},
		&models.CurrencyRateHistoryModel{},
		&models.WebhookEventModel{},
	)
}
