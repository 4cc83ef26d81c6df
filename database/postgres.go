package database

import (
	"fmt"
	"time"

	"github.com/yashrajoria/giftshop-backend/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresConfig holds the connection settings read from POSTGRES_*.
type PostgresConfig struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
	SSLMode  string
	TimeZone string
}

// DSN renders the key/value connection string understood by pgx.
func (c PostgresConfig) DSN() string {
	host, port, sslMode, tz := c.Host, c.Port, c.SSLMode, c.TimeZone
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5432"
	}
	if sslMode == "" {
		sslMode = "disable"
	}
	if tz == "" {
		tz = "Asia/Ho_Chi_Minh"
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		host, c.User, c.Password, c.DBName, port, sslMode, tz,
	)
}

// Models lists every table the postgres backend owns, in migration order.
func Models() []any {
	return []any{
		&models.Product{},
		&models.Inventory{},
		&models.StockMove{},
		&models.Cart{},
		&models.CartItem{},
		&models.Discount{},
		&models.DiscountUsage{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.Shipment{},
	}
}

// ConnectPostgres opens the pool, retrying while the database comes up, and
// migrates the schema.
func ConnectPostgres(cfg PostgresConfig, logger *zap.Logger) (*gorm.DB, error) {
	if cfg.User == "" {
		return nil, fmt.Errorf("POSTGRES_USER not set")
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD not set")
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("POSTGRES_DB not set")
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
		if err == nil {
			sqlDB, poolErr := db.DB()
			if poolErr == nil {
				sqlDB.SetMaxOpenConns(25)
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
			}

			logger.Info("Connected to PostgreSQL successfully")

			if err := db.AutoMigrate(Models()...); err != nil {
				return nil, fmt.Errorf("AutoMigrate failed: %w", err)
			}
			return db, nil
		}

		logger.Warn("DB connection failed, retrying",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		time.Sleep(time.Duration(i+1) * 2 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
}

// ClosePostgres releases the pool behind db.
func ClosePostgres(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
