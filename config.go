package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/yashrajoria/giftshop-backend/database"
	awspkg "github.com/yashrajoria/giftshop-backend/pkg/aws"
	"go.uber.org/zap"
)

// Storage backends selectable through STORE_BACKEND.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

const dbSecretName = "giftshop/DB_CREDENTIALS"

type Config struct {
	Port                  string
	Env                   string
	StoreBackend          string
	MongoURL              string
	MongoDBName           string
	Postgres              database.PostgresConfig
	RedisURL              string
	OrderTopicARN         string
	InventoryTopicARN     string
	PaymentEventsQueueURL string
	CloudWatchEnabled     bool
	UseSecrets            bool
	CheckoutRatePerMin    int
	RequestTimeout        time.Duration
}

// NeedsAWS reports whether any AWS client has to be built.
func (c *Config) NeedsAWS() bool {
	return c.OrderTopicARN != "" || c.InventoryTopicARN != "" || c.PaymentEventsQueueURL != "" ||
		c.CloudWatchEnabled || c.UseSecrets
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("Failed to read .env file", zap.Error(err))
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("APP_ENV", "development"),
		StoreBackend: getEnv("STORE_BACKEND", BackendMongo),
		MongoURL:     os.Getenv("MONGO_DB_URL"),
		MongoDBName:  getEnv("MONGO_DB_NAME", "giftshop"),
		Postgres: database.PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   os.Getenv("POSTGRES_DB"),
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Ho_Chi_Minh"),
		},
		RedisURL:              os.Getenv("REDIS_URL"),
		OrderTopicARN:         os.Getenv("ORDER_SNS_TOPIC_ARN"),
		InventoryTopicARN:     os.Getenv("INVENTORY_SNS_TOPIC_ARN"),
		PaymentEventsQueueURL: os.Getenv("PAYMENT_EVENTS_QUEUE_URL"),
		CloudWatchEnabled:     os.Getenv("CLOUDWATCH_ENABLED") == "true",
		UseSecrets:            os.Getenv("AWS_USE_SECRETS") == "true",
		CheckoutRatePerMin:    getEnvInt("CHECKOUT_RATE_PER_MIN", 10),
		RequestTimeout:        getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
	}

	if cfg.UseSecrets {
		if awsCfg, err := awspkg.LoadAWSConfig(context.Background()); err == nil {
			sm := awspkg.NewSecretsClient(awsCfg)
			if creds, err := sm.StoreCredentials(context.Background(), dbSecretName); err == nil {
				cfg.applySecret(creds)
			} else {
				zap.L().Warn("Failed to read database secret", zap.String("secret", dbSecretName), zap.Error(err))
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySecret overrides the connection settings with non-empty secret values.
func (c *Config) applySecret(creds *awspkg.StoreCredentials) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.MongoURL, creds.MongoURL)
	set(&c.Postgres.User, creds.PostgresUser)
	set(&c.Postgres.Password, creds.PostgresPassword)
	set(&c.Postgres.DBName, creds.PostgresDB)
	set(&c.Postgres.Host, creds.PostgresHost)
	set(&c.Postgres.Port, creds.PostgresPort)
	set(&c.RedisURL, creds.RedisURL)
}

// Validate checks that the selected backend has what it needs to connect.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMongo:
		if c.MongoURL == "" {
			return fmt.Errorf("MONGO_DB_URL is required for the mongo backend")
		}
	case BackendPostgres:
		if c.Postgres.User == "" || c.Postgres.Password == "" || c.Postgres.DBName == "" || c.Postgres.Host == "" {
			return fmt.Errorf("database config incomplete")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.CheckoutRatePerMin <= 0 {
		return fmt.Errorf("CHECKOUT_RATE_PER_MIN must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}
