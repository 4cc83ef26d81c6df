package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	awspkg "github.com/yashrajoria/giftshop-backend/pkg/aws"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("PORT", "")
	t.Setenv("CHECKOUT_RATE_PER_MIN", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("AWS_USE_SECRETS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.CheckoutRatePerMin)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.Postgres.TimeZone)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_USER", "shop")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "giftshop")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("CHECKOUT_RATE_PER_MIN", "3")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("AWS_USE_SECRETS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.CheckoutRatePerMin)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Contains(t, cfg.Postgres.DSN(), "host=db")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "mongo without url", cfg: Config{StoreBackend: BackendMongo, CheckoutRatePerMin: 1}, wantErr: "MONGO_DB_URL"},
		{name: "postgres without credentials", cfg: Config{StoreBackend: BackendPostgres, CheckoutRatePerMin: 1}, wantErr: "incomplete"},
		{name: "unknown backend", cfg: Config{StoreBackend: "sqlite", CheckoutRatePerMin: 1}, wantErr: "unknown STORE_BACKEND"},
		{name: "zero rate", cfg: Config{StoreBackend: BackendMemory}, wantErr: "CHECKOUT_RATE_PER_MIN"},
		{name: "memory", cfg: Config{StoreBackend: BackendMemory, CheckoutRatePerMin: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestApplySecret(t *testing.T) {
	cfg := Config{MongoURL: "mongodb://local"}
	cfg.Postgres.User = "env-user"

	cfg.applySecret(&awspkg.StoreCredentials{
		PostgresUser:     "secret-user",
		PostgresPassword: "pw",
	})
	assert.Equal(t, "secret-user", cfg.Postgres.User)
	assert.Equal(t, "pw", cfg.Postgres.Password)
	assert.Equal(t, "mongodb://local", cfg.MongoURL)
}
