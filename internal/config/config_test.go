package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-settlement/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, config.StorePostgres, cfg.Store)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "USD", cfg.PaymentCurrency)
	assert.True(t, cfg.BkashEnabled)
	assert.False(t, cfg.StripeEnabled())
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 100, cfg.OutboxBatch)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test")
	t.Setenv("STRIPE_TIMEOUT", "3s")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SEED_PRODUCTS", `[{"id":"A","name":"Keyboard","sku":"KB-1","price":"1000.00","stock":10}]`)

	cfg, err := config.Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, config.StoreMemory, cfg.Store)
	assert.True(t, cfg.StripeEnabled())
	assert.Equal(t, 3*time.Second, cfg.StripeTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Len(t, cfg.SeedProducts, 1)
	assert.True(t, decimal.RequireFromString("1000").Equal(cfg.SeedProducts[0].Price))
	assert.Equal(t, 10, cfg.SeedProducts[0].Stock)
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR=:9999\nPAYMENT_CURRENCY=BDT\n"), 0o600))
	t.Setenv("PAYMENT_CURRENCY", "EUR")
	t.Cleanup(func() { _ = os.Unsetenv("HTTP_ADDR") })

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "EUR", cfg.PaymentCurrency)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":       {"STORE": "sqlite"},
		"bad currency":        {"PAYMENT_CURRENCY": "dollars"},
		"no provider":         {"BKASH_ENABLED": "false"},
		"kafka without topic": {"KAFKA_ENABLED": "true", "KAFKA_TOPIC": ""},
		"bad duration":        {"SHUTDOWN_TIMEOUT": "soon"},
		"bad seed json":       {"SEED_PRODUCTS": "[{"},
		"seed without id":     {"SEED_PRODUCTS": `[{"name":"x","price":"1.00","stock":1}]`},
		"zero outbox batch":   {"OUTBOX_BATCH": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := config.Load(missingEnvFile(t))
			assert.Error(t, err)
		})
	}
}
