package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the process configuration, read from the environment.
type Config struct {
	ServiceName     string        `envconfig:"SERVICE_NAME" default:"minishop-settlement"`
	Env             string        `envconfig:"ENV" default:"dev"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFile         string        `envconfig:"LOG_FILE"`
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`

	Store        string       `envconfig:"STORE" default:"postgres"`
	SeedProducts SeedProducts `envconfig:"SEED_PRODUCTS"`

	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"minishop"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	PaymentCurrency        string        `envconfig:"PAYMENT_CURRENCY" default:"USD"`
	StripeSecretKey        string        `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret    string        `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeBaseURL          string        `envconfig:"STRIPE_BASE_URL" default:"https://api.stripe.com"`
	StripeTimeout          time.Duration `envconfig:"STRIPE_TIMEOUT" default:"10s"`
	StripeWebhookTolerance time.Duration `envconfig:"STRIPE_WEBHOOK_TOLERANCE" default:"5m"`
	BkashEnabled           bool          `envconfig:"BKASH_ENABLED" default:"true"`

	KafkaEnabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"minishop.settlement.events"`

	OutboxInterval time.Duration `envconfig:"OUTBOX_INTERVAL" default:"1s"`
	OutboxBatch    int           `envconfig:"OUTBOX_BATCH" default:"100"`
}

// SeedProduct is one catalog entry inserted at startup when its id is not
// in the store yet. Existing entries keep their stock and price.
type SeedProduct struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	SKU   string          `json:"sku"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// SeedProducts decodes a JSON array, e.g.
// [{"id":"A","name":"Keyboard","sku":"KB-1","price":"1000.00","stock":10}].
type SeedProducts []SeedProduct

func (s *SeedProducts) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		*s = nil
		return nil
	}
	var out []SeedProduct
	if err := json.Unmarshal([]byte(value), &out); err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	*s = out
	return nil
}

// Load reads the optional dotenv files (".env" when none are given) and then
// the process environment. Variables already set in the environment win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store))
	}
	if len(c.PaymentCurrency) != 3 {
		errs = append(errs, fmt.Errorf("PAYMENT_CURRENCY must be an ISO 4217 code, got %q", c.PaymentCurrency))
	}
	if !c.StripeEnabled() && !c.BkashEnabled {
		errs = append(errs, errors.New("no payment provider enabled: set STRIPE_SECRET_KEY or BKASH_ENABLED"))
	}
	if c.StripeWebhookSecret != "" && c.StripeWebhookTolerance <= 0 {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_TOLERANCE must be positive"))
	}
	if c.KafkaEnabled && (len(c.KafkaBrokers) == 0 || c.KafkaTopic == "") {
		errs = append(errs, errors.New("KAFKA_BROKERS and KAFKA_TOPIC are required when KAFKA_ENABLED"))
	}
	if c.OutboxInterval <= 0 || c.OutboxBatch <= 0 {
		errs = append(errs, errors.New("OUTBOX_INTERVAL and OUTBOX_BATCH must be positive"))
	}
	for i, p := range c.SeedProducts {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("SEED_PRODUCTS[%d]: id is required", i))
		}
	}
	return errors.Join(errs...)
}

func (c Config) StripeEnabled() bool { return c.StripeSecretKey != "" }
