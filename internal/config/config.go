package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendPostgres = "postgres"
	BackendDynamo   = "dynamodb"
)

type Config struct {
	Service  string
	Env      string
	LogLevel string
	Port     string

	StoreBackend   string
	PostgresURL    string
	DynamoTable    string
	DynamoEndpoint string
	AWSRegion      string
	MigrationsPath string

	ImageBucket    string
	ImageUploadTTL time.Duration
	S3Endpoint     string

	KafkaBrokers      []string
	PaymentTopic      string
	OrderCreatedTopic string
	ReconcileTopic    string
	ConsumerGroup     string

	CartTTL           time.Duration
	CartSweepInterval time.Duration
	DefaultPageSize   int
	MaxPageSize       int
	StoreTimeout      time.Duration
	EnrichConcurrency int

	CartServiceURL      string
	InventoryServiceURL string
	OrdersServiceURL    string
	EmailServiceURL     string
}

// Load reads the process configuration from the environment. defaultPort is
// used when PORT is unset.
func Load(service, defaultPort string) (Config, error) {
	cfg := Config{
		Service:  service,
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnv("PORT", defaultPort),

		StoreBackend:   getEnv("STORE_BACKEND", BackendPostgres),
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		DynamoTable:    getEnv("DYNAMODB_TABLE", "cellarflow"),
		DynamoEndpoint: os.Getenv("DYNAMODB_ENDPOINT"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),

		ImageBucket: getEnv("IMAGE_BUCKET", "cellarflow-images"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),

		PaymentTopic:      getEnv("PAYMENT_TOPIC", "payment.completed"),
		OrderCreatedTopic: getEnv("ORDER_CREATED_TOPIC", "order.created"),
		ReconcileTopic:    getEnv("RECONCILE_TOPIC", "order.reconcile"),
		ConsumerGroup:     getEnv("CONSUMER_GROUP", service),

		CartServiceURL:      os.Getenv("CART_SERVICE_URL"),
		InventoryServiceURL: os.Getenv("INVENTORY_SERVICE_URL"),
		OrdersServiceURL:    os.Getenv("ORDERS_SERVICE_URL"),
		EmailServiceURL:     os.Getenv("EMAIL_SERVICE_URL"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	ttlSeconds, err := getEnvInt("CART_TTL_SECONDS", 3600)
	if err != nil {
		return Config{}, err
	}
	cfg.CartTTL = time.Duration(ttlSeconds) * time.Second

	if cfg.DefaultPageSize, err = getEnvInt("DEFAULT_PAGE_SIZE", 10); err != nil {
		return Config{}, err
	}
	if cfg.MaxPageSize, err = getEnvInt("MAX_PAGE_SIZE", 100); err != nil {
		return Config{}, err
	}
	if cfg.EnrichConcurrency, err = getEnvInt("ENRICH_CONCURRENCY", 4); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout, err = getEnvDuration("STORE_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CartSweepInterval, err = getEnvDuration("CART_SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ImageUploadTTL, err = getEnvDuration("IMAGE_UPLOAD_TTL", time.Minute); err != nil {
		return Config{}, err
	}

	if cfg.StoreBackend != BackendPostgres && cfg.StoreBackend != BackendDynamo {
		return Config{}, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendDynamo, cfg.StoreBackend)
	}
	if cfg.CartTTL <= 0 || cfg.DefaultPageSize <= 0 || cfg.MaxPageSize <= 0 || cfg.EnrichConcurrency <= 0 {
		return Config{}, fmt.Errorf("CART_TTL_SECONDS, DEFAULT_PAGE_SIZE, MAX_PAGE_SIZE and ENRICH_CONCURRENCY must be positive")
	}

	return cfg, nil
}

// Require returns an error naming the first listed variable that is unset.
func (c Config) Require(names ...string) error {
	values := map[string]string{
		"POSTGRES_URL":          c.PostgresURL,
		"DYNAMODB_TABLE":        c.DynamoTable,
		"IMAGE_BUCKET":          c.ImageBucket,
		"KAFKA_BROKERS":         strings.Join(c.KafkaBrokers, ","),
		"CART_SERVICE_URL":      c.CartServiceURL,
		"INVENTORY_SERVICE_URL": c.InventoryServiceURL,
		"ORDERS_SERVICE_URL":    c.OrdersServiceURL,
		"EMAIL_SERVICE_URL":     c.EmailServiceURL,
	}
	for _, name := range names {
		value, known := values[name]
		if !known {
			return fmt.Errorf("unknown configuration variable %s", name)
		}
		if value == "" {
			return fmt.Errorf("%s environment variable is required", name)
		}
	}
	return nil
}

// RequireStore checks the variables needed by the selected store backend.
func (c Config) RequireStore() error {
	if c.StoreBackend == BackendDynamo {
		return c.Require("DYNAMODB_TABLE")
	}
	return c.Require("POSTGRES_URL")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
