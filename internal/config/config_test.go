package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("CART_TTL_SECONDS", "")
		t.Setenv("DEFAULT_PAGE_SIZE", "")
		t.Setenv("STORE_BACKEND", "")
		t.Setenv("PORT", "")
		t.Setenv("IMAGE_BUCKET", "")
		t.Setenv("IMAGE_UPLOAD_TTL", "")

		cfg, err := Load("cart", "8085")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.CartTTL != time.Hour {
			t.Errorf("expected cart ttl 1h, got %s", cfg.CartTTL)
		}
		if cfg.DefaultPageSize != 10 {
			t.Errorf("expected default page size 10, got %d", cfg.DefaultPageSize)
		}
		if cfg.StoreBackend != BackendPostgres {
			t.Errorf("expected postgres backend, got %s", cfg.StoreBackend)
		}
		if cfg.Port != "8085" {
			t.Errorf("expected port 8085, got %s", cfg.Port)
		}
		if cfg.ImageBucket != "cellarflow-images" || cfg.ImageUploadTTL != time.Minute {
			t.Errorf("unexpected image upload defaults: %s %s", cfg.ImageBucket, cfg.ImageUploadTTL)
		}
		if cfg.ConsumerGroup != "cart" {
			t.Errorf("expected consumer group to default to service name, got %s", cfg.ConsumerGroup)
		}
	})

	t.Run("reads overrides", func(t *testing.T) {
		t.Setenv("CART_TTL_SECONDS", "120")
		t.Setenv("STORE_TIMEOUT", "250ms")
		t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

		cfg, err := Load("worker", "8083")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.CartTTL != 2*time.Minute {
			t.Errorf("expected cart ttl 2m, got %s", cfg.CartTTL)
		}
		if cfg.StoreTimeout != 250*time.Millisecond {
			t.Errorf("expected store timeout 250ms, got %s", cfg.StoreTimeout)
		}
		if len(cfg.KafkaBrokers) != 2 {
			t.Errorf("expected 2 brokers, got %v", cfg.KafkaBrokers)
		}
	})

	t.Run("rejects malformed integers", func(t *testing.T) {
		t.Setenv("DEFAULT_PAGE_SIZE", "ten")

		if _, err := Load("cart", "8085"); err == nil {
			t.Error("expected error for malformed DEFAULT_PAGE_SIZE")
		}
	})

	t.Run("rejects unknown backend", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "mongo")

		if _, err := Load("cart", "8085"); err == nil {
			t.Error("expected error for unknown backend")
		}
	})
}

func TestConfig_Require(t *testing.T) {
	cfg := Config{PostgresURL: "postgres://localhost"}

	if err := cfg.Require("POSTGRES_URL"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := cfg.Require("POSTGRES_URL", "KAFKA_BROKERS"); err == nil {
		t.Error("expected error for missing KAFKA_BROKERS")
	}
	if err := cfg.RequireStore(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
