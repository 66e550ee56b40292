package config

import (
	"os"
	"testing"
	"time"
)

func TestConfigLoad_Defaults(t *testing.T) {
	_ = os.Unsetenv("NARRAITOR_STORAGE_DRIVER")
	_ = os.Unsetenv("NARRAITOR_AI_PROVIDER")
	_ = os.Unsetenv("NARRAITOR_ENDING_RETRY_DELAY")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.StorageDriver != "memory" || cfg.AIProvider != "openai" || cfg.HTTPPort != 8080 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.EndingMaxAttempts != 3 || cfg.EndingRetryDelay != time.Second {
		t.Fatalf("unexpected retry defaults: %d %v", cfg.EndingMaxAttempts, cfg.EndingRetryDelay)
	}
	if cfg.LoreRecallEnabled() {
		t.Fatal("lore recall should be disabled without a Milvus address")
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	t.Setenv("NARRAITOR_STORAGE_DRIVER", "sqlite")
	t.Setenv("NARRAITOR_ENDING_RETRY_DELAY", "250ms")
	t.Setenv("NARRAITOR_MILVUS_ADDRESS", "localhost:19530")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.StorageDriver != "sqlite" {
		t.Fatalf("storage driver override failed, got %s", cfg.StorageDriver)
	}
	if cfg.EndingRetryDelay != 250*time.Millisecond {
		t.Fatalf("retry delay override failed, got %v", cfg.EndingRetryDelay)
	}
	if !cfg.LoreRecallEnabled() {
		t.Fatal("lore recall should be enabled with a Milvus address")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "testing config", mutate: func(c *Config) {}, wantErr: false},
		{name: "unknown storage", mutate: func(c *Config) { c.StorageDriver = "indexeddb" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.AIProvider = "llama" }, wantErr: true},
		{name: "mysql without dsn", mutate: func(c *Config) { c.StorageDriver = "mysql" }, wantErr: true},
		{name: "zero attempts", mutate: func(c *Config) { c.EndingMaxAttempts = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewForTesting()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetHTTPAddr(t *testing.T) {
	cfg := NewForTesting()
	cfg.HTTPPort = 9000
	if got := cfg.GetHTTPAddr(); got != ":9000" {
		t.Errorf("expected :9000, got %s", got)
	}
}
