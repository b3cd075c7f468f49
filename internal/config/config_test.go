package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("CLICKHOUSE_DSN", "clickhouse://user:pass@ch:9000/events")
	t.Setenv("CATALOG_PATH", "/etc/querybatch/catalog.yaml")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GROUP_CONCURRENCY", "8")
	t.Setenv("QUERY_TIMEOUT", "45s")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "clickhouse://user:pass@ch:9000/events", cfg.ClickHouseDSN)
	assert.Equal(t, "/etc/querybatch/catalog.yaml", cfg.CatalogPath)
	assert.Equal(t, 8, cfg.GroupConcurrency)
	assert.Equal(t, 45*time.Second, cfg.QueryTimeout)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("CLICKHOUSE_DSN", "")
	t.Setenv("CATALOG_PATH", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("GROUP_CONCURRENCY", "")
	t.Setenv("QUERY_TIMEOUT", "")
	t.Setenv("ENV", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.GroupConcurrency)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.NotEmpty(t, cfg.ClickHouseDSN)
	assert.NotEmpty(t, cfg.Warnings, "missing DSN should produce a warning")
}

func TestLoadFromEnv_InvalidConcurrency(t *testing.T) {
	t.Setenv("GROUP_CONCURRENCY", "zero")

	_, err := LoadFromEnv()
	require.Error(t, err)

	t.Setenv("GROUP_CONCURRENCY", "0")
	_, err = LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnv_ProductionRequiresDSN(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("CLICKHOUSE_DSN", "")

	_, err := LoadFromEnv()
	require.Error(t, err)

	t.Setenv("CLICKHOUSE_DSN", "clickhouse://default:@ch:9000/analytics")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"bogus", "INFO"},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		assert.Equal(t, tt.want, cfg.SlogLevel().String(), "level %q", tt.level)
	}
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	if err != nil {
		t.Errorf("expected no error for missing .env, got: %v", err)
	}
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_KEY=test_value\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_KEY"); val != "test_value" {
		t.Errorf("TEST_KEY = %q, want %q", val, "test_value")
	}
	_ = os.Unsetenv("TEST_KEY")
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("TEST_PRECEDENCE_KEY", "from_env")

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_PRECEDENCE_KEY=from_file\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_PRECEDENCE_KEY"); val != "from_env" {
		t.Errorf("TEST_PRECEDENCE_KEY = %q, want %q (env precedence)", val, "from_env")
	}
}
