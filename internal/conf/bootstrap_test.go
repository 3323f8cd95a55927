package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearRequiredEnv unsets every variable that can satisfy a required field.
func clearRequiredEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MYSQL_DSN", "TOUCHLINE_DATA_DATABASE_SOURCE",
		"API_FOOTBALL_KEY", "TOUCHLINE_UPSTREAM_API_KEY",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestNewBootstrap_Defaults(t *testing.T) {
	configPath := writeConfig(t, `server:
  http:
    addr: :8080
data:
  database:
    driver: mysql
  redis:
    addr: 127.0.0.1:6379
`)

	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/touchline")
	t.Setenv("API_FOOTBALL_KEY", "test-api-key")

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)
	require.NotNil(t, bc)

	assert.Equal(t, ":8080", bc.Server.HTTP.Addr)
	assert.Equal(t, "tcp", bc.Server.HTTP.Network)
	assert.Equal(t, 30*time.Second, bc.Server.HTTP.Timeout)

	assert.Equal(t, "mysql", bc.Data.Database.Driver)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/touchline", bc.Data.Database.Source)
	assert.False(t, bc.Data.Database.AutoMigrate)
	assert.Equal(t, "127.0.0.1:6379", bc.Data.Redis.Addr)
	assert.Equal(t, 200*time.Millisecond, bc.Data.Redis.ReadTimeout)

	assert.Equal(t, "test-api-key", bc.Upstream.APIKey)
	assert.Equal(t, "free", bc.Upstream.Tier)
	assert.Equal(t, 10*time.Second, bc.Upstream.Timeout)
	assert.Equal(t, 3, bc.Upstream.MaxAttempts)
	assert.Equal(t, 5, bc.Upstream.FailureThreshold)
	assert.Equal(t, 30*time.Second, bc.Upstream.ResetTimeout)

	assert.Equal(t, 80, bc.Quota.DailySafetyCap)
	assert.Equal(t, 100, bc.Quota.LogSize)

	assert.Equal(t, int64(39), bc.Fixtures.League)
	assert.Equal(t, "0 30 3 * * *", bc.Retention.Schedule)
	assert.True(t, bc.Retention.Enabled)

	assert.Equal(t, "info", bc.Log.Level)
	assert.Equal(t, "json", bc.Log.Format)
}

func TestNewBootstrap_FileValues(t *testing.T) {
	configPath := writeConfig(t, `upstream:
  tier: pro
  reset_timeout: 45s
quota:
  daily_safety_cap: 7000
fixtures:
  league: 140
  season: 2026
data:
  database:
    driver: sqlite
    auto_migrate: true
`)
	t.Setenv("MYSQL_DSN", "file:touchline.db")
	t.Setenv("API_FOOTBALL_KEY", "test-api-key")

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)

	assert.Equal(t, "pro", bc.Upstream.Tier)
	assert.Equal(t, 45*time.Second, bc.Upstream.ResetTimeout)
	assert.Equal(t, 7000, bc.Quota.DailySafetyCap)
	assert.Equal(t, int64(140), bc.Fixtures.League)
	assert.Equal(t, 2026, bc.Fixtures.Season)
	assert.Equal(t, "sqlite", bc.Data.Database.Driver)
	assert.True(t, bc.Data.Database.AutoMigrate)
}

func TestNewBootstrap_EnvOverrides(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		expectedVal func(*Bootstrap) bool
	}{
		{
			name:    "override_http_addr",
			envVars: map[string]string{"TOUCHLINE_SERVER_HTTP_ADDR": ":9999"},
			expectedVal: func(bc *Bootstrap) bool {
				return bc.Server.HTTP.Addr == ":9999"
			},
		},
		{
			name:    "override_redis_addr",
			envVars: map[string]string{"REDIS_ADDR": "redis.example.com:6379"},
			expectedVal: func(bc *Bootstrap) bool {
				return bc.Data.Redis.Addr == "redis.example.com:6379"
			},
		},
		{
			name:    "override_tier",
			envVars: map[string]string{"TOUCHLINE_UPSTREAM_TIER": "basic"},
			expectedVal: func(bc *Bootstrap) bool {
				return bc.Upstream.Tier == "basic"
			},
		},
		{
			name:    "override_prefixed_api_key",
			envVars: map[string]string{"API_FOOTBALL_KEY": "", "TOUCHLINE_UPSTREAM_API_KEY": "prefixed-key"},
			expectedVal: func(bc *Bootstrap) bool {
				return bc.Upstream.APIKey == "prefixed-key"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearRequiredEnv(t)
			configPath := writeConfig(t, "server:\n  http:\n    addr: :8080\n")

			t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/touchline")
			t.Setenv("API_FOOTBALL_KEY", "test-api-key")
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			bc, err := NewBootstrap(configPath)
			require.NoError(t, err)
			assert.True(t, tt.expectedVal(bc))
		})
	}
}

func TestNewBootstrap_MissingRequired(t *testing.T) {
	tests := []struct {
		name          string
		envVars       map[string]string
		expectedError string
	}{
		{
			name:          "missing_mysql_dsn",
			envVars:       map[string]string{"API_FOOTBALL_KEY": "test-api-key"},
			expectedError: "data.database.source (MYSQL_DSN)",
		},
		{
			name:          "missing_api_key",
			envVars:       map[string]string{"MYSQL_DSN": "user:pass@tcp(localhost:3306)/touchline"},
			expectedError: "upstream.api_key (API_FOOTBALL_KEY)",
		},
		{
			name:          "missing_all_required",
			envVars:       map[string]string{},
			expectedError: "missing required configuration fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearRequiredEnv(t)
			configPath := writeConfig(t, "server:\n  http:\n    addr: :8080\n")

			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			bc, err := NewBootstrap(configPath)
			require.Error(t, err)
			assert.Nil(t, bc)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestNewBootstrap_ConfigFileNotFound(t *testing.T) {
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/touchline")
	t.Setenv("API_FOOTBALL_KEY", "test-api-key")

	bc, err := NewBootstrap("/non/existent/config.yaml")
	assert.Error(t, err)
	assert.Nil(t, bc)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestNewBootstrap_EmptyConfigPath(t *testing.T) {
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/touchline")
	t.Setenv("API_FOOTBALL_KEY", "test-api-key")

	bc, err := NewBootstrap("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", bc.Server.HTTP.Addr)
	assert.Equal(t, "https://v3.football.api-sports.io", bc.Upstream.BaseURL)
}

func TestValidate_AllFieldsPresent(t *testing.T) {
	bc := &Bootstrap{
		Data: &Data{
			Database: &Database{Driver: "mysql", Source: "user:pass@tcp(localhost:3306)/touchline"},
		},
		Upstream: &Upstream{APIKey: "test-api-key"},
		Quota:    &Quota{DailySafetyCap: 80},
	}

	assert.NoError(t, Validate(bc))
}

func TestValidate_NilBootstrap(t *testing.T) {
	err := Validate(&Bootstrap{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing required configuration fields")
}

func TestValidate_InvalidValues(t *testing.T) {
	base := func() *Bootstrap {
		return &Bootstrap{
			Data:     &Data{Database: &Database{Driver: "mysql", Source: "dsn"}},
			Upstream: &Upstream{APIKey: "k"},
			Quota:    &Quota{DailySafetyCap: 80},
		}
	}

	bc := base()
	bc.Quota.DailySafetyCap = 0
	assert.ErrorContains(t, Validate(bc), "daily_safety_cap must be positive")

	bc = base()
	bc.Data.Database.Driver = "postgres"
	assert.ErrorContains(t, Validate(bc), "unsupported data.database.driver")
}
