// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with TOUCHLINE_.
//
// Configuration priority: Environment variables > Config file > Defaults
//
// Required environment variables:
//   - API_FOOTBALL_KEY or TOUCHLINE_UPSTREAM_API_KEY: provider API key
//   - MYSQL_DSN or TOUCHLINE_DATA_DATABASE_SOURCE: database connection string
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("TOUCHLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Direct environment variable names (without prefix) for required fields
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "TOUCHLINE_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "REDIS_ADDR", "TOUCHLINE_DATA_REDIS_ADDR")
	_ = v.BindEnv("upstream.api_key", "API_FOOTBALL_KEY", "TOUCHLINE_UPSTREAM_API_KEY")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	bc := &Bootstrap{
		Server: &Server{
			HTTP: &HTTPServer{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: v.GetDuration("server.http.timeout"),
			},
		},
		Data: &Data{
			Database: &Database{
				Driver:      v.GetString("data.database.driver"),
				Source:      v.GetString("data.database.source"),
				AutoMigrate: v.GetBool("data.database.auto_migrate"),
			},
			Redis: &Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				Password:     v.GetString("data.redis.password"),
				DB:           v.GetInt("data.redis.db"),
				ReadTimeout:  v.GetDuration("data.redis.read_timeout"),
				WriteTimeout: v.GetDuration("data.redis.write_timeout"),
			},
		},
		Upstream: &Upstream{
			BaseURL:          v.GetString("upstream.base_url"),
			APIKey:           v.GetString("upstream.api_key"),
			Tier:             v.GetString("upstream.tier"),
			Timeout:          v.GetDuration("upstream.timeout"),
			ProxyURL:         v.GetString("upstream.proxy_url"),
			MaxAttempts:      v.GetInt("upstream.max_attempts"),
			FailureThreshold: v.GetInt("upstream.failure_threshold"),
			ResetTimeout:     v.GetDuration("upstream.reset_timeout"),
		},
		Quota: &Quota{
			DailySafetyCap: v.GetInt("quota.daily_safety_cap"),
			LogSize:        v.GetInt("quota.log_size"),
		},
		Fixtures: &Fixtures{
			League:   v.GetInt64("fixtures.league"),
			Season:   v.GetInt("fixtures.season"),
			Timezone: v.GetString("fixtures.timezone"),
		},
		Retention: &Retention{
			Enabled:  v.GetBool("retention.enabled"),
			Schedule: v.GetString("retention.schedule"),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 30*time.Second)

	v.SetDefault("data.database.driver", "mysql")
	v.SetDefault("data.database.auto_migrate", false)
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.db", 0)
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	v.SetDefault("upstream.base_url", "https://v3.football.api-sports.io")
	v.SetDefault("upstream.tier", "free")
	v.SetDefault("upstream.timeout", 10*time.Second)
	v.SetDefault("upstream.max_attempts", 3)
	v.SetDefault("upstream.failure_threshold", 5)
	v.SetDefault("upstream.reset_timeout", 30*time.Second)
	// Note: upstream.api_key (API_FOOTBALL_KEY) is required from environment

	v.SetDefault("quota.daily_safety_cap", 80)
	v.SetDefault("quota.log_size", 100)

	v.SetDefault("fixtures.league", 39)
	v.SetDefault("fixtures.season", 2024)
	v.SetDefault("fixtures.timezone", "UTC")

	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.schedule", "0 30 3 * * *")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all missing required fields.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}

	if bc.Upstream == nil || bc.Upstream.APIKey == "" {
		missingFields = append(missingFields, "upstream.api_key (API_FOOTBALL_KEY)")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	if bc.Quota != nil && bc.Quota.DailySafetyCap <= 0 {
		return fmt.Errorf("quota.daily_safety_cap must be positive, got %d", bc.Quota.DailySafetyCap)
	}

	if d := bc.Data.Database.Driver; d != "" && d != "mysql" && d != "sqlite" {
		return fmt.Errorf("unsupported data.database.driver %q (supported: mysql, sqlite)", d)
	}

	return nil
}
