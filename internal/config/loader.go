package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the configuration (${VAR} syntax)
	expanded := os.ExpandEnv(string(data))

	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	v.SetEnvPrefix("KEIBA_ENGINE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults registers defaults for optional fields
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "keiba-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("data.raw_dir", "data/raw")
	v.SetDefault("data.artifact_path", "data/model/artifacts.json")
	v.SetDefault("datasource.timeout_seconds", 30)
	v.SetDefault("datasource.max_retries", 5)
	v.SetDefault("datasource.rate_limit", 2.0)
	v.SetDefault("model_service.request_timeout_seconds", 30)
	v.SetDefault("model_service.retry_attempts", 3)
	v.SetDefault("history.lookup_ttl_seconds", 600)
	v.SetDefault("history.lookup_max_size", 10000)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("scheduler.cron_expression", "0 7 * * SAT,SUN")
	v.SetDefault("predict.power_exponent", 4)
}
