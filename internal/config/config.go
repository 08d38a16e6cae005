// Package config provides configuration management for the keiba feature engine.
package config

// Config represents the complete application configuration
type Config struct {
	App          AppConfig          `mapstructure:"app" validate:"required"`
	Database     DatabaseConfig     `mapstructure:"database" validate:"required"`
	Data         DataConfig         `mapstructure:"data" validate:"required"`
	Datasource   DatasourceConfig   `mapstructure:"datasource" validate:"required"`
	ModelService ModelServiceConfig `mapstructure:"model_service" validate:"required"`
	History      HistoryConfig      `mapstructure:"history" validate:"required"`
	Metrics      MetricsConfig      `mapstructure:"metrics" validate:"required"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Predict      PredictConfig      `mapstructure:"predict" validate:"required"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// DataConfig locates the raw result files and the artifact bundle on disk
type DataConfig struct {
	RawDir       string `mapstructure:"raw_dir" validate:"required"`
	PedigreeFile string `mapstructure:"pedigree_file"`
	ArtifactPath string `mapstructure:"artifact_path" validate:"required"`
}

// DatasourceConfig represents the result-archive download endpoint
type DatasourceConfig struct {
	BaseURL        string  `mapstructure:"base_url" validate:"required,url"`
	APIKey         string  `mapstructure:"api_key"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	MaxRetries     int     `mapstructure:"max_retries" validate:"gte=0"`
	RateLimit      float64 `mapstructure:"rate_limit" validate:"required,gt=0"`
}

// ModelServiceConfig represents the external LightGBM ranker service
type ModelServiceConfig struct {
	HTTPAddress           string `mapstructure:"http_address" validate:"required"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" validate:"required,gt=0"`
	RetryAttempts         int    `mapstructure:"retry_attempts" validate:"gte=0"`
}

// HistoryConfig represents history cache tuning
type HistoryConfig struct {
	LookupTTLSeconds int `mapstructure:"lookup_ttl_seconds" validate:"required,gt=0"`
	LookupMaxSize    int `mapstructure:"lookup_max_size" validate:"required,gt=0"`
}

// MetricsConfig represents Prometheus exposure settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// SchedulerConfig represents the weekend run schedule
type SchedulerConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	CronExpression string `mapstructure:"cron_expression"`
}

// PredictConfig represents scoring parameters for the ranking predictor
type PredictConfig struct {
	PowerExponent int `mapstructure:"power_exponent" validate:"required,gt=0"`
}

// IsProduction returns true when running in the production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true when running in the development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
