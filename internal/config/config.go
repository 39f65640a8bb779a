package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "PAYDASH"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Refresh   RefreshConfig   `yaml:"refresh" envconfig:"REFRESH"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int             `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"20" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"40" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/paydash.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// SourceConfig describes where ledger data comes from and how long it is kept.
type SourceConfig struct {
	SpreadsheetID   string        `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID" default:"1dWv4kVugXNFQ2NaodZkawaXRglqRJOWR"`
	SheetGID        int64         `yaml:"sheet_gid" envconfig:"SHEET_GID" default:"840573777"`
	SheetName       string        `yaml:"sheet_name" envconfig:"SHEET_NAME" default:"Pri Payment"`
	CredentialsFile string        `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE" default:"service_account.json"`
	Order           []string      `yaml:"order" envconfig:"ORDER" default:"sheets,csv_export,demo" validate:"min=1,dive,oneof=sheets csv_export file demo"`
	FilePath        string        `yaml:"file_path" envconfig:"FILE_PATH"`
	ExportBaseURL   string        `yaml:"export_base_url" envconfig:"EXPORT_BASE_URL" default:"https://docs.google.com" validate:"url"`
	CacheTTL        time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" default:"120s" validate:"gt=0"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT" default:"20s" validate:"gt=0"`
	FetchRPS        float64       `yaml:"fetch_rps" envconfig:"FETCH_RPS" default:"1" validate:"gt=0"`
}

// RefreshConfig controls periodic reloading of the ledger.
type RefreshConfig struct {
	Enabled  bool          `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	Interval time.Duration `yaml:"interval" envconfig:"INTERVAL" default:"60s"`
}

// ExportConfig controls CSV export files.
type ExportConfig struct {
	Dir      string `yaml:"dir" envconfig:"DIR" default:"exports"`
	FileName string `yaml:"file_name" envconfig:"FILE_NAME" default:"filtered_payment_data.csv" validate:"required"`
	BOM      bool   `yaml:"bom" envconfig:"BOM" default:"false"`
}

// TelemetryConfig controls tracing and metrics.
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME" default:"paydash"`
	ServiceVersion string  `yaml:"service_version" envconfig:"SERVICE_VERSION" default:"dev"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none" validate:"oneof=none stdout"`
	MetricsEnabled bool    `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1.0" validate:"gte=0,lte=1"`
}

// DefaultSpreadsheetID is the payment ledger workbook used when none is configured.
const DefaultSpreadsheetID = "1dWv4kVugXNFQ2NaodZkawaXRglqRJOWR"

// Refresh interval bounds.
const (
	MinRefreshInterval = 10 * time.Second
	MaxRefreshInterval = 300 * time.Second
)

// ClampedInterval returns the refresh interval limited to the supported range.
func (r RefreshConfig) ClampedInterval() time.Duration {
	switch {
	case r.Interval < MinRefreshInterval:
		return MinRefreshInterval
	case r.Interval > MaxRefreshInterval:
		return MaxRefreshInterval
	default:
		return r.Interval
	}
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit YAML file. An empty path skips the file.
func LoadFile(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			if err := loadFromFile(configFile, cfg); err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// Environment wins over the file
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file on top of cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnv overlays every PAYDASH_* variable that is actually set. envconfig
// fills defaults for unset fields, so only the explicitly set ones are merged.
func applyEnv(cfg *Config) error {
	var env Config
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}
	mergeConfigs(cfg, env, envSet())
	return nil
}

// envSet returns the names of the PAYDASH_* variables present in the environment.
func envSet() map[string]bool {
	set := make(map[string]bool)
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, EnvPrefix+"_") {
			set[name] = true
		}
	}
	return set
}

// mergeConfigs copies env values whose variable is set into cfg (env takes precedence)
func mergeConfigs(cfg *Config, env Config, set map[string]bool) {
	has := func(section, key string) bool {
		return set[EnvPrefix+"_"+section+"_"+key]
	}

	// Server config
	if has("SERVER", "PORT") {
		cfg.Server.Port = env.Server.Port
	}
	if has("SERVER", "READ_TIMEOUT") {
		cfg.Server.ReadTimeout = env.Server.ReadTimeout
	}
	if has("SERVER", "WRITE_TIMEOUT") {
		cfg.Server.WriteTimeout = env.Server.WriteTimeout
	}
	if has("SERVER", "IDLE_TIMEOUT") {
		cfg.Server.IdleTimeout = env.Server.IdleTimeout
	}
	if has("SERVER", "MAX_HEADER_BYTES") {
		cfg.Server.MaxHeaderBytes = env.Server.MaxHeaderBytes
	}
	if has("SERVER", "SHUTDOWN_TIMEOUT") {
		cfg.Server.ShutdownTimeout = env.Server.ShutdownTimeout
	}
	if has("SERVER", "ALLOWED_ORIGINS") {
		cfg.Server.AllowedOrigins = env.Server.AllowedOrigins
	}
	if has("SERVER", "RATE_LIMIT_ENABLED") {
		cfg.Server.RateLimit.Enabled = env.Server.RateLimit.Enabled
	}
	if has("SERVER", "RATE_LIMIT_RPS") {
		cfg.Server.RateLimit.RPS = env.Server.RateLimit.RPS
	}
	if has("SERVER", "RATE_LIMIT_BURST") {
		cfg.Server.RateLimit.Burst = env.Server.RateLimit.Burst
	}

	// Logging config
	if has("LOGGING", "LEVEL") {
		cfg.Logging.Level = env.Logging.Level
	}
	if has("LOGGING", "FORMAT") {
		cfg.Logging.Format = env.Logging.Format
	}
	if has("LOGGING", "OUTPUT") {
		cfg.Logging.Output = env.Logging.Output
	}
	if has("LOGGING", "FILE_PATH") {
		cfg.Logging.FilePath = env.Logging.FilePath
	}
	if has("LOGGING", "DEVELOPMENT") {
		cfg.Logging.Development = env.Logging.Development
	}

	// Source config
	if has("SOURCE", "SPREADSHEET_ID") {
		cfg.Source.SpreadsheetID = env.Source.SpreadsheetID
	}
	if has("SOURCE", "SHEET_GID") {
		cfg.Source.SheetGID = env.Source.SheetGID
	}
	if has("SOURCE", "SHEET_NAME") {
		cfg.Source.SheetName = env.Source.SheetName
	}
	if has("SOURCE", "CREDENTIALS_FILE") {
		cfg.Source.CredentialsFile = env.Source.CredentialsFile
	}
	if has("SOURCE", "ORDER") {
		cfg.Source.Order = env.Source.Order
	}
	if has("SOURCE", "FILE_PATH") {
		cfg.Source.FilePath = env.Source.FilePath
	}
	if has("SOURCE", "EXPORT_BASE_URL") {
		cfg.Source.ExportBaseURL = env.Source.ExportBaseURL
	}
	if has("SOURCE", "CACHE_TTL") {
		cfg.Source.CacheTTL = env.Source.CacheTTL
	}
	if has("SOURCE", "FETCH_TIMEOUT") {
		cfg.Source.FetchTimeout = env.Source.FetchTimeout
	}
	if has("SOURCE", "FETCH_RPS") {
		cfg.Source.FetchRPS = env.Source.FetchRPS
	}

	// Refresh config
	if has("REFRESH", "ENABLED") {
		cfg.Refresh.Enabled = env.Refresh.Enabled
	}
	if has("REFRESH", "INTERVAL") {
		cfg.Refresh.Interval = env.Refresh.Interval
	}

	// Export config
	if has("EXPORT", "DIR") {
		cfg.Export.Dir = env.Export.Dir
	}
	if has("EXPORT", "FILE_NAME") {
		cfg.Export.FileName = env.Export.FileName
	}
	if has("EXPORT", "BOM") {
		cfg.Export.BOM = env.Export.BOM
	}

	// Telemetry config
	if has("TELEMETRY", "SERVICE_NAME") {
		cfg.Telemetry.ServiceName = env.Telemetry.ServiceName
	}
	if has("TELEMETRY", "SERVICE_VERSION") {
		cfg.Telemetry.ServiceVersion = env.Telemetry.ServiceVersion
	}
	if has("TELEMETRY", "TRACE_EXPORTER") {
		cfg.Telemetry.TraceExporter = env.Telemetry.TraceExporter
	}
	if has("TELEMETRY", "METRICS_ENABLED") {
		cfg.Telemetry.MetricsEnabled = env.Telemetry.MetricsEnabled
	}
	if has("TELEMETRY", "SAMPLE_RATIO") {
		cfg.Telemetry.SampleRatio = env.Telemetry.SampleRatio
	}
}

// Validate checks struct tags and the few rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// Always JSON; the handler has no text mode
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging output %q requires a file path", c.Logging.Output)
	}

	for _, name := range c.Source.Order {
		switch name {
		case "sheets", "csv_export":
			if c.Source.SpreadsheetID == "" {
				return fmt.Errorf("source %q requires a spreadsheet id", name)
			}
		case "file":
			if c.Source.FilePath == "" {
				return fmt.Errorf("source %q requires a file path", name)
			}
		}
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}

	// Check for config file in common locations
	locations := []string{
		"paydash.yaml",
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/paydash.log",
		},
		Source: SourceConfig{
			SpreadsheetID:   DefaultSpreadsheetID,
			SheetGID:        840573777,
			SheetName:       "Pri Payment",
			CredentialsFile: "service_account.json",
			Order:           []string{"sheets", "csv_export", "demo"},
			ExportBaseURL:   "https://docs.google.com",
			CacheTTL:        120 * time.Second,
			FetchTimeout:    20 * time.Second,
			FetchRPS:        1,
		},
		Refresh: RefreshConfig{
			Enabled:  true,
			Interval: 60 * time.Second,
		},
		Export: ExportConfig{
			Dir:      "exports",
			FileName: "filtered_payment_data.csv",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "paydash",
			ServiceVersion: "dev",
			TraceExporter:  "none",
			MetricsEnabled: true,
			SampleRatio:    1.0,
		},
	}
}
