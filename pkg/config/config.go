// Package config provides configuration file support for Researchy.
// It handles loading, validation, and environment variable interpolation
// for researchy.yaml configuration files.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the full Researchy configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Arxiv     ArxivConfig     `mapstructure:"arxiv"`
	History   HistoryConfig   `mapstructure:"history"`
	Render    RenderConfig    `mapstructure:"render"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Papers    PapersConfig    `mapstructure:"papers"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// LLMConfig holds model provider settings.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	TitleModel  string        `mapstructure:"title_model"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTurns    int           `mapstructure:"max_turns"`
}

// ArxivConfig holds paper search settings.
type ArxivConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// HistoryConfig holds conversation history settings.
type HistoryConfig struct {
	BackendURL string        `mapstructure:"backend_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// RenderConfig holds LaTeX rendering settings.
type RenderConfig struct {
	OutputDir    string `mapstructure:"output_dir"`
	TectonicPath string `mapstructure:"tectonic_path"`
	IndexPath    string `mapstructure:"index_path"`
}

// StorageConfig holds Supabase object storage settings.
type StorageConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
	Bucket     string `mapstructure:"bucket"`
}

// PapersConfig holds paper listing settings.
type PapersConfig struct {
	// ExtraDirs are scanned alongside the render output dir.
	ExtraDirs []string `mapstructure:"extra_dirs"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Exporter   string  `mapstructure:"exporter"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
	Insecure   bool    `mapstructure:"insecure"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8000,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 300 * time.Second,
			CORSOrigins:  []string{"*"},
		},
		LLM: LLMConfig{
			Model:       "gemini-2.5-pro",
			TitleModel:  "gemini-2.5-flash",
			Temperature: 0.7,
			Timeout:     120 * time.Second,
			MaxTurns:    10,
		},
		Arxiv: ArxivConfig{
			BaseURL:    "https://export.arxiv.org/api/query",
			MaxResults: 5,
			Timeout:    30 * time.Second,
			CacheTTL:   10 * time.Minute,
		},
		History: HistoryConfig{
			Timeout:  5 * time.Second,
			CacheTTL: 30 * time.Second,
		},
		Render: RenderConfig{
			OutputDir: "output",
			IndexPath: "output/papers.db",
		},
		Storage: StorageConfig{
			Bucket: "researchy",
		},
		Telemetry: TelemetryConfig{
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "otlp",
				Endpoint:   "localhost:4317",
				SampleRate: 1.0,
				Insecure:   true,
			},
		},
	}
}

// Load reads configuration from the given viper instance and returns
// a validated Config. Environment variables in string values are
// interpolated using ${VAR} syntax.
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Interpolate environment variables in string fields
	interpolateConfig(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads a specific config file and returns a validated Config.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Load(v)
}

// Validate checks the configuration for errors and returns a descriptive
// error if any field is invalid.
func Validate(cfg *Config) error {
	var errs []string

	// Server validation
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port: must be between 0 and 65535, got %d", cfg.Server.Port))
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout: must be non-negative")
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout: must be non-negative")
	}

	// LLM validation
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("llm.temperature: must be between 0 and 2, got %f", cfg.LLM.Temperature))
	}
	if cfg.LLM.MaxTurns < 0 {
		errs = append(errs, "llm.max_turns: must be non-negative")
	}
	if cfg.LLM.Timeout < 0 {
		errs = append(errs, "llm.timeout: must be non-negative")
	}

	// Arxiv validation
	if cfg.Arxiv.MaxResults < 0 {
		errs = append(errs, "arxiv.max_results: must be non-negative")
	}
	if cfg.Arxiv.CacheTTL < 0 {
		errs = append(errs, "arxiv.cache_ttl: must be non-negative")
	}

	// History validation
	if cfg.History.CacheTTL < 0 {
		errs = append(errs, "history.cache_ttl: must be non-negative")
	}

	// Storage validation: key and URL travel together
	if (cfg.Storage.URL == "") != (cfg.Storage.ServiceKey == "") {
		errs = append(errs, "storage: url and service_key must both be set or both be empty")
	}

	// Telemetry validation
	validExporters := map[string]bool{"otlp": true, "stdout": true, "none": true, "": true}
	if !validExporters[cfg.Telemetry.Tracing.Exporter] {
		errs = append(errs, fmt.Sprintf("telemetry.tracing.exporter: unsupported exporter %q (supported: otlp, stdout, none)", cfg.Telemetry.Tracing.Exporter))
	}
	if cfg.Telemetry.Tracing.SampleRate < 0 || cfg.Telemetry.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.tracing.sample_rate: must be between 0 and 1, got %f", cfg.Telemetry.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnv replaces ${VAR} and ${VAR:-default} patterns in a string
// with the corresponding environment variable values.
func InterpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		if defaultVal != "" {
			return defaultVal
		}
		return match
	})
}

// interpolateConfig applies environment variable interpolation to all
// string fields in the config.
func interpolateConfig(cfg *Config) {
	cfg.Server.Host = InterpolateEnv(cfg.Server.Host)
	for i, origin := range cfg.Server.CORSOrigins {
		cfg.Server.CORSOrigins[i] = InterpolateEnv(origin)
	}

	cfg.LLM.APIKey = InterpolateEnv(cfg.LLM.APIKey)
	cfg.LLM.Model = InterpolateEnv(cfg.LLM.Model)
	cfg.LLM.TitleModel = InterpolateEnv(cfg.LLM.TitleModel)
	cfg.LLM.BaseURL = InterpolateEnv(cfg.LLM.BaseURL)

	cfg.Arxiv.BaseURL = InterpolateEnv(cfg.Arxiv.BaseURL)
	cfg.History.BackendURL = InterpolateEnv(cfg.History.BackendURL)

	cfg.Render.OutputDir = InterpolateEnv(cfg.Render.OutputDir)
	cfg.Render.TectonicPath = InterpolateEnv(cfg.Render.TectonicPath)
	cfg.Render.IndexPath = InterpolateEnv(cfg.Render.IndexPath)

	cfg.Storage.URL = InterpolateEnv(cfg.Storage.URL)
	cfg.Storage.ServiceKey = InterpolateEnv(cfg.Storage.ServiceKey)
	cfg.Storage.Bucket = InterpolateEnv(cfg.Storage.Bucket)

	for i, dir := range cfg.Papers.ExtraDirs {
		cfg.Papers.ExtraDirs[i] = InterpolateEnv(dir)
	}

	cfg.Telemetry.Tracing.Exporter = InterpolateEnv(cfg.Telemetry.Tracing.Exporter)
	cfg.Telemetry.Tracing.Endpoint = InterpolateEnv(cfg.Telemetry.Tracing.Endpoint)
}

// GenerateTemplate returns a YAML template string with all available
// configuration options and their defaults, suitable for writing to
// a researchy.yaml file.
func GenerateTemplate() string {
	return `# Researchy Configuration
# See: https://github.com/shahryar908/researchy

server:
  port: 8000
  host: 0.0.0.0
  read_timeout: 30s
  write_timeout: 300s
  cors_origins:
    - "*"

llm:
  api_key: ${GEMINI_API_KEY}
  model: gemini-2.5-pro
  title_model: gemini-2.5-flash
  temperature: 0.7
  timeout: 120s
  max_turns: 10

arxiv:
  base_url: https://export.arxiv.org/api/query
  max_results: 5
  timeout: 30s
  cache_ttl: 10m

history:
  backend_url: ${BACKEND_URL}
  timeout: 5s
  cache_ttl: 30s

render:
  output_dir: output
  tectonic_path: ""      # defaults to tectonic on PATH
  index_path: output/papers.db

storage:
  url: ${SUPABASE_URL}
  service_key: ${SUPABASE_SERVICE_KEY}
  bucket: researchy

papers:
  extra_dirs: []

telemetry:
  tracing:
    enabled: false
    exporter: otlp       # otlp, stdout, or none
    endpoint: localhost:4317
    sample_rate: 1.0     # 0.0 to 1.0
    insecure: true
`
}
