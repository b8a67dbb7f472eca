package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the configuration.
const (
	DefaultLibraryDir     = "resources"
	DefaultMinSizeBytes   = 100
	DefaultSpecSource     = "resources/supported_systems.json"
	DefaultDrive          = 100.0
	DefaultEfficiency     = 100.0
	DefaultUVT215         = -1.0
	DefaultD1Log          = 18.0
	DefaultHTTPPort       = 5000
	DefaultLogLevel       = "info"
	DefaultFeedInterval   = 5 * time.Second
	DefaultHistoryBackend = "memory"
	DefaultHistoryPath    = "uvdose.db"
	DefaultHistoryTTL     = time.Hour
	DefaultHistoryLimit   = 500
	DefaultS3Region       = "us-east-1"
)

// Config is the full uvdose configuration file.
type Config struct {
	Library       LibraryConfig       `yaml:"library"`
	Specification SpecificationConfig `yaml:"specification"`
	Calculation   CalculationConfig   `yaml:"calculation"`
	Server        ServerConfig        `yaml:"server"`
	History       HistoryConfig       `yaml:"history"`
}

// LibraryConfig locates the native calculation library.
type LibraryConfig struct {
	// Dir is the directory searched for the platform library and its
	// json-c dependency.
	Dir string `yaml:"dir"`

	// MinSizeBytes rejects candidate files at or below this size
	// (placeholder or truncated files).
	MinSizeBytes int64 `yaml:"min_size_bytes"`

	// SerializeCalls puts every native call behind one mutex. Turn off only
	// when the vendor library is known to be reentrant.
	SerializeCalls bool `yaml:"serialize_calls"`
}

// SpecificationConfig locates the system specification document.
type SpecificationConfig struct {
	// Source is a local path or an s3://bucket/key URL.
	Source string `yaml:"source"`

	// CacheDir receives downloaded documents. Empty means the OS temp dir.
	CacheDir string `yaml:"cache_dir"`

	S3 S3Config `yaml:"s3"`
}

// S3Config configures the object-store client used for s3:// sources.
type S3Config struct {
	Region string `yaml:"region"`
	// Endpoint overrides the service endpoint (MinIO, LocalStack).
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// CalculationConfig holds the process-wide calculation defaults.
type CalculationConfig struct {
	DefaultDrive      float64 `yaml:"default_drive"`
	DefaultEfficiency float64 `yaml:"default_efficiency"`
	DefaultUVT215     float64 `yaml:"default_uvt215"`
	DefaultD1Log      float64 `yaml:"default_d1_log"`
	NativeValidation  bool    `yaml:"native_validation"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, metrics and WebSocket feed listen on.
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error. It is the only
	// setting applied on reload.
	LogLevel string `yaml:"log_level"`

	// FeedInterval is how often the WebSocket feed pushes recent calculations.
	FeedInterval time.Duration `yaml:"feed_interval"`
}

// Level returns LogLevel as a slog.Level.
func (s ServerConfig) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// HistoryConfig controls retention of recent calculations.
type HistoryConfig struct {
	// Backend is memory or sqlite.
	Backend string        `yaml:"backend"`
	Path    string        `yaml:"path"`
	TTL     time.Duration `yaml:"ttl"`
	Limit   int           `yaml:"limit"`
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config pre-populated with default values. It is what
// the binaries run with when no file is given.
func Defaults() *Config {
	return &Config{
		Library: LibraryConfig{
			Dir:            DefaultLibraryDir,
			MinSizeBytes:   DefaultMinSizeBytes,
			SerializeCalls: true,
		},
		Specification: SpecificationConfig{
			Source: DefaultSpecSource,
			S3:     S3Config{Region: DefaultS3Region},
		},
		Calculation: CalculationConfig{
			DefaultDrive:      DefaultDrive,
			DefaultEfficiency: DefaultEfficiency,
			DefaultUVT215:     DefaultUVT215,
			DefaultD1Log:      DefaultD1Log,
		},
		Server: ServerConfig{
			HTTPPort:     DefaultHTTPPort,
			LogLevel:     DefaultLogLevel,
			FeedInterval: DefaultFeedInterval,
		},
		History: HistoryConfig{
			Backend: DefaultHistoryBackend,
			Path:    DefaultHistoryPath,
			TTL:     DefaultHistoryTTL,
			Limit:   DefaultHistoryLimit,
		},
	}
}

func validate(cfg *Config) error {
	if cfg.Library.Dir == "" {
		return fmt.Errorf("library.dir must not be empty")
	}
	if cfg.Library.MinSizeBytes < 0 {
		return fmt.Errorf("library.min_size_bytes must not be negative")
	}
	if cfg.Specification.Source == "" {
		return fmt.Errorf("specification.source must not be empty")
	}
	if strings.HasPrefix(cfg.Specification.Source, "s3://") && cfg.Specification.S3.Region == "" {
		return fmt.Errorf("specification.s3.region is required for %s", cfg.Specification.Source)
	}
	for name, v := range map[string]float64{
		"calculation.default_drive":      cfg.Calculation.DefaultDrive,
		"calculation.default_efficiency": cfg.Calculation.DefaultEfficiency,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s %g is out of range [0, 100]", name, v)
		}
	}
	if cfg.Calculation.DefaultD1Log <= 0 {
		return fmt.Errorf("calculation.default_d1_log must be positive")
	}
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch strings.ToLower(cfg.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", cfg.Server.LogLevel)
	}
	if cfg.Server.FeedInterval <= 0 {
		return fmt.Errorf("server.feed_interval must be positive")
	}
	switch cfg.History.Backend {
	case "memory":
	case "sqlite":
		if cfg.History.Path == "" {
			return fmt.Errorf("history.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("history.backend %q unknown: want memory|sqlite", cfg.History.Backend)
	}
	if cfg.History.TTL < 0 {
		return fmt.Errorf("history.ttl must not be negative")
	}
	if cfg.History.Limit <= 0 {
		return fmt.Errorf("history.limit must be positive")
	}
	return nil
}
