package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all client configuration
type Config struct {
	App       AppConfig
	API       APIConfig
	Session   SessionConfig
	Redis     RedisConfig
	Receipts  ReceiptsConfig
	Storage   StorageConfig
	Viewer    ViewerConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-wide settings
type AppConfig struct {
	Name string
	Env  string
}

// APIConfig describes how to reach the backend
type APIConfig struct {
	BaseURL        string
	Timeout        time.Duration
	UserAgent      string
	MaxRetries     int
	RetryDelay     time.Duration
	RateLimitQPS   float64 // 0 disables client-side rate limiting
	RateLimitBurst int
	TLSSkipVerify  bool
}

// SessionConfig controls token persistence and the navigation entry points
type SessionConfig struct {
	Store       string // file, redis, memory
	FilePath    string
	LoginPath   string
	DefaultPath string
}

// RedisConfig holds Redis connection settings for the redis token store
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ReceiptsConfig controls where downloaded receipts go and how printing behaves
type ReceiptsConfig struct {
	Sink       string // filesystem, s3
	Dir        string
	PrintDelay time.Duration
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Endpoint     string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
}

// ViewerConfig configures the Chrome instance used to view and print receipts
type ViewerConfig struct {
	RemoteURL string // attach to a running Chrome instead of launching one
	Headless  bool
	NoSandbox bool
	Timeout   time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig controls the Prometheus registry
type MetricsConfig struct {
	Enabled bool
	Addr    string // when set, metrics are served on this address
}

// TelemetryConfig controls OpenTelemetry spans around backend calls
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string // OTLP gRPC, host:port
	Insecure          bool
	SamplingRatio     float64
	ServiceName       string
}

// Load loads configuration from the default search path.
// Priority (highest to lowest):
// 1. Environment variables with CAMPUSFIN_ prefix (e.g., CAMPUSFIN_API_BASE_URL)
// 2. campusfin.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from path, or from the default search path
// when path is empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("campusfin")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "campusfin"))
		}
		v.AddConfigPath("/etc/campusfin")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetDefault("telemetry.sampling_ratio", 1.0)

	v.SetEnvPrefix("CAMPUSFIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		API: APIConfig{
			BaseURL:        v.GetString("api.base_url"),
			Timeout:        v.GetDuration("api.timeout"),
			UserAgent:      v.GetString("api.user_agent"),
			MaxRetries:     v.GetInt("api.max_retries"),
			RetryDelay:     v.GetDuration("api.retry_delay"),
			RateLimitQPS:   v.GetFloat64("api.rate_limit_qps"),
			RateLimitBurst: v.GetInt("api.rate_limit_burst"),
			TLSSkipVerify:  v.GetBool("api.tls_skip_verify"),
		},
		Session: SessionConfig{
			Store:       v.GetString("session.store"),
			FilePath:    v.GetString("session.file_path"),
			LoginPath:   v.GetString("session.login_path"),
			DefaultPath: v.GetString("session.default_path"),
		},
		Redis: RedisConfig{
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Receipts: ReceiptsConfig{
			Sink:       v.GetString("receipts.sink"),
			Dir:        v.GetString("receipts.dir"),
			PrintDelay: v.GetDuration("receipts.print_delay"),
		},
		Storage: StorageConfig{
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			Prefix:       v.GetString("storage.prefix"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
		},
		Viewer: ViewerConfig{
			RemoteURL: v.GetString("viewer.remote_url"),
			Headless:  v.GetBool("viewer.headless"),
			NoSandbox: v.GetBool("viewer.no_sandbox"),
			Timeout:   v.GetDuration("viewer.timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Addr:    v.GetString("metrics.addr"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			Insecure:          v.GetBool("telemetry.insecure"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "campusfin"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8000/api/v1"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30 * time.Second
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = "campusfin/1.0"
	}
	if cfg.API.RetryDelay == 0 {
		cfg.API.RetryDelay = 500 * time.Millisecond
	}
	if cfg.API.RateLimitBurst == 0 {
		cfg.API.RateLimitBurst = 1
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "file"
	}
	if cfg.Session.FilePath == "" {
		cfg.Session.FilePath = defaultTokenPath()
	}
	if cfg.Session.LoginPath == "" {
		cfg.Session.LoginPath = "/login"
	}
	if cfg.Session.DefaultPath == "" {
		cfg.Session.DefaultPath = "/"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "campusfin:token:"
	}
	if cfg.Receipts.Sink == "" {
		cfg.Receipts.Sink = "filesystem"
	}
	if cfg.Receipts.Dir == "" {
		cfg.Receipts.Dir = "."
	}
	if cfg.Receipts.PrintDelay == 0 {
		cfg.Receipts.PrintDelay = time.Second
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "receipts/"
	}
	if cfg.Viewer.Timeout == 0 {
		cfg.Viewer.Timeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
}

func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "campusfin", "token.json")
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https, got %q", c.API.BaseURL)
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries cannot be negative")
	}
	if c.API.RateLimitQPS < 0 {
		return fmt.Errorf("api.rate_limit_qps cannot be negative")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1")
	}

	switch c.Session.Store {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("session.store must be one of file, redis, memory; got %q", c.Session.Store)
	}

	switch c.Receipts.Sink {
	case "filesystem":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when receipts.sink is s3")
		}
	default:
		return fmt.Errorf("receipts.sink must be filesystem or s3; got %q", c.Receipts.Sink)
	}

	if c.App.Env == "production" {
		if u.Scheme != "https" {
			return fmt.Errorf("api.base_url must use https in production")
		}
		if c.API.TLSSkipVerify {
			return fmt.Errorf("api.tls_skip_verify must be false in production")
		}
	}
	return nil
}
