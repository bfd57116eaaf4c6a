package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Streaming StreamingConfig `mapstructure:"streaming"`
}

type ServerConfig struct {
	// HTTP/1.1 API
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	DebugEndpoints  bool          `mapstructure:"debug_endpoints"`

	// Optional HTTP/3 listener serving the same routes
	EnableHTTP3 bool   `mapstructure:"enable_http3"`
	HTTP3Port   int    `mapstructure:"http3_port"`
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	TTL          time.Duration `mapstructure:"ttl"` // lifetime of registry entries
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`     // json or text
	Output     string `mapstructure:"output"`     // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"`   // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

type StreamingConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	NamePattern string `mapstructure:"name_pattern"` // fmt pattern taking the frame index
	StartIndex  uint64 `mapstructure:"start_index"`

	SlotDir       string `mapstructure:"slot_dir"`
	SlotPattern   string `mapstructure:"slot_pattern"` // fmt pattern taking the slot number
	RotationWidth int    `mapstructure:"rotation_width"`

	TickRate  float64 `mapstructure:"tick_rate"` // cycles per second
	TickBurst int     `mapstructure:"tick_burst"`

	Transport          string        `mapstructure:"transport"` // http or http3
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	MaxFrameBytes      int64         `mapstructure:"max_frame_bytes"`
	MaxPoints          int           `mapstructure:"max_points"` // cap on a frame's declared vertex count

	StopOnHalt bool `mapstructure:"stop_on_halt"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configPath)

	// Environment variable override
	v.SetEnvPrefix("CLOUDSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.debug_endpoints", false)
	v.SetDefault("server.enable_http3", false)
	v.SetDefault("server.http3_port", 8443)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.ttl", "10m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Streaming defaults
	v.SetDefault("streaming.name_pattern", "frame_%d.ply")
	v.SetDefault("streaming.start_index", 0)
	v.SetDefault("streaming.slot_dir", "/var/lib/cloudstream/slots")
	v.SetDefault("streaming.slot_pattern", "frame_%d.ply")
	v.SetDefault("streaming.rotation_width", 30)
	v.SetDefault("streaming.tick_rate", 30.0)
	v.SetDefault("streaming.tick_burst", 1)
	v.SetDefault("streaming.transport", "http")
	v.SetDefault("streaming.fetch_timeout", "30s")
	v.SetDefault("streaming.insecure_skip_verify", false)
	v.SetDefault("streaming.max_frame_bytes", 256*1024*1024) // 256MB
	v.SetDefault("streaming.max_points", 1<<24)
	v.SetDefault("streaming.stop_on_halt", true)
}
