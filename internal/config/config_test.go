package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Streaming: StreamingConfig{
			BaseURL:       "http://10.0.0.94:38080/sampleFrames/",
			NamePattern:   "frame_%d.ply",
			SlotDir:       "/tmp/slots",
			SlotPattern:   "frame_%d.ply",
			RotationWidth: 30,
			TickRate:      30,
			TickBurst:     1,
			Transport:     "http",
			FetchTimeout:  30 * time.Second,
			MaxFrameBytes: 1 << 20,
			MaxPoints:     1 << 16,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "invalid server port",
			mutate:  func(c *Config) { c.Server.HTTPPort = 0 },
			wantErr: true,
			errMsg:  "invalid HTTP port",
		},
		{
			name:    "metrics port collides with server",
			mutate:  func(c *Config) { c.Metrics.Port = 8080 },
			wantErr: true,
			errMsg:  "collides",
		},
		{
			name: "http3 cert files not found",
			mutate: func(c *Config) {
				c.Server.EnableHTTP3 = true
				c.Server.HTTP3Port = 8443
				c.Server.TLSCertFile = "/nonexistent/cert.pem"
				c.Server.TLSKeyFile = "/nonexistent/key.pem"
			},
			wantErr: true,
			errMsg:  "TLS certificate file not found",
		},
		{
			name:    "redis disabled skips validation",
			mutate:  func(c *Config) { c.Redis = RedisConfig{Enabled: false, PoolSize: -1} },
			wantErr: false,
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Streaming.BaseURL = "" },
			wantErr: true,
			errMsg:  "base_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				if err != nil {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "test-config-*.yaml")
	require.NoError(t, err)
	_, err = tmpfile.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())
	return tmpfile.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 8081

logging:
  level: "debug"
  format: "text"

metrics:
  enabled: false

streaming:
  base_url: "http://frames.local:38080/sampleFrames/"
  rotation_width: 12
  tick_rate: 15
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.HTTPPort)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Redis.Enabled)

	s := cfg.Streaming
	assert.Equal(t, "http://frames.local:38080/sampleFrames/", s.BaseURL)
	assert.Equal(t, 12, s.RotationWidth)
	assert.Equal(t, 15.0, s.TickRate)
	assert.Equal(t, "frame_%d.ply", s.NamePattern)
	assert.Equal(t, "frame_%d.ply", s.SlotPattern)
	assert.Equal(t, "http", s.Transport)
	assert.Equal(t, 30*time.Second, s.FetchTimeout)
	assert.Equal(t, int64(256*1024*1024), s.MaxFrameBytes)
	assert.Equal(t, 1<<24, s.MaxPoints)
	assert.True(t, s.StopOnHalt)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, `
streaming:
  base_url: "http://frames.local/"
`)
	t.Setenv("CLOUDSTREAM_STREAMING_ROTATION_WIDTH", "5")
	t.Setenv("CLOUDSTREAM_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Streaming.RotationWidth)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := writeConfig(t, `
streaming:
  base_url: "ftp://frames.local/"
`)

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "streaming config")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/cloudstream.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}
