package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultBackendURL = "http://localhost:8000"

type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Backend BackendConfig `yaml:"backend"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Portal  PortalConfig  `yaml:"portal"`
	Log     LogConfig     `yaml:"log"`
}

type HTTPConfig struct {
	Address           string   `yaml:"address"`
	ReadHeaderTimeout int      `yaml:"read_header_timeout_seconds"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	// RateLimit is the number of form posts per second allowed per client.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type BackendConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// RedisConfig enables the shared notice board when Addr is set.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// KafkaConfig enables portal events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	BookingTopic string   `yaml:"booking_topic"`
}

type PortalConfig struct {
	NoticeSeconds       int `yaml:"notice_seconds"`
	SessionIdleMinutes  int `yaml:"session_idle_minutes"`
	AdminRefreshSeconds int `yaml:"admin_refresh_seconds"`
}

func (p PortalConfig) NoticeTTL() time.Duration {
	return time.Duration(p.NoticeSeconds) * time.Second
}

func (p PortalConfig) SessionIdle() time.Duration {
	return time.Duration(p.SessionIdleMinutes) * time.Minute
}

type LogConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:           ":8080",
			ReadHeaderTimeout: 20,
			AllowedOrigins:    []string{"*"},
			RateLimit:         5,
			RateBurst:         10,
		},
		Backend: BackendConfig{
			URL:            DefaultBackendURL,
			TimeoutSeconds: 10,
		},
		Kafka: KafkaConfig{
			BookingTopic: "portal.bookings",
		},
		Portal: PortalConfig{
			NoticeSeconds:       4,
			SessionIdleMinutes:  60,
			AdminRefreshSeconds: 0,
		},
		Log: LogConfig{
			Env:   "production",
			Level: "info",
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults. A missing file is
// not an error. BACKEND_URL, from the environment or a .env file, overrides
// the backend address.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if url := os.Getenv("BACKEND_URL"); url != "" {
		cfg.Backend.URL = url
	}
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = DefaultBackendURL
	}

	return cfg, nil
}
