package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	SES       SESConfig       `yaml:"ses"`
	SparkPost SparkPostConfig `yaml:"sparkpost"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Send      SendConfig      `yaml:"send"`
	Scoring   ScoringConfig   `yaml:"scoring"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the Redis connection settings. Redis backs the send-rate
// limiter, the tracking event queue, the notification queue and batch locks.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// SESConfig holds AWS SES v2 credentials.
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// SparkPostConfig holds SparkPost API settings.
type SparkPostConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// TrackingConfig holds pixel/click tracking settings.
type TrackingConfig struct {
	BaseURL    string `yaml:"base_url"`
	SigningKey string `yaml:"signing_key"`
	QueueKey   string `yaml:"queue_key"`
}

// SendConfig holds campaign send pacing and worker settings. The inter-send
// delay is a correctness requirement, not an optimization: unthrottled bulk
// dispatch gets the sending domain rate-limited or blacklisted.
type SendConfig struct {
	PerSecond         int           `yaml:"per_second"`
	InterSendDelayMS  int           `yaml:"inter_send_delay_ms"`
	ClaimBatchSize    int           `yaml:"claim_batch_size"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	FallbackOrder     []string      `yaml:"fallback_order"`
}

// ScoringConfig holds the engagement scorer weights. They live in config so
// operators can retune scoring without a deploy.
type ScoringConfig struct {
	CheckinWeight   float64 `yaml:"checkin_weight"`
	OpenWeight      float64 `yaml:"open_weight"`
	RecencyBonus7d  float64 `yaml:"recency_bonus_7d"`
	RecencyBonus30d float64 `yaml:"recency_bonus_30d"`
}

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars in the container environment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		if loaded, err := Load(path); err == nil {
			cfg = loaded
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("SPARKPOST_API_KEY"); v != "" {
		cfg.SparkPost.APIKey = v
	}
	if v := os.Getenv("SPARKPOST_BASE_URL"); v != "" {
		cfg.SparkPost.BaseURL = v
	}
	if v := os.Getenv("TRACKING_BASE_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("TRACKING_SIGNING_KEY"); v != "" {
		cfg.Tracking.SigningKey = v
	}
	if v := os.Getenv("TRACKING_QUEUE_KEY"); v != "" {
		cfg.Tracking.QueueKey = v
	}
	if v := os.Getenv("SPARKPOST_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SparkPost.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.SparkPost.BaseURL == "" {
		cfg.SparkPost.BaseURL = "https://api.sparkpost.com/api/v1"
	}
	if cfg.SparkPost.TimeoutSeconds == 0 {
		cfg.SparkPost.TimeoutSeconds = 30
	}
	if cfg.Tracking.QueueKey == "" {
		cfg.Tracking.QueueKey = "tracking:events"
	}
	if cfg.Send.PerSecond == 0 {
		cfg.Send.PerSecond = 50
	}
	if cfg.Send.InterSendDelayMS == 0 {
		cfg.Send.InterSendDelayMS = 20
	}
	if cfg.Send.ClaimBatchSize == 0 {
		cfg.Send.ClaimBatchSize = 200
	}
	if cfg.Send.VisibilityTimeout == 0 {
		cfg.Send.VisibilityTimeout = 5 * time.Minute
	}
	if len(cfg.Send.FallbackOrder) == 0 {
		cfg.Send.FallbackOrder = []string{"ses", "sparkpost"}
	}
	if cfg.Scoring.CheckinWeight == 0 {
		cfg.Scoring.CheckinWeight = 10
	}
	if cfg.Scoring.OpenWeight == 0 {
		cfg.Scoring.OpenWeight = 2
	}
	if cfg.Scoring.RecencyBonus7d == 0 {
		cfg.Scoring.RecencyBonus7d = 20
	}
	if cfg.Scoring.RecencyBonus30d == 0 {
		cfg.Scoring.RecencyBonus30d = 10
	}
}
