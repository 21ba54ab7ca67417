package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lalithlochan/beacon/internal/prompt"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Platform
	PlatformVersion       string // OS version the tier is resolved from, e.g. "17.2"
	RemoteDelivery        bool
	AuthorizationDecision string // "grant" or "deny"
	PollInterval          time.Duration

	// Database (legacy tier store)
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis config
	RedisHost      string
	RedisPort      int
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// AWS
	AWSRegion                 string
	AWSEndpoint               string // LocalStack and friends
	SNSPlatformApplicationARN string
	DeviceToken               string
	SQSEventsQueueURL         string
	SQSRemoteQueueURL         string

	// Settings navigation
	SettingsWebhookURL string
	WebhookTimeout     int // seconds

	// Rate limiting
	RateLimit       int
	RateLimitWindow time.Duration

	// Copy strings; CopyFile overrides the defaults when set.
	CopyFile string
	Copy     prompt.Copy
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		PlatformVersion:       "17.0",
		AuthorizationDecision: "grant",
		PollInterval:          time.Second,

		DBHost:    "localhost",
		DBPort:    5432,
		DBUser:    "beacon",
		DBName:    "beacon",
		DBSSLMode: "disable",

		RedisHost:      "localhost",
		RedisPort:      6379,
		RedisKeyPrefix: "beacon",

		AWSRegion: "us-east-1",

		WebhookTimeout: 10,

		RateLimit:       100,
		RateLimitWindow: time.Minute,

		Copy: prompt.DefaultCopy(),
	}

	var err error

	if cfg.Port, err = envInt("PORT", cfg.Port); err != nil {
		return nil, err
	}
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Env = envString("ENV", cfg.Env)

	cfg.PlatformVersion = envString("PLATFORM_VERSION", cfg.PlatformVersion)
	if cfg.RemoteDelivery, err = envBool("REMOTE_DELIVERY", cfg.RemoteDelivery); err != nil {
		return nil, err
	}
	cfg.AuthorizationDecision = envString("AUTHORIZATION_DECISION", cfg.AuthorizationDecision)
	if cfg.PollInterval, err = envDuration("POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}

	cfg.DBHost = envString("DB_HOST", cfg.DBHost)
	if cfg.DBPort, err = envInt("DB_PORT", cfg.DBPort); err != nil {
		return nil, err
	}
	cfg.DBUser = envString("DB_USER", cfg.DBUser)
	cfg.DBPassword = envString("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = envString("DB_NAME", cfg.DBName)
	cfg.DBSSLMode = envString("DB_SSLMODE", cfg.DBSSLMode)

	cfg.RedisHost = envString("REDIS_HOST", cfg.RedisHost)
	if cfg.RedisPort, err = envInt("REDIS_PORT", cfg.RedisPort); err != nil {
		return nil, err
	}
	cfg.RedisPassword = envString("REDIS_PASSWORD", cfg.RedisPassword)
	if cfg.RedisDB, err = envInt("REDIS_DB", cfg.RedisDB); err != nil {
		return nil, err
	}
	cfg.RedisKeyPrefix = envString("REDIS_KEY_PREFIX", cfg.RedisKeyPrefix)

	cfg.AWSRegion = envString("AWS_REGION", cfg.AWSRegion)
	cfg.AWSEndpoint = envString("AWS_ENDPOINT", cfg.AWSEndpoint)
	cfg.SNSPlatformApplicationARN = envString("SNS_PLATFORM_APPLICATION_ARN", cfg.SNSPlatformApplicationARN)
	cfg.DeviceToken = envString("DEVICE_TOKEN", cfg.DeviceToken)
	cfg.SQSEventsQueueURL = envString("SQS_EVENTS_QUEUE_URL", cfg.SQSEventsQueueURL)
	cfg.SQSRemoteQueueURL = envString("SQS_REMOTE_QUEUE_URL", cfg.SQSRemoteQueueURL)

	cfg.SettingsWebhookURL = envString("SETTINGS_WEBHOOK_URL", cfg.SettingsWebhookURL)
	if cfg.WebhookTimeout, err = envInt("WEBHOOK_TIMEOUT", cfg.WebhookTimeout); err != nil {
		return nil, err
	}

	if cfg.RateLimit, err = envInt("RATE_LIMIT", cfg.RateLimit); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = envDuration("RATE_LIMIT_WINDOW", cfg.RateLimitWindow); err != nil {
		return nil, err
	}

	if path := os.Getenv("COPY_FILE"); path != "" {
		cfg.CopyFile = path
		c, err := LoadCopy(path)
		if err != nil {
			return nil, err
		}
		cfg.Copy = c
	}

	return cfg, nil
}

// LoadCopy reads copy strings from a YAML file. Keys left out keep their
// defaults.
func LoadCopy(path string) (prompt.Copy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return prompt.Copy{}, fmt.Errorf("read COPY_FILE: %w", err)
	}
	var c prompt.Copy
	if err := yaml.Unmarshal(data, &c); err != nil {
		return prompt.Copy{}, fmt.Errorf("parse COPY_FILE %s: %w", path, err)
	}
	return c.Merge(prompt.DefaultCopy()), nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
