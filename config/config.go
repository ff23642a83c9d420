package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/sirupsen/logrus"
)

type Config struct {
	APIToken   string
	ActorID    string
	APIBaseURL string

	DBPath string
	LogDir string

	SubmitTimeout time.Duration
	PollTimeout   time.Duration
	FetchTimeout  time.Duration
	PollInterval  time.Duration
	MaxWait       time.Duration

	RateLimit         int
	RateLimitInterval time.Duration
}

func LoadConfig() *Config {
	return &Config{
		APIToken:          GetEnv("APIFY_API_TOKEN", ""),
		ActorID:           GetEnv("APIFY_ACTOR_ID", "karamelo~youtube-transcripts"),
		APIBaseURL:        GetEnv("APIFY_API_BASE", "https://api.apify.com/v2"),
		DBPath:            GetEnv("DB_PATH", "./data/transcripts.db"),
		LogDir:            GetEnv("LOG_DIR", ""),
		SubmitTimeout:     getEnvAsDuration("SUBMIT_TIMEOUT", 30*time.Second),
		PollTimeout:       getEnvAsDuration("POLL_TIMEOUT", 10*time.Second),
		FetchTimeout:      getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),
		PollInterval:      getEnvAsDuration("POLL_INTERVAL", 2*time.Second),
		MaxWait:           getEnvAsDuration("MAX_WAIT", 120*time.Second),
		RateLimit:         getEnvAsInt("RATE_LIMIT", 5),
		RateLimitInterval: getEnvAsDuration("RATE_LIMIT_INTERVAL", 1*time.Second),
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

func ValidateConfig(cfg *Config) error {
	if cfg.ActorID == "" {
		return errors.New("actor ID is required")
	}
	if cfg.APIBaseURL == "" {
		return errors.New("API base URL is required")
	}
	if cfg.SubmitTimeout <= 0 {
		return errors.New("submit timeout must be greater than 0")
	}
	if cfg.PollTimeout <= 0 {
		return errors.New("poll timeout must be greater than 0")
	}
	if cfg.FetchTimeout <= 0 {
		return errors.New("fetch timeout must be greater than 0")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("poll interval must be greater than 0")
	}
	if cfg.MaxWait <= 0 {
		return errors.New("max wait must be greater than 0")
	}
	if cfg.RateLimit <= 0 {
		return errors.New("rate limit must be greater than 0")
	}
	return nil
}
