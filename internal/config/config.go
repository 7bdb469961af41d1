package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// DefaultBaseURL is the WindBorne Data API root.
const DefaultBaseURL = "https://sensor-data.windbornesystems.com/api/v1"

// Config holds all run settings, populated from environment variables.
type Config struct {
	// WindBorne Data API credentials and client settings.
	ClientID string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	MaxPages int

	Window             time.Duration
	SegmentMaxDuration time.Duration
	OutputDir          string
	Workers            int

	LogLevel        string
	LogFormat       string
	MetricsTextfile string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// File-written notifications. Disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// NotifyEnabled reports whether file-written notifications are configured.
func (c *Config) NotifyEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first if present;
// variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	timeout, err := parseDuration("WB_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	window, err := parseDuration("WINDOW", "3h")
	if err != nil {
		return nil, err
	}
	segmentMax, err := parseDuration("SEGMENT_MAX_DURATION", "3h")
	if err != nil {
		return nil, err
	}
	maxPages, err := parsePositiveInt("WB_MAX_PAGES", "500")
	if err != nil {
		return nil, err
	}
	workers, err := parsePositiveInt("WORKERS", "4")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ClientID:           os.Getenv("WB_CLIENT_ID"),
		APIKey:             os.Getenv("WB_API_KEY"),
		BaseURL:            strings.TrimRight(sharedcfg.EnvOrDefault("WB_BASE_URL", DefaultBaseURL), "/"),
		Timeout:            timeout,
		MaxPages:           maxPages,
		Window:             window,
		SegmentMaxDuration: segmentMax,
		OutputDir:          sharedcfg.EnvOrDefault("OUTPUT_DIR", "."),
		Workers:            workers,
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		MetricsTextfile:    os.Getenv("METRICS_TEXTFILE"),
		HTTPAddr:           os.Getenv("HTTP_ADDR"),
		ShutdownTimeout:    shutdownTimeout,
		KafkaTopic:         sharedcfg.EnvOrDefault("KAFKA_TOPIC", "sounding-files"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); strings.TrimSpace(brokers) != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that may also have been overridden after Load.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return errors.New("WB_CLIENT_ID is required")
	}
	if c.APIKey == "" {
		return errors.New("WB_API_KEY is required")
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("invalid WB_BASE_URL")
	}
	if c.SegmentMaxDuration <= 0 {
		return errors.New("invalid SEGMENT_MAX_DURATION")
	}
	if c.OutputDir == "" {
		return errors.New("OUTPUT_DIR is required")
	}
	if c.NotifyEnabled() && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
