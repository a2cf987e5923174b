package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string `validate:"min=1,dive,required"`
	KafkaSourceTopic string   `validate:"required"`
	KafkaSinkTopic   string   `validate:"required"`
	KafkaGroupID     string   `validate:"required"`
	PipelineEnabled  bool
	HTTPAddr         string `validate:"required"`
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Detection settings.
	BloomThreshold float64 `validate:"gt=0,lt=1"`

	// Satellite catalog. An empty URL selects the synthetic source.
	CatalogURL       string `validate:"omitempty,url"`
	CatalogTimeout   time.Duration
	CatalogCacheSize int `validate:"gt=0"`

	// Region scan settings.
	ScanWorkers      int `validate:"gt=0,lte=32"`
	ScanPointTimeout time.Duration
	ScanMaxPoints    int `validate:"gt=0"`
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first if present; it
// never overrides variables already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	threshold, err := parseFloat("BLOOM_THRESHOLD", 0.4)
	if err != nil {
		return nil, err
	}

	catalogTimeout, err := parseDuration("CATALOG_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	scanTimeout, err := parseDuration("SCAN_POINT_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseInt("CATALOG_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	workers, err := parseInt("SCAN_WORKERS", 3)
	if err != nil {
		return nil, err
	}

	maxPoints, err := parseInt("SCAN_MAX_POINTS", 100)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "vegetation-series"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "bloom-reports"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "bloomwatch"),
		PipelineEnabled:    sharedcfg.EnvOrDefault("PIPELINE_ENABLED", "true") == "true",
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		BloomThreshold: threshold,

		CatalogURL:       os.Getenv("CATALOG_URL"),
		CatalogTimeout:   catalogTimeout,
		CatalogCacheSize: cacheSize,

		ScanWorkers:      workers,
		ScanPointTimeout: scanTimeout,
		ScanMaxPoints:    maxPoints,
	}

	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("invalid %s: failed %q constraint", envName(verrs[0].Field()), verrs[0].Tag())
		}
		return nil, err
	}

	return cfg, nil
}

// envName maps a Config field to the variable that sets it, for error messages.
func envName(field string) string {
	switch field {
	case "KafkaBrokers":
		return "KAFKA_BROKERS"
	case "KafkaSourceTopic":
		return "KAFKA_SOURCE_TOPIC"
	case "KafkaSinkTopic":
		return "KAFKA_SINK_TOPIC"
	case "KafkaGroupID":
		return "KAFKA_GROUP_ID"
	case "HTTPAddr":
		return "HTTP_ADDR"
	case "BloomThreshold":
		return "BLOOM_THRESHOLD"
	case "CatalogURL":
		return "CATALOG_URL"
	case "CatalogCacheSize":
		return "CATALOG_CACHE_SIZE"
	case "ScanWorkers":
		return "SCAN_WORKERS"
	case "ScanMaxPoints":
		return "SCAN_MAX_POINTS"
	default:
		return field
	}
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be an integer", key)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be a number", key)
	}
	return f, nil
}
