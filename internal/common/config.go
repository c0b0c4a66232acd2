package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	OCR      OCRConfig
	Pipeline PipelineConfig
	Batch    BatchConfig
	LogLevel string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// OCRConfig holds recognition-engine configuration
type OCRConfig struct {
	Tesseract   string
	Language    string
	TessdataDir string
	PSM         int
	OEM         int
	DPI         int
	MaxPages    int
}

// PipelineConfig holds extraction pipeline tuning
type PipelineConfig struct {
	MinImageSize           int
	MinTextLayerChars      int
	LowConfidenceThreshold float64
	RulesPath              string
}

// BatchConfig holds worker queue configuration
type BatchConfig struct {
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        getEnv("RECEIPTS_DB_PATH", "receipts.db"),
			BusyTimeout: getEnvAsDuration("RECEIPTS_DB_BUSY_TIMEOUT", 5*time.Second),
		},
		OCR: OCRConfig{
			Tesseract:   getEnv("TESSERACT_PATH", "tesseract"),
			Language:    getEnv("TESSERACT_LANG", "eng"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			PSM:         getEnvAsInt("TESSERACT_PSM", 6),
			OEM:         getEnvAsInt("TESSERACT_OEM", 3),
			DPI:         getEnvAsInt("OCR_DPI", 144),
			MaxPages:    getEnvAsInt("OCR_MAX_PAGES", 0),
		},
		Pipeline: PipelineConfig{
			MinImageSize:           getEnvAsInt("MIN_IMAGE_SIZE", 1000),
			MinTextLayerChars:      getEnvAsInt("MIN_TEXT_LAYER_CHARS", 50),
			LowConfidenceThreshold: getEnvAsFloat64("LOW_CONFIDENCE_THRESHOLD", 0.6),
			RulesPath:              getEnv("EXTRACTION_RULES_PATH", ""),
		},
		Batch: BatchConfig{
			Workers:        getEnvAsInt("BATCH_WORKERS", 4),
			QueueSize:      getEnvAsInt("BATCH_QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("BATCH_PROCESS_TIMEOUT", 3*time.Minute),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return NewAppError("CONFIG_ERROR", "RECEIPTS_DB_PATH is required", ErrInvalidInput)
	}
	if c.Pipeline.LowConfidenceThreshold < 0 || c.Pipeline.LowConfidenceThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "LOW_CONFIDENCE_THRESHOLD must be in [0,1]", ErrInvalidInput)
	}
	if c.Pipeline.MinImageSize <= 0 {
		return NewAppError("CONFIG_ERROR", "MIN_IMAGE_SIZE must be positive", ErrInvalidInput)
	}
	if c.Batch.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "BATCH_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
