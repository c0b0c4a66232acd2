package common

import (
	"errors"
	"testing"
	"time"
)

// clearEnv blanks every variable LoadConfig reads so host environments do not
// leak into the assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RECEIPTS_DB_PATH", "RECEIPTS_DB_BUSY_TIMEOUT",
		"TESSERACT_PATH", "TESSERACT_LANG", "TESSDATA_PREFIX",
		"TESSERACT_PSM", "TESSERACT_OEM", "OCR_DPI", "OCR_MAX_PAGES",
		"MIN_IMAGE_SIZE", "MIN_TEXT_LAYER_CHARS", "LOW_CONFIDENCE_THRESHOLD",
		"EXTRACTION_RULES_PATH",
		"BATCH_WORKERS", "BATCH_QUEUE_SIZE", "BATCH_PROCESS_TIMEOUT",
		"LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg := LoadConfig()
	if cfg.Database.Path != "receipts.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Database.BusyTimeout != 5*time.Second {
		t.Errorf("Database.BusyTimeout = %v", cfg.Database.BusyTimeout)
	}
	if cfg.OCR.Tesseract != "tesseract" || cfg.OCR.Language != "eng" {
		t.Errorf("OCR defaults = %q/%q", cfg.OCR.Tesseract, cfg.OCR.Language)
	}
	if cfg.OCR.PSM != 6 || cfg.OCR.OEM != 3 || cfg.OCR.DPI != 144 {
		t.Errorf("OCR tuning = PSM %d, OEM %d, DPI %d", cfg.OCR.PSM, cfg.OCR.OEM, cfg.OCR.DPI)
	}
	if cfg.Pipeline.MinImageSize != 1000 || cfg.Pipeline.MinTextLayerChars != 50 {
		t.Errorf("Pipeline sizes = %d/%d", cfg.Pipeline.MinImageSize, cfg.Pipeline.MinTextLayerChars)
	}
	if cfg.Pipeline.LowConfidenceThreshold != 0.6 {
		t.Errorf("LowConfidenceThreshold = %v", cfg.Pipeline.LowConfidenceThreshold)
	}
	if cfg.Batch.Workers != 4 || cfg.Batch.QueueSize != 256 || cfg.Batch.ProcessTimeout != 3*time.Minute {
		t.Errorf("Batch = %+v", cfg.Batch)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECEIPTS_DB_PATH", "/data/receipts.db")
	t.Setenv("RECEIPTS_DB_BUSY_TIMEOUT", "10s")
	t.Setenv("TESSERACT_PSM", "4")
	t.Setenv("LOW_CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("BATCH_PROCESS_TIMEOUT", "90s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadConfig()
	if cfg.Database.Path != "/data/receipts.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Database.BusyTimeout != 10*time.Second {
		t.Errorf("Database.BusyTimeout = %v", cfg.Database.BusyTimeout)
	}
	if cfg.OCR.PSM != 4 {
		t.Errorf("OCR.PSM = %d", cfg.OCR.PSM)
	}
	if cfg.Pipeline.LowConfidenceThreshold != 0.75 {
		t.Errorf("LowConfidenceThreshold = %v", cfg.Pipeline.LowConfidenceThreshold)
	}
	if cfg.Batch.ProcessTimeout != 90*time.Second {
		t.Errorf("Batch.ProcessTimeout = %v", cfg.Batch.ProcessTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TESSERACT_PSM", "six")
	t.Setenv("LOW_CONFIDENCE_THRESHOLD", "high")
	t.Setenv("BATCH_PROCESS_TIMEOUT", "soon")

	cfg := LoadConfig()
	if cfg.OCR.PSM != 6 {
		t.Errorf("OCR.PSM = %d, want default 6", cfg.OCR.PSM)
	}
	if cfg.Pipeline.LowConfidenceThreshold != 0.6 {
		t.Errorf("LowConfidenceThreshold = %v, want default 0.6", cfg.Pipeline.LowConfidenceThreshold)
	}
	if cfg.Batch.ProcessTimeout != 3*time.Minute {
		t.Errorf("Batch.ProcessTimeout = %v, want default 3m", cfg.Batch.ProcessTimeout)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing db path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "threshold above one", mutate: func(c *Config) { c.Pipeline.LowConfidenceThreshold = 1.5 }, wantErr: true},
		{name: "zero image size", mutate: func(c *Config) { c.Pipeline.MinImageSize = 0 }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.Batch.Workers = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg := LoadConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("Validate() error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
		})
	}
}
