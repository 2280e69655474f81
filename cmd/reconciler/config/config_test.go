package config

import (
	"os"
	"path/filepath"
	"testing"

	"gst-reconciliation-service/internal/parsers"
	"gst-reconciliation-service/internal/reconciler"
	"gst-reconciliation-service/internal/reporter"
	"gst-reconciliation-service/pkg/logger"
)

func TestCreateRegisterParserConfig(t *testing.T) {
	config, err := CreateRegisterParserConfig("", nil, false, 1000)
	if err != nil {
		t.Fatalf("failed to create register parser config: %v", err)
	}

	if config.Delimiter != ',' {
		t.Errorf("expected Delimiter ',', got '%c'", config.Delimiter)
	}
	if len(config.DateFormats) != len(parsers.DefaultDateFormats) {
		t.Errorf("expected default date formats, got %v", config.DateFormats)
	}
	if config.StrictMode {
		t.Error("expected StrictMode to be false")
	}
	if len(config.ColumnAliases) == 0 {
		t.Error("expected column aliases to be set")
	}
}

func TestCreateRegisterParserConfig_Overrides(t *testing.T) {
	tests := []struct {
		name        string
		delimiter   string
		dateFormats []string
		strict      bool
		maxErrors   int
		expectError bool
		check       func(t *testing.T, config *parsers.RegisterParserConfig)
	}{
		{
			name:      "semicolon delimiter",
			delimiter: ";",
			check: func(t *testing.T, config *parsers.RegisterParserConfig) {
				if config.Delimiter != ';' {
					t.Errorf("expected ';', got '%c'", config.Delimiter)
				}
			},
		},
		{
			name:      "tab delimiter",
			delimiter: `\t`,
			check: func(t *testing.T, config *parsers.RegisterParserConfig) {
				if config.Delimiter != '\t' {
					t.Errorf("expected tab, got '%c'", config.Delimiter)
				}
			},
		},
		{
			name:        "custom date format first",
			dateFormats: []string{"01/02/2006", " "},
			check: func(t *testing.T, config *parsers.RegisterParserConfig) {
				if config.DateFormats[0] != "01/02/2006" {
					t.Errorf("expected custom format first, got %v", config.DateFormats)
				}
				if len(config.DateFormats) != len(parsers.DefaultDateFormats)+1 {
					t.Errorf("blank formats should be dropped, got %v", config.DateFormats)
				}
			},
		},
		{
			name:   "strict mode",
			strict: true,
			check: func(t *testing.T, config *parsers.RegisterParserConfig) {
				if !config.StrictMode {
					t.Error("expected StrictMode to be true")
				}
			},
		},
		{
			name:        "multi character delimiter",
			delimiter:   "||",
			expectError: true,
		},
		{
			name:        "quote delimiter",
			delimiter:   `"`,
			expectError: true,
		},
		{
			name:        "negative max errors",
			maxErrors:   -1,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := CreateRegisterParserConfig(tt.delimiter, tt.dateFormats, tt.strict, tt.maxErrors)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, config)
		})
	}
}

func TestCreateReconcilerConfig(t *testing.T) {
	config := CreateReconcilerConfig(85, false)

	if config.MatchThreshold != 85 {
		t.Errorf("expected MatchThreshold 85, got %d", config.MatchThreshold)
	}
	if config.IncludeRows {
		t.Error("expected IncludeRows to be false")
	}
	if !config.ValidateInputs {
		t.Error("expected ValidateInputs to keep its default")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("reconciler config should be valid: %v", err)
	}

	if err := CreateReconcilerConfig(150, true).Validate(); err == nil {
		t.Error("expected threshold above 100 to be rejected")
	}
}

func TestCreateReportConfig(t *testing.T) {
	tests := []struct {
		format      string
		expected    reporter.OutputFormat
		stats       bool
		expectError bool
	}{
		{format: "console", expected: reporter.FormatConsole, stats: true},
		{format: "JSON", expected: reporter.FormatJSON, stats: true},
		{format: "csv", expected: reporter.FormatCSV, stats: false},
		{format: " xlsx ", expected: reporter.FormatXLSX, stats: false},
		{format: "pdf", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			config, err := CreateReportConfig(tt.format, true, true)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if config.Format != tt.expected {
				t.Errorf("expected format %s, got %s", tt.expected, config.Format)
			}
			if config.IncludeProcessingStats != tt.stats {
				t.Errorf("expected IncludeProcessingStats %v, got %v", tt.stats, config.IncludeProcessingStats)
			}
			if !config.OnlyDiscrepancies {
				t.Error("expected OnlyDiscrepancies to be set")
			}
			if err := config.Validate(); err != nil {
				t.Errorf("report config should be valid: %v", err)
			}
		})
	}
}

func TestCreateLoggerConfig(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		verbose bool
		want    logger.Level
		caller  bool
	}{
		{name: "defaults", want: logger.WarnLevel},
		{name: "verbose", verbose: true, want: logger.InfoLevel},
		{name: "explicit level wins", level: "ERROR", verbose: true, want: logger.ErrorLevel},
		{name: "debug adds caller", level: "debug", want: logger.DebugLevel, caller: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := CreateLoggerConfig(tt.level, tt.format, tt.verbose)
			if config.Level != tt.want {
				t.Errorf("expected level %s, got %s", tt.want, config.Level)
			}
			if config.CallerInfo != tt.caller {
				t.Errorf("expected CallerInfo %v, got %v", tt.caller, config.CallerInfo)
			}
			if err := config.Validate(); err != nil {
				t.Errorf("logger config should be valid: %v", err)
			}
		})
	}

	if config := CreateLoggerConfig("", "json", false); config.Format != logger.JSONFormat {
		t.Errorf("expected json format, got %s", config.Format)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "RECONCILER_TEST_THRESHOLD=82\nRECONCILER_TEST_PRESET=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	t.Setenv("RECONCILER_TEST_PRESET", "from-env")
	t.Setenv("RECONCILER_TEST_THRESHOLD", "")
	os.Unsetenv("RECONCILER_TEST_THRESHOLD")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}

	if got := os.Getenv("RECONCILER_TEST_THRESHOLD"); got != "82" {
		t.Errorf("expected threshold from file, got %q", got)
	}
	if got := os.Getenv("RECONCILER_TEST_PRESET"); got != "from-env" {
		t.Errorf("existing variables must not be overridden, got %q", got)
	}

	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for an explicit missing env file")
	}
}

func TestValidateConfig(t *testing.T) {
	parserConfig, err := CreateRegisterParserConfig(",", nil, false, 10)
	if err != nil {
		t.Fatal(err)
	}
	reportConfig, err := CreateReportConfig("csv", false, true)
	if err != nil {
		t.Fatal(err)
	}

	if err := ValidateConfig(parserConfig, reconciler.DefaultConfig(), reportConfig); err != nil {
		t.Errorf("expected valid configuration, got %v", err)
	}

	if err := ValidateConfig(parserConfig, &reconciler.Config{MatchThreshold: -1}, reportConfig); err == nil {
		t.Error("expected invalid reconciler config to be rejected")
	}

	badParser := *parserConfig
	badParser.DateFormats = nil
	if err := ValidateConfig(&badParser, reconciler.DefaultConfig(), reportConfig); err == nil {
		t.Error("expected invalid parser config to be rejected")
	}

	badReport := *reportConfig
	badReport.IncludeRows = false
	badReport.IncludePivot = false
	if err := ValidateConfig(parserConfig, reconciler.DefaultConfig(), &badReport); err == nil {
		t.Error("expected invalid report config to be rejected")
	}
}
