package config

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gst-reconciliation-service/internal/parsers"
	"gst-reconciliation-service/internal/reconciler"
	"gst-reconciliation-service/internal/reporter"
	"gst-reconciliation-service/pkg/logger"

	"github.com/subosito/gotenv"
)

// DefaultEnvFile is loaded when present and no --env-file is given.
const DefaultEnvFile = ".env"

// LoadEnvFile exports the variables defined in path without overriding
// variables already set in the environment. A missing DefaultEnvFile is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFile
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
	}

	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// CreateRegisterParserConfig creates the parser configuration shared by both
// registers.
func CreateRegisterParserConfig(delimiter string, dateFormats []string, strict bool, maxErrors int) (*parsers.RegisterParserConfig, error) {
	config := parsers.DefaultRegisterParserConfig()

	if delimiter != "" {
		if delimiter == `\t` || delimiter == "tab" {
			delimiter = "\t"
		}
		if utf8.RuneCountInString(delimiter) != 1 {
			return nil, fmt.Errorf("delimiter must be a single character, got %q", delimiter)
		}
		config.Delimiter, _ = utf8.DecodeRuneInString(delimiter)
	}

	// User formats are tried before the built-in ones.
	if len(dateFormats) > 0 {
		formats := make([]string, 0, len(dateFormats)+len(config.DateFormats))
		for _, f := range dateFormats {
			if f = strings.TrimSpace(f); f != "" {
				formats = append(formats, f)
			}
		}
		config.DateFormats = append(formats, config.DateFormats...)
	}

	config.StrictMode = strict
	config.MaxErrors = maxErrors

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid register parser config: %w", err)
	}
	return config, nil
}

// CreateReconcilerConfig creates a reconciler configuration
func CreateReconcilerConfig(threshold int, includeRows bool) *reconciler.Config {
	config := reconciler.DefaultConfig()

	config.MatchThreshold = threshold
	config.IncludeRows = includeRows

	return config
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string, onlyDiscrepancies bool, includeRows bool) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()

	config.Format = reporter.OutputFormat(strings.ToLower(strings.TrimSpace(format)))
	config.OnlyDiscrepancies = onlyDiscrepancies
	config.IncludeRows = includeRows

	switch config.Format {
	case reporter.FormatConsole:
		config.IncludeProcessingStats = true
	case reporter.FormatJSON:
		config.IncludeProcessingStats = true
	case reporter.FormatCSV, reporter.FormatXLSX:
		// Tabular exports carry only the two tables.
		config.IncludeProcessingStats = false
	default:
		return nil, fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv, xlsx", format)
	}

	return config, nil
}

// CreateLoggerConfig creates the logger configuration. Verbose raises the
// level to info unless a level was given explicitly.
func CreateLoggerConfig(level, format string, verbose bool) *logger.Config {
	config := logger.DefaultConfig()

	if verbose {
		config.Level = logger.InfoLevel
	}
	if level != "" {
		config.Level = logger.Level(strings.ToLower(level))
	}
	if format != "" {
		config.Format = logger.Format(strings.ToLower(format))
	}
	if config.Level == logger.DebugLevel {
		config.CallerInfo = true
	}

	return config
}

// ValidateConfig validates that all required configurations are valid
func ValidateConfig(parserConfig *parsers.RegisterParserConfig, reconcilerConfig *reconciler.Config, reportConfig *reporter.ReportConfig) error {
	if err := parserConfig.Validate(); err != nil {
		return fmt.Errorf("invalid register parser config: %w", err)
	}

	if err := reconcilerConfig.Validate(); err != nil {
		return fmt.Errorf("invalid reconciler config: %w", err)
	}

	if err := reportConfig.Validate(); err != nil {
		return fmt.Errorf("invalid report config: %w", err)
	}

	return nil
}
