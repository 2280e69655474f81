package parsers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gst-reconciliation-service/internal/models"
	"gst-reconciliation-service/pkg/errors"
	"gst-reconciliation-service/pkg/logger"
)

// RegisterParser reads purchase registers and GSTR2A returns.
type RegisterParser struct {
	*BaseParser
	config *RegisterParserConfig
	logger logger.Logger
}

// columnIndex holds the resolved position of every known column.
type columnIndex map[string]int

// NewRegisterParser creates a RegisterParser. A nil config selects
// DefaultRegisterParserConfig.
func NewRegisterParser(config *RegisterParserConfig) (*RegisterParser, error) {
	if config == nil {
		config = DefaultRegisterParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"register_parser_config",
			config,
			err,
		).WithSuggestion("check the parser configuration values")
	}

	parseConfig := DefaultParseConfig()
	parseConfig.Delimiter = config.Delimiter

	log := logger.WithComponent("register_parser")
	log.WithFields(logger.Fields{
		"delimiter":    string(config.Delimiter),
		"date_formats": config.DateFormats,
		"strict_mode":  config.StrictMode,
	}).Debug("Created register parser")

	return &RegisterParser{
		BaseParser: NewBaseParser(parseConfig),
		config:     config,
		logger:     log,
	}, nil
}

// Config returns the parser configuration.
func (rp *RegisterParser) Config() *RegisterParserConfig {
	return rp.config
}

// ParseRegister reads every invoice line of the CSV file at filePath.
func (rp *RegisterParser) ParseRegister(ctx context.Context, filePath string) ([]*models.TransactionRecord, *ParseStats, error) {
	file, reader, err := rp.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	return rp.parse(ctx, filePath, reader)
}

// ParseReader reads a register from r. name is used in errors and logs.
func (rp *RegisterParser) ParseReader(ctx context.Context, name string, r io.Reader) ([]*models.TransactionRecord, *ParseStats, error) {
	return rp.parse(ctx, name, rp.NewReader(r))
}

func (rp *RegisterParser) parse(ctx context.Context, name string, reader *csv.Reader) ([]*models.TransactionRecord, *ParseStats, error) {
	log := rp.logger.WithField("file_path", name)
	log.Info("Parsing register")

	parseCtx := NewParseContext(ctx, name)
	stats := NewParseStats(name)

	required := make(map[string][]string, len(RequiredColumns))
	for _, column := range RequiredColumns {
		required[column] = rp.config.ColumnNames(column)
	}
	if err := rp.ReadHeaders(reader, parseCtx, required); err != nil {
		log.WithError(err).Error("Register header validation failed")
		return nil, stats, err
	}

	columns := rp.resolveColumns(parseCtx)
	records := make([]*models.TransactionRecord, 0)

	for {
		row, err := rp.ReadRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.IsCode(err, errors.CodeCancelled) {
				log.Warn("Register parsing was cancelled")
				return nil, stats, err
			}

			parseErr, ok := err.(*ParseError)
			if !ok {
				parseErr = &ParseError{Line: parseCtx.LineNumber, Message: "malformed row", Err: err}
			}
			if abort := rp.skipRow(stats, parseErr, name); abort != nil {
				return nil, stats, abort
			}
			continue
		}

		stats.RecordsParsed++

		record, parseErr := rp.buildRecord(row, columns, parseCtx.LineNumber)
		if parseErr != nil {
			if abort := rp.skipRow(stats, parseErr, name); abort != nil {
				return nil, stats, abort
			}
			continue
		}

		records = append(records, record)
		stats.RecordsValid++
	}

	stats.TotalLines = parseCtx.LineNumber

	log.WithFields(logger.Fields{
		"total_lines":    stats.TotalLines,
		"records_parsed": stats.RecordsParsed,
		"records_valid":  stats.RecordsValid,
		"error_count":    stats.ErrorCount,
	}).Info("Register parsing completed")

	if stats.HasErrors() {
		log.WithField("sample_errors", stats.GetSampleErrors(3)).Warn("Skipped malformed rows")
	}

	return records, stats, nil
}

// skipRow records a bad row. It returns a non-nil error when parsing must stop.
func (rp *RegisterParser) skipRow(stats *ParseStats, parseErr *ParseError, name string) error {
	stats.AddError(parseErr)
	rp.logger.WithFields(logger.Fields{
		"file_path": name,
		"line":      parseErr.Line,
		"field":     parseErr.Field,
	}).Debug(parseErr.Message)

	if rp.config.StrictMode {
		return errors.ParseError(errors.CodeInvalidData, name, parseErr.Line, parseErr.Field, parseErr.Value, parseErr).
			WithSuggestion("fix the row or disable strict mode to skip malformed rows")
	}
	if rp.config.MaxErrors > 0 && stats.ErrorCount > rp.config.MaxErrors {
		return errors.ParseError(errors.CodeInvalidFormat, name, parseErr.Line, "rows",
			fmt.Sprintf("more than %d malformed rows", rp.config.MaxErrors), parseErr).
			WithSuggestion("check that the file is a GST register export")
	}
	return nil
}

func (rp *RegisterParser) resolveColumns(parseCtx *ParseContext) columnIndex {
	columns := make(columnIndex, len(RequiredColumns)+len(OptionalColumns))
	for _, column := range RequiredColumns {
		columns[column] = parseCtx.GetColumnIndex(rp.config.ColumnNames(column)...)
	}
	for _, column := range OptionalColumns {
		columns[column] = parseCtx.GetColumnIndex(rp.config.ColumnNames(column)...)
	}
	return columns
}

func (rp *RegisterParser) buildRecord(row []string, columns columnIndex, line int) (*models.TransactionRecord, *ParseError) {
	cell := func(column string) string {
		return FieldValue(row, columns[column])
	}
	fail := func(column, value, message string, err error) *ParseError {
		return &ParseError{
			Line:    line,
			Column:  columns[column] + 1,
			Field:   column,
			Value:   value,
			Message: message,
			Err:     err,
		}
	}

	record := &models.TransactionRecord{
		InvoiceNumber: cell(ColumnInvoiceNumber),
		PartyName:     cell(ColumnPartyName),
		GSTIN:         strings.ToUpper(cell(ColumnGSTIN)),
	}
	if record.InvoiceNumber == "" {
		return nil, fail(ColumnInvoiceNumber, "", "invoice number is required", nil)
	}

	amounts := []struct {
		column string
		dest   *decimal.Decimal
	}{
		{ColumnTaxRate, &record.TaxRate},
		{ColumnTaxableAmount, &record.TaxableAmount},
		{ColumnCGST, &record.CGST},
		{ColumnSGST, &record.SGST},
		{ColumnIGST, &record.IGST},
	}
	for _, a := range amounts {
		raw := cell(a.column)
		value, err := ParseAmount(raw)
		if err != nil {
			return nil, fail(a.column, raw, "invalid amount", err)
		}
		*a.dest = value
	}

	if raw := cell(ColumnInvoiceDate); raw != "" {
		date, err := ParseDate(raw, rp.config.DateFormats)
		if err != nil {
			return nil, fail(ColumnInvoiceDate, raw, "invalid date", err)
		}
		record.InvoiceDate = date
	}

	if err := record.Validate(); err != nil {
		return nil, fail(ColumnTaxRate, record.TaxRate.String(), "record validation failed", err)
	}

	return record, nil
}

var amountCleaner = strings.NewReplacer(",", "", "₹", "", "Rs.", "", "INR", "", " ", "")

// ParseAmount parses a monetary cell. Thousands separators, the rupee sign
// and a trailing percent sign are ignored; an empty cell is an error.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := amountCleaner.Replace(strings.TrimSpace(s))
	cleaned = strings.TrimSuffix(cleaned, "%")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cannot parse %q as a decimal: %w", s, err)
	}
	if negative {
		value = value.Neg()
	}
	return value, nil
}

// ParseDate parses s with the first matching layout.
func ParseDate(s string, layouts []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q does not match any of %v", s, layouts)
}
