// Package reporter renders reconciliation results.
//
// Every format carries the same two tables: the reconciliation details, one
// line per classified invoice, and the pivot summary, one line per party with
// book totals, GSTR2A totals and their difference.
//
// Supported output formats:
//   - Console: summary and both tables for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: both tables separated by a blank line
//   - XLSX: a workbook with one sheet per table
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatXLSX})
//	err = generator.GenerateReport(result, file)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gst-reconciliation-service/internal/models"
	"gst-reconciliation-service/internal/parsers"
	"gst-reconciliation-service/internal/reconciler"
	"gst-reconciliation-service/pkg/errors"
	"gst-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the format must be written to a file.
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

// Extension returns the usual file extension for the format.
func (f OutputFormat) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatCSV:
		return ".csv"
	case FormatXLSX:
		return ".xlsx"
	default:
		return ".txt"
	}
}

// Sheet names of the XLSX workbook.
const (
	SheetReconciliation = "Reconciliation Details"
	SheetPivot          = "Pivot Summary"
)

// ReconciliationHeaders are the columns of the reconciliation table.
var ReconciliationHeaders = []string{
	"Party_Name",
	"GSTIN",
	"Invoice_Date",
	"Invoice_Number",
	"Tax_Rate",
	"Taxable_Amount",
	"CGST",
	"SGST",
	"IGST",
	"Remarks",
}

// PivotHeaders are the columns of the pivot table.
var PivotHeaders = []string{
	"Party Name",
	"Taxable Amount (Books)",
	"CGST (Books)",
	"SGST (Books)",
	"IGST (Books)",
	"Taxable Amount (GSTR2A)",
	"CGST (GSTR2A)",
	"SGST (GSTR2A)",
	"IGST (GSTR2A)",
	"Taxable Amount Diff",
	"CGST Diff",
	"SGST Diff",
	"IGST Diff",
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	IncludeRows            bool `json:"include_rows" mapstructure:"include_rows"`
	IncludePivot           bool `json:"include_pivot" mapstructure:"include_pivot"`
	IncludeProcessingStats bool `json:"include_processing_stats" mapstructure:"include_processing_stats"`

	// OnlyDiscrepancies drops matched rows and parties without a diff.
	OnlyDiscrepancies bool `json:"only_discrepancies" mapstructure:"only_discrepancies"`

	CSVDelimiter rune `json:"csv_delimiter" mapstructure:"csv_delimiter"`

	// MaxConsoleRows limits each console table; zero means no limit.
	MaxConsoleRows int `json:"max_console_rows" mapstructure:"max_console_rows"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                 FormatConsole,
		IncludeRows:            true,
		IncludePivot:           true,
		IncludeProcessingStats: true,
		CSVDelimiter:           ',',
		MaxConsoleRows:         50,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n' || c.CSVDelimiter == '\r' {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}
	if c.MaxConsoleRows < 0 {
		return fmt.Errorf("max console rows cannot be negative, got %d", c.MaxConsoleRows)
	}
	if !c.IncludeRows && !c.IncludePivot {
		return fmt.Errorf("at least one of the reconciliation or pivot tables must be included")
	}
	return nil
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
	logger logger.Logger
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report", config.Format, err)
	}

	return &ReportGenerator{
		config: config,
		logger: logger.WithComponent("reporter"),
	}, nil
}

// GenerateReport writes the report for result to writer.
func (rg *ReportGenerator) GenerateReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	if result == nil || result.Summary == nil {
		return errors.ValidationError(errors.CodeMissingField, "result", nil, nil).
			WithSuggestion("run the reconciliation before generating a report")
	}
	if writer == nil {
		return errors.ValidationError(errors.CodeMissingField, "writer", nil, nil)
	}

	rg.logger.WithFields(logger.Fields{
		"format": rg.config.Format,
		"rows":   len(result.Rows),
		"party":  len(result.PartyAggregates),
	}).Debug("Generating report")

	var err error
	switch rg.config.Format {
	case FormatConsole:
		err = rg.generateConsoleReport(result, writer)
	case FormatJSON:
		err = rg.generateJSONReport(result, writer)
	case FormatCSV:
		err = rg.generateCSVReport(result, writer)
	case FormatXLSX:
		err = rg.generateXLSXReport(result, writer)
	default:
		err = fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}

	if err != nil {
		if _, ok := errors.AsReconcilerError(err); ok {
			return err
		}
		return errors.ExportError(string(rg.config.Format), err)
	}
	return nil
}

// rows returns the reconciliation rows selected by the configuration.
func (rg *ReportGenerator) rows(result *reconciler.ReconciliationResult) []*models.ReconciledRow {
	if !rg.config.IncludeRows {
		return nil
	}
	if !rg.config.OnlyDiscrepancies {
		return result.Rows
	}
	rows := make([]*models.ReconciledRow, 0, len(result.Rows))
	for _, row := range result.Rows {
		if row.Status != models.StatusMatched {
			rows = append(rows, row)
		}
	}
	return rows
}

// aggregates returns the party aggregates selected by the configuration.
func (rg *ReportGenerator) aggregates(result *reconciler.ReconciliationResult) []*models.PartyAggregate {
	if !rg.config.IncludePivot {
		return nil
	}
	if !rg.config.OnlyDiscrepancies {
		return result.PartyAggregates
	}
	aggs := make([]*models.PartyAggregate, 0, len(result.PartyAggregates))
	for _, agg := range result.PartyAggregates {
		if agg.HasDiscrepancy() {
			aggs = append(aggs, agg)
		}
	}
	return aggs
}

// reconciliationCells returns the values of row in ReconciliationHeaders order.
// Amounts are decimal.Decimal, everything else is a string.
func reconciliationCells(row *models.ReconciledRow) []interface{} {
	return []interface{}{
		row.PartyName,
		row.GSTIN,
		row.FormattedDate(),
		row.InvoiceNumber,
		row.TaxRate,
		row.TaxableAmount,
		row.CGST,
		row.SGST,
		row.IGST,
		row.Status.Label(),
	}
}

// pivotCells returns the values of agg in PivotHeaders order. A side with no
// rows yields nil cells.
func pivotCells(agg *models.PartyAggregate) []interface{} {
	cells := make([]interface{}, 0, len(PivotHeaders))
	cells = append(cells, agg.PartyName)
	cells = append(cells, totalsCells(agg.Books)...)
	cells = append(cells, totalsCells(agg.Return)...)
	cells = append(cells, totalsCells(&agg.Diff)...)
	return cells
}

func totalsCells(t *models.TaxTotals) []interface{} {
	if t == nil {
		return []interface{}{nil, nil, nil, nil}
	}
	cells := make([]interface{}, 0, 4)
	for _, v := range t.Values() {
		cells = append(cells, v)
	}
	return cells
}

// cellStrings renders cells as text. nil becomes an empty string.
func cellStrings(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case nil:
			out[i] = ""
		case decimal.Decimal:
			out[i] = v.String()
		case string:
			out[i] = v
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

func (rg *ReportGenerator) generateConsoleReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	summary := result.Summary

	fmt.Fprintf(writer, "GST RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n", result.ProcessedAt.Format(time.RFC3339))
	if result.Request != nil {
		fmt.Fprintf(writer, "Purchase Register: %s\n", result.Request.BookFile)
		fmt.Fprintf(writer, "GSTR2A:            %s\n", result.Request.ReturnFile)
	}
	fmt.Fprintf(writer, "Processing Duration: %v\n\n", summary.ProcessingDuration)

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummary(summary, writer)
	fmt.Fprintf(writer, "\n")

	for _, warning := range result.Warnings {
		fmt.Fprintf(writer, "WARNING: %s\n", warning)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeRows {
		fmt.Fprintf(writer, "=== %s ===\n", strings.ToUpper(SheetReconciliation))
		rows := rg.rows(result)
		table := make([][]string, 0, len(rows))
		for _, row := range rows {
			table = append(table, cellStrings(reconciliationCells(row)))
		}
		if err := rg.printTable(writer, ReconciliationHeaders, table); err != nil {
			return err
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludePivot {
		fmt.Fprintf(writer, "=== %s ===\n", strings.ToUpper(SheetPivot))
		aggs := rg.aggregates(result)
		table := make([][]string, 0, len(aggs))
		for _, agg := range aggs {
			table = append(table, cellStrings(pivotCells(agg)))
		}
		if err := rg.printTable(writer, PivotHeaders, table); err != nil {
			return err
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeProcessingStats && result.ProcessingStats != nil {
		fmt.Fprintf(writer, "=== PROCESSING STATISTICS ===\n")
		rg.printProcessingStats(result.ProcessingStats, writer)
	}

	return nil
}

func (rg *ReportGenerator) printSummary(summary *reconciler.ResultSummary, writer io.Writer) {
	fmt.Fprintf(writer, "Records:\n")
	fmt.Fprintf(writer, "  Purchase Register: %d\n", summary.BookRecords)
	fmt.Fprintf(writer, "  GSTR2A:            %d\n", summary.ReturnRecords)

	fmt.Fprintf(writer, "\nReconciliation Rows: %d\n", summary.TotalRows)
	fmt.Fprintf(writer, "  %-14s %d (%.1f%%)\n", models.StatusMatched.Label()+":",
		summary.Matched, percentage(summary.Matched, summary.TotalRows))
	fmt.Fprintf(writer, "  %-14s %d (%.1f%%)\n", models.StatusNotInReturn.Label()+":",
		summary.NotInReturn, percentage(summary.NotInReturn, summary.TotalRows))
	fmt.Fprintf(writer, "  %-14s %d (%.1f%%)\n", models.StatusNotInBooks.Label()+":",
		summary.NotInBooks, percentage(summary.NotInBooks, summary.TotalRows))

	fmt.Fprintf(writer, "\nTax Totals:         %14s %14s %14s\n", "Books", "GSTR2A", "Diff")
	labels := []string{"Taxable Amount", "CGST", "SGST", "IGST"}
	book := summary.BookTotals.Values()
	ret := summary.ReturnTotals.Values()
	diff := summary.NetDiff.Values()
	for i, label := range labels {
		fmt.Fprintf(writer, "  %-17s %14s %14s %14s\n", label,
			book[i].StringFixed(2), ret[i].StringFixed(2), diff[i].StringFixed(2))
	}

	fmt.Fprintf(writer, "\nParties: %d (%d with differences)\n", summary.Parties, summary.DiscrepantParties)
}

// printTable writes an aligned table, truncated to MaxConsoleRows.
func (rg *ReportGenerator) printTable(writer io.Writer, headers []string, rows [][]string) error {
	if len(rows) == 0 {
		fmt.Fprintf(writer, "(none)\n")
		return nil
	}

	limit := len(rows)
	if rg.config.MaxConsoleRows > 0 && rg.config.MaxConsoleRows < limit {
		limit = rg.config.MaxConsoleRows
	}

	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows[:limit] {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if limit < len(rows) {
		fmt.Fprintf(writer, "... and %d more\n", len(rows)-limit)
	}
	return nil
}

func (rg *ReportGenerator) printProcessingStats(stats *reconciler.ProcessingStats, writer io.Writer) {
	fmt.Fprintf(writer, "Parse Errors:         %d\n", stats.ParseErrors)
	fmt.Fprintf(writer, "Validation Errors:    %d\n", stats.ValidationErrors)
	fmt.Fprintf(writer, "Records/Second:       %.2f\n", stats.RecordsPerSecond)
	fmt.Fprintf(writer, "Total Processing:     %v\n", stats.TotalProcessingTime)
	fmt.Fprintf(writer, "Parsing Time:         %v\n", stats.ParsingTime)
	fmt.Fprintf(writer, "Reconcile Time:       %v\n", stats.ReconcileTime)
	fmt.Fprintf(writer, "Aggregate Time:       %v\n", stats.AggregateTime)

	rg.printParseErrors("Purchase Register", stats.BookParseStats, writer)
	rg.printParseErrors("GSTR2A", stats.ReturnParseStats, writer)
}

func (rg *ReportGenerator) printParseErrors(label string, stats *parsers.ParseStats, writer io.Writer) {
	if stats == nil || !stats.HasErrors() {
		return
	}

	fmt.Fprintf(writer, "\n%s: %s\n", label, stats)
	for _, sample := range stats.GetSampleErrors(10) {
		fmt.Fprintf(writer, "  - %s\n", sample)
	}
	if stats.ErrorCount > 10 {
		fmt.Fprintf(writer, "  ... and %d more\n", stats.ErrorCount-10)
	}
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

// jsonReport is the document written by the JSON format.
type jsonReport struct {
	Summary         *reconciler.ResultSummary         `json:"summary"`
	Rows            []*models.ReconciledRow           `json:"rows,omitempty"`
	PartyAggregates []*models.PartyAggregate          `json:"party_aggregates,omitempty"`
	Warnings        []string                          `json:"warnings,omitempty"`
	ProcessingStats *reconciler.ProcessingStats       `json:"processing_stats,omitempty"`
	Request         *reconciler.ReconciliationRequest `json:"request,omitempty"`
	ProcessedAt     time.Time                         `json:"processed_at"`
}

func (rg *ReportGenerator) generateJSONReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	report := jsonReport{
		Summary:         result.Summary,
		Rows:            rg.rows(result),
		PartyAggregates: rg.aggregates(result),
		Warnings:        result.Warnings,
		Request:         result.Request,
		ProcessedAt:     result.ProcessedAt,
	}
	if rg.config.IncludeProcessingStats {
		report.ProcessingStats = result.ProcessingStats
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func (rg *ReportGenerator) generateCSVReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.IncludeRows {
		if err := csvWriter.Write(ReconciliationHeaders); err != nil {
			return fmt.Errorf("failed to write reconciliation headers: %w", err)
		}
		for _, row := range rg.rows(result) {
			if err := csvWriter.Write(cellStrings(reconciliationCells(row))); err != nil {
				return fmt.Errorf("failed to write reconciliation row: %w", err)
			}
		}
	}

	if rg.config.IncludeRows && rg.config.IncludePivot {
		if err := csvWriter.Write(nil); err != nil {
			return fmt.Errorf("failed to write table separator: %w", err)
		}
	}

	if rg.config.IncludePivot {
		if err := csvWriter.Write(PivotHeaders); err != nil {
			return fmt.Errorf("failed to write pivot headers: %w", err)
		}
		for _, agg := range rg.aggregates(result) {
			if err := csvWriter.Write(cellStrings(pivotCells(agg))); err != nil {
				return fmt.Errorf("failed to write pivot row: %w", err)
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report", config.Format, err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
