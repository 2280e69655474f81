package reconciler

import (
	"fmt"
	"strings"
	"time"

	"gst-reconciliation-service/internal/matcher"
	"gst-reconciliation-service/internal/models"
	"gst-reconciliation-service/internal/parsers"
)

// Config holds configuration options for the reconciliation service
type Config struct {
	// MatchThreshold is the minimum party name similarity (exclusive) for a
	// book name to be rewritten to a GSTR2A name.
	MatchThreshold int `json:"match_threshold" mapstructure:"match_threshold"`

	// ValidateInputs drops parsed records that fail record validation before
	// reconciling.
	ValidateInputs bool `json:"validate_inputs" mapstructure:"validate_inputs"`

	// IncludeRows keeps the reconciliation rows in the result. Disabling it
	// leaves only the summary and the party comparison.
	IncludeRows bool `json:"include_rows" mapstructure:"include_rows"`
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		MatchThreshold: matcher.DefaultThreshold,
		ValidateInputs: true,
		IncludeRows:    true,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MatchThreshold < 0 || c.MatchThreshold > 100 {
		return fmt.Errorf("match threshold must be between 0 and 100, got %d", c.MatchThreshold)
	}
	return nil
}

// MatchingConfig returns the name matching configuration derived from c.
func (c *Config) MatchingConfig() *matcher.MatchingConfig {
	mc := matcher.DefaultMatchingConfig()
	mc.Threshold = c.MatchThreshold
	return mc
}

// ReconciliationRequest names the two registers to compare.
type ReconciliationRequest struct {
	BookFile   string `json:"book_file"`
	ReturnFile string `json:"return_file"`
}

// Validate validates the reconciliation request
func (r *ReconciliationRequest) Validate() error {
	if strings.TrimSpace(r.BookFile) == "" {
		return fmt.Errorf("purchase register file path is required")
	}
	if strings.TrimSpace(r.ReturnFile) == "" {
		return fmt.Errorf("GSTR2A file path is required")
	}
	return nil
}

// ReconciliationResult contains the complete results of reconciliation
type ReconciliationResult struct {
	Summary         *ResultSummary           `json:"summary"`
	Rows            []*models.ReconciledRow  `json:"rows"`
	PartyAggregates []*models.PartyAggregate `json:"party_aggregates"`
	ProcessingStats *ProcessingStats         `json:"processing_stats,omitempty"`
	Warnings        []string                 `json:"warnings,omitempty"`
	ProcessedAt     time.Time                `json:"processed_at"`
	Request         *ReconciliationRequest   `json:"request,omitempty"`
}

// ResultSummary provides a high-level overview of reconciliation results
type ResultSummary struct {
	BookRecords   int `json:"book_records"`
	ReturnRecords int `json:"return_records"`

	TotalRows   int `json:"total_rows"`
	Matched     int `json:"matched"`
	NotInReturn int `json:"not_in_gstr2a"`
	NotInBooks  int `json:"not_in_books"`

	BookTotals   models.TaxTotals `json:"book_totals"`
	ReturnTotals models.TaxTotals `json:"gstr2a_totals"`
	NetDiff      models.TaxTotals `json:"net_diff"`

	Parties           int `json:"parties"`
	DiscrepantParties int `json:"discrepant_parties"`

	ProcessingDuration time.Duration `json:"processing_duration"`
}

// MatchRate returns the share of rows that matched, in percent.
func (s *ResultSummary) MatchRate() float64 {
	if s.TotalRows == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.TotalRows) * 100
}

// IsReconciled reports whether every row matched and no party has a diff.
func (s *ResultSummary) IsReconciled() bool {
	return s.NotInReturn == 0 && s.NotInBooks == 0 && s.DiscrepantParties == 0
}

// ProcessingStats contains detailed processing statistics
type ProcessingStats struct {
	BookParseStats   *parsers.ParseStats `json:"book_parse_stats,omitempty"`
	ReturnParseStats *parsers.ParseStats `json:"return_parse_stats,omitempty"`

	ParseErrors      int `json:"parse_errors"`
	ValidationErrors int `json:"validation_errors"`

	RecordsPerSecond    float64       `json:"records_per_second"`
	ParsingTime         time.Duration `json:"parsing_time"`
	ReconcileTime       time.Duration `json:"reconcile_time"`
	AggregateTime       time.Duration `json:"aggregate_time"`
	TotalProcessingTime time.Duration `json:"total_processing_time"`
}

// buildSummary derives the summary from the inputs and outputs of a run.
func buildSummary(book, ret []*models.TransactionRecord, rows []*models.ReconciledRow, aggregates []*models.PartyAggregate) *ResultSummary {
	summary := &ResultSummary{
		BookRecords:   len(book),
		ReturnRecords: len(ret),
		TotalRows:     len(rows),
		Parties:       len(aggregates),
	}

	counts := CountByStatus(rows)
	summary.Matched = counts[models.StatusMatched]
	summary.NotInReturn = counts[models.StatusNotInReturn]
	summary.NotInBooks = counts[models.StatusNotInBooks]

	for _, r := range book {
		summary.BookTotals = summary.BookTotals.Add(r.Taxes())
	}
	for _, r := range ret {
		summary.ReturnTotals = summary.ReturnTotals.Add(r.Taxes())
	}
	summary.NetDiff = summary.BookTotals.Sub(summary.ReturnTotals)

	for _, agg := range aggregates {
		if agg.HasDiscrepancy() {
			summary.DiscrepantParties++
		}
	}

	return summary
}
