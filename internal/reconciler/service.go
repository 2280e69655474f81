package reconciler

import (
	"context"
	"strings"
	"sync"
	"time"

	"gst-reconciliation-service/internal/matcher"
	"gst-reconciliation-service/internal/models"
	"gst-reconciliation-service/internal/parsers"
	"gst-reconciliation-service/pkg/errors"
	"gst-reconciliation-service/pkg/logger"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
)

// ReconciliationService reads both registers, reconciles them and compares
// the per-party totals.
type ReconciliationService struct {
	parser      *parsers.RegisterParser
	nameMatcher *matcher.NameMatcher
	config      *Config
	logger      logger.Logger
	mu          sync.RWMutex
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(parserConfig *parsers.RegisterParserConfig, config *Config) (*ReconciliationService, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "match_threshold", config.MatchThreshold, err)
	}

	parser, err := parsers.NewRegisterParser(parserConfig)
	if err != nil {
		return nil, err
	}

	nameMatcher, err := matcher.NewNameMatcher(config.MatchingConfig())
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "match_threshold", config.MatchThreshold, err)
	}

	return &ReconciliationService{
		parser:      parser,
		nameMatcher: nameMatcher,
		config:      config,
		logger:      logger.WithComponent("reconciler"),
	}, nil
}

// ProcessReconciliation performs the complete reconciliation process
func (rs *ReconciliationService) ProcessReconciliation(ctx context.Context, request *ReconciliationRequest) (*ReconciliationResult, error) {
	if request == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "request", nil, nil)
	}
	if err := request.Validate(); err != nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "request", request, err).
			WithSuggestion("provide both --book-file and --return-file")
	}

	op := logger.NewOperationLogger("reconciliation", rs.logger).
		WithField("book_file", request.BookFile).
		WithField("return_file", request.ReturnFile)

	startTime := time.Now()
	stats := &ProcessingStats{}

	op.Step("parsing registers")
	book, ret, err := rs.parseRegisters(ctx, request, stats)
	if err != nil {
		op.Error(err, "Failed to parse registers")
		return nil, err
	}
	stats.ParsingTime = time.Since(startTime)

	result, err := rs.reconcile(ctx, book, ret, stats, op)
	if err != nil {
		op.Error(err, "Reconciliation failed")
		return nil, err
	}

	result.Request = request
	result.ProcessedAt = startTime
	stats.TotalProcessingTime = time.Since(startTime)
	result.Summary.ProcessingDuration = stats.TotalProcessingTime
	if seconds := stats.TotalProcessingTime.Seconds(); seconds > 0 {
		stats.RecordsPerSecond = float64(len(book)+len(ret)) / seconds
	}

	op.WithField("matched", result.Summary.Matched).
		WithField("not_in_gstr2a", result.Summary.NotInReturn).
		WithField("not_in_books", result.Summary.NotInBooks).
		WithField("discrepant_parties", result.Summary.DiscrepantParties).
		Success("Reconciliation completed")

	return result, nil
}

// ReconcileRecords reconciles registers that are already in memory.
func (rs *ReconciliationService) ReconcileRecords(ctx context.Context, book, ret []*models.TransactionRecord) (*ReconciliationResult, error) {
	op := logger.NewOperationLogger("reconcile_records", rs.logger)
	startTime := time.Now()
	stats := &ProcessingStats{}

	result, err := rs.reconcile(ctx, book, ret, stats, op)
	if err != nil {
		op.Error(err, "Reconciliation failed")
		return nil, err
	}

	result.ProcessedAt = startTime
	stats.TotalProcessingTime = time.Since(startTime)
	result.Summary.ProcessingDuration = stats.TotalProcessingTime
	op.Success("Reconciliation completed")
	return result, nil
}

func (rs *ReconciliationService) reconcile(
	ctx context.Context,
	book, ret []*models.TransactionRecord,
	stats *ProcessingStats,
	op *logger.OperationLogger,
) (*ReconciliationResult, error) {
	rs.mu.RLock()
	config := rs.config
	nameMatcher := rs.nameMatcher
	rs.mu.RUnlock()

	if config.ValidateInputs {
		var dropped int
		book, dropped = filterValid(book)
		stats.ValidationErrors += dropped
		ret, dropped = filterValid(ret)
		stats.ValidationErrors += dropped
		if stats.ValidationErrors > 0 {
			rs.logger.WithField("dropped", stats.ValidationErrors).Warn("Dropped invalid records")
		}
	}

	result := &ReconciliationResult{ProcessingStats: stats}

	if err := checkCancelled(ctx, "reconciliation"); err != nil {
		return nil, err
	}

	op.Step("classifying transactions")
	reconcileStart := time.Now()
	rows, err := Reconcile(book, ret)
	if err != nil && !errors.IsCode(err, errors.CodeEmptyInput) {
		return nil, err
	}
	if err != nil {
		op.Warning(err, "Both registers are empty")
		result.Warnings = append(result.Warnings, err.Error())
	}
	stats.ReconcileTime = time.Since(reconcileStart)

	if err := checkCancelled(ctx, "reconciliation"); err != nil {
		return nil, err
	}

	op.Step("aggregating party totals")
	aggregateStart := time.Now()
	aggregates, err := Aggregate(book, ret, nameMatcher)
	if err != nil && !errors.IsCode(err, errors.CodeEmptyInput) {
		return nil, err
	}
	stats.AggregateTime = time.Since(aggregateStart)

	result.Summary = buildSummary(book, ret, rows, aggregates)
	result.PartyAggregates = aggregates
	if config.IncludeRows {
		result.Rows = rows
	} else {
		result.Rows = []*models.ReconciledRow{}
	}

	return result, nil
}

// parseRegisters reads both files concurrently.
func (rs *ReconciliationService) parseRegisters(
	ctx context.Context,
	request *ReconciliationRequest,
	stats *ProcessingStats,
) (book, ret []*models.TransactionRecord, err error) {
	type parseResult struct {
		records []*models.TransactionRecord
		stats   *parsers.ParseStats
		err     error
	}

	var wg conc.WaitGroup
	results := make([]parseResult, 2)
	files := []string{request.BookFile, request.ReturnFile}

	for i, path := range files {
		i, path := i, path
		wg.Go(func() {
			records, parseStats, err := rs.parser.ParseRegister(ctx, path)
			results[i] = parseResult{records: records, stats: parseStats, err: err}
		})
	}
	wg.Wait()

	if err := multierr.Combine(results[0].err, results[1].err); err != nil {
		return nil, nil, err
	}
	if err := checkCancelled(ctx, "parsing"); err != nil {
		return nil, nil, err
	}

	stats.BookParseStats = results[0].stats
	stats.ReturnParseStats = results[1].stats
	stats.ParseErrors = results[0].stats.ErrorCount + results[1].stats.ErrorCount

	return results[0].records, results[1].records, nil
}

// filterValid drops records that fail validation. Records missing the fields
// the join needs are kept so that Reconcile reports them as schema errors.
func filterValid(records []*models.TransactionRecord) ([]*models.TransactionRecord, int) {
	valid := make([]*models.TransactionRecord, 0, len(records))
	for _, r := range records {
		if r != nil && strings.TrimSpace(r.InvoiceNumber) != "" && r.Validate() != nil {
			continue
		}
		valid = append(valid, r)
	}
	return valid, len(records) - len(valid)
}

func checkCancelled(ctx context.Context, operation string) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.InternalError(errors.CodeCancelled, operation, err)
	}
	return nil
}

// UpdateConfiguration updates the service configuration
func (rs *ReconciliationService) UpdateConfiguration(config *Config) error {
	if config == nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "reconciler", nil, nil)
	}
	if err := config.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "match_threshold", config.MatchThreshold, err)
	}

	nameMatcher, err := matcher.NewNameMatcher(config.MatchingConfig())
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "match_threshold", config.MatchThreshold, err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.config = config
	rs.nameMatcher = nameMatcher
	return nil
}

// GetConfiguration returns the current configuration
func (rs *ReconciliationService) GetConfiguration() *Config {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.config
}
