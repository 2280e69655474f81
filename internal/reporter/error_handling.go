package reporter

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"gst-reconciliation-service/internal/reconciler"
	"gst-reconciliation-service/pkg/errors"
	"gst-reconciliation-service/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with output checks and a backup
// location for reports that cannot be written where requested.
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger

	// backupDir receives the report when the requested path is unwritable.
	backupDir string
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		if rerr, ok := errors.AsReconcilerError(err); ok {
			return nil, rerr.WithSuggestion("Check the report configuration values")
		}
		return nil, err
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
		backupDir:       os.TempDir(),
	}, nil
}

// GenerateReportSafely writes the report to writer. Binary formats are refused
// when writer is a terminal stream.
func (srg *SafeReportGenerator) GenerateReportSafely(result *reconciler.ReconciliationResult, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Info("Starting report generation")

	if err := srg.validateInputs(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	if err := srg.GenerateReport(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed")
		return srg.wrapGenerationError(err)
	}

	srg.logger.Info("Report generation completed successfully")
	return nil
}

// WriteReportFile writes the report to path through a temporary file in the
// same directory, so path never holds a partial report. If the directory is
// not writable the report goes to a backup file instead. The path actually
// written is returned.
func (srg *SafeReportGenerator) WriteReportFile(result *reconciler.ReconciliationResult, path string) (string, error) {
	if err := srg.validateInputs(result, io.Discard); err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", errors.ValidationError(errors.CodeMissingField, "output_file", path, nil)
	}

	err := srg.writeAtomically(result, path)
	if err == nil {
		srg.logger.WithField("output_file", path).Info("Report written")
		return path, nil
	}
	if !isFileError(err) {
		return "", srg.wrapGenerationError(err)
	}

	backupPath := srg.generateBackupPath(path)
	srg.logger.WithError(err).WithFields(logger.Fields{
		"original_file": path,
		"backup_file":   backupPath,
	}).Warn("Attempting output fallback")

	if backupErr := srg.writeAtomically(result, backupPath); backupErr != nil {
		return "", errors.FileError(errors.CodeWriteFailed, path,
			fmt.Errorf("both primary and backup output failed: primary=%v, backup=%v", err, backupErr))
	}

	srg.logger.WithField("backup_file", backupPath).Warn("Report saved to backup location")
	return backupPath, nil
}

func (srg *SafeReportGenerator) writeAtomically(result *reconciler.ReconciliationResult, path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := srg.GenerateReport(result, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// validateInputs validates the inputs for report generation
func (srg *SafeReportGenerator) validateInputs(result *reconciler.ReconciliationResult, writer io.Writer) error {
	if result == nil || result.Summary == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"result",
			nil,
			nil,
		).WithSuggestion("Provide a valid reconciliation result")
	}

	if writer == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"writer",
			nil,
			nil,
		).WithSuggestion("Provide a valid output writer")
	}

	if srg.config.Format.IsBinary() && isTerminal(writer) {
		return errors.ValidationError(
			errors.CodeInvalidFormat,
			"output_file",
			getWriterDescription(writer),
			fmt.Errorf("%s output cannot be written to a terminal", srg.config.Format),
		).WithSuggestion("Use --output-file to save the workbook")
	}

	return nil
}

// generateBackupPath creates a backup file path
func (srg *SafeReportGenerator) generateBackupPath(originalPath string) string {
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	return filepath.Join(srg.backupDir, fmt.Sprintf("%s_backup%s", name, ext))
}

// wrapGenerationError wraps generation errors with context
func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return errors.InternalError(
		errors.CodeProcessingError,
		"report_generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

func isFileError(err error) bool {
	for _, target := range []error{fs.ErrPermission, fs.ErrNotExist, fs.ErrExist, syscall.ENOSPC, syscall.EROFS} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}
