package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"gst-reconciliation-service/cmd/reconciler/config"
	"gst-reconciliation-service/internal/parsers"
	"gst-reconciliation-service/internal/reconciler"
	"gst-reconciliation-service/internal/reporter"
	"gst-reconciliation-service/pkg/errors"
	"gst-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	bookFile          string
	returnFile        string
	outputFormat      string
	outputFile        string
	threshold         int
	strictMode        bool
	dateFormats       []string
	delimiter         string
	maxErrors         int
	onlyDiscrepancies bool
	summaryOnly       bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile the purchase register with GSTR2A",
	Long: `Reconcile joins the purchase register and the GSTR2A return on invoice
number, tax rate, taxable amount and the three tax heads, then compares the
per-party totals of both sides.

This command requires:
- A purchase register file (CSV format)
- A GSTR2A file (CSV format)

Both files need the columns Invoice_Number, Tax_Rate, Taxable_Amount, CGST,
SGST, IGST and Party_Name. GSTIN and Invoice_Date are optional.

Examples:
  # Basic reconciliation printed to the terminal
  reconciler reconcile --book-file purchase.csv --return-file gstr2a.csv

  # Workbook with the reconciliation and pivot sheets
  reconciler reconcile -b purchase.csv -r gstr2a.csv \
    --output-format xlsx --output-file reconciliation.xlsx

  # Stricter party name matching, only show differences
  reconciler reconcile -b purchase.csv -r gstr2a.csv --threshold 90 --only-discrepancies

  # Registers exported with US style dates and semicolons
  reconciler reconcile -b purchase.csv -r gstr2a.csv --date-format 01/02/2006 --delimiter ';'`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Input flags
	reconcileCmd.Flags().StringVarP(&bookFile, "book-file", "b", "", "path to the purchase register CSV file (required)")
	reconcileCmd.Flags().StringVarP(&returnFile, "return-file", "r", "", "path to the GSTR2A CSV file (required)")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv, xlsx")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().BoolVar(&onlyDiscrepancies, "only-discrepancies", false, "omit matched invoices and parties without differences")
	reconcileCmd.Flags().BoolVar(&summaryOnly, "summary-only", false, "omit the reconciliation table and keep the pivot summary")

	// Matching flags
	reconcileCmd.Flags().IntVarP(&threshold, "threshold", "t", reconciler.DefaultConfig().MatchThreshold, "party name similarity required to merge names (0-100)")

	// Parsing flags
	reconcileCmd.Flags().BoolVar(&strictMode, "strict", false, "fail on the first malformed row instead of skipping it")
	reconcileCmd.Flags().StringSliceVar(&dateFormats, "date-format", []string{}, "additional Go time layouts for Invoice_Date, tried first")
	reconcileCmd.Flags().StringVar(&delimiter, "delimiter", ",", `CSV field delimiter (use \t for tab)`)
	reconcileCmd.Flags().IntVar(&maxErrors, "max-errors", parsers.DefaultRegisterParserConfig().MaxErrors, "malformed rows tolerated per file before giving up (0 = unlimited)")

	bindReconcileFlags()
}

// bindReconcileFlags binds the reconcile flags to viper
func bindReconcileFlags() {
	for _, name := range []string{
		"book-file", "return-file", "output-format", "output-file",
		"only-discrepancies", "summary-only", "threshold", "strict",
		"date-format", "delimiter", "max-errors",
	} {
		viper.BindPFlag(name, reconcileCmd.Flags().Lookup(name))
	}
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file and environment)
	bookFile = viper.GetString("book-file")
	returnFile = viper.GetString("return-file")
	outputFormat = strings.ToLower(viper.GetString("output-format"))
	outputFile = viper.GetString("output-file")
	onlyDiscrepancies = viper.GetBool("only-discrepancies")
	summaryOnly = viper.GetBool("summary-only")
	threshold = viper.GetInt("threshold")
	strictMode = viper.GetBool("strict")
	dateFormats = viper.GetStringSlice("date-format")
	delimiter = viper.GetString("delimiter")
	maxErrors = viper.GetInt("max-errors")

	// Validate required flags
	if bookFile == "" {
		return errors.ValidationError(errors.CodeMissingField, "book-file", nil, fmt.Errorf("book-file is required")).
			WithSuggestion("pass the purchase register with --book-file")
	}
	if returnFile == "" {
		return errors.ValidationError(errors.CodeMissingField, "return-file", nil, fmt.Errorf("return-file is required")).
			WithSuggestion("pass the GSTR2A export with --return-file")
	}

	if err := validateFileExists(bookFile, "purchase register"); err != nil {
		return err
	}
	if err := validateFileExists(returnFile, "GSTR2A file"); err != nil {
		return err
	}

	format := reporter.OutputFormat(outputFormat)
	if !format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", outputFormat,
			fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv, xlsx", outputFormat))
	}
	if format.IsBinary() && outputFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "output-file", nil,
			fmt.Errorf("%s output requires --output-file", format))
	}

	if threshold < 0 || threshold > 100 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "threshold", threshold,
			fmt.Errorf("threshold must be between 0 and 100"))
	}
	if maxErrors < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "max-errors", maxErrors,
			fmt.Errorf("max-errors cannot be negative"))
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return errors.FileError(errors.CodeDirectoryError, dir, fmt.Errorf("output directory does not exist: %s", dir))
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ValidationError(errors.CodeMissingField, description, nil,
			fmt.Errorf("%s path cannot be empty", description))
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err).
			WithContext("file", description)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err).
			WithContext("file", description)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeDirectoryError, filePath,
			fmt.Errorf("%s is a directory, expected a file: %s", description, filePath))
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err).
			WithContext("file", description)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.WithComponent("cli")
	log.WithFields(logger.Fields{
		"book_file":     bookFile,
		"return_file":   returnFile,
		"output_format": outputFormat,
		"output_file":   outputFile,
		"threshold":     threshold,
	}).Info("Starting reconciliation")

	// Create configurations
	parserConfig, err := config.CreateRegisterParserConfig(delimiter, dateFormats, strictMode, maxErrors)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "parser", delimiter, err)
	}
	reconcilerConfig := config.CreateReconcilerConfig(threshold, !summaryOnly)
	reportConfig, err := config.CreateReportConfig(outputFormat, onlyDiscrepancies, !summaryOnly)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", outputFormat, err)
	}
	if err := config.ValidateConfig(parserConfig, reconcilerConfig, reportConfig); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "reconcile", nil, err)
	}

	service, err := reconciler.NewReconciliationService(parserConfig, reconcilerConfig)
	if err != nil {
		return err
	}

	request := &reconciler.ReconciliationRequest{
		BookFile:   bookFile,
		ReturnFile: returnFile,
	}

	result, err := service.ProcessReconciliation(ctx, request)
	if err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		printParseProblems(cmd, "purchase register", result.ProcessingStats.BookParseStats)
		printParseProblems(cmd, "GSTR2A", result.ProcessingStats.ReturnParseStats)
	}

	generator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	if outputFile != "" {
		written, err := generator.WriteReportFile(result, outputFile)
		if err != nil {
			return err
		}
		if written != outputFile {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not write %s, report saved to %s\n", outputFile, written)
		}
	} else if err := generator.GenerateReportSafely(result, cmd.OutOrStdout()); err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		summary := result.Summary
		fmt.Fprintf(cmd.ErrOrStderr(), "\nReconciliation completed successfully.\n")
		fmt.Fprintf(cmd.ErrOrStderr(), "Processed %d purchase register and %d GSTR2A records.\n",
			summary.BookRecords, summary.ReturnRecords)
		fmt.Fprintf(cmd.ErrOrStderr(), "Found %d matched, %d not in GSTR2A, %d not in books.\n",
			summary.Matched, summary.NotInReturn, summary.NotInBooks)
		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d parties have differences.\n",
			summary.DiscrepantParties, summary.Parties)
		fmt.Fprintf(cmd.ErrOrStderr(), "Processing time: %v\n", summary.ProcessingDuration)
	}

	return nil
}

func printParseProblems(cmd *cobra.Command, label string, stats *parsers.ParseStats) {
	if stats == nil || !stats.HasErrors() {
		return
	}

	errs := make([]error, 0, len(stats.Errors))
	for _, e := range stats.Errors {
		errs = append(errs, e)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Skipped rows in %s:\n%s\n", label, FormatValidationErrors(errs))
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
