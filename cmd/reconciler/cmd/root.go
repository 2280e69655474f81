package cmd

import (
	"fmt"
	"strings"

	"gst-reconciliation-service/cmd/reconciler/config"
	"gst-reconciliation-service/pkg/errors"
	"gst-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	envFile   string
	verbose   bool
	logLevel  string
	logFormat string
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "GST purchase reconciliation tool",
	Long: `Reconciler compares a purchase register (books) with the GSTR2A return
downloaded from the GST portal. Every invoice is classified as Matched,
Not in GSTR2A or Not in Books, and per-party tax totals from both sides are
compared after fuzzy matching of party names.

Examples:
  reconciler reconcile --book-file purchase.csv --return-file gstr2a.csv
  reconciler reconcile -b purchase.csv -r gstr2a.csv --output-format xlsx --output-file recon.xlsx
  reconciler version`,
	Version:           getVersionString(),
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "file with RECONCILER_* variables (default .env when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")

	bindRootFlags()
}

// bindRootFlags binds the global flags to viper
func bindRootFlags() {
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if err := config.LoadEnvFile(envFile); err != nil {
		initErr = errors.ConfigurationError(errors.CodeInvalidConfig, "env-file", envFile, err)
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			initErr = errors.ConfigurationError(errors.CodeInvalidConfig, "config", cfgFile, err).
				WithSuggestion("check the config file path and syntax")
			return
		}
	}

	// RECONCILER_BOOK_FILE maps to book-file
	viper.SetEnvPrefix("RECONCILER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// initErr carries a failure from initConfig, which cannot return one.
var initErr error

// setupLogging installs the global logger once configuration is loaded.
func setupLogging(cmd *cobra.Command, args []string) error {
	if initErr != nil {
		err := initErr
		initErr = nil
		return err
	}

	logConfig := config.CreateLoggerConfig(
		viper.GetString("log-level"),
		viper.GetString("log-format"),
		viper.GetBool("verbose"),
	)

	log, err := logger.NewLoggerWithWriter(logConfig, cmd.ErrOrStderr())
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log-level", logConfig.Level, err)
	}
	logger.SetGlobalLogger(log)

	if cfgFile != "" {
		log.WithField("config_file", viper.ConfigFileUsed()).Info("Using config file")
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "reconciler %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
