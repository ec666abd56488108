package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/equitytrack/config"
	"github.com/rustyeddy/equitytrack/logging"
)

var rootCmd = &cobra.Command{
	Use:   "equitytrack",
	Short: "Track account equity and high-water marks in a ledger",
	Long: `Equitytrack snapshots the equity of trading accounts into a durable,
human-readable ledger.

Every tick it reads the live accounts from the configured sources, appends
accounts it has never seen and updates the current equity and high-water
mark of the ones it already tracks.

The ledger is a CSV file by default:

  No,AccountName,AccountNumber,InitialBalance,CurrentEquity,MaxEquity

Destinations ending in .db, .sqlite or .sqlite3 are stored in SQLite.`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

// setup loads the configuration and builds the logger every command uses.
// The caller closes the logger.
func setup() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
