package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile    string
	logLevel   string
	logFormat  string
	connection string
	strict     bool
)

var rootCmd = &cobra.Command{
	Use:   "gosti",
	Short: "Single-table inheritance toolkit",
	Long: `A CLI for inspecting and checking single-table inheritance hierarchies
stored in MySQL.

Features:
  - Type hierarchy declared in YAML, checked for a single root and cycles
  - Discriminator census against the registered types
  - Scoped scans that materialize each row as its concrete type
  - Fallback or strict handling of unknown discriminators`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "gosti.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Resolution overrides
	rootCmd.PersistentFlags().StringVar(&connection, "connection", "",
		"Override the default connection name")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false,
		"Fail on discriminators that do not resolve instead of falling back")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel   string
	LogFormat  string
	Connection string
	Strict     bool
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		Connection: connection,
		Strict:     strict,
	}
}
