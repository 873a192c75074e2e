// Package cli implements the mci command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcigo/mci/internal/config"
	"github.com/mcigo/mci/internal/logger"
)

const version = "0.1.0"

var (
	cfgFile    string
	logLevel   string
	schemaPath string

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mci",
	Short: "MCI - declarative tool execution",
	Long: `MCI loads tool definitions from a JSON or YAML schema file and executes
them with runtime-supplied properties: HTTP requests, CLI commands, file
reads, and templated text.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mci/mci.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&schemaPath, "schema", "s", "", "tool schema file (default from config)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	rootCmd.PersistentPreRunE = setup
}

// setup loads the configuration and installs the global logger before any
// subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}

	_, err = logger.New(logger.Config{
		Level:     level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	return nil
}

// resolveSchemaPath returns the schema file to operate on: the --schema flag
// when given, the configured default otherwise.
func resolveSchemaPath() string {
	if schemaPath != "" {
		return schemaPath
	}
	return cfg.SchemaPath
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}
