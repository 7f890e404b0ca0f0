package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/holon-run/buildbridge/pkg/config"
	"github.com/holon-run/buildbridge/pkg/log"
)

var configPath string
var logLevel string
var logFormat string

var rootCmd = &cobra.Command{
	Use:   "buildbridge",
	Short: "buildbridge builds Unity projects for pull requests and publishes the artifacts.",
	Long: `buildbridge receives GitHub pull request webhooks, checks out the head
branch, builds every configured Unity target in batch mode, uploads the
artifacts to an S3-compatible store and reports the result to Discord and
GitHub.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: search for .buildbridge/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
}

// loadConfig loads .env, the config file and environment overrides, then
// initializes logging. CLI flags are applied by the individual commands.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.LoadFromCurrentDir()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	level, levelSource := cfg.ResolveLogLevel(logLevel, os.Getenv)
	format, _ := config.ResolveString(logFormat, os.Getenv(config.EnvLogFormat), cfg.LogFormat, "text")
	if err := log.Init(log.Options{Level: level, Format: format}); err != nil {
		return nil, err
	}
	log.Debug("log level resolved", "level", level, "source", levelSource)

	cfg.ApplyDefaults()
	return cfg, nil
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
