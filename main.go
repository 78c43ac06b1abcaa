package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"markestedt/macroflow/config"
	"markestedt/macroflow/logging"
)

var (
	logLevel   string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:           "macroflow",
	Short:         "Record-free desktop macro player",
	Long:          "macroflow plays back lists of mouse, keyboard, clipboard and folder steps.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: error, warn, info, debug (overrides config)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
}

// bootstrap loads the configuration and installs the logger
func bootstrap() (*config.Config, *logging.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFrom(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}

	logger, err := logging.Setup(level, cfg.Logging.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	logger.Debug("Configuration loaded", "path", cfg.Path())
	return cfg, logger, nil
}

func main() {
	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
