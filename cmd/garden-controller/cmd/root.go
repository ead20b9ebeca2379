package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/garden-controller/internal/config"
	"github.com/oshokin/garden-controller/internal/service/supervisor"
	"github.com/oshokin/garden-controller/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command running the controller.
	rootCmd = &cobra.Command{
		Use:   "garden-controller",
		Short: "Run the garden controller.",
		Long: `Joins the configured wireless network with bounded retry, synchronizes the
wall clock once connected, and drives the pump and indicator outputs.

Loops start whatever the connection outcome was. The process runs until it
receives SIGINT or SIGTERM; the pump output is left low on exit.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &supervisor.Options{
				ConfigPath: configPath,
				LogLevel:   logLevel,
			}

			return supervisor.Run(ctx, options)
		},
	}
)

// Execute runs the garden-controller CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
}
