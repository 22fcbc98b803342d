// Package cli implements the topicbus command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/topicbus/internal/app"
)

// Version information (set via ldflags during build).
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Execute runs the Cobra-based CLI entry point.
func Execute() error {
	return newRootCmd().Execute()
}

// ExecuteContext runs the CLI with the given arguments and output streams.
func ExecuteContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topicbus",
		Short: "In-process topic-addressed publish/subscribe bus",
		Long:  "topicbus runs the event bus demo and reports delivery outcomes, metrics and traces.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", envOrDefault("TOPICBUS_CONFIG", ""), "path to a TOML or YAML config file")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDemoCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the topicbus version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "topicbus %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", Date)
		},
	}
}

func newDemoCmd() *cobra.Command {
	var async bool
	var serveMetrics string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Publish the orderCreated scenario and print each outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			logLevel, _ := cmd.Flags().GetString("log-level")

			application, err := app.New(app.Options{
				ConfigPath:  configPath,
				LogLevel:    logLevel,
				MetricsAddr: serveMetrics,
				Output:      cmd.OutOrStdout(),
				LogOutput:   cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := application.Shutdown(ctx); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: shutdown: %v\n", err)
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := application.RunDemo(ctx, app.DemoOptions{Async: async}); err != nil {
				return err
			}

			if serveMetrics == "" {
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "serving metrics on %s/metrics, press Ctrl+C to stop\n", serveMetrics)
			return application.ServeMetrics(ctx)
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "publish with PublishAsync instead of PublishSync")
	cmd.Flags().StringVar(&serveMetrics, "serve-metrics", "", "serve /metrics on this address after the demo until interrupted")
	return cmd
}

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
