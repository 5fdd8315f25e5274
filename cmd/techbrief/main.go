package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/techbrief/config"
	"github.com/mohammad-safakhou/techbrief/internal/runtime"
)

var version = "dev"

func main() {
	if err := newRootCMD().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCMD() *cobra.Command {
	var root = &cobra.Command{
		Use:           "techbrief",
		Short:         "Decision briefs for \"A vs B\" technology questions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "config file (default is ./config/config.json)")

	root.AddCommand(serveCMD(), migrateCMD(), compareCMD())
	return root
}

// startTracing installs the OTLP exporter when configured. The returned
// func flushes it.
func startTracing(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) func() {
	tr, err := runtime.SetupTracing(ctx, cfg, runtime.TracingOptions{ServiceName: "techbrief", ServiceVersion: version})
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
		return func() {}
	}
	if tr.Enabled() {
		logger.Info("exporting traces", zap.String("endpoint", cfg.OTLPEndpoint))
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tr.Shutdown(shutdownCtx); err != nil {
			logger.Warn("flush traces", zap.Error(err))
		}
	}
}

func configPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	return p
}
