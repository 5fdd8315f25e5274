package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/techbrief/config"
	core "github.com/mohammad-safakhou/techbrief/internal/agent/core"
	"github.com/mohammad-safakhou/techbrief/internal/agent/telemetry"
	"github.com/mohammad-safakhou/techbrief/internal/store"
	"github.com/mohammad-safakhou/techbrief/repository"
)

func compareCMD() *cobra.Command {
	var asJSON bool
	var save bool
	var timeout time.Duration

	var compare = &cobra.Command{
		Use:   "compare [query]",
		Short: "Run one comparison and print the brief",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath(cmd))
			logger, err := newLogger(cfg.General)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			defer startTracing(ctx, cfg.Telemetry, logger)()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			var opts []core.PipelineOption
			if save {
				backend, err := repository.Open(ctx, cfg.Storage, logger.Named("store"))
				if err != nil {
					return err
				}
				defer backend.Close()
				opts = append(opts, core.WithRecorder(store.Recorder{Store: backend.Store}))
			}
			// one-shot runs keep their metrics off the process-wide registry
			tele := telemetry.NewTelemetry(cfg.Telemetry, prometheus.NewRegistry())
			p, err := core.NewPipelineFromConfig(cfg, tele, logger, opts...)
			if err != nil {
				return err
			}

			res, err := p.RunComparison(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printResult(cmd, res, asJSON)
		},
	}
	compare.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	compare.Flags().BoolVar(&save, "save", false, "record the decision in the configured storage")
	compare.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline for the run")

	return compare
}

func printResult(cmd *cobra.Command, res core.ComparisonResult, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintln(out, res.Brief)
	if len(res.Degraded) > 0 {
		fmt.Fprintf(out, "\n(degraded: %s)\n", strings.Join(res.Degraded, ", "))
	}
	return nil
}
