// Command allocbench measures the throughput of the cspace state allocator.
//
// It reproduces four workloads against a single space shared by all workers:
// whole rounds allocated then freed, allocations freed immediately, the two
// interleaved, and a randomized slot stress. Flags may also be given as
// ALLOCBENCH_* environment variables or in allocbench.yaml.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/cspace"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "allocbench",
		Short: "Benchmark the cspace state allocator",
		Long: `allocbench allocates and frees states of a configuration-space manifold
from many goroutines at once and reports the achieved throughput together with
the allocator counters.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cmd.OutOrStdout())
		},
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./allocbench.yaml)")
	registerFlags(cmd)
	return cmd
}

func newLogger(cfg config) *cspace.Logger {
	if cfg.LogFormat == "json" {
		return cspace.NewJSONLogger(cfg.LogLevel)
	}
	return cspace.NewTextLogger(cfg.LogLevel)
}

func run(ctx context.Context, cfg config, out io.Writer) error {
	logger := newLogger(cfg)

	tel, err := newTelemetry()
	if err != nil {
		return err
	}

	m, err := newManifold(cfg)
	if err != nil {
		return err
	}
	sp := cspace.NewSpace(m, spaceOptions(cfg, logger, tel.recorder)...)
	if err := sp.Setup(); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer sp.Close()

	if err := tel.watch(sp); err != nil {
		return fmt.Errorf("register collector: %w", err)
	}
	if cfg.MetricsAddr != "" {
		if err := tel.serve(cfg.MetricsAddr, logger); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tel.shutdown(shutdownCtx)
		}()
	}

	res, err := newBench(cfg, sp).run(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.Mode, err)
	}
	report(out, cfg, res)

	if cfg.MetricsAddr != "" && cfg.Linger > 0 {
		logger.Info("lingering for scrapes", "duration", cfg.Linger)
		select {
		case <-time.After(cfg.Linger):
		case <-ctx.Done():
		}
	}
	return nil
}

func report(w io.Writer, cfg config, res result) {
	st := res.Stats
	fmt.Fprintf(w, "manifold:     %s (%d floats per state)\n", cfg.Manifold, st.StateSize)
	fmt.Fprintf(w, "mode:         %s, %d goroutines, %d shards\n", res.Mode, cfg.Goroutines, st.Shards)
	fmt.Fprintf(w, "operations:   %d in %s (%.0f ops/s)\n", res.Ops, res.Elapsed.Round(time.Millisecond), res.OpsPerSecond())
	if res.Refused > 0 {
		fmt.Fprintf(w, "refused:      %d allocations (memory budget)\n", res.Refused)
	}
	fmt.Fprintf(w, "allocator:    %d allocs, %d frees, %d live, %d idle\n", st.Allocs, st.Frees, st.Live, st.Idle)
	fmt.Fprintf(w, "refills:      %d carved (%d payloads), %d stolen\n", st.Refills, st.FreshAllocs, st.Steals)
	fmt.Fprintf(w, "arena:        %d chunks, %d bytes reserved, %d bytes used (%.1f%%)\n", st.Chunks, st.BytesReserved, st.BytesUsed, st.ArenaUsage)
	if st.BudgetLimit > 0 {
		fmt.Fprintf(w, "budget:       %d of %d bytes, peak %d, %d denied\n", st.BudgetUsed, st.BudgetLimit, st.BudgetPeak, st.BudgetDenied)
	}
}
