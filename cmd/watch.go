package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/TFMV/fim/internal/integrity"
	"github.com/TFMV/fim/internal/report"
	"github.com/TFMV/fim/internal/watch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Watch command options
	watchMode string
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor the configured paths continuously",
	Long: `Report changes against the baseline until interrupted, using periodic full
scans, filesystem notifications, or both.

Examples:
  fim --config fim.yaml watch
  fim --config fim.yaml watch --mode polling
  fim --config fim.yaml watch --mode realtime`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := watch.ParseMode(watchMode)
		if err != nil {
			return err
		}

		s, err := newSession("watch")
		if err != nil {
			return err
		}
		defer s.close()

		baseline, err := integrity.Load(s.cfg.BaselineFile)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		builder := s.cfg.Builder()
		builder.Logger = s.logger

		sup := &watch.Supervisor{
			Baseline: baseline,
			Builder:  builder,
			Classifier: &integrity.Classifier{
				Baseline:  baseline,
				Algorithm: s.cfg.Algorithm(),
				Logger:    s.logger,
			},
			Matcher:        s.cfg.Matcher(),
			FollowSymlinks: s.cfg.FollowSymlinks,
			Interval:       s.cfg.ScanInterval(),
			Debounce:       s.cfg.EventDebounce(),
			Logger:         s.logger,
		}
		reporters := report.Multi{&report.LogReporter{Logger: s.logger}}

		var wg sync.WaitGroup
		if s.cfg.MetricsAddr != "" {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			metrics := report.NewMetrics(reg)
			reporters = append(reporters, metrics)
			sup.OnScan = metrics.ObserveScan

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := report.Serve(ctx, s.cfg.MetricsAddr, reg, s.logger); err != nil {
					s.logger.Error("metrics server failed", zap.Error(err))
				}
			}()
		}
		sup.Reporter = reporters

		if mode != watch.ModePolling {
			source, err := watch.NewFSNotifySource(s.logger)
			if err != nil {
				stop()
				wg.Wait()
				return err
			}
			sup.Source = source
		}

		if mode == watch.ModePolling {
			s.logger.Info("Polling active. Press Ctrl+C to stop.")
		}
		err = sup.Run(ctx, mode)
		stop()
		wg.Wait()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchMode, "mode", string(watch.ModeBoth), "Detection mode (polling|realtime|both)")
}
