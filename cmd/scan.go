package cmd

import (
	"fmt"
	"os"

	"github.com/TFMV/fim/internal/integrity"
	"github.com/TFMV/fim/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// exitChanges is the exit code of scan --fail-on-change when changes exist.
const exitChanges = 3

var (
	// Scan command options
	scanOutput       string
	scanFormat       string
	scanFailOnChange bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Compare the monitored files against the baseline once",
	Long: `Build a fresh snapshot of the configured paths, compare it with the stored
baseline and report every created, deleted and modified file.

Examples:
  fim --config fim.yaml scan
  fim --config fim.yaml scan --output report.json --format json
  fim --config fim.yaml scan --fail-on-change`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(scanFormat)
		if err != nil {
			return err
		}

		s, err := newSession("scan")
		if err != nil {
			return err
		}
		defer s.close()

		baseline, err := integrity.Load(s.cfg.BaselineFile)
		if err != nil {
			return err
		}

		builder := s.cfg.Builder()
		builder.Logger = s.logger
		current, stats, err := builder.BuildWithStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}

		changes := integrity.Diff(baseline, current)
		report.All(&report.LogReporter{Logger: s.logger}, changes)
		s.logger.Info(fmt.Sprintf("Scan complete. %d change(s) detected.", len(changes)),
			zap.Int("files", len(current)),
			zap.Int64("skipped", stats.FilesSkipped))

		if scanOutput != "" {
			summary := report.NewSummary(s.cfg.BaselineFile, s.cfg.Paths, s.cfg.Algorithm(), stats, changes)
			if scanOutput == "-" {
				err = report.Write(os.Stdout, format, summary)
			} else {
				err = report.WriteFile(scanOutput, format, summary)
			}
			if err != nil {
				return err
			}
		}

		if scanFailOnChange && len(changes) > 0 {
			return &ExitError{Code: exitChanges, Err: fmt.Errorf("%d change(s) detected", len(changes))}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "Write a scan report to this file (\"-\" for stdout)")
	scanCmd.Flags().StringVar(&scanFormat, "format", "text", "Report format (text|json|yaml)")
	scanCmd.Flags().BoolVar(&scanFailOnChange, "fail-on-change", false, "Exit with status 3 when changes are detected")
}
