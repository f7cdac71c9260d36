package cmd

import (
	"fmt"

	"github.com/TFMV/fim/internal/integrity"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// baselineCmd represents the baseline command
var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Record a baseline of every monitored file",
	Long: `Hash every file under the configured paths and write the result to
baseline_file, replacing any previous baseline.

Examples:
  fim --config fim.yaml baseline`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession("baseline")
		if err != nil {
			return err
		}
		defer s.close()

		builder := s.cfg.Builder()
		builder.Logger = s.logger

		records, stats, err := builder.BuildWithStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("build baseline: %w", err)
		}
		if err := integrity.Save(records, s.cfg.BaselineFile); err != nil {
			return err
		}

		s.logger.Info(fmt.Sprintf("Baseline saved to %s", s.cfg.BaselineFile),
			zap.Int("files", len(records)),
			zap.Int64("skipped", stats.FilesSkipped),
			zap.Duration("elapsed", stats.Elapsed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(baselineCmd)
}
