package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TFMV/fim/internal/config"
	"github.com/TFMV/fim/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	logLevel string
	version  = "0.1.0"
)

// ExitError carries a process exit code other than 1 out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fim",
	Short: "File integrity monitor",
	Long: `fim records a baseline of file hashes for a set of directories and reports
files that were created, deleted, modified or moved since, either on demand
(scan) or continuously (watch).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext is Execute with a parent context for every command.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to the configuration file (JSON, YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log_level (error|warn|info|debug)")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig lets FIM_CONFIG and FIM_LOG_LEVEL stand in for the flags.
func initConfig() {
	viper.SetEnvPrefix("FIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// session is the state shared by every subcommand.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
}

// newSession loads the configuration and builds the command's logger.
func newSession(command string) (*session, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}

	levelName := cfg.LogLevel
	if override := viper.GetString("log-level"); override != "" {
		levelName = override
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, &config.Error{Key: "log_level", Reason: "unsupported value", Err: err}
	}

	logger, err := logging.New(logging.Options{Level: level, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logging.WithRun(logger, command)}, nil
}

func (s *session) close() {
	_ = s.logger.Sync()
}
