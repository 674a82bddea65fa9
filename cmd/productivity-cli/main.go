// Package main provides the productivity-cli entry point.
//
// The CLI prepares a screenshot, submits it to the tracking endpoint, polls
// the workflow until the three inference stages finish, and renders the
// resulting productivity report. It also exposes the individual steps
// (prepare, extract, status) for debugging a deployment, and re-renders
// saved reports (show).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/screen-productivity/internal/config"
	"github.com/fpang/screen-productivity/internal/logging"
)

// Persistent flags
var (
	configFlag string
	cfg        *config.Config
)

// rootCmd is the main Cobra command for the productivity CLI.
var rootCmd = &cobra.Command{
	Use:   "productivity-cli",
	Short: "Screenshot productivity analysis",
	Long: `productivity-cli turns a screenshot into a structured productivity report.

The screenshot is compressed under the workflow input limit, submitted to the
tracking endpoint, and analysed in three stages: visual analysis, activity
pattern, and productivity assessment.

Settings come from (lowest to highest precedence) built-in defaults,
config.yaml in the working directory or ~/.screen-productivity, PRODUCTIVITY_*
environment variables, and flags.

Examples:
  productivity-cli analyze --image screen.png
  productivity-cli analyze -i s3://captures/2026/10/19/screen.png -o report.md
  productivity-cli prepare -i screen.png --out payload.png
  productivity-cli extract response.txt
  productivity-cli status track-0b7c... --report
  productivity-cli show s3://reports/2026/10/19/report.json.zst`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", "", "Config file (default: ./config.yaml or ~/.screen-productivity/config.yaml)")
	pf.String("endpoint", "", "Tracking endpoint URL (POST target)")
	pf.String("status-source", config.StatusSourceHTTP, "Job status source: http or sfn")
	pf.String("state-machine", "", "State machine ARN, used to expand bare execution names")
	pf.String("region", "", "AWS region")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.Duration("poll-interval", 0, "Wait between status queries")
	pf.Int("max-attempts", 0, "Status queries before giving up")

	rootCmd.AddCommand(analyzeCmd, prepareCmd, extractCmd, statusCmd, showCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// loadConfig resolves settings for every subcommand. Only flags the user
// set override file and env values.
func loadConfig(cmd *cobra.Command, _ []string) error {
	logging.Init()

	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	loaded, err := config.Load(v, configFlag)
	if err != nil {
		return err
	}
	cfg = loaded

	if cfg.LogLevel != "" {
		logging.InitWithLevel(cfg.LogLevel, os.Stderr)
	}
	log.Debug().
		Str("endpoint", cfg.Endpoint).
		Str("statusSource", cfg.StatusSource).
		Dur("pollInterval", cfg.Poll.Interval).
		Int("maxAttempts", cfg.Poll.MaxAttempts).
		Msg("Configuration loaded")
	return nil
}
