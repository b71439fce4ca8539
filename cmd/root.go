package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/feedtrack/internal/airtable"
	"github.com/Tiliavir/feedtrack/internal/cache"
	"github.com/Tiliavir/feedtrack/internal/config"
	"github.com/Tiliavir/feedtrack/internal/logging"
	"github.com/Tiliavir/feedtrack/internal/metrics"
	"github.com/Tiliavir/feedtrack/internal/preference"
	"github.com/Tiliavir/feedtrack/internal/tracker"
)

var (
	configPath string
	logLevel   string

	cfg config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "feedtrack",
	Short: "feedtrack – baby feeding log on top of an Airtable base",
	Long: `feedtrack reads and writes the "Feeding Tracker" table of an Airtable base.
It shows the rows grouped by day, the time since the last feeding and the
next feeding windows. Settings live in ~/.feedtrack/.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.feedtrack/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(lastCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(day1Cmd)
	rootCmd.AddCommand(watchCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	cfg = c
	log = logging.New(cfg.Log.Level, os.Stderr)
	return nil
}

// newTracker wires the Airtable client, cache and preference store. The
// client lives for the duration of ctx.
func newTracker(ctx context.Context, rec metrics.Recorder) (*tracker.Tracker, error) {
	if err := cfg.RequireAirtable(); err != nil {
		return nil, err
	}
	client := airtable.NewClient(ctx, airtable.Options{
		BaseURL:  cfg.Airtable.BaseURL,
		BaseID:   cfg.Airtable.BaseID,
		APIKey:   cfg.Airtable.APIKey,
		Table:    cfg.Airtable.Table,
		PageSize: cfg.Airtable.PageSize,
		Timeout:  cfg.Airtable.Timeout,
	}, log)

	rc, err := cache.New(cfg.Cache.SizeMB, cfg.Cache.TTL)
	if err != nil {
		return nil, err
	}

	return tracker.New(tracker.Deps{
		Source:      client,
		Preferences: preference.Open(cfg.Preferences.Path),
		Cache:       rc,
		Metrics:     rec,
		Log:         log,
	}), nil
}

// exitOn prints err and exits with code, following the convention of
// 1 for user errors and 2 for storage or source failures.
func exitOn(err error, code int) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(code)
}
