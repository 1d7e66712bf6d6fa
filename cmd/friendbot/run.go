package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"friendbot/pkg/bot"
	"friendbot/pkg/logger"
	"friendbot/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	runInterval time.Duration
	runDryRun   bool
	runWord     string
	runWorkers  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot until interrupted",
	Long: `Run every configured search once at startup and then on the configured
interval (10 minutes by default). New chapter threads are fetched, counted
and replied to. Stop with Ctrl+C; the current cycle is abandoned cleanly.`,
	Example: `  # Run with stored credentials
  friendbot run

  # Count and log replies without posting them
  friendbot run --dry-run --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runBot,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single discovery cycle and exit",
	Long: `Search every configured source once, handle any new chapter threads
and exit. Useful from cron or for checking a configuration.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)

	for _, c := range []*cobra.Command{runCmd, scanCmd} {
		c.Flags().BoolVar(&runDryRun, "dry-run", false, "count chapters but do not post replies")
		c.Flags().StringVar(&runWord, "word", "", "word to count (default \"friend\")")
		c.Flags().IntVar(&runWorkers, "workers", 0, "concurrent OCR requests per chapter")
	}
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "time between searches (default 10m)")
}

func newBot(cmd *cobra.Command) (*bot.Bot, error) {
	flags := map[string]interface{}{
		"dry-run":  runDryRun,
		"word":     runWord,
		"workers":  runWorkers,
		"interval": runInterval,
	}
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, err
	}
	if err := resolveCredentials(cfg); err != nil {
		return nil, err
	}
	return bot.New(cfg)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runBot(cmd *cobra.Command, args []string) error {
	b, err := newBot(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	ui.PrintLogo()
	ui.PrintInfo("Chapters recorded", strconv.Itoa(b.Chapters().Len()))
	for _, job := range b.Jobs() {
		ui.PrintInfo("Watching", "/r/"+job.Source+" for \""+job.Marker+"\"")
	}

	ctx, stop := signalContext()
	defer stop()

	if err := b.Run(ctx); err != nil {
		return err
	}
	logger.Info("friendbot stopped")
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	b, err := newBot(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signalContext()
	defer stop()

	before := b.Chapters().Len()
	err = b.RunOnce(ctx)
	if added := b.Chapters().Len() - before; added > 0 {
		ui.PrintSuccess("New chapters counted: " + strconv.Itoa(added))
	} else {
		ui.PrintInfo("New chapters counted", "0")
	}
	return err
}
