package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"friendbot/pkg/auth"
	"friendbot/pkg/bot"
	"friendbot/pkg/logger"
	"friendbot/pkg/storage"
	"friendbot/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	countWord    string
	countWorkers int
	countTop     int
)

var countCmd = &cobra.Command{
	Use:   "count <dir>",
	Short: "OCR-count the target word in a local directory of pages",
	Long: `Run text detection over every image in a directory and count the target
word, without touching the chapter state or posting anything. Only the
Vision API key is needed.`,
	Example: `  friendbot count ./chapters/102
  friendbot count ./scans --word nakama --top 5`,
	Args: cobra.ExactArgs(1),
	RunE: runCount,
}

func init() {
	rootCmd.AddCommand(countCmd)
	countCmd.Flags().StringVar(&countWord, "word", "", "word to count (default \"friend\")")
	countCmd.Flags().IntVar(&countWorkers, "workers", 0, "concurrent OCR requests")
	countCmd.Flags().IntVar(&countTop, "top", 3, "number of top pages to list")
}

func runCount(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]interface{}{
		"word":    countWord,
		"workers": countWorkers,
	})
	if err != nil {
		return err
	}

	if cfg.Vision.APIKey == "" {
		if manager, err := auth.NewManager(); err == nil {
			if account, err := manager.RetrieveDefault(); err == nil {
				account.Apply(cfg)
			}
		}
	}
	if cfg.Vision.APIKey == "" {
		return errors.New("Vision API key is required, set FRIENDBOT_VISION_API_KEY or run 'friendbot auth login'")
	}

	pages, err := storage.NewManager(cfg.Storage.ChaptersRoot)
	if err != nil {
		return err
	}
	c := bot.NewCounter(cfg, pages, logger.GetLogger())

	ctx, stop := signalContext()
	defer stop()

	result, err := c.CountDir(ctx, args[0])
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("count interrupted")
		}
		return err
	}

	report := result.Report
	ui.PrintInfo("Pages", strconv.Itoa(len(report.Pages)))
	ui.PrintInfo("Duration", report.Duration().Round(time.Millisecond).String())
	ui.PrintSuccess(fmt.Sprintf("Times '%s' was said: %d", report.Word, result.Total))

	if top := report.TopPages(countTop); len(top) > 0 {
		rows := make([][]string, 0, len(top))
		for _, p := range top {
			rows = append(rows, []string{p.Name, strconv.Itoa(p.Count)})
		}
		ui.PrintTable([]string{"PAGE", "COUNT"}, rows)
	}
	if blank := report.PagesWithoutText(); len(blank) > 0 {
		ui.PrintWarning("Pages without text", fmt.Sprintf("%d (%v)", len(blank), blank))
	}
	return nil
}
