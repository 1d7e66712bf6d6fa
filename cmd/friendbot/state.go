package main

import (
	"fmt"
	"strconv"

	"friendbot/pkg/logger"
	"friendbot/pkg/replylog"
	"friendbot/pkg/reporter"
	"friendbot/pkg/state"
	"friendbot/pkg/ui"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect the recorded chapter counts",
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded chapters and their counts",
	Args:  cobra.NoArgs,
	RunE:  runStateList,
}

var statePreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the reply the bot would post right now",
	Args:  cobra.NoArgs,
	RunE:  runStatePreview,
}

var stateRepliesCmd = &cobra.Command{
	Use:   "replies",
	Short: "List threads the bot has replied to",
	Args:  cobra.NoArgs,
	RunE:  runStateReplies,
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(statePreviewCmd)
	stateCmd.AddCommand(stateRepliesCmd)
}

func loadChapters(cmd *cobra.Command) (*state.Chapters, string, error) {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, "", err
	}
	chapters, err := state.NewStore(cfg.Storage.StateFile, logger.GetLogger()).Load()
	if err != nil {
		return nil, "", err
	}
	return chapters, cfg.Storage.StateFile, nil
}

func runStateList(cmd *cobra.Command, args []string) error {
	chapters, path, err := loadChapters(cmd)
	if err != nil {
		return err
	}

	ui.PrintInfo("State file", path)
	if chapters.Len() == 0 {
		ui.PrintWarning("No chapters recorded yet")
		return nil
	}

	records := chapters.Records()
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{strconv.Itoa(r.Chapter), strconv.Itoa(r.Count)})
	}
	ui.PrintTable([]string{"CHAPTER", "COUNT"}, rows)
	ui.PrintInfo("Total", fmt.Sprintf("%d in %d chapters (average %s)",
		chapters.Total(), chapters.Len(), reporter.FormatAverage(chapters.Total(), chapters.Len())))
	return nil
}

func runStatePreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	chapters, err := state.NewStore(cfg.Storage.StateFile, logger.GetLogger()).Load()
	if err != nil {
		return err
	}

	text := reporter.Compose(chapters.Records(), cfg.Counter.Word,
		reporter.Footer(cfg.Reply.SourceURL, cfg.Reply.MessageURL))
	ui.PrintPlain(text)
	return nil
}

func runStateReplies(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	path := cfg.Storage.ReplyLog
	if path == "" {
		if path, err = replylog.DefaultPath(); err != nil {
			return err
		}
	}
	replies, err := replylog.Open(path, logger.GetLogger())
	if err != nil {
		return err
	}
	defer replies.Close()

	entries, err := replies.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ui.PrintWarning("No replies recorded yet")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.RepliedAt.Local().Format("2006-01-02 15:04"), strconv.Itoa(e.Chapter), e.Submission})
	}
	ui.PrintTable([]string{"REPLIED", "CHAPTER", "THREAD"}, rows)
	return nil
}
