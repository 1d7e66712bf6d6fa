package main

import (
	"fmt"
	"os"

	"friendbot/pkg/config"
	"friendbot/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage friendbot configuration files.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (FRIENDBOT_*)
  - .env files
  - Configuration file
  - Default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write every option with its default value. The file is created as
'.friendbot.yaml' in the current directory unless --config is given.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after all sources are merged. Secrets are masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".friendbot.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	ui.PrintPlain(`
Next steps:
1. Store credentials with 'friendbot auth login' or set FRIENDBOT_REDDIT_* variables
2. Run 'friendbot config validate' to check the configuration
3. Start the bot with 'friendbot run'`)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	display := *cfg
	display.Reddit.Password = mask(display.Reddit.Password)
	display.Reddit.ClientSecret = mask(display.Reddit.ClientSecret)
	display.Vision.APIKey = mask(display.Vision.APIKey)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	ui.PrintPlain(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	if err := cfg.ValidateCredentials(); err != nil {
		ui.PrintWarning("Credentials incomplete", err)
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("State file", cfg.Storage.StateFile)
	ui.PrintInfo("Chapters dir", cfg.Storage.ChaptersRoot)
	ui.PrintInfo("Interval", cfg.Schedule.Interval.String())
	for _, src := range cfg.Sources {
		ui.PrintInfo("Source", fmt.Sprintf("/r/%s %q (marker %q)", src.Subreddit, src.Query, src.Marker))
	}
	return nil
}

func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "..." + s[len(s)-4:]
	}
}
