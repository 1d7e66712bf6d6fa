package main

import (
	"fmt"
	"os"
	"runtime"

	"friendbot/pkg/auth"
	"friendbot/pkg/config"
	"friendbot/pkg/logger"
	"friendbot/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	configFile  string
	logLevel    string
	noColor     bool
	quiet       bool
	accountName string
	stateFile   string
	chaptersDir string
)

var rootCmd = &cobra.Command{
	Use:   "friendbot",
	Short: "Counts how often 'friend' is said in each Eden's Zero chapter",
	Long: `friendbot watches Reddit for new Eden's Zero chapter discussion threads,
downloads the chapter, OCRs every page and replies with how many times the
word "friend" was said in that chapter and in every chapter so far.

Counts are kept in a plain text state file, one "<chapter> <count>" per line.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetNoColor(noColor)
		if quiet {
			ui.SetQuietMode(true)
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.friendbot.yaml or ~/.config/friendbot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	rootCmd.PersistentFlags().StringVar(&stateFile, "state-file", "", "chapter state file")
	rootCmd.PersistentFlags().StringVar(&chaptersDir, "chapters-dir", "", "directory chapter pages are extracted into")

	rootCmd.SetVersionTemplate(`friendbot {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the global flags with extra command flags, loads the
// configuration and initialises logging
func loadConfig(cmd *cobra.Command, flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if stateFile != "" {
		flags["state-file"] = stateFile
	}
	if chaptersDir != "" {
		flags["chapters-dir"] = chaptersDir
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if noColor {
		cfg.Logging.NoColor = true
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.WithField("version", version).Debug("friendbot starting")
	return cfg, nil
}

// resolveCredentials fills missing credentials from the credential store.
// An explicit --account always wins over configured values.
func resolveCredentials(cfg *config.Config) error {
	if accountName == "" && cfg.ValidateCredentials() == nil {
		logger.Debug("Using credentials from configuration")
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		logger.WithError(err).Warn("Credential store unavailable")
		return cfg.ValidateCredentials()
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
		if err != nil {
			return fmt.Errorf("account %q not found, see 'friendbot auth list'", accountName)
		}
		cfg.Reddit.Username, cfg.Reddit.Password = "", ""
		cfg.Reddit.ClientID, cfg.Reddit.ClientSecret = "", ""
	} else if account, err = manager.RetrieveDefault(); err != nil {
		account = nil
	}

	if account != nil {
		account.Apply(cfg)
		logger.WithField("account", account.Username).Info("Using stored credentials")
	}

	if err := cfg.ValidateCredentials(); err != nil {
		return fmt.Errorf("%w\nrun 'friendbot auth login' to store credentials", err)
	}
	return nil
}
