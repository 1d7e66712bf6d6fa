package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"friendbot/pkg/auth"
	"friendbot/pkg/bot"
	"friendbot/pkg/logger"
	"friendbot/pkg/reddit"
	"friendbot/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the bot's Reddit and Vision credentials",
	Long: `Manage stored bot credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (FRIENDBOT_REDDIT_*, read only)

Never share your credentials or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store bot credentials securely",
	Long: `Store the Reddit script app credentials and the Vision API key.

You will be prompted for:
  - Reddit username (if not provided)
  - Reddit password
  - Script app client ID and secret
  - Google Cloud Vision API key
  - User agent (optional, press Enter for default)`,
	Example: `  friendbot auth login
  friendbot auth login edenszerofriendbot`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored credentials",
	Long: `Remove stored credentials.

If no username is provided, you will be shown a list of stored accounts
to choose from. You can also remove all accounts at once.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Log in to Reddit with the resolved credentials",
	Long: `Resolve credentials the same way 'friendbot run' does and request the
account identity from Reddit. Nothing is posted.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(verifyCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	auth.ShowAppSetupGuide(os.Stdout)

	username := ""
	if len(args) > 0 {
		username = args[0]
	}
	if username == "" {
		if username, err = prompt(reader, "Reddit username: "); err != nil {
			return err
		}
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	if existing, _ := manager.Retrieve(username); existing != nil {
		answer, _ := prompt(reader, fmt.Sprintf("\nAccount '%s' already exists. Update credentials? (y/N): ", username))
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			return nil
		}
	}

	account := &auth.Account{Username: username, LastModified: time.Now()}
	fmt.Println("\nSecret values are hidden as you type.")
	if account.Password, err = promptSecret("Reddit password: "); err != nil {
		return err
	}
	if account.ClientID, err = prompt(reader, "Client ID: "); err != nil {
		return err
	}
	if account.ClientSecret, err = promptSecret("Client secret: "); err != nil {
		return err
	}
	if account.VisionAPIKey, err = promptSecret("Vision API key: "); err != nil {
		return err
	}
	account.UserAgent, _ = prompt(reader, "User agent (press Enter for default): ")

	if err := account.Validate(); err != nil {
		return err
	}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", username))
	if auth.IsKeyringAvailable() {
		ui.PrintInfo("Stored in", "system keychain and encrypted file")
	} else {
		ui.PrintInfo("Stored in", "encrypted file")
	}
	if account.VisionAPIKey == "" {
		ui.PrintWarning("No Vision API key stored", "set FRIENDBOT_VISION_API_KEY before running the bot")
	}
	ui.PrintPlain("\nCheck the login with 'friendbot auth verify', then start with 'friendbot run'.")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if len(args) > 0 {
		if err := manager.Delete(args[0]); err != nil {
			return fmt.Errorf("failed to remove account: %w", err)
		}
		ui.PrintSuccess("Account removed: " + args[0])
		return nil
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintWarning("No stored accounts found")
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Select account to remove:")
	for i, account := range accounts {
		fmt.Printf("  %d. %s\n", i+1, account.Username)
	}
	fmt.Printf("  %d. Remove all accounts\n", len(accounts)+1)
	fmt.Printf("  0. Cancel\n\n")

	input, _ := prompt(reader, "Choice: ")
	choice, err := strconv.Atoi(input)
	switch {
	case err != nil || choice < 0 || choice > len(accounts)+1:
		return fmt.Errorf("invalid choice %q", input)
	case choice == 0:
		return nil
	case choice == len(accounts)+1:
		confirm, _ := prompt(reader, "Remove ALL accounts? This cannot be undone! (yes/N): ")
		if confirm != "yes" {
			return nil
		}
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove all accounts: %w", err)
		}
		ui.PrintSuccess("All accounts removed")
	default:
		name := accounts[choice-1].Username
		if err := manager.Delete(name); err != nil {
			return fmt.Errorf("failed to remove account: %w", err)
		}
		ui.PrintSuccess("Account removed: " + name)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'friendbot auth login' to add one")
		return nil
	}

	rows := make([][]string, 0, len(accounts))
	for _, account := range accounts {
		s := auth.SanitizeAccount(account)
		rows = append(rows, []string{
			s.Username,
			s.ClientID,
			s.ClientSecret,
			s.VisionAPIKey,
			s.LastModified.Local().Format("2006-01-02 15:04:05"),
		})
	}
	ui.PrintTable([]string{"USERNAME", "CLIENT ID", "SECRET", "VISION KEY", "MODIFIED"}, rows)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	if err := resolveCredentials(cfg); err != nil {
		return err
	}

	client := reddit.NewClient(reddit.Options{
		Credentials: reddit.Credentials{
			Username:     cfg.Reddit.Username,
			Password:     cfg.Reddit.Password,
			ClientID:     cfg.Reddit.ClientID,
			ClientSecret: cfg.Reddit.ClientSecret,
		},
		UserAgent: cfg.Reddit.UserAgent,
		AuthURL:   cfg.Reddit.AuthURL,
		APIURL:    cfg.Reddit.APIURL,
		Timeout:   cfg.Reddit.Timeout,
		Limiter:   bot.NewRequestLimiter(&cfg.RateLimit),
		Logger:    logger.GetLogger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Reddit.Timeout)
	defer cancel()

	name, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	ui.PrintSuccess("Logged in as /u/" + name)
	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}

func promptSecret(label string) (string, error) {
	fmt.Print(label)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
