package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the bot
type Config struct {
	// Reddit credentials and endpoints
	Reddit RedditConfig `yaml:"reddit" json:"reddit"`

	// OCR collaborator
	Vision VisionConfig `yaml:"vision" json:"vision"`

	// Subreddits scanned for chapter threads
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Counter  CounterConfig  `yaml:"counter" json:"counter"`
	Fetch    FetchConfig    `yaml:"fetch" json:"fetch"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Reply    ReplyConfig    `yaml:"reply" json:"reply"`

	// Client-side request limiting
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// RedditConfig holds Reddit API configuration
type RedditConfig struct {
	Username     string        `yaml:"username" json:"username"`
	Password     string        `yaml:"password" json:"-"`
	ClientID     string        `yaml:"client_id" json:"client_id"`
	ClientSecret string        `yaml:"client_secret" json:"-"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
	AuthURL      string        `yaml:"auth_url" json:"auth_url"`
	APIURL       string        `yaml:"api_url" json:"api_url"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// VisionConfig holds OCR API configuration
type VisionConfig struct {
	APIKey   string        `yaml:"api_key" json:"-"`
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// SourceConfig describes one scan job
type SourceConfig struct {
	Subreddit string `yaml:"subreddit" json:"subreddit"`
	Query     string `yaml:"query" json:"query"`
	Marker    string `yaml:"marker" json:"marker"`
}

// ScheduleConfig holds scan timing
type ScheduleConfig struct {
	Interval     time.Duration `yaml:"interval" json:"interval"`
	SearchWindow string        `yaml:"search_window" json:"search_window"`
	SearchLimit  int           `yaml:"search_limit" json:"search_limit"`
	RecentWindow int           `yaml:"recent_window" json:"recent_window"`
	RunOnStart   bool          `yaml:"run_on_start" json:"run_on_start"`
}

// CounterConfig holds OCR counting settings
type CounterConfig struct {
	Word        string `yaml:"word" json:"word"`
	Workers     int    `yaml:"workers" json:"workers"`
	WriteReport bool   `yaml:"write_report" json:"write_report"`
}

// FetchConfig holds chapter download settings
type FetchConfig struct {
	Selector          string        `yaml:"selector" json:"selector"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	CloudflareBypass  bool          `yaml:"cloudflare_bypass" json:"cloudflare_bypass"`
	MaxArchiveSize    int64         `yaml:"max_archive_size" json:"max_archive_size"`
	CleanupAfterCount bool          `yaml:"cleanup_after_count" json:"cleanup_after_count"`
}

// StorageConfig holds on-disk locations
type StorageConfig struct {
	StateFile    string `yaml:"state_file" json:"state_file"`
	ReplyLog     string `yaml:"reply_log" json:"reply_log"`
	ChaptersRoot string `yaml:"chapters_root" json:"chapters_root"`
}

// ReplyConfig holds reply formatting and retry settings
type ReplyConfig struct {
	Cooldown    time.Duration `yaml:"cooldown" json:"cooldown"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	SourceURL   string        `yaml:"source_url" json:"source_url"`
	MessageURL  string        `yaml:"message_url" json:"message_url"`
	DryRun      bool          `yaml:"dry_run" json:"dry_run"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
	OCRPerMinute      int `yaml:"ocr_per_minute" json:"ocr_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	JSON    bool   `yaml:"json" json:"json"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with the bot's stock behaviour
func DefaultConfig() *Config {
	return &Config{
		Reddit: RedditConfig{
			UserAgent: "friendbot/1.0 (chapter word counter)",
			AuthURL:   "https://www.reddit.com",
			APIURL:    "https://oauth.reddit.com",
			Timeout:   60 * time.Second,
		},
		Vision: VisionConfig{
			Endpoint: "https://vision.googleapis.com",
			Timeout:  60 * time.Second,
		},
		Sources: []SourceConfig{
			{Subreddit: "manga", Query: "Eden's Zero", Marker: "[disc]"},
			{Subreddit: "EdensZero", Query: "Chapter", Marker: "links + discussion"},
		},
		Schedule: ScheduleConfig{
			Interval:     600 * time.Second,
			SearchWindow: "day",
			SearchLimit:  25,
			RecentWindow: 10,
			RunOnStart:   true,
		},
		Counter: CounterConfig{
			Word:    "friend",
			Workers: 1,
		},
		Fetch: FetchConfig{
			Selector:       `a[href$=".zip"]`,
			Timeout:        5 * time.Minute,
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			MaxArchiveSize: 512 << 20,
		},
		Storage: StorageConfig{
			StateFile:    "chapters.txt",
			ReplyLog:     "replies.db",
			ChaptersRoot: "chapters",
		},
		Reply: ReplyConfig{
			Cooldown:    650 * time.Second,
			MaxAttempts: 2,
			SourceURL:   "https://github.com/abhinavk99/edens-zero-friend-bot",
			MessageURL:  "https://www.reddit.com/message/compose/?to=edenszerofriendbot",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         10,
			OCRPerMinute:      600,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from FRIENDBOT_* environment variables
func (c *Config) LoadFromEnv() error {
	strs := map[string]*string{
		"FRIENDBOT_REDDIT_USERNAME":      &c.Reddit.Username,
		"FRIENDBOT_REDDIT_PASSWORD":      &c.Reddit.Password,
		"FRIENDBOT_REDDIT_CLIENT_ID":     &c.Reddit.ClientID,
		"FRIENDBOT_REDDIT_CLIENT_SECRET": &c.Reddit.ClientSecret,
		"FRIENDBOT_USER_AGENT":           &c.Reddit.UserAgent,
		"FRIENDBOT_VISION_API_KEY":       &c.Vision.APIKey,
		"FRIENDBOT_WORD":                 &c.Counter.Word,
		"FRIENDBOT_STATE_FILE":           &c.Storage.StateFile,
		"FRIENDBOT_REPLY_LOG":            &c.Storage.ReplyLog,
		"FRIENDBOT_CHAPTERS_ROOT":        &c.Storage.ChaptersRoot,
		"FRIENDBOT_LOG_LEVEL":            &c.Logging.Level,
		"FRIENDBOT_LOG_FILE":             &c.Logging.File,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("FRIENDBOT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FRIENDBOT_INTERVAL: %w", err)
		}
		c.Schedule.Interval = d
	}
	if v := os.Getenv("FRIENDBOT_REPLY_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FRIENDBOT_REPLY_COOLDOWN: %w", err)
		}
		c.Reply.Cooldown = d
	}
	if v := os.Getenv("FRIENDBOT_OCR_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FRIENDBOT_OCR_WORKERS: %w", err)
		}
		c.Counter.Workers = n
	}
	if v := os.Getenv("FRIENDBOT_REQUESTS_PER_MINUTE"); v != "" {
		var val int
		fmt.Sscanf(v, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if v := os.Getenv("FRIENDBOT_DRY_RUN"); v != "" {
		c.Reply.DryRun = strings.ToLower(v) == "true"
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".friendbot.yaml",
		".friendbot.yml",
		filepath.Join(home, ".config", "friendbot", "config.yaml"),
		filepath.Join(home, ".config", "friendbot", "config.yml"),
		filepath.Join(home, ".friendbot.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are checked
// separately by ValidateCredentials since they may come from the keyring.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("at least one source is required"))
	}
	for i, s := range c.Sources {
		if s.Subreddit == "" {
			errs = append(errs, fmt.Errorf("source %d: subreddit is required", i))
		}
		if s.Marker == "" {
			errs = append(errs, fmt.Errorf("source %d: title marker is required", i))
		}
	}

	if c.Schedule.Interval <= 0 {
		errs = append(errs, errors.New("schedule interval must be positive"))
	}
	if c.Schedule.RecentWindow < 0 {
		errs = append(errs, errors.New("recent window cannot be negative"))
	}

	if strings.TrimSpace(c.Counter.Word) == "" {
		errs = append(errs, errors.New("target word is required"))
	}
	if c.Counter.Workers <= 0 {
		errs = append(errs, errors.New("OCR workers must be positive"))
	}
	if c.Counter.Workers > 10 {
		errs = append(errs, errors.New("OCR workers should not exceed 10"))
	}

	if c.Fetch.Selector == "" {
		errs = append(errs, errors.New("download link selector is required"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}

	if c.Storage.StateFile == "" {
		errs = append(errs, errors.New("state file is required"))
	}
	if c.Storage.ChaptersRoot == "" {
		errs = append(errs, errors.New("chapters root is required"))
	}

	if c.Reply.MaxAttempts <= 0 {
		errs = append(errs, errors.New("reply attempts must be positive"))
	}
	if c.Reply.Cooldown < 0 {
		errs = append(errs, errors.New("reply cooldown cannot be negative"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ValidateCredentials checks that everything needed to talk to Reddit and the OCR API is set
func (c *Config) ValidateCredentials() error {
	var errs []error
	if c.Reddit.Username == "" || c.Reddit.Password == "" {
		errs = append(errs, errors.New("Reddit username and password are required"))
	}
	if c.Reddit.ClientID == "" || c.Reddit.ClientSecret == "" {
		errs = append(errs, errors.New("Reddit client ID and secret are required"))
	}
	if c.Vision.APIKey == "" {
		errs = append(errs, errors.New("Vision API key is required"))
	}
	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["state-file"].(string); ok && v != "" {
		c.Storage.StateFile = v
	}
	if v, ok := flags["chapters-dir"].(string); ok && v != "" {
		c.Storage.ChaptersRoot = v
	}
	if v, ok := flags["word"].(string); ok && v != "" {
		c.Counter.Word = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Counter.Workers = v
	}
	if v, ok := flags["interval"].(time.Duration); ok && v > 0 {
		c.Schedule.Interval = v
	}
	if v, ok := flags["dry-run"].(bool); ok && v {
		c.Reply.DryRun = true
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".friendbot.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
