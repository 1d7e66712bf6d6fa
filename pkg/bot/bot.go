package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"friendbot/internal/ocrpool"
	"friendbot/pkg/config"
	"friendbot/pkg/counter"
	"friendbot/pkg/discovery"
	"friendbot/pkg/fetcher"
	"friendbot/pkg/logger"
	"friendbot/pkg/ratelimit"
	"friendbot/pkg/reddit"
	"friendbot/pkg/replylog"
	"friendbot/pkg/reporter"
	"friendbot/pkg/state"
	"friendbot/pkg/storage"
	"friendbot/pkg/vision"
)

// Bot owns the pipeline collaborators and the schedule
type Bot struct {
	config   *config.Config
	reddit   *reddit.Client
	storage  *storage.Manager
	store    *state.Store
	replies  *replylog.Log
	engine   *discovery.Engine
	jobs     []discovery.Job
	interval time.Duration
	logger   logger.Logger
}

// New creates a Bot from configuration and loads the chapter state
func New(cfg *config.Config) (*Bot, error) {
	log := logger.GetLogger()

	redditClient := reddit.NewClient(reddit.Options{
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
		Limiter:   NewRequestLimiter(&cfg.RateLimit),
		Logger:    log,
	})

	storageManager, err := storage.NewManager(cfg.Storage.ChaptersRoot)
	if err != nil {
		log.WithError(err).WithField("root", cfg.Storage.ChaptersRoot).Error("Failed to create storage manager")
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}

	store := state.NewStore(cfg.Storage.StateFile, log)
	chapters, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load chapter state: %w", err)
	}

	replyPath := cfg.Storage.ReplyLog
	if replyPath == "" {
		if replyPath, err = replylog.DefaultPath(); err != nil {
			return nil, err
		}
	}
	replies, err := replylog.Open(replyPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open reply log: %w", err)
	}

	f := fetcher.New(storageManager, fetcher.Options{
		Selector:         cfg.Fetch.Selector,
		UserAgent:        cfg.Fetch.UserAgent,
		Timeout:          cfg.Fetch.Timeout,
		MaxArchiveSize:   cfg.Fetch.MaxArchiveSize,
		CloudflareBypass: cfg.Fetch.CloudflareBypass,
	}, log)

	c := NewCounter(cfg, storageManager, log)

	rep := reporter.New(redditClient, reporter.Options{
		Word:        cfg.Counter.Word,
		Footer:      reporter.Footer(cfg.Reply.SourceURL, cfg.Reply.MessageURL),
		Cooldown:    cfg.Reply.Cooldown,
		MaxAttempts: cfg.Reply.MaxAttempts,
		DryRun:      cfg.Reply.DryRun,
	}, log)

	opts := discovery.Options{
		Window:       cfg.Schedule.SearchWindow,
		Limit:        cfg.Schedule.SearchLimit,
		RecentWindow: cfg.Schedule.RecentWindow,
	}
	if cfg.Fetch.CleanupAfterCount {
		opts.Cleanup = storageManager.Remove
	}

	engine := discovery.NewEngine(discovery.Deps{
		Forum:    redditClient,
		Fetcher:  f,
		Counter:  c,
		Store:    store,
		Chapters: chapters,
		Ledger:   replies,
		Reporter: rep,
	}, opts, log)

	return &Bot{
		config:   cfg,
		reddit:   redditClient,
		storage:  storageManager,
		store:    store,
		replies:  replies,
		engine:   engine,
		jobs:     discovery.JobsFromConfig(cfg.Sources),
		interval: cfg.Schedule.Interval,
		logger:   log.WithField("component", "bot"),
	}, nil
}

// NewRequestLimiter builds the Reddit request limiter. The bucket holds
// BurstSize tokens and refills at RequestsPerMinute on average.
func NewRequestLimiter(cfg *config.RateLimitConfig) ratelimit.Limiter {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		return ratelimit.Unlimited{}
	}
	burst := cfg.BurstSize
	if burst <= 0 || burst > rpm {
		burst = rpm
	}
	period := time.Duration(float64(time.Minute) * float64(burst) / float64(rpm))
	return ratelimit.NewTokenBucket(burst, period)
}

// NewCounter builds the OCR counter over chapter storage
func NewCounter(cfg *config.Config, pages counter.PageSource, log logger.Logger) *counter.Counter {
	return counter.New(pages, NewRecognizer(cfg, log), counter.Options{
		Word:        cfg.Counter.Word,
		Workers:     cfg.Counter.Workers,
		WriteReport: cfg.Counter.WriteReport,
	}, log)
}

// NewRecognizer builds the Vision client with its own request window
func NewRecognizer(cfg *config.Config, log logger.Logger) ocrpool.Recognizer {
	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.RateLimit.OCRPerMinute > 0 {
		limiter = ratelimit.NewSlidingWindow(cfg.RateLimit.OCRPerMinute, time.Minute)
	}
	return vision.NewClient(cfg.Vision.Endpoint, cfg.Vision.APIKey, cfg.Vision.Timeout, limiter, log)
}

// Chapters returns the loaded chapter state
func (b *Bot) Chapters() *state.Chapters {
	return b.engine.Chapters()
}

// Jobs returns the configured scan jobs
func (b *Bot) Jobs() []discovery.Job {
	return b.jobs
}

// RunOnce runs every job once, in order
func (b *Bot) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range b.jobs {
		if err := b.runJob(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("/r/%s: %w", job.Source, err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

// Run schedules every job at the configured interval until ctx is done
func (b *Bot) Run(ctx context.Context) error {
	logger.LogComponentStart(b.logger, "scheduler", map[string]interface{}{
		"interval": b.interval.String(),
		"jobs":     len(b.jobs),
		"chapters": b.Chapters().Len(),
		"root":     b.storage.Root(),
	})

	due := make(chan discovery.Job, len(b.jobs))
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-due:
				if err := b.runJob(ctx, job); err != nil && ctx.Err() == nil {
					b.logger.WithError(err).WithField("source", job.Source).Error("Job failed")
				}
			}
		}
	}()

	if b.config.Schedule.RunOnStart {
		for _, job := range b.jobs {
			b.enqueue(due, job)
		}
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-done
			logger.LogComponentStop(b.logger, "scheduler", ctx.Err().Error())
			return nil
		case <-ticker.C:
			for _, job := range b.jobs {
				b.enqueue(due, job)
			}
		}
	}
}

// enqueue drops a tick when the queue is full so a slow cycle cannot pile up work
func (b *Bot) enqueue(due chan<- discovery.Job, job discovery.Job) {
	select {
	case due <- job:
	default:
		b.logger.WithField("source", job.Source).Warn("Previous cycles still running, skipping tick")
	}
}

func (b *Bot) runJob(ctx context.Context, job discovery.Job) error {
	start := time.Now()
	err := b.engine.RunJob(ctx, job)
	b.logger.DebugWithFields("Job finished", map[string]interface{}{
		"source":      job.Source,
		"duration_ms": time.Since(start).Milliseconds(),
		"failed":      err != nil,
	})
	return err
}

// Close releases the reply log
func (b *Bot) Close() error {
	if b.replies == nil {
		return nil
	}
	return b.replies.Close()
}
