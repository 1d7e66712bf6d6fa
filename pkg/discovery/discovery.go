package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"friendbot/pkg/config"
	"friendbot/pkg/counter"
	"friendbot/pkg/errors"
	"friendbot/pkg/logger"
	"friendbot/pkg/models"
	"friendbot/pkg/reddit"
	"friendbot/pkg/state"

	"github.com/google/uuid"
)

var chapterPattern = regexp.MustCompile(`(?i)chapter\s+(\d+)`)

// ExtractChapterNumber returns the number following the first "chapter" in title
func ExtractChapterNumber(title string) (int, bool) {
	m := chapterPattern.FindStringSubmatch(title)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Job is one source to scan
type Job struct {
	Source string
	Query  string
	Marker string
}

// Accepts reports whether a lower-cased title carries the job's marker
func (j Job) Accepts(title string) bool {
	return strings.Contains(title, strings.ToLower(j.Marker))
}

// JobsFromConfig builds one job per configured source
func JobsFromConfig(sources []config.SourceConfig) []Job {
	jobs := make([]Job, 0, len(sources))
	for _, s := range sources {
		jobs = append(jobs, Job{Source: s.Subreddit, Query: s.Query, Marker: s.Marker})
	}
	return jobs
}

// Forum is the read side of the forum the engine needs
type Forum interface {
	Search(ctx context.Context, params reddit.SearchParams) ([]models.Submission, error)
	RecentItems(ctx context.Context, limit int) ([]models.AuthoredItem, error)
}

// ChapterFetcher materialises a chapter's pages on disk
type ChapterFetcher interface {
	Fetch(ctx context.Context, threadURL string, chapter int) ([]string, error)
}

// ChapterCounter scores a fetched chapter
type ChapterCounter interface {
	Count(ctx context.Context, chapter int) (*counter.Result, error)
}

// StateStore persists the chapter mapping
type StateStore interface {
	Save(chapters *state.Chapters) error
}

// ReplyLedger remembers which submissions were answered
type ReplyLedger interface {
	Has(submission string) (bool, error)
	Mark(submission string, chapter int) error
}

// Poster posts the summary reply
type Poster interface {
	Post(ctx context.Context, sub models.Submission, records []models.ChapterRecord) error
}

// Options tunes the search and dedup checks
type Options struct {
	Window       string
	Limit        int
	RecentWindow int
	// Cleanup, when set, is called after a chapter has been counted
	Cleanup func(chapter int) error
}

// Deps bundles the engine's collaborators
type Deps struct {
	Forum    Forum
	Fetcher  ChapterFetcher
	Counter  ChapterCounter
	Store    StateStore
	Chapters *state.Chapters
	Ledger   ReplyLedger
	Reporter Poster
}

// Engine runs discovery jobs against shared chapter state
type Engine struct {
	deps   Deps
	opts   Options
	logger logger.Logger
	mu     sync.Mutex
}

// NewEngine creates an Engine. Chapters must be the mapping loaded from Store.
func NewEngine(deps Deps, opts Options, log logger.Logger) *Engine {
	if log == nil {
		log = logger.GetLogger()
	}
	if deps.Chapters == nil {
		deps.Chapters = &state.Chapters{}
	}
	if opts.Window == "" {
		opts.Window = "day"
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 10
	}
	return &Engine{deps: deps, opts: opts, logger: log.WithField("component", "discovery")}
}

// Chapters returns the state owned by the engine
func (e *Engine) Chapters() *state.Chapters {
	return e.deps.Chapters
}

// RunJob performs one discovery cycle for job. A transient search failure is
// logged and swallowed; anything else that aborts the cycle is returned.
func (e *Engine) RunJob(ctx context.Context, job Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	log := e.logger.WithFields(map[string]interface{}{
		"source": job.Source,
		"cycle":  uuid.New().String(),
	})
	logger.LogScan(log, job.Source, job.Query)

	subs, err := e.deps.Forum.Search(ctx, reddit.SearchParams{
		Subreddit: job.Source,
		Query:     job.Query,
		Window:    e.opts.Window,
		Limit:     e.opts.Limit,
	})
	if err != nil {
		if errors.IsServerError(err) {
			log.WithError(err).Error("Error searching for a new chapter")
			return nil
		}
		return fmt.Errorf("search /r/%s: %w", job.Source, err)
	}

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}

		title := strings.ToLower(sub.Title)
		if !job.Accepts(title) {
			continue
		}
		chapter, ok := ExtractChapterNumber(title)
		if !ok {
			log.DebugWithFields("No chapter number in title", map[string]interface{}{"title": sub.Title})
			continue
		}

		fresh, err := e.isNew(ctx, sub, chapter)
		if err != nil {
			return err
		}
		if !fresh {
			continue
		}

		if err := e.handle(ctx, log, sub, chapter); err != nil {
			return err
		}
	}
	return nil
}

// isNew applies the new-chapter and new-thread tests
func (e *Engine) isNew(ctx context.Context, sub models.Submission, chapter int) (bool, error) {
	if e.deps.Chapters.Has(chapter) {
		return false, nil
	}

	if e.deps.Ledger != nil {
		replied, err := e.deps.Ledger.Has(sub.Fullname())
		if err != nil {
			return false, fmt.Errorf("check reply log: %w", err)
		}
		if replied {
			return false, nil
		}
	}

	items, err := e.deps.Forum.RecentItems(ctx, e.opts.RecentWindow)
	if err != nil {
		return false, fmt.Errorf("list recent items: %w", err)
	}
	for _, item := range items {
		if item.Matches(sub) {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) handle(ctx context.Context, log logger.Logger, sub models.Submission, chapter int) error {
	log = log.WithFields(map[string]interface{}{
		"chapter":    chapter,
		"submission": sub.Fullname(),
	})
	log.Info("New chapter thread found")

	if _, err := e.deps.Fetcher.Fetch(ctx, sub.URL, chapter); err != nil {
		log.WithError(err).Error("Failed to fetch chapter")
		return fmt.Errorf("fetch chapter %d: %w", chapter, err)
	}

	result, err := e.deps.Counter.Count(ctx, chapter)
	if err != nil {
		return fmt.Errorf("count chapter %d: %w", chapter, err)
	}

	if err := e.deps.Chapters.Record(chapter, result.Total); err != nil {
		return fmt.Errorf("record chapter %d: %w", chapter, err)
	}
	if err := e.deps.Store.Save(e.deps.Chapters); err != nil {
		e.deps.Chapters.Forget(chapter)
		log.WithError(err).Error("Failed to save chapter state")
		return fmt.Errorf("save state: %w", err)
	}

	if e.opts.Cleanup != nil {
		if err := e.opts.Cleanup(chapter); err != nil {
			log.WithError(err).Warn("Failed to clean up chapter pages")
		}
	}

	if err := e.deps.Reporter.Post(ctx, sub, e.deps.Chapters.Records()); err != nil {
		log.WithError(err).Error("Failed to post reply")
		return err
	}

	if e.deps.Ledger != nil {
		if err := e.deps.Ledger.Mark(sub.Fullname(), chapter); err != nil {
			return fmt.Errorf("mark reply: %w", err)
		}
	}
	return nil
}
