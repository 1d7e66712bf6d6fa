// Package reporter composes the per-chapter summary reply and posts it.
package reporter

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"friendbot/pkg/errors"
	"friendbot/pkg/logger"
	"friendbot/pkg/models"
	"friendbot/pkg/retry"
)

// Replier posts a comment on a thread
type Replier interface {
	Reply(ctx context.Context, thingID, text string) error
}

// Options configures a Reporter
type Options struct {
	Word        string
	Footer      string
	Cooldown    time.Duration
	MaxAttempts int
	DryRun      bool
	// Sleep replaces the cooldown wait; nil waits on a timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// Reporter formats and posts the summary reply
type Reporter struct {
	forum  Replier
	opts   Options
	logger logger.Logger
}

// New creates a Reporter
func New(forum Replier, opts Options, log logger.Logger) *Reporter {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Word == "" {
		opts.Word = "friend"
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 2
	}
	return &Reporter{forum: forum, opts: opts, logger: log.WithField("component", "reporter")}
}

// Footer builds the attribution footer appended to every reply
func Footer(sourceURL, messageURL string) string {
	return fmt.Sprintf("---\n^^[source](%s) ^^on ^^github, ^^[message](%s) ^^the ^^bot ^^for ^^any ^^questions", sourceURL, messageURL)
}

// Compose renders the reply: one line per chapter newest first, then the
// total and average when at least one chapter is recorded, then the footer.
func Compose(records []models.ChapterRecord, word, footer string) string {
	sorted := make([]models.ChapterRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Chapter > sorted[j].Chapter
	})

	lines := make([]string, 0, len(sorted)+3)
	total := 0
	for _, r := range sorted {
		lines = append(lines, fmt.Sprintf("Times '%s' was said in chapter %d: %d times.", word, r.Chapter, r.Count))
		total += r.Count
	}

	if n := len(sorted); n > 0 {
		lines = append(lines, fmt.Sprintf("Total times '%s' was said: %d times in %d chapters.", word, total, n))
		lines = append(lines, fmt.Sprintf("Average times '%s' was said per chapter: %s times.", word, FormatAverage(total, n)))
	}

	if footer != "" {
		lines = append(lines, footer)
	}
	return strings.Join(lines, "\n\n")
}

// FormatAverage rounds total/chapters to two decimals, always keeping one
// decimal place ("3.0", "2.5", "1.33").
func FormatAverage(total, chapters int) string {
	if chapters == 0 {
		return "0.0"
	}
	avg := math.Round(float64(total)/float64(chapters)*100) / 100
	s := strconv.FormatFloat(avg, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Post replies to the submission with the summary of records. A rate-limit
// rejection is retried once after the cooldown.
func (r *Reporter) Post(ctx context.Context, sub models.Submission, records []models.ChapterRecord) error {
	text := Compose(records, r.opts.Word, r.opts.Footer)
	log := r.logger.WithFields(map[string]interface{}{
		"submission": sub.Fullname(),
		"subreddit":  sub.Subreddit,
	})

	if r.opts.DryRun {
		log.InfoWithFields("Dry run, reply not posted", map[string]interface{}{"text": text})
		return nil
	}

	err := retry.Do(ctx, func() error {
		return r.forum.Reply(ctx, sub.Fullname(), text)
	}, &retry.Config{
		MaxAttempts: r.opts.MaxAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: r.opts.Cooldown},
		RetryIf:     errors.IsRateLimit,
		Sleep:       r.opts.Sleep,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.LogRateLimit(log, "reply", int(delay.Seconds()))
		},
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("post reply to %s: %w", sub.Fullname(), err)
	}

	log.Info("Reply posted")
	return nil
}
