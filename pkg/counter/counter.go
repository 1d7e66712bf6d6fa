// Package counter scores a chapter by counting a target word across the OCR
// text of its pages.
package counter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"friendbot/internal/ocrpool"
	"friendbot/pkg/logger"
	"friendbot/pkg/metadata"
	"friendbot/pkg/models"
	"friendbot/pkg/storage"
)

// PageSource lists the stored pages of a chapter
type PageSource interface {
	Pages(chapter int) ([]models.Page, error)
	ReportPath(chapter int) string
}

// Result is the outcome of counting one chapter
type Result struct {
	Chapter int
	Total   int
	Report  *metadata.ScanReport
}

// Options configures a Counter
type Options struct {
	Word        string
	Workers     int
	WriteReport bool
}

// Counter runs OCR over chapter pages and sums word occurrences
type Counter struct {
	pages      PageSource
	recognizer ocrpool.Recognizer
	opts       Options
	logger     logger.Logger
}

// New creates a Counter
func New(pages PageSource, recognizer ocrpool.Recognizer, opts Options, log logger.Logger) *Counter {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Word == "" {
		opts.Word = "friend"
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Counter{
		pages:      pages,
		recognizer: recognizer,
		opts:       opts,
		logger:     log.WithField("component", "counter"),
	}
}

// CountOccurrences counts non-overlapping occurrences of word in the lower-cased text
func CountOccurrences(text, word string) int {
	if word == "" {
		return 0
	}
	return strings.Count(strings.ToLower(text), strings.ToLower(word))
}

// Count scores the stored pages of a chapter. Any OCR failure aborts the count.
func (c *Counter) Count(ctx context.Context, chapter int) (*Result, error) {
	pages, err := c.pages.Pages(chapter)
	if err != nil {
		return nil, fmt.Errorf("list pages for chapter %d: %w", chapter, err)
	}

	result, err := c.count(ctx, chapter, pages)
	if err != nil {
		logger.LogChapter(c.logger, chapter, len(pages), 0, err)
		return nil, err
	}
	logger.LogChapter(c.logger, chapter, len(pages), result.Total, nil)

	if c.opts.WriteReport {
		path := c.pages.ReportPath(chapter)
		if err := result.Report.Save(path); err != nil {
			// the count is still valid without its report
			c.logger.WithError(err).Warn("Failed to write scan report")
		}
	}
	return result, nil
}

// CountDir scores every page in a local directory without touching chapter storage
func (c *Counter) CountDir(ctx context.Context, dir string) (*Result, error) {
	pages, err := storage.ListPages(dir)
	if err != nil {
		return nil, err
	}
	return c.count(ctx, 0, pages)
}

func (c *Counter) count(ctx context.Context, chapter int, pages []models.Page) (*Result, error) {
	report := &metadata.ScanReport{
		Chapter:   chapter,
		Word:      c.opts.Word,
		StartedAt: time.Now().UTC(),
	}

	score := func(text string) int {
		return CountOccurrences(text, c.opts.Word)
	}
	results, err := ocrpool.Run(ctx, c.opts.Workers, c.recognizer, score, pages, c.logger)
	if err != nil {
		return nil, err
	}

	total := 0
	report.Pages = make([]metadata.PageReport, 0, len(results))
	for _, r := range results {
		total += r.Count
		report.Pages = append(report.Pages, metadata.PageReport{
			Name:       r.Job.Page.Name,
			Bytes:      r.Bytes,
			TextFound:  r.Found,
			Count:      r.Count,
			DurationMs: r.Duration.Milliseconds(),
		})
	}
	report.Total = total
	report.FinishedAt = time.Now().UTC()

	return &Result{Chapter: chapter, Total: total, Report: report}, nil
}
