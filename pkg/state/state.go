package state

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"friendbot/pkg/logger"
	"friendbot/pkg/models"
)

// ErrAlreadyRecorded is returned when a chapter already has a count
var ErrAlreadyRecorded = errors.New("chapter already recorded")

// ParseError describes a malformed line in the state file
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("state line %d %q: %s", e.Line, e.Text, e.Reason)
}

// Chapters is the in-memory chapter -> count mapping
type Chapters struct {
	mu     sync.RWMutex
	counts map[int]int
}

// NewChapters builds a mapping from records, rejecting duplicates
func NewChapters(records ...models.ChapterRecord) (*Chapters, error) {
	c := &Chapters{counts: make(map[int]int, len(records))}
	for _, r := range records {
		if err := c.Record(r.Chapter, r.Count); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Has reports whether the chapter has been counted
func (c *Chapters) Has(chapter int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.counts[chapter]
	return ok
}

// Get returns the count for a chapter
func (c *Chapters) Get(chapter int) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.counts[chapter]
	return n, ok
}

// Record stores a count for a chapter that has not been counted yet
func (c *Chapters) Record(chapter, count int) error {
	if chapter < 1 {
		return fmt.Errorf("invalid chapter number %d", chapter)
	}
	if count < 0 {
		return fmt.Errorf("invalid count %d for chapter %d", count, chapter)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[int]int)
	}
	if _, ok := c.counts[chapter]; ok {
		return fmt.Errorf("chapter %d: %w", chapter, ErrAlreadyRecorded)
	}
	c.counts[chapter] = count
	return nil
}

// Forget drops a chapter recorded in memory but never persisted
func (c *Chapters) Forget(chapter int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, chapter)
}

// Records returns all records sorted by ascending chapter number
func (c *Chapters) Records() []models.ChapterRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records := make([]models.ChapterRecord, 0, len(c.counts))
	for ch, n := range c.counts {
		records = append(records, models.ChapterRecord{Chapter: ch, Count: n})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Chapter < records[j].Chapter
	})
	return records
}

// Len returns the number of recorded chapters
func (c *Chapters) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.counts)
}

// Total returns the sum of all counts
func (c *Chapters) Total() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Parse reads records in the state file format
func Parse(r io.Reader) ([]models.ChapterRecord, error) {
	var records []models.ChapterRecord
	seen := make(map[int]bool)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "expected \"<chapter> <count>\""}
		}
		chapter, err := strconv.Atoi(fields[0])
		if err != nil || chapter < 1 {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "chapter must be a positive integer"}
		}
		count, err := strconv.Atoi(fields[1])
		if err != nil || count < 0 {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "count must be a non-negative integer"}
		}
		if seen[chapter] {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "duplicate chapter"}
		}
		seen[chapter] = true

		records = append(records, models.ChapterRecord{Chapter: chapter, Count: count})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	return records, nil
}

// Write writes records in ascending chapter order
func Write(w io.Writer, records []models.ChapterRecord) error {
	sorted := make([]models.ChapterRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Chapter < sorted[j].Chapter
	})

	bw := bufio.NewWriter(w)
	for _, r := range sorted {
		if _, err := fmt.Fprintf(bw, "%d %d\n", r.Chapter, r.Count); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Store reads and writes the state file
type Store struct {
	path   string
	logger logger.Logger
}

// NewStore creates a store for the given file
func NewStore(path string, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{path: path, logger: log.WithField("state_file", path)}
}

// Path returns the state file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file yields an empty mapping.
func (s *Store) Load() (*Chapters, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("No state file found, starting empty")
			return &Chapters{counts: make(map[int]int)}, nil
		}
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}
	defer file.Close()

	records, err := Parse(file)
	if err != nil {
		return nil, err
	}

	chapters, err := NewChapters(records...)
	if err != nil {
		return nil, err
	}

	s.logger.InfoWithFields("State loaded", map[string]interface{}{
		"chapters": chapters.Len(),
		"total":    chapters.Total(),
	})
	return chapters, nil
}

// Save rewrites the state file atomically
func (s *Store) Save(chapters *Chapters) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}

	if err := Write(file, chapters.Records()); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write state: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync state file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	s.logger.DebugWithFields("State saved", map[string]interface{}{
		"chapters": chapters.Len(),
	})
	return nil
}
