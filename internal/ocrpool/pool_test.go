package ocrpool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"friendbot/pkg/logger"
	"friendbot/pkg/models"
)

// mockRecognizer returns the page bytes as the recognised text
type mockRecognizer struct {
	delay    time.Duration
	failOn   string
	calls    int32
	inFlight int32
	maxSeen  int32
}

func (m *mockRecognizer) RecognizeText(ctx context.Context, image []byte) (string, bool, error) {
	atomic.AddInt32(&m.calls, 1)
	n := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&m.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&m.maxSeen, seen, n) {
			break
		}
	}

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	text := string(image)
	if m.failOn != "" && text == m.failOn {
		return "", false, errors.New("ocr backend unavailable")
	}
	if text == "" {
		return "", false, nil
	}
	return text, true, nil
}

func countFriend(text string) int {
	return strings.Count(strings.ToLower(text), "friend")
}

func writePages(t *testing.T, texts ...string) []models.Page {
	t.Helper()
	dir := t.TempDir()
	pages := make([]models.Page, len(texts))
	for i, text := range texts {
		name := fmt.Sprintf("%02d.png", i+1)
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			t.Fatal(err)
		}
		pages[i] = models.Page{Chapter: 1, Name: name, Path: path}
	}
	return pages
}

func TestRunCountsPages(t *testing.T) {
	pages := writePages(t, "a friend", "friend of a friend", "no match")
	rec := &mockRecognizer{}

	results, err := Run(context.Background(), 1, rec, countFriend, pages, logger.NewTestLogger())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	want := []int{1, 2, 0}
	for i, r := range results {
		if r.Job.Page.Name != pages[i].Name {
			t.Errorf("result %d out of order: %s", i, r.Job.Page.Name)
		}
		if r.Count != want[i] {
			t.Errorf("page %d: expected %d, got %d", i, want[i], r.Count)
		}
	}
}

func TestRunAbsentTextCountsZero(t *testing.T) {
	pages := writePages(t, "", "friend")
	results, err := Run(context.Background(), 2, &mockRecognizer{}, countFriend, pages, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if results[0].Found || results[0].Count != 0 {
		t.Errorf("Expected blank page to contribute nothing, got %+v", results[0])
	}
	if !results[1].Found || results[1].Count != 1 {
		t.Errorf("Expected second page to count 1, got %+v", results[1])
	}
}

func TestRunStopsOnFirstError(t *testing.T) {
	texts := make([]string, 20)
	for i := range texts {
		texts[i] = fmt.Sprintf("page %d friend", i)
	}
	texts[2] = "broken"
	pages := writePages(t, texts...)
	rec := &mockRecognizer{failOn: "broken", delay: 5 * time.Millisecond}

	results, err := Run(context.Background(), 1, rec, countFriend, pages, logger.NewTestLogger())
	if err == nil {
		t.Fatal("Expected error")
	}
	if results != nil {
		t.Errorf("Expected no partial results, got %d", len(results))
	}
	if !strings.Contains(err.Error(), "03.png") {
		t.Errorf("Expected failing page in error, got %v", err)
	}
	if calls := atomic.LoadInt32(&rec.calls); calls >= int32(len(pages)) {
		t.Errorf("Expected remaining pages to be skipped, got %d calls", calls)
	}
}

func TestRunMissingFile(t *testing.T) {
	pages := []models.Page{{Name: "gone.png", Path: filepath.Join(t.TempDir(), "gone.png")}}
	if _, err := Run(context.Background(), 1, &mockRecognizer{}, countFriend, pages, nil); err == nil {
		t.Error("Expected error for unreadable page")
	}
}

func TestWorkerPoolConcurrency(t *testing.T) {
	pages := writePages(t, "friend", "friend", "friend", "friend", "friend", "friend")
	rec := &mockRecognizer{delay: 20 * time.Millisecond}

	pool := NewWorkerPool(context.Background(), 3, rec, countFriend, logger.NewTestLogger())
	pool.Start()

	var total int
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for r := range pool.Results() {
			total += r.Count
		}
	}()

	for i, p := range pages {
		if err := pool.Submit(PageJob{Index: i, Page: p}); err != nil {
			t.Errorf("Failed to submit job %d: %v", i, err)
		}
	}
	pool.Stop()
	wg.Wait()

	if total != 6 {
		t.Errorf("Expected total 6, got %d", total)
	}
	if max := atomic.LoadInt32(&rec.maxSeen); max < 2 || max > 3 {
		t.Errorf("Expected between 2 and 3 concurrent calls, got %d", max)
	}
}

func TestRunEmpty(t *testing.T) {
	results, err := Run(context.Background(), 1, &mockRecognizer{}, countFriend, nil, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}
