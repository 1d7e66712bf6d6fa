// Package metadata writes the per-chapter scan report.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ScanReport describes one counted chapter
type ScanReport struct {
	Chapter    int          `json:"chapter"`
	Word       string       `json:"word"`
	Total      int          `json:"total"`
	Submission string       `json:"submission,omitempty"`
	ThreadURL  string       `json:"thread_url,omitempty"`
	Pages      []PageReport `json:"pages"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// PageReport holds the OCR outcome for one page
type PageReport struct {
	Name       string `json:"name"`
	Bytes      int    `json:"bytes"`
	TextFound  bool   `json:"text_found"`
	Count      int    `json:"count"`
	DurationMs int64  `json:"duration_ms"`
}

// Duration returns how long the scan took
func (r *ScanReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// PagesWithoutText returns the names of pages OCR found no text on
func (r *ScanReport) PagesWithoutText() []string {
	var names []string
	for _, p := range r.Pages {
		if !p.TextFound {
			names = append(names, p.Name)
		}
	}
	return names
}

// TopPages returns up to n pages with the highest counts
func (r *ScanReport) TopPages(n int) []PageReport {
	pages := make([]PageReport, 0, len(r.Pages))
	for _, p := range r.Pages {
		if p.Count > 0 {
			pages = append(pages, p)
		}
	}
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Count > pages[j].Count
	})
	if n > 0 && len(pages) > n {
		pages = pages[:n]
	}
	return pages
}

// Save writes the report as indented JSON
func (r *ScanReport) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	return nil
}

// Load reads a report from a JSON file
func Load(path string) (*ScanReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report ScanReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &report, nil
}

// Exists checks if a report file exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
