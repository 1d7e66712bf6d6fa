package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"friendbot/pkg/models"
)

const tempSuffix = ".tmp"

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// IsImage reports whether name has a page image extension
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// Manager handles chapter page directories
type Manager struct {
	root string
	mu   sync.Mutex
}

// NewManager creates a new storage manager rooted at root
func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chapters directory: %w", err)
	}
	return &Manager{root: root}, nil
}

// Root returns the root directory
func (m *Manager) Root() string {
	return m.root
}

// ChapterDir returns the directory holding a chapter's pages
func (m *Manager) ChapterDir(chapter int) string {
	return filepath.Join(m.root, strconv.Itoa(chapter))
}

// ReportPath returns where the scan report for a chapter is written
func (m *Manager) ReportPath(chapter int) string {
	return filepath.Join(m.root, fmt.Sprintf("chapter-%d.json", chapter))
}

// Reset empties a chapter directory, creating it if needed
func (m *Manager) Reset(chapter int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := m.ChapterDir(chapter)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear chapter directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create chapter directory: %w", err)
	}
	return nil
}

// SavePage writes a page into the chapter directory and returns its path.
// Only the base name is used so archive paths cannot escape the directory.
func (m *Manager) SavePage(chapter int, name string, r io.Reader) (string, error) {
	base := filepath.Base(filepath.Clean("/" + filepath.ToSlash(name)))
	if base == "/" || base == "." || base == "" {
		return "", fmt.Errorf("invalid page name %q", name)
	}

	dir := m.ChapterDir(chapter)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create chapter directory: %w", err)
	}

	filename := filepath.Join(dir, base)
	tempFile := filename + tempSuffix
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to save page data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return filename, nil
}

// Pages lists the pages stored for a chapter
func (m *Manager) Pages(chapter int) ([]models.Page, error) {
	pages, err := ListPages(m.ChapterDir(chapter))
	if err != nil {
		return nil, err
	}
	for i := range pages {
		pages[i].Chapter = chapter
	}
	return pages, nil
}

// Remove deletes a chapter directory
func (m *Manager) Remove(chapter int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.RemoveAll(m.ChapterDir(chapter)); err != nil {
		return fmt.Errorf("failed to remove chapter directory: %w", err)
	}
	return nil
}

// ListPages returns the page images in dir sorted by name
func ListPages(dir string) ([]models.Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var pages []models.Page
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !IsImage(name) {
			continue
		}
		pages = append(pages, models.Page{Name: name, Path: filepath.Join(dir, name)})
	}

	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Name < pages[j].Name
	})
	return pages, nil
}
