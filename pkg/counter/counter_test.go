package counter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"friendbot/pkg/logger"
	"friendbot/pkg/metadata"
	"friendbot/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// textRecognizer maps page bytes to canned OCR output
type textRecognizer struct {
	texts map[string]string
	err   error
}

func (r *textRecognizer) RecognizeText(ctx context.Context, image []byte) (string, bool, error) {
	if r.err != nil {
		return "", false, r.err
	}
	text, ok := r.texts[string(image)]
	if !ok {
		return "", false, nil
	}
	return text, true, nil
}

func setupChapter(t *testing.T, chapter int, pages map[string]string) *storage.Manager {
	t.Helper()
	mgr, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, mgr.Reset(chapter))
	for name, content := range pages {
		require.NoError(t, os.WriteFile(filepath.Join(mgr.ChapterDir(chapter), name), []byte(content), 0644))
	}
	return mgr
}

func TestCountOccurrences(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"a friend", 1},
		{"friend of a friend", 2},
		{"no match", 0},
		{"FRIENDS! Friendship", 2},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CountOccurrences(tt.text, "friend"), tt.text)
	}
	assert.Equal(t, 0, CountOccurrences("anything", ""))
}

func TestCountSumsPages(t *testing.T) {
	mgr := setupChapter(t, 102, map[string]string{
		"01.png": "img1",
		"02.png": "img2",
		"03.png": "img3",
	})
	rec := &textRecognizer{texts: map[string]string{
		"img1": "a friend",
		"img2": "friend of a friend",
		"img3": "no match",
	}}

	c := New(mgr, rec, Options{Word: "friend", Workers: 2, WriteReport: true}, logger.NewTestLogger())
	result, err := c.Count(context.Background(), 102)
	require.NoError(t, err)

	assert.Equal(t, 102, result.Chapter)
	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Report.Pages, 3)
	assert.Equal(t, "01.png", result.Report.Pages[0].Name)

	saved, err := metadata.Load(mgr.ReportPath(102))
	require.NoError(t, err)
	assert.Equal(t, 3, saved.Total)
}

func TestCountAbsentTextContributesZero(t *testing.T) {
	mgr := setupChapter(t, 5, map[string]string{
		"01.png": "img1",
		"02.png": "blank",
	})
	rec := &textRecognizer{texts: map[string]string{"img1": "Friend"}}

	result, err := New(mgr, rec, Options{}, logger.NewTestLogger()).Count(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, []string{"02.png"}, result.Report.PagesWithoutText())
}

func TestCountPropagatesOCRFailure(t *testing.T) {
	mgr := setupChapter(t, 7, map[string]string{"01.png": "img1"})
	rec := &textRecognizer{err: errors.New("vision unavailable")}
	log := logger.NewTestLogger()

	_, err := New(mgr, rec, Options{}, log).Count(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vision unavailable")
	assert.True(t, log.HasMessage("Chapter count failed"))
	assert.False(t, metadata.Exists(mgr.ReportPath(7)))
}

func TestCountMissingChapter(t *testing.T) {
	mgr, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = New(mgr, &textRecognizer{}, Options{}, logger.NewTestLogger()).Count(context.Background(), 99)
	assert.Error(t, err)
}

func TestCountDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("img"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("img"), 0644))

	rec := &textRecognizer{texts: map[string]string{"img": "my friend, my friend"}}
	result, err := New(nil, rec, Options{Word: "friend"}, logger.NewTestLogger()).CountDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Len(t, result.Report.Pages, 1)
}
