package discovery

import (
	"context"
	stderrors "errors"
	"testing"

	"friendbot/pkg/config"
	"friendbot/pkg/counter"
	"friendbot/pkg/errors"
	"friendbot/pkg/logger"
	"friendbot/pkg/models"
	"friendbot/pkg/reddit"
	"friendbot/pkg/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeForum struct {
	results   []models.Submission
	searchErr error
	recent    []models.AuthoredItem
	searches  []reddit.SearchParams
}

func (f *fakeForum) Search(ctx context.Context, params reddit.SearchParams) ([]models.Submission, error) {
	f.searches = append(f.searches, params)
	return f.results, f.searchErr
}

func (f *fakeForum) RecentItems(ctx context.Context, limit int) ([]models.AuthoredItem, error) {
	return f.recent, nil
}

type fakeFetcher struct {
	err     error
	fetched []int
}

func (f *fakeFetcher) Fetch(ctx context.Context, threadURL string, chapter int) ([]string, error) {
	f.fetched = append(f.fetched, chapter)
	if f.err != nil {
		return nil, f.err
	}
	return []string{"01.png"}, nil
}

type fakeCounter struct {
	totals map[int]int
	err    error
}

func (f *fakeCounter) Count(ctx context.Context, chapter int) (*counter.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &counter.Result{Chapter: chapter, Total: f.totals[chapter]}, nil
}

type fakeStore struct {
	saves int
	err   error
	last  []models.ChapterRecord
}

func (f *fakeStore) Save(chapters *state.Chapters) error {
	if f.err != nil {
		return f.err
	}
	f.saves++
	f.last = chapters.Records()
	return nil
}

type fakeLedger struct {
	marked map[string]int
}

func (f *fakeLedger) Has(submission string) (bool, error) {
	_, ok := f.marked[submission]
	return ok, nil
}

func (f *fakeLedger) Mark(submission string, chapter int) error {
	if f.marked == nil {
		f.marked = make(map[string]int)
	}
	f.marked[submission] = chapter
	return nil
}

type fakePoster struct {
	posts []models.Submission
	err   error
}

func (f *fakePoster) Post(ctx context.Context, sub models.Submission, records []models.ChapterRecord) error {
	if f.err != nil {
		return f.err
	}
	f.posts = append(f.posts, sub)
	return nil
}

type harness struct {
	forum    *fakeForum
	fetcher  *fakeFetcher
	counter  *fakeCounter
	store    *fakeStore
	ledger   *fakeLedger
	poster   *fakePoster
	chapters *state.Chapters
	log      *logger.TestLogger
	engine   *Engine
}

func newHarness(t *testing.T, subs ...models.Submission) *harness {
	t.Helper()
	h := &harness{
		forum:    &fakeForum{results: subs},
		fetcher:  &fakeFetcher{},
		counter:  &fakeCounter{totals: map[int]int{102: 7, 103: 3}},
		store:    &fakeStore{},
		ledger:   &fakeLedger{},
		poster:   &fakePoster{},
		chapters: &state.Chapters{},
		log:      logger.NewTestLogger(),
	}
	h.engine = NewEngine(Deps{
		Forum:    h.forum,
		Fetcher:  h.fetcher,
		Counter:  h.counter,
		Store:    h.store,
		Chapters: h.chapters,
		Ledger:   h.ledger,
		Reporter: h.poster,
	}, Options{Limit: 25}, h.log)
	return h
}

var edensZeroJob = Job{Source: "EdensZero", Query: "Chapter", Marker: "links + discussion"}

func thread(id, title string) models.Submission {
	return models.Submission{ID: id, Name: "t3_" + id, Title: title, URL: "https://host/" + id, Subreddit: "EdensZero"}
}

func TestExtractChapterNumber(t *testing.T) {
	tests := []struct {
		title string
		want  int
		ok    bool
	}{
		{"chapter 102 links + discussion", 102, true},
		{"Chapter 102 Links + Discussion", 102, true},
		{"[disc] eden's zero - chapter  7", 7, true},
		{"chapter 5 and chapter 6", 5, true},
		{"chapter links + discussion", 0, false},
		{"chapter102", 0, false},
		{"chapter 0", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got, ok := ExtractChapterNumber(tt.title)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobsFromConfig(t *testing.T) {
	jobs := JobsFromConfig(config.DefaultConfig().Sources)
	require.Len(t, jobs, 2)
	assert.Equal(t, Job{Source: "manga", Query: "Eden's Zero", Marker: "[disc]"}, jobs[0])
	assert.Equal(t, edensZeroJob, jobs[1])
}

func TestRunJobHandlesNewChapter(t *testing.T) {
	h := newHarness(t, thread("a1", "Chapter 102 Links + Discussion"))

	require.NoError(t, h.engine.RunJob(context.Background(), edensZeroJob))

	assert.Equal(t, []int{102}, h.fetcher.fetched)
	assert.Equal(t, 1, h.store.saves)
	assert.Equal(t, []models.ChapterRecord{{Chapter: 102, Count: 7}}, h.store.last)
	require.Len(t, h.poster.posts, 1)
	assert.Equal(t, "t3_a1", h.poster.posts[0].Fullname())
	assert.Equal(t, 102, h.ledger.marked["t3_a1"])

	require.Len(t, h.forum.searches, 1)
	assert.Equal(t, reddit.SearchParams{Subreddit: "EdensZero", Query: "Chapter", Window: "day", Limit: 25}, h.forum.searches[0])
	assert.True(t, h.log.HasMessage("Checking for new chapter"))
}

func TestRunJobSkipsTitlesWithoutMarker(t *testing.T) {
	h := newHarness(t,
		thread("a1", "Chapter 102 spoilers"),
		thread("a2", "Chapter 103 [disc]"),
	)

	require.NoError(t, h.engine.RunJob(context.Background(), edensZeroJob))

	assert.Empty(t, h.fetcher.fetched)
	assert.Equal(t, 0, h.store.saves)
	assert.Empty(t, h.poster.posts)
}

func TestRunJobIsIdempotent(t *testing.T) {
	h := newHarness(t, thread("a1", "Chapter 102 Links + Discussion"))

	require.NoError(t, h.engine.RunJob(context.Background(), edensZeroJob))
	require.NoError(t, h.engine.RunJob(context.Background(), edensZeroJob))

	assert.Len(t, h.poster.posts, 1)
	assert.Equal(t, 1, h.store.saves)
	assert.Equal(t, 1, h.chapters.Len())
}

func TestRunJobSkipsCountedChapter(t *testing.T) {
	h := newHarness(t, thread("a1", "Chapter 102 Links + Discussion"))
	require.NoError(t, h.chapters.Record(102, 4))

	require.NoError(t, h.engine.RunJob(context.Background(), edensZeroJob))

	assert.Empty(t, h.fetcher.fetched)
	assert.Empty(t, h.poster.posts)
}

func TestRunJobSkipsThreadAlreadyRepliedTo(t *testing.T) {
	t.Run("recent items", func(t *testing.T) {
		h := newHarness(t, thread("a1", "Chapter 102 Links + Discussion"))
		h.forum.recent = []models.AuthoredItem{{Kind: "t1", Name: "t1_x", LinkID: "t3_a1"}}

		require.NoError(t, h.engine.RunJob(context.Background(), edensZeroJob))
		assert.Empty(t, h.fetcher.fetched)
	})

	t.Run("reply log", func(t *testing.T) {
		h := newHarness(t, thread("a1", "Chapter 102 Links + Discussion"))
		require.NoError(t, h.ledger.Mark("t3_a1", 102))

		require.NoError(t, h.engine.RunJob(context.Background(), edensZeroJob))
		assert.Empty(t, h.fetcher.fetched)
	})
}

func TestRunJobSwallowsServerError(t *testing.T) {
	h := newHarness(t)
	h.forum.searchErr = errors.New(errors.ErrorTypeServerError, 503, "unavailable")

	require.NoError(t, h.engine.RunJob(context.Background(), edensZeroJob))
	assert.True(t, h.log.HasMessage("Error searching for a new chapter"))
}

func TestRunJobReturnsOtherSearchErrors(t *testing.T) {
	h := newHarness(t)
	h.forum.searchErr = errors.New(errors.ErrorTypeAuth, 401, "bad token")

	err := h.engine.RunJob(context.Background(), edensZeroJob)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuth))
}

func TestRunJobFetchFailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, thread("a1", "Chapter 102 Links + Discussion"))
	h.fetcher.err = stderrors.New("no download link")

	require.Error(t, h.engine.RunJob(context.Background(), edensZeroJob))

	assert.Equal(t, 0, h.chapters.Len())
	assert.Equal(t, 0, h.store.saves)
	assert.Empty(t, h.poster.posts)

	// next cycle retries from scratch
	h.fetcher.err = nil
	require.NoError(t, h.engine.RunJob(context.Background(), edensZeroJob))
	assert.Len(t, h.poster.posts, 1)
}

func TestRunJobCountFailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, thread("a1", "Chapter 102 Links + Discussion"))
	h.counter.err = errors.New(errors.ErrorTypeNetwork, 0, "connection reset")

	require.Error(t, h.engine.RunJob(context.Background(), edensZeroJob))

	assert.Equal(t, 0, h.chapters.Len())
	assert.Equal(t, 0, h.store.saves)
	assert.Empty(t, h.poster.posts)
}

func TestRunJobReplyFailureKeepsCount(t *testing.T) {
	h := newHarness(t, thread("a1", "Chapter 102 Links + Discussion"))
	h.poster.err = errors.New(errors.ErrorTypeRateLimit, 429, "slow down")

	require.Error(t, h.engine.RunJob(context.Background(), edensZeroJob))

	assert.True(t, h.chapters.Has(102))
	assert.Equal(t, 1, h.store.saves)
	assert.Empty(t, h.ledger.marked)
}

func TestRunJobCleanup(t *testing.T) {
	h := newHarness(t, thread("a1", "Chapter 102 Links + Discussion"))
	var cleaned []int
	h.engine.opts.Cleanup = func(chapter int) error {
		cleaned = append(cleaned, chapter)
		return nil
	}

	require.NoError(t, h.engine.RunJob(context.Background(), edensZeroJob))
	assert.Equal(t, []int{102}, cleaned)
}

func TestRunJobSaveFailureForgetsChapter(t *testing.T) {
	h := newHarness(t, thread("abc", "Chapter 102 Links + Discussion"))
	h.store.err = stderrors.New("disk full")

	err := h.engine.RunJob(context.Background(), edensZeroJob)
	require.Error(t, err)
	assert.False(t, h.chapters.Has(102))
	assert.Empty(t, h.poster.posts)
	assert.Empty(t, h.ledger.marked)

	h.store.err = nil
	require.NoError(t, h.engine.RunJob(context.Background(), edensZeroJob))
	assert.Equal(t, []int{102, 102}, h.fetcher.fetched)
	assert.Equal(t, 1, h.store.saves)
	assert.Equal(t, []models.ChapterRecord{{Chapter: 102, Count: 7}}, h.store.last)
	require.Len(t, h.poster.posts, 1)
	assert.Equal(t, 102, h.ledger.marked["t3_abc"])
}
