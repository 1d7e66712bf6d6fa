// Package fetcher downloads a chapter archive linked from a discussion thread
// and extracts its pages into chapter storage.
package fetcher

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"friendbot/pkg/errors"
	"friendbot/pkg/logger"
	"friendbot/pkg/storage"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/klauspost/compress/zip"
)

// DefaultSelector matches the first anchor pointing at a zip archive
const DefaultSelector = `a[href$=".zip"]`

var (
	// ErrLinkNotFound means the thread page has no element matching the selector
	ErrLinkNotFound = stderrors.New("download link not found")
	// ErrEmptyArchive means the archive held no page files
	ErrEmptyArchive = stderrors.New("archive contains no pages")
)

// PageStore receives extracted pages
type PageStore interface {
	Reset(chapter int) error
	SavePage(chapter int, name string, r io.Reader) (string, error)
}

// Options configures a Fetcher
type Options struct {
	Selector         string
	UserAgent        string
	Timeout          time.Duration
	MaxArchiveSize   int64
	CloudflareBypass bool
	HTTPClient       *http.Client
}

// Fetcher materialises chapter pages from a thread URL
type Fetcher struct {
	client     *http.Client
	store      PageStore
	selector   string
	userAgent  string
	maxArchive int64
	logger     logger.Logger
}

// New creates a Fetcher
func New(store PageStore, opts Options, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Selector == "" {
		opts.Selector = DefaultSelector
	}
	if opts.MaxArchiveSize <= 0 {
		opts.MaxArchiveSize = 512 << 20
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		var transport http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
		if opts.CloudflareBypass {
			transport = cloudflarebp.AddCloudFlareByPass(transport)
		}
		client = &http.Client{Timeout: timeout, Transport: transport}
	}

	return &Fetcher{
		client:     client,
		store:      store,
		selector:   opts.Selector,
		userAgent:  opts.UserAgent,
		maxArchive: opts.MaxArchiveSize,
		logger:     log.WithField("component", "fetcher"),
	}
}

// Fetch scrapes threadURL for the download link, downloads the archive and
// extracts every page into the chapter directory. It returns the stored paths.
func (f *Fetcher) Fetch(ctx context.Context, threadURL string, chapter int) ([]string, error) {
	link, err := f.DownloadLink(ctx, threadURL)
	if err != nil {
		return nil, err
	}

	f.logger.InfoWithFields("Downloading chapter archive", map[string]interface{}{
		"chapter": chapter,
		"archive": link,
	})

	data, err := f.download(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("download archive: %w", err)
	}

	paths, err := f.extract(chapter, data)
	if err != nil {
		return nil, fmt.Errorf("extract archive: %w", err)
	}

	f.logger.InfoWithFields("Chapter extracted", map[string]interface{}{
		"chapter": chapter,
		"pages":   len(paths),
		"bytes":   len(data),
	})
	return paths, nil
}

// DownloadLink returns the absolute URL of the first element matching the selector
func (f *Fetcher) DownloadLink(ctx context.Context, threadURL string) (string, error) {
	doc, err := f.fetchDOM(ctx, threadURL)
	if err != nil {
		return "", fmt.Errorf("fetch thread page: %w", err)
	}

	sel := doc.Find(f.selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: selector %q on %s", ErrLinkNotFound, f.selector, threadURL)
	}

	href, ok := sel.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", fmt.Errorf("%w: matched element has no href", ErrLinkNotFound)
	}

	return resolveURL(threadURL, strings.TrimSpace(href)), nil
}

func (f *Fetcher) fetchDOM(ctx context.Context, target string) (*goquery.Document, error) {
	resp, err := f.get(ctx, target)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return goquery.NewDocumentFromReader(resp.Body)
}

func (f *Fetcher) download(ctx context.Context, target string) ([]byte, error) {
	resp, err := f.get(ctx, target)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxArchive+1))
	if err != nil {
		return nil, errors.New(errors.ErrorTypeNetwork, resp.StatusCode, "read archive: %v", err)
	}
	if int64(len(data)) > f.maxArchive {
		return nil, fmt.Errorf("archive exceeds %d bytes", f.maxArchive)
	}
	return data, nil
}

func (f *Fetcher) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeNetwork, 0, "network error: %v", err)
	}
	logger.LogRequest(f.logger, req.Method, target, resp.StatusCode, time.Since(start).Milliseconds())

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, errors.New(errors.FromStatus(resp.StatusCode), resp.StatusCode, "GET %s returned %d", target, resp.StatusCode)
	}
	return resp, nil
}

// extract writes every page of the archive into a freshly reset chapter directory
func (f *Fetcher) extract(chapter int, data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	files := make([]*zip.File, 0, len(zr.File))
	for _, file := range zr.File {
		if isPage(file) {
			files = append(files, file)
		}
	}
	if len(files) == 0 {
		return nil, ErrEmptyArchive
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	if err := f.store.Reset(chapter); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	seen := make(map[string]bool, len(files))
	for _, file := range files {
		name := path.Base(file.Name)
		if seen[name] {
			// flattened names collide; keep the directory as a prefix
			name = strings.ReplaceAll(strings.Trim(file.Name, "/"), "/", "_")
		}
		seen[name] = true

		p, err := f.saveFile(chapter, name, file)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (f *Fetcher) saveFile(chapter int, name string, file *zip.File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer rc.Close()

	return f.store.SavePage(chapter, name, rc)
}

func isPage(file *zip.File) bool {
	if file.FileInfo().IsDir() {
		return false
	}
	name := strings.ReplaceAll(file.Name, "\\", "/")
	if strings.HasPrefix(name, "__MACOSX/") || strings.Contains(name, "/__MACOSX/") {
		return false
	}
	base := path.Base(name)
	return !strings.HasPrefix(base, ".") && storage.IsImage(base)
}

func resolveURL(baseURL, href string) string {
	if href == "" {
		return baseURL
	}

	u, err := url.Parse(href)
	if err == nil && u.IsAbs() {
		return u.String()
	}

	b, err := url.Parse(baseURL)
	if err != nil || u == nil {
		return href
	}

	return b.ResolveReference(u).String()
}
