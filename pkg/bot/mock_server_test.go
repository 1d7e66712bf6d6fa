package bot

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zip"
)

// mockServices simulates Reddit, Vision and the chapter host on one server
type mockServices struct {
	server   *httptest.Server
	threads  map[string][]map[string]interface{}
	archives map[string][]byte

	mu           sync.Mutex
	replies      []map[string]string
	searchStatus map[string]int
	ocrCalls     int32
}

func newMockServices(t *testing.T) *mockServices {
	t.Helper()
	m := &mockServices{
		threads:      make(map[string][]map[string]interface{}),
		archives:     make(map[string][]byte),
		searchStatus: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", m.handleToken)
	mux.HandleFunc("/r/", m.handleSearch)
	mux.HandleFunc("/user/friendbot/overview", m.handleOverview)
	mux.HandleFunc("/api/comment", m.handleComment)
	mux.HandleFunc("/v1/images:annotate", m.handleAnnotate)
	mux.HandleFunc("/thread/", m.handleThread)
	mux.HandleFunc("/files/", m.handleArchive)

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

// addThread publishes a chapter thread whose archive holds the given pages
func (m *mockServices) addThread(t *testing.T, subreddit, id, title string, pages map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range pages {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	m.archives[id] = buf.Bytes()

	m.threads[subreddit] = append(m.threads[subreddit], map[string]interface{}{
		"kind": "t3",
		"data": map[string]interface{}{
			"id":        id,
			"name":      "t3_" + id,
			"title":     title,
			"url":       m.server.URL + "/thread/" + id,
			"subreddit": subreddit,
		},
	})
}

func (m *mockServices) handleToken(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": "tok",
		"token_type":   "bearer",
		"expires_in":   3600,
	})
}

func (m *mockServices) handleSearch(w http.ResponseWriter, r *http.Request) {
	subreddit := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/r/"), "/search")

	m.mu.Lock()
	status := m.searchStatus[subreddit]
	m.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		return
	}

	children := m.threads[subreddit]
	if children == nil {
		children = []map[string]interface{}{}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"kind": "Listing",
		"data": map[string]interface{}{"children": children},
	})
}

func (m *mockServices) handleOverview(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	children := []map[string]interface{}{}
	for i, reply := range m.replies {
		children = append(children, map[string]interface{}{
			"kind": "t1",
			"data": map[string]interface{}{
				"name":    fmt.Sprintf("t1_r%d", i),
				"link_id": reply["thing_id"],
			},
		})
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"kind": "Listing",
		"data": map[string]interface{}{"children": children},
	})
}

func (m *mockServices) handleComment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.replies = append(m.replies, map[string]string{
		"thing_id": r.Form.Get("thing_id"),
		"text":     r.Form.Get("text"),
	})
	m.mu.Unlock()
	w.Write([]byte(`{"json":{"errors":[],"data":{"things":[]}}}`))
}

// handleAnnotate echoes each image's bytes back as its recognised text
func (m *mockServices) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.ocrCalls, 1)

	var req struct {
		Requests []struct {
			Image struct {
				Content string `json:"content"`
			} `json:"image"`
		} `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Requests) != 1 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	data, _ := base64.StdEncoding.DecodeString(req.Requests[0].Image.Content)
	if len(data) == 0 {
		w.Write([]byte(`{"responses":[{}]}`))
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"responses": []interface{}{
			map[string]interface{}{"fullTextAnnotation": map[string]string{"text": string(data)}},
		},
	})
}

func (m *mockServices) handleThread(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[len("/thread/"):]
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, `<html><body><a href="/read/%s">read</a><a href="/files/%s.zip">download</a></body></html>`, id, id)
}

func (m *mockServices) handleArchive(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/files/"), ".zip")
	data, ok := m.archives[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write(data)
}

func (m *mockServices) getReplies() []map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]string, len(m.replies))
	copy(out, m.replies)
	return out
}

func (m *mockServices) setSearchStatus(subreddit string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchStatus[subreddit] = status
}
