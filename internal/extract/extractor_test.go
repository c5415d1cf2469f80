package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chatlytics/internal/source"
	"chatlytics/internal/spill"
)

type fakeAPI struct {
	mu    sync.Mutex
	paths []string
	chats int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()

	if r.URL.Path == "/health" {
		w.Write([]byte(`{"status":"ok"}`))
		return
	}

	var items []json.RawMessage
	switch {
	case r.URL.Path == "/chats":
		for i := 1; i <= f.chats; i++ {
			items = append(items, json.RawMessage(fmt.Sprintf(
				`{"id":%d,"chat_type":"group","created_at":"2024-01-01T00:00:00Z"}`, i)))
		}
	case r.URL.Path == "/users":
		items = append(items, json.RawMessage(`{"id":1,"username":"ana","is_active":true,"created_at":"2024-01-01T00:00:00Z"}`))
	case strings.HasPrefix(r.URL.Path, "/chats/"):
		items = append(items, json.RawMessage(`{"id":900,"sender_id":1,"chat_id":1,"sent_at":"2024-01-02T10:00:00Z"}`))
	}
	json.NewEncoder(w).Encode(source.Page{
		Items:      items,
		Page:       1,
		PageSize:   250,
		Total:      len(items),
		TotalPages: 1,
	})
}

func (f *fakeAPI) sweptChats() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var swept []string
	for _, p := range f.paths {
		if strings.HasPrefix(p, "/chats/") {
			swept = append(swept, p)
		}
	}
	return swept
}

func newTestExtractor(t *testing.T, baseURL string, maxChats, hbEveryPages int) *Extractor {
	t.Helper()
	client := source.NewClient(source.ClientConfig{
		BaseURL:        baseURL,
		Concurrency:    4,
		RequestTimeout: 5 * time.Second,
		RetryTotal:     0,
		RetryBackoff:   time.Millisecond,
	}, zerolog.Nop())
	pages := source.NewPaginator(client, 250, zerolog.Nop())
	return NewExtractor(client, pages, maxChats, hbEveryPages, zerolog.Nop())
}

func TestRunSweepsBoundedChatPrefix(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{chats: 5}
	srv := httptest.NewServer(api)
	defer srv.Close()

	ex := newTestExtractor(t, srv.URL, 2, 5)
	w, err := spill.NewWriter(filepath.Join(t.TempDir(), "run-raw.ndjson"))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := ex.Run(context.Background(), w); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	swept := api.sweptChats()
	if len(swept) != 2 {
		t.Fatalf("swept %d chats (%v), want 2", len(swept), swept)
	}
	if swept[0] != "/chats/1/messages" || swept[1] != "/chats/2/messages" {
		t.Fatalf("swept %v, want the first two chat ids in order", swept)
	}

	// 1 user + 5 chats + 2 chat-sweep messages; messages/marketplace/
	// categories/sellers endpoints are empty in this fixture.
	if w.Rows() != 8 {
		t.Fatalf("Rows()=%d, want 8", w.Rows())
	}
}

func TestRunHeartbeatsEveryNPages(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{chats: 1}
	srv := httptest.NewServer(api)
	defer srv.Close()

	ex := newTestExtractor(t, srv.URL, 1, 2)
	var beats []Progress
	ex.Heartbeat = func(p Progress) { beats = append(beats, p) }

	w, err := spill.NewWriter(filepath.Join(t.TempDir(), "run-raw.ndjson"))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := ex.Run(context.Background(), w); err != nil {
		t.Fatalf("Run: %v", err)
	}
	w.Close()

	// 7 pages walked (6 global + 1 chat sweep) at one beat per 2 pages.
	if len(beats) != 3 {
		t.Fatalf("got %d heartbeats, want 3", len(beats))
	}
	if beats[len(beats)-1].TotalRows == 0 {
		t.Fatal("heartbeat should carry the running row count")
	}
}

func TestRunFailsWhenUnhealthy(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ex := newTestExtractor(t, srv.URL, 1, 5)
	w, err := spill.NewWriter(filepath.Join(t.TempDir(), "run-raw.ndjson"))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := ex.Run(context.Background(), w); err == nil {
		t.Fatal("expected health check failure")
	}
}

func TestRunEmptySourceReturnsErrNoData(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Write([]byte(`{"status":"ok"}`))
			return
		}
		json.NewEncoder(w).Encode(source.Page{Page: 1, PageSize: 250})
	}))
	defer srv.Close()

	ex := newTestExtractor(t, srv.URL, 1, 5)
	w, err := spill.NewWriter(filepath.Join(t.TempDir(), "run-raw.ndjson"))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := ex.Run(context.Background(), w); err != ErrNoData {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
