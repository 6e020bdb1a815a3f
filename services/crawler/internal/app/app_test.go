package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"lexilegal/pkg/events"
	"lexilegal/pkg/store"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []events.LegalUpdateEvent
	err    error
}

func (f *fakePublisher) PublishLegalUpdate(_ context.Context, event events.LegalUpdateEvent) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func newCrawlerApp(t *testing.T, memStore *store.MemoryStore, pub events.Publisher) *App {
	t.Helper()
	a, err := New(Config{Store: memStore, Publisher: pub})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func pageServer(t *testing.T, body *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" || ua == "Go-http-client/1.1" {
			t.Errorf("crawler should send a browser user agent, got %q", ua)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(*body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlFirstCheckRecordsBaseline(t *testing.T) {
	body := `<html><body><div id="c"><h2>Ley 123 de 2026</h2><p>Texto de la norma.</p><a href="https://www.gacetaoficial.gob.pa/ley-123">Gaceta</a></div></body></html>`
	srv := pageServer(t, &body)
	memStore := store.NewMemoryStore()
	pub := &fakePublisher{}
	a := newCrawlerApp(t, memStore, pub)

	result, err := a.Crawl(context.Background(), Source{Name: "gaceta", URL: srv.URL, Selector: "#c"})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if !result.FirstCheck || !result.Changed || result.Update == nil {
		t.Fatalf("first check should record an update: %+v", result)
	}
	if result.Update.Title != "Ley 123 de 2026" {
		t.Fatalf("title = %q", result.Update.Title)
	}
	if result.Update.URL != "https://www.gacetaoficial.gob.pa/ley-123" {
		t.Fatalf("link = %q", result.Update.URL)
	}
	if !result.Update.IsNew {
		t.Fatalf("baseline update should be flagged new")
	}
	if pub.count() != 1 {
		t.Fatalf("published events = %d, want 1", pub.count())
	}
	state, found, _ := memStore.GetCrawlerState(srv.URL)
	if !found || state.LastContentHash == "" {
		t.Fatalf("crawler state not recorded: %+v", state)
	}
}

func TestCrawlUnchangedOnlyTouchesState(t *testing.T) {
	body := `<html><body><div id="c"><h3>Sin cambios</h3></div></body></html>`
	srv := pageServer(t, &body)
	memStore := store.NewMemoryStore()
	pub := &fakePublisher{}
	a := newCrawlerApp(t, memStore, pub)

	src := Source{Name: "organo", URL: srv.URL, Selector: "#c"}
	if _, err := a.Crawl(context.Background(), src); err != nil {
		t.Fatalf("first crawl: %v", err)
	}
	result, err := a.Crawl(context.Background(), src)
	if err != nil {
		t.Fatalf("second crawl: %v", err)
	}
	if result.Changed || result.Update != nil {
		t.Fatalf("unchanged content should not record an update: %+v", result)
	}
	updates, _ := memStore.ListLegalUpdates(10)
	if len(updates) != 1 {
		t.Fatalf("updates = %d, want only the baseline", len(updates))
	}
	if pub.count() != 1 {
		t.Fatalf("published events = %d, want 1", pub.count())
	}
}

func TestCrawlDetectsHashChange(t *testing.T) {
	body := `<html><body><div id="c"><h2>Resolución 1</h2></div></body></html>`
	srv := pageServer(t, &body)
	memStore := store.NewMemoryStore()
	pub := &fakePublisher{}
	a := newCrawlerApp(t, memStore, pub)

	src := Source{Name: "csj", URL: srv.URL, Selector: "#c"}
	if _, err := a.Crawl(context.Background(), src); err != nil {
		t.Fatalf("first crawl: %v", err)
	}
	body = `<html><body><div id="c"><h2>Resolución 2</h2></div></body></html>`
	result, err := a.Crawl(context.Background(), src)
	if err != nil {
		t.Fatalf("second crawl: %v", err)
	}
	if !result.Changed || result.Update == nil {
		t.Fatalf("changed content should record an update: %+v", result)
	}
	if !result.Update.IsNew {
		t.Fatalf("detected change should be flagged new for readers")
	}
	if result.Update.Title != "Resolución 2" {
		t.Fatalf("title = %q", result.Update.Title)
	}
	state, _, _ := memStore.GetCrawlerState(srv.URL)
	if state.UpdateDetectedAt == nil {
		t.Fatalf("updateDetectedAt not set after change")
	}
	if pub.count() != 2 {
		t.Fatalf("published events = %d, want baseline + change", pub.count())
	}
}

func TestMakeSnippetKeepsAccentedRunesIntact(t *testing.T) {
	long := strings.Repeat("x", 150) + strings.Repeat("á", 100)
	snippet := makeSnippet(long)
	if !utf8.ValidString(snippet) {
		t.Fatalf("snippet contains invalid UTF-8: %q", snippet)
	}
	if !strings.HasSuffix(snippet, "...") {
		t.Fatalf("truncated snippet should end with ellipsis: %q", snippet)
	}
	if got := utf8.RuneCountInString(snippet); got != snippetLength+3 {
		t.Fatalf("snippet rune count = %d, want %d", got, snippetLength+3)
	}

	short := "Artículo 1. Señalamiento."
	if makeSnippet(short) != short {
		t.Fatalf("short text should pass through unchanged")
	}
}

func TestCrawlTitlePrefixTruncatesOnRuneBoundary(t *testing.T) {
	body := `<html><body><div id="c"><p>` + strings.Repeat("ñ", 140) + `</p></div></body></html>`
	srv := pageServer(t, &body)
	a := newCrawlerApp(t, store.NewMemoryStore(), &fakePublisher{})

	result, err := a.Crawl(context.Background(), Source{Name: "rp", URL: srv.URL, Selector: "#c"})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	title := result.Update.Title
	if !utf8.ValidString(title) {
		t.Fatalf("title contains invalid UTF-8: %q", title)
	}
	if !strings.HasSuffix(title, "...") {
		t.Fatalf("long text-prefix title should end with ellipsis: %q", title)
	}
}

func TestCrawlSelectorNotFound(t *testing.T) {
	body := `<html><body><div id="other">x</div></body></html>`
	srv := pageServer(t, &body)
	a := newCrawlerApp(t, store.NewMemoryStore(), &fakePublisher{})

	_, err := a.Crawl(context.Background(), Source{URL: srv.URL, Selector: "#missing"})
	if !errors.Is(err, ErrSelectorNotFound) {
		t.Fatalf("expected ErrSelectorNotFound, got %v", err)
	}
}

func TestCrawlFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	a := newCrawlerApp(t, store.NewMemoryStore(), &fakePublisher{})

	_, err := a.Crawl(context.Background(), Source{URL: srv.URL, Selector: "body"})
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", fetchErr.StatusCode)
	}
}

func TestCrawlTitleFallsBackToTextPrefix(t *testing.T) {
	body := `<html><body><div id="c"><p>Aviso sin encabezado sobre nuevas tarifas registrales.</p></div></body></html>`
	srv := pageServer(t, &body)
	a := newCrawlerApp(t, store.NewMemoryStore(), &fakePublisher{})

	result, err := a.Crawl(context.Background(), Source{Name: "rp", URL: srv.URL, Selector: "#c"})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if result.Update == nil || result.Update.Title == "" {
		t.Fatalf("expected text-prefix title, got %+v", result.Update)
	}
	if result.Update.URL != srv.URL {
		t.Fatalf("link should fall back to the page url, got %q", result.Update.URL)
	}
}

func TestCrawlPublishFailureStillRecordsUpdate(t *testing.T) {
	body := `<html><body><div id="c"><h2>Decreto 5</h2></div></body></html>`
	srv := pageServer(t, &body)
	memStore := store.NewMemoryStore()
	a := newCrawlerApp(t, memStore, &fakePublisher{err: errors.New("broker down")})

	result, err := a.Crawl(context.Background(), Source{Name: "mici", URL: srv.URL, Selector: "#c"})
	if err != nil {
		t.Fatalf("crawl should tolerate publish failure: %v", err)
	}
	if result.Update == nil {
		t.Fatalf("update should still be recorded")
	}
	updates, _ := memStore.ListLegalUpdates(10)
	if len(updates) != 1 {
		t.Fatalf("updates = %d", len(updates))
	}
}
