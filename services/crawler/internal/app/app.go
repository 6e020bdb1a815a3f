package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"lexilegal/pkg/domain"
	"lexilegal/pkg/events"
	"lexilegal/pkg/store"
)

// Source is one watched legal page.
type Source struct {
	Name     string
	URL      string
	Selector string
}

// CrawlResult summarizes one crawl pass over a source.
type CrawlResult struct {
	Source     string              `json:"source"`
	URL        string              `json:"url"`
	FirstCheck bool                `json:"firstCheck"`
	Changed    bool                `json:"changed"`
	Update     *domain.LegalUpdate `json:"update,omitempty"`
}

// Config holds runtime configuration for the crawler core.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Publisher   events.Publisher
	HTTPClient  *http.Client
	Sources     []Source
	Interval    time.Duration
}

// App detects changes on watched legal sources.
type App struct {
	store      store.Store
	publisher  events.Publisher
	httpClient *http.Client
	sources    []Source
	interval   time.Duration
}

// New constructs the crawler core.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return &App{
		store:      dataStore,
		publisher:  cfg.Publisher,
		httpClient: client,
		sources:    cfg.Sources,
		interval:   interval,
	}, nil
}

// Crawl checks one source for changes. The first check records baseline
// state and still emits an update so subscribers see the source exists.
// The stored hash is advanced with a compare-and-swap, so concurrent runs
// over the same source record the change exactly once.
func (a *App) Crawl(ctx context.Context, src Source) (CrawlResult, error) {
	url := strings.TrimSpace(src.URL)
	if url == "" {
		return CrawlResult{}, errors.New("source url required")
	}
	selector := strings.TrimSpace(src.Selector)
	if selector == "" {
		selector = "body"
	}
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = url
	}
	result := CrawlResult{Source: name, URL: url}

	content, err := a.fetchContent(ctx, url, selector)
	if err != nil {
		return result, err
	}
	now := time.Now().UTC()

	state, found, err := a.store.GetCrawlerState(url)
	if err != nil {
		return result, fmt.Errorf("load crawler state: %w", err)
	}
	if !found {
		if err := a.store.InsertCrawlerState(domain.CrawlerState{
			ID:              uuid.NewString(),
			SourceURL:       url,
			ContentSelector: selector,
			LastContentHash: content.Hash,
			LastCheckedAt:   now,
			LastSnippet:     content.Snippet,
		}); err != nil {
			// A concurrent run inserted first; treat this pass as unchanged.
			slog.Warn("crawler state insert lost race", "source", name, "error", err)
			return result, nil
		}
		update, err := a.recordUpdate(ctx, name, content, now)
		if err != nil {
			return result, err
		}
		result.FirstCheck = true
		result.Changed = true
		result.Update = &update
		return result, nil
	}

	if state.LastContentHash == content.Hash {
		if err := a.store.TouchCrawlerState(url, now); err != nil {
			return result, fmt.Errorf("touch crawler state: %w", err)
		}
		return result, nil
	}

	swapped, err := a.store.SwapCrawlerHash(url, state.LastContentHash, content.Hash, content.Snippet, now)
	if err != nil {
		return result, fmt.Errorf("swap crawler hash: %w", err)
	}
	if !swapped {
		slog.Info("crawler hash swap lost race", "source", name)
		return result, nil
	}
	update, err := a.recordUpdate(ctx, name, content, now)
	if err != nil {
		return result, err
	}
	result.Changed = true
	result.Update = &update
	return result, nil
}

// recordUpdate inserts the update row and publishes it. Every detected
// change is flagged new; the flag marks an unseen update for readers, not
// the baseline row.
func (a *App) recordUpdate(ctx context.Context, source string, content pageContent, now time.Time) (domain.LegalUpdate, error) {
	update := domain.LegalUpdate{
		ID:          uuid.NewString(),
		Source:      source,
		Title:       content.Title,
		Description: content.Snippet,
		URL:         content.Link,
		PublishedAt: now,
		IsNew:       true,
	}
	if err := a.store.InsertLegalUpdate(update); err != nil {
		return domain.LegalUpdate{}, fmt.Errorf("insert legal update: %w", err)
	}
	if a.publisher != nil {
		err := a.publisher.PublishLegalUpdate(ctx, events.LegalUpdateEvent{
			UpdateID:    update.ID,
			Source:      update.Source,
			Title:       update.Title,
			Description: update.Description,
			URL:         update.URL,
			DetectedAt:  now,
			IsNew:       update.IsNew,
		})
		if err != nil {
			// The update row is already recorded; subscribers catch up on
			// the next detected change.
			slog.Error("publish legal update", "update_id", update.ID, "error", err)
		}
	}
	return update, nil
}

// CrawlAll checks every configured source, continuing past failures.
func (a *App) CrawlAll(ctx context.Context) []CrawlResult {
	results := make([]CrawlResult, 0, len(a.sources))
	for _, src := range a.sources {
		result, err := a.Crawl(ctx, src)
		if err != nil {
			slog.Error("crawl source", "source", src.Name, "url", src.URL, "error", err)
			continue
		}
		results = append(results, result)
	}
	return results
}

// Start runs the interval scheduler until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		a.CrawlAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.CrawlAll(ctx)
			}
		}
	}()
}

// ListUpdates returns the latest detected updates.
func (a *App) ListUpdates(limit int) ([]domain.LegalUpdate, error) {
	return a.store.ListLegalUpdates(limit)
}
