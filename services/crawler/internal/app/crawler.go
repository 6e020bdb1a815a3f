package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Spoofed desktop UA: several government sites reject default Go clients.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const (
	titleLength   = 100
	snippetLength = 200
)

// pageContent is what one crawl pass extracts from a source.
type pageContent struct {
	Hash    string
	Title   string
	Link    string
	Snippet string
}

func (a *App) fetchContent(ctx context.Context, url, selector string) (pageContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pageContent{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "es-PA,es;q=0.9")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return pageContent{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pageContent{}, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return pageContent{}, fmt.Errorf("parse html: %w", err)
	}
	region := doc.Find(selector).First()
	if region.Length() == 0 {
		return pageContent{}, ErrSelectorNotFound
	}
	regionHTML, err := goquery.OuterHtml(region)
	if err != nil {
		return pageContent{}, fmt.Errorf("serialize region: %w", err)
	}
	sum := sha256.Sum256([]byte(regionHTML))
	return pageContent{
		Hash:    hex.EncodeToString(sum[:]),
		Title:   extractTitle(region),
		Link:    extractLink(region, url),
		Snippet: makeSnippet(region.Text()),
	}, nil
}

// extractTitle prefers headings, then title-ish classes, then a text prefix.
func extractTitle(region *goquery.Selection) string {
	if title := firstText(region, "h1, h2, h3, h4"); title != "" {
		return title
	}
	if title := firstText(region, ".title, .titulo"); title != "" {
		return title
	}
	return truncateText(collapseWhitespace(region.Text()), titleLength)
}

func firstText(region *goquery.Selection, selector string) string {
	var found string
	region.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := collapseWhitespace(sel.Text())
		if text == "" {
			return true
		}
		found = text
		return false
	})
	return found
}

// extractLink returns the region's first absolute link, or the page URL.
func extractLink(region *goquery.Selection, pageURL string) string {
	var found string
	region.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			return true
		}
		found = href
		return false
	})
	if found == "" {
		return pageURL
	}
	return found
}

func makeSnippet(text string) string {
	return truncateText(collapseWhitespace(text), snippetLength)
}

// truncateText cuts on a rune boundary so accented text never ends in a
// partial byte sequence, and marks the cut with an ellipsis.
func truncateText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
