package parser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed/rss"

	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/geotag"
)

// Entry is one feed item before geo-tagging.
type Entry struct {
	Item       domain.FeedItem
	Categories []geotag.Category
}

// RSSReader downloads and parses RSS 2.0 documents.
type RSSReader struct {
	client *http.Client
}

// NewRSSReader wires an HTTP client; nil gets a client with a 20s timeout.
func NewRSSReader(client *http.Client) *RSSReader {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &RSSReader{client: client}
}

// Read returns the entries of the feed at feedURL in document order.
// Entries without a title are dropped, as are repeated links.
func (r *RSSReader) Read(ctx context.Context, feedURL string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsAtlas/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	fp := rss.Parser{}
	feed, err := fp.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	seen := map[string]struct{}{}
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		entry := toEntry(it)
		if entry.Item.Title == "" {
			continue
		}
		if link := entry.Item.Link; link != "" {
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func toEntry(it *rss.Item) Entry {
	summary := it.Description
	if summary == "" {
		summary = it.Content
	}

	categories := make([]geotag.Category, 0, len(it.Categories))
	for _, c := range it.Categories {
		if c == nil {
			continue
		}
		categories = append(categories, geotag.Category{Domain: c.Domain, Value: c.Value})
	}

	return Entry{
		Item: domain.FeedItem{
			Title:     cleanHTML(it.Title),
			Summary:   cleanHTML(summary),
			Link:      strings.TrimSpace(it.Link),
			Published: strings.TrimSpace(it.PubDate),
		},
		Categories: categories,
	}
}

// cleanHTML flattens markup some feeds embed in descriptions.
func cleanHTML(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
