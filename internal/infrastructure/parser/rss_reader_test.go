package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/geotag"
)

const nytFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>NYT &gt; Business</title>
    <link>https://www.nytimes.com/section/business</link>
    <item>
      <title>Trade Talks Stall</title>
      <link>https://www.nytimes.com/2024/03/01/business/trade.html</link>
      <description>Tariff dispute &lt;b&gt;continues&lt;/b&gt;.</description>
      <pubDate>Fri, 01 Mar 2024 10:00:00 +0000</pubDate>
      <category domain="http://www.nytimes.com/namespaces/keywords/des">International Trade</category>
      <category domain="http://www.nytimes.com/namespaces/keywords/nyt_geo">Tokyo (Japan)</category>
      <category domain="http://www.nytimes.com/namespaces/keywords/nyt_geo">Japan</category>
    </item>
    <item>
      <title>Markets Rally</title>
      <link>https://www.nytimes.com/2024/03/01/business/markets.html</link>
      <description>Stocks rose.</description>
      <category>Markets</category>
    </item>
    <item>
      <title>Trade Talks Stall (updated)</title>
      <link>https://www.nytimes.com/2024/03/01/business/trade.html</link>
      <description>Duplicate link.</description>
    </item>
    <item>
      <description>No title.</description>
    </item>
  </channel>
</rss>`

func serveFixture(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRSSReaderRead(t *testing.T) {
	t.Parallel()

	srv := serveFixture(t, nytFixture, http.StatusOK)
	entries, err := NewRSSReader(srv.Client()).Read(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Item.Title != "Trade Talks Stall" {
		t.Fatalf("unexpected title: %s", first.Item.Title)
	}
	if first.Item.Summary != "Tariff dispute continues." {
		t.Fatalf("unexpected summary: %q", first.Item.Summary)
	}
	if first.Item.Published != "Fri, 01 Mar 2024 10:00:00 +0000" {
		t.Fatalf("unexpected published: %s", first.Item.Published)
	}
	if len(first.Categories) != 3 || first.Categories[1].Value != "Tokyo (Japan)" {
		t.Fatalf("unexpected categories: %+v", first.Categories)
	}
}

func TestRSSReaderStatusError(t *testing.T) {
	t.Parallel()

	srv := serveFixture(t, "gone", http.StatusBadGateway)
	if _, err := NewRSSReader(srv.Client()).Read(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestCleanHTML(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"plain text":                       "plain text",
		"  <p>Hello <i>world</i></p>  ":    "Hello world",
		"<p>line one</p>\n<p>line two</p>": "line one line two",
	}
	for in, want := range cases {
		if got := cleanHTML(in); got != want {
			t.Fatalf("cleanHTML(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFeedSourceTagsItems(t *testing.T) {
	t.Parallel()

	srv := serveFixture(t, nytFixture, http.StatusOK)
	feeds := []config.FeedConfig{
		{Name: "nyt-business", URL: srv.URL, Tagger: "domain", Options: map[string]string{"match": "nyt_geo"}},
	}
	source := NewFeedSource(NewRSSReader(srv.Client()), geotag.NewRegistry(), feeds, nil)

	items, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if want := []string{"Tokyo (Japan)", "Japan"}; !reflect.DeepEqual(items[0].Countries, want) {
		t.Fatalf("unexpected countries: %v", items[0].Countries)
	}
	if items[1].Countries == nil || len(items[1].Countries) != 0 {
		t.Fatalf("expected empty non-nil countries, got %#v", items[1].Countries)
	}
	if items[0].Source != "nyt-business" {
		t.Fatalf("unexpected source: %s", items[0].Source)
	}
}

func TestFeedSourceKeepsGoingAfterFailure(t *testing.T) {
	t.Parallel()

	good := serveFixture(t, nytFixture, http.StatusOK)
	bad := serveFixture(t, "", http.StatusInternalServerError)
	feeds := []config.FeedConfig{
		{Name: "broken", URL: bad.URL, Tagger: "domain"},
		{Name: "unknown-tagger", URL: good.URL, Tagger: "xpath"},
		{Name: "good", URL: good.URL, Tagger: "categories"},
	}
	source := NewFeedSource(NewRSSReader(nil), geotag.NewRegistry(), feeds, nil)

	items, err := source.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(items) != 2 {
		t.Fatalf("expected items from the healthy feed, got %d", len(items))
	}
	if want := []string{"Markets"}; !reflect.DeepEqual(items[1].Countries, want) {
		t.Fatalf("unexpected countries: %v", items[1].Countries)
	}
}
