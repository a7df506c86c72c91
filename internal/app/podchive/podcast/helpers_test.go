package podcast

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type testItem struct {
	title      string
	subtitle   string
	pubDate    string
	enclosures []string
}

func enclosure(url, length, mediaType string) string {
	return fmt.Sprintf(`<enclosure url=%q length=%q type=%q/>`, url, length, mediaType)
}

func rssDocument(title string, items ...testItem) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString(`<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd"><channel>`)
	fmt.Fprintf(&sb, "<title>%s</title><link>https://example.com</link>", title)
	for _, it := range items {
		sb.WriteString("<item>")
		fmt.Fprintf(&sb, "<title>%s</title>", it.title)
		if it.subtitle != "" {
			fmt.Fprintf(&sb, "<itunes:subtitle>%s</itunes:subtitle>", it.subtitle)
		}
		if it.pubDate != "" {
			fmt.Fprintf(&sb, "<pubDate>%s</pubDate>", it.pubDate)
		}
		for _, enc := range it.enclosures {
			sb.WriteString(enc)
		}
		sb.WriteString("</item>")
	}
	sb.WriteString("</channel></rss>")
	return sb.String()
}

// feedServer serves rss document on /feed.xml and counts requests
func feedServer(t *testing.T, doc string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed.xml" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(doc))
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}
