package podcast

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	log "github.com/go-pkgz/lgr"
	"github.com/mmcdole/gofeed"
)

// NewParser makes feed parser using given http client
func NewParser(client *http.Client, userAgent string) *gofeed.Parser {
	parser := gofeed.NewParser()
	parser.Client = client
	if userAgent != "" {
		parser.UserAgent = userAgent
	}
	return parser
}

// Feed of podcast. Parsed document is kept after first Fetch until Invalidate
type Feed struct {
	URL *url.URL

	parser        *gofeed.Parser
	fallbackTitle string
	parsed        *gofeed.Feed
}

// NewFeed makes feed for rss or atom document url
func NewFeed(rawURL string, parser *gofeed.Parser) (*Feed, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid feed url %q: %w", rawURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid feed url %q, http or https expected", rawURL)
	}
	if parser == nil {
		parser = gofeed.NewParser()
	}
	return &Feed{URL: u, parser: parser}, nil
}

// WithTitle sets title used when feed document has none
func (f *Feed) WithTitle(title string) *Feed {
	f.fallbackTitle = title
	return f
}

// Fetch downloads and parses feed once, next calls return memoized document
func (f *Feed) Fetch(ctx context.Context) (*gofeed.Feed, error) {
	if f.parsed != nil {
		return f.parsed, nil
	}

	log.Printf("[DEBUG] fetch feed %s", f.URL)
	parsed, err := f.parser.ParseURLWithContext(f.URL.String(), ctx)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrFeedFetch, f.URL, err)
	}
	f.parsed = parsed
	log.Printf("[DEBUG] feed %q has %d items", f.Title(), len(parsed.Items))
	return parsed, nil
}

// Fetched tells if feed document is memoized
func (f *Feed) Fetched() bool {
	return f.parsed != nil
}

// Invalidate drops memoized document, next Fetch goes to network again
func (f *Feed) Invalidate() {
	f.parsed = nil
}

// Title of podcast. Empty until fetched unless fallback title set
func (f *Feed) Title() string {
	if f.parsed != nil {
		if title := strings.TrimSpace(f.parsed.Title); title != "" {
			return title
		}
	}
	return f.fallbackTitle
}

// DirName is file-system safe name of podcast directory in archive
func (f *Feed) DirName() string {
	return SanitizeFilename(f.Title())
}

// Entries of feed in document order
func (f *Feed) Entries(ctx context.Context) ([]*Entry, error) {
	parsed, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entry, err := NewEntry(item, f)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", f.URL, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (f *Feed) String() string {
	if title := f.Title(); title != "" {
		return fmt.Sprintf("%q (%s)", title, f.URL)
	}
	return f.URL.String()
}
