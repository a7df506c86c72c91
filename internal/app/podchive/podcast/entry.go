package podcast

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	log "github.com/go-pkgz/lgr"
	"github.com/mmcdole/gofeed"
)

// subtitles this long are descriptions, not a part of title
const maxSubtitleLength = 120

const dateLayout = "2006-01-02"

// longer url suffixes are not file extensions
const maxExtBytes = 16

// Entry is a single episode of a feed with resolved audio link
type Entry struct {
	Title     string
	Published time.Time
	AudioURL  *url.URL

	feed *Feed
}

// NewEntry makes entry from parsed feed item
func NewEntry(item *gofeed.Item, feed *Feed) (*Entry, error) {
	if item == nil {
		return nil, fmt.Errorf("empty feed item")
	}

	e := &Entry{Title: entryTitle(item), feed: feed}

	published, err := publishDate(item)
	if err != nil {
		return nil, fmt.Errorf("%w for %q", err, e.Title)
	}
	e.Published = published

	audioURL, err := resolveAudioURL(item.Enclosures)
	if err != nil {
		return nil, fmt.Errorf("%w for %q", err, e.Title)
	}
	log.Printf("[DEBUG] chosen url for %q: %s", e.Title, audioURL)
	e.AudioURL = audioURL

	return e, nil
}

// Feed returns feed the entry belongs to
func (e *Entry) Feed() *Feed {
	return e.feed
}

// Date returns publish date in ISO format
func (e *Entry) Date() string {
	return e.Published.Format(dateLayout)
}

// Ext returns extension of audio file, with leading dot
func (e *Entry) Ext() string {
	if e.AudioURL == nil {
		return ""
	}
	ext := path.Ext(e.AudioURL.Path)
	if len(ext) > maxExtBytes {
		return ""
	}
	return ext
}

// Filename of episode in archive, "{date} - {title}{ext}"
func (e *Entry) Filename() string {
	prefix := e.Date() + " - "
	ext := e.Ext()
	title := truncateBytes(SanitizeFilename(e.Title), maxNameBytes-len(prefix)-len(ext))
	return prefix + title + ext
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s (%s)", e.Title, e.Date())
}

func entryTitle(item *gofeed.Item) string {
	title := strings.TrimSpace(item.Title)
	if item.ITunesExt == nil {
		return title
	}

	subtitle := firstLine(stripHTML(item.ITunesExt.Subtitle))
	if subtitle == "" || utf8.RuneCountInString(subtitle) >= maxSubtitleLength {
		return title
	}
	return title + " - " + subtitle
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}

func publishDate(item *gofeed.Item) (time.Time, error) {
	ts := item.PublishedParsed
	if ts == nil {
		ts = item.UpdatedParsed
	}
	if ts == nil {
		return time.Time{}, ErrNoPublishDate
	}
	utc := ts.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC), nil
}

type audioLink struct {
	href   string
	length int64
}

// resolveAudioURL picks the only audio enclosure advertising its length
func resolveAudioURL(enclosures []*gofeed.Enclosure) (*url.URL, error) {
	var links []audioLink
	for _, enc := range enclosures {
		if enc == nil || strings.TrimSpace(enc.Length) == "" {
			continue
		}
		length, err := strconv.ParseInt(strings.TrimSpace(enc.Length), 10, 64)
		if err != nil {
			log.Printf("[DEBUG] skip enclosure %s with bad length %q", enc.URL, enc.Length)
			continue
		}
		if !strings.Contains(enc.Type, "audio") {
			continue
		}
		links = append(links, audioLink{href: enc.URL, length: length})
	}

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].length < links[j].length
	})
	log.Printf("[DEBUG] audio links %+v", links)

	if len(links) != 1 {
		return nil, fmt.Errorf("%w: %d audio enclosures", ErrAmbiguousAudioLink, len(links))
	}

	chosen := links[len(links)-1]
	u, err := url.Parse(strings.TrimSpace(chosen.href))
	if err != nil {
		return nil, fmt.Errorf("%w: bad url %q: %w", ErrAmbiguousAudioLink, chosen.href, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported url %q", ErrAmbiguousAudioLink, chosen.href)
	}
	return u, nil
}
