package proc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"podchive/internal/app/podchive/podcast"
)

const audioPayload = "fake audio payload without any mpeg frames, just plain text bytes"

type episodeFixture struct {
	title   string
	pubDate string
	file    string
	length  string
}

// podcastServer serves a feed on /feed.xml and audio files on /audio/, records audio requests
type podcastServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []string
	failing  map[string]bool
}

func newPodcastServer(t *testing.T, title string, episodes ...episodeFixture) *podcastServer {
	t.Helper()
	ps := &podcastServer{failing: map[string]bool{}}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/feed.xml" {
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = w.Write([]byte(ps.feed(title, episodes)))
			return
		}
		if strings.HasPrefix(r.URL.Path, "/audio/") {
			name := strings.TrimPrefix(r.URL.Path, "/audio/")
			ps.mu.Lock()
			ps.requests = append(ps.requests, name)
			failing := ps.failing[name]
			ps.mu.Unlock()
			if failing {
				http.Error(w, "boom", http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(audioPayload + " " + name))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *podcastServer) feed(title string, episodes []episodeFixture) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel>`)
	fmt.Fprintf(&sb, "<title>%s</title><link>https://example.com</link>", title)
	for _, ep := range episodes {
		fmt.Fprintf(&sb, `<item><title>%s</title><pubDate>%s</pubDate><enclosure url="%s/audio/%s" length="%s" type="audio/mpeg"/></item>`,
			ep.title, ep.pubDate, ps.URL, ep.file, ep.length)
	}
	sb.WriteString("</channel></rss>")
	return sb.String()
}

func (ps *podcastServer) audioRequests() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return append([]string(nil), ps.requests...)
}

func (ps *podcastServer) newFeed(t *testing.T) *podcast.Feed {
	t.Helper()
	f, err := podcast.NewFeed(ps.URL+"/feed.xml", podcast.NewParser(ps.Client(), ""))
	require.NoError(t, err)
	return f
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

type countingProgress struct {
	total, done int
	title       string
	finished    bool
}

func (c *countingProgress) Start(total int, title string) { c.total, c.title = total, title }
func (c *countingProgress) Increment()                    { c.done++ }
func (c *countingProgress) Done()                         { c.finished = true }

func newTestProcessor(t *testing.T, ps *podcastServer, root string) (*Processor, *sleepRecorder) {
	t.Helper()
	archive, err := podcast.NewArchive(root)
	require.NoError(t, err)
	sleeper := &sleepRecorder{}
	return &Processor{
		Archive:    archive,
		Downloader: &podcast.Downloader{Client: ps.Client(), ChunkSize: 16},
		Pause:      3 * time.Second,
		Sleep:      sleeper.sleep,
	}, sleeper
}

var twoEpisodes = []episodeFixture{
	{title: "Ep1", pubDate: "Fri, 01 Jan 2021 10:00:00 +0000", file: "ep1.mp3", length: "1000"},
	{title: "Ep2", pubDate: "Sat, 02 Jan 2021 10:00:00 +0000", file: "ep2.mp3", length: "2000"},
}

func TestSyncEndToEnd(t *testing.T) {
	ps := newPodcastServer(t, "Test Podcast", twoEpisodes...)
	out := filepath.Join(t.TempDir(), "out")
	p, sleeper := newTestProcessor(t, ps, out)
	progress := &countingProgress{}
	p.Progress = progress

	count, err := p.Sync(context.Background(), ps.newFeed(t))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"ep1.mp3", "ep2.mp3"}, ps.audioRequests(), "downloaded in feed order")

	for _, name := range []string{"2021-01-01 - Ep1.mp3", "2021-01-02 - Ep2.mp3"} {
		assert.FileExists(t, filepath.Join(out, "Test Podcast", name))
	}
	data, err := os.ReadFile(filepath.Join(out, "Test Podcast", "2021-01-02 - Ep2.mp3")) // nolint
	require.NoError(t, err)
	assert.Equal(t, audioPayload+" ep2.mp3", string(data))

	assert.Equal(t, []time.Duration{3 * time.Second}, sleeper.calls, "pause between downloads only")
	assert.Equal(t, 2, progress.total)
	assert.Equal(t, 2, progress.done)
	assert.Equal(t, "Test Podcast", progress.title)
	assert.True(t, progress.finished)

	// second run with a fresh feed instance downloads nothing
	count, err = p.Sync(context.Background(), ps.newFeed(t))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Len(t, ps.audioRequests(), 2)
	assert.Len(t, sleeper.calls, 1)
}

func TestMissing(t *testing.T) {
	ps := newPodcastServer(t, "Test Podcast", twoEpisodes...)
	out := t.TempDir()
	p, _ := newTestProcessor(t, ps, out)

	missing, err := p.Missing(context.Background(), ps.newFeed(t))
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, "Ep1", missing[0].Title)
	assert.Equal(t, "Ep2", missing[1].Title)

	// the second episode appears in archive by other means
	dir := filepath.Join(out, "Test Podcast")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2021-01-02 - Ep2.mp3"), []byte("x"), 0o600))

	missing, err = p.Missing(context.Background(), ps.newFeed(t))
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "Ep1", missing[0].Title)
	assert.Empty(t, ps.audioRequests())
}

func TestSyncAllPresent(t *testing.T) {
	ps := newPodcastServer(t, "Test Podcast", twoEpisodes...)
	out := t.TempDir()
	dir := filepath.Join(out, "Test Podcast")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	for _, name := range []string{"2021-01-01 - Ep1.mp3", "2021-01-02 - Ep2.mp3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	p, sleeper := newTestProcessor(t, ps, out)
	progress := &countingProgress{}
	p.Progress = progress

	count, err := p.Sync(context.Background(), ps.newFeed(t))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, ps.audioRequests())
	assert.Empty(t, sleeper.calls)
	assert.False(t, progress.finished, "progress is not started for empty sync")
}

func TestSyncAbortsOnDownloadError(t *testing.T) {
	episodes := append(append([]episodeFixture{}, twoEpisodes...),
		episodeFixture{title: "Ep3", pubDate: "Sun, 03 Jan 2021 10:00:00 +0000", file: "ep3.mp3", length: "3000"})
	ps := newPodcastServer(t, "Test Podcast", episodes...)
	ps.failing["ep2.mp3"] = true

	out := t.TempDir()
	p, _ := newTestProcessor(t, ps, out)

	count, err := p.Sync(context.Background(), ps.newFeed(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, podcast.ErrDownloadTransport)
	assert.Contains(t, err.Error(), `"Ep2"`)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"ep1.mp3", "ep2.mp3"}, ps.audioRequests(), "ep3 is never requested")

	dir := filepath.Join(out, "Test Podcast")
	assert.FileExists(t, filepath.Join(dir, "2021-01-01 - Ep1.mp3"))
	assert.NoFileExists(t, filepath.Join(dir, "2021-01-02 - Ep2.mp3"))
	assert.NoFileExists(t, filepath.Join(dir, "2021-01-02 - Ep2.mp3.part"))
}

func TestSyncAbortsOnAmbiguousEntry(t *testing.T) {
	ps := newPodcastServer(t, "Test Podcast", twoEpisodes...)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>Broken</title>` +
			`<item><title>Ep1</title><pubDate>Fri, 01 Jan 2021 10:00:00 +0000</pubDate>` +
			`<enclosure url="` + ps.URL + `/audio/ep1.mp3" length="1000" type="audio/mpeg"/></item>` +
			`<item><title>Twins</title><pubDate>Sat, 02 Jan 2021 10:00:00 +0000</pubDate>` +
			`<enclosure url="` + ps.URL + `/audio/a.mp3" length="5" type="audio/mpeg"/>` +
			`<enclosure url="` + ps.URL + `/audio/b.mp3" length="5" type="audio/mpeg"/></item>` +
			`</channel></rss>`))
	}))
	defer ts.Close()

	p, _ := newTestProcessor(t, ps, t.TempDir())
	feed, err := podcast.NewFeed(ts.URL+"/feed.xml", podcast.NewParser(ts.Client(), ""))
	require.NoError(t, err)

	count, err := p.Sync(context.Background(), feed)
	assert.ErrorIs(t, err, podcast.ErrAmbiguousAudioLink)
	assert.Equal(t, 0, count)
	assert.Empty(t, ps.audioRequests(), "nothing downloaded before entries resolved")
}

func TestSyncFeedError(t *testing.T) {
	ps := newPodcastServer(t, "Test Podcast", twoEpisodes...)
	p, _ := newTestProcessor(t, ps, t.TempDir())

	feed, err := podcast.NewFeed(ps.URL+"/missing.xml", podcast.NewParser(ps.Client(), ""))
	require.NoError(t, err)

	_, err = p.Sync(context.Background(), feed)
	assert.ErrorIs(t, err, podcast.ErrFeedFetch)
}

func TestSyncPauseCancelled(t *testing.T) {
	ps := newPodcastServer(t, "Test Podcast", twoEpisodes...)
	p, _ := newTestProcessor(t, ps, t.TempDir())
	p.Sleep = func(context.Context, time.Duration) error { return context.Canceled }

	count, err := p.Sync(context.Background(), ps.newFeed(t))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"ep1.mp3"}, ps.audioRequests())
}

func TestSyncRecordsHistory(t *testing.T) {
	ps := newPodcastServer(t, "Test Podcast", twoEpisodes...)
	p, _ := newTestProcessor(t, ps, t.TempDir())
	p.Storage = newTestBoltDB(t)
	p.TagEpisodes = true

	_, err := p.Sync(context.Background(), ps.newFeed(t))
	require.NoError(t, err)

	episodes, err := p.Storage.FindEpisodesByStatus("Test Podcast", podcast.Downloaded)
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	assert.Equal(t, "2021-01-01 - Ep1.mp3", episodes[0].Filename)
	assert.Equal(t, "Ep1", episodes[0].Title)
	assert.Equal(t, "2021-01-01", episodes[0].PubDate)
	assert.Equal(t, ps.URL+"/audio/ep1.mp3", episodes[0].AudioURL)
	assert.Equal(t, int64(len(audioPayload+" ep1.mp3")), episodes[0].Size)
	assert.FileExists(t, episodes[0].Path)
	assert.False(t, episodes[0].DownloadedAt.IsZero())
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
