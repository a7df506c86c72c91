package proc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/go-pkgz/lgr"
	"podchive/internal/app/podchive/podcast"
)

// Progress shows how many episodes of current sync are done
type Progress interface {
	Start(total int, title string)
	Increment()
	Done()
}

// Processor syncs podcast feeds into local archive
type Processor struct {
	Archive     *podcast.Archive
	Downloader  *podcast.Downloader
	Storage     *BoltDB  // optional download history
	S3Client    Uploader // optional cloud mirror
	TagEpisodes bool
	Pause       time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
	Progress    Progress
}

// Missing returns feed entries not found in archive, in feed order
func (p *Processor) Missing(ctx context.Context, feed *podcast.Feed) ([]*podcast.Entry, error) {
	entries, err := feed.Entries(ctx)
	if err != nil {
		return nil, err
	}

	missing := make([]*podcast.Entry, 0, len(entries))
	for _, e := range entries {
		if p.Archive.Contains(e) {
			log.Printf("[DEBUG] %s already in archive", e.Filename())
			continue
		}
		missing = append(missing, e)
	}
	return missing, nil
}

// Sync downloads missing episodes of feed one by one and returns number of downloaded.
// The first failure stops the sync.
func (p *Processor) Sync(ctx context.Context, feed *podcast.Feed) (int, error) {
	missing, err := p.Missing(ctx, feed)
	if err != nil {
		return 0, err
	}

	if len(missing) == 0 {
		log.Printf("[INFO] no new episodes of %q to download", feed.Title())
		return 0, nil
	}
	log.Printf("[INFO] %d episodes to download of %q", len(missing), feed.Title())

	progress := p.progress()
	progress.Start(len(missing), feed.Title())
	defer progress.Done()

	for i, e := range missing {
		if err := p.downloadEpisode(ctx, e); err != nil {
			return i, err
		}
		progress.Increment()

		if i < len(missing)-1 {
			if err := p.pause(ctx); err != nil {
				return i + 1, err
			}
		}
	}
	return len(missing), nil
}

func (p *Processor) downloadEpisode(ctx context.Context, e *podcast.Entry) error {
	log.Printf("[DEBUG] downloading %s from %s", e.Filename(), e.AudioURL)
	path, size, err := e.Download(ctx, p.Downloader, p.Archive)
	if err != nil {
		return err
	}

	episode := &podcast.Episode{
		Filename:     e.Filename(),
		Title:        e.Title,
		PubDate:      e.Date(),
		AudioURL:     e.AudioURL.String(),
		Path:         path,
		Size:         size,
		Status:       podcast.Downloaded,
		DownloadedAt: time.Now(),
	}

	if strings.EqualFold(e.Ext(), ".mp3") {
		// duration goes first, decoder expects bare frames
		if episode.Duration, err = Duration(path); err != nil {
			log.Printf("[WARN] can't get duration of %s, %v", path, err)
		}
		if p.TagEpisodes {
			if err := WriteTags(path, e); err != nil {
				log.Printf("[WARN] can't tag %s, %v", path, err)
			}
		}
	}
	log.Printf("[INFO] downloaded %s, %s", episode.Filename, humanize.Bytes(uint64(size))) // nolint

	if p.Storage == nil {
		return nil
	}
	if err := p.Storage.SaveEpisode(e.Feed().DirName(), episode); err != nil {
		return fmt.Errorf("can't save episode %q to history: %w", e.Title, err)
	}
	return nil
}

func (p *Processor) pause(ctx context.Context) error {
	if p.Pause <= 0 {
		return nil
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, p.Pause)
	}
	return SleepContext(ctx, p.Pause)
}

func (p *Processor) progress() Progress {
	if p.Progress != nil {
		return p.Progress
	}
	return nopProgress{}
}

// SleepContext waits for d or until ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopProgress struct{}

func (nopProgress) Start(int, string) {}
func (nopProgress) Increment()        {}
func (nopProgress) Done()             {}
