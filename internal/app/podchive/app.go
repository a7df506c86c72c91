package podchive

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	log "github.com/go-pkgz/lgr"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mmcdole/gofeed"
	"podchive/internal/app/podchive/podcast"
	"podchive/internal/app/podchive/proc"
	"podchive/internal/configs"
)

// App syncs podcasts from configured or given feeds into archive
type App struct {
	config    *configs.Conf
	processor *proc.Processor
	parser    *gofeed.Parser
}

// Show is a configured podcast with number of archived episodes
type Show struct {
	Name     string
	Title    string
	RSSURL   string
	Archived int
}

// NewApplication Создание нового приложения
func NewApplication(conf *configs.Conf, p *proc.Processor, parser *gofeed.Parser) (*App, error) {
	if conf == nil || p == nil {
		return nil, fmt.Errorf("config and processor are required")
	}
	if p.Archive == nil {
		return nil, fmt.Errorf("processor has no archive")
	}
	if parser == nil {
		parser = gofeed.NewParser()
	}
	app := App{config: conf, processor: p, parser: parser}
	return &app, nil
}

// Download missing episodes of podcast by its feed url
func (a *App) Download(ctx context.Context, rssURL string) (int, error) {
	feed, err := podcast.NewFeed(rssURL, a.parser)
	if err != nil {
		return 0, err
	}
	return a.sync(ctx, feed)
}

// DownloadShow downloads missing episodes of configured show
func (a *App) DownloadShow(ctx context.Context, name string) (int, error) {
	show, err := a.config.Show(name)
	if err != nil {
		return 0, err
	}
	feed, err := podcast.NewFeed(show.RSSURL, a.parser)
	if err != nil {
		return 0, fmt.Errorf("show %s: %w", name, err)
	}
	count, err := a.sync(ctx, feed.WithTitle(show.Title))
	if feed.Fetched() && a.processor.Storage != nil {
		if serr := a.processor.Storage.SaveShowDir(name, feed.DirName()); serr != nil {
			log.Printf("[WARN] can't save directory of show %s, %v", name, serr)
		}
	}
	return count, err
}

// DownloadAll syncs configured shows one after another, stops on the first error
func (a *App) DownloadAll(ctx context.Context) (int, error) {
	var total int
	for _, name := range a.config.ShowNames() {
		count, err := a.DownloadShow(ctx, name)
		total += count
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Shows returns configured podcasts with count of archived episodes
func (a *App) Shows() ([]Show, error) {
	names := a.config.ShowNames()
	result := make([]Show, 0, len(names))
	for _, name := range names {
		p := a.config.Podcasts[name]
		dirName, err := a.showDir(name, p)
		if err != nil {
			return nil, err
		}
		episodes, err := a.processor.Archive.Scan(dirName)
		if err != nil {
			return nil, err
		}
		result = append(result, Show{Name: name, Title: p.Title, RSSURL: p.RSSURL, Archived: len(episodes)})
	}
	return result, nil
}

// showDir is the directory show was synced into, configured title if not synced yet
func (a *App) showDir(name string, p configs.Podcast) (string, error) {
	if a.processor.Storage != nil {
		dirName, err := a.processor.Storage.ShowDir(name)
		if err != nil {
			return "", fmt.Errorf("can't get directory of show %s: %w", name, err)
		}
		if dirName != "" {
			return dirName, nil
		}
	}
	return podcast.SanitizeFilename(p.Title), nil
}

// Upload downloaded episodes to cloud storage
func (a *App) Upload(ctx context.Context) (int, error) {
	count, err := a.processor.Upload(ctx)
	if count > 0 {
		log.Printf("[INFO] uploaded %d episodes", count)
	}
	return count, err
}

func (a *App) sync(ctx context.Context, feed *podcast.Feed) (int, error) {
	started := time.Now()
	count, err := a.processor.Sync(ctx, feed)
	if err != nil {
		return count, err
	}
	if count > 0 {
		log.Printf("[INFO] downloaded %d episodes of %q in %v", count, feed.Title(), time.Since(started).Round(time.Second))
	}
	return count, nil
}

// NewBoltDB opens bolt db for download history, creates directory for the file
func NewBoltDB(fileName string) (*bolt.DB, error) {
	if dir := filepath.Dir(fileName); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("can't create directory for %s: %w", fileName, err)
		}
	}
	store, err := proc.OpenBoltDB(fileName)
	if err != nil {
		return nil, err
	}
	return store.DB, nil
}

// NewS3Client makes minio client for cloud storage
func NewS3Client(endpoint, accessKey, secretKey string, secure bool) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
}

// NewHTTPClient makes client for feeds and episodes, redirects are followed
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = time.Minute
	return &http.Client{Timeout: timeout, Transport: transport}
}
