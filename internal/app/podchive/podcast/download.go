package podcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fujiwara/shapeio"
	log "github.com/go-pkgz/lgr"
)

// DefaultChunkSize used when Downloader.ChunkSize not set
const DefaultChunkSize = 32 * 1024

const partialPattern = ".podchive-*" + partialSuffix

// Downloader streams episode audio to files
type Downloader struct {
	Client    *http.Client
	UserAgent string
	ChunkSize int
	RateLimit float64 // bytes per second, 0 for unlimited
}

// Download episode into archive, returns path of the file and its size
func (e *Entry) Download(ctx context.Context, d *Downloader, a *Archive) (string, int64, error) {
	dest := a.Path(e)
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", 0, fmt.Errorf("%w: can't create directory for %q: %w", ErrFileSystem, e.Title, err)
	}

	size, err := d.Fetch(ctx, e.AudioURL.String(), dest)
	if err != nil {
		return "", 0, fmt.Errorf("episode %q: %w", e.Title, err)
	}
	return dest, size, nil
}

// Fetch GETs url and writes body to dest in chunks.
// Body goes to a partial file first and replaces dest only when complete.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: bad request for %s: %w", ErrDownloadTransport, rawURL, err)
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: get %s: %w", ErrDownloadTransport, rawURL, err)
	}
	defer resp.Body.Close() // nolint

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: get %s: status %s", ErrDownloadTransport, rawURL, resp.Status)
	}

	// short name, dest itself may be at the file name limit
	fh, err := os.CreateTemp(filepath.Dir(dest), partialPattern)
	if err != nil {
		return 0, fmt.Errorf("%w: can't create partial file for %s: %w", ErrFileSystem, dest, err)
	}
	partial := fh.Name()

	var body io.Reader = resp.Body
	if d.RateLimit > 0 {
		limited := shapeio.NewReaderWithContext(resp.Body, ctx)
		limited.SetRateLimit(d.RateLimit)
		body = limited
	}

	written, err := d.copyChunks(ctx, fh, body)
	if cerr := fh.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("%w: can't close %s: %w", ErrFileSystem, partial, cerr)
	}
	if err != nil {
		if rerr := os.Remove(partial); rerr != nil {
			log.Printf("[WARN] can't remove partial file %s, %v", partial, rerr)
		}
		return 0, err
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		log.Printf("[WARN] %s content length %d, downloaded %d", rawURL, resp.ContentLength, written)
	}

	// dest may appear meanwhile, rename replaces it
	if err := os.Rename(partial, dest); err != nil {
		return 0, fmt.Errorf("%w: can't move %s to %s: %w", ErrFileSystem, partial, dest, err)
	}
	log.Printf("[DEBUG] saved %s, %s", dest, humanize.Bytes(uint64(written))) // nolint
	return written, nil
}

func (d *Downloader) copyChunks(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	size := d.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	buf := make([]byte, size)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("%w: %w", ErrDownloadTransport, err)
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, fmt.Errorf("%w: write: %w", ErrFileSystem, werr)
			}
		}
		if errors.Is(rerr, io.EOF) {
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("%w: read body: %w", ErrDownloadTransport, rerr)
		}
	}
}

func (d *Downloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return http.DefaultClient
}
