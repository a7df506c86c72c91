package podcast

import "errors"

var (
	// ErrFeedFetch returned when feed can't be fetched or parsed
	ErrFeedFetch = errors.New("can't fetch feed")
	// ErrAmbiguousAudioLink returned when entry has no single audio enclosure
	ErrAmbiguousAudioLink = errors.New("ambiguous audio link")
	// ErrNoPublishDate returned when entry has neither published nor updated date
	ErrNoPublishDate = errors.New("no publish date")
	// ErrDownloadTransport returned on connection failures and non-2xx responses
	ErrDownloadTransport = errors.New("download failed")
	// ErrFileSystem returned when archive directory or episode file can't be written
	ErrFileSystem = errors.New("file system error")
)
