package podcast

import "time"

// Status of episode
type Status int

const (
	// New status for episode files found in archive but not recorded yet
	New Status = iota
	// Downloaded status for episodes fetched into archive
	Downloaded
	// Uploaded status for already uploaded episodes to cloud storage
	Uploaded
)

func (s Status) String() string {
	switch s {
	case New:
		return "new"
	case Downloaded:
		return "downloaded"
	case Uploaded:
		return "uploaded"
	}
	return "unknown"
}

// Episode of podcast, as kept in download history
type Episode struct {
	Filename     string
	Title        string
	PubDate      string
	AudioURL     string
	Path         string
	Size         int64
	Duration     time.Duration
	Status       Status
	Location     string
	DownloadedAt time.Time
}
