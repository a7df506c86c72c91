package proc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/tcolgate/mp3"
	"podchive/internal/app/podchive/podcast"
)

// WriteTags sets id3 title, artist, album and year of downloaded mp3 episode
func WriteTags(filePath string, e *podcast.Entry) error {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("can't open tag of %s: %w", filePath, err)
	}
	defer tag.Close() // nolint

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if tag.Title() == "" {
		tag.SetTitle(e.Title)
	}
	if tag.Artist() == "" {
		tag.SetArtist(e.Feed().Title())
	}
	if tag.Album() == "" {
		tag.SetAlbum(e.Feed().Title())
	}
	if tag.Year() == "" {
		tag.SetYear(strconv.Itoa(e.Published.Year()))
	}
	if tag.Genre() == "" {
		tag.SetGenre("Podcast")
	}
	tag.AddCommentFrame(id3v2.CommentFrame{
		Encoding:    id3v2.EncodingUTF8,
		Language:    "eng",
		Description: "source",
		Text:        e.AudioURL.String(),
	})

	return tag.Save()
}

// Duration of mp3 file, sum of all frame durations
func Duration(filePath string) (time.Duration, error) {
	fh, err := os.Open(filePath) // nolint
	if err != nil {
		return 0, err
	}
	defer fh.Close() // nolint

	var (
		total   time.Duration
		frame   mp3.Frame
		skipped int
	)
	decoder := mp3.NewDecoder(fh)
	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return total, nil
			}
			return total, err
		}
		total += frame.Duration()
	}
}
