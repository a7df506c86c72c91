package podcast

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const partialSuffix = ".part"

// Archive is a local directory with downloaded episodes, one sub-directory per podcast.
// Nothing is cached, every check goes to file system.
type Archive struct {
	Root string
}

// NewArchive makes archive and creates its root directory if missing
func NewArchive(root string) (*Archive, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("%w: can't create archive %s: %w", ErrFileSystem, root, err)
	}
	return &Archive{Root: root}, nil
}

// Dir of podcast in archive
func (a *Archive) Dir(feed *Feed) string {
	return filepath.Join(a.Root, feed.DirName())
}

// Path of episode file in archive
func (a *Archive) Path(e *Entry) string {
	return filepath.Join(a.Dir(e.Feed()), e.Filename())
}

// Contains checks if episode file exists in archive
func (a *Archive) Contains(e *Entry) bool {
	info, err := os.Stat(a.Path(e))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Scan podcast directory and come back with archived episode files sorted by name
func (a *Archive) Scan(dirName string) ([]*Episode, error) {
	dir := filepath.Join(a.Root, dirName)
	entities, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: can't scan %s: %w", ErrFileSystem, dir, err)
	}

	result := make([]*Episode, 0, len(entities))
	for _, entity := range entities {
		if entity.IsDir() || strings.HasSuffix(entity.Name(), partialSuffix) {
			continue
		}
		info, err := entity.Info()
		if err != nil {
			return nil, fmt.Errorf("%w: can't get file info %s in %s: %w", ErrFileSystem, entity.Name(), dir, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		result = append(result, &Episode{
			Filename: entity.Name(),
			Path:     filepath.Join(dir, entity.Name()),
			Size:     info.Size(),
			Status:   New,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Filename < result[j].Filename
	})
	return result, nil
}
