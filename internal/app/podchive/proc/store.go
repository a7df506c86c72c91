package proc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	log "github.com/go-pkgz/lgr"
	"podchive/internal/app/podchive/podcast"
)

// bucket of configured show name to its archive directory,
// ':' never survives file name sanitizing so it can't clash with a podcast bucket
const showDirsBucket = "show:dirs"

// BoltDB store of download history, bucket per podcast directory, key is episode filename
type BoltDB struct {
	DB *bolt.DB
}

// OpenBoltDB opens or creates bolt db file
func OpenBoltDB(fileName string) (*BoltDB, error) {
	db, err := bolt.Open(fileName, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("can't open bolt db %s: %w", fileName, err)
	}
	return &BoltDB{DB: db}, nil
}

// Close bolt db
func (b *BoltDB) Close() error {
	return b.DB.Close()
}

// SaveEpisode save episodes to podcast bucket in bolt db
func (b *BoltDB) SaveEpisode(podcastID string, episode *podcast.Episode) error {
	key := b.getEpisodeKey(episode)

	return b.DB.Update(func(tx *bolt.Tx) error {
		bucket, e := tx.CreateBucketIfNotExists([]byte(podcastID))
		if e != nil {
			return e
		}

		jdata, jerr := json.Marshal(episode)
		if jerr != nil {
			return jerr
		}

		log.Printf("[DEBUG] save episode %s - %s - %s - %d", podcastID, episode.Filename, episode.Status, episode.Size)
		return bucket.Put(key, jdata)
	})
}

// Podcasts returns ids of podcasts with history
func (b *BoltDB) Podcasts() ([]string, error) {
	var result []string
	err := b.DB.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if string(name) == showDirsBucket {
				return nil
			}
			result = append(result, string(name))
			return nil
		})
	})
	return result, err
}

// SaveShowDir remembers archive directory of configured show
func (b *BoltDB) SaveShowDir(show, dirName string) error {
	return b.DB.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(showDirsBucket))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(show), []byte(dirName))
	})
}

// ShowDir returns archive directory of configured show, empty if show never synced
func (b *BoltDB) ShowDir(show string) (string, error) {
	var result string
	err := b.DB.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(showDirsBucket))
		if bucket == nil {
			return nil
		}
		result = string(bucket.Get([]byte(show)))
		return nil
	})
	return result, err
}

// FindEpisodesByStatus get episodes from store by status
func (b *BoltDB) FindEpisodesByStatus(podcastID string, filterStatus podcast.Status) ([]*podcast.Episode, error) {
	var result []*podcast.Episode
	err := b.DB.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(podcastID))
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			item := podcast.Episode{}
			if err := json.Unmarshal(v, &item); err != nil {
				log.Printf("[WARN] failed to unmarshal, %v", err)
				continue
			}
			if item.Status != filterStatus {
				continue
			}
			result = append(result, &item)
		}
		return nil
	})

	return result, err
}

// ChangeEpisodeStatus change status of episodes in store
func (b *BoltDB) ChangeEpisodeStatus(podcastID string, episode *podcast.Episode, status podcast.Status) error {
	episode.Status = status
	return b.SaveEpisode(podcastID, episode)
}

// GetEpisodeByFilename get episode by filename from store, nil if not recorded
func (b *BoltDB) GetEpisodeByFilename(podcastID, fileName string) (*podcast.Episode, error) {
	key := b.getEpisodeKeyByFilename(fileName)

	var episode *podcast.Episode
	err := b.DB.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(podcastID))
		if bucket == nil {
			return nil
		}

		item := bucket.Get(key)
		if item == nil {
			return nil
		}

		episode = &podcast.Episode{}
		if err := json.Unmarshal(item, episode); err != nil {
			log.Printf("[WARN] failed to unmarshal, %v", err)
			return err
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return episode, nil
}

func (b *BoltDB) getEpisodeKey(episode *podcast.Episode) []byte {
	return b.getEpisodeKeyByFilename(episode.Filename)
}

func (b *BoltDB) getEpisodeKeyByFilename(filename string) []byte {
	return []byte(filename)
}
