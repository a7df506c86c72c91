package proc

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	log "github.com/go-pkgz/lgr"
	"github.com/minio/minio-go/v7"
	"podchive/internal/app/podchive/podcast"
)

// Uploader puts episode files to cloud storage
type Uploader interface {
	UploadEpisode(ctx context.Context, objectName, filePath string) (*minio.UploadInfo, error)
}

// S3Store store
type S3Store struct {
	Client   *minio.Client
	Location string
	Bucket   string
}

// UploadEpisode to s3 storage
func (s *S3Store) UploadEpisode(ctx context.Context, objectName, filePath string) (*minio.UploadInfo, error) {
	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return s.uploadFile(ctx, objectName, filePath, contentType)
}

func (s *S3Store) uploadFile(ctx context.Context, objectName, filePath, contentType string) (*minio.UploadInfo, error) {
	exists, err := s.Client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return nil, fmt.Errorf("can't check exists bucket %s: %w", s.Bucket, err)
	}

	if !exists {
		if err := s.Client.MakeBucket(ctx, s.Bucket, minio.MakeBucketOptions{Region: s.Location}); err != nil {
			return nil, fmt.Errorf("can't create bucket %s: %w", s.Bucket, err)
		}
		log.Printf("[INFO] created bucket %s", s.Bucket)
	}

	uploadInfo, err := s.Client.FPutObject(ctx, s.Bucket, objectName, filePath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, err
	}

	if uploadInfo.Location == "" {
		location, err := s.getLocation(ctx, objectName)
		if err != nil {
			return nil, fmt.Errorf("can't get file location %s in bucket %s: %w", objectName, s.Bucket, err)
		}
		uploadInfo.Location = location
	}
	return &uploadInfo, nil
}

func (s *S3Store) getLocation(ctx context.Context, objectName string) (string, error) {
	endpoint := s.Client.EndpointURL()

	statInfo, err := s.Client.StatObject(ctx, s.Bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(endpoint.String(), "/"), s.Bucket, statInfo.Key), nil
}

// Upload mirrors downloaded episodes from history to cloud storage and marks them uploaded
func (p *Processor) Upload(ctx context.Context) (int, error) {
	if p.Storage == nil || p.S3Client == nil {
		return 0, fmt.Errorf("upload requires history db and cloud storage")
	}

	podcasts, err := p.Storage.Podcasts()
	if err != nil {
		return 0, fmt.Errorf("can't list podcasts: %w", err)
	}

	var count int
	for _, podcastID := range podcasts {
		episodes, err := p.Storage.FindEpisodesByStatus(podcastID, podcast.Downloaded)
		if err != nil {
			return count, fmt.Errorf("can't find downloaded episodes of %s: %w", podcastID, err)
		}

		for _, episode := range episodes {
			objectName := path.Join(podcastID, episode.Filename)
			info, err := p.S3Client.UploadEpisode(ctx, objectName, episode.Path)
			if err != nil {
				return count, fmt.Errorf("can't upload %s: %w", episode.Path, err)
			}
			episode.Location = info.Location
			if err := p.Storage.ChangeEpisodeStatus(podcastID, episode, podcast.Uploaded); err != nil {
				return count, fmt.Errorf("can't mark %s uploaded: %w", episode.Filename, err)
			}
			log.Printf("[INFO] uploaded %s to %s", episode.Filename, episode.Location)
			count++
		}
	}
	return count, nil
}
