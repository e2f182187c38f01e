package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"videoReason/config"
)

// MediaStore uploads local videos to durable storage and fetches a
// location's bytes back to a local scratch path.
type MediaStore interface {
	Upload(ctx context.Context, localPath string) (string, error)
	Download(ctx context.Context, uri, localPath string) error
}

// IsRemote reports whether path is already a durable-storage reference.
func IsRemote(path string) bool { return strings.HasPrefix(path, "gs://") }

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !IsRemote(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	rest := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	return parts[0], parts[1], nil
}

// GCSMediaStore keeps videos in a Google Cloud Storage bucket.
type GCSMediaStore struct {
	client    *gcs.Client
	projectID string
	region    string
	bucket    string
}

func NewGCSMediaStore(ctx context.Context, cfg *config.Settings) (*GCSMediaStore, error) {
	client, err := gcs.NewClient(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSMediaStore{
		client:    client,
		projectID: cfg.ProjectID,
		region:    cfg.Region,
		bucket:    cfg.BucketName,
	}, nil
}

func (s *GCSMediaStore) Close() error { return s.client.Close() }

// Upload copies a local video into the bucket, creating the bucket on
// first use, and returns the canonical gs:// URI.
func (s *GCSMediaStore) Upload(ctx context.Context, localPath string) (string, error) {
	bkt := s.client.Bucket(s.bucket)
	if _, err := bkt.Attrs(ctx); err != nil {
		if !errors.Is(err, gcs.ErrBucketNotExist) {
			return "", fmt.Errorf("check bucket %s: %w", s.bucket, err)
		}
		log.Printf("Creating GCS bucket: %s", s.bucket)
		if err := bkt.Create(ctx, s.projectID, &gcs.BucketAttrs{Location: s.region}); err != nil {
			return "", fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	name := filepath.Base(localPath)
	log.Printf("Uploading %s to gs://%s/%s", localPath, s.bucket, name)

	w := bkt.Object(name).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finish upload %s: %w", name, err)
	}

	uri := fmt.Sprintf("gs://%s/%s", s.bucket, name)
	log.Printf("Upload complete: %s", uri)
	return uri, nil
}

// Download fetches a gs:// object to localPath.
func (s *GCSMediaStore) Download(ctx context.Context, uri, localPath string) error {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return err
	}

	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", uri, err)
	}
	defer r.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("download %s: %w", uri, err)
	}
	log.Printf("Download complete: %s -> %s", uri, localPath)
	return nil
}

// LocalMediaStore serves videos straight from the filesystem. Used in
// tests and for fully local runs without a bucket.
type LocalMediaStore struct{}

func (LocalMediaStore) Upload(ctx context.Context, localPath string) (string, error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("stat %s: %w", abs, err)
	}
	return abs, nil
}

func (LocalMediaStore) Download(ctx context.Context, uri, localPath string) error {
	src, err := os.Open(uri)
	if err != nil {
		return fmt.Errorf("open %s: %w", uri, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
