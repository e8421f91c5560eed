// Package gcs stores artifacts in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"ragrace/internal/config"
	"ragrace/internal/domain"
)

// Storage keeps artifacts in one GCS bucket.
type Storage struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewStorage creates a GCS client with application default credentials.
// opts are passed through to the client, e.g. option.WithEndpoint for an emulator.
func NewStorage(ctx context.Context, cfg *config.GCSConfig, opts ...option.ClientOption) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}
	return &Storage{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Close releases the underlying client.
func (s *Storage) Close() error {
	return s.client.Close()
}

// ObjectURL returns the reference URL recorded for key.
func (s *Storage) ObjectURL(key string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + key
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key)
}

func (s *Storage) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("gcs upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = domain.AllowedExtensions["pdf"]
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs upload: %w", err)
	}
	slog.Debug("gcs.Upload: stored artifact", "bucket", s.bucket, "key", key)
	return s.ObjectURL(key), nil
}

func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gcs attrs: %w", err)
	}
	return true, nil
}

func (s *Storage) DownloadToTemp(ctx context.Context, key string) (string, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, key)
		}
		return "", fmt.Errorf("gcs download: %w", err)
	}
	defer func() { _ = r.Close() }()

	out, err := os.CreateTemp("", "ragrace-gcs-*.pdf")
	if err != nil {
		return "", fmt.Errorf("gcs download: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("gcs download read: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("gcs download: %w", err)
	}
	return out.Name(), nil
}
