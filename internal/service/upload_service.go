package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ragrace/internal/domain"
)

// UploadInput is the DTO for storing an uploaded document.
type UploadInput struct {
	File     io.ReadSeeker
	Filename string
	Size     int64
}

// UploadedFile identifies a stored upload.
type UploadedFile struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
}

// UploadService keeps uploaded documents in a working directory until they
// are compared.
type UploadService interface {
	Save(ctx context.Context, input UploadInput) (*UploadedFile, error)
	// Resolve returns the local path of an upload or domain.ErrArtifactNotFound.
	Resolve(fileID string) (string, error)
}

type uploadService struct {
	dir      string
	maxBytes int64
}

// NewUploadService creates dir if needed. maxSizeMB <= 0 disables the size check.
func NewUploadService(dir string, maxSizeMB int64) (UploadService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &uploadService{dir: dir, maxBytes: maxSizeMB * 1024 * 1024}, nil
}

func (s *uploadService) Save(_ context.Context, input UploadInput) (*UploadedFile, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(input.Filename), "."))
	contentType, ok := domain.AllowedExtensions[ext]
	if !ok {
		return nil, domain.ErrUnsupportedFileType
	}
	if s.maxBytes > 0 && input.Size > s.maxBytes {
		return nil, domain.ErrFileTooLarge
	}

	// Magic-byte check on the first 512 bytes.
	buf := make([]byte, 512)
	n, err := input.File.Read(buf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading file header: %w", err)
	}
	if http.DetectContentType(buf[:n]) != contentType {
		return nil, domain.ErrUnsupportedFileType
	}
	if _, err := input.File.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking file: %w", err)
	}

	fileID := uuid.New().String()
	dst := filepath.Join(s.dir, fileID+"."+ext)
	out, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("creating upload: %w", err)
	}
	var src io.Reader = input.File
	if s.maxBytes > 0 {
		// The declared size comes from the client; bound the copy itself.
		src = io.LimitReader(input.File, s.maxBytes+1)
	}
	written, err := io.Copy(out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return nil, fmt.Errorf("writing upload: %w", err)
	}
	if s.maxBytes > 0 && written > s.maxBytes {
		_ = os.Remove(dst)
		return nil, domain.ErrFileTooLarge
	}

	slog.Info("uploadService.Save: stored upload", "file_id", fileID, "filename", input.Filename, "bytes", written)
	return &UploadedFile{FileID: fileID, Filename: input.Filename}, nil
}

func (s *uploadService) Resolve(fileID string) (string, error) {
	if _, err := uuid.Parse(fileID); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, fileID)
	}
	p := filepath.Join(s.dir, fileID+".pdf")
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, fileID)
	}
	return p, nil
}
