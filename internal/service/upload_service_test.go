package service_test

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragrace/internal/domain"
	"ragrace/internal/service"
)

const pdfHeader = "%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n"

func TestUploadService_SaveAndResolve(t *testing.T) {
	svc, err := service.NewUploadService(t.TempDir(), 10)
	require.NoError(t, err)

	body := []byte(pdfHeader)
	up, err := svc.Save(context.Background(), service.UploadInput{
		File:     bytes.NewReader(body),
		Filename: "Report.PDF",
		Size:     int64(len(body)),
	})
	require.NoError(t, err)
	assert.Equal(t, "Report.PDF", up.Filename)

	path, err := svc.Resolve(up.FileID)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, data)
}

func TestUploadService_RejectsNonPDF(t *testing.T) {
	svc, err := service.NewUploadService(t.TempDir(), 10)
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), service.UploadInput{
		File: bytes.NewReader([]byte("hello")), Filename: "notes.txt", Size: 5,
	})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)

	_, err = svc.Save(context.Background(), service.UploadInput{
		File: bytes.NewReader([]byte("plain text pretending")), Filename: "fake.pdf", Size: 21,
	})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
}

func TestUploadService_RejectsLargeFile(t *testing.T) {
	svc, err := service.NewUploadService(t.TempDir(), 1)
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), service.UploadInput{
		File: bytes.NewReader([]byte(pdfHeader)), Filename: "big.pdf", Size: 2 * 1024 * 1024,
	})
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)
}

func TestUploadService_RejectsUnderstatedSize(t *testing.T) {
	dir := t.TempDir()
	svc, err := service.NewUploadService(dir, 1)
	require.NoError(t, err)

	body := append([]byte(pdfHeader), bytes.Repeat([]byte("x"), 1024*1024)...)
	_, err = svc.Save(context.Background(), service.UploadInput{
		File: bytes.NewReader(body), Filename: "liar.pdf", Size: 100,
	})
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadService_ResolveUnknown(t *testing.T) {
	svc, err := service.NewUploadService(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = svc.Resolve(uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)

	_, err = svc.Resolve("../../etc/passwd")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}
