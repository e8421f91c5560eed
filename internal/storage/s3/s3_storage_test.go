package s3_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragrace/internal/config"
	"ragrace/internal/domain"
	s3storage "ragrace/internal/storage/s3"
)

// fakeBucket serves the small subset of the S3 REST API the store uses.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		b.objects[key] = body
		b.puts = append(b.puts, key)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := b.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := b.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newStore(t *testing.T) (*s3storage.Storage, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{objects: map[string][]byte{}}
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	store, err := s3storage.NewStorage(t.Context(), &config.S3Config{
		Region:    "us-east-1",
		Bucket:    "artifacts",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)
	return store, bucket
}

func TestNewStorage_RequiresBucket(t *testing.T) {
	_, err := s3storage.NewStorage(t.Context(), &config.S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestStorage_Upload(t *testing.T) {
	store, bucket := newStore(t)
	src := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4 test"), 0o600))

	loc, err := store.Upload(t.Context(), src, "battles/abc.pdf")

	require.NoError(t, err)
	assert.Contains(t, loc, "battles/abc.pdf")
	assert.Equal(t, []string{"battles/abc.pdf"}, bucket.puts)
}

func TestStorage_Exists(t *testing.T) {
	store, bucket := newStore(t)
	bucket.objects["battles/here.pdf"] = []byte("x")

	ok, err := store.Exists(t.Context(), "battles/here.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(t.Context(), "battles/gone.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorage_DownloadToTemp(t *testing.T) {
	store, bucket := newStore(t)
	bucket.objects["battles/here.pdf"] = []byte("%PDF-1.4 body")

	path, err := store.DownloadToTemp(t.Context(), "battles/here.pdf")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(path) })

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(data))

	_, err = store.DownloadToTemp(t.Context(), "battles/gone.pdf")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}
