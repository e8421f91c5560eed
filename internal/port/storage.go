package port

import "context"

// ArtifactStorage abstracts where uploaded documents live.
type ArtifactStorage interface {
	// Upload copies a local file to key and returns a reference URL for it.
	Upload(ctx context.Context, localPath, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	// DownloadToTemp fetches key into a temporary local file. Returns
	// domain.ErrArtifactNotFound when the key is absent.
	DownloadToTemp(ctx context.Context, key string) (string, error)
}
