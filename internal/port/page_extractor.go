package port

import "context"

// PageExtractor counts pages and isolates a single page into its own file.
type PageExtractor interface {
	PageCount(ctx context.Context, path string) (int, error)
	// ExtractPage writes page (1-indexed) of path to a new file and returns its path.
	ExtractPage(ctx context.Context, path string, page int) (string, error)
}
