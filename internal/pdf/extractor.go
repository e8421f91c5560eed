// Package pdf derives single-page artifacts so every provider parses
// byte-identical input.
package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"ragrace/internal/domain"
	"ragrace/internal/port"
)

// Extractor implements port.PageExtractor with pdfcpu.
type Extractor struct {
	workDir string
}

var _ port.PageExtractor = (*Extractor)(nil)

// NewExtractor creates an Extractor writing derived files to workDir, or to
// the system temp directory when workDir is empty.
func NewExtractor(workDir string) *Extractor {
	return &Extractor{workDir: workDir}
}

func relaxedConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in the PDF at path.
func (e *Extractor) PageCount(_ context.Context, path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, path)
	}
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("counting pages of %s: %w", filepath.Base(path), err)
	}
	return n, nil
}

// ExtractPage writes page (1-indexed) of path to a new PDF and returns its path.
// The caller owns the returned file.
func (e *Extractor) ExtractPage(ctx context.Context, path string, page int) (string, error) {
	total, err := e.PageCount(ctx, path)
	if err != nil {
		return "", err
	}
	if page < 1 || page > total {
		return "", fmt.Errorf("%w: page %d of %d", domain.ErrPageOutOfRange, page, total)
	}

	dir := e.workDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating work dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out, err := os.CreateTemp(dir, base+"_page"+strconv.Itoa(page)+"_*.pdf")
	if err != nil {
		return "", fmt.Errorf("creating page file: %w", err)
	}
	outPath := out.Name()
	_ = out.Close()

	if err := api.TrimFile(path, outPath, []string{strconv.Itoa(page)}, relaxedConfig()); err != nil {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("extracting page %d: %w", page, err)
	}
	return outPath, nil
}
