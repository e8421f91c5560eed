package normalize

import (
	"log/slog"
	"strings"

	"ragrace/internal/domain"
)

// Placeholder texts. A canonical page never carries empty markdown.
const (
	PlaceholderEmptyPage = "*No content on this page*"

	placeholderReducto      = "*No content extracted - check Reducto API response format*"
	placeholderUnstructured = "*No content extracted*"
	placeholderExtendAI     = "*No content extracted from chunks*"
	placeholderLlamaIndex   = "*No content extracted*"
)

const pageSeparator = "\n\n"

// MaxPages bounds any page number a provider reports. Larger values are
// treated as carrying no page.
const MaxPages = 10000

// Normalizer converts one provider's raw segments into dense canonical pages.
type Normalizer interface {
	Normalize(segments []Segment) []domain.CanonicalPage
}

// pageSet accumulates content and images per page number as segments arrive.
type pageSet struct {
	parts   map[int][]string
	images  map[int][]string
	maxPage int
}

func newPageSet() *pageSet {
	return &pageSet{
		parts:  make(map[int][]string),
		images: make(map[int][]string),
	}
}

// resolve maps a reported page to the page it is stored under: values below 1
// or above MaxPages fall back to page 1.
func (p *pageSet) resolve(page int) int {
	if page > MaxPages {
		slog.Debug("normalize.pageSet: page out of bounds, using page 1", "page", page, "max", MaxPages)
		return 1
	}
	if page < 1 {
		return 1
	}
	return page
}

func (p *pageSet) touch(page int) {
	if page > MaxPages {
		slog.Debug("normalize.pageSet: ignoring out of bounds page", "page", page, "max", MaxPages)
		return
	}
	if page > p.maxPage {
		p.maxPage = page
	}
}

func (p *pageSet) add(page int, content string) {
	page = p.resolve(page)
	p.parts[page] = append(p.parts[page], content)
	p.touch(page)
}

// addRange appends content to every page in [start, end]. end is clamped to
// MaxPages.
func (p *pageSet) addRange(start, end int, content string) {
	start = p.resolve(start)
	if end > MaxPages {
		slog.Debug("normalize.pageSet: clamping page range", "end", end, "max", MaxPages)
		end = MaxPages
	}
	if end < start {
		end = start
	}
	for page := start; page <= end; page++ {
		p.add(page, content)
	}
}

func (p *pageSet) addImage(page int, ref string) {
	if page < 1 || ref == "" {
		return
	}
	page = p.resolve(page)
	p.images[page] = append(p.images[page], ref)
	p.touch(page)
}

func (p *pageSet) empty() bool {
	return len(p.parts) == 0
}

// build emits pages 1..maxPage. meta, when non-nil, supplies extra metadata for
// each page and receives the page's raw parts.
func (p *pageSet) build(emptyPlaceholder string, meta func(page int, parts, images []string) map[string]any) []domain.CanonicalPage {
	if p.empty() {
		p.parts[1] = []string{emptyPlaceholder}
		p.touch(1)
	}
	if p.maxPage < 1 {
		p.maxPage = 1
	}

	pages := make([]domain.CanonicalPage, 0, p.maxPage)
	for n := 1; n <= p.maxPage; n++ {
		parts := p.parts[n]
		images := p.images[n]
		if images == nil {
			images = []string{}
		}
		markdown := strings.Join(parts, pageSeparator)
		if strings.TrimSpace(markdown) == "" {
			markdown = PlaceholderEmptyPage
		}
		md := map[string]any{}
		if meta != nil {
			md = meta(n, parts, images)
		}
		pages = append(pages, domain.CanonicalPage{
			PageNumber: n,
			Markdown:   markdown,
			Images:     images,
			Metadata:   md,
		})
	}
	return pages
}

// chunkMetadata is the page metadata shared by chunk-based providers.
func chunkMetadata(_ int, parts, images []string) map[string]any {
	return map[string]any{
		"chunk_count": len(parts),
		"has_images":  len(images) > 0,
	}
}

// ForProvider returns the default normalizer for a provider.
func ForProvider(provider string) (Normalizer, bool) {
	switch provider {
	case domain.ProviderReducto:
		return Reducto{}, true
	case domain.ProviderUnstructured:
		return Unstructured{}, true
	case domain.ProviderExtendAI:
		return ExtendAI{}, true
	case domain.ProviderLlamaIndex:
		return LlamaIndex{}, true
	default:
		return nil, false
	}
}
