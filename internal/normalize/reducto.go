package normalize

import (
	"log/slog"

	"ragrace/internal/domain"
)

// Reducto maps Reducto chunks to pages using the page numbers of the blocks
// inside each chunk. A chunk whose blocks span several pages is added to each.
type Reducto struct{}

var _ Normalizer = Reducto{}

func (Reducto) Normalize(chunks []Segment) []domain.CanonicalPage {
	set := newPageSet()

	for i, chunk := range chunks {
		content := chunk.String("enriched", "embed", "content")
		if content == "" {
			slog.Debug("normalize.Reducto: skipping chunk without content", "index", i)
			continue
		}

		blocks := chunk.List("blocks")
		if len(blocks) == 0 {
			page, ok := chunk.Int("page")
			if !ok || page < 1 {
				page = 1
			}
			set.add(page, content)
			continue
		}

		seen := map[int]bool{}
		var order []int
		for _, block := range blocks {
			page, ok := reductoBlockPage(block)
			if !ok {
				continue
			}
			if !seen[page] {
				seen[page] = true
				order = append(order, page)
			}
			if reductoIsImage(block) {
				set.addImage(page, block.String("url", "image_url"))
			}
		}

		if len(order) == 0 {
			order = []int{1}
		}
		for _, page := range order {
			set.add(page, content)
		}
	}

	return set.build(placeholderReducto, chunkMetadata)
}

// reductoBlockPage resolves a block's page. Reducto marks non-content blocks
// with negative pages, which count as no page at all.
func reductoBlockPage(block Segment) (int, bool) {
	page, ok := block.Object("bbox").Int("page")
	if !ok {
		page, ok = block.Int("page", "page_number", "page_idx")
	}
	if !ok || page < 1 {
		return 0, false
	}
	return page, true
}

func reductoIsImage(block Segment) bool {
	return block.String("type", "block_type") == "Image"
}
