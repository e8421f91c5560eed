package normalize

import (
	"log/slog"

	"ragrace/internal/domain"
)

// ExtendAI maps ExtendAI page chunks to pages using their page range. Image
// blocks inside a chunk are attached to the block's own page.
type ExtendAI struct{}

var _ Normalizer = ExtendAI{}

func (ExtendAI) Normalize(chunks []Segment) []domain.CanonicalPage {
	set := newPageSet()

	for i, chunk := range chunks {
		content := chunk.String("content")
		if content == "" {
			slog.Debug("normalize.ExtendAI: skipping chunk without content", "index", i)
			continue
		}

		start, end := extendPageRange(chunk)
		set.addRange(start, end, content)

		for _, block := range chunk.List("blocks") {
			switch block.String("type") {
			case "image", "figure":
			default:
				continue
			}
			url := block.Object("details").String("url", "imageUrl")
			if url == "" {
				continue
			}
			page, ok := block.Object("metadata").Object("page").Int("number")
			if !ok || page < 1 {
				page = start
			}
			set.addImage(page, url)
		}
	}

	return set.build(placeholderExtendAI, chunkMetadata)
}

func extendPageRange(chunk Segment) (int, int) {
	rng := chunk.Object("metadata").Object("pageRange", "page_range")
	start, ok := rng.Int("start")
	if !ok || start < 1 {
		start = 1
	}
	end, ok := rng.Int("end")
	if !ok || end < start {
		end = start
	}
	return start, end
}
