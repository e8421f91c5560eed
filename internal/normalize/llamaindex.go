package normalize

import (
	"log/slog"

	"ragrace/internal/domain"
)

// LlamaIndex maps LlamaParse JSON pages to canonical pages. Pages carry their
// own number; when it is missing the page's position in the list is used.
type LlamaIndex struct{}

var _ Normalizer = LlamaIndex{}

func (LlamaIndex) Normalize(pages []Segment) []domain.CanonicalPage {
	set := newPageSet()
	structured := map[int]any{}
	layouts := map[int]any{}

	for i, p := range pages {
		page, ok := p.Int("page", "page_number")
		if !ok || page < 1 || page > MaxPages {
			page = i + 1
		}

		for _, ref := range llamaImages(p) {
			set.addImage(page, ref)
		}
		if v := p.Raw("structured_data"); v != nil {
			structured[page] = v
		}
		if v := p.Raw("layout"); v != nil {
			layouts[page] = v
		}

		md := p.String("md", "text")
		if md == "" {
			slog.Debug("normalize.LlamaIndex: page without markdown", "page", page)
			set.touch(page)
			continue
		}
		set.add(page, md)
	}

	return set.build(placeholderLlamaIndex, func(page int, parts, _ []string) map[string]any {
		st := MarkdownStats(joinParts(parts))
		meta := map[string]any{
			"text_length":   st.TextLength,
			"heading_count": st.Headings,
			"has_tables":    st.Tables > 0,
		}
		if v, ok := structured[page]; ok {
			meta["structured_data"] = v
		}
		if v, ok := layouts[page]; ok {
			meta["layout"] = v
		}
		return meta
	})
}

// llamaImages accepts images as plain strings or objects with name/url.
func llamaImages(p Segment) []string {
	raw, ok := p["images"].([]any)
	if !ok {
		return nil
	}
	refs := make([]string, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			if v != "" {
				refs = append(refs, v)
			}
		case map[string]any:
			if ref := Segment(v).String("url", "name"); ref != "" {
				refs = append(refs, ref)
			}
		}
	}
	return refs
}
