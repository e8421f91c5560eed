package normalize

import (
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"ragrace/internal/domain"
)

// Table output formats for Unstructured table elements.
const (
	TableFormatHTML     = "html"
	TableFormatMarkdown = "markdown"
)

// Unstructured maps Unstructured elements to pages by metadata.page_number.
type Unstructured struct {
	// TableFormat selects how Table elements with an HTML rendering are emitted.
	// Empty means html.
	TableFormat string
}

var _ Normalizer = Unstructured{}

type unstructuredPage struct {
	types    map[string]int
	elements []map[string]any
	tables   bool
}

func (u Unstructured) Normalize(elements []Segment) []domain.CanonicalPage {
	set := newPageSet()
	stats := map[int]*unstructuredPage{}

	for i, el := range elements {
		elType := el.String("type")
		text := strings.TrimSpace(el.String("text"))
		if elType == "PageBreak" || text == "" {
			continue
		}

		meta := el.Object("metadata")
		page, ok := meta.Int("page_number")
		if !ok || page < 1 || page > MaxPages {
			slog.Debug("normalize.Unstructured: element without usable page, using page 1", "index", i, "type", elType)
			page = 1
		}

		set.add(page, u.format(elType, text, meta))

		st := stats[page]
		if st == nil {
			st = &unstructuredPage{types: map[string]int{}}
			stats[page] = st
		}
		st.types[elType]++
		st.elements = append(st.elements, el)
		if elType == "Table" {
			st.tables = true
		}
	}

	return set.build(placeholderUnstructured, func(page int, parts, _ []string) map[string]any {
		st := stats[page]
		if st == nil {
			return map[string]any{
				"element_count": 0,
				"element_types": map[string]int{},
				"has_tables":    false,
				"raw_elements":  []map[string]any{},
			}
		}
		return map[string]any{
			"element_count": len(parts),
			"element_types": st.types,
			"has_tables":    st.tables,
			"raw_elements":  st.elements,
		}
	})
}

func (u Unstructured) format(elType, text string, meta Segment) string {
	switch elType {
	case "Title":
		return "# " + text
	case "Table":
		html := meta.String("text_as_html")
		if html == "" {
			return text
		}
		if u.TableFormat == TableFormatMarkdown {
			if md, err := tableToMarkdown(html); err == nil && strings.TrimSpace(md) != "" {
				return md
			}
		}
		return html
	default:
		return text
	}
}

var tableConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

func tableToMarkdown(html string) (string, error) {
	return tableConverter.ConvertString(html)
}
