package normalize

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// PageStats summarizes the structure of a markdown page.
type PageStats struct {
	TextLength int
	Headings   int
	Tables     int
}

var statsMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// MarkdownStats counts headings and tables in markdown. Tables may be GFM
// pipe tables or raw HTML tables embedded in the page.
func MarkdownStats(markdown string) PageStats {
	st := PageStats{TextLength: utf8.RuneCountInString(markdown)}
	if markdown == "" {
		return st
	}

	src := []byte(markdown)
	doc := statsMarkdown.Parser().Parse(text.NewReader(src))

	var html strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading:
			st.Headings++
		case extast.KindTable:
			st.Tables++
			return ast.WalkSkipChildren, nil
		case ast.KindHTMLBlock:
			block := n.(*ast.HTMLBlock)
			lines := block.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				html.Write(seg.Value(src))
			}
			if block.HasClosure() {
				html.Write(block.ClosureLine.Value(src))
			}
			html.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})

	if html.Len() > 0 {
		st.Tables += countHTMLTables(html.String())
	}
	return st
}

func countHTMLTables(html string) int {
	if !strings.Contains(strings.ToLower(html), "<table") {
		return 0
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0
	}
	// nested tables count once
	return doc.Find("table").Not("table table").Length()
}

func joinParts(parts []string) string {
	return strings.Join(parts, pageSeparator)
}
