// Package extract normalises uploaded files into plain text for chunking.
// Plain text passes through untouched; markdown is parsed so headings,
// emphasis and code fences do not leak formatting into the retrieval index.
package extract

import (
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"

	"github.com/docuchat/docuchat/internal/domain"
)

// Extraction is the normalised form of an uploaded file. Title may be empty
// when the source carries none; callers fall back to the file name.
type Extraction struct {
	Title string
	Text  string
}

// Extractor converts supported upload formats to plain text.
type Extractor struct {
	parser goldmark.Markdown
}

// New creates an Extractor with a configured markdown parser.
func New() *Extractor {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Extractor{parser: md}
}

// Extract normalises the file by extension: .txt passes through, .md and
// .markdown are flattened to plain text with the first heading as title.
// Other extensions are rejected with a validation error.
func (e *Extractor) Extract(fileName string, data []byte) (Extraction, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt":
		return Extraction{Text: string(data)}, nil
	case ".md", ".markdown":
		return e.extractMarkdown(data)
	default:
		return Extraction{}, domain.Validationf("unsupported file type %q, expected .txt or .md", fileName)
	}
}

func (e *Extractor) extractMarkdown(source []byte) (Extraction, error) {
	doc := e.parser.Parser().Parse(text.NewReader(source))

	var title string
	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(6),
		toc.Compact(true),
	)
	if err == nil && len(tree.Items) > 0 {
		title = string(tree.Items[0].Title)
	}

	return Extraction{Title: title, Text: flatten(doc, source)}, nil
}

// flatten renders the markdown AST as plain text: inline nodes concatenate,
// block boundaries become blank lines, code fences keep their literal lines.
func flatten(doc ast.Node, source []byte) string {
	var sb strings.Builder

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.Kind() {
			case ast.KindHeading, ast.KindParagraph, ast.KindListItem, ast.KindBlockquote:
				sb.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}

		switch n.Kind() {
		case ast.KindText:
			t := n.(*ast.Text)
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case ast.KindCodeBlock, ast.KindFencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(source))
			}
			sb.WriteString("\n")
		}
		return ast.WalkContinue, nil
	})

	return collapseBlankLines(strings.TrimSpace(sb.String()))
}

// collapseBlankLines squeezes runs of 3+ newlines down to one blank line.
func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
