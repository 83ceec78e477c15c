package engine

import (
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	bulletSymbol   = regexp.MustCompile(`^(\s*)[•●▪◦■□➢➤►‣⁃–—]\s*`)
	parenNumbered  = regexp.MustCompile(`^(\s*)(\d+)\)\s+`)
	pageNumberLine = regexp.MustCompile(`(?i)^\s*(page|slide)?\s*\d+\s*((/|of)\s*\d+)?\s*$`)
	hyphenBreak    = regexp.MustCompile(`(\p{L})-\n(\p{Ll})`)
	innerSpaces    = regexp.MustCompile(`[ \t]{2,}`)
	htmlTag        = regexp.MustCompile(`(?s)<!--.*?-->|<[^>]*>`)
)

// MarkdownNormalizer turns extracted document text into tidy markdown with a
// goldmark parse: headings keep their level, list items become "- " bullets,
// paragraphs are joined onto one line and runs of blank lines collapse.
type MarkdownNormalizer struct {
	md goldmark.Markdown
}

// NewMarkdownNormalizer creates a normalizer.
func NewMarkdownNormalizer() *MarkdownNormalizer {
	return &MarkdownNormalizer{md: goldmark.New()}
}

// Normalize cleans src. For "pdf" and "pptx" sources bare page or slide
// numbers are dropped and words hyphenated across lines are rejoined.
func (n *MarkdownNormalizer) Normalize(src, sourceType string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\f", "\n")
	paged := isPaged(sourceType)
	if paged {
		src = hyphenBreak.ReplaceAllString(src, "$1$2")
	}

	lines := strings.Split(src, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if paged && strings.TrimSpace(line) != "" && pageNumberLine.MatchString(line) {
			continue
		}
		line = bulletSymbol.ReplaceAllString(line, "$1- ")
		line = parenNumbered.ReplaceAllString(line, "$1$2. ")
		kept = append(kept, strings.TrimRight(line, " \t"))
	}
	source := []byte(strings.Join(kept, "\n"))

	doc := n.md.Parser().Parse(text.NewReader(source))
	var blocks []string
	renderBlocks(doc, source, 0, &blocks)
	return strings.Join(blocks, "\n\n")
}

func isPaged(sourceType string) bool {
	switch strings.ToLower(sourceType) {
	case "pdf", "pptx", "application/pdf", "application/vnd.openxmlformats-officedocument.presentationml.presentation":
		return true
	}
	return false
}

func renderBlocks(parent ast.Node, src []byte, depth int, out *[]string) {
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Heading:
			if t := joinLines(v, src); t != "" {
				*out = append(*out, strings.Repeat("#", v.Level)+" "+t)
			}
		case *ast.Paragraph, *ast.TextBlock:
			if t := joinLines(v, src); t != "" {
				*out = append(*out, t)
			}
		case *ast.List:
			var items []string
			renderList(v, src, depth, &items)
			if len(items) > 0 {
				*out = append(*out, strings.Join(items, "\n"))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if t := rawLines(v, src); t != "" {
				*out = append(*out, t)
			}
		case *ast.HTMLBlock:
			if t := htmlText(v, src); t != "" {
				*out = append(*out, t)
			}
		case *ast.ThematicBreak:
		default:
			renderBlocks(c, src, depth, out)
		}
	}
}

func renderList(list *ast.List, src []byte, depth int, out *[]string) {
	indent := strings.Repeat("  ", depth)
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		var parts []string
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			switch v := c.(type) {
			case *ast.List:
				if len(parts) > 0 {
					*out = append(*out, indent+"- "+strings.Join(parts, " "))
					parts = nil
				}
				renderList(v, src, depth+1, out)
			default:
				if t := joinLines(c, src); t != "" {
					parts = append(parts, t)
				}
			}
		}
		if len(parts) > 0 {
			*out = append(*out, indent+"- "+strings.Join(parts, " "))
		}
	}
}

// joinLines flattens a block's source lines into one line.
func joinLines(n ast.Node, src []byte) string {
	lines := n.Lines()
	if lines == nil {
		return ""
	}
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if t := strings.TrimSpace(string(seg.Value(src))); t != "" {
			parts = append(parts, t)
		}
	}
	return innerSpaces.ReplaceAllString(strings.Join(parts, " "), " ")
}

// htmlText keeps the text inside a raw HTML block, without its tags.
func htmlText(n *ast.HTMLBlock, src []byte) string {
	raw := rawLines(n, src)
	if n.HasClosure() {
		raw += "\n" + string(n.ClosureLine.Value(src))
	}
	var parts []string
	for _, line := range strings.Split(htmlTag.ReplaceAllString(raw, " "), "\n") {
		if t := strings.TrimSpace(html.UnescapeString(line)); t != "" {
			parts = append(parts, t)
		}
	}
	return innerSpaces.ReplaceAllString(strings.Join(parts, " "), " ")
}

func rawLines(n ast.Node, src []byte) string {
	lines := n.Lines()
	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return strings.TrimRight(b.String(), "\n")
}
