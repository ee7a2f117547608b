package textutil

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// StripMarkdown reduces markdown to plain text: headings, emphasis, links and
// list markers are dropped, block contents are kept, fenced code blocks keep
// their raw lines. Plain input passes through unchanged apart from blank-line
// normalization.
func StripMarkdown(input string) string {
	if strings.TrimSpace(input) == "" {
		return strings.TrimSpace(input)
	}
	source := []byte(input)
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		block := renderBlock(node, source)
		if block == "" {
			continue
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n")
}

func renderBlock(node ast.Node, source []byte) string {
	switch n := node.(type) {
	case *ast.FencedCodeBlock:
		return rawLines(n.Lines(), source)
	case *ast.CodeBlock:
		return rawLines(n.Lines(), source)
	case *ast.ThematicBreak:
		return ""
	case *ast.List:
		var items []string
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			txt := collectText(item, source)
			if txt == "" {
				continue
			}
			items = append(items, txt)
		}
		return strings.Join(items, "\n")
	default:
		return collectText(node, source)
	}
}

func rawLines(lines *text.Segments, source []byte) string {
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		sb.Write(line.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func collectText(node ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.CodeSpan:
			for c := t.FirstChild(); c != nil; c = c.NextSibling() {
				if txt, ok := c.(*ast.Text); ok {
					sb.Write(txt.Segment.Value(source))
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			sb.Write(t.URL(source))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
