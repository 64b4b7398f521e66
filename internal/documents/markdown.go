package documents

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownBlocks parses markdown and flattens it into document blocks. The
// title, when set, becomes a level-1 heading ahead of the content.
func markdownBlocks(title, markdown string) []block {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var blocks []block
	if title != "" {
		blocks = append(blocks, block{kind: blockHeading, level: 1, text: title})
	}
	w := &mdWalker{source: src, blocks: blocks}
	w.walk(doc, 0)
	return w.blocks
}

type mdWalker struct {
	source []byte
	blocks []block
}

func (w *mdWalker) walk(node ast.Node, depth int) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Heading:
			w.add(block{kind: blockHeading, level: n.Level, text: w.inline(n)})
		case *ast.Paragraph, *ast.TextBlock:
			w.add(block{kind: blockParagraph, text: w.inline(n)})
		case *ast.List:
			w.list(n, depth)
		case *ast.FencedCodeBlock:
			w.code(n.Lines())
		case *ast.CodeBlock:
			w.code(n.Lines())
		case *ast.Blockquote:
			w.walk(n, depth)
		case *ast.ThematicBreak, *ast.HTMLBlock:
		default:
			w.walk(n, depth)
		}
	}
}

func (w *mdWalker) list(n *ast.List, depth int) {
	number := n.Start
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if n.IsOrdered() {
			marker = strconv.Itoa(number) + ". "
			number++
		}
		first := true
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			switch c := child.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				prefix := "  "
				if first {
					prefix = marker
				}
				w.add(block{kind: blockListItem, level: depth, text: prefix + w.inline(c)})
				first = false
			case *ast.List:
				w.list(c, depth+1)
			case *ast.FencedCodeBlock:
				w.code(c.Lines())
			case *ast.CodeBlock:
				w.code(c.Lines())
			case *ast.Blockquote:
				w.walk(c, depth+1)
			}
		}
		if first {
			w.add(block{kind: blockListItem, level: depth, text: strings.TrimSpace(marker)})
		}
	}
}

func (w *mdWalker) code(lines *text.Segments) {
	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(w.source))
	}
	for _, line := range strings.Split(strings.TrimRight(b.String(), "\n"), "\n") {
		w.add(block{kind: blockCode, text: line})
	}
}

func (w *mdWalker) add(b block) {
	w.blocks = append(w.blocks, b)
}

// inline concatenates the text of n's inline children. Soft breaks become
// spaces and hard breaks become line breaks.
func (w *mdWalker) inline(n ast.Node) string {
	var b strings.Builder
	w.collect(&b, n)
	return strings.TrimSpace(b.String())
}

func (w *mdWalker) collect(b *strings.Builder, n ast.Node) {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(w.source))
			if c.HardLineBreak() {
				b.WriteByte('\n')
			} else if c.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.AutoLink:
			b.Write(c.Label(w.source))
		case *ast.RawHTML:
		default:
			w.collect(b, c)
		}
	}
}
