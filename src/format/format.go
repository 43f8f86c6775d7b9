// Package format turns model markdown into the plain text shown by the
// presenters.
package format

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Code block delimiters in plain text output.
const (
	CodeStart = "--- CODE ---"
	CodeEnd   = "--- END CODE ---"
	Bullet    = "• "
)

var parser = goldmark.New(goldmark.WithExtensions(extension.Strikethrough)).Parser()

// PlainText strips markdown markup. Headings, emphasis, links and images keep
// only their text; list items get "N. " or "• " markers; fenced code is
// wrapped in CodeStart/CodeEnd lines.
func PlainText(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	src := []byte(markdown)
	doc := parser.Parse(text.NewReader(src))

	r := &renderer{src: src}
	out := strings.Join(r.blocks(doc), "\n\n")
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(out)
}

type renderer struct {
	src []byte
}

// blocks renders each block child of parent.
func (r *renderer) blocks(parent ast.Node) []string {
	var out []string
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if s := r.block(n); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r *renderer) block(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
		return collapseSpaces(r.inline(n))
	case *ast.List:
		return r.list(n)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return CodeStart + "\n" + strings.TrimSpace(r.lines(n)) + "\n" + CodeEnd
	case *ast.Blockquote:
		return strings.Join(r.blocks(n), "\n\n")
	case *ast.ThematicBreak:
		return ""
	case *ast.HTMLBlock:
		return collapseSpaces(strings.TrimSpace(r.lines(n)))
	default:
		return strings.Join(r.blocks(n), "\n\n")
	}
}

func (r *renderer) list(l *ast.List) string {
	var items []string
	num := l.Start
	if num == 0 {
		num = 1
	}
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		marker := Bullet
		if l.IsOrdered() {
			marker = strconv.Itoa(num) + ". "
			num++
		}
		parts := r.blocks(item)
		if len(parts) == 0 {
			items = append(items, strings.TrimSpace(marker))
			continue
		}
		parts[0] = marker + parts[0]
		items = append(items, strings.Join(parts, "\n"))
	}
	return strings.Join(items, "\n")
}

func (r *renderer) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(r.src))
	}
	return b.String()
}

// inline concatenates the text of n's inline descendants.
func (r *renderer) inline(n ast.Node) string {
	var b strings.Builder
	r.writeInline(&b, n)
	return strings.TrimSpace(b.String())
}

func (r *renderer) writeInline(b *strings.Builder, n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(r.src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.AutoLink:
			b.Write(c.Label(r.src))
		case *ast.RawHTML:
			for i := 0; i < c.Segments.Len(); i++ {
				seg := c.Segments.At(i)
				b.Write(seg.Value(r.src))
			}
		default:
			// Emphasis, links, images, code spans, strikethrough: keep the text.
			r.writeInline(b, c)
		}
	}
}

// collapseSpaces folds runs of spaces and tabs into one space.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, ch := range s {
		if ch == ' ' || ch == '\t' {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(ch)
	}
	return b.String()
}
