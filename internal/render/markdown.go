package render

import (
	"strconv"
	"strings"

	"github.com/starford/glean/internal/annotate"
)

// Markdown serialises nodes back into the markdown subset Render accepts.
// Blocks are separated by blank lines; adjacent annotated containers share a
// single annotation block.
func Markdown(nodes []Node) string {
	var blocks []string
	var marked []string

	flushMarked := func() {
		if len(marked) == 0 {
			return
		}
		blocks = append(blocks, annotate.Open+"\n"+strings.Join(marked, "\n\n")+"\n"+annotate.Close)
		marked = nil
	}

	for _, n := range nodes {
		if n.Kind == KindAnnotated {
			for _, c := range n.Children {
				marked = append(marked, block(c))
			}
			continue
		}
		flushMarked()
		blocks = append(blocks, block(n))
	}
	flushMarked()

	return strings.Join(blocks, "\n\n")
}

func block(n Node) string {
	switch n.Kind {
	case KindHeading:
		return strings.Repeat("#", n.Level) + " " + inline(n.Spans)
	case KindBlockquote:
		return "> " + inline(n.Spans)
	case KindRule:
		return "---"
	case KindBulletList:
		lines := make([]string, len(n.Items))
		for i, item := range n.Items {
			lines[i] = "- " + inline(item)
		}
		return strings.Join(lines, "\n")
	case KindNumberList:
		lines := make([]string, len(n.Items))
		for i, item := range n.Items {
			lines[i] = strconv.Itoa(i+1) + ". " + inline(item)
		}
		return strings.Join(lines, "\n")
	case KindAnnotated:
		return Markdown([]Node{n})
	default:
		return inline(n.Spans)
	}
}

func inline(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		switch s.Style {
		case StyleBold:
			b.WriteString("**" + s.Text + "**")
		case StyleItalic:
			b.WriteString("*" + s.Text + "*")
		case StyleCode:
			b.WriteString("`" + s.Text + "`")
		default:
			b.WriteString(s.Text)
		}
	}
	return b.String()
}
