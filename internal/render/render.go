// Package render parses note text (a small markdown subset plus annotation
// blocks) into block-level nodes that clients can style.
package render

import (
	"regexp"
	"strings"

	"github.com/starford/glean/internal/annotate"
)

// Kind identifies a block-level node.
type Kind string

const (
	KindParagraph  Kind = "paragraph"
	KindHeading    Kind = "heading"
	KindBlockquote Kind = "blockquote"
	KindRule       Kind = "rule"
	KindBulletList Kind = "bullet_list"
	KindNumberList Kind = "numbered_list"
	// KindAnnotated wraps one node that came from inside an annotation block.
	KindAnnotated Kind = "annotated"
)

// Node is one block of rendered output.
type Node struct {
	Kind Kind `json:"kind"`
	// Level is 1-3 for headings.
	Level int `json:"level,omitempty"`
	// Spans holds inline content for paragraphs, headings and blockquotes.
	Spans []Span `json:"spans,omitempty"`
	// Items holds one span list per list item.
	Items [][]Span `json:"items,omitempty"`
	// Children holds the wrapped node of an annotated container.
	Children []Node `json:"children,omitempty"`
}

var numberedRe = regexp.MustCompile(`^\d+\. (.*)$`)

// Render converts note text into nodes. Lines between annotation delimiters
// are parsed like any other group and each resulting node is wrapped in a
// KindAnnotated container.
func Render(text string) []Node {
	var (
		out       []Node
		buf       []string
		annotated bool
	)

	flush := func() {
		nodes := parseBlocks(buf)
		buf = buf[:0]
		if !annotated {
			out = append(out, nodes...)
			return
		}
		for _, n := range nodes {
			out = append(out, Node{Kind: KindAnnotated, Children: []Node{n}})
		}
	}

	for _, line := range strings.Split(text, "\n") {
		switch trimmed := strings.TrimSpace(line); {
		case trimmed == annotate.Open && !annotated:
			flush()
			annotated = true
		case trimmed == annotate.Close && annotated:
			flush()
			annotated = false
		default:
			buf = append(buf, line)
		}
	}
	// An unterminated block keeps its highlight until the end of the note.
	flush()

	return out
}

// parseBlocks runs the block-level grammar over one group of lines.
func parseBlocks(lines []string) []Node {
	var (
		out  []Node
		list *Node
	)

	flushList := func() {
		if list != nil {
			out = append(out, *list)
			list = nil
		}
	}
	addItem := func(kind Kind, text string) {
		if list != nil && list.Kind != kind {
			flushList()
		}
		if list == nil {
			list = &Node{Kind: kind}
		}
		list.Items = append(list.Items, ParseInline(text))
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			addItem(KindBulletList, trimmed[2:])
			continue
		}
		if m := numberedRe.FindStringSubmatch(trimmed); m != nil {
			addItem(KindNumberList, m[1])
			continue
		}

		flushList()

		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "### "):
			out = append(out, Node{Kind: KindHeading, Level: 3, Spans: ParseInline(trimmed[4:])})
		case strings.HasPrefix(trimmed, "## "):
			out = append(out, Node{Kind: KindHeading, Level: 2, Spans: ParseInline(trimmed[3:])})
		case strings.HasPrefix(trimmed, "# "):
			out = append(out, Node{Kind: KindHeading, Level: 1, Spans: ParseInline(trimmed[2:])})
		case strings.HasPrefix(trimmed, "> "):
			out = append(out, Node{Kind: KindBlockquote, Spans: ParseInline(trimmed[2:])})
		case strings.HasPrefix(trimmed, "---") || strings.HasPrefix(trimmed, "***"):
			out = append(out, Node{Kind: KindRule})
		default:
			out = append(out, Node{Kind: KindParagraph, Spans: ParseInline(trimmed)})
		}
	}
	flushList()

	return out
}
