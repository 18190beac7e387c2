// Package annotate computes the delta between two versions of a note and
// wraps newly added text in an AI annotation block.
//
// Text is compared by Unicode code point. Offsets in Result are rune counts.
package annotate

import (
	"regexp"
	"strings"
)

var newlineRunRe = regexp.MustCompile(`\n{3,}`)

// Result describes where two texts agree and what was inserted between.
type Result struct {
	// Prefix is the length of the common leading span.
	Prefix int
	// Suffix is the length of the common trailing span of what remains
	// after the prefix is removed from both sides.
	Suffix int
	// Added is the new text between the prefix and the suffix.
	Added string
}

// Diff scans from both ends inward. The suffix scan never crosses the prefix
// boundary of either text.
func Diff(oldText, newText string) Result {
	o, n := []rune(oldText), []rune(newText)

	p := 0
	for p < len(o) && p < len(n) && o[p] == n[p] {
		p++
	}

	s := 0
	for s < len(o)-p && s < len(n)-p && o[len(o)-1-s] == n[len(n)-1-s] {
		s++
	}

	return Result{
		Prefix: p,
		Suffix: s,
		Added:  string(n[p : len(n)-s]),
	}
}

// Annotate returns newText with the region that differs from oldText wrapped
// in an annotation block. A blank oldText means the note is being created,
// and nothing is highlighted.
func Annotate(oldText, newText string) string {
	if strings.TrimSpace(oldText) == "" {
		return newText
	}

	d := Diff(oldText, newText)
	added := strings.TrimSpace(d.Added)
	if added == "" {
		return newText
	}

	n := []rune(newText)
	head := string(n[:d.Prefix])
	tail := string(n[len(n)-d.Suffix:])

	// Newline runs are only tightened where the block meets the untouched
	// text; the rest of the note is kept byte for byte.
	headText := strings.TrimRight(head, "\n")
	tailText := strings.TrimLeft(tail, "\n")

	var b strings.Builder
	b.WriteString(head[len(headText):])
	if head != "" && headText == head {
		b.WriteByte('\n')
	}
	b.WriteString(Open)
	b.WriteByte('\n')
	b.WriteString(added)
	b.WriteByte('\n')
	b.WriteString(Close)
	if tailText == tail {
		b.WriteByte('\n')
	}
	b.WriteString(tail[:len(tail)-len(tailText)])

	return headText + newlineRunRe.ReplaceAllString(b.String(), "\n\n") + tailText
}
