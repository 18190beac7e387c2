package annotate

import "strings"

// Annotation block delimiters. Each sits on its own line and is stored inline
// in the note text.
const (
	Open  = ":::ai"
	Close = ":::"
)

// HasMarker reports whether text contains an opening delimiter line.
func HasMarker(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == Open {
			return true
		}
	}
	return false
}

// Strip removes delimiter lines and keeps the annotated text in place. Only
// lines that open or close a block count: a closing line with no open block
// before it is ordinary text. An open block with no closing line runs to the
// end of the note.
func Strip(text string) string {
	if !HasMarker(text) {
		return text
	}
	lines := strings.Split(text, "\n")
	out := lines[:0]
	inBlock := false
	for _, line := range lines {
		switch trimmed := strings.TrimSpace(line); {
		case trimmed == Open && !inBlock:
			inBlock = true
			continue
		case trimmed == Close && inBlock:
			inBlock = false
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
