package render

import "regexp"

// Style identifies an inline span.
type Style string

const (
	StyleText   Style = "text"
	StyleBold   Style = "bold"
	StyleItalic Style = "italic"
	StyleCode   Style = "code"
)

// Span is a run of inline text with a single style. Spans never nest.
type Span struct {
	Style Style  `json:"style"`
	Text  string `json:"text"`
}

// Alternation order breaks ties at the same offset: bold, italic, code.
var inlineRe = regexp.MustCompile("\\*\\*(.+?)\\*\\*|\\*(.+?)\\*|`(.+?)`")

// ParseInline splits s into styled spans. The earliest match wins and its
// content is taken literally, so "**a *b* c**" is one bold span.
func ParseInline(s string) []Span {
	var out []Span
	for s != "" {
		m := inlineRe.FindStringSubmatchIndex(s)
		if m == nil {
			out = append(out, Span{Style: StyleText, Text: s})
			break
		}
		if m[0] > 0 {
			out = append(out, Span{Style: StyleText, Text: s[:m[0]]})
		}
		switch {
		case m[2] >= 0:
			out = append(out, Span{Style: StyleBold, Text: s[m[2]:m[3]]})
		case m[4] >= 0:
			out = append(out, Span{Style: StyleItalic, Text: s[m[4]:m[5]]})
		default:
			out = append(out, Span{Style: StyleCode, Text: s[m[6]:m[7]]})
		}
		s = s[m[1]:]
	}
	return out
}
