package conversation

import "strings"

var baseSummarizeKeywords = []string{"summarize", "summary"}

// Classifier decides whether a message asks for a summary of the session's
// entities rather than a general chat reply.
type Classifier struct {
	keywords []string
}

// NewClassifier returns a classifier matching the English keywords plus any
// localized extras (e.g. "resumir", "zusammenfassen").
func NewClassifier(extra ...string) Classifier {
	kw := append([]string(nil), baseSummarizeKeywords...)
	for _, k := range extra {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kw = append(kw, k)
		}
	}
	return Classifier{keywords: kw}
}

// IsSummarize reports whether message contains a summarize keyword.
func (c Classifier) IsSummarize(message string) bool {
	lower := strings.ToLower(message)
	for _, k := range c.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
