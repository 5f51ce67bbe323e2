package transcript

import "strings"

// Classifier decides whether a finalized agent utterance counts as an
// interview question toward the session's question target.
type Classifier func(text string) bool

// DefaultClassifier counts an utterance as a question when it contains a
// question mark and is not an opening pleasantry. Greetings frequently end
// in a question ("shall we begin?") without being substantive questions,
// so they are excluded.
func DefaultClassifier(text string) bool {
	if !strings.Contains(text, "?") {
		return false
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "welcome") {
		return false
	}
	if strings.Contains(lower, "let's begin") || strings.Contains(lower, "let us begin") {
		return false
	}
	if strings.HasPrefix(text, "Hi!") && len(text) < 80 {
		return false
	}
	return true
}
