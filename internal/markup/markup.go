// Package markup derives plain-text metrics from editor markup and renders
// ProseMirror documents to the same markup dialect.
package markup

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// ReferencesHeading separates the body from the references wherever the two
// are joined into one document.
const ReferencesHeading = "<h2>References</h2>"

// JoinReferences appends the references to body under ReferencesHeading.
func JoinReferences(body, references string) string {
	return body + ReferencesHeading + references
}

// StripTags removes every tag from markup and leaves the text between them
// untouched. Entities are not decoded.
func StripTags(markup string) string {
	if markup == "" {
		return ""
	}
	return tagPattern.ReplaceAllString(markup, "")
}

// IsBlank reports whether markup has no visible text once tags are removed.
func IsBlank(markup string) bool {
	return strings.TrimSpace(StripTags(markup)) == ""
}

// WordCount counts whitespace-separated words in the tag-free text.
func WordCount(markup string) int {
	text := strings.TrimSpace(StripTags(markup))
	if text == "" {
		return 0
	}
	return len(strings.Fields(text))
}

// CharCount counts the characters of the tag-free text, excluding whitespace.
func CharCount(markup string) int {
	count := 0
	for _, r := range StripTags(markup) {
		if unicode.IsSpace(r) {
			continue
		}
		count++
	}
	return count
}

// TextLength is the length of the tag-free text including whitespace. It is
// the measure the editor character limit applies to.
func TextLength(markup string) int {
	return utf8.RuneCountInString(StripTags(markup))
}

// Counts holds both derived metrics for one markup string.
type Counts struct {
	Words int `json:"wordCount"`
	Chars int `json:"charCount"`
}

// Count computes word and character counts in one call.
func Count(markup string) Counts {
	return Counts{Words: WordCount(markup), Chars: CharCount(markup)}
}
