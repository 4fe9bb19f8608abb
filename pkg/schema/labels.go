package schema

import (
	"regexp"
	"strings"
)

var wordSeparators = regexp.MustCompile(`[_\-\s]+`)

// labelFromName derives a display label for field declarations that omit
// one. Names in declaration files are snake_case, so splitting on
// separators and title-casing each word is enough.
func labelFromName(name string) string {
	words := wordSeparators.Split(name, -1)
	var segments []string
	for _, word := range words {
		if word == "" {
			continue
		}
		segments = append(segments, titleWord(word))
	}
	return strings.Join(segments, " ")
}

func titleWord(word string) string {
	lower := strings.ToLower(word)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
