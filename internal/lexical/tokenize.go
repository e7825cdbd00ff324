package lexical

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenize lower-cases text and returns the set of maximal alphanumeric
// runs. Frequency is discarded.
func Tokenize(text string) map[string]struct{} {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		set[t] = struct{}{}
	}
	return set
}
