package vectorizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cleanText lowercases s and strips combining accents ("Crème" -> "creme").
func cleanText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// tokenize splits on anything that is not a letter and drops single
// characters and stop words.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(cleanText(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// analyze returns the unigrams of s followed by its bigrams.
func analyze(s string) []string {
	tokens := tokenize(s)
	if len(tokens) == 0 {
		return nil
	}
	terms := make([]string, 0, 2*len(tokens)-1)
	terms = append(terms, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		terms = append(terms, tokens[i]+" "+tokens[i+1])
	}
	return terms
}

// durationToken buckets a total cook time in minutes.
func durationToken(minutes *int) string {
	if minutes == nil || *minutes <= 0 {
		return ""
	}
	switch {
	case *minutes <= 30:
		return "quick meal"
	case *minutes <= 60:
		return "medium cook time"
	default:
		return "long cook time"
	}
}
