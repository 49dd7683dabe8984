package scrape

import "regexp"

// A URL ends at any whitespace, including the Unicode space separators and
// the BOM that RE2's \s does not cover.
var urlPattern = regexp.MustCompile(`https?://[^\s\x0B\p{Z}\x{FEFF}]+`)

// ExtractURLs returns every http(s) URL in text in the order it appears.
// Duplicates and trailing punctuation are kept; nothing is validated.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}
