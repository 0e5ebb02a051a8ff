// Package matcher maps noisy scraped product and retailer names onto the
// canonical catalog.
package matcher

import (
	"regexp"
	"strings"
)

// space also covers no-break and other unicode separators that show up in
// scraped listings.
const space = `\s\v\p{Z}\x{FEFF}`

var (
	// a parenthetical group together with at most one whitespace on either side
	parenGroup  = regexp.MustCompile(`([` + space + `]?)\(([^)]*)\)([` + space + `]?)`)
	nonWord     = regexp.MustCompile(`[^\w` + space + `]`)
	spaceRun    = regexp.MustCompile(`[` + space + `]+`)
	storageUnit = "gb"
)

// NormalizeCompact canonicalizes text for comparison without splitting it.
//
// "iPhone 14 (256GB)" becomes "iphone 14 256": parentheses are unwrapped,
// punctuation dropped, whitespace collapsed and every "gb" removed so that
// "256 GB", "(256GB)" and "256gb" all reduce to "256".
func NormalizeCompact(text string) string {
	s := parenGroup.ReplaceAllString(text, "${1}${2}${3}")
	s = nonWord.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	s = spaceRun.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, storageUnit, "")
	return strings.TrimSpace(s)
}

// Normalize returns the lowercase word tokens of text. Text with no word
// characters yields no tokens.
func Normalize(text string) []string {
	return strings.Fields(NormalizeCompact(text))
}
