package scraper

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrPriceFormat is returned for price text that is not a plain digit string
// once the currency symbol and group separators are removed.
var ErrPriceFormat = eris.New("unrecognized price format")

// PriceParser decodes scraped price text such as "₹1,29,900" into whole
// currency units.
type PriceParser struct {
	symbol    string
	separator string
}

// NewPriceParser creates a parser for one fixed currency symbol and one
// thousands-separator string
func NewPriceParser(symbol, separator string) *PriceParser {
	return &PriceParser{symbol: symbol, separator: separator}
}

// Parse strips every occurrence of the currency symbol and separator and
// requires what is left to be an unsigned decimal integer. Anything else,
// decimals and "N/A" included, is an ErrPriceFormat.
func (pp *PriceParser) Parse(text string) (int64, error) {
	s := strings.TrimSpace(text)
	if pp.symbol != "" {
		s = strings.ReplaceAll(s, pp.symbol, "")
	}
	if pp.separator != "" {
		s = strings.ReplaceAll(s, pp.separator, "")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, eris.Wrapf(ErrPriceFormat, "empty price in %q", text)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, eris.Wrapf(ErrPriceFormat, "%q", text)
		}
	}
	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(ErrPriceFormat, "%q: %v", text, err)
	}
	return value, nil
}
