package matcher

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrEmptyName is returned when a catalog or retailer label normalizes to
// nothing. Such a label would match every scraped name.
var ErrEmptyName = eris.New("label has no matchable tokens")

// MatchesCompany reports whether the scraped company name contains the
// candidate retailer name after compact normalization. The scraped name is
// the haystack, so "Amazon.in" matches "Amazon" but not the reverse.
func MatchesCompany(scrapedName, candidateName string) bool {
	return strings.Contains(NormalizeCompact(scrapedName), NormalizeCompact(candidateName))
}

// MatchesProduct reports whether every token of catalogName appears among
// the tokens of scrapedName, in any order. Extra scraped tokens ("Pro",
// "Blue") are ignored.
func MatchesProduct(scrapedName, catalogName string) bool {
	return containsAll(Normalize(scrapedName), Normalize(catalogName))
}

func containsAll(haystack, needles []string) bool {
	set := make(map[string]struct{}, len(haystack))
	for _, tok := range haystack {
		set[tok] = struct{}{}
	}
	for _, tok := range needles {
		if _, ok := set[tok]; !ok {
			return false
		}
	}
	return true
}

// Catalog is the fixed, ordered set of tracked products and retailers.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	products  []string
	retailers []string
}

// NewCatalog copies the given labels and validates that each one carries at
// least one token.
func NewCatalog(products, retailers []string) (*Catalog, error) {
	if len(products) == 0 {
		return nil, eris.New("catalog: no products configured")
	}
	if len(retailers) == 0 {
		return nil, eris.New("catalog: no retailers configured")
	}
	for _, p := range products {
		if len(Normalize(p)) == 0 {
			return nil, eris.Wrapf(ErrEmptyName, "catalog: product %q", p)
		}
	}
	for _, r := range retailers {
		if NormalizeCompact(r) == "" {
			return nil, eris.Wrapf(ErrEmptyName, "catalog: retailer %q", r)
		}
	}
	return &Catalog{
		products:  append([]string(nil), products...),
		retailers: append([]string(nil), retailers...),
	}, nil
}

// Products returns the catalog products in declared order
func (c *Catalog) Products() []string {
	return append([]string(nil), c.products...)
}

// Retailers returns the tracked retailers in declared order
func (c *Catalog) Retailers() []string {
	return append([]string(nil), c.retailers...)
}

// ResolveProduct returns the first catalog product, in declared order, whose
// tokens are all present in text.
func (c *Catalog) ResolveProduct(text string) (string, bool) {
	tokens := Normalize(text)
	for _, p := range c.products {
		if containsAll(tokens, Normalize(p)) {
			return p, true
		}
	}
	return "", false
}

// ResolveRetailer returns the first tracked retailer, in declared order,
// whose name is contained in text.
func (c *Catalog) ResolveRetailer(text string) (string, bool) {
	for _, r := range c.retailers {
		if MatchesCompany(text, r) {
			return r, true
		}
	}
	return "", false
}

// LookupProduct resolves a free-form chat message to a catalog product.
// Exact resolution is tried first; failing that, a message whose every token
// belongs to a catalog label (e.g. "iphone 14") picks the first such label.
func (c *Catalog) LookupProduct(message string) (string, bool) {
	if p, ok := c.ResolveProduct(message); ok {
		return p, true
	}
	tokens := Normalize(message)
	if len(tokens) == 0 {
		return "", false
	}
	for _, p := range c.products {
		if containsAll(Normalize(p), tokens) {
			return p, true
		}
	}
	return "", false
}
