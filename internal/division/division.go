// Package division defines the administrative-division data model shared by
// the resolution engine, the dataset gateways, and the front-ends: chains,
// candidate rows, subtype and place-kind enumerations, and the name
// normalization rules that make lookups case- and space-insensitive.
package division

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Subtype classifies a division row. The set mirrors the Overture Maps
// division subtypes present in snapshot data.
type Subtype string

const (
	SubtypeCountry      Subtype = "country"
	SubtypeDependency   Subtype = "dependency"
	SubtypeRegion       Subtype = "region"
	SubtypeCounty       Subtype = "county"
	SubtypeLocalAdmin   Subtype = "localadmin"
	SubtypeLocality     Subtype = "locality"
	SubtypeBorough      Subtype = "borough"
	SubtypeNeighborhood Subtype = "neighborhood"
)

// AllSubtypes returns the full subtype enumeration in hierarchy order.
func AllSubtypes() []Subtype {
	return []Subtype{
		SubtypeCountry,
		SubtypeDependency,
		SubtypeRegion,
		SubtypeCounty,
		SubtypeLocalAdmin,
		SubtypeLocality,
		SubtypeBorough,
		SubtypeNeighborhood,
	}
}

// PlaceSubtypes returns the subtypes below region level, i.e. the ones a
// place segment or a search pattern can resolve to.
func PlaceSubtypes() []Subtype {
	return []Subtype{
		SubtypeCounty,
		SubtypeLocalAdmin,
		SubtypeLocality,
		SubtypeBorough,
		SubtypeNeighborhood,
	}
}

// PlaceKind selects which place subtypes a listing covers.
type PlaceKind string

const (
	KindCities   PlaceKind = "cities"
	KindCounties PlaceKind = "counties"
	KindAll      PlaceKind = "all"
)

// ParsePlaceKind validates a kind string from request input.
func ParsePlaceKind(s string) (PlaceKind, error) {
	switch PlaceKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindCities:
		return KindCities, nil
	case KindCounties:
		return KindCounties, nil
	case KindAll, "":
		return KindAll, nil
	}
	return "", eris.Errorf("division: unknown place kind %q", s)
}

// Subtypes maps the kind to the subtype filter a gateway query uses.
func (k PlaceKind) Subtypes() []Subtype {
	switch k {
	case KindCities:
		return []Subtype{SubtypeLocality}
	case KindCounties:
		return []Subtype{SubtypeCounty}
	default:
		return []Subtype{SubtypeLocality, SubtypeCounty}
	}
}

// Candidate is one entity matched by a listing or search query, prior to
// final resolution. Produced fresh per query; never persisted.
type Candidate struct {
	ID      string  `json:"id"`
	Subtype Subtype `json:"subtype"`
	Country string  `json:"country"`
	Region  string  `json:"region,omitempty"`
	Name    string  `json:"name"`
}

// Chain is an ordered country/region/place reference used to locate one
// boundary. Segments are stored normalized. A Chain constructed by NewChain
// always satisfies the ordering invariant: a region implies a country, a
// place implies a country. A place without a region is representable because
// region-less countries are addressed that way.
type Chain struct {
	Country string
	Region  string
	Place   string
}

// NewChain normalizes the given segments and validates the ordering
// invariant. Empty segments are permitted anywhere a later segment is also
// empty.
func NewChain(country, region, place string) (Chain, error) {
	c := Chain{
		Country: NormalizeName(country),
		Region:  NormalizeName(region),
		Place:   NormalizeName(place),
	}
	if c.Country == "" && (c.Region != "" || c.Place != "") {
		return Chain{}, eris.Wrap(ErrInvalidChain, "region or place without country")
	}
	if c.Country != "" && !isCountryCode(c.Country) {
		return Chain{}, eris.Wrapf(ErrInvalidChain, "country %q is not a 2-letter code", country)
	}
	return c, nil
}

func isCountryCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// Depth returns the number of populated segments.
func (c Chain) Depth() int {
	n := 0
	for _, seg := range []string{c.Country, c.Region, c.Place} {
		if seg != "" {
			n++
		}
	}
	return n
}

// IsRoot reports whether no segment is populated.
func (c Chain) IsRoot() bool {
	return c.Country == "" && c.Region == "" && c.Place == ""
}

// Key returns a canonical form of the chain for cache keys and logs. An
// empty region between country and place is preserved so that
// ("us", "", "springfield") and ("us", "il", "springfield") never collide.
func (c Chain) Key() string {
	if c.IsRoot() {
		return "/"
	}
	return strings.TrimRight(c.Country+"/"+c.Region+"/"+c.Place, "/")
}

var foldCaser = cases.Fold()

// NormalizeName canonicalizes a name or chain segment: NFC normalization,
// Unicode case folding, and removal of all whitespace. Stored names and
// incoming segments both pass through here, which is what makes matching
// case- and space-insensitive.
func NormalizeName(s string) string {
	folded := foldCaser.String(norm.NFC.String(s))
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizePattern canonicalizes a search pattern the same way as
// NormalizeName, keeping SQL LIKE wildcards intact, and returns the count of
// significant characters (everything except wildcards). Callers short-circuit
// patterns with fewer than two significant characters.
func NormalizePattern(s string) (string, int) {
	p := NormalizeName(s)
	significant := 0
	for _, r := range p {
		if r != '%' && r != '_' {
			significant++
		}
	}
	return p, significant
}
