package division

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrInvalidChain reports a malformed chain (e.g. a region supplied
	// without a country). Raised before any gateway access.
	ErrInvalidChain = eris.New("division: invalid chain")

	// ErrNotFound reports a chain that resolved to zero matching rows.
	ErrNotFound = eris.New("division: not found")

	// ErrNoRegions is a sentinel for countries that have zero administrative
	// regions in the dataset. It is a legitimate empty state, not a query
	// failure; front-ends must render it as "no regions" rather than an
	// error page.
	ErrNoRegions = eris.New("division: country has no regions")
)

// ChainDepthError reports an operation invoked at a chain depth it does not
// support, naming the expected shape.
type ChainDepthError struct {
	Op    string
	Chain Chain
	Want  string
}

func (e *ChainDepthError) Error() string {
	return fmt.Sprintf("division: %s not valid at %q (want %s)", e.Op, e.Chain.Key(), e.Want)
}
