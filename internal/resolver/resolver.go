// Package resolver implements the hierarchical resolution engine: it turns a
// country/region/place chain into listings, candidate sets, or exactly one
// geometry, enforcing chain-depth rules before any dataset access and
// memoizing successful results. A single long-lived Service owns the access
// serializer and the cache; request handlers share it by reference.
package resolver

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/divisions-cli/internal/cache"
	"github.com/sells-group/divisions-cli/internal/dataset"
	"github.com/sells-group/divisions-cli/internal/division"
	"github.com/sells-group/divisions-cli/internal/geomcodec"
)

// MinSearchLength is the minimum number of significant pattern characters a
// search needs before it is allowed to touch the gateway.
const MinSearchLength = 2

// Resolution is the outcome of resolving a chain to one geometry. When the
// chain matched more than one row, the first row in the gateway's natural
// order was selected; Ambiguous and Matches surface that choice instead of
// hiding it.
type Resolution struct {
	Candidate division.Candidate `json:"candidate"`
	Matches   int                `json:"matches"`
	Ambiguous bool               `json:"ambiguous"`
	Format    geomcodec.Format   `json:"format"`
	Data      []byte             `json:"-"`
}

// Service resolves chains against one dataset snapshot. Safe for concurrent
// use: cache hits never touch the gateway, and misses are funneled through
// the serializer.
type Service struct {
	gw      *dataset.Serializer
	cache   *cache.Cache
	version string
}

// New wraps the gateway in a serializer, reads the immutable snapshot
// version once, and sizes the result cache. The service owns the gateway
// from here on.
func New(ctx context.Context, gw dataset.Gateway, cacheSize int) (*Service, error) {
	ser := dataset.NewSerializer(gw)
	version, err := ser.Version(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "resolver: read snapshot version")
	}
	return &Service{
		gw:      ser,
		cache:   cache.New(cacheSize),
		version: version,
	}, nil
}

// Close releases the underlying gateway.
func (s *Service) Close() error {
	return s.gw.Close()
}

// Version returns the process-wide dataset snapshot version. Root-only: any
// non-root chain is a depth error.
func (s *Service) Version(chain division.Chain) (string, error) {
	if !chain.IsRoot() {
		return "", &division.ChainDepthError{Op: "version", Chain: chain, Want: "root"}
	}
	return s.version, nil
}

// CacheStats exposes result-cache statistics for diagnostics.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Countries lists all country rows. Root-only.
func (s *Service) Countries(ctx context.Context, chain division.Chain) ([]division.Candidate, error) {
	if !chain.IsRoot() {
		return nil, &division.ChainDepthError{Op: "countries", Chain: chain, Want: "root"}
	}
	return s.listCached(ctx, dataset.Query{Op: dataset.OpCountries})
}

// Dependencies lists all dependency rows. Root-only.
func (s *Service) Dependencies(ctx context.Context, chain division.Chain) ([]division.Candidate, error) {
	if !chain.IsRoot() {
		return nil, &division.ChainDepthError{Op: "dependencies", Chain: chain, Want: "root"}
	}
	return s.listCached(ctx, dataset.Query{Op: dataset.OpDependencies})
}

// Subtypes lists the distinct subtypes present in the snapshot. Root-only.
func (s *Service) Subtypes(ctx context.Context, chain division.Chain) ([]string, error) {
	if !chain.IsRoot() {
		return nil, &division.ChainDepthError{Op: "subtypes", Chain: chain, Want: "root"}
	}

	key := cacheKey(dataset.Query{Op: dataset.OpSubtypes}, "", geomcodec.Options{})
	v, err := s.cache.GetOrCompute(key, func() (any, error) {
		rows, err := s.gw.Execute(ctx, dataset.Query{Op: dataset.OpSubtypes})
		if err != nil {
			return nil, err
		}
		subtypes := make([]string, 0, len(rows))
		for _, r := range rows {
			subtypes = append(subtypes, string(r.Subtype))
		}
		return subtypes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Regions lists the administrative regions of a country. A country that
// exists but has none yields ErrNoRegions — a legitimate empty state the
// caller must be able to tell apart from a failed query; an unknown country
// yields ErrNotFound.
func (s *Service) Regions(ctx context.Context, chain division.Chain) ([]division.Candidate, error) {
	if chain.Depth() != 1 {
		return nil, &division.ChainDepthError{Op: "regions", Chain: chain, Want: "country only"}
	}

	regions, err := s.listCached(ctx, dataset.Query{Op: dataset.OpRegions, Country: chain.Country})
	if err != nil {
		return nil, err
	}
	if len(regions) > 0 {
		return regions, nil
	}

	known, err := s.countryExists(ctx, chain.Country)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, division.ErrNotFound
	}
	return nil, division.ErrNoRegions
}

// Places lists cities, counties, or both under a country or region scope.
// The region segment is required for countries that have regions and
// forbidden for countries that do not.
func (s *Service) Places(ctx context.Context, chain division.Chain, kind division.PlaceKind) ([]division.Candidate, error) {
	if chain.Country == "" || chain.Place != "" {
		return nil, &division.ChainDepthError{Op: "places", Chain: chain, Want: "country or country+region"}
	}
	if err := s.checkRegionScope(ctx, "places", chain); err != nil {
		return nil, err
	}

	return s.listCached(ctx, dataset.Query{
		Op:      dataset.OpPlaces,
		Country: chain.Country,
		Region:  chain.Region,
		Kinds:   kind.Subtypes(),
	})
}

// Search matches place names under a country or region scope. Patterns with
// fewer than MinSearchLength significant characters short-circuit to an
// empty result without touching the gateway — that is not an error.
func (s *Service) Search(ctx context.Context, chain division.Chain, pattern string) ([]division.Candidate, error) {
	if chain.Country == "" || chain.Place != "" {
		return nil, &division.ChainDepthError{Op: "search", Chain: chain, Want: "country or country+region"}
	}

	normalized, significant := division.NormalizePattern(pattern)
	if significant < MinSearchLength {
		return nil, nil
	}

	// A region segment is only meaningful for countries that have regions.
	if chain.Region != "" {
		if err := s.checkRegionScope(ctx, "search", chain); err != nil {
			return nil, err
		}
	}

	if !strings.ContainsAny(normalized, "%_") {
		normalized = "%" + normalized + "%"
	}

	return s.listCached(ctx, dataset.Query{
		Op:      dataset.OpSearch,
		Country: chain.Country,
		Region:  chain.Region,
		Kinds:   division.PlaceSubtypes(),
		Pattern: normalized,
	})
}

// Geometry resolves the chain to exactly one row and encodes its geometry
// in the requested format. Multiple matches resolve to the first row in the
// gateway's natural order; callers wanting determinism pre-disambiguate via
// Search. Zero matches yield ErrNotFound. Encoding is lazy: only the
// requested format is produced, and each (chain, format, options) variant
// is cached independently.
func (s *Service) Geometry(ctx context.Context, chain division.Chain, format geomcodec.Format, opts geomcodec.Options) (*Resolution, error) {
	if chain.Country == "" {
		return nil, &division.ChainDepthError{Op: "geometry", Chain: chain, Want: "country, country+region, or country+region+place"}
	}
	if chain.Place != "" || chain.Region != "" {
		if err := s.checkRegionScope(ctx, "geometry", chain); err != nil {
			return nil, err
		}
	}

	q := dataset.Query{
		Op:      dataset.OpGeometry,
		Country: chain.Country,
		Region:  chain.Region,
		Place:   chain.Place,
		Kinds:   division.PlaceSubtypes(),
	}

	key := cacheKey(q, format, opts)
	v, err := s.cache.GetOrCompute(key, func() (any, error) {
		rows, err := s.gw.Execute(ctx, q)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, division.ErrNotFound
		}

		row := rows[0]
		if len(rows) > 1 {
			zap.L().Warn("ambiguous chain resolved to first match",
				zap.String("chain", chain.Key()),
				zap.Int("matches", len(rows)),
				zap.String("selected_id", row.ID),
				zap.String("selected_subtype", string(row.Subtype)),
			)
		}

		data, err := geomcodec.Encode(row.Geometry, format, opts)
		if err != nil {
			return nil, err
		}

		return &Resolution{
			Candidate: toCandidate(row),
			Matches:   len(rows),
			Ambiguous: len(rows) > 1,
			Format:    format,
			Data:      data,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Resolution), nil
}

// checkRegionScope validates the region segment against whether the country
// has administrative regions: required when it does (for place-level
// operations), forbidden when it does not. Relies on the cached regions
// listing, so repeated validations stay off the gateway.
func (s *Service) checkRegionScope(ctx context.Context, op string, chain division.Chain) error {
	// Region-only geometry chains need no lookup when a region is present
	// and no place follows: resolution itself decides existence.
	has, err := s.hasRegions(ctx, chain.Country)
	if err != nil {
		return err
	}
	if !has && chain.Region != "" {
		return &division.ChainDepthError{Op: op, Chain: chain, Want: "country only (country has no regions)"}
	}
	if has && chain.Region == "" && (op != "geometry" || chain.Place != "") {
		return &division.ChainDepthError{Op: op, Chain: chain, Want: "country+region"}
	}
	return nil
}

// hasRegions reports whether the country has administrative regions,
// distinguishing that from the country not existing at all.
func (s *Service) hasRegions(ctx context.Context, country string) (bool, error) {
	chain := division.Chain{Country: country}
	_, err := s.Regions(ctx, chain)
	switch {
	case err == nil:
		return true, nil
	case eris.Is(err, division.ErrNoRegions):
		return false, nil
	default:
		return false, err
	}
}

// countryExists checks the cached country and dependency listings.
func (s *Service) countryExists(ctx context.Context, country string) (bool, error) {
	for _, op := range []dataset.Op{dataset.OpCountries, dataset.OpDependencies} {
		rows, err := s.listCached(ctx, dataset.Query{Op: op})
		if err != nil {
			return false, err
		}
		for _, c := range rows {
			if c.Country == country {
				return true, nil
			}
		}
	}
	return false, nil
}

// listCached runs a listing query through the cache and the serializer.
func (s *Service) listCached(ctx context.Context, q dataset.Query) ([]division.Candidate, error) {
	key := cacheKey(q, "", geomcodec.Options{})
	v, err := s.cache.GetOrCompute(key, func() (any, error) {
		rows, err := s.gw.Execute(ctx, q)
		if err != nil {
			return nil, err
		}
		out := make([]division.Candidate, 0, len(rows))
		for _, r := range rows {
			out = append(out, toCandidate(r))
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]division.Candidate), nil
}

func toCandidate(r dataset.Row) division.Candidate {
	return division.Candidate{
		ID:      r.ID,
		Subtype: r.Subtype,
		Country: r.Country,
		Region:  r.Region,
		Name:    r.Name,
	}
}

// cacheKey derives the canonical cache key for a query so that case and
// whitespace variants of the same request collapse onto one entry.
func cacheKey(q dataset.Query, format geomcodec.Format, opts geomcodec.Options) string {
	kinds := make([]string, len(q.Kinds))
	for i, k := range q.Kinds {
		kinds[i] = string(k)
	}

	parts := []string{
		string(q.Op),
		q.Country,
		q.Region,
		q.Place,
		q.Pattern,
		strings.Join(kinds, ","),
	}
	if format != "" {
		parts = append(parts, string(format), opts.Key())
	}
	return strings.Join(parts, "|")
}
