// Package dataset defines the read-only query boundary to a divisions
// snapshot and provides the gateway implementations plus the access
// serializer that makes them safe to share between request handlers.
package dataset

import (
	"context"

	"github.com/sells-group/divisions-cli/internal/division"
)

// Op identifies a gateway query kind.
type Op string

const (
	OpCountries    Op = "countries"
	OpDependencies Op = "dependencies"
	OpSubtypes     Op = "subtypes"
	OpRegions      Op = "regions"
	OpPlaces       Op = "places"
	OpSearch       Op = "search"
	OpGeometry     Op = "geometry"
)

// Query describes one read-only lookup. Segments and patterns arrive
// normalized; gateways never normalize on their own.
type Query struct {
	Op      Op
	Country string
	Region  string
	Place   string
	Kinds   []division.Subtype // subtype filter for OpPlaces and OpSearch
	Pattern string             // LIKE pattern for OpSearch, wildcards intact
}

// Row is one division returned by a gateway. Geometry is the raw EWKB
// payload and is populated only for OpGeometry.
type Row struct {
	ID       string
	Subtype  division.Subtype
	Country  string
	Region   string
	Name     string
	Geometry []byte
}

// Gateway executes queries against one immutable dataset snapshot.
// Implementations are NOT safe for concurrent use; every caller must go
// through a Serializer. Errors are propagated unchanged — no retries at
// this layer.
type Gateway interface {
	Execute(ctx context.Context, q Query) ([]Row, error)
	// Version returns the snapshot identifier the gateway serves.
	Version(ctx context.Context) (string, error)
	Close() error
}
