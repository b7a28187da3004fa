// Package geomcodec renders resolved division geometries into their output
// encodings. Encoding is pure and lazy: a geometry is decoded from its
// internal EWKB payload and converted only when a specific format is
// requested.
package geomcodec

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkbhex"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// Format identifies an output encoding.
type Format string

const (
	FormatWKT     Format = "wkt"
	FormatWKB     Format = "wkb"
	FormatHexWKB  Format = "hexwkb"
	FormatGeoJSON Format = "geojson"
	FormatSVG     Format = "svg"
)

// ParseFormat validates a format string from request input. GeoJSON is the
// default when the string is empty.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wkt":
		return FormatWKT, nil
	case "wkb":
		return FormatWKB, nil
	case "hexwkb", "wkbhex":
		return FormatHexWKB, nil
	case "geojson", "json", "":
		return FormatGeoJSON, nil
	case "svg":
		return FormatSVG, nil
	}
	return "", eris.Errorf("geomcodec: unknown format %q", s)
}

// ContentType returns the MIME type a front-end should serve the encoding
// with.
func (f Format) ContentType() string {
	switch f {
	case FormatWKB:
		return "application/octet-stream"
	case FormatGeoJSON:
		return "application/geo+json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Options control SVG path rendering. They are ignored by the other formats.
type Options struct {
	// Relative emits relative path commands (m/l/z) instead of absolute ones.
	Relative bool
	// Precision is the number of decimal digits kept per coordinate.
	// Zero or negative selects DefaultPrecision.
	Precision int
}

// DefaultPrecision is the SVG coordinate precision used when none is set.
const DefaultPrecision = 6

func (o Options) precision() int {
	if o.Precision <= 0 {
		return DefaultPrecision
	}
	return o.Precision
}

// Key returns a canonical fragment for cache keys so that option variants
// of the same geometry are cached separately.
func (o Options) Key() string {
	return fmt.Sprintf("rel=%t,prec=%d", o.Relative, o.precision())
}

// Encode converts an EWKB geometry payload into the requested format.
// Deterministic for a given payload, format, and options; performs no I/O.
func Encode(raw []byte, format Format, opts Options) ([]byte, error) {
	g, err := ewkb.Unmarshal(raw)
	if err != nil {
		return nil, eris.Wrap(err, "geomcodec: decode geometry payload")
	}

	switch format {
	case FormatWKT:
		s, err := wkt.Marshal(g)
		if err != nil {
			return nil, eris.Wrap(err, "geomcodec: encode wkt")
		}
		return []byte(s), nil

	case FormatWKB:
		data, err := wkb.Marshal(g, wkb.NDR)
		if err != nil {
			return nil, eris.Wrap(err, "geomcodec: encode wkb")
		}
		return data, nil

	case FormatHexWKB:
		s, err := wkbhex.Encode(g, wkb.NDR)
		if err != nil {
			return nil, eris.Wrap(err, "geomcodec: encode hex wkb")
		}
		return []byte(s), nil

	case FormatGeoJSON:
		data, err := geojson.Marshal(g)
		if err != nil {
			return nil, eris.Wrap(err, "geomcodec: encode geojson")
		}
		return data, nil

	case FormatSVG:
		s, err := svgPath(g, opts.Relative, opts.precision())
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	}

	return nil, eris.Errorf("geomcodec: unsupported format %q", format)
}
