package geomcodec

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// svgPath renders a geometry as SVG path data. Polygon rings become closed
// subpaths; line strings stay open; points become a bare moveto. Coordinates
// are rounded to the given precision. No coordinate transform is applied;
// callers wanting screen-space output flip the Y axis themselves.
func svgPath(g geom.T, relative bool, precision int) (string, error) {
	switch g := g.(type) {
	case *geom.Point:
		c := g.Coords()
		return "M" + fmtCoord(c[0], precision) + "," + fmtCoord(c[1], precision), nil

	case *geom.LineString:
		return subpath(g.Coords(), relative, precision, false), nil

	case *geom.MultiLineString:
		parts := make([]string, 0, g.NumLineStrings())
		for i := 0; i < g.NumLineStrings(); i++ {
			parts = append(parts, subpath(g.LineString(i).Coords(), relative, precision, false))
		}
		return strings.Join(parts, " "), nil

	case *geom.Polygon:
		return polygonPath(g, relative, precision), nil

	case *geom.MultiPolygon:
		parts := make([]string, 0, g.NumPolygons())
		for i := 0; i < g.NumPolygons(); i++ {
			parts = append(parts, polygonPath(g.Polygon(i), relative, precision))
		}
		return strings.Join(parts, " "), nil

	case *geom.GeometryCollection:
		parts := make([]string, 0, g.NumGeoms())
		for i := 0; i < g.NumGeoms(); i++ {
			p, err := svgPath(g.Geom(i), relative, precision)
			if err != nil {
				return "", err
			}
			parts = append(parts, p)
		}
		return strings.Join(parts, " "), nil
	}

	return "", eris.Errorf("geomcodec: svg: unsupported geometry type %T", g)
}

func polygonPath(p *geom.Polygon, relative bool, precision int) string {
	parts := make([]string, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		parts = append(parts, subpath(p.LinearRing(i).Coords(), relative, precision, true))
	}
	return strings.Join(parts, " ")
}

// subpath renders one coordinate sequence. Closed rings drop a duplicated
// final vertex and end with a closepath command.
func subpath(coords []geom.Coord, relative bool, precision int, closed bool) string {
	if len(coords) == 0 {
		return ""
	}
	if closed && len(coords) > 1 && samePoint(coords[0], coords[len(coords)-1], precision) {
		coords = coords[:len(coords)-1]
	}

	var b strings.Builder
	b.WriteString("M")
	b.WriteString(fmtCoord(coords[0][0], precision))
	b.WriteString(",")
	b.WriteString(fmtCoord(coords[0][1], precision))

	if relative {
		prevX, prevY := round(coords[0][0], precision), round(coords[0][1], precision)
		for _, c := range coords[1:] {
			x, y := round(c[0], precision), round(c[1], precision)
			b.WriteString(" l")
			b.WriteString(fmtCoord(x-prevX, precision))
			b.WriteString(",")
			b.WriteString(fmtCoord(y-prevY, precision))
			prevX, prevY = x, y
		}
		if closed {
			b.WriteString(" z")
		}
		return b.String()
	}

	for _, c := range coords[1:] {
		b.WriteString(" L")
		b.WriteString(fmtCoord(c[0], precision))
		b.WriteString(",")
		b.WriteString(fmtCoord(c[1], precision))
	}
	if closed {
		b.WriteString(" Z")
	}
	return b.String()
}

func samePoint(a, b geom.Coord, precision int) bool {
	return round(a[0], precision) == round(b[0], precision) &&
		round(a[1], precision) == round(b[1], precision)
}

func round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}

// fmtCoord formats a coordinate at fixed precision, then trims trailing
// zeros so output stays compact but deterministic.
func fmtCoord(v float64, precision int) string {
	s := strconv.FormatFloat(round(v, precision), 'f', precision, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}
