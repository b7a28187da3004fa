package loader

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/divisions-cli/internal/dataset"
)

// ParseShapefile reads one source shapefile and returns dataset rows in
// record order. Records without an id, name, or usable geometry are skipped
// rather than failing the whole source.
func ParseShapefile(shpPath string, src Source) ([]dataset.Row, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(name string) (string, bool) {
		idx, ok := fieldIdx[strings.ToLower(name)]
		if !ok {
			return "", false
		}
		val := strings.TrimRight(reader.Attribute(idx), "\x00")
		return strings.TrimSpace(val), true
	}

	for _, required := range []string{src.Fields.ID, src.Fields.Name} {
		if _, ok := fieldIdx[strings.ToLower(required)]; !ok {
			return nil, eris.Errorf("loader: source %q: shapefile has no field %q", src.Name, required)
		}
	}

	var rows []dataset.Row
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		id, _ := attr(src.Fields.ID)
		name, _ := attr(src.Fields.Name)

		country := src.Country
		if src.Fields.Country != "" {
			if v, ok := attr(src.Fields.Country); ok && v != "" {
				country = v
			}
		}

		var region string
		if src.Fields.Region != "" {
			region, _ = attr(src.Fields.Region)
		}

		if id == "" || name == "" || country == "" {
			skipped++
			continue
		}

		payload, encErr := encodeEWKB(shape)
		if encErr != nil || payload == nil {
			skipped++
			continue
		}

		rows = append(rows, dataset.Row{
			ID:       id,
			Subtype:  src.Subtype,
			Country:  strings.ToLower(country),
			Region:   strings.ToLower(region),
			Name:     name,
			Geometry: payload,
		})
	}

	if skipped > 0 {
		zap.L().Debug("loader: skipped shapefile records",
			zap.String("source", src.Name),
			zap.Int("skipped", skipped),
		)
	}

	return rows, nil
}
