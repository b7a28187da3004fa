package loader

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/divisions-cli/internal/division"
)

func square(x, y float64) *shp.Polygon {
	return &shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: x, Y: y},
			{X: x, Y: y + 1},
			{X: x + 1, Y: y + 1},
			{X: x + 1, Y: y},
			{X: x, Y: y},
		},
	}
}

type record struct {
	attrs map[string]string
	shape shp.Shape
}

// writeShapefile creates a polygon shapefile with the given string fields
// and records. Returns the .shp path.
func writeShapefile(t *testing.T, dir, name string, fieldNames []string, records []record) string {
	t.Helper()
	path := filepath.Join(dir, name)

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	fields := make([]shp.Field, len(fieldNames))
	for i, fn := range fieldNames {
		fields[i] = shp.StringField(fn, 64)
	}
	require.NoError(t, w.SetFields(fields))

	for _, rec := range records {
		n := w.Write(rec.shape)
		for i, fn := range fieldNames {
			require.NoError(t, w.WriteAttribute(int(n), i, rec.attrs[fn]))
		}
	}
	w.Close()
	return path
}

func stateRecords() []record {
	return []record{
		{attrs: map[string]string{"GEOID": "r-ca", "NAME": "California", "STUSPS": "CA"}, shape: square(-123, 37)},
		{attrs: map[string]string{"GEOID": "r-ny", "NAME": "New York", "STUSPS": "NY"}, shape: square(-74, 40)},
	}
}

func stateSource() Source {
	return Source{
		Name:    "us-states",
		URL:     "https://example.org/us-states.zip",
		Subtype: division.SubtypeRegion,
		Country: "us",
		Fields:  FieldMap{ID: "GEOID", Name: "NAME", Region: "STUSPS"},
	}
}

func TestParseShapefile(t *testing.T) {
	path := writeShapefile(t, t.TempDir(), "us-states.shp",
		[]string{"GEOID", "NAME", "STUSPS"}, stateRecords())

	rows, err := ParseShapefile(path, stateSource())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "r-ca", rows[0].ID)
	assert.Equal(t, division.SubtypeRegion, rows[0].Subtype)
	assert.Equal(t, "us", rows[0].Country)
	assert.Equal(t, "ca", rows[0].Region) // lowercased
	assert.Equal(t, "California", rows[0].Name)
	assert.NotEmpty(t, rows[0].Geometry)

	// Record order survives parsing.
	assert.Equal(t, "r-ny", rows[1].ID)
}

func TestParseShapefile_CountryFromAttribute(t *testing.T) {
	path := writeShapefile(t, t.TempDir(), "countries.shp",
		[]string{"GID", "NAME", "ISO_A2"}, []record{
			{attrs: map[string]string{"GID": "c-us", "NAME": "United States", "ISO_A2": "US"}, shape: square(-100, 40)},
		})

	src := Source{
		Name:    "countries",
		Subtype: division.SubtypeCountry,
		Fields:  FieldMap{ID: "GID", Name: "NAME", Country: "ISO_A2"},
	}

	rows, err := ParseShapefile(path, src)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "us", rows[0].Country)
	assert.Empty(t, rows[0].Region)
}

func TestParseShapefile_SkipsIncompleteRecords(t *testing.T) {
	path := writeShapefile(t, t.TempDir(), "us-states.shp",
		[]string{"GEOID", "NAME", "STUSPS"}, []record{
			{attrs: map[string]string{"GEOID": "r-ca", "NAME": "California", "STUSPS": "CA"}, shape: square(-123, 37)},
			{attrs: map[string]string{"GEOID": "", "NAME": "Nameless", "STUSPS": "XX"}, shape: square(0, 0)},
		})

	rows, err := ParseShapefile(path, stateSource())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "r-ca", rows[0].ID)
}

func TestParseShapefile_MissingField(t *testing.T) {
	path := writeShapefile(t, t.TempDir(), "bad.shp",
		[]string{"GEOID", "STUSPS"}, []record{
			{attrs: map[string]string{"GEOID": "r-ca", "STUSPS": "CA"}, shape: square(-123, 37)},
		})

	_, err := ParseShapefile(path, stateSource())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no field "NAME"`)
}

func TestParseShapefile_MissingFile(t *testing.T) {
	_, err := ParseShapefile(filepath.Join(t.TempDir(), "nope.shp"), stateSource())
	assert.Error(t, err)
}
