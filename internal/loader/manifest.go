// Package loader ingests boundary source archives into a dataset snapshot.
// A YAML manifest names the sources; each source is a zipped shapefile whose
// attributes map onto division columns. Sources are loaded in manifest order
// because that order becomes the snapshot's natural resolution order.
package loader

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/divisions-cli/internal/division"
)

// Manifest describes one snapshot build: its version string and the sources
// that make it up.
type Manifest struct {
	Version string   `yaml:"version"`
	Sources []Source `yaml:"sources"`
}

// Source is one boundary archive. URL may be http(s), ftp, or file.
type Source struct {
	Name    string           `yaml:"name"`
	URL     string           `yaml:"url"`
	Subtype division.Subtype `yaml:"subtype"`
	// Country pins every row of the source to one country code. Leave empty
	// when the shapefile carries a country attribute instead.
	Country string   `yaml:"country"`
	Fields  FieldMap `yaml:"fields"`
}

// FieldMap names the shapefile attributes that feed each division column.
// ID and Name are required; Country is required unless the source pins one.
type FieldMap struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Country string `yaml:"country"`
	Region  string `yaml:"region"`
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "loader: parse manifest")
	}

	if m.Version == "" {
		return nil, eris.New("loader: manifest version is required")
	}
	if len(m.Sources) == 0 {
		return nil, eris.New("loader: manifest has no sources")
	}

	valid := make(map[division.Subtype]bool)
	for _, s := range division.AllSubtypes() {
		valid[s] = true
	}

	for i, src := range m.Sources {
		switch {
		case src.Name == "":
			return nil, eris.Errorf("loader: source %d has no name", i)
		case src.URL == "":
			return nil, eris.Errorf("loader: source %q has no url", src.Name)
		case !valid[src.Subtype]:
			return nil, eris.Errorf("loader: source %q has unknown subtype %q", src.Name, src.Subtype)
		case src.Fields.ID == "" || src.Fields.Name == "":
			return nil, eris.Errorf("loader: source %q must map id and name fields", src.Name)
		case src.Country == "" && src.Fields.Country == "":
			return nil, eris.Errorf("loader: source %q needs a fixed country or a country field", src.Name)
		}
	}

	return &m, nil
}

// ReadManifest loads and validates a manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read manifest %s", path)
	}
	return ParseManifest(data)
}
