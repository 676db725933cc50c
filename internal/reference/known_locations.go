package reference

import (
	"fmt"

	"github.com/address-resolver/internal/normalizer"
	"gopkg.in/yaml.v3"
)

// KnownLocation pins a well-known, possibly reused place name to one
// neighborhood. It outranks reverse lookups in hierarchy completion.
type KnownLocation struct {
	Name         string `yaml:"name" json:"name"`
	Province     string `yaml:"province" json:"province"`
	District     string `yaml:"district" json:"district"`
	Neighborhood string `yaml:"neighborhood" json:"neighborhood"`
}

type knownFile struct {
	Version        string          `yaml:"version"`
	KnownLocations []KnownLocation `yaml:"known_locations"`
}

// ParseKnownLocations decodes a known-locations YAML document.
func ParseKnownLocations(b []byte) ([]KnownLocation, error) {
	var f knownFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse known locations: %w", err)
	}
	return f.KnownLocations, nil
}

func (ix *Index) addKnown(k KnownLocation) error {
	p, ok := ix.ResolveProvince(k.Province, Flexible)
	if !ok {
		return fmt.Errorf("known location %q: unknown province %q", k.Name, k.Province)
	}
	ds := ix.ResolveDistricts(p, k.District, Flexible)
	if len(ds) != 1 {
		return fmt.Errorf("known location %q: district %q not in %s", k.Name, k.District, p.Name)
	}
	ns := ix.ResolveNeighborhoods(ds[0], k.Neighborhood, Flexible)
	if len(ns) != 1 {
		return fmt.Errorf("known location %q: neighborhood %q not in %s", k.Name, k.Neighborhood, ds[0].Name)
	}
	// store canonical names so callers need no second lookup
	ix.known[normalizer.Key(k.Name)] = KnownLocation{
		Name:         k.Name,
		Province:     p.Name,
		District:     ds[0].Name,
		Neighborhood: ns[0].Name,
	}
	return nil
}

// KnownLocation looks a name up in the curated table.
func (ix *Index) KnownLocation(name string) (KnownLocation, bool) {
	k, ok := ix.known[flexibleKey(name)]
	return k, ok
}
