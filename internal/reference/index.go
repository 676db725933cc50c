// Package reference holds the read-only administrative hierarchy of
// provinces, districts and neighborhoods. An Index is built once and then
// shared by every request without locking.
package reference

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/normalizer"
)

// MatchMode selects how names are compared against the reference.
type MatchMode int

const (
	// Flexible accepts folded spellings, aliases and level suffixes.
	Flexible MatchMode = iota
	// Strict requires the canonical name up to letter case.
	Strict
)

// ParseMode maps a config string to a MatchMode.
func ParseMode(s string) MatchMode {
	if strings.EqualFold(s, "strict") {
		return Strict
	}
	return Flexible
}

type Province struct {
	Code      string
	Name      string
	Key       string
	Districts []*District
	Centroid  *models.GeoPoint
}

type District struct {
	Code          string
	Name          string
	Key           string
	Province      *Province
	Neighborhoods []*Neighborhood
	Centroid      *models.GeoPoint
	// PostalMin and PostalMax bound the neighborhood postal codes; zero when unknown.
	PostalMin int
	PostalMax int
}

type Neighborhood struct {
	Code       string
	Name       string
	Key        string
	District   *District
	Centroid   *models.GeoPoint
	PostalCode string
	Aliases    []string
	aliasKeys  []string
}

// Path returns "Province > District > Neighborhood".
func (n *Neighborhood) Path() string {
	return n.District.Province.Name + " > " + n.District.Name + " > " + n.Name
}

// Hierarchy is the lookup surface the resolver components depend on.
type Hierarchy interface {
	ResolveProvince(name string, mode MatchMode) (*Province, bool)
	ResolveDistricts(province *Province, name string, mode MatchMode) []*District
	ResolveNeighborhoods(district *District, name string, mode MatchMode) []*Neighborhood
	NeighborhoodsNamed(name string, mode MatchMode) []*Neighborhood
	Centroid(province, district, neighborhood string) (models.GeoPoint, bool)
	KnownLocation(name string) (KnownLocation, bool)
	ProvinceNames() []string
	DistrictNames() []string
	NeighborhoodNames() []string
}

// Index is the in-memory Hierarchy implementation.
type Index struct {
	provinces     map[string]*Province
	districts     map[string][]*District
	neighborhoods map[string][]*Neighborhood
	known         map[string]KnownLocation
	units         []models.ReferenceUnit
	version       string
}

var _ Hierarchy = (*Index)(nil)

// Stats summarizes the index contents.
type Stats struct {
	Provinces     int    `json:"provinces"`
	Districts     int    `json:"districts"`
	Neighborhoods int    `json:"neighborhoods"`
	KnownLocation int    `json:"known_locations"`
	Version       string `json:"version"`
}

// NewIndex builds an index from dataset rows. Known locations that do not
// resolve against the rows are rejected.
func NewIndex(units []models.ReferenceUnit, known []KnownLocation) (*Index, error) {
	ix := &Index{
		provinces:     make(map[string]*Province),
		districts:     make(map[string][]*District),
		neighborhoods: make(map[string][]*Neighborhood),
		known:         make(map[string]KnownLocation),
	}
	h := sha256.New()

	for i, u := range units {
		if u.ProvinceName == "" || u.DistrictName == "" || u.NeighborhoodName == "" {
			return nil, fmt.Errorf("reference row %d: province, district and neighborhood names are required", i+1)
		}
		p := ix.provinceFor(u)
		d := ix.districtFor(p, u)
		key := normalizer.Key(u.NeighborhoodName)
		if existing := findNeighborhood(d, key); existing != nil {
			return nil, fmt.Errorf("reference row %d: duplicate neighborhood %s", i+1, existing.Path())
		}
		n := &Neighborhood{
			Code:       u.NeighborhoodCode,
			Name:       u.NeighborhoodName,
			Key:        key,
			District:   d,
			PostalCode: u.PostalCode,
			Aliases:    u.Aliases,
		}
		if c, ok := u.Centroid(); ok {
			n.Centroid = &c
		}
		for _, a := range u.Aliases {
			if ak := normalizer.Key(a); ak != "" && ak != key {
				n.aliasKeys = append(n.aliasKeys, ak)
				ix.neighborhoods[ak] = append(ix.neighborhoods[ak], n)
			}
		}
		d.Neighborhoods = append(d.Neighborhoods, n)
		ix.neighborhoods[key] = append(ix.neighborhoods[key], n)
		ix.units = append(ix.units, u)
		fmt.Fprintf(h, "%s|%s|%s|%s|%s\n", u.ProvinceCode, u.DistrictCode, u.NeighborhoodCode, u.NeighborhoodName, u.PostalCode)
	}
	if len(ix.provinces) == 0 {
		return nil, fmt.Errorf("reference dataset is empty")
	}

	ix.computeDerived()
	ix.version = hex.EncodeToString(h.Sum(nil))[:12]

	for _, k := range known {
		if err := ix.addKnown(k); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

func (ix *Index) provinceFor(u models.ReferenceUnit) *Province {
	key := normalizer.Key(u.ProvinceName)
	if p, ok := ix.provinces[key]; ok {
		return p
	}
	p := &Province{Code: u.ProvinceCode, Name: u.ProvinceName, Key: key}
	ix.provinces[key] = p
	return p
}

func (ix *Index) districtFor(p *Province, u models.ReferenceUnit) *District {
	key := normalizer.Key(u.DistrictName)
	for _, d := range p.Districts {
		if d.Key == key {
			return d
		}
	}
	d := &District{Code: u.DistrictCode, Name: u.DistrictName, Key: key, Province: p}
	p.Districts = append(p.Districts, d)
	ix.districts[key] = append(ix.districts[key], d)
	return d
}

func findNeighborhood(d *District, key string) *Neighborhood {
	for _, n := range d.Neighborhoods {
		if n.Key == key {
			return n
		}
	}
	return nil
}

// computeDerived fills district and province centroids and postal ranges.
func (ix *Index) computeDerived() {
	for _, p := range ix.provinces {
		var pts []models.GeoPoint
		for _, d := range p.Districts {
			var dpts []models.GeoPoint
			for _, n := range d.Neighborhoods {
				if n.Centroid != nil {
					dpts = append(dpts, *n.Centroid)
				}
				if code, err := strconv.Atoi(n.PostalCode); err == nil && code > 0 {
					if d.PostalMin == 0 || code < d.PostalMin {
						d.PostalMin = code
					}
					if code > d.PostalMax {
						d.PostalMax = code
					}
				}
			}
			if c, ok := mean(dpts); ok {
				d.Centroid = &c
				pts = append(pts, c)
			}
		}
		if c, ok := mean(pts); ok {
			p.Centroid = &c
		}
	}
}

func mean(pts []models.GeoPoint) (models.GeoPoint, bool) {
	if len(pts) == 0 {
		return models.GeoPoint{}, false
	}
	var lat, lon float64
	for _, p := range pts {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(pts))
	return models.GeoPoint{Lat: lat / n, Lon: lon / n}, true
}

// Version is a short content hash of the dataset.
func (ix *Index) Version() string { return ix.version }

// Stats returns unit counts.
func (ix *Index) Stats() Stats {
	s := Stats{Provinces: len(ix.provinces), KnownLocation: len(ix.known), Version: ix.version}
	for _, p := range ix.provinces {
		s.Districts += len(p.Districts)
		for _, d := range p.Districts {
			s.Neighborhoods += len(d.Neighborhoods)
		}
	}
	return s
}

// Units returns the dataset rows in load order.
func (ix *Index) Units() []models.ReferenceUnit {
	out := make([]models.ReferenceUnit, len(ix.units))
	copy(out, ix.units)
	return out
}

// levelSuffixes are dropped from names in flexible mode.
var levelSuffixes = []string{" mahallesi", " mah", " mh", " ilcesi", " ili", " il", " merkez"}

func flexibleKey(name string) string {
	k := normalizer.Key(name)
	for _, s := range levelSuffixes {
		if strings.HasSuffix(k, s) && len(k) > len(s) {
			return strings.TrimSuffix(k, s)
		}
	}
	return k
}

func namesEqual(canonical, name string, mode MatchMode) bool {
	if mode == Strict {
		return normalizer.FoldCase(strings.TrimSpace(canonical)) == normalizer.FoldCase(strings.TrimSpace(name))
	}
	return normalizer.Key(canonical) == flexibleKey(name)
}

// ResolveProvince finds a province by name.
func (ix *Index) ResolveProvince(name string, mode MatchMode) (*Province, bool) {
	key := normalizer.Key(name)
	if mode == Flexible {
		key = flexibleKey(name)
	}
	p, ok := ix.provinces[key]
	if !ok || !namesEqual(p.Name, name, mode) {
		return nil, false
	}
	return p, true
}

// ResolveDistricts finds districts named name, limited to province when non-nil.
func (ix *Index) ResolveDistricts(province *Province, name string, mode MatchMode) []*District {
	key := normalizer.Key(name)
	if mode == Flexible {
		key = flexibleKey(name)
	}
	var out []*District
	for _, d := range ix.districts[key] {
		if province != nil && d.Province != province {
			continue
		}
		if namesEqual(d.Name, name, mode) {
			out = append(out, d)
		}
	}
	return out
}

// ResolveNeighborhoods finds neighborhoods named name, limited to district
// when non-nil. Flexible mode also matches aliases.
func (ix *Index) ResolveNeighborhoods(district *District, name string, mode MatchMode) []*Neighborhood {
	var out []*Neighborhood
	for _, n := range ix.NeighborhoodsNamed(name, mode) {
		if district == nil || n.District == district {
			out = append(out, n)
		}
	}
	return out
}

// NeighborhoodsNamed is the reverse lookup from a neighborhood name to every
// (province, district) that has it.
func (ix *Index) NeighborhoodsNamed(name string, mode MatchMode) []*Neighborhood {
	key := normalizer.Key(name)
	if mode == Flexible {
		key = flexibleKey(name)
	}
	var out []*Neighborhood
	seen := map[*Neighborhood]bool{}
	for _, n := range ix.neighborhoods[key] {
		if seen[n] {
			continue
		}
		if mode == Strict && !namesEqual(n.Name, name, Strict) {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Centroid returns the most specific centroid the given names resolve to.
// Names that do not resolve uniquely stop the descent.
func (ix *Index) Centroid(province, district, neighborhood string) (models.GeoPoint, bool) {
	var (
		p    *Province
		d    *District
		best *models.GeoPoint
	)
	if province != "" {
		if pp, ok := ix.ResolveProvince(province, Flexible); ok {
			p = pp
			best = p.Centroid
		}
	}
	if district != "" {
		if ds := ix.ResolveDistricts(p, district, Flexible); len(ds) == 1 {
			d = ds[0]
			if d.Centroid != nil {
				best = d.Centroid
			}
		}
	}
	if neighborhood != "" {
		var ns []*Neighborhood
		for _, n := range ix.ResolveNeighborhoods(d, neighborhood, Flexible) {
			if p == nil || n.District.Province == p {
				ns = append(ns, n)
			}
		}
		if len(ns) == 1 && ns[0].Centroid != nil {
			best = ns[0].Centroid
		}
	}
	if best == nil {
		return models.GeoPoint{}, false
	}
	return *best, true
}

// Find returns rows whose names start with the given prefixes, compared
// case- and diacritic-insensitively. Empty prefixes match everything.
func (ix *Index) Find(province, district, neighborhood string) []models.ReferenceUnit {
	pp, dp, np := normalizer.Key(province), normalizer.Key(district), normalizer.Key(neighborhood)
	var out []models.ReferenceUnit
	for _, u := range ix.units {
		if strings.HasPrefix(normalizer.Key(u.ProvinceName), pp) &&
			strings.HasPrefix(normalizer.Key(u.DistrictName), dp) &&
			strings.HasPrefix(normalizer.Key(u.NeighborhoodName), np) {
			out = append(out, u)
		}
	}
	return out
}

// ProvinceNames lists canonical province names, sorted.
func (ix *Index) ProvinceNames() []string {
	var out []string
	for _, p := range ix.provinces {
		out = append(out, p.Name)
	}
	sort.Strings(out)
	return out
}

// DistrictNames lists distinct canonical district names, sorted.
func (ix *Index) DistrictNames() []string {
	seen := map[string]bool{}
	var out []string
	for _, ds := range ix.districts {
		for _, d := range ds {
			if !seen[d.Name] {
				seen[d.Name] = true
				out = append(out, d.Name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// NeighborhoodNames lists distinct canonical neighborhood names and aliases, sorted.
func (ix *Index) NeighborhoodNames() []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, ns := range ix.neighborhoods {
		for _, n := range ns {
			add(n.Name)
			for _, a := range n.Aliases {
				add(a)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Names is the full vocabulary of place names.
func (ix *Index) Names() []string {
	out := ix.ProvinceNames()
	out = append(out, ix.DistrictNames()...)
	return append(out, ix.NeighborhoodNames()...)
}
