package parser

import (
	"fmt"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/reference"
)

// Confidence multipliers for values the parser infers instead of reads.
const (
	completionFactor    = 0.8
	knownLocationFactor = 0.9
)

// completer fills missing administrative levels from the reference index.
// It only fills a field when the index gives a single answer, and it never
// replaces a present value: a disagreeing suggestion becomes a Conflict.
type completer struct {
	index reference.Hierarchy
}

func (cm completer) complete(c *models.AddressComponents) {
	province := cm.province(c)
	district := cm.district(c, province)

	if c.Neighborhood.Present() {
		if !cm.fromKnownLocation(c, province, district) {
			cm.fromNeighborhood(c, province, district)
		}
		province = cm.province(c)
		district = cm.district(c, province)
	}

	if c.District.Present() && district == nil && province != nil {
		// district exists elsewhere: suggest, do not move the province
		if ds := cm.index.ResolveDistricts(nil, c.District.Value, reference.Flexible); len(ds) == 1 {
			cm.conflict(c, models.KindProvince, ds[0].Province.Name,
				fmt.Sprintf("district %s belongs to %s", ds[0].Name, ds[0].Province.Name))
		}
	}
	if c.District.Present() && !c.Province.Present() {
		if ds := cm.index.ResolveDistricts(nil, c.District.Value, reference.Flexible); len(ds) == 1 {
			cm.fill(c, models.KindProvince, ds[0].Province.Name, c.District.Confidence*completionFactor, models.SourceCompletion)
			district = ds[0]
		}
	}
	if district != nil && !c.Neighborhood.Present() && len(district.Neighborhoods) == 1 {
		cm.fill(c, models.KindNeighborhood, district.Neighborhoods[0].Name, c.District.Confidence*completionFactor, models.SourceCompletion)
	}
}

func (cm completer) province(c *models.AddressComponents) *reference.Province {
	if !c.Province.Present() {
		return nil
	}
	p, _ := cm.index.ResolveProvince(c.Province.Value, reference.Flexible)
	return p
}

func (cm completer) district(c *models.AddressComponents, p *reference.Province) *reference.District {
	if !c.District.Present() {
		return nil
	}
	if c.Province.Present() && p == nil {
		return nil
	}
	if ds := cm.index.ResolveDistricts(p, c.District.Value, reference.Flexible); len(ds) == 1 {
		return ds[0]
	}
	return nil
}

// fromKnownLocation applies the curated table when it agrees with every
// administrative level already present.
func (cm completer) fromKnownLocation(c *models.AddressComponents, p *reference.Province, d *reference.District) bool {
	k, ok := cm.index.KnownLocation(c.Neighborhood.Value)
	if !ok {
		return false
	}
	if c.Province.Present() && (p == nil || p.Name != k.Province) {
		return false
	}
	if c.District.Present() && (d == nil || d.Name != k.District) {
		return false
	}
	conf := c.Neighborhood.Confidence * knownLocationFactor
	cm.fill(c, models.KindProvince, k.Province, conf, models.SourceKnownLocation)
	cm.fill(c, models.KindDistrict, k.District, conf, models.SourceKnownLocation)
	return true
}

// fromNeighborhood does the reverse lookup, narrowed by whatever levels are
// present. Zero or several matches fill nothing.
func (cm completer) fromNeighborhood(c *models.AddressComponents, p *reference.Province, d *reference.District) {
	all := cm.index.NeighborhoodsNamed(c.Neighborhood.Value, reference.Flexible)
	var scoped []*reference.Neighborhood
	for _, n := range all {
		if c.Province.Present() && n.District.Province != p {
			continue
		}
		if c.District.Present() && n.District != d {
			continue
		}
		scoped = append(scoped, n)
	}
	if len(scoped) == 1 {
		n := scoped[0]
		c.Neighborhood.Value = n.Name
		conf := c.Neighborhood.Confidence * completionFactor
		cm.fill(c, models.KindDistrict, n.District.Name, conf, models.SourceCompletion)
		cm.fill(c, models.KindProvince, n.District.Province.Name, conf, models.SourceCompletion)
		return
	}
	if len(scoped) == 0 && len(all) == 1 {
		n := all[0]
		if c.Province.Present() && p != n.District.Province {
			cm.conflict(c, models.KindProvince, n.District.Province.Name,
				fmt.Sprintf("neighborhood %s is in %s", n.Name, n.District.Province.Name))
		}
		if c.District.Present() && d != n.District {
			cm.conflict(c, models.KindDistrict, n.District.Name,
				fmt.Sprintf("neighborhood %s is in %s", n.Name, n.District.Name))
		}
	}
}

func (cm completer) fill(c *models.AddressComponents, kind models.ComponentKind, value string, conf float64, src models.FieldSource) {
	if c.Get(kind).Present() {
		return
	}
	c.Set(kind, models.Field{Value: value, Confidence: conf, Source: src})
}

func (cm completer) conflict(c *models.AddressComponents, kind models.ComponentKind, suggested, reason string) {
	existing := c.Get(kind).Value
	for _, cf := range c.Conflicts {
		if cf.Field == kind && cf.Suggested == suggested {
			return
		}
	}
	c.Conflicts = append(c.Conflicts, models.Conflict{Field: kind, Existing: existing, Suggested: suggested, Reason: reason})
}
