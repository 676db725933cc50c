// Package validator checks parsed components against the reference
// hierarchy and postal and geographic bounds.
package validator

import (
	"fmt"
	"strconv"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/reference"
	"go.uber.org/zap"
)

// Check weights. Checks with nothing to look at drop out of the denominator.
const (
	weightHierarchy  = 0.5
	weightPostal     = 0.2
	weightGeographic = 0.2
	weightConflict   = 0.1
)

// Issue fields that are not component kinds.
const (
	FieldCoordinates = "coordinates"
)

// HierarchyValidator produces a ValidationResult for parsed components.
// It only reads the reference index and is safe for concurrent use.
type HierarchyValidator struct {
	index  reference.Hierarchy
	mode   reference.MatchMode
	cfg    config.ValidationCfg
	logger *zap.Logger
}

func NewHierarchyValidator(index reference.Hierarchy, cfg config.ValidationCfg, logger *zap.Logger) *HierarchyValidator {
	return &HierarchyValidator{
		index:  index,
		mode:   reference.ParseMode(cfg.Mode),
		cfg:    cfg,
		logger: logger,
	}
}

// resolved holds the reference nodes the component names mapped to.
type resolved struct {
	province *reference.Province
	district *reference.District
	hood     *reference.Neighborhood
}

type verdict struct {
	issues         []models.ValidationIssue
	hierarchyValid int
	hierarchyTotal int
	hierarchyBad   bool
}

func (v *verdict) add(field, reason string) {
	v.issues = append(v.issues, models.ValidationIssue{Field: field, Reason: reason})
}

// Validate never fails; problems are reported as issues.
func (hv *HierarchyValidator) Validate(c models.AddressComponents) models.ValidationResult {
	var (
		vd  verdict
		res resolved
	)
	hv.checkHierarchy(c, &res, &vd)

	var score, weight float64
	if vd.hierarchyTotal > 0 {
		score += weightHierarchy * float64(vd.hierarchyValid) / float64(vd.hierarchyTotal)
		weight += weightHierarchy
	}
	if c.PostalCode.Present() {
		weight += weightPostal
		if hv.checkPostal(c.PostalCode.Value, res, &vd) {
			score += weightPostal
		}
	}
	if c.Coordinates != nil {
		weight += weightGeographic
		if hv.checkGeographic(*c.Coordinates, c, &vd) {
			score += weightGeographic
		}
	}
	weight += weightConflict
	if len(c.Conflicts) == 0 {
		score += weightConflict
	}
	for _, cf := range c.Conflicts {
		vd.add(string(cf.Field), cf.Reason)
	}

	result := models.ValidationResult{
		IsConsistent: !vd.hierarchyBad && len(c.Conflicts) == 0,
		Confidence:   score / weight,
		Issues:       vd.issues,
	}
	if len(vd.issues) > 0 {
		hv.logger.Debug("Validation issues",
			zap.Int("issues", len(vd.issues)),
			zap.Bool("consistent", result.IsConsistent),
			zap.Float64("confidence", result.Confidence))
	}
	return result
}

func (hv *HierarchyValidator) checkHierarchy(c models.AddressComponents, res *resolved, vd *verdict) {
	if c.Province.Present() {
		vd.hierarchyTotal++
		if p, ok := hv.index.ResolveProvince(c.Province.Value, hv.mode); ok {
			res.province = p
			vd.hierarchyValid++
		} else {
			vd.hierarchyBad = true
			vd.add(string(models.KindProvince), fmt.Sprintf("unknown province %q", c.Province.Value))
		}
	}

	if c.District.Present() {
		vd.hierarchyTotal++
		ds := hv.index.ResolveDistricts(res.province, c.District.Value, hv.mode)
		switch {
		case len(ds) == 1:
			res.district = ds[0]
			vd.hierarchyValid++
		case len(ds) > 1:
			// same name in several provinces, none given
			vd.hierarchyValid++
		case res.province != nil:
			vd.hierarchyBad = true
			reason := fmt.Sprintf("district %q is not in %s", c.District.Value, res.province.Name)
			if other := hv.index.ResolveDistricts(nil, c.District.Value, hv.mode); len(other) > 0 {
				reason += fmt.Sprintf(" (found in %s)", other[0].Province.Name)
			}
			vd.add(string(models.KindDistrict), reason)
		default:
			vd.hierarchyBad = true
			vd.add(string(models.KindDistrict), fmt.Sprintf("unknown district %q", c.District.Value))
		}
	}

	if c.Neighborhood.Present() {
		vd.hierarchyTotal++
		var scoped []*reference.Neighborhood
		for _, n := range hv.index.NeighborhoodsNamed(c.Neighborhood.Value, hv.mode) {
			if res.district != nil && n.District != res.district {
				continue
			}
			if res.province != nil && n.District.Province != res.province {
				continue
			}
			scoped = append(scoped, n)
		}
		switch {
		case len(scoped) > 0:
			if len(scoped) == 1 {
				res.hood = scoped[0]
			}
			vd.hierarchyValid++
		case res.district != nil:
			vd.hierarchyBad = true
			vd.add(string(models.KindNeighborhood), fmt.Sprintf("neighborhood %q is not in %s", c.Neighborhood.Value, res.district.Name))
		case res.province != nil:
			vd.hierarchyBad = true
			vd.add(string(models.KindNeighborhood), fmt.Sprintf("neighborhood %q is not in %s", c.Neighborhood.Value, res.province.Name))
		default:
			vd.hierarchyBad = true
			vd.add(string(models.KindNeighborhood), fmt.Sprintf("unknown neighborhood %q", c.Neighborhood.Value))
		}
	}
}

// checkPostal compares the code with the resolved province and district.
// A mismatch lowers confidence but never makes the address inconsistent.
func (hv *HierarchyValidator) checkPostal(code string, res resolved, vd *verdict) bool {
	field := string(models.KindPostalCode)
	n, err := strconv.Atoi(code)
	if err != nil || len(code) != 5 || n/1000 < 1 || n/1000 > 81 {
		vd.add(field, fmt.Sprintf("malformed postal code %q", code))
		return false
	}
	if res.province != nil && code[:2] != res.province.Code {
		vd.add(field, fmt.Sprintf("postal code %s is outside %s", code, res.province.Name))
		return false
	}
	if d := res.district; d != nil && d.PostalMin > 0 {
		lo, hi := d.PostalMin/10*10, d.PostalMax/10*10+9
		if n < lo || n > hi {
			vd.add(field, fmt.Sprintf("postal code %s is outside %s range %05d-%05d", code, d.Name, lo, hi))
			return false
		}
	}
	return true
}

func (hv *HierarchyValidator) checkGeographic(p models.GeoPoint, c models.AddressComponents, vd *verdict) bool {
	if !p.Valid() || !hv.cfg.Bounds.Contains(p) {
		vd.add(FieldCoordinates, fmt.Sprintf("coordinates (%.4f, %.4f) are outside the country bounds", p.Lat, p.Lon))
		return false
	}
	centroid, ok := hv.index.Centroid(c.Province.Value, c.District.Value, c.Neighborhood.Value)
	if !ok || hv.cfg.MaxCentroidDistanceKm <= 0 {
		return true
	}
	km := p.DistanceMeters(centroid) / 1000
	if km > hv.cfg.MaxCentroidDistanceKm {
		vd.add(FieldCoordinates, fmt.Sprintf("coordinates are %.1f km from the reference centroid", km))
		return false
	}
	return true
}
