package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/normalizer"
	"github.com/address-resolver/internal/reference"
)

// Base confidence per component kind. Administrative names and postal codes
// vary little once recognized; streets vary the most.
var baseConfidence = map[models.ComponentKind]float64{
	models.KindProvince:        0.95,
	models.KindPostalCode:      0.95,
	models.KindDistrict:        0.90,
	models.KindNeighborhood:    0.85,
	models.KindBuildingNumber:  0.80,
	models.KindApartmentNumber: 0.75,
	models.KindStreet:          0.70,
}

const maxNameTokens = 4

var (
	reBuildingNo     = regexp.MustCompile(`(?:^|\s)(?:no|numara|nolu)\s?(\d+[a-zçğıöşü]?)(?:/(\d+))?(?:\s|$)`)
	reAfterStreet    = regexp.MustCompile(`(?:sokak|sokağı|caddesi|cadde|bulvarı|bulvar|yolu|çıkmazı)\s(\d+[a-zçğıöşü]?)(?:/(\d+))?(?:\s|$)`)
	reSlashNumber    = regexp.MustCompile(`(?:^|\s)(\d+)/(\d+)(?:\s|$)`)
	reApartment      = regexp.MustCompile(`(?:^|\s)(?:daire|d)\s?(\d+)(?:\s|$)`)
	rePostalExplicit = regexp.MustCompile(`(?:^|\s)(?:posta kodu|pk)\s?(\d{5})(?:\s|$)`)
	rePostal         = regexp.MustCompile(`(?:^|\s)(\d{5})(?:\s|$)`)
	reSlashNames     = regexp.MustCompile(`^(\pL+)/(\pL+)$`)
)

var streetTypes = map[string]bool{
	"sokak": true, "sokağı": true, "caddesi": true, "cadde": true,
	"bulvarı": true, "bulvar": true, "yolu": true, "çıkmazı": true, "meydanı": true,
}

// boundary tokens never belong to a street or neighborhood name
var boundaryTokens = map[string]bool{
	"mahallesi": true, "köyü": true, "no": true, "numara": true, "nolu": true,
	"ilçesi": true, "ili": true, "daire": true, "kat": true, "blok": true,
}

// span is a half-open token range.
type span struct{ start, end int }

type candidate struct {
	value string
	span  span
}

// scan is the mutable state of one rule-based extraction.
type scan struct {
	text     string
	tokens   []string
	offsets  []int
	consumed []bool
	index    reference.Hierarchy
	found    map[models.ComponentKind]candidate
}

func newScan(text string, index reference.Hierarchy) *scan {
	tokens := strings.Fields(text)
	s := &scan{
		text:     strings.Join(tokens, " "),
		tokens:   tokens,
		offsets:  make([]int, len(tokens)),
		consumed: make([]bool, len(tokens)),
		index:    index,
		found:    make(map[models.ComponentKind]candidate),
	}
	off := 0
	for i, t := range tokens {
		s.offsets[i] = off
		off += len(t) + 1
	}
	return s
}

// tokenAt maps a byte offset in text to a token index.
func (s *scan) tokenAt(off int) int {
	idx := 0
	for i, o := range s.offsets {
		if o <= off {
			idx = i
		}
	}
	return idx
}

// byteSpan converts byte offsets of a match into a token span, ignoring the
// separators a pattern may have consumed at either edge.
func (s *scan) byteSpan(start, end int) span {
	for start < end && s.text[start] == ' ' {
		start++
	}
	for end > start && s.text[end-1] == ' ' {
		end--
	}
	return span{start: s.tokenAt(start), end: s.tokenAt(end-1) + 1}
}

func (s *scan) free(sp span) bool {
	for i := sp.start; i < sp.end; i++ {
		if s.consumed[i] {
			return false
		}
	}
	return true
}

func (s *scan) take(kind models.ComponentKind, c candidate, extra ...span) {
	for _, sp := range append([]span{c.span}, extra...) {
		for i := sp.start; i < sp.end && i < len(s.consumed); i++ {
			s.consumed[i] = true
		}
	}
	s.found[kind] = c
}

func (s *scan) join(sp span) string {
	return strings.Join(s.tokens[sp.start:sp.end], " ")
}

// family is one extraction rule for one component kind.
type family struct {
	kind    models.ComponentKind
	name    string
	extract func(*scan) bool
}

// families run in order; within a kind the first one that matches wins.
// Keyword-anchored rules come before gazetteer scans so that an explicit
// "X mahallesi" is not first claimed as a district named X.
var families = []family{
	{models.KindPostalCode, "postal_explicit", postalExplicit},
	{models.KindBuildingNumber, "building_no", buildingNo},
	{models.KindBuildingNumber, "building_after_street", buildingAfterStreet},
	{models.KindBuildingNumber, "building_slash", buildingSlash},
	{models.KindApartmentNumber, "apartment_keyword", apartmentKeyword},
	{models.KindPostalCode, "postal_bare", postalBare},
	{models.KindStreet, "street_typed", streetTyped},
	{models.KindNeighborhood, "neighborhood_suffix", neighborhoodSuffix},
	{models.KindDistrict, "district_suffix", suffixed(models.KindDistrict, "ilçesi")},
	{models.KindProvince, "province_suffix", suffixed(models.KindProvince, "ili")},
	{models.KindProvince, "slash_pair", slashPair},
	{models.KindProvince, "province_gazetteer", provinceGazetteer},
	{models.KindDistrict, "district_gazetteer", districtGazetteer},
	{models.KindNeighborhood, "neighborhood_gazetteer", neighborhoodGazetteer},
}

func postalExplicit(s *scan) bool {
	m := rePostalExplicit.FindStringSubmatchIndex(s.text)
	if m == nil {
		return false
	}
	s.take(models.KindPostalCode, candidate{value: s.text[m[2]:m[3]], span: s.byteSpan(m[0], m[1])})
	return true
}

func postalBare(s *scan) bool {
	for _, m := range rePostal.FindAllStringSubmatchIndex(s.text, -1) {
		code := s.text[m[2]:m[3]]
		sp := s.byteSpan(m[2], m[3])
		if !validProvinceCode(code[:2]) || !s.free(sp) {
			continue
		}
		s.take(models.KindPostalCode, candidate{value: code, span: sp})
		return true
	}
	return false
}

func validProvinceCode(prefix string) bool {
	n, err := strconv.Atoi(prefix)
	return err == nil && n >= 1 && n <= 81
}

func buildingNo(s *scan) bool {
	return takeNumber(s, reBuildingNo, true)
}

func buildingAfterStreet(s *scan) bool {
	return takeNumber(s, reAfterStreet, false)
}

func buildingSlash(s *scan) bool {
	return takeNumber(s, reSlashNumber, false)
}

// takeNumber records a building number and, when the match carries a
// "/n" suffix, the apartment number. withKeyword also consumes the "no"
// token in front of the number.
func takeNumber(s *scan, re *regexp.Regexp, withKeyword bool) bool {
	for _, m := range re.FindAllStringSubmatchIndex(s.text, -1) {
		numSpan := s.byteSpan(m[2], m[3])
		if !s.free(numSpan) {
			continue
		}
		s.take(models.KindBuildingNumber, candidate{value: strings.ToUpper(s.text[m[2]:m[3]]), span: numSpan})
		if m[4] >= 0 {
			if _, ok := s.found[models.KindApartmentNumber]; !ok {
				s.found[models.KindApartmentNumber] = candidate{value: s.text[m[4]:m[5]], span: numSpan}
			}
		}
		if withKeyword {
			if lead := s.byteSpan(m[0], m[1]).start; lead < numSpan.start {
				s.consumed[lead] = true
			}
		}
		return true
	}
	return false
}

func apartmentKeyword(s *scan) bool {
	m := reApartment.FindStringSubmatchIndex(s.text)
	if m == nil {
		return false
	}
	sp := s.byteSpan(m[2], m[3])
	s.take(models.KindApartmentNumber, candidate{value: s.text[m[2]:m[3]], span: sp}, span{s.byteSpan(m[0], m[1]).start, sp.start})
	return true
}

// streetTyped takes up to three name tokens before a street type word. A
// bare number is allowed only right before the type ("1453 sokak").
func streetTyped(s *scan) bool {
	for j, t := range s.tokens {
		if !streetTypes[t] || s.consumed[j] {
			continue
		}
		start := j
		for i := j - 1; i >= 0 && j-i <= 3; i-- {
			tok := s.tokens[i]
			if s.consumed[i] || boundaryTokens[tok] || streetTypes[tok] {
				break
			}
			if isNumber(tok) && i != j-1 {
				break
			}
			if s.isAdminName(i) || (i != j-1 && s.isNeighborhoodName(i)) {
				break
			}
			start = i
			if isNumber(tok) {
				break
			}
		}
		if start == j {
			continue
		}
		sp := span{start, j + 1}
		s.take(models.KindStreet, candidate{value: normalizer.TitleCase(s.join(sp)), span: sp})
		return true
	}
	return false
}

// isAdminName reports whether token i on its own names a province or district.
func (s *scan) isAdminName(i int) bool {
	tok := s.tokens[i]
	if _, ok := s.index.ResolveProvince(tok, reference.Flexible); ok {
		return true
	}
	return len(s.index.ResolveDistricts(nil, tok, reference.Flexible)) > 0
}

func (s *scan) isNeighborhoodName(i int) bool {
	return len(s.index.NeighborhoodsNamed(s.tokens[i], reference.Flexible)) > 0
}

// neighborhoodSuffix handles "X mahallesi" and "X köyü", preferring the
// longest X that the reference knows.
func neighborhoodSuffix(s *scan) bool {
	for j, t := range s.tokens {
		if (t != "mahallesi" && t != "köyü") || j == 0 || s.consumed[j] {
			continue
		}
		best := -1
		for n := 1; n <= 3 && j-n >= 0; n++ {
			sp := span{j - n, j}
			if !s.free(sp) {
				break
			}
			if len(s.index.NeighborhoodsNamed(s.join(sp), reference.Flexible)) > 0 {
				best = j - n
			}
		}
		if best < 0 {
			prev := s.tokens[j-1]
			if s.consumed[j-1] || isNumber(prev) || boundaryTokens[prev] || streetTypes[prev] {
				continue
			}
			best = j - 1
		}
		sp := span{best, j}
		s.take(models.KindNeighborhood, candidate{value: s.join(sp), span: sp}, span{j, j + 1})
		return true
	}
	return false
}

func suffixed(kind models.ComponentKind, suffix string) func(*scan) bool {
	return func(s *scan) bool {
		for j, t := range s.tokens {
			if t != suffix || j == 0 || s.consumed[j] || s.consumed[j-1] {
				continue
			}
			sp := span{j - 1, j}
			s.take(kind, candidate{value: s.join(sp), span: sp}, span{j, j + 1})
			return true
		}
		return false
	}
}

// slashPair reads the "district/province" convention, e.g. "çankaya/ankara".
func slashPair(s *scan) bool {
	for i, t := range s.tokens {
		if s.consumed[i] {
			continue
		}
		m := reSlashNames.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		p, ok := s.index.ResolveProvince(m[2], reference.Flexible)
		if !ok {
			continue
		}
		sp := span{i, i + 1}
		s.take(models.KindProvince, candidate{value: m[2], span: sp})
		if _, has := s.found[models.KindDistrict]; !has && len(s.index.ResolveDistricts(p, m[1], reference.Flexible)) > 0 {
			s.found[models.KindDistrict] = candidate{value: m[1], span: sp}
		}
		return true
	}
	return false
}

// gazetteerMatches lists free n-grams, longest first at each position, for
// which accept returns true.
func (s *scan) gazetteerMatches(accept func(name string) bool) []candidate {
	var out []candidate
	for i := 0; i < len(s.tokens); i++ {
		for n := maxNameTokens; n >= 1; n-- {
			if i+n > len(s.tokens) {
				continue
			}
			sp := span{i, i + n}
			if !s.free(sp) {
				continue
			}
			name := s.join(sp)
			if accept(name) {
				out = append(out, candidate{value: name, span: sp})
				i += n - 1
				break
			}
		}
	}
	return out
}

// provinceGazetteer prefers the last mention; Turkish addresses end with the province.
func provinceGazetteer(s *scan) bool {
	ms := s.gazetteerMatches(func(name string) bool {
		_, ok := s.index.ResolveProvince(name, reference.Flexible)
		return ok
	})
	if len(ms) == 0 {
		return false
	}
	s.take(models.KindProvince, ms[len(ms)-1])
	return true
}

func districtGazetteer(s *scan) bool {
	province := s.resolvedProvince()
	ms := s.gazetteerMatches(func(name string) bool {
		return len(s.index.ResolveDistricts(nil, name, reference.Flexible)) > 0
	})
	if len(ms) == 0 {
		return false
	}
	pick := ms[0]
	if province != nil {
		for _, m := range ms {
			if len(s.index.ResolveDistricts(province, m.value, reference.Flexible)) > 0 {
				pick = m
				break
			}
		}
	}
	s.take(models.KindDistrict, pick)
	return true
}

func neighborhoodGazetteer(s *scan) bool {
	province := s.resolvedProvince()
	district := s.resolvedDistrict(province)
	ms := s.gazetteerMatches(func(name string) bool {
		return len(s.index.NeighborhoodsNamed(name, reference.Flexible)) > 0
	})
	if len(ms) == 0 {
		return false
	}
	pick := ms[0]
	for _, m := range ms {
		if inScope(s.index.NeighborhoodsNamed(m.value, reference.Flexible), province, district) {
			pick = m
			break
		}
	}
	s.take(models.KindNeighborhood, pick)
	return true
}

func inScope(ns []*reference.Neighborhood, p *reference.Province, d *reference.District) bool {
	for _, n := range ns {
		if (d == nil || n.District == d) && (p == nil || n.District.Province == p) {
			return true
		}
	}
	return false
}

func (s *scan) resolvedProvince() *reference.Province {
	c, ok := s.found[models.KindProvince]
	if !ok {
		return nil
	}
	p, _ := s.index.ResolveProvince(c.value, reference.Flexible)
	return p
}

func (s *scan) resolvedDistrict(p *reference.Province) *reference.District {
	c, ok := s.found[models.KindDistrict]
	if !ok {
		return nil
	}
	if ds := s.index.ResolveDistricts(p, c.value, reference.Flexible); len(ds) == 1 {
		return ds[0]
	}
	return nil
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
