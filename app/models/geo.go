package models

import "math"

const earthRadiusMeters = 6371008.8

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lon float64 `bson:"lon" json:"lon"`
}

// DistanceMeters returns the great-circle distance between two points.
func (p GeoPoint) DistanceMeters(q GeoPoint) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := q.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (q.Lon - p.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Valid reports whether the point lies in the WGS84 domain.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// BoundingBox is an axis-aligned lat/lon rectangle.
type BoundingBox struct {
	MinLat float64 `yaml:"min_lat" json:"min_lat"`
	MaxLat float64 `yaml:"max_lat" json:"max_lat"`
	MinLon float64 `yaml:"min_lon" json:"min_lon"`
	MaxLon float64 `yaml:"max_lon" json:"max_lon"`
}

// Contains reports whether p falls inside the box.
func (b BoundingBox) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// TurkeyBounds covers the mainland and islands of Türkiye.
var TurkeyBounds = BoundingBox{MinLat: 35.8, MaxLat: 42.2, MinLon: 25.6, MaxLon: 44.9}

// BoxAround returns a box enclosing the circle of radius meters around p.
func BoxAround(p GeoPoint, meters float64) BoundingBox {
	dLat := meters / earthRadiusMeters * 180 / math.Pi
	cos := math.Cos(p.Lat * math.Pi / 180)
	if cos < 1e-6 {
		cos = 1e-6
	}
	dLon := dLat / cos
	return BoundingBox{MinLat: p.Lat - dLat, MaxLat: p.Lat + dLat, MinLon: p.Lon - dLon, MaxLon: p.Lon + dLon}
}
