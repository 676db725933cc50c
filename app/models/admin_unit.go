package models

// Administrative levels.
const (
	LevelProvince     = 1
	LevelDistrict     = 2
	LevelNeighborhood = 3
)

// ReferenceUnit is one row of the reference hierarchy dataset: a neighborhood
// with its parents, centroid and postal code.
type ReferenceUnit struct {
	ProvinceCode     string   `bson:"province_code" json:"province_code" yaml:"province_code"`
	ProvinceName     string   `bson:"province_name" json:"province_name" yaml:"province_name"`
	DistrictCode     string   `bson:"district_code" json:"district_code" yaml:"district_code"`
	DistrictName     string   `bson:"district_name" json:"district_name" yaml:"district_name"`
	NeighborhoodCode string   `bson:"neighborhood_code" json:"neighborhood_code" yaml:"neighborhood_code"`
	NeighborhoodName string   `bson:"neighborhood_name" json:"neighborhood_name" yaml:"neighborhood_name"`
	Latitude         *float64 `bson:"latitude,omitempty" json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude        *float64 `bson:"longitude,omitempty" json:"longitude,omitempty" yaml:"longitude,omitempty"`
	PostalCode       string   `bson:"postal_code,omitempty" json:"postal_code,omitempty" yaml:"postal_code,omitempty"`
	Aliases          []string `bson:"aliases,omitempty" json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// Centroid returns the unit's centroid when both coordinates are set.
func (u ReferenceUnit) Centroid() (GeoPoint, bool) {
	if u.Latitude == nil || u.Longitude == nil {
		return GeoPoint{}, false
	}
	return GeoPoint{Lat: *u.Latitude, Lon: *u.Longitude}, true
}

// Path returns the province > district > neighborhood display path.
func (u ReferenceUnit) Path() string {
	return u.ProvinceName + " > " + u.DistrictName + " > " + u.NeighborhoodName
}
