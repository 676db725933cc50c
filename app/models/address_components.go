package models

// ComponentKind names one field of an address.
type ComponentKind string

const (
	KindProvince        ComponentKind = "province"
	KindDistrict        ComponentKind = "district"
	KindNeighborhood    ComponentKind = "neighborhood"
	KindStreet          ComponentKind = "street"
	KindBuildingNumber  ComponentKind = "building_number"
	KindApartmentNumber ComponentKind = "apartment_number"
	KindPostalCode      ComponentKind = "postal_code"
)

// ComponentKinds lists kinds from the top of the hierarchy down.
var ComponentKinds = []ComponentKind{
	KindProvince,
	KindDistrict,
	KindNeighborhood,
	KindStreet,
	KindBuildingNumber,
	KindApartmentNumber,
	KindPostalCode,
}

// FieldSource tells where a field value came from.
type FieldSource string

const (
	SourceRule          FieldSource = "rule"
	SourceStatistical   FieldSource = "statistical"
	SourceCompletion    FieldSource = "completion"
	SourceKnownLocation FieldSource = "known_location"
	SourceStore         FieldSource = "store"
)

// Field is one extracted component value with its own confidence.
type Field struct {
	Value      string      `bson:"value" json:"value"`
	Confidence float64     `bson:"confidence" json:"confidence"`
	Source     FieldSource `bson:"source,omitempty" json:"source,omitempty"`
}

// Present reports whether the field carries a value.
func (f Field) Present() bool { return f.Value != "" }

// Conflict records a completion suggestion that disagreed with an existing value.
type Conflict struct {
	Field     ComponentKind `bson:"field" json:"field"`
	Existing  string        `bson:"existing" json:"existing"`
	Suggested string        `bson:"suggested" json:"suggested"`
	Reason    string        `bson:"reason" json:"reason"`
}

// AddressComponents holds the structured fields of an address.
type AddressComponents struct {
	Province        Field      `bson:"province" json:"province"`
	District        Field      `bson:"district" json:"district"`
	Neighborhood    Field      `bson:"neighborhood" json:"neighborhood"`
	Street          Field      `bson:"street" json:"street"`
	BuildingNumber  Field      `bson:"building_number" json:"building_number"`
	ApartmentNumber Field      `bson:"apartment_number" json:"apartment_number"`
	PostalCode      Field      `bson:"postal_code" json:"postal_code"`
	Coordinates     *GeoPoint  `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
	Conflicts       []Conflict `bson:"conflicts,omitempty" json:"conflicts,omitempty"`
}

// Get returns the field for kind.
func (c *AddressComponents) Get(kind ComponentKind) Field {
	if p := c.field(kind); p != nil {
		return *p
	}
	return Field{}
}

// Set replaces the field for kind.
func (c *AddressComponents) Set(kind ComponentKind, f Field) {
	if p := c.field(kind); p != nil {
		*p = f
	}
}

func (c *AddressComponents) field(kind ComponentKind) *Field {
	switch kind {
	case KindProvince:
		return &c.Province
	case KindDistrict:
		return &c.District
	case KindNeighborhood:
		return &c.Neighborhood
	case KindStreet:
		return &c.Street
	case KindBuildingNumber:
		return &c.BuildingNumber
	case KindApartmentNumber:
		return &c.ApartmentNumber
	case KindPostalCode:
		return &c.PostalCode
	}
	return nil
}

// PresentKinds lists the kinds that carry a value.
func (c *AddressComponents) PresentKinds() []ComponentKind {
	var out []ComponentKind
	for _, k := range ComponentKinds {
		if c.Get(k).Present() {
			out = append(out, k)
		}
	}
	return out
}

// Empty reports whether no field is populated.
func (c *AddressComponents) Empty() bool {
	return len(c.PresentKinds()) == 0 && c.Coordinates == nil
}

// ToMap flattens the populated fields into a plain map.
func (c *AddressComponents) ToMap() map[string]string {
	out := make(map[string]string)
	for _, k := range ComponentKinds {
		if f := c.Get(k); f.Present() {
			out[string(k)] = f.Value
		}
	}
	return out
}

// ComponentsFromMap builds components from a plain map, as stored records carry them.
func ComponentsFromMap(m map[string]string, confidence float64, coords *GeoPoint) AddressComponents {
	var c AddressComponents
	for _, k := range ComponentKinds {
		if v, ok := m[string(k)]; ok && v != "" {
			c.Set(k, Field{Value: v, Confidence: confidence, Source: SourceStore})
		}
	}
	c.Coordinates = coords
	return c
}
