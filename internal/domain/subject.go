package domain

// PropertyType classifies both subjects and pool entries. The pool is always
// filtered to the subject's type, never across types.
type PropertyType string

const (
	PropertyOffice     PropertyType = "office"
	PropertyWarehouse  PropertyType = "warehouse"
	PropertyRetail     PropertyType = "retail"
	PropertyIndustrial PropertyType = "industrial"
	PropertyLand       PropertyType = "land"
	PropertyMixed      PropertyType = "mixed"
)

type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SubjectRecord is the property being valued. The surrounding project
// lifecycle owns it; the engine only reads it and sets coordinates once,
// after the first successful geocoding.
type SubjectRecord struct {
	ProjectID    int64
	PropertyType PropertyType
	Address      string
	PostalCode   *string
	City         *string
	Coords       *Coords
}
