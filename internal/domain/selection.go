package domain

import "time"

// MaxSelectedPerProject is the hard cardinality cap on a project's
// selection; the storage layer enforces it atomically.
const MaxSelectedPerProject = 3

// PriceBasis says which of the derived price fields is the source of truth.
// A manual price-per-m² edit wins over the computed price/surface ratio
// until the next surface or price edit recomputes it.
type PriceBasis string

const (
	BasisComputed PriceBasis = "computed"
	BasisManual   PriceBasis = "manual"
)

// SelectedComparable is a project-scoped promotion of one pool entry.
// DistanceKm is frozen at selection time; AdjustedPricePerM2 is always
// PricePerM2 × (1 + Adjustment/100), rounded to 2 decimals.
type SelectedComparable struct {
	ID                 int64           `json:"id"`
	ProjectID          int64           `json:"project_id"`
	PoolEntryID        int64           `json:"pool_entry_id"`
	Address            string          `json:"address"`
	PostalCode         *string         `json:"postal_code"`
	City               *string         `json:"city"`
	Lat                *float64        `json:"latitude"`
	Lng                *float64        `json:"longitude"`
	Surface            float64         `json:"surface"`
	ConstructionYear   *int            `json:"construction_year"`
	Price              float64         `json:"price"`
	PricePerM2         float64         `json:"price_per_m2"`
	PriceBasis         PriceBasis      `json:"price_basis"`
	TransactionKind    TransactionKind `json:"transaction_type"`
	TransactionDate    *time.Time      `json:"transaction_date"`
	Adjustment         float64         `json:"adjustment"`
	AdjustedPricePerM2 float64         `json:"adjusted_price_per_m2"`
	Validated          bool            `json:"validated"`
	Notes              *string         `json:"validation_notes"`
	DistanceKm         *float64        `json:"distance_km"`
}
