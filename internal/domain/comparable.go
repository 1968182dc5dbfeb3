package domain

import "time"

type TransactionKind string

const (
	TransactionSale TransactionKind = "sale"
	TransactionRent TransactionKind = "rent"
)

type Provenance string

const (
	ProvenanceInternal Provenance = "internal"
	ProvenanceExternal Provenance = "external"
)

type PoolStatus string

const (
	StatusTransacted PoolStatus = "transacted"
	StatusAvailable  PoolStatus = "available"
)

// PoolEntry is a reference comparable. Immutable once ingested, except for
// status corrections; PricePerM2 equals Price/Surface at creation time.
type PoolEntry struct {
	ID               int64           `json:"id"`
	Address          string          `json:"address"`
	PostalCode       *string         `json:"postal_code"`
	City             *string         `json:"city"`
	Lat              float64         `json:"latitude"`
	Lng              float64         `json:"longitude"`
	PropertyType     PropertyType    `json:"property_type"`
	Surface          float64         `json:"surface"`
	ConstructionYear *int            `json:"construction_year"`
	TransactionKind  TransactionKind `json:"transaction_type"`
	Price            float64         `json:"price"`
	PricePerM2       float64         `json:"price_per_m2"`
	TransactionDate  time.Time       `json:"transaction_date"`
	Provenance       Provenance      `json:"source"`
	Status           PoolStatus      `json:"status"`
	SourceRef        *string         `json:"source_reference"`
	PhotoURL         *string         `json:"photo_url"`
}

// Candidate is a pool entry annotated with its distance to the subject.
// Ephemeral, never persisted.
type Candidate struct {
	PoolEntry
	DistanceKm float64 `json:"distance_km"`
}

// PriceStats summarizes a candidate set segmented by transaction kind.
// Averages are nil when the segment is empty.
type PriceStats struct {
	AvgRentPerM2    *float64   `json:"avg_rent_per_m2"`
	RentCount       int        `json:"rent_count"`
	AvgSalePerM2    *float64   `json:"avg_sale_per_m2"`
	SaleCount       int        `json:"sale_count"`
	LatestSalePerM2 *float64   `json:"latest_sale_per_m2"`
	LatestSaleDate  *time.Time `json:"latest_sale_date"`
	TotalCount      int        `json:"total_count"`
}

// PerimeterStats labels a PriceStats run over one geographic bucket
// (agglomeration / sector / proximity).
type PerimeterStats struct {
	Label string `json:"label"`
	PriceStats
}
