package app

import (
	"math"
	"regexp"
	"strings"

	"oryem_comparables/internal/domain"
)

// Perimeter is one labeled geographic bucket. Keeping the predicate as data
// lets new perimeters ship without touching the aggregation itself.
type Perimeter struct {
	Label string
	Match func(c domain.Candidate) bool
}

// SectorRadiusKm bounds the "Secteur" perimeter.
const SectorRadiusKm = 5.0

// Perimeters builds the three business buckets evaluated over the outer
// result superset: agglomeration (same city as the subject), sector (5 km)
// and proximity (the caller's requested radius).
func Perimeters(subject domain.SubjectRecord, radiusKm float64) []Perimeter {
	city := subjectCity(subject)
	return []Perimeter{
		{
			Label: "Agglomeration",
			Match: func(c domain.Candidate) bool {
				if city == "" || c.City == nil {
					return false
				}
				return strings.EqualFold(strings.TrimSpace(*c.City), city)
			},
		},
		{
			Label: "Secteur",
			Match: func(c domain.Candidate) bool { return c.DistanceKm <= SectorRadiusKm },
		},
		{
			Label: "Proximite",
			Match: func(c domain.Candidate) bool { return c.DistanceKm <= radiusKm },
		},
	}
}

// postalCityRe captures the token following a 5-digit postal code, the
// usual "… 69003 Lyon" tail of a French address.
var postalCityRe = regexp.MustCompile(`\b\d{5}\s+([\p{L}'-]+(?:\s+[\p{L}'-]+)*)`)

// subjectCity returns the declared city, else a best-effort token pulled
// from the free-text address after a postal code. Heuristic only; empty
// means the agglomeration bucket stays empty.
func subjectCity(s domain.SubjectRecord) string {
	if s.City != nil && strings.TrimSpace(*s.City) != "" {
		return strings.TrimSpace(*s.City)
	}
	m := postalCityRe.FindStringSubmatch(s.Address)
	if len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Aggregate computes transaction-kind-segmented price statistics.
// Empty segments yield nil averages, never a division by zero.
func Aggregate(entries []domain.Candidate) domain.PriceStats {
	st := domain.PriceStats{TotalCount: len(entries)}

	var rentSum, saleSum float64
	latest := -1
	for i, e := range entries {
		switch e.TransactionKind {
		case domain.TransactionRent:
			st.RentCount++
			rentSum += e.PricePerM2
		case domain.TransactionSale:
			st.SaleCount++
			saleSum += e.PricePerM2
			if latest < 0 || saleAfter(e, entries[latest]) {
				latest = i
			}
		}
	}

	if st.RentCount > 0 {
		st.AvgRentPerM2 = ptr(round2(rentSum / float64(st.RentCount)))
	}
	if st.SaleCount > 0 {
		st.AvgSalePerM2 = ptr(round2(saleSum / float64(st.SaleCount)))
	}
	if latest >= 0 {
		e := entries[latest]
		st.LatestSalePerM2 = ptr(e.PricePerM2)
		d := e.TransactionDate
		st.LatestSaleDate = &d
	}
	return st
}

// saleAfter orders sales by transaction date, ties broken by higher
// price per m².
func saleAfter(a, b domain.Candidate) bool {
	if a.TransactionDate.After(b.TransactionDate) {
		return true
	}
	if a.TransactionDate.Equal(b.TransactionDate) {
		return a.PricePerM2 > b.PricePerM2
	}
	return false
}

// AggregatePerimeters runs Aggregate independently over each bucket of the
// outer superset.
func AggregatePerimeters(outer []domain.Candidate, perimeters []Perimeter) []domain.PerimeterStats {
	out := make([]domain.PerimeterStats, 0, len(perimeters))
	for _, p := range perimeters {
		var bucket []domain.Candidate
		for _, c := range outer {
			if p.Match(c) {
				bucket = append(bucket, c)
			}
		}
		out = append(out, domain.PerimeterStats{Label: p.Label, PriceStats: Aggregate(bucket)})
	}
	return out
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

func ptr[T any](v T) *T { return &v }
