package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"oryem_comparables/internal/domain"
	"oryem_comparables/internal/geo"
)

// outerRadiusKm is the minimum radius queried from the pool so perimeter
// statistics beyond the requested radius never need a second query.
const outerRadiusKm = 15.0

// MaxRadiusKm bounds the caller-supplied search radius.
const MaxRadiusKm = 50.0

// SearchFilters are the caller-supplied predicates, AND-combined.
// Provenance/Status accept "all" or a concrete enum value.
type SearchFilters struct {
	SurfaceMin *float64
	SurfaceMax *float64
	YearMin    *int
	YearMax    *int
	RadiusKm   float64
	Provenance string
	Status     string
}

// DefaultFilters mirror the API defaults: 5 km, everything else open.
func DefaultFilters() SearchFilters {
	return SearchFilters{RadiusKm: 5.0, Provenance: "all", Status: "all"}
}

// SearchResult is what the presentation layer receives. Center is nil when
// the subject could not be geocoded.
type SearchResult struct {
	Comparables    []domain.Candidate      `json:"comparables"`
	Stats          domain.PriceStats       `json:"stats"`
	PerimeterStats []domain.PerimeterStats `json:"perimeter_stats"`
	Center         *domain.Coords          `json:"center"`
}

type SearchService struct {
	subjects domain.SubjectRepository
	pool     domain.PoolRepository
	geocoder domain.Geocoder
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewSearchService(s domain.SubjectRepository, p domain.PoolRepository, g domain.Geocoder, c domain.Cache, ttl time.Duration) *SearchService {
	return &SearchService{subjects: s, pool: p, geocoder: g, cache: c, cacheTTL: ttl}
}

// Search resolves the subject's coordinates (geocoding on first use), pulls
// same-type pool entries within the outer radius, annotates distances and
// truncates the visible set to the requested radius. The superset feeds the
// perimeter aggregates only.
func (s *SearchService) Search(ctx context.Context, projectID int64, f SearchFilters) (SearchResult, error) {
	if err := f.validate(); err != nil {
		return SearchResult{}, err
	}

	subject, err := s.subjects.GetSubject(ctx, projectID)
	if err != nil {
		return SearchResult{}, err
	}

	center := s.ensureCoords(ctx, &subject)
	if center == nil {
		// No coordinates, no search; an empty result, not an error.
		return SearchResult{Comparables: []domain.Candidate{}, PerimeterStats: emptyPerimeters(subject, f.RadiusKm)}, nil
	}

	key := searchCacheKey(projectID, f)
	var cached SearchResult
	if ok, _ := s.cache.Get(ctx, key, &cached); ok {
		return cached, nil
	}

	outer := f.RadiusKm
	if outer < outerRadiusKm {
		outer = outerRadiusKm
	}
	minLat, maxLat, minLng, maxLng := geo.BoundingBox(center.Lat, center.Lng, outer)

	entries, err := s.pool.SearchEntries(ctx, domain.PoolQuery{
		PropertyType: subject.PropertyType,
		MinLat:       minLat,
		MaxLat:       maxLat,
		MinLng:       minLng,
		MaxLng:       maxLng,
		SurfaceMin:   f.SurfaceMin,
		SurfaceMax:   f.SurfaceMax,
		YearMin:      f.YearMin,
		YearMax:      f.YearMax,
		Provenance:   provenanceFilter(f.Provenance),
		Status:       statusFilter(f.Status),
	})
	if err != nil {
		return SearchResult{}, err
	}

	// Exact distance refinement over the coarse bounding box.
	superset := make([]domain.Candidate, 0, len(entries))
	for _, e := range entries {
		d := geo.DistanceKm(center.Lat, center.Lng, e.Lat, e.Lng)
		if d > outer {
			continue
		}
		superset = append(superset, domain.Candidate{PoolEntry: e, DistanceKm: round2(d)})
	}
	sort.Slice(superset, func(i, j int) bool {
		if superset[i].DistanceKm != superset[j].DistanceKm {
			return superset[i].DistanceKm < superset[j].DistanceKm
		}
		return superset[i].ID < superset[j].ID
	})

	visible := make([]domain.Candidate, 0, len(superset))
	for _, c := range superset {
		if c.DistanceKm <= f.RadiusKm {
			visible = append(visible, c)
		}
	}

	res := SearchResult{
		Comparables:    visible,
		Stats:          Aggregate(visible),
		PerimeterStats: AggregatePerimeters(superset, Perimeters(subject, f.RadiusKm)),
		Center:         center,
	}
	_ = s.cache.Set(ctx, key, res, int(s.cacheTTL.Seconds()))
	return res, nil
}

// ensureCoords returns the subject's coordinates, geocoding and persisting
// them on first use. Geocoding failure degrades to nil. Idempotent: once
// set, coordinates are never re-resolved or overwritten.
func (s *SearchService) ensureCoords(ctx context.Context, subject *domain.SubjectRecord) *domain.Coords {
	if subject.Coords != nil {
		return subject.Coords
	}
	if subject.Address == "" {
		return nil
	}
	coords, err := s.geocoder.Resolve(ctx, subject.Address)
	if err != nil {
		log.Warn().Int64("project_id", subject.ProjectID).Err(err).Msg("subject geocoding failed")
		return nil
	}
	if err := s.subjects.SetSubjectCoords(ctx, subject.ProjectID, coords); err != nil {
		log.Error().Int64("project_id", subject.ProjectID).Err(err).Msg("persist subject coords failed")
		// Still usable for this request.
	}
	subject.Coords = &coords
	return &coords
}

func (f SearchFilters) validate() error {
	if f.RadiusKm <= 0 || f.RadiusKm > MaxRadiusKm {
		return fmt.Errorf("%w: radius_km must be in (0, %v]", domain.ErrInvalidFilter, MaxRadiusKm)
	}
	if f.SurfaceMin != nil && f.SurfaceMax != nil && *f.SurfaceMin > *f.SurfaceMax {
		return fmt.Errorf("%w: surface_min > surface_max", domain.ErrInvalidFilter)
	}
	if f.YearMin != nil && f.YearMax != nil && *f.YearMin > *f.YearMax {
		return fmt.Errorf("%w: year_min > year_max", domain.ErrInvalidFilter)
	}
	if provenanceFilter(f.Provenance) == nil && f.Provenance != "all" && f.Provenance != "" {
		return fmt.Errorf("%w: unknown provenance %q", domain.ErrInvalidFilter, f.Provenance)
	}
	if statusFilter(f.Status) == nil && f.Status != "all" && f.Status != "" {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidFilter, f.Status)
	}
	return nil
}

func provenanceFilter(s string) *domain.Provenance {
	switch domain.Provenance(s) {
	case domain.ProvenanceInternal, domain.ProvenanceExternal:
		p := domain.Provenance(s)
		return &p
	}
	return nil
}

func statusFilter(s string) *domain.PoolStatus {
	switch domain.PoolStatus(s) {
	case domain.StatusTransacted, domain.StatusAvailable:
		st := domain.PoolStatus(s)
		return &st
	}
	return nil
}

func emptyPerimeters(subject domain.SubjectRecord, radiusKm float64) []domain.PerimeterStats {
	return AggregatePerimeters(nil, Perimeters(subject, radiusKm))
}

func searchCacheKey(projectID int64, f SearchFilters) string {
	return fmt.Sprintf("compsearch:%d:%s", projectID, f.key())
}

func (f SearchFilters) key() string {
	fv := func(p *float64) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprintf("%g", *p)
	}
	iv := func(p *int) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprintf("%d", *p)
	}
	return fmt.Sprintf("r%g:s%s-%s:y%s-%s:p%s:st%s",
		f.RadiusKm, fv(f.SurfaceMin), fv(f.SurfaceMax), iv(f.YearMin), iv(f.YearMax), f.Provenance, f.Status)
}
