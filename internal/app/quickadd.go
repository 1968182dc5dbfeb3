package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"oryem_comparables/internal/domain"
)

// QuickAddService ingests a freshly observed comparable into the pool.
// Geocode first, insert second: a failed resolution leaves the pool
// untouched.
type QuickAddService struct {
	subjects domain.SubjectRepository
	pool     domain.PoolRepository
	geocoder domain.Geocoder
	cache    domain.Cache
	now      func() time.Time
}

func NewQuickAddService(s domain.SubjectRepository, p domain.PoolRepository, g domain.Geocoder, c domain.Cache) *QuickAddService {
	return &QuickAddService{subjects: s, pool: p, geocoder: g, cache: c, now: time.Now}
}

type QuickAddInput struct {
	Address          string
	Surface          float64
	Price            float64
	ConstructionYear *int
}

func (s *QuickAddService) QuickAdd(ctx context.Context, projectID int64, in QuickAddInput) (domain.PoolEntry, error) {
	if in.Address == "" {
		return domain.PoolEntry{}, fmt.Errorf("%w: address is required", domain.ErrInvalidFilter)
	}
	if in.Surface <= 0 {
		return domain.PoolEntry{}, fmt.Errorf("%w: surface must be > 0", domain.ErrInvalidFilter)
	}

	subject, err := s.subjects.GetSubject(ctx, projectID)
	if err != nil {
		return domain.PoolEntry{}, err
	}

	coords, err := s.geocoder.Resolve(ctx, in.Address)
	if err != nil {
		log.Warn().Int64("project_id", projectID).Str("address", in.Address).Err(err).Msg("quick-add geocoding failed")
		return domain.PoolEntry{}, fmt.Errorf("%w: %s", domain.ErrGeocodeFailed, in.Address)
	}

	entry := domain.PoolEntry{
		Address:          in.Address,
		Lat:              coords.Lat,
		Lng:              coords.Lng,
		PropertyType:     subject.PropertyType,
		Surface:          in.Surface,
		ConstructionYear: in.ConstructionYear,
		TransactionKind:  domain.TransactionSale,
		Price:            in.Price,
		PricePerM2:       round2(in.Price / in.Surface),
		TransactionDate:  s.now().UTC().Truncate(24 * time.Hour),
		Provenance:       domain.ProvenanceInternal,
		Status:           domain.StatusAvailable,
	}

	created, err := s.pool.InsertEntry(ctx, entry)
	if err != nil {
		return domain.PoolEntry{}, err
	}

	// Best-effort: drop the default-filter search cache for this project so
	// the new entry shows up on the next search.
	_ = s.cache.Del(ctx, searchCacheKey(projectID, DefaultFilters()))

	log.Info().Int64("project_id", projectID).Int64("pool_entry_id", created.ID).Msg("quick-add ingested")
	return created, nil
}
