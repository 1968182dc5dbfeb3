package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"oryem_comparables/internal/domain"
	"oryem_comparables/internal/geo"
)

// SelectionService owns the project-scoped selection lifecycle:
// absent -> selected -> adjusted* -> removed.
type SelectionService struct {
	subjects   domain.SubjectRepository
	pool       domain.PoolRepository
	selections domain.SelectionRepository
}

func NewSelectionService(s domain.SubjectRepository, p domain.PoolRepository, sel domain.SelectionRepository) *SelectionService {
	return &SelectionService{subjects: s, pool: p, selections: sel}
}

func (s *SelectionService) ListSelected(ctx context.Context, projectID int64) ([]domain.SelectedComparable, error) {
	return s.selections.ListSelected(ctx, projectID)
}

// Select promotes a pool entry into the project's selection. Re-selecting
// the same entry returns the existing row unchanged; a fourth distinct
// entry fails with ErrLimitExceeded. Distance to the subject is computed
// here and frozen.
func (s *SelectionService) Select(ctx context.Context, projectID, poolEntryID int64, adjustment float64, notes *string) (domain.SelectedComparable, error) {
	if existing, ok, err := s.selections.FindByPoolEntry(ctx, projectID, poolEntryID); err != nil {
		return domain.SelectedComparable{}, err
	} else if ok {
		return existing, nil
	}

	entry, err := s.pool.GetEntry(ctx, poolEntryID)
	if err != nil {
		return domain.SelectedComparable{}, err
	}

	subject, err := s.subjects.GetSubject(ctx, projectID)
	if err != nil {
		return domain.SelectedComparable{}, err
	}

	sc := domain.SelectedComparable{
		ProjectID:          projectID,
		PoolEntryID:        entry.ID,
		Address:            entry.Address,
		PostalCode:         entry.PostalCode,
		City:               entry.City,
		Lat:                ptr(entry.Lat),
		Lng:                ptr(entry.Lng),
		Surface:            entry.Surface,
		ConstructionYear:   entry.ConstructionYear,
		Price:              entry.Price,
		PricePerM2:         entry.PricePerM2,
		PriceBasis:         domain.BasisComputed,
		TransactionKind:    entry.TransactionKind,
		TransactionDate:    ptr(entry.TransactionDate),
		Adjustment:         adjustment,
		AdjustedPricePerM2: adjustedPrice(entry.PricePerM2, adjustment),
		Validated:          true,
		Notes:              notes,
	}
	if subject.Coords != nil {
		sc.DistanceKm = ptr(round2(geo.DistanceKm(subject.Coords.Lat, subject.Coords.Lng, entry.Lat, entry.Lng)))
	}

	created, err := s.selections.InsertSelected(ctx, sc)
	if err != nil {
		return domain.SelectedComparable{}, err
	}
	log.Info().Int64("project_id", projectID).Int64("pool_entry_id", poolEntryID).
		Int64("comparable_id", created.ID).Msg("comparable selected")
	return created, nil
}

func (s *SelectionService) Deselect(ctx context.Context, projectID, comparableID int64) error {
	if err := s.selections.DeleteSelected(ctx, projectID, comparableID); err != nil {
		return err
	}
	log.Info().Int64("project_id", projectID).Int64("comparable_id", comparableID).Msg("comparable deselected")
	return nil
}

// SetAdjustment recomputes the adjusted price only; surface and price stay
// untouched.
func (s *SelectionService) SetAdjustment(ctx context.Context, projectID, comparableID int64, adjustment float64) (domain.SelectedComparable, error) {
	sc, err := s.selections.GetSelected(ctx, projectID, comparableID)
	if err != nil {
		return domain.SelectedComparable{}, err
	}
	sc.Adjustment = adjustment
	sc.AdjustedPricePerM2 = adjustedPrice(sc.PricePerM2, adjustment)
	if err := s.selections.UpdateSelected(ctx, sc); err != nil {
		return domain.SelectedComparable{}, err
	}
	return sc, nil
}

// FieldPatch carries the optional field edits. An explicit PricePerM2 is
// the source of truth and flips the basis to manual; otherwise the ratio
// is recomputed from price/surface.
type FieldPatch struct {
	Surface          *float64
	Price            *float64
	PricePerM2       *float64
	ConstructionYear *int
}

// EditFields applies a patch keeping price_per_m2 == price/surface
// consistent, then recomputes the adjusted price with the existing
// adjustment.
func (s *SelectionService) EditFields(ctx context.Context, projectID, comparableID int64, patch FieldPatch) (domain.SelectedComparable, error) {
	sc, err := s.selections.GetSelected(ctx, projectID, comparableID)
	if err != nil {
		return domain.SelectedComparable{}, err
	}

	if patch.Surface != nil {
		if *patch.Surface <= 0 {
			return domain.SelectedComparable{}, fmt.Errorf("%w: surface must be > 0", domain.ErrInvalidFilter)
		}
		sc.Surface = *patch.Surface
	}
	if patch.Price != nil {
		sc.Price = *patch.Price
	}
	if patch.ConstructionYear != nil {
		sc.ConstructionYear = patch.ConstructionYear
	}

	switch {
	case patch.PricePerM2 != nil:
		sc.PricePerM2 = *patch.PricePerM2
		sc.Price = round2(sc.PricePerM2 * sc.Surface)
		sc.PriceBasis = domain.BasisManual
	case patch.Surface != nil || patch.Price != nil:
		sc.PricePerM2 = round2(sc.Price / sc.Surface)
		sc.PriceBasis = domain.BasisComputed
	}
	sc.AdjustedPricePerM2 = adjustedPrice(sc.PricePerM2, sc.Adjustment)

	if err := s.selections.UpdateSelected(ctx, sc); err != nil {
		return domain.SelectedComparable{}, err
	}
	return sc, nil
}

// Validate reports how many validated comparables the project has and
// fails with ErrEmptySelection on zero. Advancing the project workflow is
// the owning application's concern.
func (s *SelectionService) Validate(ctx context.Context, projectID int64) (int, error) {
	n, err := s.selections.CountValidated(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, domain.ErrEmptySelection
	}
	return n, nil
}

func adjustedPrice(pricePerM2, adjustment float64) float64 {
	return round2(pricePerM2 * (1 + adjustment/100))
}
