package domain

import "context"

type SubjectRepository interface {
	GetSubject(ctx context.Context, projectID int64) (SubjectRecord, error)
	// SetSubjectCoords persists coordinates only when none are set yet;
	// a second call for the same project is a no-op.
	SetSubjectCoords(ctx context.Context, projectID int64, c Coords) error
}

// PoolQuery narrows the pool by type, a latitude/longitude bounding box and
// the optional attribute filters. The box is a coarse prefilter; callers
// refine with exact geodesic distance.
type PoolQuery struct {
	PropertyType PropertyType
	MinLat       float64
	MaxLat       float64
	MinLng       float64
	MaxLng       float64
	SurfaceMin   *float64
	SurfaceMax   *float64
	YearMin      *int
	YearMax      *int
	Provenance   *Provenance
	Status       *PoolStatus
}

type PoolRepository interface {
	GetEntry(ctx context.Context, id int64) (PoolEntry, error)
	SearchEntries(ctx context.Context, q PoolQuery) ([]PoolEntry, error)
	InsertEntry(ctx context.Context, e PoolEntry) (PoolEntry, error)
}

type SelectionRepository interface {
	ListSelected(ctx context.Context, projectID int64) ([]SelectedComparable, error)
	GetSelected(ctx context.Context, projectID, comparableID int64) (SelectedComparable, error)
	// FindByPoolEntry reports whether this pool entry is already selected
	// for the project (unique per project).
	FindByPoolEntry(ctx context.Context, projectID, poolEntryID int64) (SelectedComparable, bool, error)
	// InsertSelected enforces MaxSelectedPerProject atomically and returns
	// ErrLimitExceeded on a fourth row. A concurrent duplicate of the same
	// pool entry resolves to the existing row, not an error.
	InsertSelected(ctx context.Context, sc SelectedComparable) (SelectedComparable, error)
	UpdateSelected(ctx context.Context, sc SelectedComparable) error
	DeleteSelected(ctx context.Context, projectID, comparableID int64) error
	CountValidated(ctx context.Context, projectID int64) (int, error)
}

// Geocoder resolves a free-text address to coordinates; implementations
// bound the call with a timeout and must not panic past this boundary.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (Coords, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
