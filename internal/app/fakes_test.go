package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"oryem_comparables/internal/domain"
)

// ---- in-memory store implementing the three repository ports ----
// Mirrors the storage contract, including the atomic cap check, so the
// concurrency tests exercise the same semantics as the MySQL repo.

type fakeStore struct {
	mu            sync.Mutex
	subjects      map[int64]domain.SubjectRecord
	pool          map[int64]domain.PoolEntry
	selected      map[int64]domain.SelectedComparable
	nextSelID     int64
	nextPoolID    int64
	setCoordCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subjects: map[int64]domain.SubjectRecord{},
		pool:     map[int64]domain.PoolEntry{},
		selected: map[int64]domain.SelectedComparable{},
	}
}

func (f *fakeStore) GetSubject(_ context.Context, projectID int64) (domain.SubjectRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subjects[projectID]
	if !ok {
		return domain.SubjectRecord{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) SetSubjectCoords(_ context.Context, projectID int64, c domain.Coords) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCoordCalls++
	s := f.subjects[projectID]
	if s.Coords == nil {
		s.Coords = &domain.Coords{Lat: c.Lat, Lng: c.Lng}
		f.subjects[projectID] = s
	}
	return nil
}

func (f *fakeStore) GetEntry(_ context.Context, id int64) (domain.PoolEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.pool[id]
	if !ok {
		return domain.PoolEntry{}, domain.ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) SearchEntries(_ context.Context, q domain.PoolQuery) ([]domain.PoolEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PoolEntry
	for _, e := range f.pool {
		if e.PropertyType != q.PropertyType {
			continue
		}
		if e.Lat < q.MinLat || e.Lat > q.MaxLat || e.Lng < q.MinLng || e.Lng > q.MaxLng {
			continue
		}
		if q.SurfaceMin != nil && e.Surface < *q.SurfaceMin {
			continue
		}
		if q.SurfaceMax != nil && e.Surface > *q.SurfaceMax {
			continue
		}
		if q.YearMin != nil && (e.ConstructionYear == nil || *e.ConstructionYear < *q.YearMin) {
			continue
		}
		if q.YearMax != nil && (e.ConstructionYear == nil || *e.ConstructionYear > *q.YearMax) {
			continue
		}
		if q.Provenance != nil && e.Provenance != *q.Provenance {
			continue
		}
		if q.Status != nil && e.Status != *q.Status {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) InsertEntry(_ context.Context, e domain.PoolEntry) (domain.PoolEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPoolID++
	e.ID = f.nextPoolID
	f.pool[e.ID] = e
	return e, nil
}

func (f *fakeStore) poolCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pool)
}

func (f *fakeStore) ListSelected(_ context.Context, projectID int64) ([]domain.SelectedComparable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.SelectedComparable
	for _, sc := range f.selected {
		if sc.ProjectID == projectID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSelected(_ context.Context, projectID, comparableID int64) (domain.SelectedComparable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sc, ok := f.selected[comparableID]
	if !ok || sc.ProjectID != projectID {
		return domain.SelectedComparable{}, domain.ErrNotFound
	}
	return sc, nil
}

func (f *fakeStore) FindByPoolEntry(_ context.Context, projectID, poolEntryID int64) (domain.SelectedComparable, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sc := range f.selected {
		if sc.ProjectID == projectID && sc.PoolEntryID == poolEntryID {
			return sc, true, nil
		}
	}
	return domain.SelectedComparable{}, false, nil
}

func (f *fakeStore) InsertSelected(_ context.Context, sc domain.SelectedComparable) (domain.SelectedComparable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, cur := range f.selected {
		if cur.ProjectID == sc.ProjectID {
			if cur.PoolEntryID == sc.PoolEntryID {
				// unique key: race resolves to the existing row
				return cur, nil
			}
			n++
		}
	}
	if n >= domain.MaxSelectedPerProject {
		return domain.SelectedComparable{}, domain.ErrLimitExceeded
	}
	f.nextSelID++
	sc.ID = f.nextSelID
	f.selected[sc.ID] = sc
	return sc, nil
}

func (f *fakeStore) UpdateSelected(_ context.Context, sc domain.SelectedComparable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.selected[sc.ID]
	if !ok || cur.ProjectID != sc.ProjectID {
		return domain.ErrNotFound
	}
	f.selected[sc.ID] = sc
	return nil
}

func (f *fakeStore) DeleteSelected(_ context.Context, projectID, comparableID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sc, ok := f.selected[comparableID]
	if !ok || sc.ProjectID != projectID {
		return domain.ErrNotFound
	}
	delete(f.selected, comparableID)
	return nil
}

func (f *fakeStore) CountValidated(_ context.Context, projectID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sc := range f.selected {
		if sc.ProjectID == projectID && sc.Validated {
			n++
		}
	}
	return n, nil
}

// ---- geocoder fake ----

type fakeGeocoder struct {
	mu     sync.Mutex
	coords domain.Coords
	err    error
	calls  int
}

func (g *fakeGeocoder) Resolve(_ context.Context, _ string) (domain.Coords, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return domain.Coords{}, g.err
	}
	return g.coords, nil
}

// ---- cache fake (JSON round-trip, like the redis adapter) ----

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string][]byte{}} }

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(_ context.Context, key string, v any, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// ---- tiny helpers ----

func pstr(s string) *string     { return &s }
func pint(i int) *int           { return &i }
func pfloat(f float64) *float64 { return &f }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
