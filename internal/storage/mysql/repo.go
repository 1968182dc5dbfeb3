package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"oryem_comparables/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
func nullF64(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// Repo implements the subject, pool and selection repositories on MySQL.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ---------------------------------------------------------------------------
// Subjects
// ---------------------------------------------------------------------------

func (r *Repo) GetSubject(ctx context.Context, projectID int64) (domain.SubjectRecord, error) {
	row := r.db.QueryRowContext(ctx, getSubjectSQL, projectID)

	var s domain.SubjectRecord
	var ptype string
	var postal, city sql.NullString
	var lat, lng sql.NullFloat64
	if err := row.Scan(&s.ProjectID, &ptype, &s.Address, &postal, &city, &lat, &lng); err != nil {
		if err == sql.ErrNoRows {
			return domain.SubjectRecord{}, fmt.Errorf("%w: project %d", domain.ErrNotFound, projectID)
		}
		return domain.SubjectRecord{}, err
	}
	s.PropertyType = domain.PropertyType(ptype)
	s.PostalCode = nullStr(postal)
	s.City = nullStr(city)
	if lat.Valid && lng.Valid {
		s.Coords = &domain.Coords{Lat: lat.Float64, Lng: lng.Float64}
	}
	return s, nil
}

func (r *Repo) SetSubjectCoords(ctx context.Context, projectID int64, c domain.Coords) error {
	_, err := r.db.ExecContext(ctx, setSubjectCoordsSQL, c.Lat, c.Lng, projectID)
	return err
}

// UpsertSubject seeds subject records; the engine itself only reads them.
func (r *Repo) UpsertSubject(ctx context.Context, s domain.SubjectRecord) error {
	var lat, lng any
	if s.Coords != nil {
		lat, lng = s.Coords.Lat, s.Coords.Lng
	}
	_, err := r.db.ExecContext(ctx, upsertSubjectSQL,
		s.ProjectID, string(s.PropertyType), s.Address, valStr(s.PostalCode), valStr(s.City), lat, lng)
	return err
}

// ---------------------------------------------------------------------------
// Comparable pool
// ---------------------------------------------------------------------------

func scanPoolEntry(scan func(dest ...any) error) (domain.PoolEntry, error) {
	var e domain.PoolEntry
	var postal, city, sourceRef, photo sql.NullString
	var year sql.NullInt64
	var ptype, kind, prov, status string
	if err := scan(
		&e.ID, &e.Address, &postal, &city, &e.Lat, &e.Lng, &ptype,
		&e.Surface, &year, &kind, &e.Price, &e.PricePerM2,
		&e.TransactionDate, &prov, &status, &sourceRef, &photo,
	); err != nil {
		return domain.PoolEntry{}, err
	}
	e.PostalCode = nullStr(postal)
	e.City = nullStr(city)
	e.PropertyType = domain.PropertyType(ptype)
	e.ConstructionYear = nullInt(year)
	e.TransactionKind = domain.TransactionKind(kind)
	e.Provenance = domain.Provenance(prov)
	e.Status = domain.PoolStatus(status)
	e.SourceRef = nullStr(sourceRef)
	e.PhotoURL = nullStr(photo)
	return e, nil
}

func (r *Repo) GetEntry(ctx context.Context, id int64) (domain.PoolEntry, error) {
	row := r.db.QueryRowContext(ctx, getPoolEntrySQL, id)
	e, err := scanPoolEntry(row.Scan)
	if err == sql.ErrNoRows {
		return domain.PoolEntry{}, fmt.Errorf("%w: pool entry %d", domain.ErrNotFound, id)
	}
	return e, err
}

func (r *Repo) SearchEntries(ctx context.Context, q domain.PoolQuery) ([]domain.PoolEntry, error) {
	var sb strings.Builder
	sb.WriteString(searchPoolPrefix)
	args := []any{string(q.PropertyType), q.MinLat, q.MaxLat, q.MinLng, q.MaxLng}

	if q.SurfaceMin != nil {
		sb.WriteString("\n  AND surface >= ?")
		args = append(args, *q.SurfaceMin)
	}
	if q.SurfaceMax != nil {
		sb.WriteString("\n  AND surface <= ?")
		args = append(args, *q.SurfaceMax)
	}
	if q.YearMin != nil {
		sb.WriteString("\n  AND construction_year >= ?")
		args = append(args, *q.YearMin)
	}
	if q.YearMax != nil {
		sb.WriteString("\n  AND construction_year <= ?")
		args = append(args, *q.YearMax)
	}
	if q.Provenance != nil {
		sb.WriteString("\n  AND source = ?")
		args = append(args, string(*q.Provenance))
	}
	if q.Status != nil {
		sb.WriteString("\n  AND status = ?")
		args = append(args, string(*q.Status))
	}
	sb.WriteString("\nORDER BY id")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PoolEntry
	for rows.Next() {
		e, err := scanPoolEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) InsertEntry(ctx context.Context, e domain.PoolEntry) (domain.PoolEntry, error) {
	res, err := r.db.ExecContext(ctx, insertPoolEntrySQL,
		e.Address, valStr(e.PostalCode), valStr(e.City), e.Lat, e.Lng,
		string(e.PropertyType), e.Surface, valInt(e.ConstructionYear),
		string(e.TransactionKind), e.Price, e.PricePerM2, e.TransactionDate,
		string(e.Provenance), string(e.Status), valStr(e.SourceRef), valStr(e.PhotoURL),
	)
	if err != nil {
		return domain.PoolEntry{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.PoolEntry{}, err
	}
	e.ID = id
	return e, nil
}

// ---------------------------------------------------------------------------
// Selected comparables
// ---------------------------------------------------------------------------

func scanSelected(scan func(dest ...any) error) (domain.SelectedComparable, error) {
	var sc domain.SelectedComparable
	var postal, city, notes sql.NullString
	var lat, lng, dist sql.NullFloat64
	var year sql.NullInt64
	var txDate sql.NullTime
	var basis, kind string
	if err := scan(
		&sc.ID, &sc.ProjectID, &sc.PoolEntryID, &sc.Address, &postal, &city, &lat, &lng,
		&sc.Surface, &year, &sc.Price, &sc.PricePerM2, &basis, &kind,
		&txDate, &sc.Adjustment, &sc.AdjustedPricePerM2, &sc.Validated, &notes,
		&dist,
	); err != nil {
		return domain.SelectedComparable{}, err
	}
	sc.PostalCode = nullStr(postal)
	sc.City = nullStr(city)
	sc.Lat = nullF64(lat)
	sc.Lng = nullF64(lng)
	sc.ConstructionYear = nullInt(year)
	sc.PriceBasis = domain.PriceBasis(basis)
	sc.TransactionKind = domain.TransactionKind(kind)
	sc.TransactionDate = nullTime(txDate)
	sc.Notes = nullStr(notes)
	sc.DistanceKm = nullF64(dist)
	return sc, nil
}

func (r *Repo) ListSelected(ctx context.Context, projectID int64) ([]domain.SelectedComparable, error) {
	rows, err := r.db.QueryContext(ctx, listSelectedSQL, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SelectedComparable
	for rows.Next() {
		sc, err := scanSelected(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (r *Repo) GetSelected(ctx context.Context, projectID, comparableID int64) (domain.SelectedComparable, error) {
	row := r.db.QueryRowContext(ctx, getSelectedSQL, projectID, comparableID)
	sc, err := scanSelected(row.Scan)
	if err == sql.ErrNoRows {
		return domain.SelectedComparable{}, fmt.Errorf("%w: comparable %d", domain.ErrNotFound, comparableID)
	}
	return sc, err
}

func (r *Repo) FindByPoolEntry(ctx context.Context, projectID, poolEntryID int64) (domain.SelectedComparable, bool, error) {
	row := r.db.QueryRowContext(ctx, findSelectedByPoolSQL, projectID, poolEntryID)
	sc, err := scanSelected(row.Scan)
	if err == sql.ErrNoRows {
		return domain.SelectedComparable{}, false, nil
	}
	if err != nil {
		return domain.SelectedComparable{}, false, err
	}
	return sc, true, nil
}

// InsertSelected runs the cap check and the insert in one transaction. The
// COUNT ... FOR UPDATE serializes concurrent selections per project; the
// (project_id, pool_entry_id) unique key turns a duplicate race into the
// idempotent read-back of the existing row.
func (r *Repo) InsertSelected(ctx context.Context, sc domain.SelectedComparable) (domain.SelectedComparable, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.SelectedComparable{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, countSelectedForUpdateSQL, sc.ProjectID).Scan(&n); err != nil {
		return domain.SelectedComparable{}, err
	}
	if n >= domain.MaxSelectedPerProject {
		return domain.SelectedComparable{}, fmt.Errorf("%w: project %d already has %d comparables",
			domain.ErrLimitExceeded, sc.ProjectID, n)
	}

	res, err := tx.ExecContext(ctx, insertSelectedSQL,
		sc.ProjectID, sc.PoolEntryID, sc.Address, valStr(sc.PostalCode), valStr(sc.City),
		valF64(sc.Lat), valF64(sc.Lng), sc.Surface, valInt(sc.ConstructionYear),
		sc.Price, sc.PricePerM2, string(sc.PriceBasis), string(sc.TransactionKind),
		valTime(sc.TransactionDate), sc.Adjustment, sc.AdjustedPricePerM2,
		sc.Validated, valStr(sc.Notes), valF64(sc.DistanceKm),
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			// lost a duplicate race: hand back the winner's row
			_ = tx.Rollback()
			existing, ok, ferr := r.FindByPoolEntry(ctx, sc.ProjectID, sc.PoolEntryID)
			if ferr != nil {
				return domain.SelectedComparable{}, ferr
			}
			if ok {
				return existing, nil
			}
		}
		return domain.SelectedComparable{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.SelectedComparable{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.SelectedComparable{}, err
	}
	sc.ID = id
	return sc, nil
}

func (r *Repo) UpdateSelected(ctx context.Context, sc domain.SelectedComparable) error {
	res, err := r.db.ExecContext(ctx, updateSelectedSQL,
		sc.Surface, valInt(sc.ConstructionYear), sc.Price, sc.PricePerM2,
		string(sc.PriceBasis), sc.Adjustment, sc.AdjustedPricePerM2,
		sc.Validated, valStr(sc.Notes),
		sc.ProjectID, sc.ID,
	)
	if err != nil {
		return err
	}
	// RowsAffected can be zero for a no-op update, so existence is not
	// inferred from it here; services read the row before updating.
	_, _ = res.RowsAffected()
	return nil
}

func (r *Repo) DeleteSelected(ctx context.Context, projectID, comparableID int64) error {
	res, err := r.db.ExecContext(ctx, deleteSelectedSQL, projectID, comparableID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: comparable %d", domain.ErrNotFound, comparableID)
	}
	return nil
}

func (r *Repo) CountValidated(ctx context.Context, projectID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countValidatedSQL, projectID).Scan(&n)
	return n, err
}
