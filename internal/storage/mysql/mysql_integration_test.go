//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"oryem_comparables/internal/domain"
	mysqlrepo "oryem_comparables/internal/storage/mysql"
)

// ---------- small helpers ----------
func pstr(s string) *string     { return &s }
func pint(i int) *int           { return &i }
func pfloat(f float64) *float64 { return &f }

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=oryem",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "oryem")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func seedEntry(t *testing.T, repo *mysqlrepo.Repo, lat, lng float64) domain.PoolEntry {
	t.Helper()
	e, err := repo.InsertEntry(context.Background(), domain.PoolEntry{
		Address:         "12 Rue de la République",
		PostalCode:      pstr("69002"),
		City:            pstr("Lyon"),
		Lat:             lat,
		Lng:             lng,
		PropertyType:    domain.PropertyOffice,
		Surface:         250,
		TransactionKind: domain.TransactionSale,
		Price:           500000,
		PricePerM2:      2000,
		TransactionDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Provenance:      domain.ProvenanceInternal,
		Status:          domain.StatusTransacted,
	})
	if err != nil {
		t.Fatalf("InsertEntry: %v", err)
	}
	return e
}

// ---------- the tests ----------

func TestRepo_MySQL_SubjectsAndPool(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	sub := domain.SubjectRecord{
		ProjectID:    501,
		PropertyType: domain.PropertyOffice,
		Address:      "1 Place Bellecour, Lyon",
		PostalCode:   pstr("69002"),
		City:         pstr("Lyon"),
	}
	if err := repo.UpsertSubject(ctx, sub); err != nil {
		t.Fatalf("UpsertSubject: %v", err)
	}

	got, err := repo.GetSubject(ctx, 501)
	if err != nil {
		t.Fatalf("GetSubject: %v", err)
	}
	if got.Coords != nil {
		t.Fatalf("expected no coords yet, got %+v", got.Coords)
	}

	// Coordinates are write-once.
	if err := repo.SetSubjectCoords(ctx, 501, domain.Coords{Lat: 45.7578, Lng: 4.8320}); err != nil {
		t.Fatalf("SetSubjectCoords: %v", err)
	}
	if err := repo.SetSubjectCoords(ctx, 501, domain.Coords{Lat: 0, Lng: 0}); err != nil {
		t.Fatalf("second SetSubjectCoords: %v", err)
	}
	got, err = repo.GetSubject(ctx, 501)
	if err != nil {
		t.Fatalf("GetSubject after coords: %v", err)
	}
	if got.Coords == nil || got.Coords.Lat != 45.7578 {
		t.Fatalf("coords not frozen: %+v", got.Coords)
	}

	if _, err := repo.GetSubject(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Pool: round-trip and bounding-box search.
	inBox := seedEntry(t, repo, 45.7600, 4.8300)
	seedEntry(t, repo, 46.5000, 4.8300) // outside box

	q := domain.PoolQuery{
		PropertyType: domain.PropertyOffice,
		MinLat:       45.70, MaxLat: 45.80,
		MinLng: 4.80, MaxLng: 4.90,
	}
	entries, err := repo.SearchEntries(ctx, q)
	if err != nil {
		t.Fatalf("SearchEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != inBox.ID {
		t.Fatalf("expected only the in-box entry, got %+v", entries)
	}
	if entries[0].City == nil || *entries[0].City != "Lyon" {
		t.Fatalf("pool entry did not round-trip: %+v", entries[0])
	}

	// Attribute filters narrow further.
	q.SurfaceMin = pfloat(300)
	entries, err = repo.SearchEntries(ctx, q)
	if err != nil {
		t.Fatalf("SearchEntries with surface filter: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("surface filter ignored: %+v", entries)
	}

	fetched, err := repo.GetEntry(ctx, inBox.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if fetched.PricePerM2 != 2000 || fetched.Status != domain.StatusTransacted {
		t.Fatalf("unexpected entry: %+v", fetched)
	}
}

func TestRepo_MySQL_SelectionLifecycle(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	mkSelected := func(projectID, poolEntryID int64) domain.SelectedComparable {
		return domain.SelectedComparable{
			ProjectID:          projectID,
			PoolEntryID:        poolEntryID,
			Address:            "12 Rue de la République",
			City:               pstr("Lyon"),
			Lat:                pfloat(45.76),
			Lng:                pfloat(4.83),
			Surface:            250,
			ConstructionYear:   pint(1998),
			Price:              500000,
			PricePerM2:         2000,
			PriceBasis:         domain.BasisComputed,
			TransactionKind:    domain.TransactionSale,
			Adjustment:         0,
			AdjustedPricePerM2: 2000,
			Validated:          true,
			DistanceKm:         pfloat(0.42),
		}
	}

	var entries []domain.PoolEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, seedEntry(t, repo, 45.76+float64(i)*0.001, 4.83))
	}

	// Fill to the cap.
	for i := 0; i < 3; i++ {
		if _, err := repo.InsertSelected(ctx, mkSelected(601, entries[i].ID)); err != nil {
			t.Fatalf("InsertSelected %d: %v", i, err)
		}
	}
	if _, err := repo.InsertSelected(ctx, mkSelected(601, entries[3].ID)); !errors.Is(err, domain.ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}

	// Another project is unaffected and may select the same pool entry.
	if _, err := repo.InsertSelected(ctx, mkSelected(602, entries[0].ID)); err != nil {
		t.Fatalf("InsertSelected other project: %v", err)
	}

	list, err := repo.ListSelected(ctx, 601)
	if err != nil {
		t.Fatalf("ListSelected: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 selected, got %d", len(list))
	}

	sc, ok, err := repo.FindByPoolEntry(ctx, 601, entries[1].ID)
	if err != nil || !ok {
		t.Fatalf("FindByPoolEntry: ok=%v err=%v", ok, err)
	}

	// Update and read back.
	sc.Adjustment = -10
	sc.AdjustedPricePerM2 = 1800
	sc.PriceBasis = domain.BasisManual
	sc.Notes = pstr("corner lot")
	if err := repo.UpdateSelected(ctx, sc); err != nil {
		t.Fatalf("UpdateSelected: %v", err)
	}
	back, err := repo.GetSelected(ctx, 601, sc.ID)
	if err != nil {
		t.Fatalf("GetSelected: %v", err)
	}
	if back.AdjustedPricePerM2 != 1800 || back.PriceBasis != domain.BasisManual || back.Notes == nil || *back.Notes != "corner lot" {
		t.Fatalf("update did not stick: %+v", back)
	}

	n, err := repo.CountValidated(ctx, 601)
	if err != nil {
		t.Fatalf("CountValidated: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 validated, got %d", n)
	}

	// Deselect frees a slot.
	if err := repo.DeleteSelected(ctx, 601, sc.ID); err != nil {
		t.Fatalf("DeleteSelected: %v", err)
	}
	if err := repo.DeleteSelected(ctx, 601, sc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := repo.InsertSelected(ctx, mkSelected(601, entries[4].ID)); err != nil {
		t.Fatalf("InsertSelected after deselect: %v", err)
	}
}

func TestRepo_MySQL_ConcurrentSelectionCap(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 6; i++ {
		e := seedEntry(t, repo, 45.76+float64(i)*0.001, 4.83)
		ids = append(ids, e.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(poolEntryID int64) {
			defer wg.Done()
			_, _ = repo.InsertSelected(ctx, domain.SelectedComparable{
				ProjectID:          701,
				PoolEntryID:        poolEntryID,
				Address:            "x",
				Surface:            100,
				Price:              100000,
				PricePerM2:         1000,
				PriceBasis:         domain.BasisComputed,
				TransactionKind:    domain.TransactionSale,
				AdjustedPricePerM2: 1000,
				Validated:          true,
			})
		}(id)
	}
	wg.Wait()

	list, err := repo.ListSelected(ctx, 701)
	if err != nil {
		t.Fatalf("ListSelected: %v", err)
	}
	if len(list) != domain.MaxSelectedPerProject {
		t.Fatalf("cap breached: %d rows", len(list))
	}
}
