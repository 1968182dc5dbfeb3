package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"os"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"oryem_comparables/internal/adapters/nominatim"
	"oryem_comparables/internal/adapters/observability"
	"oryem_comparables/internal/domain"
	"oryem_comparables/internal/shared"
	mysqlrepo "oryem_comparables/internal/storage/mysql"
)

// seedFile mirrors the JSON layout of the seed data set: subject records
// keyed by project, plus the comparable pool. Entries without coordinates
// are geocoded before insertion.
type seedFile struct {
	Subjects []seedSubject `json:"subjects"`
	Pool     []seedEntry   `json:"pool"`
}

type seedSubject struct {
	ProjectID    int64    `json:"project_id"`
	PropertyType string   `json:"property_type"`
	Address      string   `json:"address"`
	PostalCode   *string  `json:"postal_code"`
	City         *string  `json:"city"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

type seedEntry struct {
	Address          string   `json:"address"`
	PostalCode       *string  `json:"postal_code"`
	City             *string  `json:"city"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	PropertyType     string   `json:"property_type"`
	Surface          float64  `json:"surface"`
	ConstructionYear *int     `json:"construction_year"`
	TransactionType  string   `json:"transaction_type"`
	Price            float64  `json:"price"`
	PricePerM2       float64  `json:"price_per_m2"`
	TransactionDate  string   `json:"transaction_date"`
	Source           string   `json:"source"`
	Status           string   `json:"status"`
	SourceReference  *string  `json:"source_reference"`
	PhotoURL         *string  `json:"photo_url"`
}

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv, "seeder")

	path := flag.String("file", "seed_data.json", "path to the JSON seed file")
	flag.Parse()

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("read seed file failed")
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		log.Fatal().Err(err).Msg("parse seed file failed")
	}

	log.Info().
		Int("subjects", len(seed.Subjects)).
		Int("pool", len(seed.Pool)).
		Int("workers", cfg.SeedWorkers).
		Msg("seeder starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	geocoder, err := nominatim.New(cfg.NominatimBase, cfg.GeocoderUA, cfg.GeocoderCountry, cfg.GeocoderRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize geocoder")
	}

	for _, s := range seed.Subjects {
		rec := domain.SubjectRecord{
			ProjectID:    s.ProjectID,
			PropertyType: domain.PropertyType(s.PropertyType),
			Address:      s.Address,
			PostalCode:   s.PostalCode,
			City:         s.City,
		}
		if s.Latitude != nil && s.Longitude != nil {
			rec.Coords = &domain.Coords{Lat: *s.Latitude, Lng: *s.Longitude}
		}
		if err := repo.UpsertSubject(ctx, rec); err != nil {
			log.Warn().Int64("project_id", s.ProjectID).Err(err).Msg("subject upsert failed")
			continue
		}
		log.Info().Int64("project_id", s.ProjectID).Msg("subject ok")
	}

	sem := semaphore.NewWeighted(int64(cfg.SeedWorkers))
	var wg sync.WaitGroup

	for i, e := range seed.Pool {
		i, e := i, e

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, int64(1)); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(int64(1))

			entry, err := buildEntry(ctx, geocoder, e)
			if err != nil {
				log.Warn().Int("index", i).Str("address", e.Address).Err(err).Msg("seed entry skipped")
				return
			}
			inserted, err := repo.InsertEntry(ctx, entry)
			if err != nil {
				log.Warn().Int("index", i).Str("address", e.Address).Err(err).Msg("insert failed")
				return
			}
			log.Info().Int64("id", inserted.ID).Str("address", e.Address).Msg("entry ok")
		}()
	}

	wg.Wait()
	log.Info().Msg("seeding completed")
}

func buildEntry(ctx context.Context, g domain.Geocoder, e seedEntry) (domain.PoolEntry, error) {
	var coords domain.Coords
	if e.Latitude != nil && e.Longitude != nil {
		coords = domain.Coords{Lat: *e.Latitude, Lng: *e.Longitude}
	} else {
		c, err := g.Resolve(ctx, e.Address)
		if err != nil {
			return domain.PoolEntry{}, err
		}
		coords = c
	}

	txDate, err := time.Parse("2006-01-02", e.TransactionDate)
	if err != nil {
		return domain.PoolEntry{}, err
	}

	return domain.PoolEntry{
		Address:          e.Address,
		PostalCode:       e.PostalCode,
		City:             e.City,
		Lat:              coords.Lat,
		Lng:              coords.Lng,
		PropertyType:     domain.PropertyType(e.PropertyType),
		Surface:          e.Surface,
		ConstructionYear: e.ConstructionYear,
		TransactionKind:  domain.TransactionKind(e.TransactionType),
		Price:            e.Price,
		PricePerM2:       e.PricePerM2,
		TransactionDate:  txDate,
		Provenance:       domain.Provenance(e.Source),
		Status:           domain.PoolStatus(e.Status),
		SourceRef:        e.SourceReference,
		PhotoURL:         e.PhotoURL,
	}, nil
}
