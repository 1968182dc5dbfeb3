package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "oryem_comparables/internal/adapters/http_server"
	"oryem_comparables/internal/adapters/nominatim"
	"oryem_comparables/internal/adapters/observability"
	redisad "oryem_comparables/internal/adapters/redis"
	"oryem_comparables/internal/app"
	"oryem_comparables/internal/shared"
	mysqlrepo "oryem_comparables/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api")

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	geocoder, err := nominatim.New(cfg.NominatimBase, cfg.GeocoderUA, cfg.GeocoderCountry, cfg.GeocoderRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("nominatim client init failed")
	}
	cached := app.NewCachedGeocoder(geocoder, cache, int(cfg.CacheTTL.Seconds()))

	search := app.NewSearchService(repo, repo, cached, cache, cfg.CacheTTL)
	selection := app.NewSelectionService(repo, repo, repo)
	quickAdd := app.NewQuickAddService(repo, repo, cached, cache)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Search:    search,
		Selection: selection,
		QuickAdd:  quickAdd,
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
