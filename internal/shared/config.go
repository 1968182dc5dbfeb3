package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv          string
	HTTPAddr        string
	MetricsAddr     string
	MySQLDSN        string
	RedisAddr       string
	RedisDB         int
	RedisPass       string
	NominatimBase   string
	GeocoderUA      string
	GeocoderCountry string
	GeocoderRPS     int
	CacheTTL        time.Duration
	SeedWorkers     int
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:          env("APP_ENV", "prod"),
		HTTPAddr:        env("HTTP_ADDR", ":8080"),
		MetricsAddr:     env("METRICS_ADDR", ":9100"),
		MySQLDSN:        env("MYSQL_DSN", "root:root@tcp(localhost:3306)/oryem?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:       env("REDIS_ADDR", "localhost:6379"),
		RedisDB:         atoi("REDIS_DB", 0),
		RedisPass:       env("REDIS_PASSWORD", ""),
		NominatimBase:   env("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUA:      env("GEOCODER_USER_AGENT", "oryem-comparables/1.0"),
		GeocoderCountry: env("GEOCODER_COUNTRY", "fr"),
		GeocoderRPS:     atoi("GEOCODER_RPS", 1),
		CacheTTL:        time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		SeedWorkers:     atoi("SEED_WORKERS", 8),
	}
	if c.GeocoderUA == "" {
		log.Warn().Msg("GEOCODER_USER_AGENT is empty; Nominatim rejects anonymous clients")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
