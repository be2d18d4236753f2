package shared

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type PlatformConfig struct {
	BaseURL string
	APIKey  string
	Quota   int // requests per 60 s window
}

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	StoreBackend string // rest|elasticsearch
	StoreBase    string
	StoreKey     string
	StoreRPS     int
	ESAddr       string
	ESIndex      string

	TripAdvisor  PlatformConfig
	GooglePlaces PlatformConfig

	UpstreamTimeout  time.Duration
	BulkDelay        time.Duration
	TrendingInterval time.Duration
	CacheTTL         time.Duration

	SyncWorkers  int
	SyncManifest string
	SyncLanguage string

	CORSOrigins      []string
	HTTPRateLimitMin int
}

var defaults = map[string]any{
	"APP_ENV":                   "prod",
	"HTTP_ADDR":                 ":8080",
	"METRICS_ADDR":              ":9100",
	"MYSQL_DSN":                 "root:root@tcp(localhost:3306)/travelhub?parseTime=true&charset=utf8mb4,utf8&loc=UTC",
	"REDIS_ADDR":                "localhost:6379",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"STORE_BACKEND":             "rest",
	"STORE_BASE_URL":            "http://localhost:3000/api",
	"STORE_API_KEY":             "",
	"STORE_RPS":                 20,
	"ELASTICSEARCH_URL":         "http://localhost:9200",
	"ELASTICSEARCH_INDEX":       "locations",
	"TRIPADVISOR_BASE_URL":      "https://api.content.tripadvisor.com/api/v1",
	"TRIPADVISOR_API_KEY":       "",
	"TRIPADVISOR_QUOTA":         50,
	"GOOGLE_PLACES_BASE_URL":    "https://maps.googleapis.com/maps/api/place",
	"GOOGLE_PLACES_API_KEY":     "",
	"GOOGLE_PLACES_QUOTA":       100,
	"UPSTREAM_TIMEOUT_SECONDS":  10,
	"BULK_DELAY_MS":             100,
	"TRENDING_INTERVAL_MINUTES": 30,
	"CACHE_TTL_SECONDS":         900,
	"SYNC_WORKERS":              4,
	"SYNC_MANIFEST":             "sync.json",
	"SYNC_LANGUAGE":             "en",
	"CORS_ORIGINS":              "*",
	"HTTP_RATE_LIMIT_PER_MIN":   120,
}

// Load reads an optional .env file, then the environment, over the defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg(".env not loaded")
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	v.AutomaticEnv()
	return v
}

func FromViper(v *viper.Viper) Config {
	c := Config{
		AppEnv:       v.GetString("APP_ENV"),
		HTTPAddr:     v.GetString("HTTP_ADDR"),
		MetricsAddr:  v.GetString("METRICS_ADDR"),
		MySQLDSN:     v.GetString("MYSQL_DSN"),
		RedisAddr:    v.GetString("REDIS_ADDR"),
		RedisPass:    v.GetString("REDIS_PASSWORD"),
		RedisDB:      v.GetInt("REDIS_DB"),
		StoreBackend: strings.ToLower(v.GetString("STORE_BACKEND")),
		StoreBase:    v.GetString("STORE_BASE_URL"),
		StoreKey:     v.GetString("STORE_API_KEY"),
		StoreRPS:     v.GetInt("STORE_RPS"),
		ESAddr:       v.GetString("ELASTICSEARCH_URL"),
		ESIndex:      v.GetString("ELASTICSEARCH_INDEX"),
		TripAdvisor: PlatformConfig{
			BaseURL: v.GetString("TRIPADVISOR_BASE_URL"),
			APIKey:  v.GetString("TRIPADVISOR_API_KEY"),
			Quota:   v.GetInt("TRIPADVISOR_QUOTA"),
		},
		GooglePlaces: PlatformConfig{
			BaseURL: v.GetString("GOOGLE_PLACES_BASE_URL"),
			APIKey:  v.GetString("GOOGLE_PLACES_API_KEY"),
			Quota:   v.GetInt("GOOGLE_PLACES_QUOTA"),
		},
		UpstreamTimeout:  time.Duration(v.GetInt("UPSTREAM_TIMEOUT_SECONDS")) * time.Second,
		BulkDelay:        time.Duration(v.GetInt("BULK_DELAY_MS")) * time.Millisecond,
		TrendingInterval: time.Duration(v.GetInt("TRENDING_INTERVAL_MINUTES")) * time.Minute,
		CacheTTL:         time.Duration(v.GetInt("CACHE_TTL_SECONDS")) * time.Second,
		SyncWorkers:      v.GetInt("SYNC_WORKERS"),
		SyncManifest:     v.GetString("SYNC_MANIFEST"),
		SyncLanguage:     v.GetString("SYNC_LANGUAGE"),
		HTTPRateLimitMin: v.GetInt("HTTP_RATE_LIMIT_PER_MIN"),
	}
	for _, o := range strings.Split(v.GetString("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.CORSOrigins = append(c.CORSOrigins, o)
		}
	}

	if c.TripAdvisor.APIKey == "" {
		log.Warn().Msg("TRIPADVISOR_API_KEY is empty")
	}
	if c.GooglePlaces.APIKey == "" {
		log.Warn().Msg("GOOGLE_PLACES_API_KEY is empty")
	}
	return c
}
