package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	// Hosted backend surface
	SecretKey         string
	APIKey            string
	AuthDomain        string
	DBURL             string
	StorageBucket     string
	ServiceAccountKey string

	// Stack selectors
	IdentityProvider string // hosted | local
	DatastoreBackend string // rest | postgres | memory
	PostgresURL      string
	CacheBackend     string // memory | redis
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	OTelEndpoint   string
	AllowedOrigins []string

	RateLimitPerMin int
}

func Load() Config {
	// tolerate a missing .env; real deployments set the environment directly
	_ = godotenv.Load()

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		SecretKey:         getEnv("SECRET_KEY", "your_secret_key"),
		APIKey:            getEnv("API_KEY", "your_api_key"),
		AuthDomain:        getEnv("AUTH_DOMAIN", "identitytoolkit.googleapis.com"),
		DBURL:             getEnv("DATABASE_URL", "https://your_project_id.firebaseio.com"),
		StorageBucket:     getEnv("STORAGE_BUCKET", "your_project_id.appspot.com"),
		ServiceAccountKey: getEnv("SERVICE_ACCOUNT_KEY", "path/to/serviceAccountKey.json"),

		IdentityProvider: getEnv("IDENTITY_PROVIDER", "hosted"),
		DatastoreBackend: getEnv("DATASTORE_BACKEND", "rest"),
		PostgresURL:      buildPostgresURL(),
		CacheBackend:     getEnv("CACHE_BACKEND", "memory"),
		RedisAddr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),

		OTelEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),

		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 120),
	}
}

func buildPostgresURL() string {
	host := getEnv("PG_HOST", "127.0.0.1")
	port := getEnv("PG_PORT", "5432")
	user := getEnv("PG_USER", "markethub")
	pass := getEnv("PG_PASSWORD", "markethub")
	name := getEnv("PG_NAME", "markethub")
	ssl := getEnv("PG_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
		}

		return num
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)

		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
