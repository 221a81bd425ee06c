package config // package config loads application configuration from environment variables

import (
	"log" // log is used to report configuration errors and halt execution
	"os"  // os provides access to environment variables
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Required values (database coordinates and
// the JWT secret) abort startup when missing; tuning knobs fall back to
// defaults.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret  string        // secret used to sign JWTs
	AccessTTL  time.Duration // access token time-to-live
	RefreshTTL time.Duration // refresh token time-to-live
	BcryptCost int           // bcrypt cost for password hashing

	RevocationBackend string        // "mysql" or "redis"
	PruneInterval     time.Duration // how often expired revocations are removed

	UsageBuffer int    // usage recorder channel capacity
	AMQPURL     string // RabbitMQ URL; empty disables usage events
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:               envStr("APP_ENV", "dev"),
		Port:              envStr("APP_PORT", "8080"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"), // empty allowed
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		JWTSecret:         must("JWT_SECRET"),
		AccessTTL:         envDur("ACCESS_TOKEN_TTL", 24*time.Hour),
		RefreshTTL:        envDur("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		BcryptCost:        envInt("BCRYPT_COST", 12),
		RevocationBackend: envStr("REVOCATION_BACKEND", "mysql"),
		PruneInterval:     envDur("REVOCATION_PRUNE_INTERVAL", time.Hour),
		UsageBuffer:       envInt("USAGE_BUFFER", 256),
		AMQPURL:           firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
