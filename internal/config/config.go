package config // package config loads application configuration from environment variables

import (
    "log"
    "os"
    "strconv"
    "strings"

    "github.com/joho/godotenv"
)

// Store drivers selectable through STORE_DRIVER.
const (
    StoreMySQL  = "mysql"
    StoreMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env            string // application environment (e.g. "dev", "production")
    Port           string // HTTP port to listen on
    StoreDriver    string // "mysql" (default) or "memory"
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    MigrationsAuto bool   // apply embedded migrations on start
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time‑to‑live in minutes
    RefreshTTLDays int    // refresh token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing
    AdminEmail     string // optional ADMIN account created on start
    AdminPassword  string
    AdminName      string
    Booking        BookingConfig
    Queue          QueueConfig
}

// Load reads an optional .env file, then configuration values from the
// environment.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Database settings are
// only required for the mysql store.
func Load() Config {
    if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
        log.Printf("config: .env not loaded: %v", err)
    }

    cfg := Config{
        Env:            must("APP_ENV"),
        Port:           must("APP_PORT"),
        StoreDriver:    strings.ToLower(envStr("STORE_DRIVER", StoreMySQL)),
        MigrationsAuto: envBool("MIGRATIONS_AUTO", true),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:     mustInt("BCRYPT_COST"),
        AdminEmail:     os.Getenv("ADMIN_EMAIL"),
        AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
        AdminName:      envStr("ADMIN_NAME", "Administrator"),
        Booking:        LoadBookingConfig(),
        Queue:          LoadQueueConfig(),
    }
    switch cfg.StoreDriver {
    case StoreMySQL:
        cfg.DBUser = must("DB_USER")
        cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
        cfg.DBHost = must("DB_HOST")
        cfg.DBPort = must("DB_PORT")
        cfg.DBName = must("DB_NAME")
    case StoreMemory:
    default:
        log.Fatalf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
    }
    return cfg
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

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
