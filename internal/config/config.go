package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time for transaction timeout parsing
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations and ints
// for the engine's retry knobs.
type Config struct {
    Env         string        // application environment (e.g. "dev", "prod")
    Port        string        // HTTP port to listen on
    StoreDriver string        // "mysql" or "memory"
    DBUser      string        // database username
    DBPass      string        // database password (optional)
    DBHost      string        // database host address
    DBPort      string        // database port number
    DBName      string        // database name
    JWTSecret   string        // secret used to verify JWTs issued by the identity service
    TxTimeout   time.Duration // per-attempt budget for lifecycle operations
    MaxAttempts int           // retry attempts for contended lifecycle operations
    OverdueCron string        // cron spec for the overdue reconciliation pass
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Database variables
// are required only for the mysql store driver.
func Load() Config {
    cfg := Config{
        Env:         must("APP_ENV"),                          // environment (dev/test/prod)
        Port:        must("APP_PORT"),                         // port to bind the HTTP server
        StoreDriver: orDefault("STORE_DRIVER", "mysql"),       // backing store selection
        JWTSecret:   must("JWT_SECRET"),                       // secret used to verify JWTs
        TxTimeout:   mustDur("TX_TIMEOUT", 5*time.Second),     // per-attempt timeout
        MaxAttempts: orDefaultInt("TX_MAX_ATTEMPTS", 3),       // contention retries
        OverdueCron: orDefault("OVERDUE_CRON", "0 2 * * *"),   // nightly at 02:00
    }
    if cfg.StoreDriver == "mysql" {
        cfg.DBUser = must("DB_USER")      // database user
        cfg.DBPass = os.Getenv("DB_PASS") // database password (empty allowed)
        cfg.DBHost = must("DB_HOST")      // database host
        cfg.DBPort = must("DB_PORT")      // database port
        cfg.DBName = must("DB_NAME")      // database name
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

// orDefault retrieves an optional environment variable with a fallback.
func orDefault(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

// orDefaultInt is like orDefault but converts the value into an integer.
// Invalid values are fatal rather than silently defaulted.
func orDefaultInt(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, v)
    }
    return n
}

// mustDur parses an optional duration variable ("5s", "750ms"), falling
// back to the given default when unset.
func mustDur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    d, err := time.ParseDuration(v)
    if err != nil {
        log.Fatalf("invalid duration for %s: %q", key, v)
    }
    return d
}
