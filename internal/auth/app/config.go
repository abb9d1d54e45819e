package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/crm/pkg/jwtx"
)

type Config struct {
	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)

	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	AuditRetention       time.Duration // Age after which audit entries are pruned (default: 90d)

	DBDriver           string // sqlite or mysql (default: sqlite)
	DatabaseFile       string // SQLite database file (default: crm.db)
	DBConnectionString string // MySQL DSN, required when DBDriver is mysql
	DBMaxOpenConns     int    // MySQL pool size (default: 25)
	DBMaxIdleConns     int    // MySQL idle connections (default: 5)

	PepperFile string // File holding the password pepper (default: pepper)
	Issuer     string // iss claim of every token (default: crm-auth)

	JWTSecret        string // Required: HS256 access token secret
	JWTRefreshSecret string // Required: HS256 refresh token secret
	JWESecret        string // Optional: enables encrypted access tokens
	JWSKeyFile       string // RSA private key for RS256 (default: keys/private.pem)
	JWSKeyID         string // kid published with the RSA key (default: crm-rs256-1)

	AccessTTL        time.Duration // Staff access token lifetime (default: 2m)
	ManagerAccessTTL time.Duration // Manager access token lifetime (default: 5m)
	RefreshTTL       time.Duration // Refresh token lifetime (default: 7d)

	LockoutThreshold    int  // Consecutive failures that lock an account (default: 5)
	RotateRefreshTokens bool // Issue a new refresh token on every refresh (default: false)

	LoginRateRequests int           // Login attempts per client and window (default: 5)
	LoginRateWindow   time.Duration // Login rate window (default: 15m)

	MetricsEnabled bool // Serve /metrics and instrument requests (default: true)
}

// IsDev reports whether the service runs in development mode.
func (c Config) IsDev() bool { return c.Env == "dev" }

// LoadConfig reads the environment, after loading the nearest .env file
// if there is one. A .env that does not parse is an error. Lifetimes
// accept the "7d" style as well as Go durations.
func LoadConfig() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Env:       env.GetString("ENV", "dev"),
		LogLevel:  env.GetString("LOG_LEVEL", "info"),
		LogFormat: env.GetString("LOG_FORMAT", "json"),

		Port: env.GetInt("PORT", 8080),

		DBDriver:           env.GetString("DB_DRIVER", "sqlite"),
		DatabaseFile:       env.GetString("AUTH_DATABASE_FILE", "crm.db"),
		DBConnectionString: env.GetString("DB_CONNECTION_STRING", ""),
		DBMaxOpenConns:     env.GetInt("DB_MAX_OPEN_CONNECTIONS", 25),
		DBMaxIdleConns:     env.GetInt("DB_MAX_IDLE_CONNECTIONS", 5),

		PepperFile: env.GetString("AUTH_PEPPER_FILE", "pepper"),
		Issuer:     env.GetString("AUTH_ISSUER", "crm-auth"),

		JWTSecret:        env.GetString("JWT_SECRET", ""),
		JWTRefreshSecret: env.GetString("JWT_REFRESH_SECRET", ""),
		JWESecret:        env.GetString("JWE_SECRET", ""),
		JWSKeyFile:       env.GetString("JWS_PRIVATE_KEY_FILE", filepath.Join("keys", "private.pem")),
		JWSKeyID:         env.GetString("JWS_KEY_ID", "crm-rs256-1"),

		LockoutThreshold:    env.GetInt("AUTH_LOCKOUT_THRESHOLD", 5),
		RotateRefreshTokens: env.GetBool("AUTH_ROTATE_REFRESH_TOKENS", false),

		LoginRateRequests: env.GetInt("RATELIMIT_LOGIN_REQUESTS", 5),
		LoginRateWindow:   env.GetDuration("RATELIMIT_LOGIN_WINDOW_SEC", 900, time.Second),

		MetricsEnabled: env.GetBool("METRICS_ENABLED", true),
	}

	durations := []struct {
		key  string
		def  string
		into *time.Duration
	}{
		{"SHUTDOWN_GRACE_PERIOD", "10s", &cfg.ShutdownGracePeriod},
		{"HOUSEKEEPING_INTERVAL", "1h", &cfg.HousekeepingInterval},
		{"AUDIT_RETENTION", "90d", &cfg.AuditRetention},
		{"JWT_EXPIRES_IN", "2m", &cfg.AccessTTL},
		{"JWT_MANAGER_EXPIRES_IN", "5m", &cfg.ManagerAccessTTL},
		{"JWT_REFRESH_EXPIRES_IN", "7d", &cfg.RefreshTTL},
	}
	for _, d := range durations {
		v, err := jwtx.ParseLifetime(env.GetString(d.key, d.def))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.into = v
	}

	switch cfg.DBDriver {
	case "sqlite":
	case "mysql":
		if cfg.DBConnectionString == "" {
			return Config{}, fmt.Errorf("DB_CONNECTION_STRING is required when DB_DRIVER is mysql")
		}
	default:
		return Config{}, fmt.Errorf("DB_DRIVER: unsupported driver %q", cfg.DBDriver)
	}

	return cfg, nil
}

// loadDotEnv loads the first .env found walking up from the working
// directory. Variables already set in the environment win.
func loadDotEnv() error {
	dir, err := os.Getwd()
	if err != nil {
		return nil
	}

	for {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			return nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}
