package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

type Config struct {
	BaseURL  string `env:"AUTH_BASE_URL,default=http://localhost:8080"` // Origin clients reach the service at; DPoP htu is checked against it
	Issuer   string `env:"AUTH_ISSUER,default=gatehouse"`
	Audience string `env:"AUTH_AUDIENCE,default=gatehouse-api"`

	Algorithm      string `env:"AUTH_ALGORITHM,default=ES256"`  // ES256 or RS256
	PrivateKeyFile string `env:"AUTH_PRIVATE_KEY_FILE"`         // Optional: PEM key, a key is generated when unset
	PrivateKeyHex  string `env:"AUTH_PRIVATE_KEY_HEX"`          // Optional: raw P-256 scalar, ES256 only
	KeyID          string `env:"AUTH_KEY_ID,default=gatehouse-key-001"`
	RSABits        int    `env:"AUTH_RSA_BITS,default=2048"` // Size of a generated RS256 key

	AccessTTL        time.Duration `env:"AUTH_ACCESS_TTL,default=1m"`
	RefreshTTL       time.Duration `env:"AUTH_REFRESH_TTL,default=10m"`
	RefreshNotBefore time.Duration `env:"AUTH_REFRESH_NOT_BEFORE,default=30s"` // A refresh token is unusable until this long after issue
	ClockSkew        time.Duration `env:"AUTH_CLOCK_SKEW,default=5m"`          // Proof iat window, also added to session TTLs
	ReplayWindow     time.Duration `env:"AUTH_REPLAY_WINDOW,default=10m"`      // How long a DPoP proof jti stays recorded
	RequestTimeout   time.Duration `env:"AUTH_REQUEST_TIMEOUT,default=5s"`
	RequireDPoP      bool          `env:"AUTH_REQUIRE_DPOP,default=false"` // Reject Bearer tokens on /v1/me

	CacheDriver     string        `env:"CACHE_DRIVER,default=memory"`       // memory, redis, sqlite or tiered
	CacheL2Driver   string        `env:"CACHE_L2_DRIVER,default=sqlite"`    // L2 of the tiered driver: sqlite or redis
	CacheL1TTL      time.Duration `env:"CACHE_L1_TTL,default=30s"`          // Upper bound on how long the tiered L1 holds an entry
	CacheSQLiteFile string        `env:"CACHE_SQLITE_FILE,default=cache.db"`
	RedisAddr       string        `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB,default=0"`
	CacheKeyPrefix  string        `env:"CACHE_KEY_PREFIX,default=gatehouse:"`

	DirectoryDriver string `env:"DIRECTORY_DRIVER,default=dummyjson"` // dummyjson or static
	DirectoryURL    string `env:"DIRECTORY_URL,default=https://dummyjson.com"`
	DirectoryFile   string `env:"DIRECTORY_FILE,default=users.json"` // Watched for changes
	PepperFile      string `env:"AUTH_PEPPER_FILE,default=pepper"`   // Pepper for the static directory's password hashes

	Env                  string        `env:"ENV,default=dev"`         // Environment (dev, staging, prod)
	LogLevel             string        `env:"LOG_LEVEL,default=info"`  // debug, info, warn, error
	LogFormat            string        `env:"LOG_FORMAT,default=json"` // json or text
	Port                 int           `env:"PORT,default=8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD,default=10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL,default=10m"` // Expired cache entry sweep
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c Config) Validate() error {
	switch c.CacheDriver {
	case "memory", "redis", "sqlite":
	case "tiered":
		if c.CacheL2Driver != "sqlite" && c.CacheL2Driver != "redis" {
			return fmt.Errorf("CACHE_L2_DRIVER must be sqlite or redis, got %q", c.CacheL2Driver)
		}
	default:
		return fmt.Errorf("unknown CACHE_DRIVER %q", c.CacheDriver)
	}

	switch c.DirectoryDriver {
	case "dummyjson", "static":
	default:
		return fmt.Errorf("unknown DIRECTORY_DRIVER %q", c.DirectoryDriver)
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("AUTH_ACCESS_TTL and AUTH_REFRESH_TTL must be positive")
	}
	if c.RefreshNotBefore >= c.RefreshTTL {
		return errors.New("AUTH_REFRESH_NOT_BEFORE must be shorter than AUTH_REFRESH_TTL")
	}
	if c.BaseURL == "" {
		return errors.New("AUTH_BASE_URL is required")
	}
	return nil
}
