package config

import (
	"fmt"     // For DSN formatting
	"os"      // For environment variables
	"strings" // For list parsing
	"time"    // For durations

	"github.com/joeshaw/envdecode"  // For struct tag decoding
	"github.com/joho/godotenv"      // For loading .env files
	"github.com/shopspring/decimal" // For money settings
)

// Config holds the application configuration
type Config struct {
	AppPort        string        `env:"APP_PORT,default=8080"`                                                  // Application port
	IsProd         bool          `env:"IS_PROD,default=false"`                                                  // Is production environment
	LogLevel       string        `env:"LOG_LEVEL,default=info"`                                                 // Logrus level name
	TrustedProxies []string                                                                                     // Proxies allowed to set client IP headers, comma separated
	DBDriver       string        `env:"DB_DRIVER,default=mysql"`                                                // mysql, postgres or sqlite
	DBUser         string        `env:"DB_USER"`                                                                // Database user
	DBPassword     string        `env:"DB_PASSWORD"`                                                            // Database password
	DBHost         string        `env:"DB_HOST,default=localhost"`                                              // Database host
	DBPort         string        `env:"DB_PORT,default=3306"`                                                   // Database port
	DBName         string        `env:"DB_NAME,default=biosculpture"`                                           // Database name
	DBPath         string        `env:"DB_PATH,default=biosculpture.db"`                                        // SQLite file path
	JWTSecret      string        `env:"JWT_SECRET"`                                                             // JWT secret key
	JWTTTL         time.Duration `env:"JWT_TTL,default=24h"`                                                    // Token lifetime
	RedisAddr      string        `env:"REDIS_ADDR"`                                                             // Redis server address, empty disables caching
	RedisPass      string        `env:"REDIS_PASS"`                                                             // Redis password
	RedisDB        int           `env:"REDIS_DB,default=0"`                                                     // Redis database number
	CacheTTL       time.Duration `env:"CACHE_TTL,default=60s"`                                                  // Listing cache lifetime
	UploadDir      string        `env:"UPLOAD_DIR,default=uploads"`                                             // Directory for uploaded files
	UploadMaxBytes int64         `env:"UPLOAD_MAX_BYTES,default=10485760"`                                      // Maximum upload size
	PublicBaseURL  string        `env:"PUBLIC_BASE_URL"`                                                        // Base URL prefixed to uploaded file paths
	StorefrontURL  string        `env:"STOREFRONT_URL,default=http://localhost:3000"`                           // Where affiliate clicks are redirected
	GeocoderURL    string        `env:"GEOCODER_URL,default=https://maps.googleapis.com/maps/api/geocode/json"` // Geocoding API endpoint
	GeocoderKey    string        `env:"GEOCODER_API_KEY"`                                                       // Geocoding API key, empty disables geocoding
	OIDCIssuer     string        `env:"OIDC_ISSUER,default=https://accounts.google.com"`                        // OIDC issuer for social login
	OIDCClientID   string        `env:"OIDC_CLIENT_ID"`                                                         // OIDC client ID, empty disables social login
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS,default=5"`                                               // Requests per second per client on limited routes
	RateLimitBurst int           `env:"RATE_LIMIT_BURST,default=10"`                                            // Burst size per client on limited routes

	ShippingFlatRate      decimal.Decimal // Flat shipping charge
	FreeShippingThreshold decimal.Decimal // Order amount above which shipping is free

	CronEnabled bool `env:"CRON_ENABLED,default=true"` // Run scheduled jobs inside the server
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Load .env file if present
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	cfg.TrustedProxies = getEnvSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})

	var err error
	if cfg.ShippingFlatRate, err = getEnvDecimal("SHIPPING_FLAT_RATE", decimal.NewFromInt(8)); err != nil {
		return nil, err
	}
	if cfg.FreeShippingThreshold, err = getEnvDecimal("FREE_SHIPPING_THRESHOLD", decimal.NewFromInt(75)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DSN builds the driver specific data source name
func (c *Config) DSN() string {
	switch c.DBDriver {
	case "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
	case "sqlite":
		return c.DBPath
	default:
		return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
	}
}

func getEnvDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return fallback
}
