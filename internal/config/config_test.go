package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("APP_PORT", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "75", cfg.FreeShippingThreshold.String())
	assert.Equal(t, int64(10<<20), cfg.UploadMaxBytes)
	assert.Equal(t, []string{"127.0.0.1"}, cfg.TrustedProxies)
	assert.True(t, cfg.CronEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("IS_PROD", "true")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("RATE_LIMIT_RPS", "1.5")
	t.Setenv("SHIPPING_FLAT_RATE", "4.95")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2")
	t.Setenv("PUBLIC_BASE_URL", "https://cdn.example.com/")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.AppPort)
	assert.True(t, cfg.IsProd)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 1.5, cfg.RateLimitRPS)
	assert.Equal(t, "4.95", cfg.ShippingFlatRate.String())
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.TrustedProxies)
	assert.Equal(t, "https://cdn.example.com", cfg.PublicBaseURL)
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	t.Setenv("JWT_TTL", "a day")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("JWT_TTL", "")
	t.Setenv("SHIPPING_FLAT_RATE", "free")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "SHIPPING_FLAT_RATE")
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBDriver: "mysql", DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "3306", DBName: "d"}
	assert.Equal(t, "u:p@tcp(h:3306)/d?parseTime=true", cfg.DSN())

	cfg.DBDriver = "postgres"
	assert.Contains(t, cfg.DSN(), "host=h user=u password=p dbname=d port=3306")

	cfg.DBDriver = "sqlite"
	cfg.DBPath = "file.db"
	assert.Equal(t, "file.db", cfg.DSN())
}
