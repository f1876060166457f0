package db

import (
	"fmt"
	"testing"

	"biosculpture/internal/config"
	"biosculpture/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestOpenMigrateSeed(t *testing.T) {
	cfg := &config.Config{DBDriver: "sqlite", DBPath: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())}
	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	require.NoError(t, Seed(db, "Owner@Example.com", "supersecret"))
	require.NoError(t, Seed(db, "owner@example.com", "supersecret")) // Idempotent

	var roles int64
	db.Model(&domain.Role{}).Count(&roles)
	assert.Equal(t, int64(len(domain.DefaultRoles())), roles)

	var configs int64
	db.Model(&domain.PointsConfiguration{}).Count(&configs)
	assert.Equal(t, int64(len(domain.DefaultPointsConfigurations())), configs)

	var admin domain.User
	require.NoError(t, db.Where("email = ?", "owner@example.com").First(&admin).Error)
	assert.Equal(t, domain.RoleSuperAdmin, admin.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("supersecret")))
}

func TestSeedRejectsShortPassword(t *testing.T) {
	cfg := &config.Config{DBDriver: "sqlite", DBPath: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())}
	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	assert.Error(t, Seed(db, "owner@example.com", "short"))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}
