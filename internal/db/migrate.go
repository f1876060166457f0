package db

import (
	"errors" // Error inspection
	"fmt"    // Error wrapping

	"biosculpture/internal/config" // Configuration
	"biosculpture/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logging library
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/driver/mysql"       // MySQL driver for GORM
	"gorm.io/driver/postgres"    // PostgreSQL driver for GORM
	"gorm.io/driver/sqlite"      // SQLite driver for GORM
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/logger"        // GORM logger levels
)

// Open connects to the database selected by cfg.DBDriver
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	level := logger.Warn
	if cfg.IsProd {
		level = logger.Error
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true, // Surface gorm.ErrDuplicatedKey on unique violations
		// Dependent rows are removed by the handlers
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1) // SQLite allows a single writer
	}
	return db, nil
}

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}

// Seed inserts the built-in roles and default points rules when missing, and a superadmin when email is set
func Seed(db *gorm.DB, adminEmail, adminPassword string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, r := range domain.DefaultRoles() {
			var existing domain.Role
			err := tx.Where("name = ?", r.Name).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err := tx.Create(&r).Error; err != nil {
				return err
			}
			logrus.WithField("role", r.Name).Info("Seeded role")
		}

		var configs int64
		if err := tx.Model(&domain.PointsConfiguration{}).Count(&configs).Error; err != nil {
			return err
		}
		if configs == 0 {
			defaults := domain.DefaultPointsConfigurations()
			if err := tx.Create(&defaults).Error; err != nil {
				return err
			}
			logrus.WithField("count", len(defaults)).Info("Seeded points configurations")
		}

		if adminEmail == "" {
			return nil
		}
		email := domain.NormalizeEmail(adminEmail)
		var admin domain.User
		err := tx.Where("email = ?", email).First(&admin).Error
		if err == nil {
			return tx.Model(&admin).Update("role", domain.RoleSuperAdmin).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if len(adminPassword) < 8 {
			return errors.New("admin password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin = domain.User{Email: email, Password: string(hash), Name: "Administrator", Role: domain.RoleSuperAdmin}
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		logrus.WithField("email", email).Info("Seeded superadmin")
		return nil
	})
}
