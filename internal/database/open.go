package database

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/speakerbio/internal/biography"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Driver names a supported database backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Config selects and addresses the database backend.
type Config struct {
	Driver Driver
	Path   string
	DSN    string
}

// Open connects to the configured backend and brings the schema up to date.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(string(cfg.Driver)))) {
	case DriverSQLite, "":
		return OpenSQLite(cfg.Path, logger)
	case DriverPostgres:
		return OpenPostgres(cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := dedupeBiographyEmails(db); err != nil {
		return err
	}
	models := append(biography.Models(), &migrationRecord{})
	if err := db.AutoMigrate(models...); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}
