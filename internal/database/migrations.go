package database

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	migrationNormalizeBiographyEmails = "2025-06-02_normalize_biography_emails"
	migrationNormalizeEventIDs        = "2025-06-02_normalize_event_ids"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeBiographyEmails, apply: normalizeBiographyEmails},
		{name: migrationNormalizeEventIDs, apply: normalizeEventIDs},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where(clause.Eq{Column: clause.Column{Name: "name"}, Value: migration.name}).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return fmt.Errorf("migration %s: %w", migration.name, err)
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// normalizeBiographyEmails rewrites legacy mixed-case emails into the canonical lowercase form
// lookups compare against. Rows that collapse onto the same email keep the highest identifier.
func normalizeBiographyEmails(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := dedupeBiographyEmails(tx); err != nil {
			return err
		}
		for _, table := range biographyTables {
			statement := fmt.Sprintf(`UPDATE %q SET "Email" = LOWER(TRIM("Email")) WHERE "Email" <> LOWER(TRIM("Email"))`, table)
			if err := tx.Exec(statement).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

var biographyTables = []string{"biography_pending", "biography_validated"}

// dedupeBiographyEmails leaves one row per normalized email in each biography table so the
// unique email index can be built and kept. Missing tables are skipped.
func dedupeBiographyEmails(db *gorm.DB) error {
	for _, table := range biographyTables {
		if !db.Migrator().HasTable(table) {
			continue
		}
		statement := fmt.Sprintf(`DELETE FROM %[1]q WHERE EXISTS (
	SELECT 1 FROM %[1]q AS newer
	WHERE LOWER(TRIM(newer."Email")) = LOWER(TRIM(%[1]q."Email"))
	AND newer."BiographyID" > %[1]q."BiographyID"
)`, table)
		if err := db.Exec(statement).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeEventIDs(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"events", "event_biography"} {
			statement := fmt.Sprintf(`UPDATE %q SET "EventID" = LOWER("EventID") WHERE "EventID" <> LOWER("EventID")`, table)
			if err := tx.Exec(statement).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
