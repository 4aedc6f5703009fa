package database

import (
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/speakerbio/internal/biography"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsNormalizesLegacyRows(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(append(biography.Models(), &migrationRecord{})...); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	pending := biography.PendingBiography{Record: biography.Record{BiographyID: "abc", Email: " Speaker@Example.COM "}}
	if err := database.Create(&pending).Error; err != nil {
		testContext.Fatalf("failed to insert pending biography: %v", err)
	}
	validated := biography.ValidatedBiography{Record: biography.Record{BiographyID: "def", Email: "Other@Example.com"}}
	if err := database.Create(&validated).Error; err != nil {
		testContext.Fatalf("failed to insert validated biography: %v", err)
	}
	link := biography.EventBiography{EventID: "EVENT-1", BiographyID: "abc"}
	if err := database.Create(&link).Error; err != nil {
		testContext.Fatalf("failed to insert event link: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var storedPending biography.PendingBiography
	if err := database.Take(&storedPending).Error; err != nil {
		testContext.Fatalf("failed to reload pending biography: %v", err)
	}
	if storedPending.Email != "speaker@example.com" {
		testContext.Fatalf("expected pending email to be normalized, got %q", storedPending.Email)
	}

	var storedValidated biography.ValidatedBiography
	if err := database.Take(&storedValidated).Error; err != nil {
		testContext.Fatalf("failed to reload validated biography: %v", err)
	}
	if storedValidated.Email != "other@example.com" {
		testContext.Fatalf("expected validated email to be normalized, got %q", storedValidated.Email)
	}

	var storedLink biography.EventBiography
	if err := database.Take(&storedLink).Error; err != nil {
		testContext.Fatalf("failed to reload event link: %v", err)
	}
	if storedLink.EventID != "event-1" {
		testContext.Fatalf("expected event id to be normalized, got %q", storedLink.EventID)
	}

	var records []migrationRecord
	if err := database.Find(&records).Error; err != nil {
		testContext.Fatalf("failed to load migration records: %v", err)
	}
	if len(records) != 2 {
		testContext.Fatalf("expected 2 migration records, got %d", len(records))
	}
	for _, record := range records {
		if record.AppliedAtSeconds == 0 {
			testContext.Fatalf("expected migration timestamp to be set for %s", record.Name)
		}
	}
}

func TestApplyMigrationsCollapsesCaseVariantEmails(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "dedupe.db")
	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(append(biography.Models(), &migrationRecord{})...); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	for _, record := range []biography.Record{
		{BiographyID: "aaa", Email: "Speaker@Example.com"},
		{BiographyID: "bbb", Email: "speaker@example.com"},
		{BiographyID: "ccc", Email: "other@example.com"},
	} {
		pending := biography.PendingBiography{Record: record}
		if err := database.Create(&pending).Error; err != nil {
			testContext.Fatalf("failed to insert pending biography %s: %v", record.BiographyID, err)
		}
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var remaining []biography.PendingBiography
	if err := database.Order(`"BiographyID"`).Find(&remaining).Error; err != nil {
		testContext.Fatalf("failed to load pending biographies: %v", err)
	}
	if len(remaining) != 2 {
		testContext.Fatalf("expected 2 pending biographies, got %d", len(remaining))
	}
	if remaining[0].BiographyID != "bbb" || remaining[0].Email != "speaker@example.com" {
		testContext.Fatalf("expected bbb to keep speaker@example.com, got %s %q", remaining[0].BiographyID, remaining[0].Email)
	}
	if remaining[1].BiographyID != "ccc" {
		testContext.Fatalf("expected ccc to survive, got %s", remaining[1].BiographyID)
	}
}

func TestApplyMigrationsRunsOnce(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "once.db")
	database, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	pending := biography.PendingBiography{Record: biography.Record{BiographyID: "abc", Email: "Late@Example.com"}}
	if err := database.Create(&pending).Error; err != nil {
		testContext.Fatalf("failed to insert pending biography: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to reapply migrations: %v", err)
	}

	var stored biography.PendingBiography
	if err := database.Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload pending biography: %v", err)
	}
	if stored.Email != "Late@Example.com" {
		testContext.Fatalf("expected applied migrations to be skipped, got %q", stored.Email)
	}
}

func TestOpenRejectsUnknownDriver(testContext *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}, zap.NewNop()); err == nil {
		testContext.Fatalf("expected unsupported driver error")
	}
	if _, err := Open(Config{Driver: DriverPostgres}, zap.NewNop()); err == nil {
		testContext.Fatalf("expected missing dsn error")
	}
	if _, err := Open(Config{Driver: DriverSQLite}, zap.NewNop()); err == nil {
		testContext.Fatalf("expected missing path error")
	}
}

func TestOpenSQLiteCreatesSchema(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "schema.db")
	database, err := Open(Config{Driver: "SQLite", Path: databasePath}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	for _, table := range []string{"biography_pending", "biography_validated", "events", "event_biography", "itu_keywords", "db_migrations"} {
		if !database.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s to exist", table)
		}
	}
}
