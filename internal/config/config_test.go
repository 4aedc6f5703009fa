package config

import (
	"reflect"
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(testContext *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		testContext.Fatalf("failed to load defaults: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8971" {
		testContext.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "itu_event_biography_db.db" {
		testContext.Fatalf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Photos.Driver != "fs" || cfg.Photos.Root != "user_data" || cfg.Photos.BaseURL != "/user_data" {
		testContext.Fatalf("unexpected photos config %+v", cfg.Photos)
	}
	expected := []string{"png", "jpg", "jpeg", "gif"}
	if !reflect.DeepEqual(cfg.Photos.AllowedExtensions, expected) {
		testContext.Fatalf("expected extensions %v, got %v", expected, cfg.Photos.AllowedExtensions)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"*"}) {
		testContext.Fatalf("expected wildcard origin, got %v", cfg.AllowedOrigins)
	}
	if cfg.KeywordsFile != "" {
		testContext.Fatalf("expected no keyword seed file by default, got %q", cfg.KeywordsFile)
	}
}

func TestLoadReadsEnvironment(testContext *testing.T) {
	testContext.Setenv("BIOGRAPHY_HTTP_ADDRESS", "127.0.0.1:9000")
	testContext.Setenv("BIOGRAPHY_PHOTOS_ALLOWED_EXTENSIONS", "png, webp")
	testContext.Setenv("BIOGRAPHY_LINKS_PROFILE_BASE", "https://bio.example.org/profile")
	testContext.Setenv("BIOGRAPHY_KEYWORDS_SEED_FILE", " /etc/biography/itu_keywords.txt ")

	cfg, err := Load(NewViper())
	if err != nil {
		testContext.Fatalf("failed to load config: %v", err)
	}
	if cfg.HTTPAddress != "127.0.0.1:9000" {
		testContext.Fatalf("expected env http address, got %q", cfg.HTTPAddress)
	}
	if !reflect.DeepEqual(cfg.Photos.AllowedExtensions, []string{"png", "webp"}) {
		testContext.Fatalf("unexpected extensions %v", cfg.Photos.AllowedExtensions)
	}
	if cfg.Links.ProfileBase != "https://bio.example.org/profile" {
		testContext.Fatalf("unexpected profile base %q", cfg.Links.ProfileBase)
	}
	if cfg.KeywordsFile != "/etc/biography/itu_keywords.txt" {
		testContext.Fatalf("unexpected keyword seed file %q", cfg.KeywordsFile)
	}
}

func TestLoadValidatesDrivers(testContext *testing.T) {
	testCases := []struct {
		name     string
		key      string
		value    any
		contains string
	}{
		{name: "unknown database driver", key: "database.driver", value: "oracle", contains: "database.driver"},
		{name: "postgres without dsn", key: "database.driver", value: "postgres", contains: "database.dsn"},
		{name: "s3 without bucket", key: "photos.driver", value: "s3", contains: "photos.s3.bucket"},
		{name: "unknown photos driver", key: "photos.driver", value: "ftp", contains: "photos.driver"},
		{name: "empty extensions", key: "photos.allowed_extensions", value: " , ", contains: "photos.allowed_extensions"},
	}

	for _, testCase := range testCases {
		testContext.Run(testCase.name, func(subTest *testing.T) {
			configViper := NewViper()
			configViper.Set(testCase.key, testCase.value)
			_, err := Load(configViper)
			if err == nil {
				subTest.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), testCase.contains) {
				subTest.Fatalf("expected error to mention %q, got %v", testCase.contains, err)
			}
		})
	}
}

func TestStringListAcceptsConfigFileLists(testContext *testing.T) {
	got := stringList([]any{"png", " gif ", ""})
	if !reflect.DeepEqual(got, []string{"png", "gif"}) {
		testContext.Fatalf("unexpected list %v", got)
	}
}
