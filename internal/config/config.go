package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "BIOGRAPHY"
	defaultHTTPAddress       = "0.0.0.0:8971"
	defaultDatabaseDriver    = "sqlite"
	defaultDatabasePath      = "itu_event_biography_db.db"
	defaultLogLevel          = "info"
	defaultPhotosDriver      = "fs"
	defaultPhotosRoot        = "user_data"
	defaultPhotosBaseURL     = "/user_data"
	defaultAllowedExtensions = "png,jpg,jpeg,gif"
	defaultMaxBodyBytes      = 10 << 20
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	AllowedOrigins []string
	MaxBodyBytes   int64
	LogLevel       string
	Database       DatabaseConfig
	Photos         PhotosConfig
	Links          LinksConfig
	KeywordsFile   string
}

// DatabaseConfig selects the relational backend.
type DatabaseConfig struct {
	Driver string
	Path   string
	DSN    string
}

// PhotosConfig selects where profile photos are written and how they are addressed.
type PhotosConfig struct {
	Driver            string
	Root              string
	BaseURL           string
	AllowedExtensions []string
	S3                S3Config
}

// S3Config addresses an S3 compatible bucket.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// LinksConfig holds the public base URLs of the front end.
type LinksConfig struct {
	InvitationBase string
	ProfileBase    string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", "*")
	configViper.SetDefault("http.max_body_bytes", defaultMaxBodyBytes)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("photos.driver", defaultPhotosDriver)
	configViper.SetDefault("photos.root", defaultPhotosRoot)
	configViper.SetDefault("photos.base_url", defaultPhotosBaseURL)
	configViper.SetDefault("photos.allowed_extensions", defaultAllowedExtensions)
	configViper.SetDefault("photos.s3.bucket", "")
	configViper.SetDefault("photos.s3.region", "")
	configViper.SetDefault("photos.s3.endpoint", "")
	configViper.SetDefault("photos.s3.prefix", "")
	configViper.SetDefault("photos.s3.access_key_id", "")
	configViper.SetDefault("photos.s3.secret_access_key", "")
	configViper.SetDefault("photos.s3.path_style", false)
	configViper.SetDefault("links.invitation_base", "")
	configViper.SetDefault("links.profile_base", "")
	configViper.SetDefault("keywords.seed_file", "")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		AllowedOrigins: stringList(configViper.Get("http.allowed_origins")),
		MaxBodyBytes:   configViper.GetInt64("http.max_body_bytes"),
		LogLevel:       configViper.GetString("log.level"),
		Database: DatabaseConfig{
			Driver: strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
			Path:   configViper.GetString("database.path"),
			DSN:    configViper.GetString("database.dsn"),
		},
		Photos: PhotosConfig{
			Driver:            strings.ToLower(strings.TrimSpace(configViper.GetString("photos.driver"))),
			Root:              configViper.GetString("photos.root"),
			BaseURL:           configViper.GetString("photos.base_url"),
			AllowedExtensions: stringList(configViper.Get("photos.allowed_extensions")),
			S3: S3Config{
				Bucket:          configViper.GetString("photos.s3.bucket"),
				Region:          configViper.GetString("photos.s3.region"),
				Endpoint:        configViper.GetString("photos.s3.endpoint"),
				Prefix:          configViper.GetString("photos.s3.prefix"),
				AccessKeyID:     configViper.GetString("photos.s3.access_key_id"),
				SecretAccessKey: configViper.GetString("photos.s3.secret_access_key"),
				PathStyle:       configViper.GetBool("photos.s3.path_style"),
			},
		},
		Links: LinksConfig{
			InvitationBase: configViper.GetString("links.invitation_base"),
			ProfileBase:    configViper.GetString("links.profile_base"),
		},
		KeywordsFile: strings.TrimSpace(configViper.GetString("keywords.seed_file")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be positive")
	}
	switch c.Database.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("database.path is required")
		}
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	switch c.Photos.Driver {
	case "fs":
		if strings.TrimSpace(c.Photos.Root) == "" {
			return fmt.Errorf("photos.root is required")
		}
	case "s3":
		if strings.TrimSpace(c.Photos.S3.Bucket) == "" {
			return fmt.Errorf("photos.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("photos.driver %q is not supported", c.Photos.Driver)
	}
	if len(c.Photos.AllowedExtensions) == 0 {
		return fmt.Errorf("photos.allowed_extensions must not be empty")
	}
	return nil
}

// stringList accepts either a comma separated string (flags and env) or a list (config files).
func stringList(value any) []string {
	var raw []string
	switch typed := value.(type) {
	case string:
		raw = strings.Split(typed, ",")
	case []string:
		raw = typed
	case []any:
		for _, item := range typed {
			raw = append(raw, fmt.Sprint(item))
		}
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
