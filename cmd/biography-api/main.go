package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/speakerbio/internal/biography"
	"github.com/MarcoPoloResearchLab/speakerbio/internal/config"
	"github.com/MarcoPoloResearchLab/speakerbio/internal/database"
	"github.com/MarcoPoloResearchLab/speakerbio/internal/logging"
	"github.com/MarcoPoloResearchLab/speakerbio/internal/photos"
	"github.com/MarcoPoloResearchLab/speakerbio/internal/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "biography-api",
		Short: "Conference speaker biography service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before reading the environment")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "PostgreSQL connection string")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("photos-driver", defaults.GetString("photos.driver"), "Photo storage driver (fs, s3)")
	cmd.PersistentFlags().String("photos-root", defaults.GetString("photos.root"), "Photo root directory for the fs driver")
	cmd.PersistentFlags().String("photos-base-url", defaults.GetString("photos.base_url"), "Public URL prefix for stored photos")
	cmd.PersistentFlags().String("invitation-base", defaults.GetString("links.invitation_base"), "Base URL of invitation links")
	cmd.PersistentFlags().String("profile-base", defaults.GetString("links.profile_base"), "Base URL of public profile links")
	cmd.PersistentFlags().String("keywords-file", defaults.GetString("keywords.seed_file"), "Keyword vocabulary file imported at startup, one keyword per line")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "photos.driver", "photos-driver")
	bindFlag(cmd, "photos.root", "photos-root")
	bindFlag(cmd, "photos.base_url", "photos-base-url")
	bindFlag(cmd, "links.invitation_base", "invitation-base")
	bindFlag(cmd, "links.profile_base", "profile-base")
	bindFlag(cmd, "keywords.seed_file", "keywords-file")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Config{
		Driver: database.Driver(appConfig.Database.Driver),
		Path:   appConfig.Database.Path,
		DSN:    appConfig.Database.DSN,
	}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	photoStore, err := photos.Open(ctx, photos.Config{
		Driver: photos.Driver(appConfig.Photos.Driver),
		Root:   appConfig.Photos.Root,
		S3: photos.S3Config{
			Bucket:          appConfig.Photos.S3.Bucket,
			Region:          appConfig.Photos.S3.Region,
			Endpoint:        appConfig.Photos.S3.Endpoint,
			Prefix:          appConfig.Photos.S3.Prefix,
			AccessKeyID:     appConfig.Photos.S3.AccessKeyID,
			SecretAccessKey: appConfig.Photos.S3.SecretAccessKey,
			PathStyle:       appConfig.Photos.S3.PathStyle,
		},
	})
	if err != nil {
		return err
	}

	biographyService, err := biography.NewService(biography.ServiceConfig{
		Database: db,
		Photos:   photoStore,
		Clock:    time.Now,
		Logger:   logger,
		Links: biography.Links{
			InvitationBase: appConfig.Links.InvitationBase,
			ProfileBase:    appConfig.Links.ProfileBase,
			PhotoBase:      appConfig.Photos.BaseURL,
		},
		AllowedPhotoExtensions: appConfig.Photos.AllowedExtensions,
	})
	if err != nil {
		return err
	}

	if appConfig.KeywordsFile != "" {
		if err := importKeywords(ctx, biographyService, appConfig.KeywordsFile, logger); err != nil {
			return err
		}
	}

	var photoMount server.PhotoMount
	if filesystem, ok := photoStore.(*photos.FilesystemStore); ok {
		photoMount = server.PhotoMount{URLPath: appConfig.Photos.BaseURL, Root: filesystem.Root()}
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		BiographyService: biographyService,
		Logger:           logger,
		Metrics:          server.NewMetrics(),
		AllowedOrigins:   appConfig.AllowedOrigins,
		Photos:           photoMount,
		MaxBodyBytes:     appConfig.MaxBodyBytes,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("database_driver", appConfig.Database.Driver),
			zap.String("photos_driver", string(photoStore.Driver())))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func importKeywords(ctx context.Context, service *biography.Service, path string, logger *zap.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	keywords, err := biography.ReadKeywords(file)
	if err != nil {
		return err
	}
	added, err := service.ImportKeywords(ctx, keywords)
	if err != nil {
		return err
	}
	logger.Info("keyword vocabulary imported",
		zap.String("path", path),
		zap.Int("read", len(keywords)),
		zap.Int("added", added))
	return nil
}
