package biography

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/speakerbio/internal/photos"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultKeywordLimit = 10

var noOpLogger = zap.NewNop()

// PhotoStore persists profile photos keyed by biography identifier.
type PhotoStore interface {
	Save(ctx context.Context, biographyID, filename string, contents []byte) error
	RemoveAll(ctx context.Context, biographyID string) error
}

// Links holds the public base URLs used to enrich responses.
type Links struct {
	InvitationBase string
	ProfileBase    string
	PhotoBase      string
}

// ServiceConfig describes the dependencies of the biography service.
type ServiceConfig struct {
	Database               *gorm.DB
	Photos                 PhotoStore
	Clock                  func() time.Time
	IDProvider             IDProvider
	Logger                 *zap.Logger
	Links                  Links
	AllowedPhotoExtensions []string
}

// Service orchestrates submission, acceptance, retrieval and event linkage of biographies.
type Service struct {
	db                *gorm.DB
	photos            PhotoStore
	clock             func() time.Time
	idProvider        IDProvider
	logger            *zap.Logger
	links             Links
	allowedExtensions []string
}

// NewService validates cfg and builds a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDatabase, ErrInternal, "", errMissingDatabase)
	}
	if cfg.Photos == nil {
		return nil, newServiceError(opServiceNew, "missing_photo_store", ErrInternal, "", errMissingPhotoStore)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewHashIDProvider(clock)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	allowed := cfg.AllowedPhotoExtensions
	if len(allowed) == 0 {
		allowed = photos.DefaultAllowedExtensions
	}

	return &Service{
		db:                cfg.Database,
		photos:            cfg.Photos,
		clock:             clock,
		idProvider:        idProvider,
		logger:            logger,
		links:             cfg.Links,
		allowedExtensions: append([]string(nil), allowed...),
	}, nil
}

// resolvePhoto decides the photo filename stored with a record.
// An upload replaces the baseline; no upload with deletePhoto clears the biography's photo
// directory on a best-effort basis; otherwise the baseline is kept untouched.
func (s *Service) resolvePhoto(ctx context.Context, operation, biographyID string, upload *PhotoUpload, deletePhoto bool, baseline string) (string, error) {
	if upload == nil {
		if !deletePhoto {
			return baseline, nil
		}
		if err := s.photos.RemoveAll(ctx, biographyID); err != nil {
			s.loggerOrDefault().Warn("photo removal failed",
				zap.String("operation", operation),
				zap.String("biography_id", biographyID),
				zap.Error(err))
		}
		return "", nil
	}

	if !photos.HasAllowedExtension(upload.Filename, s.allowedExtensions) {
		return "", newServiceError(operation, reasonPhotoRejected, ErrUnsupportedMediaType,
			"Not allowed image file type.", errUnsupportedPhoto)
	}
	filename := photos.SanitizeFilename(upload.Filename)
	if filename == "" {
		return "", newServiceError(operation, reasonPhotoRejected, ErrUnsupportedMediaType,
			"Not allowed image file name.", errEmptyPhotoFilename)
	}
	if err := s.photos.Save(ctx, biographyID, filename, upload.Contents); err != nil {
		s.logError(operation, reasonPhotoWrite, err, zap.String("biography_id", biographyID))
		return "", internalError(operation, reasonPhotoWrite, "Error saving the profile photo", err)
	}
	return filename, nil
}

// eventExists reports whether an event with the normalized identifier is registered.
func (s *Service) eventExists(ctx context.Context, operation, eventID string) error {
	var event Event
	err := s.db.WithContext(ctx).
		Where(columnEquals(columnEventID, eventID)).
		Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newServiceError(operation, reasonUnknownEvent, ErrInvalidReference, "invalid event ID", nil)
	}
	if err != nil {
		s.logError(operation, reasonEventLookup, err, zap.String("event_id", eventID))
		return internalError(operation, reasonEventLookup, "Error looking up the event", err)
	}
	return nil
}

// findByEmail loads the record for email from the stage table. A missing row yields (nil, nil).
func (s *Service) findByEmail(db *gorm.DB, stage Stage, email string) (*Record, error) {
	var record Record
	err := db.Table(stage.table()).
		Where(columnEquals(columnEmail, email)).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) profile(record Record, stage Stage) Profile {
	result := Profile{
		BiographyID:          record.BiographyID,
		FirstName:            record.FirstName,
		LastName:             record.LastName,
		Title:                record.Title,
		JobTitle:             record.JobTitle,
		Email:                record.Email,
		Country:              record.Country,
		LinkedInPage:         record.LinkedInPage,
		TwitterPage:          record.TwitterPage,
		FacebookPage:         record.FacebookPage,
		SocialNetworkPage:    record.SocialNetworkPage,
		PersonalPhotoName:    photos.PublicURL(s.links.PhotoBase, record.BiographyID, record.PersonalPhotoName),
		IEEEPage:             record.IEEEPage,
		PersonalWebPage:      record.PersonalWebPage,
		Organization:         record.Organization,
		Region:               record.Region,
		GoogleScholarProfile: record.GoogleScholarProfile,
		Gender:               record.Gender,
		Keywords:             SplitKeywords(record.Keywords),
		Biography:            record.Biography,
		Stage:                stage,
	}
	if stage == StageValidated {
		result.ProfileURL = joinURL(s.links.ProfileBase, record.BiographyID)
	}
	return result
}

func joinURL(base, id string) string {
	if base == "" {
		return id
	}
	return strings.TrimRight(base, "/") + "/" + id
}

const (
	columnBiographyID = "BiographyID"
	columnEmail       = "Email"
	columnEventID     = "EventID"
	columnEventName   = "EventName"
	columnCreateDate  = "CreateDate"
	columnKwText      = "KwText"
)

// columnEquals builds a quoted equality condition so the mixed-case legacy column names
// survive on case-folding databases.
func columnEquals(column string, value any) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: column}, Value: value}
}

func columnNotEquals(column string, value any) clause.Neq {
	return clause.Neq{Column: clause.Column{Name: column}, Value: value}
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("biography service error", attrs...)
}

func (s *Service) ready(operation string) error {
	if s == nil || s.db == nil {
		s.logError(operation, reasonMissingDatabase, errMissingDatabase)
		return internalError(operation, reasonMissingDatabase, "Service is not configured", errMissingDatabase)
	}
	return nil
}
