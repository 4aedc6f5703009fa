package biography

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaveRequest is a submitter's biography intake for an event.
type SaveRequest struct {
	Submission  Submission
	Photo       *PhotoUpload
	EventID     string
	DeletePhoto bool
}

// SaveResult reports the pending record written by Save.
type SaveResult struct {
	BiographyID string
	Created     bool
}

// AcceptRequest promotes the pending biography identified by the submission email.
type AcceptRequest struct {
	Submission  Submission
	Photo       *PhotoUpload
	DeletePhoto bool
}

// AcceptResult reports the validated record written by Accept.
type AcceptResult struct {
	BiographyID string
}

// Save creates or fully overwrites the pending biography for the submission email and links
// it to the event. The identifier of an existing pending record is reused.
func (s *Service) Save(ctx context.Context, request SaveRequest) (SaveResult, error) {
	if err := s.ready(opSave); err != nil {
		return SaveResult{}, err
	}
	submission := request.Submission
	submission.Email = normalizeEmail(submission.Email)
	if err := submission.Validate(); err != nil {
		return SaveResult{}, invalidArgument(opSave, err)
	}
	eventID := normalizeIdentifier(request.EventID)
	if err := (eventReference{EventID: eventID}).Validate(); err != nil {
		return SaveResult{}, newServiceError(opSave, reasonUnknownEvent, ErrInvalidReference, "invalid event ID", err)
	}
	if err := s.eventExists(ctx, opSave, eventID); err != nil {
		return SaveResult{}, err
	}

	email := submission.Email
	db := s.db.WithContext(ctx)

	existing, err := s.findByEmail(db, StagePending, email)
	if err != nil {
		s.logError(opSave, reasonPendingLookup, err, zap.String("email", email))
		return SaveResult{}, internalError(opSave, reasonPendingLookup, "Error looking up the biography", err)
	}

	var biographyID, baselinePhoto string
	created := existing == nil
	if existing != nil {
		biographyID = existing.BiographyID
		baselinePhoto = existing.PersonalPhotoName
	} else {
		biographyID, err = s.idProvider.NewID(email)
		if err != nil {
			s.logError(opSave, reasonIDGeneration, err, zap.String("email", email))
			return SaveResult{}, internalError(opSave, reasonIDGeneration, "Error generating the biography id", err)
		}
		biographyID = normalizeIdentifier(biographyID)
	}

	photoName, err := s.resolvePhoto(ctx, opSave, biographyID, request.Photo, request.DeletePhoto, baselinePhoto)
	if err != nil {
		return SaveResult{}, err
	}

	pending := PendingBiography{Record: newRecord(biographyID, email, submission, photoName)}
	writeErr := s.writeTransaction(ctx, func(tx *gorm.DB) error {
		// A concurrent first save may have claimed the email under another identifier; the
		// later write replaces it and the displaced identifier is orphaned.
		if err := tx.Where(columnEquals(columnEmail, email)).
			Where(columnNotEquals(columnBiographyID, biographyID)).
			Delete(&PendingBiography{}).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&pending).Error; err != nil {
			return err
		}
		return linkEvent(tx, eventID, biographyID)
	})
	if writeErr != nil {
		s.logError(opSave, reasonRecordUpsert, writeErr,
			zap.String("biography_id", biographyID),
			zap.String("event_id", eventID))
		return SaveResult{}, internalError(opSave, reasonRecordUpsert, "Error saving the biography", writeErr)
	}

	return SaveResult{BiographyID: biographyID, Created: created}, nil
}

// Accept copies the submission into the validated table under the pending record's identifier
// and removes the pending row. Both writes commit in one transaction. A validated row left by an
// earlier acceptance of the same email is replaced, and its event links move to the accepted
// identifier.
func (s *Service) Accept(ctx context.Context, request AcceptRequest) (AcceptResult, error) {
	if err := s.ready(opAccept); err != nil {
		return AcceptResult{}, err
	}
	submission := request.Submission
	submission.Email = normalizeEmail(submission.Email)
	if err := submission.Validate(); err != nil {
		return AcceptResult{}, invalidArgument(opAccept, err)
	}

	email := submission.Email
	db := s.db.WithContext(ctx)

	pending, err := s.findByEmail(db, StagePending, email)
	if err != nil {
		s.logError(opAccept, reasonPendingLookup, err, zap.String("email", email))
		return AcceptResult{}, internalError(opAccept, reasonPendingLookup, "Error looking up the biography", err)
	}
	if pending == nil {
		return AcceptResult{}, newServiceError(opAccept, reasonPendingMissing, ErrNotFound,
			"email was not found in the pending profiles; maybe already accepted.", nil)
	}

	biographyID := pending.BiographyID
	photoName, err := s.resolvePhoto(ctx, opAccept, biographyID, request.Photo, request.DeletePhoto, pending.PersonalPhotoName)
	if err != nil {
		return AcceptResult{}, err
	}

	validated := ValidatedBiography{Record: newRecord(biographyID, email, submission, photoName)}
	var replacedIDs []string
	txErr := s.writeTransaction(ctx, func(tx *gorm.DB) error {
		replacedIDs = nil
		var previous []Record
		if err := tx.Table(tableValidated).
			Where(columnEquals(columnEmail, email)).
			Where(columnNotEquals(columnBiographyID, biographyID)).
			Find(&previous).Error; err != nil {
			return err
		}
		for _, record := range previous {
			if err := relinkEvents(tx, record.BiographyID, biographyID); err != nil {
				return err
			}
			replacedIDs = append(replacedIDs, record.BiographyID)
		}
		if len(previous) > 0 {
			if err := tx.Where(columnEquals(columnEmail, email)).
				Where(columnNotEquals(columnBiographyID, biographyID)).
				Delete(&ValidatedBiography{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&validated).Error; err != nil {
			return err
		}
		return tx.Where(columnEquals(columnBiographyID, biographyID)).Delete(&PendingBiography{}).Error
	})
	if txErr != nil {
		s.logError(opAccept, reasonPromoteFailed, txErr, zap.String("biography_id", biographyID))
		return AcceptResult{}, internalError(opAccept, reasonPromoteFailed, "Error accepting the biography", txErr)
	}

	for _, replacedID := range replacedIDs {
		if err := s.photos.RemoveAll(ctx, replacedID); err != nil {
			s.loggerOrDefault().Warn("photo removal failed",
				zap.String("operation", opAccept),
				zap.String("biography_id", replacedID),
				zap.Error(err))
		}
		s.loggerOrDefault().Info("validated biography replaced",
			zap.String("email", email),
			zap.String("replaced_id", replacedID),
			zap.String("biography_id", biographyID))
	}

	return AcceptResult{BiographyID: biographyID}, nil
}

// writeAttempts bounds reruns of a write that lost a unique-email race to a concurrent writer.
const writeAttempts = 2

func (s *Service) writeTransaction(ctx context.Context, write func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(write)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}

// relinkEvents moves every event link of fromID onto toID.
func relinkEvents(tx *gorm.DB, fromID, toID string) error {
	var links []EventBiography
	if err := tx.Where(columnEquals(columnBiographyID, fromID)).Find(&links).Error; err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}
	for index := range links {
		links[index].BiographyID = toID
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
		return err
	}
	return tx.Where(columnEquals(columnBiographyID, fromID)).Delete(&EventBiography{}).Error
}

func linkEvent(db *gorm.DB, eventID, biographyID string) error {
	link := EventBiography{EventID: eventID, BiographyID: biographyID}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
}
