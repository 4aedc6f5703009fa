package biography

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const invalidStageMessage = `Invalid biography status. It must be either "pending" or "validated."`

// RetrieveByEmail returns the pending biography for email, falling back to the validated one.
// An email on file in neither stage yields (nil, nil).
func (s *Service) RetrieveByEmail(ctx context.Context, email string) (*Profile, error) {
	if err := s.ready(opRetrieveByEmail); err != nil {
		return nil, err
	}
	normalized := normalizeEmail(email)
	db := s.db.WithContext(ctx)

	for _, stage := range []Stage{StagePending, StageValidated} {
		record, err := s.findByEmail(db, stage, normalized)
		if err != nil {
			s.logError(opRetrieveByEmail, reasonQueryFailed, err,
				zap.String("email", normalized),
				zap.String("stage", string(stage)))
			return nil, internalError(opRetrieveByEmail, reasonQueryFailed, "Error retrieving the biography", err)
		}
		if record != nil {
			profile := s.profile(*record, stage)
			return &profile, nil
		}
	}
	return nil, nil
}

// RetrieveByID returns the validated biography with the identifier, or (nil, nil).
// Pending biographies are not reachable by identifier.
func (s *Service) RetrieveByID(ctx context.Context, biographyID string) (*Profile, error) {
	if err := s.ready(opRetrieveByID); err != nil {
		return nil, err
	}
	normalized := normalizeIdentifier(biographyID)

	var records []Record
	err := s.db.WithContext(ctx).
		Table(tableValidated).
		Where(columnEquals(columnBiographyID, normalized)).
		Limit(1).
		Find(&records).Error
	if err != nil {
		s.logError(opRetrieveByID, reasonQueryFailed, err, zap.String("biography_id", normalized))
		return nil, internalError(opRetrieveByID, reasonQueryFailed, "Error retrieving the biography", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	profile := s.profile(records[0], StageValidated)
	return &profile, nil
}

// RetrieveByEvent lists the biographies of one stage linked to the event, ordered by last then
// first name.
func (s *Service) RetrieveByEvent(ctx context.Context, eventID, stage string) ([]Profile, error) {
	if err := s.ready(opRetrieveByEvent); err != nil {
		return nil, err
	}
	normalizedStage := strings.ToLower(strings.TrimSpace(stage))
	if err := (stageInput{Stage: normalizedStage}).Validate(); err != nil {
		return nil, newServiceError(opRetrieveByEvent, reasonInvalidStage, ErrInvalidArgument, invalidStageMessage, err)
	}
	selected := Stage(normalizedStage)

	normalizedEvent := normalizeIdentifier(eventID)
	if err := s.eventExists(ctx, opRetrieveByEvent, normalizedEvent); err != nil {
		return nil, err
	}

	// Table names come from the fixed Stage set, never from input.
	query := fmt.Sprintf(`SELECT b.* FROM %[1]q AS b
JOIN %[2]q AS eb ON b."BiographyID" = eb."BiographyID"
WHERE eb."EventID" = ?
ORDER BY b."LastName", b."FirstName", b."BiographyID"`, selected.table(), tableEventBiography)

	var records []Record
	if err := s.db.WithContext(ctx).Raw(query, normalizedEvent).Scan(&records).Error; err != nil {
		s.logError(opRetrieveByEvent, reasonQueryFailed, err,
			zap.String("event_id", normalizedEvent),
			zap.String("stage", normalizedStage))
		return nil, internalError(opRetrieveByEvent, reasonQueryFailed, "Error retrieving the event biographies", err)
	}

	profiles := make([]Profile, 0, len(records))
	for _, record := range records {
		profiles = append(profiles, s.profile(record, selected))
	}
	return profiles, nil
}
