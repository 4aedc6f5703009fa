package biography

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppendStatus classifies an email when linking it to an event.
type AppendStatus string

const (
	// AppendLinked means a validated biography is now linked to the event.
	AppendLinked AppendStatus = "linked"
	// AppendPending means only a pending biography exists; no link was made.
	AppendPending AppendStatus = "pending"
	// AppendMissing means no biography is on file for the email.
	AppendMissing AppendStatus = "missing"
)

// Invitation is the outcome of GenerateInvitation.
type Invitation struct {
	EventID   string
	EventName string
	Link      string
	Created   bool
}

// AppendOutcome is the classification of a single email.
type AppendOutcome struct {
	Email  string
	Status AppendStatus
}

// AppendReport partitions a batch of emails by classification.
type AppendReport struct {
	Linked  []string
	Pending []string
	Missing []string
}

// NewAppendReport returns a report with empty, non-nil partitions.
func NewAppendReport() AppendReport {
	return AppendReport{Linked: []string{}, Pending: []string{}, Missing: []string{}}
}

// Add files the outcome under its classification.
func (r *AppendReport) Add(outcome AppendOutcome) {
	switch outcome.Status {
	case AppendLinked:
		r.Linked = append(r.Linked, outcome.Email)
	case AppendPending:
		r.Pending = append(r.Pending, outcome.Email)
	default:
		r.Missing = append(r.Missing, outcome.Email)
	}
}

// GenerateInvitation returns the invitation for the named event, registering the event on
// first request.
func (s *Service) GenerateInvitation(ctx context.Context, name string) (Invitation, error) {
	if err := s.ready(opGenerateInvitation); err != nil {
		return Invitation{}, err
	}
	trimmed := strings.TrimSpace(name)
	if err := (eventNameInput{Name: trimmed}).Validate(); err != nil {
		return Invitation{}, invalidArgument(opGenerateInvitation, err)
	}
	db := s.db.WithContext(ctx)

	existing, err := findEventByName(db, trimmed)
	if err != nil {
		s.logError(opGenerateInvitation, reasonEventLookup, err, zap.String("event_name", trimmed))
		return Invitation{}, internalError(opGenerateInvitation, reasonEventLookup, "Error generating the service link", err)
	}
	if existing != nil {
		return s.invitation(*existing, false), nil
	}

	eventID, err := s.idProvider.NewID(trimmed)
	if err != nil {
		s.logError(opGenerateInvitation, reasonIDGeneration, err, zap.String("event_name", trimmed))
		return Invitation{}, internalError(opGenerateInvitation, reasonIDGeneration, "Error generating the service link", err)
	}
	event := Event{
		EventID:    normalizeIdentifier(eventID),
		EventName:  trimmed,
		CreateDate: s.clock().UTC(),
	}
	if err := db.Create(&event).Error; err != nil {
		// A concurrent request may have registered the same name first.
		if raced, lookupErr := findEventByName(db, trimmed); lookupErr == nil && raced != nil {
			return s.invitation(*raced, false), nil
		}
		s.logError(opGenerateInvitation, reasonEventInsert, err, zap.String("event_name", trimmed))
		return Invitation{}, internalError(opGenerateInvitation, reasonEventInsert, "Error generating the service link", err)
	}

	s.loggerOrDefault().Info("event created",
		zap.String("event_id", event.EventID),
		zap.String("event_name", event.EventName))
	return s.invitation(event, true), nil
}

// ListEvents returns every event, most recently created first.
func (s *Service) ListEvents(ctx context.Context) ([]Event, error) {
	if err := s.ready(opListEvents); err != nil {
		return nil, err
	}
	var events []Event
	err := s.db.WithContext(ctx).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: columnCreateDate}, Desc: true},
			{Column: clause.Column{Name: columnEventID}},
		}}).
		Find(&events).Error
	if err != nil {
		s.logError(opListEvents, reasonQueryFailed, err)
		return nil, internalError(opListEvents, reasonQueryFailed, "Error listing events", err)
	}
	return events, nil
}

// AppendToEvent links the validated biography for email to the event. Pending or unknown
// emails are reported without creating a link.
func (s *Service) AppendToEvent(ctx context.Context, eventID, email string) (AppendOutcome, error) {
	report, err := s.AppendManyToEvent(ctx, eventID, []string{email})
	if err != nil {
		return AppendOutcome{}, err
	}
	switch {
	case len(report.Linked) == 1:
		return AppendOutcome{Email: report.Linked[0], Status: AppendLinked}, nil
	case len(report.Pending) == 1:
		return AppendOutcome{Email: report.Pending[0], Status: AppendPending}, nil
	default:
		return AppendOutcome{Email: normalizeEmail(email), Status: AppendMissing}, nil
	}
}

// AppendManyToEvent classifies each email independently; one missing biography does not stop
// the rest of the batch.
func (s *Service) AppendManyToEvent(ctx context.Context, eventID string, emails []string) (AppendReport, error) {
	if err := s.ready(opAppendToEvent); err != nil {
		return AppendReport{}, err
	}
	normalizedEvent := normalizeIdentifier(eventID)
	if err := s.eventExists(ctx, opAppendToEvent, normalizedEvent); err != nil {
		return AppendReport{}, err
	}
	db := s.db.WithContext(ctx)

	report := NewAppendReport()
	for _, raw := range emails {
		email := normalizeEmail(raw)
		status, err := s.appendOne(db, normalizedEvent, email)
		if err != nil {
			return AppendReport{}, err
		}
		report.Add(AppendOutcome{Email: email, Status: status})
	}
	return report, nil
}

func (s *Service) appendOne(db *gorm.DB, eventID, email string) (AppendStatus, error) {
	if email == "" {
		return AppendMissing, nil
	}
	validated, err := s.findByEmail(db, StageValidated, email)
	if err != nil {
		s.logError(opAppendToEvent, reasonValidatedLookup, err, zap.String("email", email))
		return "", internalError(opAppendToEvent, reasonValidatedLookup, "Error looking up the biography", err)
	}
	if validated != nil {
		if err := linkEvent(db, eventID, validated.BiographyID); err != nil {
			s.logError(opAppendToEvent, reasonLinkFailed, err,
				zap.String("biography_id", validated.BiographyID),
				zap.String("event_id", eventID))
			return "", internalError(opAppendToEvent, reasonLinkFailed, "Error linking the biography to the event", err)
		}
		return AppendLinked, nil
	}

	pending, err := s.findByEmail(db, StagePending, email)
	if err != nil {
		s.logError(opAppendToEvent, reasonPendingLookup, err, zap.String("email", email))
		return "", internalError(opAppendToEvent, reasonPendingLookup, "Error looking up the biography", err)
	}
	if pending != nil {
		return AppendPending, nil
	}
	return AppendMissing, nil
}

func (s *Service) invitation(event Event, created bool) Invitation {
	return Invitation{
		EventID:   event.EventID,
		EventName: event.EventName,
		Link:      joinURL(s.links.InvitationBase, event.EventID),
		Created:   created,
	}
}

func findEventByName(db *gorm.DB, name string) (*Event, error) {
	var event Event
	err := db.Where(columnEquals(columnEventName, name)).Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find event %q: %w", name, err)
	}
	return &event, nil
}
