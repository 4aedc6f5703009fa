package biography

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks malformed caller input such as an unknown stage.
	ErrInvalidArgument = errors.New("biography: invalid argument")
	// ErrInvalidReference marks a reference to an event that does not exist.
	ErrInvalidReference = errors.New("biography: invalid reference")
	// ErrNotFound marks a mutation whose expected prior record is absent.
	ErrNotFound = errors.New("biography: not found")
	// ErrUnsupportedMediaType marks a photo whose extension is not allowed.
	ErrUnsupportedMediaType = errors.New("biography: unsupported media type")
	// ErrInternal marks storage or filesystem failures.
	ErrInternal = errors.New("biography: internal error")

	errMissingDatabase    = errors.New("database handle is required")
	errMissingPhotoStore  = errors.New("photo store is required")
	errUnsupportedPhoto   = errors.New("not allowed image file type")
	errEmptyPhotoFilename = errors.New("photo filename is empty after sanitization")
)

// ServiceError carries a stable code, a taxonomy kind and a human readable message.
type ServiceError struct {
	code    string
	kind    error
	message string
	err     error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Is matches the taxonomy sentinel the error was classified under.
func (e *ServiceError) Is(target error) bool {
	return e.kind != nil && target == e.kind
}

// Code returns "<operation>.<reason>".
func (e *ServiceError) Code() string {
	return e.code
}

// Message returns text suitable for the response envelope.
func (e *ServiceError) Message() string {
	if e.message != "" {
		return e.message
	}
	return e.Error()
}

const (
	opServiceNew          = "biography.service.new"
	opSave                = "biography.save"
	opAccept              = "biography.accept"
	opRetrieveByEmail     = "biography.retrieve_by_email"
	opRetrieveByID        = "biography.retrieve_by_id"
	opRetrieveByEvent     = "biography.retrieve_by_event"
	opGenerateInvitation  = "biography.generate_invitation"
	opListEvents          = "biography.list_events"
	opAppendToEvent       = "biography.append_to_event"
	opSearchKeywords      = "biography.search_keywords"
	opImportKeywords      = "biography.import_keywords"
	reasonMissingDatabase = "missing_database"
	reasonInvalidPayload  = "invalid_payload"
	reasonInvalidStage    = "invalid_stage"
	reasonUnknownEvent    = "unknown_event"
	reasonEventLookup     = "event_lookup_failed"
	reasonEventInsert     = "event_insert_failed"
	reasonPendingLookup   = "pending_lookup_failed"
	reasonPendingMissing  = "pending_missing"
	reasonValidatedLookup = "validated_lookup_failed"
	reasonIDGeneration    = "id_generation_failed"
	reasonPhotoRejected   = "photo_rejected"
	reasonPhotoWrite      = "photo_write_failed"
	reasonRecordUpsert    = "record_upsert_failed"
	reasonPromoteFailed   = "promote_failed"
	reasonLinkFailed      = "link_failed"
	reasonQueryFailed     = "query_failed"
)

func newServiceError(operation, reason string, kind error, message string, cause error) *ServiceError {
	return &ServiceError{
		code:    fmt.Sprintf("%s.%s", operation, reason),
		kind:    kind,
		message: message,
		err:     cause,
	}
}

func internalError(operation, reason, message string, cause error) *ServiceError {
	if cause != nil {
		message = fmt.Sprintf("%s. Error %v", message, cause)
	}
	return newServiceError(operation, reason, ErrInternal, message, cause)
}
