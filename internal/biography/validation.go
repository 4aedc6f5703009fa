package biography

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	maxEmailLength     = 320
	maxEventNameLength = 255
	maxIDLength        = 64
)

// Validate checks the fields the lifecycle depends on. Contents are not format-checked.
func (s Submission) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Email, validation.Required, validation.Length(1, maxEmailLength)),
	)
}

type eventReference struct {
	EventID string
}

func (r eventReference) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.EventID, validation.Required, validation.Length(1, maxIDLength)),
	)
}

type eventNameInput struct {
	Name string
}

func (i eventNameInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Name, validation.Required, validation.Length(1, maxEventNameLength)),
	)
}

type stageInput struct {
	Stage string
}

func (i stageInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Stage, validation.Required, validation.In(string(StagePending), string(StageValidated))),
	)
}

func invalidArgument(operation string, err error) *ServiceError {
	return newServiceError(operation, reasonInvalidPayload, ErrInvalidArgument, err.Error(), err)
}
