package services

import (
	"errors"
	"fmt"

	"github.com/yukikurage/mo-task-monitor/internal/repository"
)

// ErrValidation is wrapped by every input validation failure.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidCredentials = errors.New("invalid username or password")

	ErrTaskNotFound         = repository.ErrTaskNotFound
	ErrOrganizationNotFound = repository.ErrOrganizationNotFound
	ErrUserNotFound         = repository.ErrUserNotFound

	ErrTitleRequired        = invalid("title is required")
	ErrDescriptionRequired  = invalid("description is required")
	ErrAssignedByRequired   = invalid("assigned_by is required")
	ErrOrganizationRequired = invalid("at least one organization is required")
	ErrDatesRequired        = invalid("start_date and end_date are required")
	ErrEndBeforeStart       = invalid("end_date must not be before start_date")
	ErrInvalidPercentage    = invalid("completion percentage must be between 0 and 100")
	ErrInvalidStatus        = invalid("unknown task status")
	ErrDuplicateStatus      = invalid("an organization may appear only once in statuses")
	ErrDerivedPercentage    = invalid("completion percentage of a multi-organization task is derived from its statuses")
	ErrUnknownOrganization  = invalid("organization does not exist")
	ErrInvalidSort          = invalid("unknown sort key")
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
