package appliance

import "errors"

var (
	// ErrInvalidDocument is returned when a document cannot be parsed.
	ErrInvalidDocument = errors.New("appliance: invalid document")

	// ErrUnknownFieldType is returned for a field type outside the supported set.
	ErrUnknownFieldType = errors.New("appliance: unknown field type")

	// ErrFieldNotFound is returned when an ERD has no field with the requested name.
	ErrFieldNotFound = errors.New("appliance: field not found")

	// ErrInvalidAnnouncement is returned when an API announcement value is too short.
	ErrInvalidAnnouncement = errors.New("appliance: invalid API announcement")
)
