package schema

import "errors"

var (
	// ErrUnsupportedField is returned when a field's shape maps to no entity kind.
	ErrUnsupportedField = errors.New("schema: unsupported field")

	// ErrNotSpecial is returned when a special build is requested for an ordinary ERD.
	ErrNotSpecial = errors.New("schema: not a special ERD")
)
