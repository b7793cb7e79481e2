package metaerd

import "errors"

// Domain errors for the meta-ERD coordinator.
var (
	// ErrUnknownTransform is returned when the table names a transform
	// function that does not exist.
	ErrUnknownTransform = errors.New("metaerd: unknown transform")

	// ErrBadTarget is returned when a target template cannot be used by its
	// transform, such as an allowable target without ".<option>".
	ErrBadTarget = errors.New("metaerd: bad target")
)
