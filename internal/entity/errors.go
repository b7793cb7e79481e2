package entity

import "errors"

// Domain errors for the entity package.
var (
	// ErrEntityNotFound is returned when a unique id is not registered.
	ErrEntityNotFound = errors.New("entity: not found")

	// ErrDeviceNotFound is returned by a Repository for an unknown device name.
	ErrDeviceNotFound = errors.New("entity: device not found")

	// ErrDeviceExists is returned when persisting a device name twice.
	ErrDeviceExists = errors.New("entity: device already exists")

	// ErrWrongKind is returned when a command or attribute does not apply
	// to the entity's kind.
	ErrWrongKind = errors.New("entity: wrong kind")

	// ErrReadOnly is returned when commanding an entity whose ERD is not writable.
	ErrReadOnly = errors.New("entity: read only")

	// ErrDisabled is returned when commanding a disabled entity.
	ErrDisabled = errors.New("entity: disabled")

	// ErrOutOfRange is returned when a number is outside the entity's bounds.
	ErrOutOfRange = errors.New("entity: value out of range")

	// ErrOptionNotAllowed is returned when a select option is unknown or
	// currently not allowed.
	ErrOptionNotAllowed = errors.New("entity: option not allowed")

	// ErrNoValue is returned when a command needs the current ERD value and
	// the appliance has not reported one yet.
	ErrNoValue = errors.New("entity: no current value")

	// ErrInvalidValue is returned when a command value cannot be encoded.
	ErrInvalidValue = errors.New("entity: invalid value")
)
