package erd

import "errors"

// Domain errors for the erd package.
//
// Lookup failures are fatal to the operation that hit them and are never
// retried by the store:
//
//	if errors.Is(err, erd.ErrERDNotFound) {
//	    // the ERD was never observed on this device
//	}
var (
	// ErrDeviceNotFound is returned when a device name has not been registered.
	ErrDeviceNotFound = errors.New("erd: device not found")

	// ErrERDNotFound is returned when an ERD id is in neither set of a device.
	ErrERDNotFound = errors.New("erd: not found")

	// ErrInvalidID is returned when an ERD id string cannot be parsed.
	ErrInvalidID = errors.New("erd: invalid id")

	// ErrFieldOutOfRange is returned when a field does not fit inside the value buffer.
	ErrFieldOutOfRange = errors.New("erd: field outside value")

	// ErrValueOutOfRange is returned when a value does not fit in the field width.
	ErrValueOutOfRange = errors.New("erd: value does not fit field")

	// ErrNoTransport is returned by PublishOutbound when no transport is configured.
	ErrNoTransport = errors.New("erd: no transport configured")

	// ErrTransmitFailed wraps transport errors from PublishOutbound.
	ErrTransmitFailed = errors.New("erd: transmit failed")
)
