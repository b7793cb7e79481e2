package discovery

import "errors"

// Domain-specific errors for discovery.
var (
	// ErrUnknownAPIVersion is returned when an announcement names a version
	// or feature type missing from the manifest document.
	ErrUnknownAPIVersion = errors.New("discovery: unknown appliance API version")

	// ErrEmptyDeviceName is returned for a message without a device name.
	ErrEmptyDeviceName = errors.New("discovery: empty device name")
)
