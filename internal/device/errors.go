package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrValidation is returned when input fails shape or required-field
	// checks (missing device name, unknown status value, empty fault reason).
	// The caller can recover by correcting the input.
	ErrValidation = errors.New("device: validation failed")

	// ErrNotFound is returned when a referenced ID or device ID does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrConflict is returned when a business rule is violated: duplicate
	// device ID on add, deleting a device that is still online, or an
	// attempt to change the immutable device ID.
	ErrConflict = errors.New("device: conflict")

	// ErrStore is returned when the underlying store misbehaves, e.g. a
	// write unexpectedly affects zero rows.
	ErrStore = errors.New("device: store failure")
)
