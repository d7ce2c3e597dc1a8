package envelope

import "errors"

var (
	// ErrInvalidOperation is returned when an operation is outside the configured set.
	ErrInvalidOperation = errors.New("envelope: invalid operation")

	// ErrMalformedEnvelope is returned by Decode when a required field is missing or mistyped.
	ErrMalformedEnvelope = errors.New("envelope: malformed envelope")
)
