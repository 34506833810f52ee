package remote

import (
	"errors"
	"fmt"
)

// ErrMalformedPayload is wrapped by DecodeEnvelope when the body does not
// have the expected shape.
var ErrMalformedPayload = errors.New("malformed payload")

// TransportError reports a network or HTTP-level failure. No payload was
// obtained.
type TransportError struct {
	Op         string // request path
	StatusCode int    // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError returns true if err wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
