package engine

import (
	"errors"
	"fmt"
)

// SyncError reports why a sync cycle failed. The store is never partially
// updated by a failed cycle.
type SyncError struct {
	// Kind identifies the failure category.
	Kind SyncErrorKind

	// Message is a human-readable description. For service_rejected it is
	// the service's message verbatim.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// SyncErrorKind categorizes sync failures.
type SyncErrorKind string

const (
	// KindTransport indicates the fetch failed; no payload was obtained.
	KindTransport SyncErrorKind = "transport"

	// KindServiceRejected indicates the service returned an error envelope.
	KindServiceRejected SyncErrorKind = "service_rejected"

	// KindMalformedPayload indicates the body did not have the expected shape.
	KindMalformedPayload SyncErrorKind = "malformed_payload"

	// KindStorageFailure indicates the store rejected the commit.
	KindStorageFailure SyncErrorKind = "storage_failure"

	// KindBusy indicates another cycle is in flight.
	KindBusy SyncErrorKind = "busy"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("sync %s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("sync %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("sync %s", e.Kind)
}

// Unwrap returns the underlying cause.
func (e *SyncError) Unwrap() error {
	return e.Err
}

func newSyncError(kind SyncErrorKind, err error) *SyncError {
	se := &SyncError{Kind: kind, Err: err}
	if err != nil {
		se.Message = err.Error()
	}
	return se
}

// KindOf returns the kind of a wrapped SyncError.
func KindOf(err error) (SyncErrorKind, bool) {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

func isKind(err error, kind SyncErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsTransport returns true if err is a transport failure.
func IsTransport(err error) bool { return isKind(err, KindTransport) }

// IsServiceRejected returns true if the service reported an error.
func IsServiceRejected(err error) bool { return isKind(err, KindServiceRejected) }

// IsMalformedPayload returns true if the response had the wrong shape.
func IsMalformedPayload(err error) bool { return isKind(err, KindMalformedPayload) }

// IsStorageFailure returns true if the store rejected the commit.
func IsStorageFailure(err error) bool { return isKind(err, KindStorageFailure) }

// IsBusy returns true if the cycle was rejected because another was running.
func IsBusy(err error) bool { return isKind(err, KindBusy) }
