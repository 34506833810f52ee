package cli

import (
	"errors"

	"github.com/roach88/larder/internal/engine"
	"github.com/roach88/larder/internal/store"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeConfig        = "E002" // Config file unreadable or invalid
	ErrCodeInvalidFlag   = "E003" // Flag value rejected
	ErrCodeStoreOpen     = "E004" // Database could not be opened
	ErrCodeNotFound      = "E005" // Recipe not found
	ErrCodeStoreRead     = "E006" // Database read failed
	ErrCodeTransport     = "E201" // Network failure
	ErrCodeRejected      = "E202" // Service reported an error
	ErrCodeMalformed     = "E203" // Response had the wrong shape
	ErrCodeStorage       = "E204" // Commit rejected by the store
	ErrCodeBusy          = "E205" // Another sync in flight
	ErrCodeSyncCancelled = "E206" // Sync interrupted
)

// syncErrorCode maps a sync failure to its CLI error code.
func syncErrorCode(err error) string {
	kind, ok := engine.KindOf(err)
	if !ok {
		return ErrCodeSyncCancelled
	}
	switch kind {
	case engine.KindTransport:
		return ErrCodeTransport
	case engine.KindServiceRejected:
		return ErrCodeRejected
	case engine.KindMalformedPayload:
		return ErrCodeMalformed
	case engine.KindStorageFailure:
		return ErrCodeStorage
	case engine.KindBusy:
		return ErrCodeBusy
	}
	return ErrCodeGeneric
}

// syncExitError wraps a failed cycle.
func syncExitError(err error) *ExitError {
	return &ExitError{
		Code:      ExitFailure,
		ErrorCode: syncErrorCode(err),
		Message:   engine.UserMessage(err),
	}
}

// readExitError wraps a failed store read.
func readExitError(err error) *ExitError {
	if errors.Is(err, store.ErrNotFound) {
		return &ExitError{Code: ExitFailure, ErrorCode: ErrCodeNotFound, Message: "recipe not found", Err: err}
	}
	return &ExitError{Code: ExitCommandError, ErrorCode: ErrCodeStoreRead, Message: "failed to read store", Err: err}
}

// errorCode returns the machine-readable code carried by err.
func errorCode(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.ErrorCode != "" {
		return exitErr.ErrorCode
	}
	return ErrCodeGeneric
}
