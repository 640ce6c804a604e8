// errors.go: structured error handling for inmemdb operations
//
// This file provides structured error types using the go-errors library,
// enabling rich error context, categorization, and standardized error codes.
// The fixed protocol-level error strings clients see on the wire live in
// command.go; the errors here describe the same conditions to Go callers.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package inmemdb

import (
	goerrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for inmemdb operations
const (
	// Configuration errors
	ErrCodeInvalidPort errors.ErrorCode = "INMEMDB_INVALID_PORT"

	// Keyspace errors
	ErrCodeWrongType  errors.ErrorCode = "INMEMDB_WRONG_TYPE"
	ErrCodeNotInteger errors.ErrorCode = "INMEMDB_NOT_INTEGER"

	// Dispatch errors
	ErrCodeUnknownCommand errors.ErrorCode = "INMEMDB_UNKNOWN_COMMAND"
	ErrCodeWrongArgCount  errors.ErrorCode = "INMEMDB_WRONG_ARG_COUNT"

	// Snapshot errors
	ErrCodeSnapshotSave    errors.ErrorCode = "INMEMDB_SNAPSHOT_SAVE_FAILED"
	ErrCodeSnapshotLoad    errors.ErrorCode = "INMEMDB_SNAPSHOT_LOAD_FAILED"
	ErrCodeSnapshotCorrupt errors.ErrorCode = "INMEMDB_SNAPSHOT_CORRUPT"

	// Server errors
	ErrCodeListenFailed errors.ErrorCode = "INMEMDB_LISTEN_FAILED"
)

// Common error messages
const (
	msgInvalidPort     = "invalid port: must be between 0 and 65535"
	msgWrongType       = "operation against a key holding the wrong kind of value"
	msgNotInteger      = "value is not an integer or out of range"
	msgUnknownCommand  = "unknown command"
	msgWrongArgCount   = "wrong number of arguments"
	msgSnapshotSave    = "failed to save snapshot"
	msgSnapshotLoad    = "failed to load snapshot"
	msgSnapshotCorrupt = "corrupted snapshot data"
	msgListenFailed    = "failed to listen"
)

// NewErrInvalidPort creates an error for an out-of-range port number.
func NewErrInvalidPort(port int) error {
	return errors.NewWithContext(ErrCodeInvalidPort, msgInvalidPort, map[string]interface{}{
		"provided_port": port,
		"valid_range":   "0-65535",
	})
}

// NewErrWrongType creates an error for a typed operation on a key of
// another kind.
func NewErrWrongType(key string) error {
	return errors.NewWithField(ErrCodeWrongType, msgWrongType, "key", key)
}

// NewErrNotInteger creates an error for INCR/DECR on a value that does not
// parse as a signed 64-bit integer.
func NewErrNotInteger(key string) error {
	return errors.NewWithField(ErrCodeNotInteger, msgNotInteger, "key", key)
}

// NewErrUnknownCommand creates an error for a command name with no handler.
func NewErrUnknownCommand(name string) error {
	return errors.NewWithField(ErrCodeUnknownCommand, msgUnknownCommand, "command", name)
}

// NewErrWrongArgCount creates an error for a handler given the wrong
// number of arguments.
func NewErrWrongArgCount(name string) error {
	return errors.NewWithField(ErrCodeWrongArgCount, msgWrongArgCount, "command", name)
}

// NewErrSnapshotSave creates an error when writing a snapshot fails.
func NewErrSnapshotSave(path string, cause error) error {
	return errors.Wrap(cause, ErrCodeSnapshotSave, msgSnapshotSave).
		WithContext("path", path).
		AsRetryable()
}

// NewErrSnapshotLoad creates an error when reading a snapshot fails.
func NewErrSnapshotLoad(path string, cause error) error {
	return errors.Wrap(cause, ErrCodeSnapshotLoad, msgSnapshotLoad).
		WithContext("path", path)
}

// NewErrSnapshotCorrupt creates an error for a snapshot that fails
// validation.
func NewErrSnapshotCorrupt(path string, details string) error {
	return errors.NewWithContext(ErrCodeSnapshotCorrupt, msgSnapshotCorrupt, map[string]interface{}{
		"path":    path,
		"details": details,
	})
}

// NewErrListenFailed creates an error when the listening socket cannot be
// created.
func NewErrListenFailed(port int, cause error) error {
	return errors.Wrap(cause, ErrCodeListenFailed, msgListenFailed).
		WithContext("port", port)
}

// IsWrongType checks if error is a wrong value kind error.
func IsWrongType(err error) bool {
	return errors.HasCode(err, ErrCodeWrongType)
}

// IsNotInteger checks if error is an integer parse failure.
func IsNotInteger(err error) bool {
	return errors.HasCode(err, ErrCodeNotInteger)
}

// IsSnapshotCorrupt checks if error reports invalid snapshot contents.
func IsSnapshotCorrupt(err error) bool {
	return errors.HasCode(err, ErrCodeSnapshotCorrupt)
}

// IsRetryable checks if the error can be retried
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var retryable errors.Retryable
	if goerrors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}
