// Package apperr defines the closed error taxonomy shared by every layer of
// privd: the evaluator, the storage backend, the wire protocol, and the CLI.
// Each Code is a distinct kind surfaced as a numeric code on the wire and to
// the admin CLI, and as a tagged Go error internally.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies one error kind from the taxonomy. Codes are stable once
// assigned: they are serialised onto the admin/agent wire protocols.
type Code uint16

const (
	// Input errors.
	CodeInvalidParam Code = iota + 1
	CodeMaxPendingRequests
	CodeOperationNotAllowed
	CodeInvalidCommandline
	CodeMethodNotSupported

	// Service errors.
	CodeServiceNotAvailable
	CodeOperationFailed

	// Storage errors.
	CodeDatabaseCorrupted
	CodeBucketNotExists
	CodeUnknownPolicyType
	CodeFileLockAcquire
	CodeFileNotFound
	CodeCannotCreateFile

	// Protocol errors.
	CodeWrongOpCode
	CodeOutOfData
	CodeInvalidProtocol

	// Plugin errors.
	CodePluginNotFound
	CodePluginError

	// Resource errors.
	CodeOutOfMemory
	CodeUnexpectedError
)

var names = map[Code]string{
	CodeInvalidParam:        "InvalidParam",
	CodeMaxPendingRequests:  "MaxPendingRequests",
	CodeOperationNotAllowed: "OperationNotAllowed",
	CodeInvalidCommandline:  "InvalidCommandline",
	CodeMethodNotSupported:  "MethodNotSupported",
	CodeServiceNotAvailable: "ServiceNotAvailable",
	CodeOperationFailed:     "OperationFailed",
	CodeDatabaseCorrupted:   "DatabaseCorrupted",
	CodeBucketNotExists:     "BucketNotExists",
	CodeUnknownPolicyType:   "UnknownPolicyType",
	CodeFileLockAcquire:     "FileLockAcquire",
	CodeFileNotFound:        "FileNotFound",
	CodeCannotCreateFile:    "CannotCreateFile",
	CodeWrongOpCode:         "WrongOpCode",
	CodeOutOfData:           "OutOfData",
	CodeInvalidProtocol:     "InvalidProtocol",
	CodePluginNotFound:      "PluginNotFound",
	CodePluginError:         "PluginError",
	CodeOutOfMemory:         "OutOfMemory",
	CodeUnexpectedError:     "UnexpectedError",
}

// String renders the code's descriptive name (e.g. "BucketNotExists").
func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("Code(%d)", uint16(c))
}

// Error is the tagged error type used across privd. It wraps an optional
// underlying cause while keeping the Code as the stable, comparable part
// callers should switch on.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

// New creates an *Error with no underlying cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap creates an *Error with the given code, wrapping an underlying error.
func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is supports errors.Is(err, apperr.New(code, "")) style comparisons by
// matching on Code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error, returning
// CodeUnexpectedError otherwise.
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnexpectedError
}
