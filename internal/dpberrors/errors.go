// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dpberrors provides the structured error taxonomy used across the
// broker: every synchronous validation failure and every asynchronous fault
// recorded on a service carries a Code so callers can branch on it without
// string matching.
package dpberrors

import (
	"errors"
	"fmt"
)

// Code identifies the category of error, per spec.md §7.
type Code int

const (
	CodeUnknown Code = iota
	CodeInvalidTerminal
	CodeInvalidCircuit
	CodeInvalidSegment
	CodeInsufficientResources
	CodeSubordinateFailed
	CodeHandleInUse
	CodeReleasedService
	CodeDormantService
	CodeInUseService
	CodeStorageFailure
	CodeNoTunnelsAvailable
	CodeInsufficientBandwidth
	CodeUnknownLabel
	CodeInvalidSubset
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeInvalidTerminal:
		return "invalid_terminal"
	case CodeInvalidCircuit:
		return "invalid_circuit"
	case CodeInvalidSegment:
		return "invalid_segment"
	case CodeInsufficientResources:
		return "insufficient_resources"
	case CodeSubordinateFailed:
		return "subordinate_failed"
	case CodeHandleInUse:
		return "handle_in_use"
	case CodeReleasedService:
		return "released_service"
	case CodeDormantService:
		return "dormant_service"
	case CodeInUseService:
		return "in_use_service"
	case CodeStorageFailure:
		return "storage_failure"
	case CodeNoTunnelsAvailable:
		return "no_tunnels_available"
	case CodeInsufficientBandwidth:
		return "insufficient_bandwidth"
	case CodeUnknownLabel:
		return "unknown_label"
	case CodeInvalidSubset:
		return "invalid_subset"
	case CodeInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the broker's structured error type.
type Error struct {
	Code       Code
	Message    string
	Underlying error
	Attributes map[string]any
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a new Error of the given code.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Errorf creates a new Error of the given code with a formatted message.
func Errorf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err as a new Error of the given code.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Underlying: err}
}

// Wrapf wraps err as a new Error of the given code with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Underlying: err}
}

// Attr attaches an attribute to err, wrapping it as CodeInternal if it isn't
// already a *Error.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Code: CodeInternal, Message: err.Error(), Underlying: err}
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// GetCode returns the Code of err, or CodeUnknown if err is not a *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target.
func As(err error, target any) bool { return errors.As(err, target) }
