/*
Copyright 2026 The UniDrop Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package core contains the types shared by every protocol implementation
// and by the engine that orchestrates them: device/peer identity, transfer
// state, events, and the error taxonomy below.
package core

import (
	"errors"
	"fmt"

	"github.com/gravitational/trace"
)

// Category classifies an Error so callers can decide whether to retry, give
// up, or treat a failure as a user decision rather than a fault.
type Category string

const (
	CategoryNetwork         Category = "network"
	CategoryConnection      Category = "connection"
	CategoryTimeout         Category = "timeout"
	CategoryDeviceNotFound  Category = "device_not_found"
	CategoryDiscovery       Category = "discovery"
	CategoryRejected        Category = "rejected"
	CategoryCancelled       Category = "cancelled"
	CategoryTransferFailed  Category = "transfer_failed"
	CategoryInvalidSession  Category = "invalid_session"
	CategoryProtocol        Category = "protocol"
	CategoryProtocolNotFound     Category = "protocol_not_found"
	CategoryProtocolNotSupported Category = "protocol_not_supported"
	CategoryFileNotFound    Category = "file_not_found"
	CategoryIO              Category = "io"
	CategoryConfig          Category = "config"
	CategoryInternal        Category = "internal"
)

const categoryField = "unidrop.category"

// Error is the concrete error type returned by engine and protocol code. It
// wraps an underlying cause with a Category and keeps the gravitational/trace
// diagnostic metadata (stack trace, trace.Fields) that the rest of the
// codebase relies on for logging.
type Error struct {
	category Category
	cause    error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return string(e.category)
	}
	return fmt.Sprintf("%s: %v", e.category, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// GetCategory returns the classification of err, or CategoryInternal if err is
// not (or does not wrap) a *Error.
func GetCategory(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.category
	}
	return CategoryInternal
}

// IsRetryable reports whether a caller may reasonably retry the operation
// that produced err: transient network problems and timeouts are retryable,
// everything else (including user decisions like rejection) is not.
func IsRetryable(err error) bool {
	switch GetCategory(err) {
	case CategoryNetwork, CategoryTimeout, CategoryConnection:
		return true
	default:
		return false
	}
}

// IsUserCancelled reports whether err represents a decision made by a human
// (the remote peer rejected the transfer, or the local user cancelled it)
// rather than a fault.
func IsUserCancelled(err error) bool {
	switch GetCategory(err) {
	case CategoryRejected, CategoryCancelled:
		return true
	default:
		return false
	}
}

func newError(category Category, traceKind, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	var cause error
	switch traceKind {
	case "connection":
		cause = trace.ConnectionProblem(nil, "%s", msg)
	case "limit":
		cause = trace.LimitExceeded("%s", msg)
	case "notfound":
		cause = trace.NotFound("%s", msg)
	case "denied":
		cause = trace.AccessDenied("%s", msg)
	case "badparam":
		cause = trace.BadParameter("%s", msg)
	case "compare":
		cause = trace.CompareFailed("%s", msg)
	default:
		cause = trace.Errorf("%s", msg)
	}
	return &Error{category: category, cause: trace.Wrap(cause, categoryField+"=%s", category)}
}

func NewNetworkError(format string, args ...any) *Error {
	return newError(CategoryNetwork, "connection", format, args...)
}

func NewConnectionError(format string, args ...any) *Error {
	return newError(CategoryConnection, "connection", format, args...)
}

func NewTimeoutError(format string, args ...any) *Error {
	return newError(CategoryTimeout, "limit", format, args...)
}

func NewDeviceNotFoundError(deviceID string) *Error {
	return newError(CategoryDeviceNotFound, "notfound", "device not found: %s", deviceID)
}

func NewDiscoveryError(format string, args ...any) *Error {
	return newError(CategoryDiscovery, "default", format, args...)
}

func NewRejectedError(format string, args ...any) *Error {
	return newError(CategoryRejected, "denied", format, args...)
}

func NewCancelledError(format string, args ...any) *Error {
	return newError(CategoryCancelled, "default", format, args...)
}

func NewTransferFailedError(format string, args ...any) *Error {
	return newError(CategoryTransferFailed, "default", format, args...)
}

func NewInvalidSessionError(format string, args ...any) *Error {
	return newError(CategoryInvalidSession, "badparam", format, args...)
}

func NewProtocolError(format string, args ...any) *Error {
	return newError(CategoryProtocol, "default", format, args...)
}

func NewProtocolNotFoundError(id string) *Error {
	return newError(CategoryProtocolNotFound, "notfound", "protocol not found: %s", id)
}

func NewProtocolNotSupportedError(id, operation string) *Error {
	return newError(CategoryProtocolNotSupported, "badparam", "protocol %s does not support %s", id, operation)
}

func NewFileNotFoundError(path string) *Error {
	return newError(CategoryFileNotFound, "notfound", "file not found: %s", path)
}

func NewIOError(format string, args ...any) *Error {
	return newError(CategoryIO, "default", format, args...)
}

func NewConfigError(format string, args ...any) *Error {
	return newError(CategoryConfig, "badparam", format, args...)
}

func NewInternalError(format string, args ...any) *Error {
	return newError(CategoryInternal, "default", format, args...)
}

// WrapIO wraps a stdlib/io error as a CategoryIO Error, preserving the
// original error in the chain for errors.Is/As.
func WrapIO(err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return &Error{category: CategoryIO, cause: trace.Wrap(err, "%s", msg)}
}

// WrapNetwork wraps a transport-level error as a CategoryNetwork Error.
func WrapNetwork(err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return &Error{category: CategoryNetwork, cause: trace.Wrap(err, "%s", msg)}
}
