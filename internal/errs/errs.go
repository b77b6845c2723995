// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Package errs enumerates the error kinds surfaced across the installation
// controller. Each exported sentinel is meant to be wrapped with context via
// fmt.Errorf("...: %w", ErrX) and unwrapped with errors.Is.
package errs

import "errors"

var (
	// ErrDeviceUnavailable means a peripheral could not be opened or probed
	// at startup (or reconnect). Fatal for the RFID reader and printer;
	// advisory for the display.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrDeviceLost means a peripheral stopped responding mid-operation and
	// a reopen attempt also failed.
	ErrDeviceLost = errors.New("device lost")

	// ErrUnregisteredTag means an EPC resolved to no catalog answer.
	ErrUnregisteredTag = errors.New("unregistered tag")

	// ErrQuotaExceeded means the content client's rate limiter could not
	// reserve a slot within its maximum wait.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrRequestError means the remote content service returned an error
	// status (other than an auth rejection) or an unusable body. The
	// content client retries 429, 5xx and malformed-body cases before
	// surfacing it.
	ErrRequestError = errors.New("content request error")

	// ErrAuthError means the remote content service rejected credentials.
	ErrAuthError = errors.New("content auth error")

	// ErrPrinterFailure means a print attempt failed on claim or I/O. The
	// orchestrator retries a failed print once.
	ErrPrinterFailure = errors.New("printer failure")

	// ErrUploadFailure means the slip record could not be uploaded to the
	// remote record store; the slip remains queued. Non-fatal.
	ErrUploadFailure = errors.New("slip upload failure")

	// ErrConfigurationError means startup configuration (catalog, region,
	// ...) is invalid. Fatal.
	ErrConfigurationError = errors.New("configuration error")

	// ErrDisplayUnavailable means two consecutive display operations
	// failed. Advisory, does not abort a cycle.
	ErrDisplayUnavailable = errors.New("display unavailable")
)
