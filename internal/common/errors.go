// Package common provides shared utilities and types used across the application.
package common

import "errors"

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Bank API errors.
	ErrBankConnection = errors.New("bank connection failed")
	ErrNoToken        = errors.New("no access token available")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
)
