package app

import "errors"

var (
	// ErrCaseNotFound indicates the case does not exist.
	ErrCaseNotFound = errors.New("case not found")
	// ErrCaseForbidden indicates the case belongs to another user.
	ErrCaseForbidden = errors.New("case forbidden")
	// ErrDeadlineNotFound indicates the deadline does not exist in the case.
	ErrDeadlineNotFound = errors.New("deadline not found")
	// ErrAssistantUnavailable indicates both the primary model and the
	// fallback failed to answer.
	ErrAssistantUnavailable = errors.New("assistant unavailable")
)
