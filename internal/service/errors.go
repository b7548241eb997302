package service

import (
	"net/http"

	apperrors "github.com/accountops/account-deletion/pkg/util/errorutil"
)

var (
	// ErrInvalidInvocation rejects a schedule call made without a session
	// terminator. Nothing is written when it is returned.
	ErrInvalidInvocation = apperrors.NewDomainError("INVALID_INVOCATION",
		"session terminator is required to schedule a deletion", http.StatusInternalServerError, nil)

	// ErrUnknownDeletionMode aborts an execution whose policy names no
	// terminal action.
	ErrUnknownDeletionMode = apperrors.NewDomainError("UNKNOWN_DELETION_MODE",
		"unknown deletion mode", http.StatusInternalServerError, nil)

	// ErrExecutionNotStarted is returned when the engine is handed a request
	// without a stored execution snapshot.
	ErrExecutionNotStarted = apperrors.NewDomainError("EXECUTION_NOT_STARTED",
		"deletion execution has no snapshot", http.StatusInternalServerError, nil)
)
