package main

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"

	"github.com/harlequingg/devfocus/internal/ai"
)

// Storage errors
var (
	errRecordNotFound = errors.New("record not found")                                                      // 404
	errEditConflict   = errors.New("unable to update the record due to an edit conflict, please try again") // 409
	errDuplicateEmail = errors.New("user with this email already exists")                                   // 400
)

// Resource specific misses
var (
	errUserNotFound    = errors.New("user not found")    // 404
	errTaskNotFound    = errors.New("task not found")    // 404
	errSessionNotFound = errors.New("session not found") // 404
)

// Auth errors
var (
	errInvalidCredentials = errors.New("invalid credentials")                                 // 401
	errInvalidToken       = errors.New("invalid or missing authentication token")             // 401
	errUnverified         = errors.New("please verify your email before logging in")          // 403
	errAlreadyVerified    = errors.New("email already verified, please login")                // 400
	errInvalidOTP         = errors.New("invalid verification code")                           // 400
	errExpiredOTP         = errors.New("verification code expired, please request a new one") // 400
	errNoResetOTP         = errors.New("no reset code found, please request a new one")       // 400
	errWrongPassword      = errors.New("current password is incorrect")                       // 401
)

// Ownership and external services
var (
	errForbidden   = errors.New("you do not have access to this resource")             // 403
	errEmailFailed = errors.New("failed to send email, please try again")              // 500
	errAIFailed    = errors.New("failed to generate task breakdown, please try again") // 502
)

// validationError carries per-field messages and is rendered as an object.
type validationError struct {
	fields map[string]string
}

func (e *validationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.fields))
}

// badRequestError wraps a malformed request body.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var vErr *validationError
	var bErr *badRequestError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &vErr), errors.As(err, &bErr):
		return http.StatusBadRequest

	case errors.Is(err, errInvalidCredentials),
		errors.Is(err, errInvalidToken),
		errors.Is(err, errWrongPassword):
		return http.StatusUnauthorized

	case errors.Is(err, errUnverified),
		errors.Is(err, errForbidden):
		return http.StatusForbidden

	case errors.Is(err, errRecordNotFound),
		errors.Is(err, errUserNotFound),
		errors.Is(err, errTaskNotFound),
		errors.Is(err, errSessionNotFound):
		return http.StatusNotFound

	case errors.Is(err, errEditConflict):
		return http.StatusConflict

	case errors.Is(err, errDuplicateEmail),
		errors.Is(err, errAlreadyVerified),
		errors.Is(err, errInvalidOTP),
		errors.Is(err, errExpiredOTP),
		errors.Is(err, errNoResetOTP):
		return http.StatusBadRequest

	case errors.Is(err, errAIFailed):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// dbError translates driver errors into the storage taxonomy. Errors it does
// not recognise are returned unchanged.
func dbError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errRecordNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "users_email_key" {
				return errDuplicateEmail
			}
			return fmt.Errorf("%w: %s", errEditConflict, pqErr.Message)
		case "22P02":
			return errRecordNotFound
		case "23514":
			return &validationError{fields: map[string]string{constraintField(pqErr.Constraint): "is out of range"}}
		}
	}
	return err
}

// orNotFound replaces a storage miss with the resource specific error.
func orNotFound(err, notFound error) error {
	if errors.Is(err, errRecordNotFound) {
		return notFound
	}
	return err
}

// constraintField recovers the column from a "<table>_<column>_check" name.
func constraintField(constraint string) string {
	fields := map[string]string{
		"tasks_title_check":               "title",
		"tasks_priority_check":            "priority",
		"tasks_estimated_pomodoros_check": "estimatedPomodoros",
		"tasks_completed_pomodoros_check": "completedPomodoros",
		"sessions_duration_check":         "duration",
	}
	if f, ok := fields[constraint]; ok {
		return f
	}
	return "input"
}

// aiError folds every adapter failure into the single external service error
// exposed to clients while keeping the cause for logs.
func aiError(err error) error {
	if err == nil {
		return nil
	}
	var e *ai.Error
	if errors.As(err, &e) {
		return fmt.Errorf("%w (%s)", errAIFailed, e.Kind)
	}
	return fmt.Errorf("%w: %v", errAIFailed, err)
}
