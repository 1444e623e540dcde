package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned for any 401 from an authenticated endpoint.
// Callers must invalidate the session store before surfacing it.
var ErrUnauthorized = errors.New("unauthorized")

// ValidationError is a 4xx response other than 401: the request was
// understood but rejected. Local state must be left unchanged.
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("request rejected (status %d): %s", e.Status, e.Message)
}

// ServiceError is a 5xx response or a network-level failure. Status is zero
// when no HTTP response was received at all.
type ServiceError struct {
	Status int
	Err    error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Status == 0:
		return fmt.Sprintf("backend unreachable: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("backend error (status %d): %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("backend error (status %d)", e.Status)
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

// classify maps a non-2xx HTTP status to the error taxonomy.
func classify(status int, body string) error {
	switch {
	case status == 401:
		return fmt.Errorf("%w (status 401)", ErrUnauthorized)
	case status >= 400 && status < 500:
		return &ValidationError{Status: status, Message: body}
	default:
		err := &ServiceError{Status: status}
		if body != "" {
			err.Err = errors.New(body)
		}
		return err
	}
}
