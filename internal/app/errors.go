package app

import (
	"fmt"
	"net/http"
)

// DomainError is an API error with a fixed status and code. Err, when set, is
// the underlying cause and is never shown to the client.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func invalidBody(err error) *DomainError {
	return &DomainError{Status: http.StatusBadRequest, Code: "INVALID_BODY", Message: err.Error(), Err: err}
}
