package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds, match with errors.Is
var (
	ErrValidation    = errors.New("validation error")
	ErrNetwork       = errors.New("network error")
	ErrAuthorization = errors.New("authorization error")
	ErrStorage       = errors.New("storage error")
	ErrRemote        = errors.New("remote service error")
)

// Error represents a session error of a given kind.
type Error struct {
	Kind    error
	Op      string
	Status  int
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	if e.Kind != nil {
		sb.WriteString(e.Kind.Error())
	}
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (%d)", e.Status)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	for _, field := range e.Fields {
		fmt.Fprintf(&sb, "; %s: %s", field.Field, field.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error kind sentinel
func (e *Error) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}

// NewValidationError creates a validation error
func NewValidationError(op, message string) error {
	return &Error{Kind: ErrValidation, Op: op, Message: message}
}

// NewNetworkError wraps a transport failure
func NewNetworkError(op string, err error) error {
	return &Error{Kind: ErrNetwork, Op: op, Err: err}
}

// NewStorageError wraps a persistence failure
func NewStorageError(op string, err error) error {
	return &Error{Kind: ErrStorage, Op: op, Err: err}
}

// NewAuthorizationError creates an authorization error
func NewAuthorizationError(op string, err error) error {
	return &Error{Kind: ErrAuthorization, Op: op, Err: err}
}

// NewStatusError classifies a non 2xx response, body is the raw service body.
func NewStatusError(op string, status int, body []byte) error {
	ret := &Error{Op: op, Status: status}
	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		ret.Kind = ErrValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		ret.Kind = ErrAuthorization
	default:
		ret.Kind = ErrRemote
	}
	errorResponse := &ErrorResponse{}
	if err := json.Unmarshal(body, errorResponse); err == nil && errorResponse.Error != "" {
		ret.Message = errorResponse.Error
		ret.Fields = errorResponse.Data
	} else {
		ret.Message = strings.TrimSpace(string(body))
	}
	if ret.Message == "" {
		ret.Message = http.StatusText(status)
	}
	return ret
}

// Message returns server supplied message when available.
func Message(err error) string {
	var sErr *Error
	if errors.As(err, &sErr) && sErr.Message != "" {
		return sErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
