package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes rendered in the "code" field of error responses.
const (
	CodeValidation          = "VALIDATION_FAILED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotRegistered       = "NOT_REGISTERED"
	CodeBadCredential       = "BAD_CREDENTIAL"
	CodeForbidden           = "FORBIDDEN"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewNotRegistered reports a login identifier that matches no account.
func NewNotRegistered() error {
	return NewDomainError(CodeNotRegistered, "Usuario no registrado", http.StatusUnauthorized, nil)
}

// NewBadCredential reports a password mismatch for an existing account.
func NewBadCredential() error {
	return NewDomainError(CodeBadCredential, "Contraseña incorrecta", http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewInvalidRefreshToken collapses signature and expiry failures of a refresh token.
func NewInvalidRefreshToken() error {
	return NewDomainError(CodeInvalidRefreshToken, "Token de refresco inválido o expirado", http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError. Errors raised by the
// router itself, such as unknown routes, keep their HTTP status.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fromFiberError(fiberErr)
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

func MapError(err error) error {
	return ToDomainError(err)
}

func fromFiberError(err *fiber.Error) *DomainError {
	code := CodeInternal
	switch err.Code {
	case http.StatusNotFound:
		code = CodeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = CodeValidation
	case http.StatusUnauthorized:
		code = CodeUnauthorized
	case http.StatusForbidden:
		code = CodeForbidden
	case http.StatusMethodNotAllowed:
		code = CodeMethodNotAllowed
	}
	return &DomainError{Code: code, Message: err.Message, HTTPStatus: err.Code, Err: err}
}
