package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation        Code = "validation"
	CodeNotFound          Code = "not_found"
	CodeConflict          Code = "conflict"
	CodeInvalidTransition Code = "invalid_transition"
	CodeAuthority         Code = "authority"
	CodePersistence       Code = "persistence"
)

type Error struct {
	Code    Code
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func Validation(field, message string) *Error {
	return &Error{Code: CodeValidation, Field: field, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

func InvalidTransition(from, to fmt.Stringer) *Error {
	return &Error{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("transition %s -> %s is not allowed", from, to),
	}
}

func Authority(err error, message string) *Error {
	return &Error{Code: CodeAuthority, Message: message, Cause: err}
}

func Persistence(err error, message string) *Error {
	return &Error{Code: CodePersistence, Message: message, Cause: err}
}

// Wrap keeps an existing *Error; a nil err stays nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Code: code, Message: message, Cause: err}
}

func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func FieldOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

func IsValidation(err error) bool        { return CodeOf(err) == CodeValidation }
func IsNotFound(err error) bool          { return CodeOf(err) == CodeNotFound }
func IsConflict(err error) bool          { return CodeOf(err) == CodeConflict }
func IsInvalidTransition(err error) bool { return CodeOf(err) == CodeInvalidTransition }
func IsAuthority(err error) bool         { return CodeOf(err) == CodeAuthority }
func IsPersistence(err error) bool       { return CodeOf(err) == CodePersistence }

func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeAuthority, CodePersistence:
		return true
	default:
		return false
	}
}
