// Package businessflow contains the core business logic and use cases of the prospecting workbench
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Workbook errors
	ErrWorkbookUnreadable = errors.New("workbook could not be read")
	ErrWorkbookEmpty      = errors.New("workbook has no sheets")
	ErrSheetNotFound      = errors.New("sheet not found in workbook")
	ErrImportNotFound     = errors.New("import token not found or expired")
	ErrFileTooLarge       = errors.New("file exceeds the maximum upload size")

	// Mapping errors
	ErrNameColumnRequired  = errors.New("name column is required")
	ErrPhoneColumnRequired = errors.New("phone column is required")
	ErrUnknownColumn       = errors.New("column is not a header of the selected sheet")

	// Auth errors
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAuthUnavailable     = errors.New("authentication store unavailable")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidRecoveryCode = errors.New("invalid or expired recovery code")
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrPersistenceDisabled = errors.New("persistence is not available for this session")
	ErrUploadNotFound      = errors.New("upload not found")
	ErrUploadAccessDenied  = errors.New("upload belongs to another user")
	ErrContactNotFound     = errors.New("contact not found")
	ErrTemplateTooLong     = errors.New("template is too long")
	ErrCacheNotAvailable   = errors.New("cache not available")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsWorkbookUnreadable(err error) bool {
	return errors.Is(err, ErrWorkbookUnreadable)
}

func IsWorkbookEmpty(err error) bool {
	return errors.Is(err, ErrWorkbookEmpty)
}

func IsSheetNotFound(err error) bool {
	return errors.Is(err, ErrSheetNotFound)
}

func IsImportNotFound(err error) bool {
	return errors.Is(err, ErrImportNotFound)
}

func IsFileTooLarge(err error) bool {
	return errors.Is(err, ErrFileTooLarge)
}

// IsMappingInvalid reports any column mapping validation failure
func IsMappingInvalid(err error) bool {
	return errors.Is(err, ErrNameColumnRequired) ||
		errors.Is(err, ErrPhoneColumnRequired) ||
		errors.Is(err, ErrUnknownColumn)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsAuthUnavailable(err error) bool {
	return errors.Is(err, ErrAuthUnavailable)
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsInvalidRecoveryCode(err error) bool {
	return errors.Is(err, ErrInvalidRecoveryCode)
}

func IsPasswordTooShort(err error) bool {
	return errors.Is(err, ErrPasswordTooShort)
}

func IsPersistenceDisabled(err error) bool {
	return errors.Is(err, ErrPersistenceDisabled)
}

func IsUploadNotFound(err error) bool {
	return errors.Is(err, ErrUploadNotFound)
}

func IsUploadAccessDenied(err error) bool {
	return errors.Is(err, ErrUploadAccessDenied)
}

func IsContactNotFound(err error) bool {
	return errors.Is(err, ErrContactNotFound)
}

func IsTemplateTooLong(err error) bool {
	return errors.Is(err, ErrTemplateTooLong)
}

// ParseKind classifies a workbook parse failure
type ParseKind string

const (
	ParseUnreadable ParseKind = "unreadable"
	ParseEmpty      ParseKind = "empty"
)

// ParseError is returned by ReadWorkbook. It matches ErrWorkbookUnreadable or
// ErrWorkbookEmpty through errors.Is depending on Kind.
type ParseError struct {
	Kind     ParseKind
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s: %s", e.Filename, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrWorkbookUnreadable:
		return e.Kind == ParseUnreadable
	case ErrWorkbookEmpty:
		return e.Kind == ParseEmpty
	}
	return false
}
