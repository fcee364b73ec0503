package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat   = errors.New("unsupported document format")
	ErrFileTooLarge        = errors.New("file exceeds the size limit")
	ErrEmptyDocument       = errors.New("document contains no extractable text")
	ErrParse               = errors.New("document parse failure")
	ErrProviderUnavailable = errors.New("extraction provider unavailable")
	ErrLLMTimeout          = errors.New("extraction request timed out")
	ErrInvalidJSON         = errors.New("extraction returned invalid json")
	ErrSchemaMismatch      = errors.New("extraction output does not match the product schema")
	ErrQuotaExceeded       = errors.New("analysis quota exceeded")
	ErrRecordNotFound      = errors.New("analysis record not found")
	ErrAlreadyMaterialized = errors.New("analysis record already confirmed")
	ErrFeedbackConflict    = errors.New("conflicting learning pattern update")
	ErrInvalidInput        = errors.New("invalid input")
	ErrTemporary           = errors.New("temporary failure")
)

// Warning markers attached to successful records.
const (
	WarningIncompleteBasicInfo = "IncompleteBasicInfo"
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ErrorCode maps a pipeline error to the stable code carried in API
// responses and persisted failure records.
func ErrorCode(err error) string {
	switch {
	case IsKind(err, ErrUnsupportedFormat):
		return "UnsupportedFormat"
	case IsKind(err, ErrFileTooLarge):
		return "FileTooLarge"
	case IsKind(err, ErrEmptyDocument):
		return "EmptyDocument"
	case IsKind(err, ErrParse):
		return "ParseError"
	case IsKind(err, ErrQuotaExceeded):
		return "QuotaExceeded"
	case IsKind(err, ErrLLMTimeout):
		return "Timeout"
	case IsKind(err, ErrProviderUnavailable):
		return "ProviderUnavailable"
	case IsKind(err, ErrInvalidJSON):
		return "InvalidJSON"
	case IsKind(err, ErrSchemaMismatch):
		return "SchemaMismatch"
	case IsKind(err, ErrRecordNotFound):
		return "NotFound"
	case IsKind(err, ErrAlreadyMaterialized):
		return "AlreadyMaterialized"
	case IsKind(err, ErrFeedbackConflict):
		return "FeedbackConflict"
	case IsKind(err, ErrInvalidInput):
		return "InvalidInput"
	case IsKind(err, ErrTemporary):
		return "Temporary"
	default:
		return "Internal"
	}
}
