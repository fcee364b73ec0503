package httpadapter

import (
	"net/http"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrUnsupportedFormat),
		domain.IsKind(err, domain.ErrFileTooLarge):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrEmptyDocument),
		domain.IsKind(err, domain.ErrParse):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrInvalidJSON),
		domain.IsKind(err, domain.ErrSchemaMismatch):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrProviderUnavailable),
		domain.IsKind(err, domain.ErrLLMTimeout),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrAlreadyMaterialized),
		domain.IsKind(err, domain.ErrFeedbackConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage returns the sanitized, human-readable error string for the
// response envelope. Provider error bodies never pass through.
func clientMessage(err error) string {
	for _, kind := range []error{
		domain.ErrInvalidInput,
		domain.ErrUnsupportedFormat,
		domain.ErrFileTooLarge,
		domain.ErrEmptyDocument,
		domain.ErrParse,
		domain.ErrQuotaExceeded,
		domain.ErrInvalidJSON,
		domain.ErrSchemaMismatch,
		domain.ErrProviderUnavailable,
		domain.ErrLLMTimeout,
		domain.ErrTemporary,
		domain.ErrRecordNotFound,
		domain.ErrAlreadyMaterialized,
		domain.ErrFeedbackConflict,
	} {
		if domain.IsKind(err, kind) {
			return kind.Error()
		}
	}
	return "internal error"
}
