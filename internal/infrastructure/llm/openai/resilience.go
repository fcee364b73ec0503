package openai

import (
	"context"
	"errors"
	"net"

	"github.com/electroquote/cpq-backend/internal/core/domain"
	"github.com/electroquote/cpq-backend/internal/infrastructure/resilience"
)

// classifyProviderError drives retry and breaker decisions. Throttling,
// 5xx responses and transport failures are retryable; client errors are
// terminal and do not count against the breaker.
func classifyProviderError(err error) resilience.ErrorClassification {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 429:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case statusErr.StatusCode >= 500:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// mapProviderError folds transport failures into the domain taxonomy so
// handlers never leak raw provider responses to API clients.
func mapProviderError(op string, err error) error {
	switch {
	case resilience.IsCircuitOpen(err):
		return domain.WrapError(domain.ErrProviderUnavailable, op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.WrapError(domain.ErrLLMTimeout, op, err)
	case errors.Is(err, context.Canceled):
		return err
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return domain.WrapError(domain.ErrProviderUnavailable, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.WrapError(domain.ErrLLMTimeout, op, err)
		}
		return domain.WrapError(domain.ErrProviderUnavailable, op, err)
	}
	if domain.IsKind(err, domain.ErrInvalidJSON) || domain.IsKind(err, domain.ErrSchemaMismatch) {
		return err
	}
	return domain.WrapError(domain.ErrProviderUnavailable, op, err)
}
