package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/resilience"
)

// StatusCoder is implemented by provider errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

var rateLimitMarkers = []string{"rate limit", "rate_limit", "too many requests", "status code: 429", "status: 429", "overloaded"}

func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if domain.IsKind(err, domain.ErrRateLimited) {
		return true
	}
	var coded StatusCoder
	if errors.As(err, &coded) && coded.HTTPStatus() == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ClassifyError decides which provider failures are retried and which count
// against the circuit breaker.
func ClassifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}
	if IsRateLimit(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: false,
		}
	}
	if domain.IsKind(err, domain.ErrMalformedResponse) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: false,
		}
	}

	var coded StatusCoder
	if errors.As(err, &coded) {
		return resilience.ErrorClassification{
			Retryable:     isRetryableHTTPStatus(coded.HTTPStatus()),
			RecordFailure: coded.HTTPStatus() >= 500,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

// wrapCallError maps a failed call onto the domain error kinds. Rate limits
// keep their own kind so the run report can tell them apart.
func wrapCallError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if IsRateLimit(err) {
		return domain.WrapError(domain.ErrRateLimited, operation, err)
	}
	return domain.WrapError(domain.ErrAnalysis, operation, err)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
