package ailink

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/chatrelay/chatrelay/internal/ailink/driver"
)

// ErrorKind is the fixed taxonomy of user-visible completion failures.
type ErrorKind string

const (
	// KindQuotaExceeded means the provider reported an exhausted usage quota.
	KindQuotaExceeded ErrorKind = "quota_exceeded"

	// KindProviderRateLimited means the provider applied its own rate limit,
	// distinct from this service's per-user limiter.
	KindProviderRateLimited ErrorKind = "provider_rate_limited"

	// KindProviderUnavailable covers any other provider-identified failure:
	// network errors, malformed responses, provider-side error signals.
	KindProviderUnavailable ErrorKind = "provider_unavailable"

	// KindEmptyResponse means the provider succeeded but returned no text.
	KindEmptyResponse ErrorKind = "empty_response"

	// KindUnknown is everything else.
	KindUnknown ErrorKind = "unknown"
)

// Structured provider error codes recognized ahead of any status inspection.
const (
	codeInsufficientQuota = "insufficient_quota"
	codeRateLimitExceeded = "rate_limit_exceeded"
)

// ClassifyError maps a completion failure onto the error taxonomy.
//
// A structured error code wins over everything else; then the HTTP status;
// then a provider-name hint in the error text. Classification is pure, so
// the same error always yields the same kind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindProviderUnavailable
	}

	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil {
		switch perr.Code {
		case codeInsufficientQuota:
			return KindQuotaExceeded
		case codeRateLimitExceeded:
			return KindProviderRateLimited
		}
		if perr.StatusCode == http.StatusTooManyRequests {
			return KindProviderRateLimited
		}
		return KindProviderUnavailable
	}

	if strings.Contains(strings.ToLower(err.Error()), "openai") {
		return KindProviderUnavailable
	}

	return KindUnknown
}
