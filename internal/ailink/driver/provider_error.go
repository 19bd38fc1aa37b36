package driver

import "fmt"

// ProviderError is returned when a provider responds with a non-2xx status.
//
// Code carries the provider's machine-readable error code when the response
// body included one (e.g. "insufficient_quota"). Drivers should populate
// RawResponse with the provider response body bytes. RawResponse must never
// include API keys.
type ProviderError struct {
	Provider    string
	StatusCode  int
	Code        string
	Message     string
	RawResponse []byte
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s request failed: status %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}
