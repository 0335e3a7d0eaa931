package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CredentialError reports that the backend cannot be used because no valid
// access credential is configured. Callers recover locally with a fixed
// draft and never retry.
type CredentialError struct {
	Provider Provider
	EnvVar   string
	Msg      string
}

func (e *CredentialError) Error() string {
	if e.EnvVar != "" {
		return fmt.Sprintf("%s: missing credentials: %s (set the %s environment variable)", e.Provider, e.Msg, e.EnvVar)
	}
	return fmt.Sprintf("%s: missing credentials: %s", e.Provider, e.Msg)
}

// ProviderError is any other remote-call failure: transport, non-2xx status,
// undecodable body or an expired deadline.
type ProviderError struct {
	Provider   Provider
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: request failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Timeout reports whether the call failed because its deadline expired.
func (e *ProviderError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// credentialMarkers are substrings that identify credential failures in
// errors that did not come from this package (SDK errors, wrapped strings).
var credentialMarkers = []string{
	"Missing credentials",
	"missing credentials",
	"OPENAI_API_KEY",
	"GEMINI_API_KEY",
	"API key not valid",
	"API_KEY_INVALID",
}

// IsCredentialError reports whether err means the credential is missing or rejected.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}
	var ce *CredentialError
	if errors.As(err, &ce) {
		return true
	}
	msg := err.Error()
	for _, m := range credentialMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
