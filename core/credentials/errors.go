package credentials

import (
	"fmt"
	"net/http"
)

// AuthError reports a failed credential exchange.
type AuthError struct {
	// StatusCode is the token endpoint's HTTP status, 0 when the request
	// never completed.
	StatusCode int
	Message    string
	Cause      error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token exchange failed with status %d %s: %s",
			e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("token exchange failed: %s: %v", e.Message, e.Cause)
	}
	return "token exchange failed: " + e.Message
}

func (e *AuthError) Unwrap() error { return e.Cause }

func (e *AuthError) HTTPStatus() int { return e.StatusCode }
