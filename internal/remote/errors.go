package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable marks failures where the service could not be reached,
	// timed out, answered with a server error, or is not configured.
	ErrUnavailable = errors.New("remote service unavailable")

	// ErrUnauthorized marks rejected credentials.
	ErrUnauthorized = errors.New("remote service rejected credentials")

	// ErrUndetermined is returned when the service answered but the answer
	// could not be interpreted (e.g., a malformed admin status body).
	ErrUndetermined = errors.New("remote answer could not be determined")
)

// AuthError indicates that authentication has failed for a request.
// It is returned when a 401 response is received. A 403 is an HTTPError:
// the credentials are valid but the endpoint refused the operation.
type AuthError struct {
	StatusCode int
	Path       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%d) on %s", e.StatusCode, e.Path)
}

// Is lets errors.Is(err, ErrUnauthorized) match any AuthError.
func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthorized
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// HTTPError is a non-2xx answer that is not an auth failure.
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// Is treats server errors, timeouts and throttling as unavailability.
func (e *HTTPError) Is(target error) bool {
	if target != ErrUnavailable {
		return false
	}
	return e.StatusCode >= 500 ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests
}

// Classify names the failure class of a remote error for logs and metrics.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrUndetermined):
		return "undetermined"
	default:
		return "rejected"
	}
}
