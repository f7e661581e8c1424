package pairing

import "net/http"

// Error carries the HTTP status a pairing failure maps to alongside a
// machine-readable code.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

var (
	// ErrDeviceNotFound covers both "device does not exist" and "device
	// belongs to someone else, or has the wrong role" — the API never
	// discloses which.
	ErrDeviceNotFound = newError(http.StatusNotFound, "device_not_found", "device not found")
	ErrInvalidCode    = newError(http.StatusBadRequest, "invalid_code", "pairing code is invalid or expired")
	ErrCrossUser      = newError(http.StatusForbidden, "forbidden", "pairing code belongs to a different user")
	ErrRateLimited    = newError(http.StatusTooManyRequests, "rate_limited", "too many pairing attempts, try again later")
)
