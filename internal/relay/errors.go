package relay

import (
	"errors"
	"net/http"
)

// HTTPError carries the HTTP status an authorization or delivery failure
// maps to, for the HTTP command endpoints (send_sms, make_call, get_sims).
type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string { return e.Message }

func newHTTPError(status int, code, message string) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message}
}

var (
	// ErrNoClientDevice: the caller owns no device of role client.
	ErrNoClientDevice = newHTTPError(http.StatusBadRequest, "no_client_device", "you must register a client device first")
	// ErrHostNotYours: the target host does not exist or isn't owned by the caller.
	ErrHostNotYours = newHTTPError(http.StatusForbidden, "host_not_yours", "host device not found")
	// ErrNotPaired: no Pairing exists between the caller's client and the target host.
	ErrNotPaired = newHTTPError(http.StatusForbidden, "not_paired", "client is not paired with this host")
)

// ErrDeliveryFailed indicates a live session's channel send failed. The
// relay algorithm does not fall back to queueing on this path; a live but
// broken channel is surfaced to the caller (502 at the HTTP boundary)
// instead of being treated like an offline host.
var ErrDeliveryFailed = errors.New("relay: delivery to live session failed")
