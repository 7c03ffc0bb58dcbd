package main

import "errors"

// Failure taxonomy for request handling. Lower layers wrap these with
// context via %w; classifyStatus maps them back to a response status at the
// connection boundary.
var (
	errBadRequest = errors.New("malformed request")
	errBadTarget  = errors.New("malformed request target")
	errForbidden  = errors.New("request target escapes the document root")
	errNotFound   = errors.New("no such resource")
)

func classifyStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, errBadTarget):
		return 400
	case errors.Is(err, errForbidden):
		return 403
	case errors.Is(err, errNotFound):
		return 404
	default:
		return 500
	}
}

// The supported method set is closed: anything not listed here falls
// through to a single 405 path.
func methodAllowed(method string) bool {
	switch method {
	case "GET", "HEAD":
		return true
	}
	return false
}
