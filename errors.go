package httpserver

import "errors"

// Sentinel errors surfaced across the package, in the style of
// badu-http's types_request.go package-level ErrMissingFile/ErrNoCookie.
var (
	// ErrResponderReused is returned by a Responder's write methods once
	// the Responder has been released (spec.md §3: "move-only ... at most
	// one Responder per Stream at a time"). Before release, a second status
	// line after a sent response fails with ErrWriteOrder instead.
	ErrResponderReused = errors.New("httpserver: responder already used")

	// ErrWriteOrder is returned when a Responder method is called out of
	// the status-line -> headers -> body order spec.md §4.3 requires.
	ErrWriteOrder = errors.New("httpserver: responder writes out of order")

	// ErrHijacked names the state of a Stream whose socket has been
	// detached during a WebSocket upgrade hand-off. No function in this
	// package returns it: after a hand-off the Stream stops serving.
	ErrHijacked = errors.New("httpserver: stream already detached")

	// ErrRouteSignature is returned by Router.Route when a handler's
	// parameter shape violates spec.md §4.4's ordering rules.
	ErrRouteSignature = errors.New("httpserver: invalid handler signature")

	// ErrArgCountMismatch is returned by Router.Route when the pattern's
	// <arg> count does not equal the handler's capturable parameter count.
	ErrArgCountMismatch = errors.New("httpserver: pattern argument count does not match handler parameters")

	// ErrNoConverter is returned by Router.Route when a capturable
	// parameter's type has no registered converter.
	ErrNoConverter = errors.New("httpserver: no converter registered for parameter type")
)
