package httpserver

import (
	"strings"

	"github.com/badu/httpserver/wire"
)

// Methods is a bitmask of HTTP methods, the Go rendition of the original's
// QFlags<QHttpServerRequest::Method> (SPEC_FULL.md §4, "multiple method
// registration per rule").
type Methods uint16

const (
	MethodGet Methods = 1 << iota
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
	MethodConnect
	MethodOptions
	MethodTrace
	MethodPatch

	MethodAll = MethodGet | MethodHead | MethodPost | MethodPut | MethodDelete |
		MethodConnect | MethodOptions | MethodTrace | MethodPatch
)

var wireMethodBit = map[wire.Method]Methods{
	wire.MethodGet:     MethodGet,
	wire.MethodHead:    MethodHead,
	wire.MethodPost:    MethodPost,
	wire.MethodPut:     MethodPut,
	wire.MethodDelete:  MethodDelete,
	wire.MethodConnect: MethodConnect,
	wire.MethodOptions: MethodOptions,
	wire.MethodTrace:   MethodTrace,
	wire.MethodPatch:   MethodPatch,
}

// methodsOf maps a parsed wire.Method to its bitmask bit; MethodUnknown
// never matches any registered mask.
func methodsOf(m wire.Method) Methods {
	return wireMethodBit[m]
}

// String lists the set bits as their wire tokens, comma-separated, mostly
// useful for the "routes" CLI subcommand and log lines.
func (m Methods) String() string {
	var names []string
	for wm, bit := range wireMethodBit {
		if m&bit != 0 {
			names = append(names, wm.String())
		}
	}
	return strings.Join(names, ",")
}
