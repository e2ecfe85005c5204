package httpserver

import (
	"reflect"
	"regexp"
	"strings"
)

const argPlaceholder = "<arg>"

var (
	requestPtrType   = reflect.TypeOf((*Request)(nil))
	responderPtrType = reflect.TypeOf((*Responder)(nil))
	responseType     = reflect.TypeOf(Response{})
)

// Rule is one compiled (path regex, method mask, handler) triple, the Go
// rendition of QHttpServerRouterRule (spec.md §3).
type Rule struct {
	pattern      string
	regex        *regexp.Regexp
	methods      Methods
	handler      reflect.Value
	converters   []Converter
	hasRequest   bool
	hasResponder bool
}

// Router holds an ordered rule list and the converter table used to compile
// patterns (spec.md §3, §4.4).
type Router struct {
	rules      []*Rule
	converters *ConverterTable
}

func newRouter() *Router {
	return &Router{converters: newConverterTable()}
}

// RegisterConverter installs a converter for typ, returning the fragment it
// displaced (SPEC_FULL.md §4).
func (rt *Router) RegisterConverter(typ reflect.Type, fragment string, conv ConvertFunc) string {
	return rt.converters.RegisterConverter(typ, fragment, conv)
}

// Route analyzes handler's signature per spec.md §4.4's handler-parameter
// protocol, compiles pattern against the converter table, and appends the
// resulting Rule. A shape or arity violation returns a non-nil error
// instead of registering anything — the Go equivalent of the original's
// "compile-time / registration-time error".
func (rt *Router) Route(pattern string, methods Methods, handler interface{}) error {
	hv := reflect.ValueOf(handler)
	if hv.Kind() != reflect.Func {
		return ErrRouteSignature
	}
	ht := hv.Type()

	tail := ht.NumIn()
	hasResponder := tail > 0 && ht.In(tail-1) == responderPtrType
	if hasResponder {
		tail--
	}
	hasRequest := tail > 0 && ht.In(tail-1) == requestPtrType
	if hasRequest {
		tail--
	}
	for i := 0; i < tail; i++ {
		// A *Request or *Responder anywhere but the trailing one-or-two
		// parameters violates spec.md §4.4's ordering rule.
		if ht.In(i) == requestPtrType || ht.In(i) == responderPtrType {
			return ErrRouteSignature
		}
	}
	if hasResponder {
		if ht.NumOut() != 0 {
			return ErrRouteSignature
		}
	} else {
		if ht.NumOut() != 1 || ht.Out(0) != responseType {
			return ErrRouteSignature
		}
	}

	argCount := strings.Count(pattern, argPlaceholder)
	if argCount != tail {
		return ErrArgCountMismatch
	}

	var b strings.Builder
	b.WriteByte('^')
	rest := pattern
	converters := make([]Converter, tail)
	for i := 0; i < tail; i++ {
		idx := strings.Index(rest, argPlaceholder)
		b.WriteString(regexp.QuoteMeta(rest[:idx]))
		conv, ok := rt.converters.lookup(ht.In(i))
		if !ok {
			return ErrNoConverter
		}
		b.WriteString(conv.Fragment)
		converters[i] = conv
		rest = rest[idx+len(argPlaceholder):]
	}
	b.WriteString(regexp.QuoteMeta(rest))
	b.WriteByte('$')

	re, err := regexp.Compile(b.String())
	if err != nil {
		return err
	}

	rt.rules = append(rt.rules, &Rule{
		pattern:      pattern,
		regex:        re,
		methods:      methods,
		handler:      hv,
		converters:   converters,
		hasRequest:   hasRequest,
		hasResponder: hasResponder,
	})
	return nil
}

// dispatchResult reports what happened when Router.dispatch tried to match
// and invoke a rule for one Request.
type dispatchResult struct {
	matched       bool
	tookResponder bool
	response      Response
}

// dispatch tries each rule in registration order (spec.md §4.4,
// "first-match-wins"). When a matched rule's captures fail conversion, this
// falls through to the next rule rather than aborting with a 400 — the
// documented resolution of spec.md §9's open question (see DESIGN.md).
func (rt *Router) dispatch(req *Request, resp *Responder) dispatchResult {
	method := methodsOf(req.Method)
	path := req.Path()
	for _, rule := range rt.rules {
		if rule.methods&method == 0 {
			continue
		}
		m := rule.regex.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		args, ok := rule.bindArgs(m[1:])
		if !ok {
			continue
		}
		if rule.hasRequest {
			args = append(args, reflect.ValueOf(req))
		}
		if rule.hasResponder {
			args = append(args, reflect.ValueOf(resp))
		}
		out := rule.handler.Call(args)
		if rule.hasResponder {
			return dispatchResult{matched: true, tookResponder: true}
		}
		return dispatchResult{matched: true, response: out[0].Interface().(Response)}
	}
	return dispatchResult{}
}

// accepts reports whether some rule's method mask and path regex match req,
// without invoking anything — used by the upgrade hand-off's "consult the
// router first" policy (spec.md §4.5, SPEC_FULL.md §1).
func (rt *Router) accepts(req *Request) bool {
	method := methodsOf(req.Method)
	path := req.Path()
	for _, rule := range rt.rules {
		if rule.methods&method == 0 {
			continue
		}
		if rule.regex.MatchString(path) {
			return true
		}
	}
	return false
}

func (r *Rule) bindArgs(captures []string) ([]reflect.Value, bool) {
	args := make([]reflect.Value, 0, len(captures)+2)
	for i, raw := range captures {
		v, err := r.converters[i].Convert(raw)
		if err != nil {
			return nil, false
		}
		args = append(args, v)
	}
	return args, true
}
