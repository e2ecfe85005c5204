package httpserver

import "github.com/badu/httpserver/header"

// Response is a fully materialized response value: handlers that don't take
// an owned Responder return one of these instead (spec.md §4.6,
// "send_response applies the AfterRequestChain ... to an in-flight Response").
type Response struct {
	StatusCode int
	Header     *header.Header
	Body       []byte
}

// NewResponse returns a Response with body and status code, and an empty
// header multimap ready for AfterRequestChain transforms to mutate.
func NewResponse(statusCode int, body []byte) Response {
	return Response{StatusCode: statusCode, Header: header.New(4), Body: body}
}

// TextResponse is a convenience constructor mirroring the "hello" example in
// spec.md §8: body as plain text, Content-Type set accordingly.
func TextResponse(statusCode int, body string) Response {
	r := NewResponse(statusCode, []byte(body))
	r.Header.Set(header.ContentType, "text/plain")
	return r
}

// Clone returns a deep copy: the header multimap and the body bytes are
// copied, so the result shares no storage with r.
func (r Response) Clone() Response {
	out := r
	out.Header = r.Header.Clone()
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return out
}
