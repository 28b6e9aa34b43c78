// Package httpresp builds outgoing HTTP/1.1 responses and serializes them
// to wire bytes. It absorbs and replaces the teacher's flat resp.Result
// type with a builder closer to the runtime's own response model, while
// keeping the teacher's constructor-per-status-family convention.
package httpresp

import (
	"errors"
	"fmt"
	"net/textproto"
	"strconv"

	"reactorhttp/internal/httpheader"
)

// Reason pairs a status code with its canonical reason phrase.
type Reason struct {
	Code   int
	Phrase string
}

var (
	OK200           = Reason{200, "Ok"}
	BadRequest400   = Reason{400, "Bad Request"}
	NotFound404     = Reason{404, "Not Found"}
	Conflict409     = Reason{409, "Conflict"}
	TooManyReqs429  = Reason{429, "Too Many Requests"}
	Internal500     = Reason{500, "Internal Server Error"}
	Unavailable503  = Reason{503, "Service Unavailable"}
)

// ErrIncomplete is returned by Builder.Build when no status was set.
var ErrIncomplete = errors.New("httpresp: missing status")

// Response is a fully built HTTP/1.1 response ready to serialize.
type Response struct {
	Code    int
	Phrase  string
	Version string
	Headers *httpheader.Map
	Body    []byte
}

// Bytes serializes the response to its wire form: status line, headers,
// blank line, body. Header names are written in canonical form
// ("Content-Type"), whatever case they are stored in.
func (r *Response) Bytes() []byte {
	buf := make([]byte, 0, 256+len(r.Body))
	buf = append(buf, fmt.Sprintf("%s %d %s\r\n", r.Version, r.Code, r.Phrase)...)
	r.Headers.Iterate(func(name, value string) {
		buf = append(buf, fmt.Sprintf("%s: %s\r\n", textproto.CanonicalMIMEHeaderKey(name), value)...)
	})
	buf = append(buf, "\r\n"...)
	buf = append(buf, r.Body...)
	return buf
}

// Builder assembles a Response. The zero value is not usable; start from
// NewBuilder or one of the status-family helpers (OK, BadRequest, ...).
type Builder struct {
	code    int
	phrase  string
	version string
	headers *httpheader.Map
	body    []byte
	haveStatus bool
}

// NewBuilder returns a builder defaulted to HTTP/1.1 with an empty header
// map and no status set.
func NewBuilder() *Builder {
	return &Builder{version: "HTTP/1.1", headers: httpheader.New()}
}

// OK, BadRequest, NotFound, Conflict, TooMany, Internal and Unavailable
// mirror the teacher's PlainOK/BadReq/NotFound/... constructor family,
// pre-seeding the matching status so handlers only need to attach a body.
func OK() *Builder          { return NewBuilder().Status(OK200) }
func BadRequest() *Builder  { return NewBuilder().Status(BadRequest400) }
func NotFound() *Builder    { return NewBuilder().Status(NotFound404) }
func Conflict() *Builder    { return NewBuilder().Status(Conflict409) }
func TooMany() *Builder     { return NewBuilder().Status(TooManyReqs429) }
func Internal() *Builder    { return NewBuilder().Status(Internal500) }
func Unavailable() *Builder { return NewBuilder().Status(Unavailable503) }

func (b *Builder) Status(r Reason) *Builder {
	b.code = r.Code
	b.phrase = r.Phrase
	b.haveStatus = true
	return b
}

func (b *Builder) Code(code int, phrase string) *Builder {
	b.code = code
	b.phrase = phrase
	b.haveStatus = true
	return b
}

func (b *Builder) Header(name, value string) *Builder {
	b.headers.Set(name, value)
	return b
}

func (b *Builder) ContentType(ct string) *Builder {
	return b.Header("Content-Type", ct)
}

// Body attaches body and sets Content-Length to match it.
func (b *Builder) Body(body []byte) *Builder {
	b.body = body
	b.headers.Set("Content-Length", strconv.Itoa(len(body)))
	return b
}

// PlainText is a convenience for
// Body([]byte(s)).ContentType("text/plain; charset=utf-8").
func (b *Builder) PlainText(s string) *Builder {
	return b.Body([]byte(s)).ContentType("text/plain; charset=utf-8")
}

// JSON is a convenience for Body(raw).ContentType("application/json").
// raw must already be serialized JSON; this package does no encoding.
func (b *Builder) JSON(raw []byte) *Builder {
	return b.Body(raw).ContentType("application/json")
}

func (b *Builder) Build() (*Response, error) {
	if !b.haveStatus {
		return nil, ErrIncomplete
	}
	return &Response{
		Code:    b.code,
		Phrase:  b.phrase,
		Version: b.version,
		Headers: b.headers,
		Body:    b.body,
	}, nil
}
