// Package httpreq is the Request value object and builder handed from
// the parsed wire form to route handlers.
package httpreq

import (
	"errors"
	"fmt"

	"reactorhttp/internal/httpheader"
	"reactorhttp/internal/httpparse"
)

// ErrIncomplete is returned by Builder.Build when a required field
// (method, path, or version) was never set.
var ErrIncomplete = errors.New("httpreq: missing required field")

// Request is a fully parsed HTTP request. Its fields are not changed
// after construction except Params, which the router fills in.
type Request struct {
	Method  string
	Path    string
	Version string
	Headers *httpheader.Map
	Body    []byte

	// Params holds the parameters bound by the router: named path
	// segments (pattern "/jobs/:id" on "/jobs/42" gives "id" -> "42")
	// plus query-string parameters whose names no path segment bound.
	// Nil until the router dispatches the request to a matching route.
	Params map[string]string
}

// BodyString returns Body decoded as UTF-8, or "" if Body is empty.
func (r *Request) BodyString() string { return string(r.Body) }

func (r *Request) String() string {
	s := fmt.Sprintf("%s %s %s\r\n", r.Method, r.Path, r.Version)
	r.Headers.Iterate(func(name, value string) {
		s += fmt.Sprintf("%s: %s\r\n", name, value)
	})
	s += "\r\n" + string(r.Body)
	return s
}

// FromParsed converts a httpparse.Parsed result into a Request, the way a
// connection's pipeline does on each complete read.
func FromParsed(p *httpparse.Parsed) *Request {
	return &Request{
		Method:  p.Method,
		Path:    p.Path,
		Version: p.Version,
		Headers: httpheader.FromParsed(p.Headers),
		Body:    p.Body,
	}
}

// Builder constructs a Request field by field; used by tests and by any
// caller (not the wire parser) assembling a request programmatically.
type Builder struct {
	method, path, version string
	headers               *httpheader.Map
	body                  []byte
	haveMethod             bool
	havePath               bool
	haveVersion            bool
}

// NewBuilder returns an empty Builder with a fresh header map.
func NewBuilder() *Builder {
	return &Builder{headers: httpheader.New()}
}

func (b *Builder) Method(m string) *Builder { b.method = m; b.haveMethod = true; return b }
func (b *Builder) Path(p string) *Builder   { b.path = p; b.havePath = true; return b }
func (b *Builder) Version(v string) *Builder {
	b.version = v
	b.haveVersion = true
	return b
}
func (b *Builder) Headers(h *httpheader.Map) *Builder { b.headers = h; return b }
func (b *Builder) Body(body []byte) *Builder          { b.body = body; return b }

// Build assembles the Request, failing with ErrIncomplete if method,
// path, or version was never set.
func (b *Builder) Build() (*Request, error) {
	if !b.haveMethod || !b.havePath || !b.haveVersion {
		return nil, ErrIncomplete
	}
	return &Request{
		Method:  b.method,
		Path:    b.path,
		Version: b.version,
		Headers: b.headers,
		Body:    b.body,
	}, nil
}
