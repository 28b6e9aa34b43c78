// Package router matches an incoming method+path against registered
// routes, binding ":name" path segments into httpreq.Request.Params. It
// replaces the teacher's flat switch-statement Dispatch with a small
// trie-free linear matcher: the route count here is small enough that a
// segment-by-segment comparison outperforms building and maintaining a
// trie. Routes are tried in registration order and the first match wins,
// so where two patterns match the same path the earlier one is used.
package router

import (
	"strings"

	"reactorhttp/internal/httpreq"
	"reactorhttp/internal/httpresp"
)

// Handler answers one matched request.
type Handler func(req *httpreq.Request) *httpresp.Response

type route struct {
	method   string
	segments []string // "" literal is never a segment; "/" -> [] (root)
	handler  Handler
}

// Router matches method+path against a registered route set.
type Router struct {
	routes []route
}

// New returns an empty Router.
func New() *Router {
	return &Router{}
}

// Handle registers handler for method+pattern. pattern segments prefixed
// with ":" bind as path parameters, e.g. "/jobs/:id".
func (r *Router) Handle(method, pattern string, handler Handler) {
	r.routes = append(r.routes, route{
		method:   method,
		segments: splitPath(pattern),
		handler:  handler,
	})
}

// Dispatch finds the first registered route matching method+path and
// runs its handler, binding any ":param" segments into req.Params. If no
// route matches by path, it returns 404; if the path matches but no
// route matches the method, it returns 405.
func (r *Router) Dispatch(req *httpreq.Request) *httpresp.Response {
	path, query := splitTarget(req.Path)
	pathSegs := splitPath(path)

	pathMatched := false
	for _, rt := range r.routes {
		params, ok := matchSegments(rt.segments, pathSegs)
		if !ok {
			continue
		}
		pathMatched = true
		if rt.method != req.Method {
			continue
		}
		if req.Params == nil {
			req.Params = make(map[string]string, len(params))
		}
		for k, v := range params {
			req.Params[k] = v
		}
		for k, v := range parseQuery(query) {
			if _, exists := req.Params[k]; !exists {
				req.Params[k] = v
			}
		}
		return rt.handler(req)
	}

	if pathMatched {
		resp, _ := httpresp.NewBuilder().Code(405, "Method Not Allowed").PlainText("method not allowed\n").Build()
		return resp
	}
	resp, _ := httpresp.NotFound().PlainText("route not found\n").Build()
	return resp
}

func splitTarget(target string) (path, query string) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i], target[i+1:]
	}
	return target, ""
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, path []string) (map[string]string, bool) {
	if len(pattern) != len(path) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range pattern {
		if strings.HasPrefix(seg, ":") {
			if params == nil {
				params = make(map[string]string)
			}
			params[seg[1:]] = path[i]
			continue
		}
		if seg != path[i] {
			return nil, false
		}
	}
	if params == nil {
		params = map[string]string{}
	}
	return params, true
}

func parseQuery(q string) map[string]string {
	out := map[string]string{}
	if q == "" {
		return out
	}
	for _, pair := range strings.Split(q, "&") {
		if pair == "" {
			continue
		}
		if i := strings.IndexByte(pair, '='); i >= 0 {
			out[unescape(pair[:i])] = unescape(pair[i+1:])
		} else {
			out[unescape(pair)] = ""
		}
	}
	return out
}

// unescape decodes %XX and "+" the way a query string's application/
// x-www-form-urlencoded values are conventionally encoded.
func unescape(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if v, ok := hexByte(s[i+1], s[i+2]); ok {
				b.WriteByte(v)
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func hexByte(hi, lo byte) (byte, bool) {
	h, ok1 := hexDigit(hi)
	l, ok2 := hexDigit(lo)
	if !ok1 || !ok2 {
		return 0, false
	}
	return h<<4 | l, true
}

func hexDigit(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	default:
		return 0, false
	}
}
