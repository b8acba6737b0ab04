// Package request holds the per-request view handlers read from: the path
// being routed, headers, query parameters, the body read so far and the
// session attached by the sessions handler.
package request

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"burrow/internal/dict"
	"burrow/internal/errors"
)

// Context is the request as seen by one handler invocation. Paths are kept
// without the leading slash, so the root is the empty string.
//
// Handlers must treat the header and query dictionaries as read-only; call
// Dup on them to get a mutable copy.
type Context struct {
	ctx        context.Context
	method     string
	fullPath   string
	offset     int
	headers    *dict.Dict
	query      *dict.Dict
	body       []byte
	complete   bool
	remoteAddr string

	sessionID string
	session   *dict.Dict
}

// New builds a Context. Nil dictionaries are replaced by empty ones; the
// header dictionary is expected to be case-insensitive.
func New(ctx context.Context, method, path string, headers, query *dict.Dict) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if headers == nil {
		headers = dict.NewCaseInsensitive()
	}
	if query == nil {
		query = dict.New()
	}
	return &Context{
		ctx:      ctx,
		method:   method,
		fullPath: strings.TrimPrefix(path, "/"),
		headers:  headers,
		query:    query,
		complete: true,
	}
}

// Parse decodes an escaped path and raw query string into a GET Context.
// Query parameters keep their order; a repeated name keeps its last value.
func Parse(rawPath, rawQuery string) (*Context, error) {
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, errors.New(errors.NotFound, "malformed path", err)
	}
	query, err := ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}
	return New(context.Background(), "GET", path, nil, query), nil
}

// ParseQuery decodes a=1&b=2 into an owned dictionary.
func ParseQuery(rawQuery string) (*dict.Dict, error) {
	q := dict.New()
	for _, part := range strings.FieldsFunc(rawQuery, func(r rune) bool { return r == '&' || r == ';' }) {
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, errors.New(errors.NotFound, "malformed query key", err)
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, errors.New(errors.NotFound, "malformed query value for "+key, err)
		}
		if err := q.Add(key, val, dict.DupAll|dict.Replace); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// HeadersFrom copies an http.Header-shaped map into a case-insensitive owned
// dictionary. Repeated values are joined with ", ". Names are added in
// sorted order since maps have none.
func HeadersFrom(h map[string][]string) *dict.Dict {
	d := dict.NewCaseInsensitive()
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_ = d.Add(name, strings.Join(h[name], ", "), dict.DupAll|dict.Replace)
	}
	return d
}

// Context returns the request's context.Context.
func (c *Context) Context() context.Context { return c.ctx }

// Method returns the HTTP method.
func (c *Context) Method() string { return c.method }

// FullPath returns the whole request path.
func (c *Context) FullPath() string { return c.fullPath }

// Path returns the part of the path not yet consumed by enclosing routers.
func (c *Context) Path() string { return c.fullPath[c.offset:] }

// AdvancePath consumes n more bytes of the remaining path. It returns the
// previous offset so callers can restore it with ResetPath.
func (c *Context) AdvancePath(n int) int {
	prev := c.offset
	c.offset = min(c.offset+n, len(c.fullPath))
	return prev
}

// ResetPath restores an offset returned by AdvancePath.
func (c *Context) ResetPath(offset int) {
	c.offset = max(0, min(offset, len(c.fullPath)))
}

// Header returns a header value, or "" when absent.
func (c *Context) Header(key string) string { return c.headers.GetOr(key, "") }

// Headers returns the header dictionary.
func (c *Context) Headers() *dict.Dict { return c.headers }

// Query returns a query parameter, or "" when absent.
func (c *Context) Query(key string) string { return c.query.GetOr(key, "") }

// QueryDict returns the query dictionary.
func (c *Context) QueryDict() *dict.Dict { return c.query }

// RemoteAddr returns the peer address, if known.
func (c *Context) RemoteAddr() string { return c.remoteAddr }

// SetRemoteAddr records the peer address.
func (c *Context) SetRemoteAddr(addr string) { c.remoteAddr = addr }

// Body returns the body bytes received so far.
func (c *Context) Body() []byte { return c.body }

// BodyComplete reports whether the whole body has been received. A handler
// that needs more returns status.NeedMoreData while this is false.
func (c *Context) BodyComplete() bool { return c.complete }

// AppendBody adds a chunk to the body. complete marks the final chunk.
func (c *Context) AppendBody(chunk []byte, complete bool) {
	c.body = append(c.body, chunk...)
	c.complete = complete
}

// Session returns the session dictionary, or nil when no session handler
// ran for this request.
func (c *Context) Session() *dict.Dict { return c.session }

// SessionID returns the id of the attached session.
func (c *Context) SessionID() string { return c.sessionID }

// SetSession attaches a session. Used by the sessions handler.
func (c *Context) SetSession(id string, d *dict.Dict) {
	c.sessionID = id
	c.session = d
}
