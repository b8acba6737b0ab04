// Package response implements the buffered response a handler fills in.
// Nothing reaches the client until the connection layer flushes it.
package response

import (
	"bufio"
	"bytes"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"

	"burrow/internal/dict"
	"burrow/internal/errors"
)

// ErrBodyLimit is returned by Write when the body reached MaxBody. The
// returned count says how much of the buffer was kept.
var ErrBodyLimit = stderrors.New("response body limit reached")

// ErrNotHijackable is returned by Hijack when the connection layer cannot
// hand over the connection.
var ErrNotHijackable = stderrors.New("connection cannot be hijacked")

// HijackFunc hands over the underlying connection.
type HijackFunc func() (net.Conn, *bufio.ReadWriter, error)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Writer accumulates status code, headers and body for one request.
type Writer struct {
	code     int
	headers  *dict.Dict
	body     bytes.Buffer
	length   int64
	maxBody  int
	hijack   HijackFunc
	hijacked bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithMaxBody bounds the body at n bytes. Zero means unbounded.
func WithMaxBody(n int) Option {
	return func(w *Writer) { w.maxBody = n }
}

// WithHijacker lets handlers that return status.Websocket take the
// connection.
func WithHijacker(fn HijackFunc) Option {
	return func(w *Writer) { w.hijack = fn }
}

// New returns a Writer with code 200, no headers and no length.
func New(opts ...Option) *Writer {
	w := &Writer{
		code:    http.StatusOK,
		headers: dict.NewCaseInsensitive(),
		length:  -1,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write appends p to the body. Past MaxBody only the part that fits is
// kept and ErrBodyLimit is returned with the kept count.
func (w *Writer) Write(p []byte) (int, error) {
	if w.maxBody > 0 {
		room := w.maxBody - w.body.Len()
		if room < len(p) {
			if room > 0 {
				w.body.Write(p[:room])
			}
			return max(room, 0), ErrBodyLimit
		}
	}
	return w.body.Write(p)
}

// WriteString is Write for strings.
func (w *Writer) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Printf formats into the body.
func (w *Writer) Printf(format string, args ...any) (int, error) {
	return fmt.Fprintf(w, format, args...)
}

// WriteEscaped writes text with & < > " ' replaced by HTML entities.
func (w *Writer) WriteEscaped(text string) (int, error) {
	return w.WriteString(Escape(text))
}

// Escape returns text with & < > " ' replaced by HTML entities.
func Escape(text string) string {
	return htmlEscaper.Replace(text)
}

// SetHeader sets a response header; the last value set wins. Names and
// values are checked against RFC 7230 so they cannot split the response.
func (w *Writer) SetHeader(key, value string) error {
	if !httpguts.ValidHeaderFieldName(key) {
		return errors.Newf(errors.InvalidHeader, "invalid header name %q", key)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return errors.Newf(errors.InvalidHeader, "invalid value for header %q", key)
	}
	w.headers.Set(key, value)
	return nil
}

// DelHeader removes a header if present.
func (w *Writer) DelHeader(key string) {
	_ = w.headers.Remove(key)
}

// SetCode sets the HTTP status code.
func (w *Writer) SetCode(code int) { w.code = code }

// SetLength declares the content length. A negative value clears it.
func (w *Writer) SetLength(n int64) {
	if n < 0 {
		n = -1
	}
	w.length = n
}

// Code returns the status code.
func (w *Writer) Code() int { return w.code }

// Headers returns the header dictionary.
func (w *Writer) Headers() *dict.Dict { return w.headers }

// Header returns one header value, or "".
func (w *Writer) Header(key string) string { return w.headers.GetOr(key, "") }

// Body returns the buffered body.
func (w *Writer) Body() []byte { return w.body.Bytes() }

// Length returns the declared content length and whether one was set.
func (w *Writer) Length() (int64, bool) { return w.length, w.length >= 0 }

// Reset drops body, headers and length and restores code 200, so an error
// page can replace whatever a failed handler wrote.
func (w *Writer) Reset() {
	w.body.Reset()
	w.headers.Destroy()
	w.code = http.StatusOK
	w.length = -1
}

// Hijack takes over the connection. Only valid for handlers that then
// return status.Websocket.
func (w *Writer) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if w.hijack == nil {
		return nil, nil, ErrNotHijackable
	}
	conn, rw, err := w.hijack()
	if err == nil {
		w.hijacked = true
	}
	return conn, rw, err
}

// Hijacked reports whether Hijack succeeded.
func (w *Writer) Hijacked() bool { return w.hijacked }

// CodeDescription returns the reason phrase for an HTTP status code.
func CodeDescription(code int) string {
	if text := http.StatusText(code); text != "" {
		return strings.ToUpper(text)
	}
	switch {
	case code >= 500:
		return "INTERNAL ERROR"
	case code >= 400:
		return "BAD REQUEST"
	case code >= 300:
		return "REDIRECT"
	default:
		return "OK"
	}
}
