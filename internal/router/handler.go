package router

import (
	"burrow/internal/request"
	"burrow/internal/response"
	"burrow/internal/status"
)

// Handler serves one request. A non-nil error is logged and turned into
// status.InternalError by the router.
type Handler interface {
	Handle(req *request.Context, w *response.Writer) (status.Status, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(req *request.Context, w *response.Writer) (status.Status, error)

// Handle calls f.
func (f HandlerFunc) Handle(req *request.Context, w *response.Writer) (status.Status, error) {
	return f(req, w)
}

// SimpleFunc adapts a function that cannot fail.
type SimpleFunc func(req *request.Context, w *response.Writer) status.Status

// Handle calls f.
func (f SimpleFunc) Handle(req *request.Context, w *response.Writer) (status.Status, error) {
	return f(req, w), nil
}

// Static returns a handler that writes body with code and ignores the
// request.
func Static(body string, code int) Handler {
	return SimpleFunc(func(_ *request.Context, w *response.Writer) status.Status {
		w.SetCode(code)
		w.SetLength(int64(len(body)))
		_, _ = w.WriteString(body)
		return status.Processed
	})
}

// Redirect returns a handler that sends the client to location.
func Redirect(location string, code int) Handler {
	return HandlerFunc(func(_ *request.Context, w *response.Writer) (status.Status, error) {
		if err := w.SetHeader("Location", location); err != nil {
			return status.InternalError, err
		}
		w.SetCode(code)
		w.SetLength(0)
		return status.Processed, nil
	})
}
