package server

import (
	"net/http"

	"burrow/internal/request"
	"burrow/internal/response"
	"burrow/internal/status"
)

const (
	page404 = "<h1>404 - Not found</h1>"
	page403 = "<h1>403 - Forbidden</h1>"
	page500 = "<h1>500 - Internal error</h1> Check server logs or contact administrator."
	page501 = "<h1>501 - Not implemented</h1>"
)

// DefaultErrorHandler writes a short HTML page for st. No request or error
// detail is included.
func DefaultErrorHandler(st status.Status, _ *request.Context, w *response.Writer) {
	var page string
	switch st {
	case status.NotProcessed:
		page = page404
	case status.Forbidden:
		page = page403
	case status.NotImplemented:
		page = page501
	default:
		page = page500
	}

	code := st.HTTPCode()
	if code == 0 {
		code = http.StatusInternalServerError
	}
	w.SetCode(code)
	_ = w.SetHeader("Content-Type", "text/html; charset=utf-8")
	w.SetLength(int64(len(page)))
	_, _ = w.WriteString(page)
}
