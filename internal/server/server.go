// Package server connects net/http to the router. It turns each
// *http.Request into a request.Context, dispatches it, and applies the
// returned status to the connection.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"burrow/internal/dict"
	"burrow/internal/errors"
	"burrow/internal/request"
	"burrow/internal/response"
	"burrow/internal/router"
	"burrow/internal/slogutil"
	"burrow/internal/status"
)

// Options configures the adapter and the underlying http.Server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxBodyBytes limits request bodies. Zero means no limit.
	MaxBodyBytes int64
	// MaxResponseBytes limits response bodies. Zero means no limit.
	MaxResponseBytes int
	// ReadChunkBytes is how much body is read before each dispatch.
	ReadChunkBytes int
	// KeepAlive is the default policy for Processed and NotProcessed.
	KeepAlive bool

	Compression CompressionOptions
}

// CompressionOptions controls gzip of response bodies.
type CompressionOptions struct {
	Enabled  bool
	MinBytes int
}

// DefaultOptions returns the settings used when none are given.
func DefaultOptions() Options {
	return Options{
		Addr:           ":8080",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxBodyBytes:   10 << 20,
		ReadChunkBytes: 64 << 10,
		KeepAlive:      true,
		Compression:    CompressionOptions{Enabled: true, MinBytes: 1024},
	}
}

// ErrorHandler writes the page for an error status into w. w has been
// reset before it is called.
type ErrorHandler func(st status.Status, req *request.Context, w *response.Writer)

// Server owns one root router and serves it over HTTP.
type Server struct {
	root         *router.Router
	opts         Options
	logger       *slog.Logger
	errorHandler ErrorHandler
	handler      http.Handler
	server       *http.Server
}

// New creates a server for root. The router is frozen: no routes can be
// added once requests may be served.
func New(root *router.Router, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if opts.ReadChunkBytes <= 0 {
		opts.ReadChunkBytes = DefaultOptions().ReadChunkBytes
	}
	root.Freeze()

	s := &Server{
		root:         root,
		opts:         opts,
		logger:       logger,
		errorHandler: DefaultErrorHandler,
	}
	s.handler = s.applyMiddleware(http.HandlerFunc(s.serve))
	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.handler,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return s
}

// Router returns the root router.
func (s *Server) Router() *router.Router { return s.root }

// SetErrorHandler replaces the error page writer. Nil restores the default.
func (s *Server) SetErrorHandler(h ErrorHandler) {
	if h == nil {
		h = DefaultErrorHandler
	}
	s.errorHandler = h
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.opts.Addr, "routes", s.root.Len())

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. Keep-alive stays enabled
// on the listener; each response decides whether its connection closes.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server shut down successfully")
	return nil
}

// ServeHTTP runs the full middleware chain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// last applied runs first
	handler = RecoveryMiddleware(s.logger)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	return handler
}

// serve is one request/response cycle.
func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	headers := request.HeadersFrom(r.Header)
	if r.Host != "" {
		headers.Set("Host", r.Host)
	}
	resp := response.New(
		response.WithMaxBody(s.opts.MaxResponseBytes),
		response.WithHijacker(http.NewResponseController(w).Hijack),
	)

	query, err := request.ParseQuery(r.URL.RawQuery)
	if err != nil {
		s.logger.Debug("Malformed query", "query", r.URL.RawQuery, "error", err.Error())
		req := request.New(r.Context(), r.Method, r.URL.Path, headers, nil)
		s.apply(status.NotProcessed, req, resp, w, r)
		return
	}
	req := request.New(r.Context(), r.Method, r.URL.Path, headers, query)
	req.SetRemoteAddr(r.RemoteAddr)

	body := r.Body
	if body == nil {
		body = http.NoBody
	}
	if s.opts.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, body, s.opts.MaxBodyBytes)
	}

	st, err := s.dispatch(req, resp, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.logger.Warn("Request body too large", "limit", tooLarge.Limit, "path", r.URL.Path)
			http.Error(w, response.CodeDescription(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		s.logger.Error("Reading request body failed", "path", r.URL.Path, "error", err.Error())
		st = status.InternalError
	}

	s.apply(st, req, resp, w, r)
}

// dispatch feeds the body to the router chunk by chunk while handlers
// answer NeedMoreData.
func (s *Server) dispatch(req *request.Context, resp *response.Writer, body io.Reader) (status.Status, error) {
	buf := make([]byte, s.opts.ReadChunkBytes)
	if err := readChunk(req, body, buf); err != nil {
		return status.InternalError, err
	}

	for {
		st := s.root.Dispatch(req, resp)
		if st != status.NeedMoreData {
			return st, nil
		}
		if req.BodyComplete() {
			s.logger.Warn("Handler wants more data after the body ended",
				"path", req.FullPath(), "code", errors.HandlerFailure)
			return status.InternalError, nil
		}
		resp.Reset()
		if err := readChunk(req, body, buf); err != nil {
			return status.InternalError, err
		}
	}
}

func readChunk(req *request.Context, body io.Reader, buf []byte) error {
	n, err := io.ReadFull(body, buf)
	switch {
	case err == nil:
		req.AppendBody(buf[:n], false)
		return nil
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		req.AppendBody(buf[:n], true)
		return nil
	default:
		return err
	}
}

// apply maps the handler's status onto the HTTP exchange.
func (s *Server) apply(st status.Status, req *request.Context, resp *response.Writer, w http.ResponseWriter, r *http.Request) {
	closeConn := !s.opts.KeepAlive

	if st.Action() == status.ActionUpgrade {
		if resp.Hijacked() {
			// the handler owns the connection now
			return
		}
		s.logger.Error("Handler returned Websocket without taking the connection",
			"path", req.FullPath(), "code", errors.HandlerFailure)
		st = status.InternalError
	}

	switch st.Action() {
	case status.ActionKeepAlive:
		closeConn = false
	case status.ActionClose:
		closeConn = true
	case status.ActionErrorPage:
		resp.Reset()
		s.errorHandler(st, req, resp)
		// negative statuses also end the connection
		if st < 0 {
			closeConn = true
		}
	}

	s.flush(resp, w, r, closeConn)
}

func (s *Server) flush(resp *response.Writer, w http.ResponseWriter, r *http.Request, closeConn bool) {
	h := w.Header()
	resp.Headers().Walk(func(key string, v dict.Value, _ bool) bool {
		h.Set(key, v.String())
		return true
	})
	if closeConn {
		h.Set("Connection", "close")
	}

	payload := resp.Body()
	if s.shouldCompress(resp, r, len(payload)) {
		compressed, err := gzipBytes(payload)
		if err != nil {
			s.logger.Warn("Compressing response failed", "error", err.Error())
		} else {
			payload = compressed
			h.Set("Content-Encoding", "gzip")
			h.Add("Vary", "Accept-Encoding")
		}
	}

	length := int64(len(payload))
	if declared, ok := resp.Length(); ok && r.Method == http.MethodHead {
		length = declared
	}
	if bodyAllowed(resp.Code()) {
		h.Set("Content-Length", strconv.FormatInt(length, 10))
	}

	w.WriteHeader(resp.Code())
	if r.Method == http.MethodHead || !bodyAllowed(resp.Code()) {
		return
	}
	if _, err := w.Write(payload); err != nil {
		s.logger.Debug("Writing response failed", "error", err.Error())
	}
}

func bodyAllowed(code int) bool {
	return code >= 200 && code != http.StatusNoContent && code != http.StatusNotModified
}
