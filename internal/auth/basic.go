package auth

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strings"

	"burrow/internal/errors"
	"burrow/internal/request"
	"burrow/internal/response"
	"burrow/internal/router"
	"burrow/internal/slogutil"
	"burrow/internal/status"
)

// UnauthorizedPage is the body sent with a 401 challenge.
const UnauthorizedPage = "<h1>Unauthorized access</h1>"

// Option configures Basic.
type Option func(*basic)

// WithLimiter throttles clients that keep failing.
func WithLimiter(l *Limiter) Option {
	return func(b *basic) { b.limiter = l }
}

// WithLogger sets the logger for failed attempts.
func WithLogger(logger *slog.Logger) Option {
	return func(b *basic) { b.logger = logger }
}

type basic struct {
	realm   string
	users   Users
	inner   router.Handler
	limiter *Limiter
	logger  *slog.Logger
}

// Basic wraps inner with HTTP basic authentication. Requests without valid
// credentials get a 401 challenge for realm and inner does not run. A
// client refused by the limiter gets status.Forbidden.
func Basic(realm string, users Users, inner router.Handler, opts ...Option) router.Handler {
	b := &basic{realm: realm, users: users, inner: inner}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slogutil.NewDiscardLogger()
	}
	return b
}

// Restrict runs requests whose remaining path matches pattern through Basic
// and passes the rest straight to inner. The path is not advanced.
func Restrict(pattern, realm string, users Users, inner router.Handler, opts ...Option) (router.Handler, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.New(errors.InvalidPattern, fmt.Sprintf("auth pattern %q does not compile", pattern), err)
	}
	guarded := Basic(realm, users, inner, opts...)
	return router.HandlerFunc(func(req *request.Context, w *response.Writer) (status.Status, error) {
		if re.MatchString(req.Path()) {
			return guarded.Handle(req, w)
		}
		return inner.Handle(req, w)
	}), nil
}

func (b *basic) Handle(req *request.Context, w *response.Writer) (status.Status, error) {
	client := clientKey(req.RemoteAddr())
	if blocked, retry := b.limiter.Blocked(client); blocked {
		b.logger.Warn("Login throttled", "client", client, "retryAfterSeconds", retry)
		return status.Forbidden, nil
	}

	user, password, ok := parseBasic(req.Header("Authorization"))
	if ok && b.users.Verify(user, password) {
		b.limiter.Reset(client)
		return b.inner.Handle(req, w)
	}
	if ok {
		b.limiter.Fail(client)
		b.logger.Info("Login failed", "user", user, "client", client, "path", req.FullPath())
	}
	return b.challenge(w)
}

func (b *basic) challenge(w *response.Writer) (status.Status, error) {
	realm := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(b.realm)
	if err := w.SetHeader("WWW-Authenticate", `Basic realm="`+realm+`"`); err != nil {
		return status.InternalError, err
	}
	w.SetCode(401)
	w.SetLength(int64(len(UnauthorizedPage)))
	if _, err := w.WriteString(UnauthorizedPage); err != nil {
		return status.InternalError, err
	}
	return status.Processed, nil
}

// parseBasic extracts credentials from an Authorization header.
func parseBasic(header string) (user, password string, ok bool) {
	const prefix = "basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	user, password, ok = strings.Cut(string(decoded), ":")
	if !ok || user == "" {
		return "", "", false
	}
	return user, password, true
}

// clientKey reduces host:port to the host.
func clientKey(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
