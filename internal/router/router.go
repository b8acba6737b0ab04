// Package router dispatches requests to handlers by matching the remaining
// request path against regular expressions in registration order.
//
// Routes are added during setup and the router is then frozen. A frozen
// router is never written to again, so any number of goroutines may call
// Dispatch on it without locking.
package router

import (
	"fmt"
	"log/slog"
	"regexp"
	"runtime/debug"

	"burrow/internal/errors"
	"burrow/internal/request"
	"burrow/internal/response"
	"burrow/internal/slogutil"
	"burrow/internal/status"
)

// Kind says how a route was registered.
type Kind int

const (
	// KindDynamic routes run a user handler.
	KindDynamic Kind = iota
	// KindStatic routes write a fixed body.
	KindStatic
	// KindRouter routes delegate to a nested router.
	KindRouter
)

func (k Kind) String() string {
	switch k {
	case KindDynamic:
		return "dynamic"
	case KindStatic:
		return "static"
	case KindRouter:
		return "router"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// RouteInfo describes one registered route.
type RouteInfo struct {
	Pattern string `json:"pattern"`
	Kind    Kind   `json:"kind"`
	Depth   int    `json:"depth"`
}

type route struct {
	pattern string
	re      *regexp.Regexp // nil for the empty-path sentinel
	handler Handler
	kind    Kind
}

// match reports where pattern matched path.
func (rt *route) match(path string) (start, end int, ok bool) {
	if rt.re == nil {
		return 0, 0, path == ""
	}
	loc := rt.re.FindStringIndex(path)
	if loc == nil {
		return 0, 0, false
	}
	return loc[0], loc[1], true
}

// Router is an ordered list of routes. The first route whose pattern
// matches wins.
type Router struct {
	routes []route
	frozen bool
	logger *slog.Logger
}

// New creates an empty router. A nil logger discards output.
func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Router{logger: logger}
}

func (r *Router) add(pattern string, h Handler, kind Kind) error {
	if r.frozen {
		return errors.Newf(errors.RouterFrozen, "cannot add route %q: router is frozen", pattern)
	}
	if h == nil {
		return errors.Newf(errors.InternalError, "route %q has no handler", pattern)
	}
	rt := route{pattern: pattern, handler: h, kind: kind}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return errors.New(errors.InvalidPattern, fmt.Sprintf("route pattern %q does not compile", pattern), err).
				WithDetails(map[string]string{"pattern": pattern})
		}
		rt.re = re
	}
	r.routes = append(r.routes, rt)
	return nil
}

// AddRoute appends a route for pattern. The empty pattern matches only an
// empty remaining path.
func (r *Router) AddRoute(pattern string, h Handler) error {
	return r.add(pattern, h, KindDynamic)
}

// MustAddRoute is AddRoute that panics on error.
func (r *Router) MustAddRoute(pattern string, h Handler) {
	if err := r.AddRoute(pattern, h); err != nil {
		panic(err)
	}
}

// AddStaticRoute appends a route that answers with body and code.
func (r *Router) AddStaticRoute(pattern, body string, code int) error {
	return r.add(pattern, Static(body, code), KindStatic)
}

// AddRouter appends a nested router. When the match starts at the
// beginning of the remaining path, the nested router sees only what follows
// the match.
func (r *Router) AddRouter(pattern string, sub *Router) error {
	if sub == nil {
		return errors.Newf(errors.InternalError, "route %q has no router", pattern)
	}
	if sub == r {
		return errors.Newf(errors.InvalidPattern, "route %q: router cannot contain itself", pattern)
	}
	return r.add(pattern, sub, KindRouter)
}

// Freeze ends registration for r and every nested router.
func (r *Router) Freeze() {
	r.frozen = true
	for _, rt := range r.routes {
		if sub, ok := rt.handler.(*Router); ok {
			sub.Freeze()
		}
	}
}

// Frozen reports whether Freeze was called.
func (r *Router) Frozen() bool { return r.frozen }

// Len returns the number of top-level routes.
func (r *Router) Len() int { return len(r.routes) }

// Routes lists every route, nested routers flattened after their parent
// entry with Depth incremented.
func (r *Router) Routes() []RouteInfo {
	var out []RouteInfo
	r.collect(&out, 0)
	return out
}

func (r *Router) collect(out *[]RouteInfo, depth int) {
	for _, rt := range r.routes {
		*out = append(*out, RouteInfo{Pattern: rt.pattern, Kind: rt.kind, Depth: depth})
		if sub, ok := rt.handler.(*Router); ok {
			sub.collect(out, depth+1)
		}
	}
}

// Match returns the route that would serve path, following nested routers.
// It fails with NO_ROUTE_MATCHED when nothing matches.
func (r *Router) Match(path string) ([]RouteInfo, error) {
	var chain []RouteInfo
	cur, depth := r, 0
	for {
		rt, end, ok := cur.find(path)
		if !ok {
			return chain, errors.Newf(errors.NoRouteMatched, "no route matches %q", path)
		}
		chain = append(chain, RouteInfo{Pattern: rt.pattern, Kind: rt.kind, Depth: depth})
		sub, isRouter := rt.handler.(*Router)
		if !isRouter {
			return chain, nil
		}
		path = path[end:]
		cur, depth = sub, depth+1
	}
}

// find returns the first matching route and the offset the path advances
// to when it is taken.
func (r *Router) find(path string) (*route, int, bool) {
	for i := range r.routes {
		rt := &r.routes[i]
		start, end, ok := rt.match(path)
		if !ok {
			continue
		}
		if start != 0 {
			end = 0
		}
		return rt, end, true
	}
	return nil, 0, false
}

// Handle lets a Router be used as a nested handler.
func (r *Router) Handle(req *request.Context, w *response.Writer) (status.Status, error) {
	return r.Invoke(req, w)
}

// Invoke runs the first matching route and returns its status and error.
// Panics are recovered into a HANDLER_FAILURE error. No match returns
// NotProcessed with a nil error.
func (r *Router) Invoke(req *request.Context, w *response.Writer) (status.Status, error) {
	rt, end, ok := r.find(req.Path())
	if !ok {
		return status.NotProcessed, nil
	}

	prev := req.AdvancePath(end)
	defer req.ResetPath(prev)

	st, err := call(rt, req, w)
	if err != nil {
		// nested routers and recovered panics already carry HANDLER_FAILURE
		if errors.Is(err, errors.HandlerFailure) {
			return status.InternalError, err
		}
		return status.InternalError, errors.New(errors.HandlerFailure,
			fmt.Sprintf("handler for %q failed", rt.pattern), err)
	}
	if !st.Known() {
		return status.InternalError, errors.Newf(errors.HandlerFailure,
			"handler for %q returned unknown status %d", rt.pattern, int(st))
	}
	return st, nil
}

// call runs the handler, converting a panic into an error.
func call(rt *route, req *request.Context, w *response.Writer) (st status.Status, err error) {
	defer func() {
		if p := recover(); p != nil {
			st = status.InternalError
			err = errors.New(errors.HandlerFailure, fmt.Sprintf("handler for %q panicked: %v", rt.pattern, p), nil).
				WithDetails(map[string]string{"stack": string(debug.Stack())})
		}
	}()
	return rt.handler.Handle(req, w)
}

// Dispatch runs Invoke and reduces failures to status.InternalError. The
// failure is logged; nothing about it is written to w.
func (r *Router) Dispatch(req *request.Context, w *response.Writer) status.Status {
	st, err := r.Invoke(req, w)
	if err != nil {
		attrs := []any{
			"method", req.Method(),
			"path", req.FullPath(),
			"code", errors.CodeOf(err),
			"error", err.Error(),
		}
		var e *errors.Error
		if errors.As(err, &e) {
			if d, ok := e.Details.(map[string]string); ok && d["stack"] != "" {
				attrs = append(attrs, "stack", d["stack"])
			}
		}
		r.logger.Error("Request handler failed", attrs...)
		return status.InternalError
	}
	if st == status.NotProcessed {
		r.logger.Debug("No route matched", "path", req.FullPath())
	}
	return st
}
