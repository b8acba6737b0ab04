// Package routefile loads a TOML route table into a router.
//
// A route file is an ordered list of [[route]] tables:
//
//	[[route]]
//	pattern = "^$"
//	type = "static"
//	body = "<h1>Welcome</h1>"
//
//	[[route]]
//	pattern = "^old/"
//	type = "redirect"
//	location = "/new/"
//	code = 301
//
//	[[route]]
//	pattern = "^static/"
//	type = "export"
//	dir = "./public"
//	headers = { Cache-Control = "max-age=3600" }
//
// Routes are registered in file order, so the first matching entry wins.
package routefile

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"burrow/internal/dict"
	"burrow/internal/errors"
	"burrow/internal/request"
	"burrow/internal/response"
	"burrow/internal/router"
	"burrow/internal/status"
)

// Route types.
const (
	TypeStatic   = "static"
	TypeRedirect = "redirect"
	TypeExport   = "export"
)

// File is a decoded route table.
type File struct {
	Routes []Route `toml:"route"`
}

// Route is one [[route]] entry. Which fields apply depends on Type.
type Route struct {
	Pattern  string `toml:"pattern"`
	Type     string `toml:"type"`
	Body     string `toml:"body"`     // static
	Location string `toml:"location"` // redirect
	Dir      string `toml:"dir"`      // export
	Code     int    `toml:"code"`     // static and redirect

	// Headers are set on every response the route produces.
	Headers map[string]any `toml:"headers"`

	headers *dict.Dict
}

// Load reads and validates the route file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "read route file", err)
	}
	return Parse(data)
}

// Parse decodes and validates a route table. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	f := &File{}
	md, err := toml.Decode(string(data), f)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "parse route file", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Newf(errors.ConfigInvalid, "unknown keys in route file: %s", strings.Join(keys, ", "))
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks every entry and fills in default codes. Pattern syntax is
// checked when the routes are applied.
func (f *File) Validate() error {
	for i := range f.Routes {
		r := &f.Routes[i]
		fail := func(msg string) error {
			return errors.Newf(errors.ConfigInvalid, "route[%d] (%q): %s", i, r.Pattern, msg)
		}
		switch r.Type {
		case TypeStatic:
			if r.Code == 0 {
				r.Code = http.StatusOK
			}
		case TypeRedirect:
			if r.Location == "" {
				return fail("location is required")
			}
			if r.Code == 0 {
				r.Code = http.StatusFound
			}
			if r.Code < 300 || r.Code > 399 {
				return fail(fmt.Sprintf("redirect code %d is not 3xx", r.Code))
			}
		case TypeExport:
			if r.Dir == "" {
				return fail("dir is required")
			}
		case "":
			return fail("type is required")
		default:
			return fail(fmt.Sprintf("unknown type %q", r.Type))
		}
		if r.Code != 0 && (r.Code < 100 || r.Code > 599) {
			return fail(fmt.Sprintf("invalid code %d", r.Code))
		}
		if err := r.compileHeaders(); err != nil {
			return errors.New(errors.ConfigInvalid, fmt.Sprintf("route[%d] (%q)", i, r.Pattern), err)
		}
	}
	return nil
}

func (r *Route) compileHeaders() error {
	r.headers = nil
	if len(r.Headers) == 0 {
		return nil
	}
	d, err := dict.FromMap(r.Headers, dict.CaseInsensitive())
	if err != nil {
		return fmt.Errorf("headers: %w", err)
	}
	check := response.New()
	for key, value := range d.All() {
		text, ok := value.Str()
		if !ok {
			return fmt.Errorf("header %q must be a string", key)
		}
		if err := check.SetHeader(key, text); err != nil {
			return fmt.Errorf("header %q: %w", key, err)
		}
	}
	r.headers = d
	return nil
}

// withHeaders sets headers before running inner.
func withHeaders(headers *dict.Dict, inner router.Handler) router.Handler {
	return router.HandlerFunc(func(req *request.Context, w *response.Writer) (status.Status, error) {
		for key, value := range headers.All() {
			text, _ := value.Str()
			if err := w.SetHeader(key, text); err != nil {
				return status.InternalError, err
			}
		}
		return inner.Handle(req, w)
	})
}

// Apply registers the routes on r in file order. An uncompilable pattern
// stops registration with an INVALID_PATTERN error.
func (f *File) Apply(r *router.Router) error {
	for _, rt := range f.Routes {
		if rt.Type == TypeStatic && rt.headers == nil {
			if err := r.AddStaticRoute(rt.Pattern, rt.Body, rt.Code); err != nil {
				return err
			}
			continue
		}

		var h router.Handler
		switch rt.Type {
		case TypeStatic:
			h = router.Static(rt.Body, rt.Code)
		case TypeRedirect:
			h = router.Redirect(rt.Location, rt.Code)
		case TypeExport:
			h = Export(rt.Dir)
		default:
			return errors.Newf(errors.ConfigInvalid, "route %q: unknown type %q", rt.Pattern, rt.Type)
		}
		if rt.headers != nil {
			h = withHeaders(rt.headers, h)
		}
		if err := r.AddRoute(rt.Pattern, h); err != nil {
			return err
		}
	}
	return nil
}

// LoadInto loads the file at path and applies it to r.
func LoadInto(path string, r *router.Router) (*File, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := f.Apply(r); err != nil {
		return nil, err
	}
	return f, nil
}
