package routefile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"burrow/internal/errors"
	"burrow/internal/request"
	"burrow/internal/response"
	"burrow/internal/router"
	"burrow/internal/status"
	"burrow/internal/testutil"
)

const sampleRoutes = `
[[route]]
pattern = ""
type = "static"
body = "index"

[[route]]
pattern = "^old/"
type = "redirect"
location = "/new/"
code = 301

[[route]]
pattern = "^files/"
type = "export"
dir = "%s"

[[route]]
pattern = "^.*$"
type = "static"
body = "fallback"
code = 404
`

func dispatch(r *router.Router, method, path string) (status.Status, *response.Writer) {
	req := request.New(context.Background(), method, path, nil, nil)
	w := response.New()
	return r.Dispatch(req, w), w
}

func writeRoutes(t *testing.T, content string) string {
	t.Helper()
	return testutil.TempFile(t, "routes.toml", content)
}

func TestLoadInto(t *testing.T) {
	public := t.TempDir()
	if err := os.WriteFile(filepath.Join(public, "app.css"), []byte("body{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(public, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	// TOML basic strings treat backslashes as escapes
	dir := filepath.ToSlash(public)
	path := writeRoutes(t, strings.Replace(sampleRoutes, "%s", dir, 1))

	r := router.New(nil)
	f, err := LoadInto(path, r)
	if err != nil {
		t.Fatalf("LoadInto() error = %v", err)
	}
	if len(f.Routes) != 4 || r.Len() != 4 {
		t.Fatalf("loaded %d routes, router has %d", len(f.Routes), r.Len())
	}
	if f.Routes[0].Code != 200 {
		t.Errorf("static default code = %d, want 200", f.Routes[0].Code)
	}
	r.Freeze()

	// the first match wins even when its handler declines
	tests := []struct {
		path     string
		wantSt   status.Status
		wantCode int
		wantBody string
		wantLoc  string
	}{
		{"/", status.Processed, 200, "index", ""},
		{"/old/page", status.Processed, 301, "", "/new/"},
		{"/files/app.css", status.Processed, 200, "body{}", ""},
		{"/files/sub", status.NotProcessed, 200, "", ""},
		{"/files/missing.css", status.NotProcessed, 200, "", ""},
		{"/files/../routes.toml", status.NotProcessed, 200, "", ""},
		{"/anything", status.Processed, 404, "fallback", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			st, w := dispatch(r, "GET", tt.path)
			if st != tt.wantSt {
				t.Fatalf("status = %v, want %v", st, tt.wantSt)
			}
			if w.Code() != tt.wantCode || string(w.Body()) != tt.wantBody {
				t.Errorf("response = %d %q, want %d %q", w.Code(), w.Body(), tt.wantCode, tt.wantBody)
			}
			if w.Header("Location") != tt.wantLoc {
				t.Errorf("Location = %q, want %q", w.Header("Location"), tt.wantLoc)
			}
		})
	}

	_, w := dispatch(r, "GET", "/files/app.css")
	if got := w.Header("content-type"); !strings.HasPrefix(got, "text/css") {
		t.Errorf("Content-Type = %q", got)
	}
	if n, ok := w.Length(); !ok || n != 6 {
		t.Errorf("Length = %d, %v", n, ok)
	}
}

func TestExport_Head(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	r := router.New(nil)
	r.MustAddRoute("", Export(dir))
	r.MustAddRoute("^", Export(dir))

	st, w := dispatch(r, "HEAD", "/a.txt")
	if st != status.Processed || len(w.Body()) != 0 {
		t.Errorf("HEAD = %v with body %q", st, w.Body())
	}
	if n, _ := w.Length(); n != 5 {
		t.Errorf("Length = %d, want 5", n)
	}

	if st, _ := dispatch(r, "GET", "/"); st != status.NotProcessed {
		t.Errorf("empty name = %v, want NotProcessed", st)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad toml", "[[route]\n", "parse route file"},
		{"unknown key", "[[route]]\npattern = \"a\"\ntype = \"static\"\ncolour = \"red\"\n", "colour"},
		{"missing type", "[[route]]\npattern = \"a\"\n", "type is required"},
		{"unknown type", "[[route]]\npattern = \"a\"\ntype = \"proxy\"\n", "unknown type"},
		{"redirect without location", "[[route]]\npattern = \"a\"\ntype = \"redirect\"\n", "location is required"},
		{"redirect with 200", "[[route]]\npattern = \"a\"\ntype = \"redirect\"\nlocation = \"/\"\ncode = 200\n", "not 3xx"},
		{"export without dir", "[[route]]\npattern = \"a\"\ntype = \"export\"\n", "dir is required"},
		{"bad code", "[[route]]\npattern = \"a\"\ntype = \"static\"\ncode = 42\n", "invalid code"},
		{"header case clash", "[[route]]\npattern = \"a\"\ntype = \"static\"\nheaders = { X-A = \"1\", x-a = \"2\" }\n", "headers"},
		{"nested header", "[[route]]\npattern = \"a\"\ntype = \"static\"\nheaders = { X-A = { b = \"1\" } }\n", "must be a string"},
		{"bad header name", "[[route]]\npattern = \"a\"\ntype = \"static\"\nheaders = { \"X A\" = \"1\" }\n", "invalid header name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, errors.ConfigInvalid) {
				t.Errorf("code = %s, want CONFIG_INVALID", errors.CodeOf(err))
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestApply_InvalidPattern(t *testing.T) {
	f, err := Parse([]byte("[[route]]\npattern = \"([a-z\"\ntype = \"static\"\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	r := router.New(nil)
	err = f.Apply(r)
	if !errors.Is(err, errors.InvalidPattern) {
		t.Errorf("Apply() = %v, want INVALID_PATTERN", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); !errors.Is(err, errors.ConfigInvalid) {
		t.Errorf("Load() = %v, want CONFIG_INVALID", err)
	}
}

func TestApply_Headers(t *testing.T) {
	f, err := Parse([]byte(`
[[route]]
pattern = "^a$"
type = "static"
body = "A"
headers = { Cache-Control = "no-store", X-Count = 3 }

[[route]]
pattern = "^b$"
type = "redirect"
location = "/a"
headers = { x-reason = "moved" }

[[route]]
pattern = "^c$"
type = "static"
body = "C"
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	r := router.New(nil)
	if err := f.Apply(r); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	tests := []struct {
		path    string
		headers map[string]string
	}{
		{"a", map[string]string{"cache-control": "no-store", "X-Count": "3"}},
		{"b", map[string]string{"X-Reason": "moved", "Location": "/a"}},
		{"c", map[string]string{"Cache-Control": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			st, w := dispatch(r, "GET", tt.path)
			if st != status.Processed {
				t.Fatalf("status = %v", st)
			}
			for k, want := range tt.headers {
				if got := w.Header(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
		})
	}

	// routes without headers keep the static fast path
	if kinds := r.Routes(); kinds[0].Kind != router.KindDynamic || kinds[2].Kind != router.KindStatic {
		t.Errorf("route kinds = %v", kinds)
	}
}
