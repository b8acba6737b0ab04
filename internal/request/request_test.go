package request

import (
	"net/http"
	"strings"
	"testing"

	"burrow/internal/dict"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		rawPath  string
		rawQuery string
		wantPath string
		query    map[string]string
		keys     string
	}{
		{"root", "/", "", "", map[string]string{}, ""},
		{"escaped path", "/a%20b/c", "", "a b/c", map[string]string{}, ""},
		{"query order", "/x", "b=2&a=1", "x", map[string]string{"a": "1", "b": "2"}, "b,a"},
		{"plus and escapes", "/x", "q=hello+world&s=%3Cb%3E", "x", map[string]string{"q": "hello world", "s": "<b>"}, "q,s"},
		{"repeat keeps last", "/x", "a=1&a=2", "x", map[string]string{"a": "2"}, "a"},
		{"no value", "/x", "flag", "x", map[string]string{"flag": ""}, "flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse(tt.rawPath, tt.rawQuery)
			if err != nil {
				t.Fatalf("Parse error = %v", err)
			}
			if req.Path() != tt.wantPath || req.FullPath() != tt.wantPath {
				t.Errorf("Path = %q, FullPath = %q, want %q", req.Path(), req.FullPath(), tt.wantPath)
			}
			for k, v := range tt.query {
				if got := req.Query(k); got != v {
					t.Errorf("Query(%q) = %q, want %q", k, got, v)
				}
			}
			if got := strings.Join(req.QueryDict().Keys(), ","); got != tt.keys {
				t.Errorf("query keys = %q, want %q", got, tt.keys)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := Parse("/%zz", ""); err == nil {
		t.Error("malformed path should fail")
	}
	if _, err := Parse("/", "a=%zz"); err == nil {
		t.Error("malformed query should fail")
	}
}

func TestAdvancePath(t *testing.T) {
	req := New(nil, "GET", "/api/v1/users", nil, nil)

	prev := req.AdvancePath(len("api/"))
	if req.Path() != "v1/users" {
		t.Errorf("Path after advance = %q", req.Path())
	}
	if req.FullPath() != "api/v1/users" {
		t.Errorf("FullPath changed: %q", req.FullPath())
	}

	req.AdvancePath(100)
	if req.Path() != "" {
		t.Errorf("advance past end should clamp, got %q", req.Path())
	}

	req.ResetPath(prev)
	if req.Path() != "api/v1/users" {
		t.Errorf("Path after reset = %q", req.Path())
	}
}

func TestHeadersFrom(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "text/html")
	h.Add("Accept", "text/html")
	h.Add("Accept", "*/*")

	req := New(nil, "POST", "/", HeadersFrom(h), nil)

	if got := req.Header("content-type"); got != "text/html" {
		t.Errorf("Header(content-type) = %q", got)
	}
	if got := req.Header("ACCEPT"); got != "text/html, */*" {
		t.Errorf("Header(ACCEPT) = %q", got)
	}
	if got := req.Header("Missing"); got != "" {
		t.Errorf("missing header = %q", got)
	}
	if !req.Headers().IsCaseInsensitive() {
		t.Error("headers must be case-insensitive")
	}
}

func TestBodyAndSession(t *testing.T) {
	req := New(nil, "POST", "/upload", nil, nil)
	req.AppendBody([]byte("part1-"), false)
	if req.BodyComplete() {
		t.Error("body should be incomplete")
	}
	req.AppendBody([]byte("part2"), true)
	if string(req.Body()) != "part1-part2" || !req.BodyComplete() {
		t.Errorf("Body = %q, complete = %v", req.Body(), req.BodyComplete())
	}

	if req.Session() != nil {
		t.Error("no session expected before SetSession")
	}
	s := dict.New()
	req.SetSession("abc", s)
	if req.Session() != s || req.SessionID() != "abc" {
		t.Error("SetSession not reflected")
	}
	if req.Context() == nil {
		t.Error("Context() should default to Background")
	}
}
