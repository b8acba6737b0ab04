package sessions

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"burrow/internal/dict"
	"burrow/internal/errors"
	"burrow/internal/request"
	"burrow/internal/response"
	"burrow/internal/router"
	"burrow/internal/status"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type storeFactory func(t *testing.T, opts ...Option) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, opts ...Option) Store {
			return NewMemoryStore(opts...)
		},
		"sqlite": func(t *testing.T, opts ...Option) Store {
			s, err := OpenSQLite(":memory:", nil, opts...)
			if err != nil {
				t.Fatalf("OpenSQLite() error = %v", err)
			}
			return s
		},
	}
}

func sampleSession(t *testing.T) *dict.Dict {
	t.Helper()
	d := dict.New()
	d.Set("user", "alice")
	prefs := dict.New()
	prefs.Set("theme", "dark")
	if err := d.AddDict("prefs", prefs, dict.FreeValue); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, errors.SessionNotFound) {
				t.Errorf("Get(missing) = %v, want SESSION_NOT_FOUND", err)
			}

			d := sampleSession(t)
			if err := s.Save(ctx, "abc", d); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			// the store holds its own copy
			d.Set("user", "mallory")

			got, err := s.Get(ctx, "abc")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if user, _ := got.Get("user"); user != "alice" {
				t.Errorf("user = %q, want alice", user)
			}
			prefs, err := got.GetDict("prefs")
			if err != nil {
				t.Fatalf("GetDict(prefs) error = %v", err)
			}
			if theme, _ := prefs.Get("theme"); theme != "dark" {
				t.Errorf("prefs.theme = %q", theme)
			}
			if keys := strings.Join(got.Keys(), ","); keys != "user,prefs" {
				t.Errorf("key order = %s", keys)
			}

			got.Set("user", "bob")
			if err := s.Save(ctx, "abc", got); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			again, _ := s.Get(ctx, "abc")
			if user, _ := again.Get("user"); user != "bob" {
				t.Errorf("user after update = %q", user)
			}

			if err := s.Remove(ctx, "abc"); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			if err := s.Remove(ctx, "abc"); err != nil {
				t.Errorf("second Remove() error = %v", err)
			}
			if _, err := s.Get(ctx, "abc"); !errors.Is(err, errors.SessionNotFound) {
				t.Errorf("Get after Remove = %v", err)
			}
		})
	}
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
			s := newStore(t, WithTTL(time.Minute), WithClock(clock.Now))
			defer s.Close()

			for _, id := range []string{"a", "b"} {
				if err := s.Save(ctx, id, sampleSession(t)); err != nil {
					t.Fatal(err)
				}
			}
			clock.Advance(30 * time.Second)
			if err := s.Save(ctx, "b", sampleSession(t)); err != nil {
				t.Fatal(err)
			}
			if err := s.Save(ctx, "c", sampleSession(t)); err != nil {
				t.Fatal(err)
			}

			clock.Advance(40 * time.Second)
			if _, err := s.Get(ctx, "a"); !errors.Is(err, errors.SessionNotFound) {
				t.Errorf("expired session returned %v", err)
			}
			if _, err := s.Get(ctx, "b"); err != nil {
				t.Errorf("refreshed session lost: %v", err)
			}

			clock.Advance(time.Minute)
			n, err := s.Purge(ctx)
			if err != nil {
				t.Fatalf("Purge() error = %v", err)
			}
			if n != 2 {
				t.Errorf("Purge() = %d, want 2", n)
			}
		})
	}
}

func TestStore_NoTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	s := NewMemoryStore(WithClock(clock.Now))
	if err := s.Save(ctx, "x", dict.New()); err != nil {
		t.Fatal(err)
	}
	clock.Advance(24 * 365 * time.Hour)
	if _, err := s.Get(ctx, "x"); err != nil {
		t.Errorf("session without TTL expired: %v", err)
	}
	if n, _ := s.Purge(ctx); n != 0 || s.Len() != 1 {
		t.Errorf("Purge removed %d, Len = %d", n, s.Len())
	}
}

func TestSQLiteStore_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "sessions.db")

	s, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := s.Save(ctx, "persist", sampleSession(t)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	d, err := reopened.Get(ctx, "persist")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if user, _ := d.Get("user"); user != "alice" {
		t.Errorf("user = %q", user)
	}
}

// countingStore records Save calls.
type countingStore struct {
	Store
	saves int
}

func (c *countingStore) Save(ctx context.Context, id string, d *dict.Dict) error {
	c.saves++
	return c.Store.Save(ctx, id, d)
}

func counterHandler() router.Handler {
	return router.SimpleFunc(func(req *request.Context, w *response.Writer) status.Status {
		s := req.Session()
		switch req.Query("op") {
		case "incr":
			n := len(s.GetOr("visits", ""))
			s.Set("visits", strings.Repeat("x", n+1))
		case "clear":
			for _, k := range s.Keys() {
				_ = s.Remove(k)
			}
		}
		_, _ = w.WriteString(s.GetOr("visits", ""))
		return status.Processed
	})
}

func run(t *testing.T, h router.Handler, cookie, op string) (*request.Context, *response.Writer, status.Status) {
	t.Helper()
	headers := dict.NewCaseInsensitive()
	if cookie != "" {
		headers.Set("Cookie", cookie)
	}
	query := dict.New()
	query.Set("op", op)
	req := request.New(context.Background(), "GET", "/", headers, query)
	w := response.New()
	st, err := h.Handle(req, w)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	return req, w, st
}

func TestManager_Wrap(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore()}
	m := NewManager(store, "", nil)
	h := m.Wrap(counterHandler())

	// a read-only first visit creates nothing
	_, w, st := run(t, h, "", "")
	if st != status.Processed || w.Header("Set-Cookie") != "" || store.saves != 0 {
		t.Fatalf("read-only visit: st=%v cookie=%q saves=%d", st, w.Header("Set-Cookie"), store.saves)
	}

	req, w, _ := run(t, h, "", "incr")
	setCookie := w.Header("Set-Cookie")
	if !strings.HasPrefix(setCookie, "sessionid="+req.SessionID()) || !strings.Contains(setCookie, "HttpOnly") {
		t.Fatalf("Set-Cookie = %q", setCookie)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
	cookie := "theme=dark; sessionid=" + req.SessionID()

	_, w, _ = run(t, h, cookie, "incr")
	if string(w.Body()) != "xx" {
		t.Errorf("second visit body = %q, want xx", w.Body())
	}
	if w.Header("Set-Cookie") != "" {
		t.Error("known session should not resend the cookie")
	}

	_, w, _ = run(t, h, cookie, "")
	if string(w.Body()) != "xx" || store.saves != 2 {
		t.Errorf("unmodified visit: body=%q saves=%d", w.Body(), store.saves)
	}

	_, w, _ = run(t, h, cookie, "clear")
	if !strings.Contains(w.Header("Set-Cookie"), "Max-Age=0") {
		t.Errorf("clearing should expire the cookie, got %q", w.Header("Set-Cookie"))
	}
	if _, err := store.Get(context.Background(), req.SessionID()); !errors.Is(err, errors.SessionNotFound) {
		t.Errorf("cleared session still stored: %v", err)
	}
}

func TestManager_UnknownCookie(t *testing.T) {
	m := NewManager(NewMemoryStore(), "sid", nil)
	h := m.Wrap(counterHandler())

	req, w, _ := run(t, h, "sid=stale", "incr")
	if req.SessionID() == "stale" {
		t.Error("unknown ids must not be adopted")
	}
	if !strings.HasPrefix(w.Header("Set-Cookie"), "sid=") {
		t.Errorf("Set-Cookie = %q", w.Header("Set-Cookie"))
	}
}
