package sessions

import (
	"bytes"
	"log/slog"
	"net/http"

	"burrow/internal/dict"
	"burrow/internal/errors"
	"burrow/internal/request"
	"burrow/internal/response"
	"burrow/internal/router"
	"burrow/internal/slogutil"
	"burrow/internal/status"
)

// DefaultCookieName is the cookie that carries the session id.
const DefaultCookieName = "sessionid"

// Manager attaches sessions to requests.
type Manager struct {
	store  Store
	cookie string
	logger *slog.Logger
}

// NewManager creates a manager over store. An empty cookie name means
// DefaultCookieName.
func NewManager(store Store, cookie string, logger *slog.Logger) *Manager {
	if cookie == "" {
		cookie = DefaultCookieName
	}
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Manager{store: store, cookie: cookie, logger: logger}
}

// Store returns the backing store.
func (m *Manager) Store() Store { return m.store }

// Wrap returns a handler that loads the client's session before inner runs
// and saves it afterwards when inner changed it. A session that inner
// empties is removed. The cookie is only sent once the session holds data.
func (m *Manager) Wrap(inner router.Handler) router.Handler {
	return router.HandlerFunc(func(req *request.Context, w *response.Writer) (status.Status, error) {
		ctx := req.Context()

		id := m.cookieValue(req)
		var (
			data  *dict.Dict
			fresh bool
		)
		if id != "" {
			d, err := m.store.Get(ctx, id)
			switch {
			case err == nil:
				data = d
			case errors.Is(err, errors.SessionNotFound):
				m.logger.Debug("Unknown session, starting a new one", "id", id)
			default:
				return status.InternalError, err
			}
		}
		if data == nil {
			id, data, fresh = NewID(), dict.New(), true
		}
		defer data.Destroy()

		before, err := data.ToJSON(false)
		if err != nil {
			return status.InternalError, err
		}

		req.SetSession(id, data)
		st, err := inner.Handle(req, w)
		if err != nil {
			return st, err
		}

		after, err := data.ToJSON(false)
		if err != nil {
			return status.InternalError, err
		}
		if bytes.Equal(before, after) {
			return st, nil
		}

		if data.Count() == 0 {
			if !fresh {
				if err := m.store.Remove(ctx, id); err != nil {
					return status.InternalError, err
				}
				if err := m.setCookie(w, id, -1); err != nil {
					return status.InternalError, err
				}
			}
			return st, nil
		}

		if err := m.store.Save(ctx, id, data); err != nil {
			return status.InternalError, err
		}
		if fresh {
			if err := m.setCookie(w, id, 0); err != nil {
				return status.InternalError, err
			}
		}
		return st, nil
	})
}

func (m *Manager) cookieValue(req *request.Context) string {
	raw := req.Header("cookie")
	if raw == "" {
		return ""
	}
	cookies, err := http.ParseCookie(raw)
	if err != nil {
		return ""
	}
	for _, c := range cookies {
		if c.Name == m.cookie {
			return c.Value
		}
	}
	return ""
}

func (m *Manager) setCookie(w *response.Writer, id string, maxAge int) error {
	c := &http.Cookie{
		Name:     m.cookie,
		Value:    id,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return w.SetHeader("Set-Cookie", c.String())
}
