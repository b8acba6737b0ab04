// Package sessions keeps per-client dictionaries between requests.
//
// A Store maps opaque session ids to dictionaries. Stores hand out copies:
// changing a dictionary returned by Get has no effect until it is passed
// back to Save.
package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"burrow/internal/dict"
	"burrow/internal/errors"
)

// Store persists session dictionaries.
type Store interface {
	// Get returns a copy of the session, or a SESSION_NOT_FOUND error when
	// the id is unknown or expired.
	Get(ctx context.Context, id string) (*dict.Dict, error)
	// Save stores a copy of d under id and restarts its TTL.
	Save(ctx context.Context, id string, d *dict.Dict) error
	// Remove deletes the session. Unknown ids are not an error.
	Remove(ctx context.Context, id string) error
	// Purge deletes expired sessions and reports how many went.
	Purge(ctx context.Context) (int, error)
	Close() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL sets how long an untouched session lives. Zero keeps sessions
// forever.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// expiry returns the expiry instant for a save at now, zero for never.
func (o options) expiry() time.Time {
	if o.ttl <= 0 {
		return time.Time{}
	}
	return o.now().Add(o.ttl)
}

func (o options) expired(at time.Time) bool {
	return !at.IsZero() && !o.now().Before(at)
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

func notFound(id string) error {
	return errors.Newf(errors.SessionNotFound, "session %q not found", id)
}
