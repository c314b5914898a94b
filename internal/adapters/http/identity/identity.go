// Package identity derives the per-caller client id from the request cookie,
// minting and attaching a new one when the caller has none.
package identity

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/clickrank/pkg/metrics"
)

// Defaults for the identity cookie.
const (
	DefaultCookieName = "cid"
	DefaultMaxAge     = 365 * 24 * time.Hour
	idPrefix          = "u_"
	idHexLen          = 12
)

// Resolver resolves client ids. It never touches the store.
type Resolver struct {
	cookieName string
	maxAge     time.Duration
	secure     bool
	path       string
	mint       func() string
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithCookieName sets the cookie carrying the id.
func WithCookieName(name string) Option {
	return func(r *Resolver) {
		if name != "" {
			r.cookieName = name
		}
	}
}

// WithMaxAge sets the cookie lifetime.
func WithMaxAge(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.maxAge = d
		}
	}
}

// WithSecure toggles the Secure cookie attribute.
func WithSecure(secure bool) Option {
	return func(r *Resolver) {
		r.secure = secure
	}
}

// WithMinter replaces the id generator.
func WithMinter(mint func() string) Option {
	return func(r *Resolver) {
		if mint != nil {
			r.mint = mint
		}
	}
}

// NewResolver returns a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		cookieName: DefaultCookieName,
		maxAge:     DefaultMaxAge,
		secure:     true,
		path:       "/",
		mint:       NewClientID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewClientID returns "u_" followed by 12 hex characters of a random UUID.
func NewClientID() string {
	return idPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:idHexLen]
}

// Resolve returns the caller's id. A present cookie is returned unchanged;
// otherwise a new id is minted and set on w.
func (r *Resolver) Resolve(w http.ResponseWriter, req *http.Request) string {
	if c, err := req.Cookie(r.cookieName); err == nil && c.Value != "" {
		if v, err := url.QueryUnescape(c.Value); err == nil && v != "" {
			return v
		}
		return c.Value
	}

	id := r.mint()
	http.SetCookie(w, &http.Cookie{
		Name:     r.cookieName,
		Value:    url.QueryEscape(id),
		Path:     r.path,
		MaxAge:   int(r.maxAge / time.Second),
		Secure:   r.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	metrics.RecordIdentityMinted()
	return id
}
