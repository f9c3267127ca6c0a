package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/store"
)

// DefaultCookieName is the cookie carrying the login token.
const DefaultCookieName = "auth-token"

// Data is the session context resolved for a request: the verified token
// payload, the persisted session row when one exists, and the tenant the
// request is scoped to after applying the switched-tenant override.
type Data struct {
	Payload  auth.TokenPayload
	Session  *Session
	TenantID string
}

// Resolver turns a raw login token into session Data.
type Resolver struct {
	codec      *auth.Codec
	sessions   *Store
	cookieName string
}

// NewResolver builds a resolver. cookieName defaults to DefaultCookieName.
func NewResolver(codec *auth.Codec, sessions *Store, cookieName string) *Resolver {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Resolver{codec: codec, sessions: sessions, cookieName: cookieName}
}

// CookieName returns the login cookie's name.
func (r *Resolver) CookieName() string { return r.cookieName }

// TokenFromRequest extracts the login token from the auth cookie. The cookie
// is the only accepted carrier; tokens in headers, query strings, or bodies
// are ignored. Empty means no token was sent.
func (r *Resolver) TokenFromRequest(req *http.Request) string {
	if c, err := req.Cookie(r.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// Resolve verifies the token and loads its session. Token failures surface as
// auth.ErrInvalidToken with nil Data. A token whose session row no longer
// exists still resolves, with a nil Session and an empty TenantID, so callers
// can decide how strictly to treat it. A store read failure returns the
// verified payload alongside the error; callers choosing to fail open keep
// working from the token alone.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Data, error) {
	payload, err := r.codec.Verify(token)
	if err != nil {
		return nil, err
	}
	data := &Data{Payload: *payload}
	if payload.SessionID == "" {
		return data, nil
	}
	sess, err := r.sessions.Get(ctx, payload.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return data, nil
		}
		return data, err
	}
	data.Session = sess
	data.TenantID = sess.EffectiveTenantID()
	return data, nil
}
