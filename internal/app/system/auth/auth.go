// Package auth manages admin console sessions: the signed cookie, the
// per-device session token stored on the user document, and the
// middleware that guards API routes.
package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	isAuthKey = "is_authenticated"
	userIDKey = "user_id"
	tokenKey  = "session_token"
)

// SessionUser is the signed-in admin injected into r.Context().
type SessionUser struct {
	ID        string
	Name      string
	Email     string
	Role      string
	AdminRole string
	Token     string
}

// ObjectID returns the user's id, or NilObjectID if malformed.
func (u *SessionUser) ObjectID() primitive.ObjectID {
	if u == nil {
		return primitive.NilObjectID
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID
	}
	return id
}

// UserFetcher resolves a session cookie to a live user. It returns
// (nil, nil) when the user no longer exists, is not Active, or no longer
// holds token, so revocation takes effect on the next request.
type UserFetcher interface {
	FetchSessionUser(ctx context.Context, id primitive.ObjectID, token string) (*SessionUser, error)
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the signed-in user, if any.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithUser returns r with u in its context. Used by LoadSessionUser and by
// handler tests.
func WithUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// SessionManager owns the cookie store and the user lookup.
type SessionManager struct {
	store       *sessions.CookieStore
	name        string
	idleTimeout time.Duration
	fetcher     UserFetcher
	log         *zap.Logger
}

// NewSessionManager builds the cookie store. secure marks cookies Secure
// with SameSite=None; otherwise SameSite=Lax for local http.
func NewSessionManager(sessionKey, name, domain string, idleTimeout time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "fleetdesk-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("idle_timeout", idleTimeout))

	return &SessionManager{store: store, name: name, idleTimeout: idleTimeout, log: logger}, nil
}

// SetUserFetcher installs the lookup LoadSessionUser uses.
func (m *SessionManager) SetUserFetcher(f UserFetcher) { m.fetcher = f }

// Store exposes the underlying cookie store.
func (m *SessionManager) Store() *sessions.CookieStore { return m.store }

// IdleTimeout is how long a token may go unused before cleanup removes it.
func (m *SessionManager) IdleTimeout() time.Duration { return m.idleTimeout }

// GetSession returns the named session. On a decode error a fresh session
// is still returned alongside the error.
func (m *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return m.store.Get(r, m.name)
}

// NewToken returns a random 64-hex-char session token.
func NewToken() string {
	return hex.EncodeToString(securecookie.GenerateRandomKey(32))
}

// SignIn writes an authenticated cookie for userID carrying token.
func (m *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID, token string) error {
	sess, err := m.GetSession(r)
	if err != nil {
		m.logDecodeError(err)
	}
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = userID.Hex()
	sess.Values[tokenKey] = token
	return sess.Save(r, w)
}

// SignOut expires the cookie and returns the token it carried, if any.
func (m *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) (string, error) {
	sess, err := m.GetSession(r)
	if err != nil {
		m.logDecodeError(err)
	}
	token, _ := sess.Values[tokenKey].(string)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options = &sessions.Options{}
	if opts := m.store.Options; opts != nil {
		*sess.Options = *opts
	}
	sess.Options.MaxAge = -1
	return token, sess.Save(r, w)
}

func (m *SessionManager) logDecodeError(err error) {
	var scErr securecookie.Error
	if errors.As(err, &scErr) && scErr.IsDecode() {
		m.log.Warn("session cookie invalid, using fresh session", zap.Error(err))
		return
	}
	m.log.Error("session store error, using fresh session", zap.Error(err))
}

// LoadSessionUser injects the signed-in user into the request context.
// A missing, revoked, or inactive session leaves the request anonymous.
func (m *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.GetSession(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth || m.fetcher == nil {
			next.ServeHTTP(w, r)
			return
		}
		id, err := primitive.ObjectIDFromHex(getString(sess, userIDKey))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		u, err := m.fetcher.FetchSessionUser(ctx, id, getString(sess, tokenKey))
		cancel()
		if err != nil {
			m.log.Error("load session user", zap.Error(err), zap.String("user_id", id.Hex()))
		}
		if u != nil {
			r = WithUser(r, u)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn rejects anonymous requests with a 401 envelope.
func (m *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			respond.Error(w, r, m.log, apierr.New(apierr.CodeUnauthorized, "Unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows only users whose role is one of allowed
// (case-insensitive): 401 when anonymous, 403 otherwise.
func (m *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	return m.require(func(u *SessionUser) string { return u.Role }, allowed)
}

// RequireAdminRole allows only admins whose adminRole is one of allowed.
func (m *SessionManager) RequireAdminRole(allowed ...string) func(http.Handler) http.Handler {
	return m.require(func(u *SessionUser) string { return u.AdminRole }, allowed)
}

func (m *SessionManager) require(field func(*SessionUser) string, allowed []string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				respond.Error(w, r, m.log, apierr.New(apierr.CodeUnauthorized, "Unauthorized"))
				return
			}
			if _, has := set[strings.ToLower(field(u))]; !has {
				respond.Error(w, r, m.log, apierr.Forbidden("Forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}
