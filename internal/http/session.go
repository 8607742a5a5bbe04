package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"budgetmail/internal/core"
	applog "budgetmail/internal/log"
	"budgetmail/internal/storage"
)

// SessionCookie carries the signed session token.
const SessionCookie = "budgetmail_session"

type userKey struct{}

// currentUser returns the logged-in user stored by loadUser, if any.
func currentUser(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userKey{}).(core.User)
	return u, ok
}

func (s *Server) setSession(w http.ResponseWriter, token string) {
	ttl := s.deps.Sessions.SessionTTL()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// loadUser resolves the session cookie, when present, and puts the user in
// the request context. Invalid sessions are cleared but never rejected here.
func (s *Server) loadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := s.deps.Sessions.ParseSession(c.Value)
		if err != nil {
			s.clearSession(w)
			next.ServeHTTP(w, r)
			return
		}

		u, err := s.lookupUser(r.Context(), id)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				s.logger.ErrorContext(r.Context(), "Session user lookup failed",
					applog.FieldUserID, id, "error", err)
			}
			s.clearSession(w)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
	})
}

// requireUser rejects anonymous requests: API paths get a JSON 401, pages
// are redirected to the login form.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := currentUser(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") || r.Method != http.MethodGet {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}

func (s *Server) lookupUser(ctx context.Context, id int64) (core.User, error) {
	key := strconv.FormatInt(id, 10)
	if u, ok := s.userCache.Get(key); ok {
		return u, nil
	}
	u, err := s.deps.Users.GetUserByID(ctx, id)
	if err != nil {
		return core.User{}, err
	}
	s.userCache.Set(key, u)
	return u, nil
}

func (s *Server) forgetUser(id int64) {
	s.userCache.Delete(strconv.FormatInt(id, 10))
}
