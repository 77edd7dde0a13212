package middleware

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smartsoil/smartsoil/context"
	"github.com/smartsoil/smartsoil/internal/i18n"
	"github.com/smartsoil/smartsoil/internal/state"
)

type SessionMiddleware struct {
	store           state.Store
	cookieName      string
	duration        time.Duration
	secureCookies   bool
	defaultLanguage i18n.Language
	logger          *zap.Logger
}

type SessionOptions struct {
	CookieName      string
	Duration        time.Duration
	SecureCookies   bool
	DefaultLanguage i18n.Language
}

func NewSessionMiddleware(store state.Store, opts SessionOptions, logger *zap.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		store:           store,
		cookieName:      opts.CookieName,
		duration:        opts.Duration,
		secureCookies:   opts.SecureCookies,
		defaultLanguage: opts.DefaultLanguage,
		logger:          logger,
	}
}

// SetSession loads the visitor's state from the session cookie, starting a
// fresh session when the cookie is missing or its state has expired.
// It runs on every HTML route and never blocks the request.
func (m *SessionMiddleware) SetSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var s *state.AppState

		if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
			loaded, err := m.store.Load(r.Context(), cookie.Value)
			switch {
			case err == nil:
				s = loaded
			case errors.Is(err, state.ErrStateNotFound):
				// expired or unknown, start over below
			default:
				m.logger.Error("failed to load session state", zap.Error(err))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}

		if s == nil {
			s = state.New(state.NewID(), m.defaultLanguage)
			if err := m.store.Save(r.Context(), s); err != nil {
				m.logger.Error("failed to create session state", zap.Error(err))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			m.setCookie(w, s.ID)
		}

		ctx := context.ContextSetSession(r.Context(), s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HELPER FUNCS --------------------------------------------

// CurrentSession returns the state loaded by SetSession, or nil.
func CurrentSession(r *http.Request) *state.AppState {
	return context.ContextGetSession(r.Context())
}

// MustCurrentSession is like CurrentSession but panics if no state is found.
// Only use this in handlers mounted behind SetSession.
func MustCurrentSession(r *http.Request) *state.AppState {
	s := context.ContextGetSession(r.Context())
	if s == nil {
		panic("MustCurrentSession called without SetSession middleware")
	}
	return s
}
