package middleware

import "net/http"

// setCookie sets the session cookie
func (m *SessionMiddleware) setCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.duration.Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookies, // HTTPS only in production
		SameSite: http.SameSiteLaxMode,
	})
}
