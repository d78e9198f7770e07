package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/brickmill/storefront-backend/pkg/config"
)

const cartTokenHeader = "X-Cart-Token"

// CartToken extracts the opaque cart token from the session cookie or the
// X-Cart-Token header and makes it available on the request context. Token
// validation is left to the services; an absent token is not an error here
// because most cart endpoints mint one on first use.
func CartToken(cfg config.CartConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if cookie, err := r.Cookie(cfg.CookieName); err == nil {
				token = strings.TrimSpace(cookie.Value)
			}
			if token == "" {
				token = strings.TrimSpace(r.Header.Get(cartTokenHeader))
			}

			ctx := r.Context()
			if token != "" {
				ctx = WithCartToken(ctx, token)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetCartTokenCookie refreshes the session cookie after a token mint or
// rotation and mirrors the token on the response header for non-browser
// clients.
func SetCartTokenCookie(w http.ResponseWriter, cfg config.CartConfig, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(cfg.CookieTTL),
		MaxAge:   int(cfg.CookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(cartTokenHeader, token)
}
