package http

import (
	"net/http"
	"time"

	"github.com/learninpublic/scheduler/internal/api/domain"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"

	// Cookie lifetimes. The access cookie outlives the access token so the
	// browser keeps presenting it and gets a clean token_expired signal
	// instead of silently dropping to missing_token.
	accessCookieTTL  = 7 * 24 * time.Hour
	refreshCookieTTL = 30 * 24 * time.Hour
)

func authCookie(name, value string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// setAuthCookies mirrors the token pair into httpOnly cookies so browser
// clients never handle the raw tokens in script.
func setAuthCookies(w http.ResponseWriter, pair *domain.TokenPair, secure bool) {
	http.SetCookie(w, authCookie(accessCookieName, pair.AccessToken, accessCookieTTL, secure))
	http.SetCookie(w, authCookie(refreshCookieName, pair.RefreshToken, refreshCookieTTL, secure))
}

func clearAuthCookies(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, authCookie(accessCookieName, "", -time.Second, secure))
	http.SetCookie(w, authCookie(refreshCookieName, "", -time.Second, secure))
}
