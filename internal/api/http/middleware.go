package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/learninpublic/scheduler/internal/api/domain"
	"github.com/learninpublic/scheduler/internal/api/service"
	"github.com/learninpublic/scheduler/internal/api/store"
	"github.com/learninpublic/scheduler/pkg/httpx"
	"github.com/learninpublic/scheduler/pkg/jwtx"
	"github.com/learninpublic/scheduler/pkg/slogx"
)

// Auth failure codes surfaced in the 401 body.
const (
	codeMissingToken = "missing_token"
	codeTokenExpired = "token_expired"
	codeInvalidToken = "invalid_token"
)

// bearerToken pulls the access token from the accessToken cookie or, failing
// that, an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	if c, err := r.Cookie(accessCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// AuthMiddleware verifies the caller's access token, resolves the claim
// subject to a live user, and attaches both to the request context. A
// genuine token whose subject no longer exists is as unauthorized as a
// forged one. The gate reads from the store but never writes.
func AuthMiddleware(sessions *service.SessionService, users *service.UserService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeAuthError(w, codeMissingToken, "Authentication required")
				return
			}

			claims, err := sessions.ValidateAccessToken(token)
			if err != nil {
				switch {
				case errors.Is(err, jwtx.ErrExpired):
					writeAuthError(w, codeTokenExpired, "Access token has expired")
				default:
					writeAuthError(w, codeInvalidToken, "Access token is invalid")
				}
				return
			}

			user, err := users.GetUserByID(r.Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeAuthError(w, codeInvalidToken, "User no longer exists")
					return
				}
				slogx.FromContext(r.Context()).Error("auth principal lookup failed", "err", err)
				writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
				return
			}

			ctx := context.WithValue(r.Context(), httpx.CtxKeyUserID, user.ID)
			ctx = context.WithValue(ctx, httpx.CtxKeyEmail, user.Email)
			ctx = context.WithValue(ctx, httpx.CtxKeyClaims, claims)
			ctx = context.WithValue(ctx, httpx.CtxKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userID returns the authenticated subject set by AuthMiddleware.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(httpx.CtxKeyUserID).(string)
	return id
}

// principal returns the user record resolved by AuthMiddleware.
func principal(r *http.Request) (domain.User, bool) {
	u, ok := r.Context().Value(httpx.CtxKeyUser).(domain.User)
	return u, ok
}
