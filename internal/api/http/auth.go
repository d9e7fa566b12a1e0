package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/learninpublic/scheduler/internal/api/domain"
	"github.com/learninpublic/scheduler/internal/api/service"
	"github.com/learninpublic/scheduler/pkg/slogx"
)

// AuthHandler serves the /api-v1/users endpoints: registration, login,
// token refresh, logout, and session introspection.
type AuthHandler struct {
	UserService    *service.UserService
	SessionService *service.SessionService
	SecureCookies  bool
}

type userBody struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	ProfilePic string    `json:"profilePic,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type sessionBody struct {
	ID         string    `json:"id"`
	DeviceName string    `json:"deviceName"`
	DeviceType string    `json:"deviceType"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

type tokenBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"` // seconds until the access token expires
}

func toUserBody(u domain.User) userBody {
	return userBody{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}

func toSessionBody(s domain.Session) sessionBody {
	return sessionBody{
		ID:         s.ID,
		DeviceName: s.DeviceName,
		DeviceType: s.DeviceType,
		LastUsedAt: s.LastUsedAt,
		ExpiresAt:  s.ExpiresAt,
		CreatedAt:  s.CreatedAt,
	}
}

func toTokenBody(pair *domain.TokenPair) tokenBody {
	return tokenBody{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	}
}

// deviceType reads the X-Device-Type header. Anything other than "mobile"
// is a web client.
func deviceType(r *http.Request) string {
	if strings.EqualFold(r.Header.Get("X-Device-Type"), domain.DeviceTypeMobile) {
		return domain.DeviceTypeMobile
	}
	return domain.DeviceTypeWeb
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.UserService.Register(ctx, req.Email, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			writeError(w, http.StatusConflict, "Email is already registered")
		default:
			log.Error("registration failed", "err", err)
			writeError(w, http.StatusInternalServerError, "Failed to register user")
		}
		return
	}

	pair, _, err := h.SessionService.CreateSession(ctx, user, deviceType(r))
	if err != nil {
		log.Error("session creation failed after registration", "err", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	setAuthCookies(w, pair, h.SecureCookies)
	writeSuccess(w, http.StatusCreated, "User registered successfully", map[string]any{
		"user":   toUserBody(user),
		"tokens": toTokenBody(pair),
	})
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.UserService.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
		default:
			// Store outages must never read as a rejected login.
			log.Error("login failed", "err", err)
			writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
		}
		return
	}

	pair, _, err := h.SessionService.CreateSession(ctx, user, deviceType(r))
	if err != nil {
		log.Error("session creation failed after login", "err", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	setAuthCookies(w, pair, h.SecureCookies)
	writeSuccess(w, http.StatusOK, "Login successful", map[string]any{
		"user":   toUserBody(user),
		"tokens": toTokenBody(pair),
	})
}

// refreshToken pulls the refresh token from the cookie or a JSON body.
func refreshToken(r *http.Request) string {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	token := refreshToken(r)
	if token == "" {
		writeAuthError(w, codeMissingToken, "Refresh token required")
		return
	}

	pair, _, err := h.SessionService.RotateSession(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReusedRefresh):
			// The replayed token was already spent; every session for the
			// owner has just been revoked.
			clearAuthCookies(w, h.SecureCookies)
			writeAuthError(w, codeInvalidToken, "Refresh token reuse detected, all sessions revoked")
		case errors.Is(err, service.ErrInvalidRefresh):
			clearAuthCookies(w, h.SecureCookies)
			writeAuthError(w, codeInvalidToken, "Refresh token is invalid or expired")
		default:
			log.Error("token refresh failed", "err", err)
			writeError(w, http.StatusInternalServerError, "Failed to refresh tokens")
		}
		return
	}

	setAuthCookies(w, pair, h.SecureCookies)
	writeSuccess(w, http.StatusOK, "Tokens refreshed successfully", map[string]any{
		"tokens": toTokenBody(pair),
	})
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// Logout is best-effort and idempotent; a missing or already dead
	// refresh token still clears the cookies.
	if token := refreshToken(r); token != "" {
		if _, err := h.SessionService.RevokeSession(ctx, token); err != nil {
			log.Error("session revoke failed", "err", err)
			writeError(w, http.StatusInternalServerError, "Failed to log out")
			return
		}
	}

	clearAuthCookies(w, h.SecureCookies)
	writeSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	count, err := h.SessionService.RevokeAllSessions(ctx, userID(r))
	if err != nil {
		log.Error("revoke all sessions failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to log out of all sessions")
		return
	}

	clearAuthCookies(w, h.SecureCookies)
	writeSuccess(w, http.StatusOK, "Logged out of all sessions", map[string]any{
		"revokedCount": count,
	})
}

func (h *AuthHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	sessions, err := h.SessionService.ListSessions(ctx, userID(r))
	if err != nil {
		log.Error("list sessions failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	out := make([]sessionBody, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionBody(s))
	}
	writeSuccess(w, http.StatusOK, "Active sessions retrieved", map[string]any{
		"sessions": out,
	})
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	// The gate already resolved the subject to a live user.
	user, ok := principal(r)
	if !ok {
		writeAuthError(w, codeInvalidToken, "Authentication required")
		return
	}

	writeSuccess(w, http.StatusOK, "User retrieved", map[string]any{
		"user": toUserBody(user),
	})
}
