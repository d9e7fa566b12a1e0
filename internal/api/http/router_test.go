package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/learninpublic/scheduler/internal/api/ai"
	"github.com/learninpublic/scheduler/internal/api/linkedin"
	"github.com/learninpublic/scheduler/internal/api/service"
	"github.com/learninpublic/scheduler/internal/api/store/drivers/sqlite"
	"github.com/learninpublic/scheduler/pkg/cryptox"
	"github.com/learninpublic/scheduler/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "http-test-*")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper.key"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

var (
	testSecret = []byte("test-secret-0123456789")
	testIssuer = "test-issuer"
)

type stubGenerator struct {
	posts []string
	err   error
}

func (g *stubGenerator) GeneratePosts(ctx context.Context, topic string) ([]string, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.posts, nil
}

var _ ai.Generator = (*stubGenerator)(nil)

func newTestRouter(t *testing.T, gen ai.Generator) *Router {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec := jwtx.NewCodec(testSecret, testIssuer, 0, 0)

	r := NewRouter("test", st, logger, false, "learninpublic://callback")
	r.UserService = &service.UserService{Store: st}
	// The tests replay spent tokens immediately; a tiny grace makes those
	// replays read as reuse instead of rotation races.
	r.SessionService = &service.SessionService{Store: st, Codec: codec, RotationGrace: time.Nanosecond}
	r.PostService = &service.PostService{Store: st, Generator: gen}
	r.IntegrationService = &service.IntegrationService{
		Store: st,
		LinkedIn: linkedin.NewClient(linkedin.Config{
			ClientID:    "client",
			RedirectURI: "http://localhost/api-v1/linkedin/callback",
			StateSecret: testSecret,
		}),
	}
	r.ApplyRoutes()
	return r
}

type testEnvelope struct {
	StatusCode int            `json:"statusCode"`
	Message    string         `json:"message"`
	Code       string         `json:"code"`
	Data       map[string]any `json:"data"`
	Success    bool           `json:"success"`
}

func doJSON(t *testing.T, r *Router, method, path string, body any, mod func(*http.Request)) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "10.0.0.1:12345"
	if mod != nil {
		mod(req)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env testEnvelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func register(t *testing.T, r *Router, email string) (testEnvelope, *httptest.ResponseRecorder) {
	t.Helper()
	rec, env := doJSON(t, r, http.MethodPost, "/api-v1/users/register", map[string]string{
		"email":    email,
		"username": "alice",
		"password": "hunter2hunter2",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	return env, rec
}

func tokensFrom(t *testing.T, env testEnvelope) (access, refresh string) {
	t.Helper()
	tokens, ok := env.Data["tokens"].(map[string]any)
	require.True(t, ok)
	access, _ = tokens["accessToken"].(string)
	refresh, _ = tokens["refreshToken"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	return access, refresh
}

func withBearer(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{})

	env, rec := register(t, r, "alice@example.com")
	require.True(t, env.Success)

	user, ok := env.Data["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "alice@example.com", user["email"])
	tokensFrom(t, env)

	t.Run("sets httpOnly auth cookies", func(t *testing.T) {
		for _, name := range []string{"accessToken", "refreshToken"} {
			c := findCookie(t, rec, name)
			require.NotNil(t, c, name)
			require.True(t, c.HttpOnly)
			require.Equal(t, http.SameSiteStrictMode, c.SameSite)
			require.NotEmpty(t, c.Value)
		}
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rec, env := doJSON(t, r, http.MethodPost, "/api-v1/users/register", map[string]string{
			"email":    "alice@example.com",
			"password": "hunter2hunter2",
		}, nil)
		require.Equal(t, http.StatusConflict, rec.Code)
		require.False(t, env.Success)
	})

	t.Run("login succeeds with the right password", func(t *testing.T) {
		rec, env := doJSON(t, r, http.MethodPost, "/api-v1/users/login", map[string]string{
			"email":    "alice@example.com",
			"password": "hunter2hunter2",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, env.Success)
		tokensFrom(t, env)
	})

	t.Run("login rejects the wrong password", func(t *testing.T) {
		rec, _ := doJSON(t, r, http.MethodPost, "/api-v1/users/login", map[string]string{
			"email":    "alice@example.com",
			"password": "wrong",
		}, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthGateCodes(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{})
	env, _ := register(t, r, "alice@example.com")
	access, _ := tokensFrom(t, env)

	t.Run("no token", func(t *testing.T) {
		rec, env := doJSON(t, r, http.MethodGet, "/api-v1/users/me", nil, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "missing_token", env.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec, env := doJSON(t, r, http.MethodGet, "/api-v1/users/me", nil, withBearer("not-a-jwt"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "invalid_token", env.Code)
	})

	t.Run("token signed with another key", func(t *testing.T) {
		forged, err := jwtx.NewCodec([]byte("attacker-key-0123456789"), testIssuer, 0, 0).
			IssueAccessToken("someone", "x@example.com", time.Now())
		require.NoError(t, err)

		rec, env := doJSON(t, r, http.MethodGet, "/api-v1/users/me", nil, withBearer(forged))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "invalid_token", env.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		expired, err := jwtx.NewCodec(testSecret, testIssuer, time.Millisecond, 0).
			IssueAccessToken("someone", "x@example.com", time.Now().Add(-time.Hour))
		require.NoError(t, err)

		rec, env := doJSON(t, r, http.MethodGet, "/api-v1/users/me", nil, withBearer(expired))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "token_expired", env.Code)
	})

	t.Run("token for a deleted user", func(t *testing.T) {
		// Well signed, but the subject was never registered. The gate
		// resolves the principal and refuses the token.
		ghost, err := jwtx.NewCodec(testSecret, testIssuer, 0, 0).
			IssueAccessToken("01HGH0STN0TAREALUSER000000", "ghost@example.com", time.Now())
		require.NoError(t, err)

		rec, env := doJSON(t, r, http.MethodGet, "/api-v1/users/sessions", nil, withBearer(ghost))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "invalid_token", env.Code)

		rec, env = doJSON(t, r, http.MethodGet, "/api-v1/users/me", nil, withBearer(ghost))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "invalid_token", env.Code)
	})

	t.Run("valid token via cookie", func(t *testing.T) {
		rec, env := doJSON(t, r, http.MethodGet, "/api-v1/users/me", nil, func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: "accessToken", Value: access})
		})
		require.Equal(t, http.StatusOK, rec.Code)
		user, ok := env.Data["user"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "alice@example.com", user["email"])
	})
}

func TestRefreshRotation(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{})
	env, _ := register(t, r, "alice@example.com")
	_, refresh := tokensFrom(t, env)

	rec, env := doJSON(t, r, http.MethodPost, "/api-v1/users/refresh", nil, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refresh})
	})
	require.Equal(t, http.StatusOK, rec.Code)
	_, rotated := tokensFrom(t, env)
	require.NotEqual(t, refresh, rotated)

	t.Run("replaying the spent token fails and revokes everything", func(t *testing.T) {
		rec, env := doJSON(t, r, http.MethodPost, "/api-v1/users/refresh", nil, func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refresh})
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "invalid_token", env.Code)

		// The rotated token was revoked alongside the rest of the set.
		rec, _ = doJSON(t, r, http.MethodPost, "/api-v1/users/refresh", nil, func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: "refreshToken", Value: rotated})
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("never issued token fails", func(t *testing.T) {
		stray, err := jwtx.NewCodec(testSecret, testIssuer, 0, 0).
			IssueRefreshToken("someone", time.Now())
		require.NoError(t, err)

		rec, env := doJSON(t, r, http.MethodPost, "/api-v1/users/refresh", nil, func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: "refreshToken", Value: stray})
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "invalid_token", env.Code)
	})
}

func TestLogout(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{})
	env, _ := register(t, r, "alice@example.com")
	access, refresh := tokensFrom(t, env)

	rec, env := doJSON(t, r, http.MethodPost, "/api-v1/users/logout", nil, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refresh})
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	t.Run("clears auth cookies", func(t *testing.T) {
		for _, name := range []string{"accessToken", "refreshToken"} {
			c := findCookie(t, rec, name)
			require.NotNil(t, c, name)
			require.Empty(t, c.Value)
			require.Less(t, c.MaxAge, 0)
		}
	})

	t.Run("session is gone", func(t *testing.T) {
		_, env := doJSON(t, r, http.MethodGet, "/api-v1/users/sessions", nil, withBearer(access))
		sessions, ok := env.Data["sessions"].([]any)
		require.True(t, ok)
		require.Empty(t, sessions)
	})

	t.Run("logout without a token is still a success", func(t *testing.T) {
		rec, _ := doJSON(t, r, http.MethodPost, "/api-v1/users/logout", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestLogoutAll(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{})
	env, _ := register(t, r, "alice@example.com")
	access, _ := tokensFrom(t, env)

	// A second device.
	rec, _ := doJSON(t, r, http.MethodPost, "/api-v1/users/login", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
	}, func(req *http.Request) {
		req.Header.Set("X-Device-Type", "mobile")
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = doJSON(t, r, http.MethodPost, "/api-v1/users/logout-all", nil, withBearer(access))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(2), env.Data["revokedCount"])

	_, env = doJSON(t, r, http.MethodGet, "/api-v1/users/sessions", nil, withBearer(access))
	sessions, ok := env.Data["sessions"].([]any)
	require.True(t, ok)
	require.Empty(t, sessions)
}

func TestSessionListing(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{})
	env, _ := register(t, r, "alice@example.com")
	access, _ := tokensFrom(t, env)

	rec, _ := doJSON(t, r, http.MethodPost, "/api-v1/users/login", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
	}, func(req *http.Request) {
		req.Header.Set("X-Device-Type", "mobile")
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = doJSON(t, r, http.MethodGet, "/api-v1/users/sessions", nil, withBearer(access))
	require.Equal(t, http.StatusOK, rec.Code)

	sessions, ok := env.Data["sessions"].([]any)
	require.True(t, ok)
	require.Len(t, sessions, 2)

	names := make(map[string]bool)
	for _, raw := range sessions {
		s, ok := raw.(map[string]any)
		require.True(t, ok)
		names[s["deviceName"].(string)] = true

		// Only opaque metadata goes over the wire.
		_, leaked := s["tokenHash"]
		require.False(t, leaked)
		_, leaked = s["TokenHash"]
		require.False(t, leaked)
	}
	require.True(t, names["Web App 1"])
	require.True(t, names["Mobile App 1"])
}

func TestPostsFlow(t *testing.T) {
	gen := &stubGenerator{posts: []string{"First draft", "Second draft", "Third draft"}}
	r := newTestRouter(t, gen)
	env, _ := register(t, r, "alice@example.com")
	access, _ := tokensFrom(t, env)

	rec, env := doJSON(t, r, http.MethodPost, "/api-v1/posts/generate", map[string]string{
		"prompt": "what I learned about SQLite this week",
	}, withBearer(access))
	require.Equal(t, http.StatusCreated, rec.Code)

	posts, ok := env.Data["posts"].([]any)
	require.True(t, ok)
	require.Len(t, posts, 3)

	first, ok := posts[0].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "linkedin", first["platform"])
	require.Equal(t, "pending", first["status"])
	postID := first["id"].(string)

	t.Run("list with pagination", func(t *testing.T) {
		rec, env := doJSON(t, r, http.MethodGet, "/api-v1/posts/scheduled?page=1&limit=2", nil, withBearer(access))
		require.Equal(t, http.StatusOK, rec.Code)

		listed, ok := env.Data["posts"].([]any)
		require.True(t, ok)
		require.Len(t, listed, 2)

		pagination, ok := env.Data["pagination"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, float64(3), pagination["totalCount"])
		require.Equal(t, float64(2), pagination["totalPages"])
		require.Equal(t, true, pagination["hasNextPage"])
	})

	t.Run("get by id", func(t *testing.T) {
		rec, env := doJSON(t, r, http.MethodGet, "/api-v1/posts/"+postID, nil, withBearer(access))
		require.Equal(t, http.StatusOK, rec.Code)
		post, ok := env.Data["post"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "First draft", post["content"])
	})

	t.Run("update content", func(t *testing.T) {
		rec, env := doJSON(t, r, http.MethodPatch, "/api-v1/posts/"+postID+"/content", map[string]string{
			"content": "Rewritten draft",
		}, withBearer(access))
		require.Equal(t, http.StatusOK, rec.Code)
		post, ok := env.Data["post"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "Rewritten draft", post["content"])
	})

	t.Run("reschedule into the past is rejected", func(t *testing.T) {
		rec, _ := doJSON(t, r, http.MethodPatch, "/api-v1/posts/"+postID+"/schedule", map[string]any{
			"postTime": time.Now().Add(-time.Hour).Format(time.RFC3339),
		}, withBearer(access))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("stats", func(t *testing.T) {
		rec, env := doJSON(t, r, http.MethodGet, "/api-v1/posts/stats", nil, withBearer(access))
		require.Equal(t, http.StatusOK, rec.Code)
		stats, ok := env.Data["stats"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, float64(3), stats["total"])
		require.Equal(t, float64(3), stats["pending"])
	})

	t.Run("delete", func(t *testing.T) {
		rec, _ := doJSON(t, r, http.MethodDelete, "/api-v1/posts/"+postID, nil, withBearer(access))
		require.Equal(t, http.StatusOK, rec.Code)

		rec, _ = doJSON(t, r, http.MethodGet, "/api-v1/posts/"+postID, nil, withBearer(access))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("empty prompt is rejected", func(t *testing.T) {
		rec, _ := doJSON(t, r, http.MethodPost, "/api-v1/posts/generate", map[string]string{
			"prompt": "   ",
		}, withBearer(access))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("posts are scoped per user", func(t *testing.T) {
		env, _ := register(t, r, "bob@example.com")
		bobAccess, _ := tokensFrom(t, env)

		rec, _ := doJSON(t, r, http.MethodGet, "/api-v1/posts/"+postID, nil, withBearer(bobAccess))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestLinkedInEndpoints(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{})
	env, _ := register(t, r, "alice@example.com")
	access, _ := tokensFrom(t, env)

	t.Run("auth returns an authorize URL", func(t *testing.T) {
		rec, env := doJSON(t, r, http.MethodGet, "/api-v1/linkedin/auth", nil, withBearer(access))
		require.Equal(t, http.StatusOK, rec.Code)
		authURL, ok := env.Data["authUrl"].(string)
		require.True(t, ok)
		require.Contains(t, authURL, "linkedin.com/oauth/v2/authorization")
		require.Contains(t, authURL, "client_id=client")
	})

	t.Run("status when nothing is connected", func(t *testing.T) {
		rec, env := doJSON(t, r, http.MethodGet, "/api-v1/linkedin/status", nil, withBearer(access))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, false, env.Data["connected"])
	})

	t.Run("callback with a provider error redirects back to the app", func(t *testing.T) {
		rec, _ := doJSON(t, r, http.MethodGet, "/api-v1/linkedin/callback?error=user_cancelled_login", nil, nil)
		require.Equal(t, http.StatusFound, rec.Code)
		loc := rec.Header().Get("Location")
		require.Contains(t, loc, "learninpublic://callback?")
		require.Contains(t, loc, "success=false")
		require.Contains(t, loc, "error=user_cancelled_login")
	})

	t.Run("callback rejects a forged state", func(t *testing.T) {
		// Signed with the wrong key, naming a victim user. The signature
		// check fails before any token exchange happens.
		forged := linkedin.NewClient(linkedin.Config{StateSecret: []byte("attacker-key")}).
			EncodeState("victim-user-id", time.Now())

		rec, _ := doJSON(t, r, http.MethodGet,
			"/api-v1/linkedin/callback?code=stolen&state="+url.QueryEscape(forged), nil, nil)
		require.Equal(t, http.StatusFound, rec.Code)
		require.Contains(t, rec.Header().Get("Location"), "error=connection_failed")
	})

	t.Run("callback without parameters redirects with an error", func(t *testing.T) {
		rec, _ := doJSON(t, r, http.MethodGet, "/api-v1/linkedin/callback", nil, nil)
		require.Equal(t, http.StatusFound, rec.Code)
		require.Contains(t, rec.Header().Get("Location"), "error=missing_parameters")
	})

	t.Run("disconnect is idempotent", func(t *testing.T) {
		rec, _ := doJSON(t, r, http.MethodDelete, "/api-v1/linkedin", nil, withBearer(access))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{})

	rec, _ := doJSON(t, r, http.MethodGet, "/livez", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)

	rec, _ = doJSON(t, r, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ready struct {
		Status string `json:"status"`
		Checks struct {
			Database string `json:"database"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, "ok", ready.Checks.Database)
}

func TestRateLimitOnLogin(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{})
	register(t, r, "alice@example.com")

	attempt := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api-v1/users/login",
			bytes.NewReader([]byte(`{"email":"alice@example.com","password":"wrong"}`)))
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	for range 5 {
		require.Equal(t, http.StatusUnauthorized, attempt("10.0.0.9:1234"))
	}
	require.Equal(t, http.StatusTooManyRequests, attempt("10.0.0.9:1234"))

	// A different client is unaffected.
	require.Equal(t, http.StatusUnauthorized, attempt("10.0.0.10:1234"))
}
