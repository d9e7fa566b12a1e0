package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/learninpublic/scheduler/internal/api/service"
	"github.com/learninpublic/scheduler/internal/api/store"
	"github.com/learninpublic/scheduler/pkg/httpx"
	"github.com/learninpublic/scheduler/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion  string
	startTime     time.Time
	logger        *slog.Logger
	secureCookies bool
	callbackURL   string

	store              store.Store
	UserService        *service.UserService
	SessionService     *service.SessionService
	PostService        *service.PostService
	IntegrationService *service.IntegrationService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	secureCookies bool,
	callbackURL string,
) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		buildVersion:  buildVersion,
		startTime:     time.Now(),
		logger:        logger,
		secureCookies: secureCookies,
		callbackURL:   callbackURL,
		store:         st,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerUsers()
	r.registerPosts()
	r.registerLinkedIn()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerUsers() {
	h := &AuthHandler{
		UserService:    r.UserService,
		SessionService: r.SessionService,
		SecureCookies:  r.secureCookies,
	}

	// Credential endpoints are brute-forceable, so they get the strict
	// per-IP limit.
	r.Mux.Handle("POST /api-v1/users/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api-v1/users/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api-v1/users/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Logout authenticates by the refresh token itself, not the access
	// token, so an expired access token can still log out.
	r.Mux.Handle("POST /api-v1/users/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /api-v1/users/logout-all",
		httpx.Chain(http.HandlerFunc(h.HandleLogoutAll),
			AuthMiddleware(r.SessionService, r.UserService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /api-v1/users/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleSessions),
			AuthMiddleware(r.SessionService, r.UserService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /api-v1/users/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			AuthMiddleware(r.SessionService, r.UserService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerPosts() {
	h := &PostsHandler{PostService: r.PostService}

	secured := func(next http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(next,
			AuthMiddleware(r.SessionService, r.UserService),
			httpx.RateLimitByUser(limit),
		)
	}

	// Generation fans out to the AI provider, so it gets the strict limit.
	r.Mux.Handle("POST /api-v1/posts/generate", secured(h.HandleGenerate, httpx.StrictLimit))

	r.Mux.Handle("GET /api-v1/posts/scheduled", secured(h.HandleList, httpx.LenientLimit))
	r.Mux.Handle("GET /api-v1/posts/stats", secured(h.HandleStats, httpx.LenientLimit))
	r.Mux.Handle("GET /api-v1/posts/recent", secured(h.HandleRecent, httpx.LenientLimit))
	r.Mux.Handle("GET /api-v1/posts/{postID}", secured(h.HandleGet, httpx.LenientLimit))
	r.Mux.Handle("PATCH /api-v1/posts/{postID}/content", secured(h.HandleUpdateContent, httpx.ModerateLimit))
	r.Mux.Handle("PATCH /api-v1/posts/{postID}/schedule", secured(h.HandleUpdateSchedule, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /api-v1/posts/{postID}", secured(h.HandleDelete, httpx.ModerateLimit))
}

func (r *Router) registerLinkedIn() {
	h := &LinkedInHandler{
		IntegrationService: r.IntegrationService,
		CallbackURL:        r.callbackURL,
	}

	r.Mux.Handle("GET /api-v1/linkedin/auth",
		httpx.Chain(http.HandlerFunc(h.HandleAuth),
			AuthMiddleware(r.SessionService, r.UserService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// The callback arrives from LinkedIn without our cookies; the signed
	// state parameter identifies the user instead.
	r.Mux.Handle("GET /api-v1/linkedin/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /api-v1/linkedin/status",
		httpx.Chain(http.HandlerFunc(h.HandleStatus),
			AuthMiddleware(r.SessionService, r.UserService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("DELETE /api-v1/linkedin",
		httpx.Chain(http.HandlerFunc(h.HandleDisconnect),
			AuthMiddleware(r.SessionService, r.UserService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
