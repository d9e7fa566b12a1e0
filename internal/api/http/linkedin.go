package http

import (
	"net/http"
	"net/url"
	"time"

	"github.com/learninpublic/scheduler/internal/api/service"
	"github.com/learninpublic/scheduler/pkg/slogx"
)

// LinkedInHandler serves the /api-v1/linkedin OAuth glue endpoints.
// The callback redirects to the app-scheme CallbackURL rather than
// returning JSON so the flow completes inside the mobile app.
type LinkedInHandler struct {
	IntegrationService *service.IntegrationService
	CallbackURL        string
}

func (h *LinkedInHandler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	authURL := h.IntegrationService.BeginLinkedInAuth(userID(r), time.Now())
	writeSuccess(w, http.StatusOK, "Authorization URL generated", map[string]any{
		"authUrl": authURL,
	})
}

// redirectResult sends the browser back to the app with the flow outcome.
func (h *LinkedInHandler) redirectResult(w http.ResponseWriter, r *http.Request, ok bool, reason string) {
	q := url.Values{}
	if ok {
		q.Set("success", "true")
	} else {
		q.Set("success", "false")
		q.Set("error", reason)
	}
	http.Redirect(w, r, h.CallbackURL+"?"+q.Encode(), http.StatusFound)
}

func (h *LinkedInHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		// User denied consent or LinkedIn rejected the request.
		h.redirectResult(w, r, false, errCode)
		return
	}

	state := q.Get("state")
	code := q.Get("code")
	if state == "" || code == "" {
		h.redirectResult(w, r, false, "missing_parameters")
		return
	}

	if err := h.IntegrationService.CompleteLinkedInAuth(ctx, state, code); err != nil {
		log.Error("linkedin callback failed", "err", err)
		h.redirectResult(w, r, false, "connection_failed")
		return
	}

	h.redirectResult(w, r, true, "")
}

func (h *LinkedInHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.IntegrationService.GetLinkedInStatus(r.Context(), userID(r))
	if err != nil {
		slogx.FromContext(r.Context()).Error("linkedin status lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to load LinkedIn status")
		return
	}
	writeSuccess(w, http.StatusOK, "LinkedIn status retrieved", status)
}

func (h *LinkedInHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.IntegrationService.DisconnectLinkedIn(r.Context(), userID(r)); err != nil {
		slogx.FromContext(r.Context()).Error("linkedin disconnect failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to disconnect LinkedIn")
		return
	}
	writeSuccess(w, http.StatusOK, "LinkedIn disconnected", nil)
}
