package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/learninpublic/scheduler/internal/api/domain"
	"github.com/learninpublic/scheduler/internal/api/service"
	"github.com/learninpublic/scheduler/internal/api/store"
	"github.com/learninpublic/scheduler/pkg/slogx"
)

// PostsHandler serves the /api-v1/posts endpoints.
type PostsHandler struct {
	PostService *service.PostService
}

type postBody struct {
	ID           string     `json:"id"`
	Platform     string     `json:"platform"`
	Content      string     `json:"content"`
	PostTime     time.Time  `json:"postTime"`
	Status       string     `json:"status"`
	PostedAt     *time.Time `json:"postedAt,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func toPostBody(p domain.Post) postBody {
	return postBody{
		ID:           p.ID,
		Platform:     p.Platform,
		Content:      p.Content,
		PostTime:     p.PostTime,
		Status:       p.Status,
		PostedAt:     p.PostedAt,
		ErrorMessage: p.ErrorMessage,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toPostBodies(posts []domain.Post) []postBody {
	out := make([]postBody, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostBody(p))
	}
	return out
}

// writePostError maps the post service sentinels onto response statuses.
func writePostError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		writeError(w, http.StatusNotFound, "Post not found")
	case errors.Is(err, service.ErrPostAlreadyOut):
		writeError(w, http.StatusConflict, "Post has already been published")
	case errors.Is(err, service.ErrContentTooLong):
		writeError(w, http.StatusBadRequest, "Post content exceeds the maximum length")
	case errors.Is(err, service.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, "Post content cannot be empty")
	case errors.Is(err, service.ErrPromptTooLong):
		writeError(w, http.StatusBadRequest, "Prompt exceeds the maximum length")
	case errors.Is(err, service.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, "Prompt cannot be empty")
	case errors.Is(err, service.ErrPastSchedule):
		writeError(w, http.StatusBadRequest, "Scheduled time must be in the future")
	case errors.Is(err, service.ErrInvalidPlatform):
		writeError(w, http.StatusBadRequest, "Unsupported platform")
	default:
		slogx.FromContext(r.Context()).Error(fallback, "err", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *PostsHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt   string `json:"prompt"`
		Platform string `json:"platform"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	posts, err := h.PostService.Generate(r.Context(), userID(r), req.Prompt, req.Platform)
	if err != nil {
		writePostError(w, r, err, "Failed to generate posts")
		return
	}

	writeSuccess(w, http.StatusCreated, "Posts generated and scheduled", map[string]any{
		"posts": toPostBodies(posts),
	})
}

func (h *PostsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("limit"))

	filter := store.PostFilter{
		UserID:   userID(r),
		Status:   q.Get("status"),
		Platform: q.Get("platform"),
		Page:     page,
		PerPage:  perPage,
	}

	posts, pagination, err := h.PostService.ListPosts(r.Context(), filter)
	if err != nil {
		writePostError(w, r, err, "Failed to list posts")
		return
	}

	writeSuccess(w, http.StatusOK, "Scheduled posts retrieved", map[string]any{
		"posts":      toPostBodies(posts),
		"pagination": pagination,
	})
}

func (h *PostsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.PostService.GetPost(r.Context(), userID(r), r.PathValue("postID"))
	if err != nil {
		writePostError(w, r, err, "Failed to load post")
		return
	}
	writeSuccess(w, http.StatusOK, "Post retrieved", map[string]any{
		"post": toPostBody(post),
	})
}

func (h *PostsHandler) HandleUpdateContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	post, err := h.PostService.UpdateContent(r.Context(), userID(r), r.PathValue("postID"), req.Content)
	if err != nil {
		writePostError(w, r, err, "Failed to update post")
		return
	}
	writeSuccess(w, http.StatusOK, "Post content updated", map[string]any{
		"post": toPostBody(post),
	})
}

func (h *PostsHandler) HandleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PostTime time.Time `json:"postTime"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	post, err := h.PostService.Reschedule(r.Context(), userID(r), r.PathValue("postID"), req.PostTime)
	if err != nil {
		writePostError(w, r, err, "Failed to reschedule post")
		return
	}
	writeSuccess(w, http.StatusOK, "Post rescheduled", map[string]any{
		"post": toPostBody(post),
	})
}

func (h *PostsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.PostService.Delete(r.Context(), userID(r), r.PathValue("postID")); err != nil {
		writePostError(w, r, err, "Failed to delete post")
		return
	}
	writeSuccess(w, http.StatusOK, "Post deleted", nil)
}

func (h *PostsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.PostService.Stats(r.Context(), userID(r))
	if err != nil {
		writePostError(w, r, err, "Failed to load post stats")
		return
	}
	writeSuccess(w, http.StatusOK, "Post stats retrieved", map[string]any{
		"stats": stats,
	})
}

func (h *PostsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	posts, err := h.PostService.Recent(r.Context(), userID(r), limit)
	if err != nil {
		writePostError(w, r, err, "Failed to load recent posts")
		return
	}
	writeSuccess(w, http.StatusOK, "Recent posts retrieved", map[string]any{
		"posts": toPostBodies(posts),
	})
}
