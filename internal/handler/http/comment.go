package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/promocode/internal/service"
	"github.com/utafrali/promocode/pkg/httputil"
	"github.com/utafrali/promocode/pkg/middleware"
	"github.com/utafrali/promocode/pkg/pagination"
)

// CommentHandler handles comments on promos.
type CommentHandler struct {
	feed   *service.FeedService
	logger *slog.Logger
}

// NewCommentHandler creates a new comment HTTP handler.
func NewCommentHandler(feed *service.FeedService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{feed: feed, logger: logger}
}

// CommentRequest is the JSON request body for posting or editing a comment.
type CommentRequest struct {
	Text string `json:"text" validate:"required,min=10,max=1000"`
}

// Create handles POST /api/user/promo/{id}/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	promoID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req CommentRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	c, err := h.feed.AddComment(r.Context(), middleware.SubjectIDFromContext(r.Context()), promoID, req.Text)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, c)
}

// List handles GET /api/user/promo/{id}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	promoID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	page, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	comments, total, err := h.feed.ListComments(r.Context(), middleware.SubjectIDFromContext(r.Context()), promoID, page.Limit, page.Offset)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteList(w, comments, total)
}

// Get handles GET /api/user/promo/{id}/comments/{comment_id}
func (h *CommentHandler) Get(w http.ResponseWriter, r *http.Request) {
	promoID, commentID, ok := commentPath(w, r)
	if !ok {
		return
	}

	c, err := h.feed.GetComment(r.Context(), middleware.SubjectIDFromContext(r.Context()), promoID, commentID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, c)
}

// Update handles PUT /api/user/promo/{id}/comments/{comment_id}
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	promoID, commentID, ok := commentPath(w, r)
	if !ok {
		return
	}

	var req CommentRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	c, err := h.feed.EditComment(r.Context(), middleware.SubjectIDFromContext(r.Context()), promoID, commentID, req.Text)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/user/promo/{id}/comments/{comment_id}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	promoID, commentID, ok := commentPath(w, r)
	if !ok {
		return
	}

	if err := h.feed.DeleteComment(r.Context(), middleware.SubjectIDFromContext(r.Context()), promoID, commentID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, statusOK)
}

func commentPath(w http.ResponseWriter, r *http.Request) (promoID, commentID string, ok bool) {
	if promoID, ok = pathID(w, r, "id"); !ok {
		return "", "", false
	}
	if commentID, ok = pathID(w, r, "comment_id"); !ok {
		return "", "", false
	}
	return promoID, commentID, true
}
