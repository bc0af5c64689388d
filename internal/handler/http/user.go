package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/service"
	"github.com/utafrali/promocode/pkg/httputil"
	"github.com/utafrali/promocode/pkg/middleware"
	"github.com/utafrali/promocode/pkg/pagination"
)

// UserHandler handles the user side: profile, feed, likes and activation.
type UserHandler struct {
	profile    *service.ProfileService
	feed       *service.FeedService
	activation *service.ActivationService
	logger     *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(
	profile *service.ProfileService,
	feed *service.FeedService,
	activation *service.ActivationService,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{profile: profile, feed: feed, activation: activation, logger: logger}
}

// --- Request DTOs ---

// PatchProfileRequest is the JSON request body for editing the profile.
type PatchProfileRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=100"`
	Surname   *string `json:"surname" validate:"omitempty,min=1,max=120"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,max=350,http_url"`
	Password  *string `json:"password" validate:"omitempty,password"`
}

// --- Response types ---

// ProfileResponse is the user profile as shown to its owner.
type ProfileResponse struct {
	Name      string          `json:"name"`
	Surname   string          `json:"surname"`
	Email     string          `json:"email"`
	AvatarURL *string         `json:"avatar_url,omitempty"`
	Other     ProfileSettings `json:"other"`
}

// ProfileSettings holds the targeting attributes of a profile.
type ProfileSettings struct {
	Age     int    `json:"age"`
	Country string `json:"country"`
}

// ActivateResponse carries the issued promo code.
type ActivateResponse struct {
	Promo string `json:"promo"`
}

func toProfileResponse(u *domain.User) ProfileResponse {
	return ProfileResponse{
		Name:      u.Name,
		Surname:   u.Surname,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Other:     ProfileSettings{Age: u.Age, Country: u.Country},
	}
}

// --- Handlers ---

// GetProfile handles GET /api/user/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.profile.Get(r.Context(), middleware.SubjectIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(user))
}

// PatchProfile handles PATCH /api/user/profile
func (h *UserHandler) PatchProfile(w http.ResponseWriter, r *http.Request) {
	var req PatchProfileRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	user, err := h.profile.Update(r.Context(), middleware.SubjectIDFromContext(r.Context()), service.UpdateProfileInput{
		Name:      req.Name,
		Surname:   req.Surname,
		AvatarURL: req.AvatarURL,
		Password:  req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(user))
}

// Feed handles GET /api/user/feed
func (h *UserHandler) Feed(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	active, err := queryBool(r, "active")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	in := service.FeedInput{Active: active, Limit: page.Limit, Offset: page.Offset}
	if category := r.URL.Query().Get("category"); category != "" {
		in.Category = &category
	}

	views, total, err := h.feed.Feed(r.Context(), middleware.SubjectIDFromContext(r.Context()), in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteList(w, views, total)
}

// History handles GET /api/user/promo/history
func (h *UserHandler) History(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	views, total, err := h.feed.History(r.Context(), middleware.SubjectIDFromContext(r.Context()), page.Limit, page.Offset)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteList(w, views, total)
}

// GetPromo handles GET /api/user/promo/{id}
func (h *UserHandler) GetPromo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	view, err := h.feed.GetPromo(r.Context(), middleware.SubjectIDFromContext(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}

// Like handles POST /api/user/promo/{id}/like
func (h *UserHandler) Like(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.feed.Like(r.Context(), middleware.SubjectIDFromContext(r.Context()), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, statusOK)
}

// Unlike handles DELETE /api/user/promo/{id}/like
func (h *UserHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.feed.Unlike(r.Context(), middleware.SubjectIDFromContext(r.Context()), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, statusOK)
}

// Activate handles POST /api/user/promo/{id}/activate
func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	code, err := h.activation.Activate(r.Context(), middleware.SubjectIDFromContext(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ActivateResponse{Promo: code})
}
