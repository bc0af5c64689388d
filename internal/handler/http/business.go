package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/repository"
	"github.com/utafrali/promocode/internal/service"
	"github.com/utafrali/promocode/pkg/httputil"
	"github.com/utafrali/promocode/pkg/middleware"
	"github.com/utafrali/promocode/pkg/pagination"
)

// BusinessHandler handles the company side of promos.
type BusinessHandler struct {
	service *service.BusinessService
	logger  *slog.Logger
}

// NewBusinessHandler creates a new business HTTP handler.
func NewBusinessHandler(svc *service.BusinessService, logger *slog.Logger) *BusinessHandler {
	return &BusinessHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// TargetRequest describes the audience of a promo.
type TargetRequest struct {
	AgeFrom    *int     `json:"age_from" validate:"omitempty,gte=0,lte=100"`
	AgeUntil   *int     `json:"age_until" validate:"omitempty,gte=0,lte=100"`
	Country    *string  `json:"country" validate:"omitempty,country"`
	Categories []string `json:"categories" validate:"omitempty,max=20,dive,min=2,max=20"`
}

func (t *TargetRequest) toDomain() *domain.Target {
	if t == nil {
		return nil
	}
	return &domain.Target{
		AgeFrom:    t.AgeFrom,
		AgeUntil:   t.AgeUntil,
		Country:    t.Country,
		Categories: t.Categories,
	}
}

// CreatePromoRequest is the JSON request body for creating a promo.
type CreatePromoRequest struct {
	Description string         `json:"description" validate:"required,min=10,max=300"`
	ImageURL    *string        `json:"image_url" validate:"omitempty,max=350,http_url"`
	Target      *TargetRequest `json:"target" validate:"required"`
	MaxCount    *int           `json:"max_count" validate:"required,gte=0,lte=100000000"`
	ActiveFrom  *string        `json:"active_from"`
	ActiveUntil *string        `json:"active_until"`
	Mode        string         `json:"mode" validate:"required,oneof=COMMON UNIQUE"`
	PromoCommon *string        `json:"promo_common" validate:"omitempty,min=5,max=30"`
	PromoUnique []string       `json:"promo_unique" validate:"omitempty,min=1,max=5000,dive,min=3,max=30"`
}

// PatchPromoRequest is the JSON request body for editing a promo. Absent
// fields are left unchanged.
type PatchPromoRequest struct {
	Description *string        `json:"description" validate:"omitempty,min=10,max=300"`
	ImageURL    *string        `json:"image_url" validate:"omitempty,max=350,http_url"`
	Target      *TargetRequest `json:"target"`
	MaxCount    *int           `json:"max_count" validate:"omitempty,gte=0,lte=100000000"`
	ActiveFrom  *string        `json:"active_from"`
	ActiveUntil *string        `json:"active_until"`
}

// --- Response types ---

// CreatePromoResponse carries the id of a new promo.
type CreatePromoResponse struct {
	ID string `json:"id"`
}

// --- Handlers ---

// Create handles POST /api/business/promo
func (h *BusinessHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePromoRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	from, err := parseDate("active_from", req.ActiveFrom)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	until, err := parseDate("active_until", req.ActiveUntil)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	id, err := h.service.Create(r.Context(), middleware.SubjectIDFromContext(r.Context()), service.CreatePromoInput{
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Target:      req.Target.toDomain(),
		MaxCount:    *req.MaxCount,
		ActiveFrom:  from,
		ActiveUntil: until,
		Mode:        req.Mode,
		PromoCommon: req.PromoCommon,
		PromoUnique: req.PromoUnique,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, CreatePromoResponse{ID: id})
}

// List handles GET /api/business/promo
func (h *BusinessHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	views, total, err := h.service.List(r.Context(), middleware.SubjectIDFromContext(r.Context()), service.ListPromosInput{
		Countries: queryCountries(r),
		SortBy:    r.URL.Query().Get("sort_by"),
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteList(w, views, total)
}

// Get handles GET /api/business/promo/{id}
func (h *BusinessHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	view, err := h.service.Get(r.Context(), middleware.SubjectIDFromContext(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}

// Patch handles PATCH /api/business/promo/{id}
func (h *BusinessHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req PatchPromoRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	from, err := parseDate("active_from", req.ActiveFrom)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	until, err := parseDate("active_until", req.ActiveUntil)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	view, err := h.service.Patch(r.Context(), middleware.SubjectIDFromContext(r.Context()), id, repository.PromoPatch{
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Target:      req.Target.toDomain(),
		MaxCount:    req.MaxCount,
		ActiveFrom:  from,
		ActiveUntil: until,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}

// Stat handles GET /api/business/promo/{id}/stat
func (h *BusinessHandler) Stat(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	stat, err := h.service.Stat(r.Context(), middleware.SubjectIDFromContext(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, stat)
}
