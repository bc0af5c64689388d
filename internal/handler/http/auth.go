package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/promocode/internal/service"
	"github.com/utafrali/promocode/pkg/httputil"
)

// AuthHandler handles sign-up and sign-in for companies and users.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// CompanySignUpRequest is the JSON request body for company registration.
type CompanySignUpRequest struct {
	Name     string `json:"name" validate:"required,min=5,max=50"`
	Email    string `json:"email" validate:"required,min=8,max=120,email"`
	Password string `json:"password" validate:"required,password"`
}

// SignInRequest is the JSON request body for company and user sign-in.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,min=8,max=120,email"`
	Password string `json:"password" validate:"required,max=60"`
}

// UserTargetSettings carries the user attributes promos target.
type UserTargetSettings struct {
	Age     *int   `json:"age" validate:"required,gte=0,lte=100"`
	Country string `json:"country" validate:"required,country"`
}

// UserSignUpRequest is the JSON request body for user registration.
type UserSignUpRequest struct {
	Name      string              `json:"name" validate:"required,min=1,max=100"`
	Surname   string              `json:"surname" validate:"required,min=1,max=120"`
	Email     string              `json:"email" validate:"required,min=8,max=120,email"`
	AvatarURL *string             `json:"avatar_url" validate:"omitempty,max=350,http_url"`
	Other     *UserTargetSettings `json:"other" validate:"required"`
	Password  string              `json:"password" validate:"required,password"`
}

// --- Response types ---

// TokenResponse carries a freshly issued access token.
type TokenResponse struct {
	Token string `json:"token"`
}

// CompanyTokenResponse carries the token of a newly registered company.
type CompanyTokenResponse struct {
	Token     string `json:"token"`
	CompanyID string `json:"company_id"`
}

// --- Handlers ---

// CompanySignUp handles POST /api/business/auth/sign-up
func (h *AuthHandler) CompanySignUp(w http.ResponseWriter, r *http.Request) {
	var req CompanySignUpRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	token, companyID, err := h.service.SignUpCompany(r.Context(), service.CompanySignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, CompanyTokenResponse{Token: token, CompanyID: companyID})
}

// CompanySignIn handles POST /api/business/auth/sign-in
func (h *AuthHandler) CompanySignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	token, err := h.service.SignInCompany(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// UserSignUp handles POST /api/user/auth/sign-up
func (h *AuthHandler) UserSignUp(w http.ResponseWriter, r *http.Request) {
	var req UserSignUpRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	token, err := h.service.SignUpUser(r.Context(), service.UserSignUpInput{
		Name:      req.Name,
		Surname:   req.Surname,
		Email:     req.Email,
		Password:  req.Password,
		AvatarURL: req.AvatarURL,
		Age:       *req.Other.Age,
		Country:   req.Other.Country,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// UserSignIn handles POST /api/user/auth/sign-in
func (h *AuthHandler) UserSignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	token, err := h.service.SignInUser(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, TokenResponse{Token: token})
}
