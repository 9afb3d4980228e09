package http

import (
	"log/slog"
	"net/http"

	"github.com/Pinash124/bike-hub-sub000/internal/auth"
	"github.com/Pinash124/bike-hub-sub000/internal/domain"
	"github.com/Pinash124/bike-hub-sub000/internal/guard"
	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
	"github.com/Pinash124/bike-hub-sub000/pkg/httputil"
	"github.com/Pinash124/bike-hub-sub000/pkg/validator"
)

// SessionHandler handles HTTP requests for session endpoints.
type SessionHandler struct {
	auth   *auth.Controller
	logger *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(a *auth.Controller, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{auth: a, logger: logger}
}

// --- Request DTOs ---

// LoginRequest is the JSON request body for signing in.
type LoginRequest struct {
	auth.LoginInput
	Redirect string `json:"redirect"`
}

// SendOTPRequest is the JSON request body for requesting a one-time code.
type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UpdateRoleRequest is the JSON request body for switching the local role.
type UpdateRoleRequest struct {
	Role domain.Role `json:"role" validate:"required"`
}

// SetKYCRequest is the JSON request body for the KYC flag.
type SetKYCRequest struct {
	Verified *bool `json:"verified" validate:"required"`
}

// --- Response DTOs ---

// LoginResponse is returned by a successful sign-in. ProfileError is set
// when the profile could not be loaded and User is provisional.
type LoginResponse struct {
	User         *domain.User `json:"user"`
	Redirect     string       `json:"redirect"`
	ProfileError string       `json:"profileError,omitempty"`
}

// --- Handlers ---

// GetState handles GET /session
func (h *SessionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, h.auth.State(r.Context()))
}

// Login handles POST /session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.LoginInput)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := LoginResponse{User: res.User, Redirect: guard.SafeRedirect(req.Redirect)}
	if res.ProfileErr != nil {
		resp.ProfileError = apperrors.UserMessage(res.ProfileErr)
	}
	httputil.WriteData(w, resp)
}

// Logout handles POST /session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Register handles POST /session/register
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := h.auth.Register(r.Context(), req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: h.auth.PendingRegistration()})
}

// PendingRegistration handles GET /session/pending-registration
func (h *SessionHandler) PendingRegistration(w http.ResponseWriter, r *http.Request) {
	pending := h.auth.PendingRegistration()
	if pending == nil {
		httputil.WriteError(w, r, apperrors.NotFound("registration", "pending"), h.logger)
		return
	}
	httputil.WriteData(w, pending)
}

// SendOTP handles POST /session/otp
func (h *SessionHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := h.auth.SendOTP(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: map[string]bool{"sent": true}})
}

// VerifyOTP handles POST /session/otp/verify
func (h *SessionHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyOTPInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := h.auth.VerifyOTP(r.Context(), req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, map[string]bool{"verified": true})
}

// Refresh handles POST /session/refresh
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.RefreshToken(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, h.auth.State(r.Context()))
}

// Me handles GET /session/me
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.FetchMyInfo(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, user)
}

// UpdateProfile handles PATCH /session/profile
func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.ProfileUpdate
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	user, err := h.auth.UpdateProfile(r.Context(), req)
	h.writeUser(w, r, user, err)
}

// UpdateRole handles PUT /session/role
func (h *SessionHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	user, err := h.auth.UpdateRole(r.Context(), req.Role)
	h.writeUser(w, r, user, err)
}

// SetKYC handles PUT /session/kyc
func (h *SessionHandler) SetKYC(w http.ResponseWriter, r *http.Request) {
	var req SetKYCRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	user, err := h.auth.SetKYCVerified(r.Context(), *req.Verified)
	h.writeUser(w, r, user, err)
}

// writeUser reports the result of a local profile change. No stored user
// means the session ended between the guard and the change.
func (h *SessionHandler) writeUser(w http.ResponseWriter, r *http.Request, user *domain.User, err error) {
	if err == nil && user == nil {
		err = apperrors.Unauthorized("please sign in")
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, user)
}
