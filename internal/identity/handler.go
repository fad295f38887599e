package identity

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/wonderland/toystore/internal/auth"
	"github.com/wonderland/toystore/internal/domain"
	"github.com/wonderland/toystore/internal/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type userResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

func newUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt.UTC()}
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

func newTokenResponse(s *Session) tokenResponse {
	return tokenResponse{AccessToken: s.Token, TokenType: "bearer", User: newUserResponse(s.User)}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required,min=6"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	session, err := h.service.Register(r.Context(), Registration(req))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, newTokenResponse(session))
}

// HandleLogin accepts the OAuth2 password form, where username is the email.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, r, h.logger, domain.InvalidInput("invalid form body"))
		return
	}
	username, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	if username == "" || password == "" {
		httpx.WriteError(w, r, h.logger, domain.InvalidInput("username and password are required"))
		return
	}
	h.login(w, r, username, password)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) HandleLoginJSON(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.login(w, r, req.Email, req.Password)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, email, password string) {
	session, err := h.service.Authenticate(r.Context(), email, password)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "user logged in", "user_id", session.User.ID)
	httpx.WriteJSON(w, h.logger, http.StatusOK, newTokenResponse(session))
}

// HandleProfile serves both /auth/me and /users/profile.
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	u, err := h.service.Profile(r.Context(), caller)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, newUserResponse(u))
}

type updateProfileRequest struct {
	Name  *string `json:"name" validate:"omitnil,min=2,max=100"`
	Email *string `json:"email" validate:"omitnil,email,max=255"`
}

func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	caller, _ := auth.IdentityFrom(r.Context())
	u, err := h.service.UpdateProfile(r.Context(), caller, ProfileUpdate(req))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "profile updated", "user_id", u.ID)
	httpx.WriteJSON(w, h.logger, http.StatusOK, newUserResponse(u))
}
