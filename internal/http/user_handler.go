package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserService interface {
	Register(ctx context.Context, in service.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*service.Session, error)
	Logout(ctx context.Context, userID primitive.ObjectID) error
	ChangePassword(ctx context.Context, userID primitive.ObjectID, in service.ChangePasswordInput) error
	CurrentUser(ctx context.Context, userID primitive.ObjectID) (*domain.User, error)
	UpdateAccount(ctx context.Context, userID primitive.ObjectID, fullName string) (*domain.User, error)
	VerifyEmail(ctx context.Context, token string) error
}

// CookieConfig controls the auth cookies set on login and refresh.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type UserHandler struct {
	svc     UserService
	cookies CookieConfig
	timeout time.Duration
}

func NewUserHandler(svc UserService, cookies CookieConfig, timeout time.Duration) *UserHandler {
	return &UserHandler{svc: svc, cookies: cookies, timeout: timeout}
}

type RegisterRequestDTO struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequestDTO struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequestDTO struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type AccountRequestDTO struct {
	FullName string `json:"fullName"`
}

type SessionResponseDTO struct {
	User         *domain.User `json:"user,omitempty"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req RegisterRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	user, err := h.svc.Register(ctx, service.RegisterInput{FullName: req.FullName, Email: req.Email, Password: req.Password})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, "User registered successfully", user)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	session, err := h.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	h.setAuthCookies(w, session)
	respondJSON(w, http.StatusOK, "User successfully logged in", SessionResponseDTO{
		User:         session.User,
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
	})
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.svc.Logout(ctx, identityFrom(r.Context()).UserID); err != nil {
		respondErr(w, r, err)
		return
	}
	h.clearAuthCookies(w)
	respondJSON(w, http.StatusOK, "User logged out", struct{}{})
}

// RefreshToken accepts the refresh token from its cookie or the JSON body.
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	token := ""
	if c, err := r.Cookie(refreshCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		var req RefreshRequestDTO
		if err := decodeJSON(r, &req); err != nil {
			respondErr(w, r, err)
			return
		}
		token = req.RefreshToken
	}

	session, err := h.svc.Refresh(ctx, token)
	if err != nil {
		h.clearAuthCookies(w)
		respondErr(w, r, err)
		return
	}
	h.setAuthCookies(w, session)
	respondJSON(w, http.StatusOK, "Access token refreshed", SessionResponseDTO{
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
	})
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ChangePasswordRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	err := h.svc.ChangePassword(ctx, identityFrom(r.Context()).UserID, service.ChangePasswordInput{
		OldPassword:     req.OldPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	h.clearAuthCookies(w)
	respondJSON(w, http.StatusOK, "Password is changed successfully", struct{}{})
}

func (h *UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.svc.CurrentUser(ctx, identityFrom(r.Context()).UserID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "User fetched successfully", user)
}

func (h *UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AccountRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	user, err := h.svc.UpdateAccount(ctx, identityFrom(r.Context()).UserID, req.FullName)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Account detail updated successfully", user)
}

func (h *UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	token := r.URL.Query().Get("token")
	if token == "" {
		respondErr(w, r, domain.InvalidInput("token is required"))
		return
	}
	if err := h.svc.VerifyEmail(ctx, token); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Email verified successfully", struct{}{})
}

func (h *UserHandler) setAuthCookies(w http.ResponseWriter, session *service.Session) {
	http.SetCookie(w, h.cookie(accessCookie, session.Tokens.AccessToken, h.cookies.AccessTTL))
	http.SetCookie(w, h.cookie(refreshCookie, session.Tokens.RefreshToken, h.cookies.RefreshTTL))
}

func (h *UserHandler) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(accessCookie, "", -1))
	http.SetCookie(w, h.cookie(refreshCookie, "", -1))
}

func (h *UserHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case ttl < 0:
		c.MaxAge = -1
	case ttl > 0:
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}
