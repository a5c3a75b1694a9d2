package user

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/saulo-duarte/recrutai-lambda/internal/auth"
	"github.com/saulo-duarte/recrutai-lambda/internal/config"
)

const (
	accessTokenTTL  = time.Minute * 15
	refreshTokenTTL = time.Hour * 24 * 7
)

type Handler struct {
	service UserService
}

func NewHandler(service UserService) *Handler {
	return &Handler{service: service}
}

type googleLoginRequest struct {
	Code string `json:"code"`
}

func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	var req googleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	u, err := h.service.LoginWithGoogle(r.Context(), req.Code)
	if err != nil {
		log.WithError(err).Error("Google login failed")
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}

	if err := h.setAuthCookies(w, u); err != nil {
		log.WithError(err).Error("Failed to issue tokens")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	config.JSON(w, http.StatusOK, u)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	cookie, err := r.Cookie("refresh_token")
	if err != nil || cookie.Value == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateJWT(cookie.Value)
	if err != nil {
		log.WithError(err).Warn("Invalid refresh token")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	u, err := h.service.GetByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.setAuthCookies(w, u); err != nil {
		log.WithError(err).Error("Failed to issue tokens")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	config.JSON(w, http.StatusOK, map[string]string{"message": "token refreshed"})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	claims, err := auth.GetUserClaimsFromContext(r.Context())
	if err != nil {
		log.Warn("User not authenticated")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	u, err := h.service.GetByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	config.JSON(w, http.StatusOK, u)
}

func (h *Handler) setAuthCookies(w http.ResponseWriter, u *User) error {
	access, err := auth.GenerateJWT(u.ID.String(), u.Role, accessTokenTTL)
	if err != nil {
		return err
	}
	refresh, err := auth.GenerateJWT(u.ID.String(), u.Role, refreshTokenTTL)
	if err != nil {
		return err
	}

	domain := os.Getenv("COOKIE_DOMAIN")
	http.SetCookie(w, &http.Cookie{
		Name: "jwt", Value: access, Path: "/", Domain: domain,
		MaxAge: int(accessTokenTTL.Seconds()), HttpOnly: true, Secure: true, SameSite: http.SameSiteNoneMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name: "refresh_token", Value: refresh, Path: "/auth", Domain: domain,
		MaxAge: int(refreshTokenTTL.Seconds()), HttpOnly: true, Secure: true, SameSite: http.SameSiteNoneMode,
	})
	return nil
}

func parseID(id string) (uuid.UUID, error) {
	return uuid.Parse(id)
}
