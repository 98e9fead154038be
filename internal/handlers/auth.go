package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/HammerMeetNail/tville/internal/models"
	"github.com/HammerMeetNail/tville/internal/services"
)

type AuthHandler struct {
	authService    services.AuthServiceInterface
	profileService services.ProfileServiceInterface
	secure         bool
}

func NewAuthHandler(authService services.AuthServiceInterface, profileService services.ProfileServiceInterface, secure bool) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		profileService: profileService,
		secure:         secure,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	CasaName string `json:"casa_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

type AuthResponse struct {
	User    *models.User    `json:"user,omitempty"`
	Profile *models.Profile `json:"profile,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.authService.SignUp(r.Context(), services.SignUpParams{
		Email:    req.Email,
		Password: req.Password,
		CasaName: req.CasaName,
	})
	message := "Welcome to the neighborhood! Check your email to confirm your address."
	switch {
	case errors.Is(err, services.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "Invalid email address")
		return
	case errors.Is(err, services.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	case errors.Is(err, services.ErrInvalidCasaName):
		writeError(w, http.StatusBadRequest, "House name must be at most 100 characters")
		return
	case errors.Is(err, services.ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, "Email already registered")
		return
	case errors.Is(err, services.ErrEmailDelivery) && user != nil:
		log.Printf("Error sending verification email: %v", err)
		message = "Welcome to the neighborhood! We could not send the confirmation email; try again later."
	case err != nil:
		log.Printf("Error registering user: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := h.authService.CreateSession(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error creating session: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, AuthResponse{User: user, Message: message})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, token, err := h.authService.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		log.Printf("Error signing in: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, AuthResponse{User: user})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := h.authService.DeleteSession(r.Context(), cookie.Value); err != nil {
			log.Printf("Error deleting session: %v", err)
		}
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, AuthResponse{Message: "Logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	response := AuthResponse{User: user}
	if h.profileService != nil {
		profile, err := h.profileService.GetByUserID(r.Context(), user.ID)
		if err != nil && !errors.Is(err, services.ErrProfileNotFound) {
			log.Printf("Error loading profile: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		response.Profile = profile
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := h.authService.VerifyEmail(r.Context(), strings.TrimSpace(req.Token)); err != nil {
		if errors.Is(err, services.ErrVerificationNotFound) {
			writeError(w, http.StatusBadRequest, "Confirmation link is invalid or has expired")
			return
		}
		log.Printf("Error verifying email: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Message: "Email confirmed"})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	writeSessionCookie(w, token, h.authService.SessionTTL(), h.secure)
}

func writeSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	maxAge := cookieMaxAge
	if ttl > 0 {
		maxAge = int(ttl / time.Second)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	clearSessionCookie(w, h.secure)
}

func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
	})
}
