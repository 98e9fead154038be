package handlers

import (
	"errors"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HammerMeetNail/tville/internal/models"
	"github.com/HammerMeetNail/tville/internal/services"
)

type AccountHandler struct {
	accountService services.AccountServiceInterface
	authService    services.AuthServiceInterface
	galleryService services.GalleryServiceInterface
	secure         bool
}

func NewAccountHandler(accountService services.AccountServiceInterface, authService services.AuthServiceInterface, galleryService services.GalleryServiceInterface, secure bool) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		authService:    authService,
		galleryService: galleryService,
		secure:         secure,
	}
}

// AccountDeleteRequest asks the resident to retype their email. Password is
// checked only for accounts that have one.
type AccountDeleteRequest struct {
	ConfirmEmail string `json:"confirm_email"`
	Password     string `json:"password"`
	Confirm      bool   `json:"confirm"`
}

type AccountMessageResponse struct {
	Message string `json:"message"`
}

// Export downloads a zip of CSV files with everything the caller owns.
func (h *AccountHandler) Export(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	archive, err := h.accountService.BuildExportZip(r.Context(), user.ID)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	case err != nil:
		log.Printf("Error exporting account %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	name := "tville_export_" + time.Now().UTC().Format(time.DateOnly) + ".zip"
	header := w.Header()
	header.Set("Content-Type", "application/zip")
	header.Set("Content-Length", strconv.Itoa(len(archive)))
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	header.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(archive); err != nil {
		log.Printf("Error sending account export: %v", err)
	}
}

// Delete closes the caller's account, drops their in-memory gallery and
// ends the current session.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req AccountDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if status, msg := h.checkDeletion(user, req); status != 0 {
		writeError(w, status, msg)
		return
	}

	switch err := h.accountService.Delete(r.Context(), user.ID); {
	case errors.Is(err, services.ErrUserNotFound):
		// Already gone; fall through to clearing the session.
	case err != nil:
		log.Printf("Error deleting account %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if h.galleryService != nil {
		h.galleryService.Forget(r.Context(), user.ID)
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := h.authService.DeleteSession(r.Context(), cookie.Value); err != nil {
			log.Printf("Error ending session of deleted account %s: %v", user.ID, err)
		}
	}
	clearSessionCookie(w, h.secure)
	writeJSON(w, http.StatusOK, AccountMessageResponse{Message: "Account deleted"})
}

// checkDeletion returns a non-zero status and message when req does not
// confirm deleting user's account.
func (h *AccountHandler) checkDeletion(user *models.User, req AccountDeleteRequest) (int, string) {
	confirmEmail := strings.TrimSpace(req.ConfirmEmail)
	switch {
	case confirmEmail == "" || !req.Confirm:
		return http.StatusBadRequest, "Invalid request"
	case !strings.EqualFold(confirmEmail, user.Email):
		return http.StatusBadRequest, "Email confirmation does not match"
	case user.HasPassword() && !h.authService.CheckPassword(*user.PasswordHash, req.Password):
		return http.StatusUnauthorized, "Invalid password"
	}
	return 0, ""
}
