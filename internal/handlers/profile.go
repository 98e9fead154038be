package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tville/internal/models"
	"github.com/HammerMeetNail/tville/internal/services"
)

const defaultMaxUploadBytes = 10 << 20

type ProfileHandler struct {
	profileService services.ProfileServiceInterface
	maxUploadBytes int64
}

func NewProfileHandler(profileService services.ProfileServiceInterface, maxUploadBytes int64) *ProfileHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ProfileHandler{profileService: profileService, maxUploadBytes: maxUploadBytes}
}

type ProfileResponse struct {
	Profile *models.Profile `json:"profile"`
}

type VisitRequest struct {
	Message *string `json:"message,omitempty"`
}

type VisitListResponse struct {
	Visits []models.HouseVisit `json:"visits"`
}

type ProfileMessageResponse struct {
	Message string `json:"message"`
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	userID, err := pathUserID(r, "id", user)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	profile, err := h.profileService.GetByUserID(r.Context(), userID)
	if errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "House not found")
		return
	}
	if err != nil {
		log.Printf("Error loading profile: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load house")
		return
	}
	if !profile.IsPublic && profile.ID != user.ID {
		writeError(w, http.StatusNotFound, "House not found")
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{Profile: profile})
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req models.UpdateProfileParams
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := h.profileService.Update(r.Context(), user.ID, req)
	if errors.Is(err, services.ErrInvalidCasaName) {
		writeError(w, http.StatusBadRequest, "House name must be between 1 and 100 characters")
		return
	}
	if errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "House not found")
		return
	}
	if err != nil {
		log.Printf("Error updating profile: %v", err)
		writeError(w, http.StatusInternalServerError, "Could not update your house")
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{Profile: profile})
}

func (h *ProfileHandler) Customize(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req models.CustomizeHouseParams
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.IsEmpty() {
		writeError(w, http.StatusBadRequest, "Nothing to change")
		return
	}

	profile, err := h.profileService.Customize(r.Context(), user.ID, req)
	switch {
	case errors.Is(err, services.ErrInvalidHouseStyle):
		writeError(w, http.StatusBadRequest, "Invalid house style")
		return
	case errors.Is(err, services.ErrInvalidHouseAddress):
		writeError(w, http.StatusBadRequest, "House number or street name too long")
		return
	case errors.Is(err, services.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "House not found")
		return
	case err != nil:
		log.Printf("Error customizing house: %v", err)
		writeError(w, http.StatusInternalServerError, "Could not save your decorations")
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{Profile: profile})
}

func (h *ProfileHandler) RecordVisit(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	ownerID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req VisitRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err = h.profileService.RecordVisit(r.Context(), ownerID, user.ID, req.Message)
	if errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "House not found")
		return
	}
	if err != nil {
		log.Printf("Error recording visit: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ProfileMessageResponse{Message: "Visit recorded"})
}

func (h *ProfileHandler) ListVisits(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit := 0
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	visits, err := h.profileService.ListVisits(r.Context(), user.ID, limit)
	if err != nil {
		log.Printf("Error listing visits: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, VisitListResponse{Visits: visits})
}

func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, h.profileService.SetAvatar)
}

func (h *ProfileHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, h.profileService.SetCover)
}

func (h *ProfileHandler) upload(w http.ResponseWriter, r *http.Request, store func(ctx context.Context, userID uuid.UUID, data []byte) (*models.Profile, error)) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	data, problem := readUploadedImage(w, r, h.maxUploadBytes)
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	profile, err := store(r.Context(), user.ID, data)
	switch {
	case errors.Is(err, services.ErrUnsupportedImage):
		writeError(w, http.StatusBadRequest, "Unsupported image format")
		return
	case errors.Is(err, services.ErrBackgroundLocked):
		writeError(w, http.StatusForbidden, "Custom backgrounds are not unlocked yet")
		return
	case errors.Is(err, services.ErrStorageNotAvailable):
		writeError(w, http.StatusServiceUnavailable, "Image uploads are not available")
		return
	case err != nil:
		log.Printf("Error uploading image: %v", err)
		writeError(w, http.StatusInternalServerError, "Could not upload image")
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{Profile: profile})
}

// HouseCard serves a PNG preview of the house for link unfurls.
func (h *ProfileHandler) HouseCard(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "id")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	data, err := h.profileService.HouseCard(r.Context(), userID)
	if errors.Is(err, services.ErrProfileNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.Printf("Error rendering house card: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("Error writing house card: %v", err)
	}
}

const (
	msgMissingUpload  = "No file uploaded"
	msgUploadTooLarge = "File is too large"
	msgNotAnImage     = "File must be an image"
)

// readUploadedImage returns the "file" form field, or a user-facing reason
// why it could not be read.
func readUploadedImage(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<10)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, msgUploadTooLarge
		}
		return nil, msgMissingUpload
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, msgMissingUpload
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, msgNotAnImage
	}
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil || len(data) == 0 {
		return nil, msgMissingUpload
	}
	if int64(len(data)) > maxBytes {
		return nil, msgUploadTooLarge
	}
	return data, ""
}
