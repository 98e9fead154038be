package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tville/internal/models"
	"github.com/HammerMeetNail/tville/internal/services"
)

type ScrapHandler struct {
	scrapService services.ScrapServiceInterface
}

func NewScrapHandler(scrapService services.ScrapServiceInterface) *ScrapHandler {
	return &ScrapHandler{scrapService: scrapService}
}

type CreateScrapRequest struct {
	Content     string                   `json:"content"`
	ParentID    *string                  `json:"parent_id,omitempty"`
	Attachments []models.ScrapAttachment `json:"attachments,omitempty"`
}

type ScrapListResponse struct {
	Scraps []models.Scrap `json:"scraps"`
}

type ScrapResponse struct {
	Scrap   *models.Scrap `json:"scrap,omitempty"`
	Message string        `json:"message,omitempty"`
}

// List returns the guestbook of the profile in the path. ?parent=<id>
// returns the replies to one scrap.
func (h *ScrapHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	profileID, err := pathUserID(r, "id", user)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var parentID *uuid.UUID
	if parentParam := r.URL.Query().Get("parent"); parentParam != "" {
		parsed, err := uuid.Parse(parentParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid parent ID")
			return
		}
		parentID = &parsed
	}

	scraps, err := h.scrapService.List(r.Context(), profileID, parentID, user.ID)
	if err != nil {
		log.Printf("Error listing scraps: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load scraps")
		return
	}

	writeJSON(w, http.StatusOK, ScrapListResponse{Scraps: scraps})
}

func (h *ScrapHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	profileID, err := pathUserID(r, "id", user)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req CreateScrapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	params := models.CreateScrapParams{
		ProfileID:   profileID,
		AuthorID:    user.ID,
		Content:     req.Content,
		Attachments: req.Attachments,
	}
	if req.ParentID != nil && *req.ParentID != "" {
		parentID, err := uuid.Parse(*req.ParentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid parent ID")
			return
		}
		params.ParentID = &parentID
	}

	scrap, err := h.scrapService.Create(r.Context(), params)
	switch {
	case errors.Is(err, services.ErrScrapContentInvalid):
		writeError(w, http.StatusBadRequest, "Scrap must be between 1 and 2000 characters")
		return
	case errors.Is(err, services.ErrInvalidAttachment):
		writeError(w, http.StatusBadRequest, "Invalid attachment")
		return
	case errors.Is(err, services.ErrParentScrapMismatch):
		writeError(w, http.StatusBadRequest, "Replies must stay on the same house")
		return
	case errors.Is(err, services.ErrScrapNotFound):
		writeError(w, http.StatusNotFound, "Scrap not found")
		return
	case errors.Is(err, services.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "House not found")
		return
	case err != nil:
		log.Printf("Error creating scrap: %v", err)
		writeError(w, http.StatusInternalServerError, "Could not send scrap")
		return
	}

	writeJSON(w, http.StatusCreated, ScrapResponse{Scrap: scrap})
}

func (h *ScrapHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	scrapID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scrap ID")
		return
	}

	err = h.scrapService.Delete(r.Context(), scrapID, user.ID)
	if errors.Is(err, services.ErrScrapNotFound) {
		writeError(w, http.StatusNotFound, "Scrap not found")
		return
	}
	if err != nil {
		log.Printf("Error deleting scrap: %v", err)
		writeError(w, http.StatusInternalServerError, "Could not delete scrap")
		return
	}

	writeJSON(w, http.StatusOK, ScrapResponse{Message: "Scrap deleted"})
}

func (h *ScrapHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	scrapID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scrap ID")
		return
	}

	liked, likes, err := h.scrapService.ToggleLike(r.Context(), scrapID, user.ID)
	if errors.Is(err, services.ErrScrapNotFound) {
		writeError(w, http.StatusNotFound, "Scrap not found")
		return
	}
	if err != nil {
		log.Printf("Error toggling scrap like: %v", err)
		writeError(w, http.StatusInternalServerError, "Could not like scrap")
		return
	}

	writeJSON(w, http.StatusOK, models.ScrapLikeResult{ScrapID: scrapID, Liked: liked, Likes: likes})
}
