package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tville/internal/models"
	"github.com/HammerMeetNail/tville/internal/services"
)

// LibraryHandler serves the library. Every successful mutation answers with
// a freshly rebuilt overview, so the client never patches its own copy.
type LibraryHandler struct {
	libraryService services.LibraryServiceInterface
}

func NewLibraryHandler(libraryService services.LibraryServiceInterface) *LibraryHandler {
	return &LibraryHandler{libraryService: libraryService}
}

type CreateLibraryItemRequest struct {
	Type       models.LibraryItemType   `json:"type"`
	Title      string                   `json:"title"`
	Creator    *string                  `json:"creator,omitempty"`
	CoverURL   *string                  `json:"cover_url,omitempty"`
	URL        *string                  `json:"url,omitempty"`
	Status     models.ConsumptionStatus `json:"status,omitempty"`
	Rating     *int                     `json:"rating,omitempty"`
	Notes      *string                  `json:"notes,omitempty"`
	IsFavorite bool                     `json:"is_favorite"`
}

type LibraryCommentRequest struct {
	Content string `json:"content"`
}

type SendRecommendationRequest struct {
	ToUserID string  `json:"to_user_id"`
	ItemID   string  `json:"item_id"`
	Note     *string `json:"note,omitempty"`
}

type LibraryResponse struct {
	Overview       *models.LibraryOverview       `json:"overview,omitempty"`
	Item           *models.LibraryItem           `json:"item,omitempty"`
	Comment        *models.LibraryItemComment    `json:"comment,omitempty"`
	Recommendation *models.LibraryRecommendation `json:"recommendation,omitempty"`
	Message        string                        `json:"message,omitempty"`
}

type LibraryCommentListResponse struct {
	Comments []models.LibraryItemComment `json:"comments"`
}

func (h *LibraryHandler) Overview(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	overview, err := h.libraryService.Overview(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error loading library: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load library")
		return
	}

	writeJSON(w, http.StatusOK, LibraryResponse{Overview: overview})
}

func (h *LibraryHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateLibraryItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := h.libraryService.AddItem(r.Context(), models.CreateLibraryItemParams{
		UserID:     user.ID,
		Type:       req.Type,
		Title:      req.Title,
		Creator:    req.Creator,
		CoverURL:   req.CoverURL,
		URL:        req.URL,
		Status:     req.Status,
		Rating:     req.Rating,
		Notes:      req.Notes,
		IsFavorite: req.IsFavorite,
	})
	if err != nil {
		h.writeMutationError(w, err, "Could not add item to library")
		return
	}

	h.respondWithOverview(w, r, user.ID, http.StatusCreated, LibraryResponse{Item: item})
}

func (h *LibraryHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	itemID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	var req models.UpdateLibraryItemParams
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := h.libraryService.UpdateItem(r.Context(), user.ID, itemID, req)
	if err != nil {
		h.writeMutationError(w, err, "Could not update item")
		return
	}

	h.respondWithOverview(w, r, user.ID, http.StatusOK, LibraryResponse{Item: item})
}

func (h *LibraryHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	h.itemAction(w, r, h.libraryService.DeleteItem, "Could not remove item", "Item removed")
}

func (h *LibraryHandler) LikeItem(w http.ResponseWriter, r *http.Request) {
	h.itemAction(w, r, h.libraryService.LikeItem, "Could not like item", "Item liked")
}

func (h *LibraryHandler) UnlikeItem(w http.ResponseWriter, r *http.Request) {
	h.itemAction(w, r, h.libraryService.UnlikeItem, "Could not remove like", "Like removed")
}

func (h *LibraryHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	h.itemAction(w, r, h.libraryService.DeleteComment, "Could not delete comment", "Comment deleted")
}

func (h *LibraryHandler) DeclineRecommendation(w http.ResponseWriter, r *http.Request) {
	h.itemAction(w, r, h.libraryService.DeclineRecommendation, "Could not decline recommendation", "Recommendation declined")
}

func (h *LibraryHandler) DeleteRecommendation(w http.ResponseWriter, r *http.Request) {
	h.itemAction(w, r, h.libraryService.DeleteRecommendation, "Could not delete recommendation", "Recommendation deleted")
}

// itemAction runs a write keyed by the {id} path value for the current user.
func (h *LibraryHandler) itemAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, userID, id uuid.UUID) error, failure, success string) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	if err := action(r.Context(), user.ID, id); err != nil {
		h.writeMutationError(w, err, failure)
		return
	}

	h.respondWithOverview(w, r, user.ID, http.StatusOK, LibraryResponse{Message: success})
}

func (h *LibraryHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	itemID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	comments, err := h.libraryService.ListComments(r.Context(), itemID)
	if err != nil {
		log.Printf("Error listing library comments: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load comments")
		return
	}

	writeJSON(w, http.StatusOK, LibraryCommentListResponse{Comments: comments})
}

func (h *LibraryHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	itemID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	var req LibraryCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	comment, err := h.libraryService.AddComment(r.Context(), user.ID, itemID, req.Content)
	if err != nil {
		h.writeMutationError(w, err, "Could not add comment")
		return
	}

	h.respondWithOverview(w, r, user.ID, http.StatusCreated, LibraryResponse{Comment: comment})
}

func (h *LibraryHandler) SendRecommendation(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SendRecommendationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	toUserID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	rec, err := h.libraryService.SendRecommendation(r.Context(), user.ID, toUserID, itemID, req.Note)
	if err != nil {
		h.writeMutationError(w, err, "Could not send recommendation")
		return
	}

	writeJSON(w, http.StatusCreated, LibraryResponse{Recommendation: rec, Message: "Recommendation sent"})
}

func (h *LibraryHandler) AcceptRecommendation(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	recID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recommendation ID")
		return
	}

	item, err := h.libraryService.AcceptRecommendation(r.Context(), user.ID, recID)
	if err != nil {
		h.writeMutationError(w, err, "Could not accept recommendation")
		return
	}

	h.respondWithOverview(w, r, user.ID, http.StatusOK, LibraryResponse{Item: item, Message: "Recommendation accepted"})
}

// respondWithOverview rebuilds the overview after a write. The write has
// already happened, so a failed rebuild still reports success without the
// overview.
func (h *LibraryHandler) respondWithOverview(w http.ResponseWriter, r *http.Request, userID uuid.UUID, status int, response LibraryResponse) {
	overview, err := h.libraryService.Overview(r.Context(), userID)
	if err != nil {
		log.Printf("Error reloading library: %v", err)
	} else {
		response.Overview = overview
	}
	writeJSON(w, status, response)
}

func (h *LibraryHandler) writeMutationError(w http.ResponseWriter, err error, failure string) {
	switch {
	case errors.Is(err, services.ErrInvalidLibraryItem):
		writeError(w, http.StatusBadRequest, failure+": check the type, title and status")
	case errors.Is(err, services.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, failure+": rating must be between 1 and 5")
	case errors.Is(err, services.ErrInvalidComment):
		writeError(w, http.StatusBadRequest, failure+": comment must be between 1 and 1000 characters")
	case errors.Is(err, services.ErrCannotRecommendSelf):
		writeError(w, http.StatusBadRequest, failure+": you cannot recommend to yourself")
	case errors.Is(err, services.ErrRecommendationNotFriend):
		writeError(w, http.StatusForbidden, failure+": recommendations can only be sent to friends")
	case errors.Is(err, services.ErrLibraryItemNotFound):
		writeError(w, http.StatusNotFound, failure+": item not found")
	case errors.Is(err, services.ErrCommentNotFound):
		writeError(w, http.StatusNotFound, failure+": comment not found")
	case errors.Is(err, services.ErrRecommendationNotFound):
		writeError(w, http.StatusNotFound, failure+": recommendation not found")
	default:
		log.Printf("%s: %v", failure, err)
		writeError(w, http.StatusInternalServerError, failure)
	}
}
