package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tville/internal/models"
	"github.com/HammerMeetNail/tville/internal/services"
)

const (
	defaultNotificationPage = 20
	maxNotificationPage     = 100
)

type NotificationHandler struct {
	notificationService services.NotificationServiceInterface
}

func NewNotificationHandler(notificationService services.NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

type NotificationListResponse struct {
	Notifications []models.Notification `json:"notifications"`
	// NextBefore is the cursor for the following page, empty on the last one.
	NextBefore string `json:"next_before,omitempty"`
}

type NotificationUnreadCountResponse struct {
	Count int `json:"count"`
}

type NotificationMessageResponse struct {
	Message string `json:"message,omitempty"`
}

// List pages through the inbox newest first. Query: limit (1..100),
// before (RFC 3339 cursor) and unread=1.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	params, msg := parseNotificationQuery(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	notifications, err := h.notificationService.List(r.Context(), user.ID, params)
	if err != nil {
		log.Printf("Error listing notifications for %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := NotificationListResponse{Notifications: notifications}
	if resp.Notifications == nil {
		resp.Notifications = []models.Notification{}
	}
	if n := len(notifications); n > 0 && n == params.Limit {
		resp.NextBefore = notifications[n-1].CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseNotificationQuery(r *http.Request) (services.NotificationListParams, string) {
	q := r.URL.Query()
	params := services.NotificationListParams{
		Limit:      defaultNotificationPage,
		UnreadOnly: q.Get("unread") == "1",
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return params, "Invalid limit"
		}
		params.Limit = min(n, maxNotificationPage)
	}

	if raw := q.Get("before"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return params, "Invalid before timestamp"
		}
		params.Before = &before
	}
	return params, ""
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.withNotification(w, r, h.notificationService.MarkRead, "Notification marked as read")
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.withNotification(w, r, h.notificationService.Delete, "Notification deleted")
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.forInbox(w, r, h.notificationService.MarkAllRead, "Notifications marked as read")
}

func (h *NotificationHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	h.forInbox(w, r, h.notificationService.DeleteAll, "Notifications deleted")
}

// withNotification applies op to the {id} notification of the caller. Ids
// that belong to someone else look the same as missing ones.
func (h *NotificationHandler) withNotification(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID, uuid.UUID) error, done string) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	notificationID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	switch err := op(r.Context(), user.ID, notificationID); {
	case errors.Is(err, services.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "Notification not found")
	case err != nil:
		log.Printf("Error updating notification %s: %v", notificationID, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		writeJSON(w, http.StatusOK, NotificationMessageResponse{Message: done})
	}
}

func (h *NotificationHandler) forInbox(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) error, done string) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := op(r.Context(), user.ID); err != nil {
		log.Printf("Error updating inbox of %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, NotificationMessageResponse{Message: done})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	count, err := h.notificationService.UnreadCount(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error counting notifications: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, NotificationUnreadCountResponse{Count: count})
}
