package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeFriendRequestReceived  NotificationType = "friend_request_received"
	NotificationTypeFriendRequestAccepted  NotificationType = "friend_request_accepted"
	NotificationTypeScrapReceived          NotificationType = "scrap_received"
	NotificationTypeRecommendationReceived NotificationType = "recommendation_received"
)

// NotificationRetention is how long notifications are kept before the
// daily cleanup removes them.
const NotificationRetention = 90 * 24 * time.Hour

type Notification struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	Type             NotificationType `json:"type"`
	ActorUserID      *uuid.UUID       `json:"actor_user_id,omitempty"`
	ActorCasaName    *string          `json:"actor_casa_name,omitempty"`
	FriendshipID     *uuid.UUID       `json:"friendship_id,omitempty"`
	ScrapID          *uuid.UUID       `json:"scrap_id,omitempty"`
	RecommendationID *uuid.UUID       `json:"recommendation_id,omitempty"`
	ReadAt           *time.Time       `json:"read_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}
