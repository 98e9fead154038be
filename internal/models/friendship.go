package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendshipStatus string

const (
	FriendshipStatusPending  FriendshipStatus = "pending"
	FriendshipStatusAccepted FriendshipStatus = "accepted"
	FriendshipStatusRejected FriendshipStatus = "rejected"
)

const (
	// OnlineWindow is how recently a profile must have been touched to
	// count as online. The boundary is inclusive.
	OnlineWindow = 5 * time.Minute

	BestFriendScore = 100

	// ScrapInteractionPoints is added to a pair's interaction score each
	// time one leaves a scrap for the other.
	ScrapInteractionPoints = 5
)

type Friendship struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	FriendID         uuid.UUID        `json:"friend_id"`
	Status           FriendshipStatus `json:"status"`
	InteractionScore int              `json:"interaction_score"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Counterpart returns the member of the pair that is not userID.
func (f Friendship) Counterpart(userID uuid.UUID) uuid.UUID {
	if f.UserID == userID {
		return f.FriendID
	}
	return f.UserID
}

// Friend is the view of one accepted friendship from one side.
type Friend struct {
	FriendshipID     uuid.UUID `json:"friendship_id"`
	ID               uuid.UUID `json:"id"`
	CasaName         string    `json:"casa_name"`
	AvatarURL        *string   `json:"avatar_url,omitempty"`
	InteractionScore int       `json:"interaction_score"`
	MutualFriends    int       `json:"mutual_friends"`
	IsOnline         bool      `json:"is_online"`
	IsBestFriend     bool      `json:"is_best_friend"`
	LastSeenAt       time.Time `json:"last_seen_at"`
	Since            time.Time `json:"since"`
}

type FriendRequest struct {
	Friendship
	RequesterCasaName  string  `json:"requester_casa_name"`
	RequesterAvatarURL *string `json:"requester_avatar_url,omitempty"`
}

func IsOnline(lastSeen, now time.Time) bool {
	return now.Sub(lastSeen) <= OnlineWindow
}

func IsBestFriend(interactionScore int) bool {
	return interactionScore >= BestFriendScore
}
