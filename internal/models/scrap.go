package models

import (
	"time"

	"github.com/google/uuid"
)

type AttachmentType string

const (
	AttachmentTypeImage AttachmentType = "image"
	AttachmentTypeGIF   AttachmentType = "gif"
)

type ScrapAttachment struct {
	Type AttachmentType `json:"type"`
	URL  string         `json:"url"`
}

const (
	MaxScrapLength      = 2000
	MaxScrapAttachments = 4
)

type Scrap struct {
	ID              uuid.UUID         `json:"id"`
	ProfileID       uuid.UUID         `json:"profile_id"`
	AuthorID        uuid.UUID         `json:"author_id"`
	ParentID        *uuid.UUID        `json:"parent_id,omitempty"`
	Content         string            `json:"content"`
	Attachments     []ScrapAttachment `json:"attachments"`
	Likes           int               `json:"likes"`
	LikedBy         []uuid.UUID       `json:"-"`
	LikedByMe       bool              `json:"liked_by_me"`
	AuthorCasaName  string            `json:"author_casa_name"`
	AuthorAvatarURL *string           `json:"author_avatar_url,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// IsLikedBy reports whether userID appears in the scrap's liker list.
func (s *Scrap) IsLikedBy(userID uuid.UUID) bool {
	for _, id := range s.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

type CreateScrapParams struct {
	ProfileID   uuid.UUID
	AuthorID    uuid.UUID
	ParentID    *uuid.UUID
	Content     string
	Attachments []ScrapAttachment
}

type ScrapLikeResult struct {
	ScrapID uuid.UUID `json:"scrap_id"`
	Liked   bool      `json:"liked"`
	Likes   int       `json:"likes"`
}
