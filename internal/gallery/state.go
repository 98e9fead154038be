// Package gallery holds per-owner photo and video albums in memory. All
// mutations go through Reduce so the transitions can be tested without a
// store.
package gallery

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAlbumNotFound  = errors.New("album not found")
	ErrItemNotFound   = errors.New("gallery item not found")
	ErrTitleRequired  = errors.New("album title is required")
	ErrInvalidPrivacy = errors.New("invalid privacy setting")
	ErrNoFiles        = errors.New("no files to upload")
	ErrUnknownAction  = errors.New("unknown gallery action")
)

type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyFriends Privacy = "friends"
	PrivacyPrivate Privacy = "private"
)

func IsValidPrivacy(p Privacy) bool {
	switch p {
	case PrivacyPublic, PrivacyFriends, PrivacyPrivate:
		return true
	}
	return false
}

type ItemType string

const (
	ItemPhoto ItemType = "photo"
	ItemVideo ItemType = "video"
)

type Album struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CoverURL    string    `json:"cover_url,omitempty"`
	Privacy     Privacy   `json:"privacy"`
	IsFeatured  bool      `json:"is_featured"`
	ItemCount   int       `json:"item_count"`
	ViewCount   int       `json:"view_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Item struct {
	ID           uuid.UUID `json:"id"`
	AlbumID      uuid.UUID `json:"album_id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Type         ItemType  `json:"type"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Location     string    `json:"location,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	Likes        int       `json:"likes"`
	Comments     int       `json:"comments"`
	Views        int       `json:"views"`
	IsLiked      bool      `json:"is_liked"`
	IsBookmarked bool      `json:"is_bookmarked"`
	CreatedAt    time.Time `json:"created_at"`

	// LikedBy holds one entry per user who likes the item. IsLiked is
	// derived from it for whoever is viewing.
	LikedBy []uuid.UUID `json:"-"`
}

func (it Item) IsLikedBy(userID uuid.UUID) bool {
	return slices.Contains(it.LikedBy, userID)
}

// Audience is who is looking at a gallery.
type Audience struct {
	Owner  bool
	Friend bool
}

// CanSee reports whether the audience may see album a.
func (au Audience) CanSee(a Album) bool {
	switch {
	case au.Owner, a.Privacy == PrivacyPublic:
		return true
	case a.Privacy == PrivacyFriends:
		return au.Friend
	}
	return false
}

// State is one owner's gallery. Albums are newest first.
type State struct {
	Albums []Album `json:"albums"`
	Items  []Item  `json:"items"`
}

func (s State) clone() State {
	out := State{
		Albums: make([]Album, len(s.Albums)),
		Items:  make([]Item, len(s.Items)),
	}
	copy(out.Albums, s.Albums)
	copy(out.Items, s.Items)
	for i := range out.Items {
		if s.Items[i].Tags != nil {
			out.Items[i].Tags = append([]string(nil), s.Items[i].Tags...)
		}
		out.Items[i].LikedBy = slices.Clone(s.Items[i].LikedBy)
	}
	return out
}

// ForViewer returns the albums and items aud may see, with IsLiked set for
// viewerID.
func (s State) ForViewer(viewerID uuid.UUID, aud Audience) State {
	out := State{Albums: []Album{}, Items: []Item{}}
	visible := make(map[uuid.UUID]bool, len(s.Albums))
	for _, a := range s.Albums {
		if aud.CanSee(a) {
			visible[a.ID] = true
			out.Albums = append(out.Albums, a)
		}
	}
	for _, it := range s.Items {
		if !visible[it.AlbumID] {
			continue
		}
		it.Tags = slices.Clone(it.Tags)
		it.LikedBy = slices.Clone(it.LikedBy)
		it.IsLiked = it.IsLikedBy(viewerID)
		out.Items = append(out.Items, it)
	}
	return out
}

func (s State) albumIndex(id uuid.UUID) int {
	for i := range s.Albums {
		if s.Albums[i].ID == id {
			return i
		}
	}
	return -1
}

func (s State) itemIndex(id uuid.UUID) int {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Album returns the album with id, if present.
func (s State) Album(id uuid.UUID) (Album, bool) {
	if i := s.albumIndex(id); i >= 0 {
		return s.Albums[i], true
	}
	return Album{}, false
}

func (s State) Item(id uuid.UUID) (Item, bool) {
	if i := s.itemIndex(id); i >= 0 {
		return s.Items[i], true
	}
	return Item{}, false
}
