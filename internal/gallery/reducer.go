package gallery

import (
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action is a gallery mutation. Identifiers and timestamps are carried in
// the action so Reduce stays deterministic.
type Action interface {
	isAction()
}

type CreateAlbum struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Title       string
	Description string
	CoverURL    string
	Privacy     Privacy
	At          time.Time
}

// UploadedFile is a file already written to the object store.
type UploadedFile struct {
	ID           uuid.UUID
	Name         string
	ContentType  string
	Size         int64
	URL          string
	ThumbnailURL string
}

type UploadItems struct {
	AlbumID     uuid.UUID
	OwnerID     uuid.UUID
	Files       []UploadedFile
	Description string
	Location    string
	Tags        []string
	At          time.Time
}

// ToggleLike flips UserID's like on an item. The item's album must be
// visible to Audience.
type ToggleLike struct {
	ItemID   uuid.UUID
	UserID   uuid.UUID
	Audience Audience
}

type ToggleBookmark struct {
	ItemID uuid.UUID
}

type DeleteAlbum struct {
	AlbumID uuid.UUID
}

// FeatureAlbum toggles the featured flag on one album and clears it on all
// others.
type FeatureAlbum struct {
	AlbumID uuid.UUID
}

type DeleteItem struct {
	ItemID uuid.UUID
	At     time.Time
}

func (CreateAlbum) isAction()    {}
func (UploadItems) isAction()    {}
func (ToggleLike) isAction()     {}
func (ToggleBookmark) isAction() {}
func (DeleteAlbum) isAction()    {}
func (FeatureAlbum) isAction()   {}
func (DeleteItem) isAction()     {}

// Reduce applies a to s and returns the new state. s is never modified; on
// error the returned state is s unchanged.
func Reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case CreateAlbum:
		return reduceCreateAlbum(s, a)
	case UploadItems:
		return reduceUploadItems(s, a)
	case ToggleLike:
		return reduceToggleLike(s, a)
	case ToggleBookmark:
		return reduceItem(s, a.ItemID, func(it *Item) {
			it.IsBookmarked = !it.IsBookmarked
		})
	case DeleteAlbum:
		return reduceDeleteAlbum(s, a)
	case FeatureAlbum:
		return reduceFeatureAlbum(s, a)
	case DeleteItem:
		return reduceDeleteItem(s, a)
	default:
		return s, ErrUnknownAction
	}
}

func reduceCreateAlbum(s State, a CreateAlbum) (State, error) {
	title := strings.TrimSpace(a.Title)
	if title == "" {
		return s, ErrTitleRequired
	}
	privacy := a.Privacy
	if privacy == "" {
		privacy = PrivacyFriends
	}
	if !IsValidPrivacy(privacy) {
		return s, ErrInvalidPrivacy
	}

	album := Album{
		ID:          a.ID,
		OwnerID:     a.OwnerID,
		Title:       title,
		Description: strings.TrimSpace(a.Description),
		CoverURL:    a.CoverURL,
		Privacy:     privacy,
		CreatedAt:   a.At,
		UpdatedAt:   a.At,
	}

	next := s.clone()
	next.Albums = append([]Album{album}, next.Albums...)
	return next, nil
}

func reduceUploadItems(s State, a UploadItems) (State, error) {
	if len(a.Files) == 0 {
		return s, ErrNoFiles
	}
	idx := s.albumIndex(a.AlbumID)
	if idx < 0 {
		return s, ErrAlbumNotFound
	}

	next := s.clone()
	for _, f := range a.Files {
		next.Items = append(next.Items, Item{
			ID:           f.ID,
			AlbumID:      a.AlbumID,
			OwnerID:      a.OwnerID,
			Type:         ItemTypeFor(f.ContentType),
			URL:          f.URL,
			ThumbnailURL: f.ThumbnailURL,
			Title:        titleFromFileName(f.Name),
			Description:  a.Description,
			Location:     a.Location,
			Tags:         append([]string(nil), a.Tags...),
			ContentType:  f.ContentType,
			Size:         f.Size,
			CreatedAt:    a.At,
		})
	}

	album := &next.Albums[idx]
	album.ItemCount += len(a.Files)
	album.UpdatedAt = a.At
	if album.CoverURL == "" {
		if f := a.Files[0]; f.ThumbnailURL != "" {
			album.CoverURL = f.ThumbnailURL
		} else {
			album.CoverURL = f.URL
		}
	}
	return next, nil
}

func reduceItem(s State, id uuid.UUID, fn func(*Item)) (State, error) {
	idx := s.itemIndex(id)
	if idx < 0 {
		return s, ErrItemNotFound
	}
	next := s.clone()
	fn(&next.Items[idx])
	return next, nil
}

func reduceToggleLike(s State, a ToggleLike) (State, error) {
	idx := s.itemIndex(a.ItemID)
	if idx < 0 {
		return s, ErrItemNotFound
	}
	album, ok := s.Album(s.Items[idx].AlbumID)
	if !ok || !a.Audience.CanSee(album) {
		return s, ErrItemNotFound
	}
	next := s.clone()
	it := &next.Items[idx]
	if i := slices.Index(it.LikedBy, a.UserID); i >= 0 {
		it.LikedBy = slices.Delete(it.LikedBy, i, i+1)
		it.Likes--
		it.IsLiked = false
	} else {
		it.LikedBy = append(it.LikedBy, a.UserID)
		it.Likes++
		it.IsLiked = true
	}
	return next, nil
}

func reduceDeleteAlbum(s State, a DeleteAlbum) (State, error) {
	if s.albumIndex(a.AlbumID) < 0 {
		return s, ErrAlbumNotFound
	}
	next := State{
		Albums: make([]Album, 0, len(s.Albums)-1),
		Items:  make([]Item, 0, len(s.Items)),
	}
	for _, al := range s.Albums {
		if al.ID != a.AlbumID {
			next.Albums = append(next.Albums, al)
		}
	}
	for _, it := range s.Items {
		if it.AlbumID != a.AlbumID {
			next.Items = append(next.Items, it)
		}
	}
	return next, nil
}

func reduceFeatureAlbum(s State, a FeatureAlbum) (State, error) {
	if s.albumIndex(a.AlbumID) < 0 {
		return s, ErrAlbumNotFound
	}
	next := s.clone()
	for i := range next.Albums {
		if next.Albums[i].ID == a.AlbumID {
			next.Albums[i].IsFeatured = !next.Albums[i].IsFeatured
		} else {
			next.Albums[i].IsFeatured = false
		}
	}
	return next, nil
}

func reduceDeleteItem(s State, a DeleteItem) (State, error) {
	idx := s.itemIndex(a.ItemID)
	if idx < 0 {
		return s, ErrItemNotFound
	}
	next := s.clone()
	albumID := next.Items[idx].AlbumID
	next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
	if ai := next.albumIndex(albumID); ai >= 0 {
		if next.Albums[ai].ItemCount > 0 {
			next.Albums[ai].ItemCount--
		}
		next.Albums[ai].UpdatedAt = a.At
	}
	return next, nil
}

// ItemTypeFor maps a MIME type to a gallery item type. Anything that is not
// an image is treated as video.
func ItemTypeFor(contentType string) ItemType {
	if strings.HasPrefix(contentType, "image/") {
		return ItemPhoto
	}
	return ItemVideo
}

func titleFromFileName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	if i := strings.Index(base, "."); i >= 0 {
		return base[:i]
	}
	return base
}
