package gallery

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds one owner's State and serialises dispatches.
type Store struct {
	mu      sync.RWMutex
	ownerID uuid.UUID
	state   State
	now     func() time.Time
	newID   func() uuid.UUID
}

func NewStore(ownerID uuid.UUID) *Store {
	return &Store{
		ownerID: ownerID,
		now:     time.Now,
		newID:   uuid.New,
	}
}

func (s *Store) OwnerID() uuid.UUID {
	return s.ownerID
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Dispatch reduces a into the store. The state is replaced only when the
// reducer succeeds.
func (s *Store) Dispatch(a Action) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Reduce(s.state, a)
	if err != nil {
		return s.state.clone(), err
	}
	s.state = next
	return next.clone(), nil
}

type NewAlbum struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	CoverURL    string  `json:"cover_url"`
	Privacy     Privacy `json:"privacy"`
}

func (s *Store) CreateAlbum(in NewAlbum) (Album, error) {
	id := s.newID()
	next, err := s.Dispatch(CreateAlbum{
		ID:          id,
		OwnerID:     s.ownerID,
		Title:       in.Title,
		Description: in.Description,
		CoverURL:    in.CoverURL,
		Privacy:     in.Privacy,
		At:          s.now().UTC(),
	})
	if err != nil {
		return Album{}, err
	}
	album, _ := next.Album(id)
	return album, nil
}

type UploadMeta struct {
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Tags        []string `json:"tags"`
}

// Upload adds already stored files to an album and returns the new items.
// Files without an ID get one.
func (s *Store) Upload(albumID uuid.UUID, files []UploadedFile, meta UploadMeta) ([]Item, error) {
	withIDs := make([]UploadedFile, len(files))
	for i, f := range files {
		if f.ID == uuid.Nil {
			f.ID = s.newID()
		}
		withIDs[i] = f
	}

	next, err := s.Dispatch(UploadItems{
		AlbumID:     albumID,
		OwnerID:     s.ownerID,
		Files:       withIDs,
		Description: meta.Description,
		Location:    meta.Location,
		Tags:        meta.Tags,
		At:          s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(withIDs))
	for _, f := range withIDs {
		if it, ok := next.Item(f.ID); ok {
			items = append(items, it)
		}
	}
	return items, nil
}

// ToggleLike flips userID's like on an item. Visibility to aud is checked
// under the same lock as the toggle; a hidden item is ErrItemNotFound.
func (s *Store) ToggleLike(itemID, userID uuid.UUID, aud Audience) (Item, error) {
	return s.dispatchItem(ToggleLike{ItemID: itemID, UserID: userID, Audience: aud}, itemID)
}

func (s *Store) ToggleBookmark(itemID uuid.UUID) (Item, error) {
	return s.dispatchItem(ToggleBookmark{ItemID: itemID}, itemID)
}

func (s *Store) dispatchItem(a Action, itemID uuid.UUID) (Item, error) {
	next, err := s.Dispatch(a)
	if err != nil {
		return Item{}, err
	}
	it, _ := next.Item(itemID)
	return it, nil
}

// DeleteAlbum removes the album and returns the items that were in it so
// the caller can release their stored files.
func (s *Store) DeleteAlbum(albumID uuid.UUID) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []Item
	for _, it := range s.state.Items {
		if it.AlbumID == albumID {
			removed = append(removed, it)
		}
	}
	next, err := Reduce(s.state, DeleteAlbum{AlbumID: albumID})
	if err != nil {
		return nil, err
	}
	s.state = next
	return removed, nil
}

func (s *Store) FeatureAlbum(albumID uuid.UUID) (Album, error) {
	next, err := s.Dispatch(FeatureAlbum{AlbumID: albumID})
	if err != nil {
		return Album{}, err
	}
	album, _ := next.Album(albumID)
	return album, nil
}

func (s *Store) DeleteItem(itemID uuid.UUID) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.state.Item(itemID)
	if !ok {
		return Item{}, ErrItemNotFound
	}
	next, err := Reduce(s.state, DeleteItem{ItemID: itemID, At: s.now().UTC()})
	if err != nil {
		return Item{}, err
	}
	s.state = next
	return it, nil
}
