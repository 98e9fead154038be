package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tville/internal/gallery"
	"github.com/HammerMeetNail/tville/internal/logging"
)

// GalleryFile is one uploaded file as received by the HTTP layer.
type GalleryFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// GalleryView is a filtered gallery with its derived numbers.
type GalleryView struct {
	Albums       []gallery.Album       `json:"albums"`
	Items        []gallery.Item        `json:"items"`
	Stats        gallery.Stats         `json:"stats"`
	Achievements []gallery.Achievement `json:"achievements"`
}

// GalleryService keeps one in-memory gallery per owner. Gallery state is
// never written to Postgres; only the media bytes go to the object store.
type GalleryService struct {
	db               DBConn
	objects          ObjectStore
	progressInterval time.Duration

	mu     sync.Mutex
	stores map[uuid.UUID]*gallery.Store
}

func NewGalleryService(db DBConn, objects ObjectStore) *GalleryService {
	return &GalleryService{
		db:               db,
		objects:          objects,
		progressInterval: gallery.DefaultTickEvery,
		stores:           make(map[uuid.UUID]*gallery.Store),
	}
}

func (s *GalleryService) storeFor(ownerID uuid.UUID) *gallery.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[ownerID]
	if !ok {
		st = gallery.NewStore(ownerID)
		s.stores[ownerID] = st
	}
	return st
}

// View returns ownerID's gallery as seen by viewerID. Other viewers only see
// public albums, plus friends-only albums when they are friends.
func (s *GalleryService) View(ctx context.Context, ownerID, viewerID uuid.UUID, albumFilter gallery.AlbumFilter, itemFilter gallery.ItemFilter) (*GalleryView, error) {
	aud, err := s.audienceFor(ctx, ownerID, viewerID)
	if err != nil {
		return nil, err
	}
	state := s.storeFor(ownerID).Snapshot().ForViewer(viewerID, aud)

	stats := gallery.ComputeStats(state)
	return &GalleryView{
		Albums:       gallery.FilterAlbums(state.Albums, albumFilter),
		Items:        gallery.FilterItems(state.Items, itemFilter),
		Stats:        stats,
		Achievements: gallery.Achievements(stats),
	}, nil
}

func (s *GalleryService) audienceFor(ctx context.Context, ownerID, viewerID uuid.UUID) (gallery.Audience, error) {
	if viewerID == ownerID {
		return gallery.Audience{Owner: true}, nil
	}
	if s.db == nil {
		return gallery.Audience{}, nil
	}
	friends, err := isFriend(ctx, s.db, ownerID, viewerID)
	if err != nil {
		return gallery.Audience{}, err
	}
	return gallery.Audience{Friend: friends}, nil
}

func (s *GalleryService) CreateAlbum(ownerID uuid.UUID, in gallery.NewAlbum) (gallery.Album, error) {
	return s.storeFor(ownerID).CreateAlbum(in)
}

// Upload stores each file, with a thumbnail for photos, and then adds them
// to the album in one step. progress, when set, receives simulated
// percentages while the files are stored and 100 once the album is updated.
func (s *GalleryService) Upload(ctx context.Context, ownerID, albumID uuid.UUID, files []GalleryFile, meta gallery.UploadMeta, progress func(int)) ([]gallery.Item, error) {
	if len(files) == 0 {
		return nil, gallery.ErrNoFiles
	}
	if s.objects == nil {
		return nil, ErrStorageNotAvailable
	}
	store := s.storeFor(ownerID)
	if _, ok := store.Snapshot().Album(albumID); !ok {
		return nil, gallery.ErrAlbumNotFound
	}

	stopProgress := s.startProgress(ctx, progress)

	uploaded := make([]gallery.UploadedFile, 0, len(files))
	var keys []string
	for _, f := range files {
		id := uuid.New()
		base := fmt.Sprintf("gallery/%s/%s/%s", ownerID, albumID, id)

		url, err := s.objects.Put(ctx, base+extensionFor(f.ContentType), f.ContentType, f.Data)
		if err != nil {
			stopProgress()
			s.deleteObjects(ctx, keys)
			return nil, err
		}
		keys = append(keys, base+extensionFor(f.ContentType))

		file := gallery.UploadedFile{
			ID:          id,
			Name:        f.Name,
			ContentType: f.ContentType,
			Size:        int64(len(f.Data)),
			URL:         url,
		}
		if gallery.ItemTypeFor(f.ContentType) == gallery.ItemPhoto {
			thumbURL, thumbKey, err := s.storeThumbnail(ctx, base, f.Data)
			if err != nil {
				logging.Warn("Gallery thumbnail skipped", map[string]interface{}{
					"error": err.Error(),
					"file":  f.Name,
				})
			} else {
				file.ThumbnailURL = thumbURL
				keys = append(keys, thumbKey)
			}
		}
		uploaded = append(uploaded, file)
	}

	stopProgress()
	items, err := store.Upload(albumID, uploaded, meta)
	if err != nil {
		s.deleteObjects(ctx, keys)
		return nil, err
	}
	if progress != nil {
		progress(100)
	}
	return items, nil
}

func (s *GalleryService) storeThumbnail(ctx context.Context, base string, data []byte) (string, string, error) {
	thumb, contentType, err := MakeThumbnail(data, GalleryThumbnailSize)
	if err != nil {
		return "", "", err
	}
	key := base + "_thumb" + extensionFor(contentType)
	url, err := s.objects.Put(ctx, key, contentType, thumb)
	if err != nil {
		return "", "", err
	}
	return url, key, nil
}

// startProgress runs the simulated progress bar until the returned stop
// function is called. stop waits for the last report to finish and may be
// called more than once.
func (s *GalleryService) startProgress(ctx context.Context, progress func(int)) func() {
	if progress == nil {
		return func() {}
	}
	pctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = gallery.SimulateProgress(pctx, s.progressInterval, func(pct int) {
			if pct < 100 {
				progress(pct)
			}
		})
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// ToggleLike flips viewerID's like on an item in ownerID's gallery. Items
// the viewer cannot see are ErrItemNotFound.
func (s *GalleryService) ToggleLike(ctx context.Context, ownerID, viewerID, itemID uuid.UUID) (gallery.Item, error) {
	aud, err := s.audienceFor(ctx, ownerID, viewerID)
	if err != nil {
		return gallery.Item{}, err
	}
	return s.storeFor(ownerID).ToggleLike(itemID, viewerID, aud)
}

func (s *GalleryService) ToggleBookmark(ownerID, itemID uuid.UUID) (gallery.Item, error) {
	return s.storeFor(ownerID).ToggleBookmark(itemID)
}

func (s *GalleryService) FeatureAlbum(ownerID, albumID uuid.UUID) (gallery.Album, error) {
	return s.storeFor(ownerID).FeatureAlbum(albumID)
}

func (s *GalleryService) DeleteAlbum(ctx context.Context, ownerID, albumID uuid.UUID) error {
	removed, err := s.storeFor(ownerID).DeleteAlbum(albumID)
	if err != nil {
		return err
	}
	for _, it := range removed {
		s.deleteObjects(ctx, s.keysFor(it))
	}
	return nil
}

func (s *GalleryService) DeleteItem(ctx context.Context, ownerID, itemID uuid.UUID) error {
	removed, err := s.storeFor(ownerID).DeleteItem(itemID)
	if err != nil {
		return err
	}
	s.deleteObjects(ctx, s.keysFor(removed))
	return nil
}

// Forget drops an owner's gallery, used when the account is deleted.
func (s *GalleryService) Forget(ctx context.Context, ownerID uuid.UUID) {
	s.mu.Lock()
	st, ok := s.stores[ownerID]
	delete(s.stores, ownerID)
	s.mu.Unlock()
	if !ok {
		return
	}
	for _, it := range st.Snapshot().Items {
		s.deleteObjects(ctx, s.keysFor(it))
	}
}

func (s *GalleryService) keysFor(it gallery.Item) []string {
	base := fmt.Sprintf("gallery/%s/%s/%s", it.OwnerID, it.AlbumID, it.ID)
	keys := []string{base + extensionFor(it.ContentType)}
	if it.ThumbnailURL != "" {
		ext := ".jpg"
		if strings.HasSuffix(it.ThumbnailURL, ".png") {
			ext = ".png"
		}
		keys = append(keys, base+"_thumb"+ext)
	}
	return keys
}

func (s *GalleryService) deleteObjects(ctx context.Context, keys []string) {
	if s.objects == nil {
		return
	}
	for _, key := range keys {
		if err := s.objects.Delete(ctx, key); err != nil {
			logging.Warn("Failed to delete gallery object", map[string]interface{}{
				"error": err.Error(),
				"key":   key,
			})
		}
	}
}
