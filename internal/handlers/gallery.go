package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tville/internal/gallery"
	"github.com/HammerMeetNail/tville/internal/services"
)

const maxGalleryFiles = 20

type GalleryHandler struct {
	galleryService services.GalleryServiceInterface
	maxUploadBytes int64
}

func NewGalleryHandler(galleryService services.GalleryServiceInterface, maxUploadBytes int64) *GalleryHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &GalleryHandler{galleryService: galleryService, maxUploadBytes: maxUploadBytes}
}

type GalleryAlbumResponse struct {
	Album gallery.Album `json:"album"`
}

type GalleryItemResponse struct {
	Item gallery.Item `json:"item"`
}

type GalleryUploadResponse struct {
	Items []gallery.Item `json:"items"`
}

type GalleryMessageResponse struct {
	Message string `json:"message"`
}

// galleryEvent is one line of a streamed upload.
type galleryEvent struct {
	Progress *int           `json:"progress,omitempty"`
	Items    []gallery.Item `json:"items,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// View returns the gallery of the user in the path, filtered by query
// parameters: album_q, privacy, album_sort for albums and album, type, q,
// bookmarked, sort for items.
func (h *GalleryHandler) View(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	ownerID, err := pathUserID(r, "id", user)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	albumFilter, itemFilter, problem := galleryFilters(r)
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	view, err := h.galleryService.View(r.Context(), ownerID, user.ID, albumFilter, itemFilter)
	if err != nil {
		log.Printf("Error loading gallery: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load gallery")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func galleryFilters(r *http.Request) (gallery.AlbumFilter, gallery.ItemFilter, string) {
	q := r.URL.Query()
	albumFilter := gallery.AlbumFilter{
		Search:  q.Get("album_q"),
		Privacy: gallery.Privacy(q.Get("privacy")),
		Sort:    gallery.AlbumSort(q.Get("album_sort")),
	}
	if albumFilter.Privacy != "" && !gallery.IsValidPrivacy(albumFilter.Privacy) {
		return albumFilter, gallery.ItemFilter{}, "Invalid privacy filter"
	}

	itemFilter := gallery.ItemFilter{
		Type:       gallery.ItemType(q.Get("type")),
		Search:     q.Get("q"),
		Bookmarked: q.Get("bookmarked") == "1" || q.Get("bookmarked") == "true",
		Sort:       gallery.ItemSort(q.Get("sort")),
	}
	if albumParam := q.Get("album"); albumParam != "" {
		albumID, err := uuid.Parse(albumParam)
		if err != nil {
			return albumFilter, itemFilter, "Invalid album ID"
		}
		itemFilter.AlbumID = albumID
	}
	if itemFilter.Type != "" && itemFilter.Type != gallery.ItemPhoto && itemFilter.Type != gallery.ItemVideo {
		return albumFilter, itemFilter, "Invalid item type"
	}
	return albumFilter, itemFilter, ""
}

func (h *GalleryHandler) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req gallery.NewAlbum
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	album, err := h.galleryService.CreateAlbum(user.ID, req)
	if err != nil {
		writeGalleryError(w, err, "Could not create album")
		return
	}

	writeJSON(w, http.StatusCreated, GalleryAlbumResponse{Album: album})
}

// Upload accepts multipart "files" for the album in the path. With
// ?stream=1 the response is newline-delimited JSON: progress events
// followed by the created items.
func (h *GalleryHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	albumID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid album ID")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes*maxGalleryFiles)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid upload")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}
	if len(headers) > maxGalleryFiles {
		writeError(w, http.StatusBadRequest, "Too many files")
		return
	}

	files := make([]services.GalleryFile, 0, len(headers))
	for _, header := range headers {
		file, problem := h.readGalleryFile(header)
		if problem != "" {
			writeError(w, http.StatusBadRequest, problem)
			return
		}
		files = append(files, file)
	}

	meta := gallery.UploadMeta{
		Description: strings.TrimSpace(r.FormValue("description")),
		Location:    strings.TrimSpace(r.FormValue("location")),
		Tags:        splitTags(r.FormValue("tags")),
	}

	if r.URL.Query().Get("stream") != "1" {
		items, err := h.galleryService.Upload(r.Context(), user.ID, albumID, files, meta, nil)
		if err != nil {
			writeGalleryError(w, err, "Could not upload files")
			return
		}
		writeJSON(w, http.StatusCreated, GalleryUploadResponse{Items: items})
		return
	}

	stream := newEventStream(w)
	items, err := h.galleryService.Upload(r.Context(), user.ID, albumID, files, meta, func(pct int) {
		stream.send(galleryEvent{Progress: &pct})
	})
	if err != nil {
		if !errors.Is(err, gallery.ErrAlbumNotFound) && !errors.Is(err, services.ErrStorageNotAvailable) {
			log.Printf("Error uploading gallery files: %v", err)
		}
		stream.send(galleryEvent{Error: "Could not upload files"})
		return
	}
	stream.send(galleryEvent{Items: items})
}

func (h *GalleryHandler) readGalleryFile(header *multipart.FileHeader) (services.GalleryFile, string) {
	if header.Size > h.maxUploadBytes {
		return services.GalleryFile{}, "File is too large: " + header.Filename
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "video/") {
		return services.GalleryFile{}, "Only photos and videos can be uploaded"
	}
	f, err := header.Open()
	if err != nil {
		return services.GalleryFile{}, "Invalid upload"
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil || len(data) == 0 {
		return services.GalleryFile{}, "Invalid upload"
	}
	if int64(len(data)) > h.maxUploadBytes {
		return services.GalleryFile{}, "File is too large: " + header.Filename
	}
	return services.GalleryFile{Name: header.Filename, ContentType: contentType, Data: data}, ""
}

func splitTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// ToggleLike likes an item in the gallery of the user in the path. The item
// must be visible to the caller.
func (h *GalleryHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	ownerID, err := pathUserID(r, "id", user)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	itemID, err := pathUUID(r, "item")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	item, err := h.galleryService.ToggleLike(r.Context(), ownerID, user.ID, itemID)
	if err != nil {
		writeGalleryError(w, err, "Could not like item")
		return
	}

	writeJSON(w, http.StatusOK, GalleryItemResponse{Item: item})
}

func (h *GalleryHandler) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
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

	item, err := h.galleryService.ToggleBookmark(user.ID, itemID)
	if err != nil {
		writeGalleryError(w, err, "Could not bookmark item")
		return
	}

	writeJSON(w, http.StatusOK, GalleryItemResponse{Item: item})
}

func (h *GalleryHandler) FeatureAlbum(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	albumID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid album ID")
		return
	}

	album, err := h.galleryService.FeatureAlbum(user.ID, albumID)
	if err != nil {
		writeGalleryError(w, err, "Could not feature album")
		return
	}

	writeJSON(w, http.StatusOK, GalleryAlbumResponse{Album: album})
}

func (h *GalleryHandler) DeleteAlbum(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	albumID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid album ID")
		return
	}

	if err := h.galleryService.DeleteAlbum(r.Context(), user.ID, albumID); err != nil {
		writeGalleryError(w, err, "Could not delete album")
		return
	}

	writeJSON(w, http.StatusOK, GalleryMessageResponse{Message: "Album deleted"})
}

func (h *GalleryHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
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

	if err := h.galleryService.DeleteItem(r.Context(), user.ID, itemID); err != nil {
		writeGalleryError(w, err, "Could not delete item")
		return
	}

	writeJSON(w, http.StatusOK, GalleryMessageResponse{Message: "Item deleted"})
}

func writeGalleryError(w http.ResponseWriter, err error, failure string) {
	switch {
	case errors.Is(err, gallery.ErrTitleRequired):
		writeError(w, http.StatusBadRequest, "Album title is required")
	case errors.Is(err, gallery.ErrInvalidPrivacy):
		writeError(w, http.StatusBadRequest, "Invalid privacy setting")
	case errors.Is(err, gallery.ErrNoFiles):
		writeError(w, http.StatusBadRequest, "No files uploaded")
	case errors.Is(err, gallery.ErrAlbumNotFound):
		writeError(w, http.StatusNotFound, "Album not found")
	case errors.Is(err, gallery.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "Item not found")
	case errors.Is(err, services.ErrStorageNotAvailable):
		writeError(w, http.StatusServiceUnavailable, "Uploads are not available")
	default:
		log.Printf("%s: %v", failure, err)
		writeError(w, http.StatusInternalServerError, failure)
	}
}

// eventStream writes newline-delimited JSON and flushes after each line.
type eventStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	enc     *json.Encoder
	started bool
}

func newEventStream(w http.ResponseWriter) *eventStream {
	return &eventStream{w: w, enc: json.NewEncoder(w)}
}

func (s *eventStream) send(ev galleryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.w.Header().Set("Content-Type", "application/x-ndjson")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if err := s.enc.Encode(ev); err != nil {
		log.Printf("Error writing upload event: %v", err)
		return
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}
