package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tville/internal/gallery"
	"github.com/HammerMeetNail/tville/internal/models"
	"github.com/HammerMeetNail/tville/internal/services"
)

type galleryUploadPart struct {
	name        string
	contentType string
	data        []byte
}

func newGalleryUploadRequest(t *testing.T, target string, parts []galleryUploadPart, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="files"; filename="`+p.name+`"`)
		header.Set("Content-Type", p.contentType)
		w, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := w.Write(p.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestGalleryHandler_View_Unauthenticated(t *testing.T) {
	handler := NewGalleryHandler(&mockGalleryService{}, 0)
	req := httptest.NewRequest(http.MethodGet, "/api/users/me/gallery", nil)
	req.SetPathValue("id", "me")
	rr := httptest.NewRecorder()

	handler.View(rr, req)

	assertErrorResponse(t, rr, http.StatusUnauthorized, "Authentication required")
}

func TestGalleryHandler_View_ParsesFilters(t *testing.T) {
	user := &models.User{ID: uuid.New()}
	albumID := uuid.New()
	var gotAlbum gallery.AlbumFilter
	var gotItem gallery.ItemFilter
	handler := NewGalleryHandler(&mockGalleryService{
		ViewFunc: func(ctx context.Context, ownerID, viewerID uuid.UUID, albumFilter gallery.AlbumFilter, itemFilter gallery.ItemFilter) (*services.GalleryView, error) {
			if ownerID != user.ID || viewerID != user.ID {
				t.Fatalf("expected own gallery, got owner %v viewer %v", ownerID, viewerID)
			}
			gotAlbum, gotItem = albumFilter, itemFilter
			return &services.GalleryView{}, nil
		},
	}, 0)

	target := "/api/users/me/gallery?album_q=beach&privacy=friends&album_sort=name&album=" + albumID.String() + "&type=photo&q=sun&bookmarked=1&sort=likes"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.SetPathValue("id", "me")
	req = req.WithContext(SetUserInContext(req.Context(), user))
	rr := httptest.NewRecorder()

	handler.View(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotAlbum.Search != "beach" || gotAlbum.Privacy != gallery.PrivacyFriends || gotAlbum.Sort != "name" {
		t.Fatalf("unexpected album filter: %+v", gotAlbum)
	}
	if gotItem.AlbumID != albumID || gotItem.Type != gallery.ItemPhoto || gotItem.Search != "sun" || !gotItem.Bookmarked || gotItem.Sort != "likes" {
		t.Fatalf("unexpected item filter: %+v", gotItem)
	}
}

func TestGalleryHandler_View_InvalidFilters(t *testing.T) {
	tests := []struct {
		query   string
		message string
	}{
		{"privacy=secret", "Invalid privacy filter"},
		{"album=nope", "Invalid album ID"},
		{"type=audio", "Invalid item type"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			handler := NewGalleryHandler(&mockGalleryService{}, 0)
			req := httptest.NewRequest(http.MethodGet, "/api/users/me/gallery?"+tt.query, nil)
			req.SetPathValue("id", "me")
			req = req.WithContext(SetUserInContext(req.Context(), &models.User{ID: uuid.New()}))
			rr := httptest.NewRecorder()

			handler.View(rr, req)

			assertErrorResponse(t, rr, http.StatusBadRequest, tt.message)
		})
	}
}

func TestGalleryHandler_CreateAlbum_TitleRequired(t *testing.T) {
	handler := NewGalleryHandler(&mockGalleryService{
		CreateAlbumFunc: func(ownerID uuid.UUID, in gallery.NewAlbum) (gallery.Album, error) {
			return gallery.Album{}, gallery.ErrTitleRequired
		},
	}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/gallery/albums", strings.NewReader(`{"title":"  ","privacy":"public"}`))
	req = req.WithContext(SetUserInContext(req.Context(), &models.User{ID: uuid.New()}))
	rr := httptest.NewRecorder()

	handler.CreateAlbum(rr, req)

	assertErrorResponse(t, rr, http.StatusBadRequest, "Album title is required")
}

func TestGalleryHandler_CreateAlbum_Success(t *testing.T) {
	user := &models.User{ID: uuid.New()}
	handler := NewGalleryHandler(&mockGalleryService{
		CreateAlbumFunc: func(ownerID uuid.UUID, in gallery.NewAlbum) (gallery.Album, error) {
			return gallery.Album{ID: uuid.New(), OwnerID: ownerID, Title: in.Title, Privacy: in.Privacy}, nil
		},
	}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/gallery/albums", strings.NewReader(`{"title":"Summer","privacy":"friends"}`))
	req = req.WithContext(SetUserInContext(req.Context(), user))
	rr := httptest.NewRecorder()

	handler.CreateAlbum(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	var response GalleryAlbumResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Album.Title != "Summer" || response.Album.OwnerID != user.ID {
		t.Fatalf("unexpected album: %+v", response.Album)
	}
}

func TestGalleryHandler_Upload_RejectsNonMedia(t *testing.T) {
	handler := NewGalleryHandler(&mockGalleryService{}, 0)
	albumID := uuid.New()
	req := newGalleryUploadRequest(t, "/api/gallery/albums/"+albumID.String()+"/items", []galleryUploadPart{
		{name: "notes.txt", contentType: "text/plain", data: []byte("hello")},
	}, nil)
	req.SetPathValue("id", albumID.String())
	req = req.WithContext(SetUserInContext(req.Context(), &models.User{ID: uuid.New()}))
	rr := httptest.NewRecorder()

	handler.Upload(rr, req)

	assertErrorResponse(t, rr, http.StatusBadRequest, "Only photos and videos can be uploaded")
}

func TestGalleryHandler_Upload_NoFiles(t *testing.T) {
	handler := NewGalleryHandler(&mockGalleryService{}, 0)
	albumID := uuid.New()
	req := newGalleryUploadRequest(t, "/api/gallery/albums/"+albumID.String()+"/items", nil, map[string]string{"description": "x"})
	req.SetPathValue("id", albumID.String())
	req = req.WithContext(SetUserInContext(req.Context(), &models.User{ID: uuid.New()}))
	rr := httptest.NewRecorder()

	handler.Upload(rr, req)

	assertErrorResponse(t, rr, http.StatusBadRequest, "No files uploaded")
}

func TestGalleryHandler_Upload_PassesMeta(t *testing.T) {
	user := &models.User{ID: uuid.New()}
	albumID := uuid.New()
	var gotFiles []services.GalleryFile
	var gotMeta gallery.UploadMeta
	handler := NewGalleryHandler(&mockGalleryService{
		UploadFunc: func(ctx context.Context, ownerID, gotAlbumID uuid.UUID, files []services.GalleryFile, meta gallery.UploadMeta, progress func(int)) ([]gallery.Item, error) {
			if gotAlbumID != albumID {
				t.Fatalf("expected album %v, got %v", albumID, gotAlbumID)
			}
			if progress != nil {
				t.Fatal("expected no progress callback without streaming")
			}
			gotFiles, gotMeta = files, meta
			return []gallery.Item{{ID: uuid.New(), AlbumID: albumID, Type: gallery.ItemPhoto}}, nil
		},
	}, 0)

	req := newGalleryUploadRequest(t, "/api/gallery/albums/"+albumID.String()+"/items", []galleryUploadPart{
		{name: "beach.png", contentType: "image/png", data: []byte("png-bytes")},
		{name: "waves.mp4", contentType: "video/mp4", data: []byte("mp4-bytes")},
	}, map[string]string{"description": " Summer trip ", "location": "Lisbon", "tags": "sea, sun,,sand "})
	req.SetPathValue("id", albumID.String())
	req = req.WithContext(SetUserInContext(req.Context(), user))
	rr := httptest.NewRecorder()

	handler.Upload(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	if len(gotFiles) != 2 || gotFiles[0].Name != "beach.png" || string(gotFiles[1].Data) != "mp4-bytes" {
		t.Fatalf("unexpected files: %+v", gotFiles)
	}
	if gotMeta.Description != "Summer trip" || gotMeta.Location != "Lisbon" {
		t.Fatalf("unexpected meta: %+v", gotMeta)
	}
	if strings.Join(gotMeta.Tags, "|") != "sea|sun|sand" {
		t.Fatalf("unexpected tags: %v", gotMeta.Tags)
	}
}

func TestGalleryHandler_Upload_StreamsProgress(t *testing.T) {
	albumID := uuid.New()
	handler := NewGalleryHandler(&mockGalleryService{
		UploadFunc: func(ctx context.Context, ownerID, albumID uuid.UUID, files []services.GalleryFile, meta gallery.UploadMeta, progress func(int)) ([]gallery.Item, error) {
			progress(50)
			progress(100)
			return []gallery.Item{{ID: uuid.New(), AlbumID: albumID}}, nil
		},
	}, 0)

	req := newGalleryUploadRequest(t, "/api/gallery/albums/"+albumID.String()+"/items?stream=1", []galleryUploadPart{
		{name: "beach.jpg", contentType: "image/jpeg", data: []byte("jpeg-bytes")},
	}, nil)
	req.SetPathValue("id", albumID.String())
	req = req.WithContext(SetUserInContext(req.Context(), &models.User{ID: uuid.New()}))
	rr := httptest.NewRecorder()

	handler.Upload(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("expected ndjson, got %q", ct)
	}

	var events []galleryEvent
	scanner := bufio.NewScanner(rr.Body)
	for scanner.Scan() {
		var ev galleryEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("decode event %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Progress == nil || *events[0].Progress != 50 {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if len(events[2].Items) != 1 {
		t.Fatalf("expected items in last event, got %+v", events[2])
	}
}

func TestGalleryHandler_ToggleLike_HiddenItem(t *testing.T) {
	ownerID := uuid.New()
	viewer := &models.User{ID: uuid.New()}
	itemID := uuid.New()
	handler := NewGalleryHandler(&mockGalleryService{
		ToggleLikeFunc: func(ctx context.Context, gotOwnerID, viewerID, gotItemID uuid.UUID) (gallery.Item, error) {
			if gotOwnerID != ownerID || viewerID != viewer.ID || gotItemID != itemID {
				t.Fatalf("unexpected ids: owner=%s viewer=%s item=%s", gotOwnerID, viewerID, gotItemID)
			}
			return gallery.Item{}, gallery.ErrItemNotFound
		},
	}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/users/"+ownerID.String()+"/gallery/items/"+itemID.String()+"/like", nil)
	req.SetPathValue("id", ownerID.String())
	req.SetPathValue("item", itemID.String())
	req = req.WithContext(SetUserInContext(req.Context(), viewer))
	rr := httptest.NewRecorder()

	handler.ToggleLike(rr, req)

	assertErrorResponse(t, rr, http.StatusNotFound, "Item not found")
}

func TestGalleryHandler_ToggleLike_Own(t *testing.T) {
	user := &models.User{ID: uuid.New()}
	itemID := uuid.New()
	handler := NewGalleryHandler(&mockGalleryService{
		ToggleLikeFunc: func(ctx context.Context, ownerID, viewerID, gotItemID uuid.UUID) (gallery.Item, error) {
			if ownerID != user.ID || viewerID != user.ID {
				t.Fatalf("expected own gallery, got owner=%s viewer=%s", ownerID, viewerID)
			}
			return gallery.Item{ID: gotItemID, OwnerID: ownerID, Likes: 1, IsLiked: true}, nil
		},
	}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/users/me/gallery/items/"+itemID.String()+"/like", nil)
	req.SetPathValue("id", "me")
	req.SetPathValue("item", itemID.String())
	req = req.WithContext(SetUserInContext(req.Context(), user))
	rr := httptest.NewRecorder()

	handler.ToggleLike(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response GalleryItemResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !response.Item.IsLiked || response.Item.Likes != 1 {
		t.Fatalf("unexpected item: %+v", response.Item)
	}
}

func TestGalleryHandler_DeleteAlbum_NotFound(t *testing.T) {
	handler := NewGalleryHandler(&mockGalleryService{
		DeleteAlbumFunc: func(ctx context.Context, ownerID, albumID uuid.UUID) error {
			return gallery.ErrAlbumNotFound
		},
	}, 0)

	albumID := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/gallery/albums/"+albumID.String(), nil)
	req.SetPathValue("id", albumID.String())
	req = req.WithContext(SetUserInContext(req.Context(), &models.User{ID: uuid.New()}))
	rr := httptest.NewRecorder()

	handler.DeleteAlbum(rr, req)

	assertErrorResponse(t, rr, http.StatusNotFound, "Album not found")
}

func TestSplitTags(t *testing.T) {
	if got := splitTags(""); got != nil {
		t.Fatalf("expected nil tags, got %v", got)
	}
	if got := splitTags(" a ,b,, c"); strings.Join(got, ",") != "a,b,c" {
		t.Fatalf("unexpected tags: %v", got)
	}
}
