package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tville/internal/gallery"
	"github.com/HammerMeetNail/tville/internal/models"
	"github.com/HammerMeetNail/tville/internal/services"
)

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d (body %s)", status, rr.Code, rr.Body.String())
	}
	var response ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if response.Error != message {
		t.Fatalf("expected error %q, got %q", message, response.Error)
	}
}

type mockAuthService struct {
	services.AuthServiceInterface
	SessionTTLFunc      func() time.Duration
	CheckPasswordFunc   func(hash, password string) bool
	SignUpFunc          func(ctx context.Context, params services.SignUpParams) (*models.User, error)
	SignInFunc          func(ctx context.Context, email, password string) (*models.User, string, error)
	CreateSessionFunc   func(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateSessionFunc func(ctx context.Context, token string) (*models.User, error)
	DeleteSessionFunc   func(ctx context.Context, token string) error
	VerifyEmailFunc     func(ctx context.Context, token string) (uuid.UUID, error)
}

func (m *mockAuthService) SessionTTL() time.Duration {
	if m.SessionTTLFunc != nil {
		return m.SessionTTLFunc()
	}
	return 0
}

func (m *mockAuthService) CheckPassword(hash, password string) bool {
	return m.CheckPasswordFunc(hash, password)
}

func (m *mockAuthService) SignUp(ctx context.Context, params services.SignUpParams) (*models.User, error) {
	return m.SignUpFunc(ctx, params)
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*models.User, string, error) {
	return m.SignInFunc(ctx, email, password)
}

func (m *mockAuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	return m.CreateSessionFunc(ctx, userID)
}

func (m *mockAuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	return m.ValidateSessionFunc(ctx, token)
}

func (m *mockAuthService) DeleteSession(ctx context.Context, token string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, token)
	}
	return nil
}

func (m *mockAuthService) VerifyEmail(ctx context.Context, token string) (uuid.UUID, error) {
	return m.VerifyEmailFunc(ctx, token)
}

type mockProfileService struct {
	services.ProfileServiceInterface
	GetByUserIDFunc func(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	UpdateFunc      func(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.Profile, error)
	CustomizeFunc   func(ctx context.Context, userID uuid.UUID, params models.CustomizeHouseParams) (*models.Profile, error)
	RecordVisitFunc func(ctx context.Context, ownerID, visitorID uuid.UUID, message *string) error
	ListVisitsFunc  func(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.HouseVisit, error)
	SetAvatarFunc   func(ctx context.Context, userID uuid.UUID, data []byte) (*models.Profile, error)
	SetCoverFunc    func(ctx context.Context, userID uuid.UUID, data []byte) (*models.Profile, error)
	HouseCardFunc   func(ctx context.Context, userID uuid.UUID) ([]byte, error)
}

func (m *mockProfileService) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	return m.GetByUserIDFunc(ctx, userID)
}

func (m *mockProfileService) Update(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.Profile, error) {
	return m.UpdateFunc(ctx, userID, params)
}

func (m *mockProfileService) Customize(ctx context.Context, userID uuid.UUID, params models.CustomizeHouseParams) (*models.Profile, error) {
	return m.CustomizeFunc(ctx, userID, params)
}

func (m *mockProfileService) RecordVisit(ctx context.Context, ownerID, visitorID uuid.UUID, message *string) error {
	return m.RecordVisitFunc(ctx, ownerID, visitorID, message)
}

func (m *mockProfileService) ListVisits(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.HouseVisit, error) {
	return m.ListVisitsFunc(ctx, ownerID, limit)
}

func (m *mockProfileService) SetAvatar(ctx context.Context, userID uuid.UUID, data []byte) (*models.Profile, error) {
	return m.SetAvatarFunc(ctx, userID, data)
}

func (m *mockProfileService) SetCover(ctx context.Context, userID uuid.UUID, data []byte) (*models.Profile, error) {
	return m.SetCoverFunc(ctx, userID, data)
}

func (m *mockProfileService) HouseCard(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	return m.HouseCardFunc(ctx, userID)
}

type mockFriendService struct {
	services.FriendServiceInterface
	ListFriendsFunc         func(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
	ListPendingRequestsFunc func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error)
	SendRequestFunc         func(ctx context.Context, userID, friendID uuid.UUID) (*models.Friendship, error)
	AcceptRequestFunc       func(ctx context.Context, userID, friendshipID uuid.UUID) (*models.Friendship, error)
	RejectRequestFunc       func(ctx context.Context, userID, friendshipID uuid.UUID) error
	RemoveFriendFunc        func(ctx context.Context, userID, friendID uuid.UUID) error
	CountMutualFriendsFunc  func(ctx context.Context, userID, otherID uuid.UUID) (int, error)
}

func (m *mockFriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	return m.ListFriendsFunc(ctx, userID)
}

func (m *mockFriendService) ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	return m.ListPendingRequestsFunc(ctx, userID)
}

func (m *mockFriendService) SendRequest(ctx context.Context, userID, friendID uuid.UUID) (*models.Friendship, error) {
	return m.SendRequestFunc(ctx, userID, friendID)
}

func (m *mockFriendService) AcceptRequest(ctx context.Context, userID, friendshipID uuid.UUID) (*models.Friendship, error) {
	return m.AcceptRequestFunc(ctx, userID, friendshipID)
}

func (m *mockFriendService) RejectRequest(ctx context.Context, userID, friendshipID uuid.UUID) error {
	return m.RejectRequestFunc(ctx, userID, friendshipID)
}

func (m *mockFriendService) RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error {
	return m.RemoveFriendFunc(ctx, userID, friendID)
}

func (m *mockFriendService) CountMutualFriends(ctx context.Context, userID, otherID uuid.UUID) (int, error) {
	return m.CountMutualFriendsFunc(ctx, userID, otherID)
}

type mockScrapService struct {
	services.ScrapServiceInterface
	ListFunc       func(ctx context.Context, profileID uuid.UUID, parentID *uuid.UUID, viewerID uuid.UUID) ([]models.Scrap, error)
	CreateFunc     func(ctx context.Context, params models.CreateScrapParams) (*models.Scrap, error)
	DeleteFunc     func(ctx context.Context, scrapID, userID uuid.UUID) error
	ToggleLikeFunc func(ctx context.Context, scrapID, userID uuid.UUID) (bool, int, error)
}

func (m *mockScrapService) List(ctx context.Context, profileID uuid.UUID, parentID *uuid.UUID, viewerID uuid.UUID) ([]models.Scrap, error) {
	return m.ListFunc(ctx, profileID, parentID, viewerID)
}

func (m *mockScrapService) Create(ctx context.Context, params models.CreateScrapParams) (*models.Scrap, error) {
	return m.CreateFunc(ctx, params)
}

func (m *mockScrapService) Delete(ctx context.Context, scrapID, userID uuid.UUID) error {
	return m.DeleteFunc(ctx, scrapID, userID)
}

func (m *mockScrapService) ToggleLike(ctx context.Context, scrapID, userID uuid.UUID) (bool, int, error) {
	return m.ToggleLikeFunc(ctx, scrapID, userID)
}

type mockLibraryService struct {
	services.LibraryServiceInterface
	OverviewFunc             func(ctx context.Context, userID uuid.UUID) (*models.LibraryOverview, error)
	AddItemFunc              func(ctx context.Context, params models.CreateLibraryItemParams) (*models.LibraryItem, error)
	UpdateItemFunc           func(ctx context.Context, userID, itemID uuid.UUID, params models.UpdateLibraryItemParams) (*models.LibraryItem, error)
	DeleteItemFunc           func(ctx context.Context, userID, itemID uuid.UUID) error
	AddCommentFunc           func(ctx context.Context, userID, itemID uuid.UUID, content string) (*models.LibraryItemComment, error)
	SendRecommendationFunc   func(ctx context.Context, fromID, toID, itemID uuid.UUID, note *string) (*models.LibraryRecommendation, error)
	AcceptRecommendationFunc func(ctx context.Context, userID, recommendationID uuid.UUID) (*models.LibraryItem, error)
}

func (m *mockLibraryService) Overview(ctx context.Context, userID uuid.UUID) (*models.LibraryOverview, error) {
	return m.OverviewFunc(ctx, userID)
}

func (m *mockLibraryService) AddItem(ctx context.Context, params models.CreateLibraryItemParams) (*models.LibraryItem, error) {
	return m.AddItemFunc(ctx, params)
}

func (m *mockLibraryService) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, params models.UpdateLibraryItemParams) (*models.LibraryItem, error) {
	return m.UpdateItemFunc(ctx, userID, itemID, params)
}

func (m *mockLibraryService) DeleteItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return m.DeleteItemFunc(ctx, userID, itemID)
}

func (m *mockLibraryService) AddComment(ctx context.Context, userID, itemID uuid.UUID, content string) (*models.LibraryItemComment, error) {
	return m.AddCommentFunc(ctx, userID, itemID, content)
}

func (m *mockLibraryService) SendRecommendation(ctx context.Context, fromID, toID, itemID uuid.UUID, note *string) (*models.LibraryRecommendation, error) {
	return m.SendRecommendationFunc(ctx, fromID, toID, itemID, note)
}

func (m *mockLibraryService) AcceptRecommendation(ctx context.Context, userID, recommendationID uuid.UUID) (*models.LibraryItem, error) {
	return m.AcceptRecommendationFunc(ctx, userID, recommendationID)
}

type mockGalleryService struct {
	services.GalleryServiceInterface
	ViewFunc        func(ctx context.Context, ownerID, viewerID uuid.UUID, albumFilter gallery.AlbumFilter, itemFilter gallery.ItemFilter) (*services.GalleryView, error)
	CreateAlbumFunc func(ownerID uuid.UUID, in gallery.NewAlbum) (gallery.Album, error)
	UploadFunc      func(ctx context.Context, ownerID, albumID uuid.UUID, files []services.GalleryFile, meta gallery.UploadMeta, progress func(int)) ([]gallery.Item, error)
	ToggleLikeFunc  func(ctx context.Context, ownerID, viewerID, itemID uuid.UUID) (gallery.Item, error)
	DeleteAlbumFunc func(ctx context.Context, ownerID, albumID uuid.UUID) error
	forgotten       []uuid.UUID
}

func (m *mockGalleryService) View(ctx context.Context, ownerID, viewerID uuid.UUID, albumFilter gallery.AlbumFilter, itemFilter gallery.ItemFilter) (*services.GalleryView, error) {
	return m.ViewFunc(ctx, ownerID, viewerID, albumFilter, itemFilter)
}

func (m *mockGalleryService) CreateAlbum(ownerID uuid.UUID, in gallery.NewAlbum) (gallery.Album, error) {
	return m.CreateAlbumFunc(ownerID, in)
}

func (m *mockGalleryService) Upload(ctx context.Context, ownerID, albumID uuid.UUID, files []services.GalleryFile, meta gallery.UploadMeta, progress func(int)) ([]gallery.Item, error) {
	return m.UploadFunc(ctx, ownerID, albumID, files, meta, progress)
}

func (m *mockGalleryService) ToggleLike(ctx context.Context, ownerID, viewerID, itemID uuid.UUID) (gallery.Item, error) {
	return m.ToggleLikeFunc(ctx, ownerID, viewerID, itemID)
}

func (m *mockGalleryService) DeleteAlbum(ctx context.Context, ownerID, albumID uuid.UUID) error {
	return m.DeleteAlbumFunc(ctx, ownerID, albumID)
}

func (m *mockGalleryService) Forget(ctx context.Context, ownerID uuid.UUID) {
	m.forgotten = append(m.forgotten, ownerID)
}

type mockNotificationService struct {
	services.NotificationServiceInterface
	ListFunc        func(ctx context.Context, userID uuid.UUID, params services.NotificationListParams) ([]models.Notification, error)
	MarkReadFunc    func(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllReadFunc func(ctx context.Context, userID uuid.UUID) error
	DeleteFunc      func(ctx context.Context, userID, notificationID uuid.UUID) error
	UnreadCountFunc func(ctx context.Context, userID uuid.UUID) (int, error)
}

func (m *mockNotificationService) List(ctx context.Context, userID uuid.UUID, params services.NotificationListParams) ([]models.Notification, error) {
	return m.ListFunc(ctx, userID, params)
}

func (m *mockNotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return m.MarkReadFunc(ctx, userID, notificationID)
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return m.MarkAllReadFunc(ctx, userID)
}

func (m *mockNotificationService) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	return m.DeleteFunc(ctx, userID, notificationID)
}

func (m *mockNotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return m.UnreadCountFunc(ctx, userID)
}

type mockAccountService struct {
	services.AccountServiceInterface
	BuildExportZipFunc func(ctx context.Context, userID uuid.UUID) ([]byte, error)
	DeleteFunc         func(ctx context.Context, userID uuid.UUID) error
}

func (m *mockAccountService) BuildExportZip(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	return m.BuildExportZipFunc(ctx, userID)
}

func (m *mockAccountService) Delete(ctx context.Context, userID uuid.UUID) error {
	return m.DeleteFunc(ctx, userID)
}
