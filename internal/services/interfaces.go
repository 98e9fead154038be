package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tville/internal/gallery"
	"github.com/HammerMeetNail/tville/internal/models"
)

type AuthServiceInterface interface {
	SessionTTL() time.Duration
	CheckPassword(hash, password string) bool
	SignUp(ctx context.Context, params SignUpParams) (*models.User, error)
	SignIn(ctx context.Context, email, password string) (*models.User, string, error)
	CreateSession(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateSession(ctx context.Context, token string) (*models.User, error)
	DeleteSession(ctx context.Context, token string) error
	VerifyEmail(ctx context.Context, token string) (uuid.UUID, error)
}

type ProviderAuthServiceInterface interface {
	LinkOrCreateUser(ctx context.Context, claims IdentityClaims) (*models.User, error)
}

type EmailServiceInterface interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendRecommendationEmail(ctx context.Context, to, fromName, itemTitle string) error
}

type NotificationServiceInterface interface {
	NotifyFriendRequestReceived(ctx context.Context, recipientID, actorID, friendshipID uuid.UUID) error
	NotifyFriendRequestAccepted(ctx context.Context, recipientID, actorID, friendshipID uuid.UUID) error
	NotifyScrapReceived(ctx context.Context, recipientID, actorID, scrapID uuid.UUID) error
	NotifyRecommendationReceived(ctx context.Context, recipientID, actorID, recommendationID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID, params NotificationListParams) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID, notificationID uuid.UUID) error
	DeleteAll(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

type ProfileServiceInterface interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	Update(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.Profile, error)
	Customize(ctx context.Context, userID uuid.UUID, params models.CustomizeHouseParams) (*models.Profile, error)
	RecordVisit(ctx context.Context, ownerID, visitorID uuid.UUID, message *string) error
	ListVisits(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.HouseVisit, error)
	Touch(ctx context.Context, userID uuid.UUID) error
	SetAvatar(ctx context.Context, userID uuid.UUID, data []byte) (*models.Profile, error)
	SetCover(ctx context.Context, userID uuid.UUID, data []byte) (*models.Profile, error)
	HouseCard(ctx context.Context, userID uuid.UUID) ([]byte, error)
}

type FriendServiceInterface interface {
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
	ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error)
	SendRequest(ctx context.Context, userID, friendID uuid.UUID) (*models.Friendship, error)
	AcceptRequest(ctx context.Context, userID, friendshipID uuid.UUID) (*models.Friendship, error)
	RejectRequest(ctx context.Context, userID, friendshipID uuid.UUID) error
	RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error
	IsFriend(ctx context.Context, userID, otherID uuid.UUID) (bool, error)
	CountMutualFriends(ctx context.Context, userID, otherID uuid.UUID) (int, error)
}

type ScrapServiceInterface interface {
	List(ctx context.Context, profileID uuid.UUID, parentID *uuid.UUID, viewerID uuid.UUID) ([]models.Scrap, error)
	Create(ctx context.Context, params models.CreateScrapParams) (*models.Scrap, error)
	Delete(ctx context.Context, scrapID, userID uuid.UUID) error
	ToggleLike(ctx context.Context, scrapID, userID uuid.UUID) (bool, int, error)
}

type LibraryServiceInterface interface {
	Overview(ctx context.Context, userID uuid.UUID) (*models.LibraryOverview, error)
	AddItem(ctx context.Context, params models.CreateLibraryItemParams) (*models.LibraryItem, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, params models.UpdateLibraryItemParams) (*models.LibraryItem, error)
	DeleteItem(ctx context.Context, userID, itemID uuid.UUID) error
	LikeItem(ctx context.Context, userID, itemID uuid.UUID) error
	UnlikeItem(ctx context.Context, userID, itemID uuid.UUID) error
	ListComments(ctx context.Context, itemID uuid.UUID) ([]models.LibraryItemComment, error)
	AddComment(ctx context.Context, userID, itemID uuid.UUID, content string) (*models.LibraryItemComment, error)
	DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error
	SendRecommendation(ctx context.Context, fromID, toID, itemID uuid.UUID, note *string) (*models.LibraryRecommendation, error)
	AcceptRecommendation(ctx context.Context, userID, recommendationID uuid.UUID) (*models.LibraryItem, error)
	DeclineRecommendation(ctx context.Context, userID, recommendationID uuid.UUID) error
	DeleteRecommendation(ctx context.Context, userID, recommendationID uuid.UUID) error
}

type GalleryServiceInterface interface {
	View(ctx context.Context, ownerID, viewerID uuid.UUID, albumFilter gallery.AlbumFilter, itemFilter gallery.ItemFilter) (*GalleryView, error)
	CreateAlbum(ownerID uuid.UUID, in gallery.NewAlbum) (gallery.Album, error)
	Upload(ctx context.Context, ownerID, albumID uuid.UUID, files []GalleryFile, meta gallery.UploadMeta, progress func(int)) ([]gallery.Item, error)
	ToggleLike(ctx context.Context, ownerID, viewerID, itemID uuid.UUID) (gallery.Item, error)
	ToggleBookmark(ownerID, itemID uuid.UUID) (gallery.Item, error)
	FeatureAlbum(ownerID, albumID uuid.UUID) (gallery.Album, error)
	DeleteAlbum(ctx context.Context, ownerID, albumID uuid.UUID) error
	DeleteItem(ctx context.Context, ownerID, itemID uuid.UUID) error
	Forget(ctx context.Context, ownerID uuid.UUID)
}

type AccountServiceInterface interface {
	BuildExportZip(ctx context.Context, userID uuid.UUID) ([]byte, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

var (
	_ AuthServiceInterface         = (*AuthService)(nil)
	_ ProviderAuthServiceInterface = (*ProviderAuthService)(nil)
	_ EmailServiceInterface        = (*EmailService)(nil)
	_ NotificationServiceInterface = (*NotificationService)(nil)
	_ ProfileServiceInterface      = (*ProfileService)(nil)
	_ FriendServiceInterface       = (*FriendService)(nil)
	_ ScrapServiceInterface        = (*ScrapService)(nil)
	_ LibraryServiceInterface      = (*LibraryService)(nil)
	_ GalleryServiceInterface      = (*GalleryService)(nil)
	_ AccountServiceInterface      = (*AccountService)(nil)
	_ ObjectStore                  = (*S3Store)(nil)
	_ ObjectStore                  = (*LocalStore)(nil)
)
