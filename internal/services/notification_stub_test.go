package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tville/internal/models"
)

type notifyCall struct {
	Kind        models.NotificationType
	RecipientID uuid.UUID
	ActorID     uuid.UUID
	RefID       uuid.UUID
}

// stubNotificationService records Notify* calls and answers every read with
// an empty result.
type stubNotificationService struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

func (s *stubNotificationService) record(kind models.NotificationType, recipientID, actorID, refID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, notifyCall{Kind: kind, RecipientID: recipientID, ActorID: actorID, RefID: refID})
	return s.err
}

func (s *stubNotificationService) Calls() []notifyCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifyCall(nil), s.calls...)
}

func (s *stubNotificationService) NotifyFriendRequestReceived(ctx context.Context, recipientID, actorID, friendshipID uuid.UUID) error {
	return s.record(models.NotificationTypeFriendRequestReceived, recipientID, actorID, friendshipID)
}

func (s *stubNotificationService) NotifyFriendRequestAccepted(ctx context.Context, recipientID, actorID, friendshipID uuid.UUID) error {
	return s.record(models.NotificationTypeFriendRequestAccepted, recipientID, actorID, friendshipID)
}

func (s *stubNotificationService) NotifyScrapReceived(ctx context.Context, recipientID, actorID, scrapID uuid.UUID) error {
	return s.record(models.NotificationTypeScrapReceived, recipientID, actorID, scrapID)
}

func (s *stubNotificationService) NotifyRecommendationReceived(ctx context.Context, recipientID, actorID, recommendationID uuid.UUID) error {
	return s.record(models.NotificationTypeRecommendationReceived, recipientID, actorID, recommendationID)
}

func (s *stubNotificationService) List(ctx context.Context, userID uuid.UUID, params NotificationListParams) ([]models.Notification, error) {
	return []models.Notification{}, nil
}

func (s *stubNotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (s *stubNotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (s *stubNotificationService) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (s *stubNotificationService) DeleteAll(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (s *stubNotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, nil
}

type stubEmailService struct {
	mu              sync.Mutex
	verifications   []string
	recommendations []string
	err             error
}

func (s *stubEmailService) SendVerificationEmail(ctx context.Context, to, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifications = append(s.verifications, to)
	return s.err
}

func (s *stubEmailService) SendRecommendationEmail(ctx context.Context, to, fromName, itemTitle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recommendations = append(s.recommendations, to+"|"+fromName+"|"+itemTitle)
	return s.err
}
