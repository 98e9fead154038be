package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/tville/internal/logging"
	"github.com/HammerMeetNail/tville/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

type NotificationListParams struct {
	Limit      int
	Before     *time.Time
	UnreadOnly bool
}

type NotificationService struct {
	db    DB
	email EmailServiceInterface
}

func NewNotificationService(db DB, email EmailServiceInterface) *NotificationService {
	return &NotificationService{db: db, email: email}
}

func (s *NotificationService) NotifyFriendRequestReceived(ctx context.Context, recipientID, actorID, friendshipID uuid.UUID) error {
	return s.insert(ctx, recipientID, actorID, models.NotificationTypeFriendRequestReceived, "friendship_id", friendshipID)
}

func (s *NotificationService) NotifyFriendRequestAccepted(ctx context.Context, recipientID, actorID, friendshipID uuid.UUID) error {
	return s.insert(ctx, recipientID, actorID, models.NotificationTypeFriendRequestAccepted, "friendship_id", friendshipID)
}

func (s *NotificationService) NotifyScrapReceived(ctx context.Context, recipientID, actorID, scrapID uuid.UUID) error {
	return s.insert(ctx, recipientID, actorID, models.NotificationTypeScrapReceived, "scrap_id", scrapID)
}

// NotifyRecommendationReceived records the in-app notification and, when the
// recipient has a verified address, sends an email. Email failures are
// logged only.
func (s *NotificationService) NotifyRecommendationReceived(ctx context.Context, recipientID, actorID, recommendationID uuid.UUID) error {
	if err := s.insert(ctx, recipientID, actorID, models.NotificationTypeRecommendationReceived, "recommendation_id", recommendationID); err != nil {
		return err
	}
	if s.email == nil || recipientID == actorID {
		return nil
	}

	var (
		to, fromName, itemTitle string
		verified                bool
	)
	err := s.db.QueryRow(ctx,
		`SELECT u.email, u.email_verified, p.casa_name, r.item_title
		 FROM library_recommendations r
		 JOIN users u ON u.id = r.to_user_id
		 JOIN profiles p ON p.id = r.from_user_id
		 WHERE r.id = $1`,
		recommendationID,
	).Scan(&to, &verified, &fromName, &itemTitle)
	if err != nil {
		return fmt.Errorf("load recommendation email details: %w", err)
	}
	if !verified {
		return nil
	}
	if err := s.email.SendRecommendationEmail(ctx, to, fromName, itemTitle); err != nil {
		logging.Warn("Recommendation email failed", map[string]interface{}{
			"recommendation_id": recommendationID.String(),
			"error":             err.Error(),
		})
	}
	return nil
}

// insert writes one notification row. refColumn is a fixed column name, never
// user input.
func (s *NotificationService) insert(ctx context.Context, recipientID, actorID uuid.UUID, kind models.NotificationType, refColumn string, refID uuid.UUID) error {
	if recipientID == actorID {
		return nil
	}
	query := fmt.Sprintf(
		`INSERT INTO notifications (user_id, type, actor_user_id, %s) VALUES ($1, $2, $3, $4)`,
		refColumn,
	)
	if _, err := s.db.Exec(ctx, query, recipientID, kind, actorID, refID); err != nil {
		return fmt.Errorf("insert %s notification: %w", kind, err)
	}
	return nil
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, params NotificationListParams) ([]models.Notification, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT n.id, n.user_id, n.type, n.actor_user_id, p.casa_name,
		       n.friendship_id, n.scrap_id, n.recommendation_id, n.read_at, n.created_at
		FROM notifications n
		LEFT JOIN profiles p ON p.id = n.actor_user_id
		WHERE n.user_id = $1`)
	args := []any{userID}
	if params.UnreadOnly {
		sb.WriteString(" AND n.read_at IS NULL")
	}
	if params.Before != nil {
		args = append(args, *params.Before)
		fmt.Fprintf(&sb, " AND n.created_at < $%d", len(args))
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY n.created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return collectRows(rows, func(row Row) (models.Notification, error) {
		var n models.Notification
		err := row.Scan(
			&n.ID, &n.UserID, &n.Type, &n.ActorUserID, &n.ActorCasaName,
			&n.FriendshipID, &n.ScrapID, &n.RecommendationID, &n.ReadAt, &n.CreatedAt,
		)
		return n, err
	})
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`UPDATE notifications SET read_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND read_at IS NULL`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}
	return s.ensureExists(ctx, userID, notificationID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.db.Exec(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`,
		userID,
	); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) DeleteAll(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	return nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`,
		userID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// CleanupOld removes notifications past the retention window.
func (s *NotificationService) CleanupOld(ctx context.Context) error {
	cutoff := time.Now().Add(-models.NotificationRetention)
	result, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup notifications: %w", err)
	}
	if n := result.RowsAffected(); n > 0 {
		logging.Info("Removed old notifications", map[string]interface{}{"count": n})
	}
	return nil
}

// ensureExists distinguishes an already-read notification from a missing one.
func (s *NotificationService) ensureExists(ctx context.Context, userID, notificationID uuid.UUID) error {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT id FROM notifications WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotificationNotFound
	}
	if err != nil {
		return fmt.Errorf("load notification: %w", err)
	}
	return nil
}
