package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/HammerMeetNail/tville/internal/logging"
	"github.com/HammerMeetNail/tville/internal/models"
)

var (
	ErrFriendshipNotFound = errors.New("friendship not found")
	ErrFriendshipExists   = errors.New("friendship already exists")
	ErrCannotFriendSelf   = errors.New("cannot send friend request to yourself")
)

// mutualFriendConcurrency bounds the per-friend count_mutual_friends calls
// in flight at once.
const mutualFriendConcurrency = 8

const friendshipColumns = `id, user_id, friend_id, status, interaction_score, created_at, updated_at`

func scanFriendship(row Row, f *models.Friendship) error {
	return row.Scan(&f.ID, &f.UserID, &f.FriendID, &f.Status, &f.InteractionScore, &f.CreatedAt, &f.UpdatedAt)
}

type FriendService struct {
	db                  DB
	notificationService NotificationServiceInterface
	now                 func() time.Time
}

func NewFriendService(db DB) *FriendService {
	return &FriendService{db: db, now: time.Now}
}

func (s *FriendService) SetNotificationService(notificationService NotificationServiceInterface) {
	s.notificationService = notificationService
}

// ListFriends builds the friend list of userID: accepted friendships in
// either direction, each with its mutual friend count, presence and best
// friend flag, ordered by interaction score. Any failed lookup fails the
// whole list.
func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	rows, err := s.db.Query(ctx,
		`SELECT f.id, f.user_id, f.friend_id,
		        p.casa_name, p.avatar_url, f.interaction_score, f.created_at
		 FROM friendships f
		 JOIN profiles p ON p.id = CASE WHEN f.user_id = $1 THEN f.friend_id ELSE f.user_id END
		 WHERE f.status = 'accepted' AND (f.user_id = $1 OR f.friend_id = $1)
		 ORDER BY f.interaction_score DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}

	friends := []models.Friend{}
	for rows.Next() {
		var fs models.Friendship
		var f models.Friend
		if err := rows.Scan(&fs.ID, &fs.UserID, &fs.FriendID, &f.CasaName, &f.AvatarURL, &f.InteractionScore, &f.Since); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		f.FriendshipID = fs.ID
		f.ID = fs.Counterpart(userID)
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate friendships: %w", err)
	}
	rows.Close()

	if len(friends) == 0 {
		return friends, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mutualFriendConcurrency)
	for i := range friends {
		g.Go(func() error {
			count, err := s.CountMutualFriends(gctx, userID, friends[i].ID)
			if err != nil {
				return err
			}
			friends[i].MutualFriends = count
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lastSeen, err := s.lastSeen(ctx, friends)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range friends {
		seen, ok := lastSeen[friends[i].ID]
		if ok {
			friends[i].LastSeenAt = seen
			friends[i].IsOnline = models.IsOnline(seen, now)
		}
		friends[i].IsBestFriend = models.IsBestFriend(friends[i].InteractionScore)
	}

	sort.SliceStable(friends, func(a, b int) bool {
		return friends[a].InteractionScore > friends[b].InteractionScore
	})
	return friends, nil
}

func (s *FriendService) lastSeen(ctx context.Context, friends []models.Friend) (map[uuid.UUID]time.Time, error) {
	ids := make([]uuid.UUID, len(friends))
	for i, f := range friends {
		ids[i] = f.ID
	}

	rows, err := s.db.Query(ctx, `SELECT id, updated_at FROM profiles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load friend presence: %w", err)
	}
	defer rows.Close()

	seen := make(map[uuid.UUID]time.Time, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var updatedAt time.Time
		if err := rows.Scan(&id, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan friend presence: %w", err)
		}
		seen[id] = updatedAt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend presence: %w", err)
	}
	return seen, nil
}

func (s *FriendService) CountMutualFriends(ctx context.Context, userID, otherID uuid.UUID) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT count_mutual_friends($1, $2)`, userID, otherID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count mutual friends: %w", err)
	}
	return count, nil
}

// SendRequest opens a pending friendship from userID to friendID. A pair that
// was previously rejected can be asked again.
func (s *FriendService) SendRequest(ctx context.Context, userID, friendID uuid.UUID) (*models.Friendship, error) {
	if userID == friendID {
		return nil, ErrCannotFriendSelf
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin friend request: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback is a no-op after commit

	if err := lockUsers(ctx, tx, userID, friendID); err != nil {
		return nil, err
	}

	var existing models.Friendship
	err = scanFriendship(tx.QueryRow(ctx,
		`SELECT `+friendshipColumns+`
		 FROM friendships
		 WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)`,
		userID, friendID,
	), &existing)
	hasExisting := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check friendship: %w", err)
	}
	if hasExisting && existing.Status != models.FriendshipStatusRejected {
		return nil, ErrFriendshipExists
	}

	friendship := &models.Friendship{}
	if hasExisting {
		err = scanFriendship(tx.QueryRow(ctx,
			`UPDATE friendships
			 SET user_id = $2, friend_id = $3, status = 'pending', updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+friendshipColumns,
			existing.ID, userID, friendID,
		), friendship)
	} else {
		err = scanFriendship(tx.QueryRow(ctx,
			`INSERT INTO friendships (user_id, friend_id, status)
			 VALUES ($1, $2, 'pending')
			 RETURNING `+friendshipColumns,
			userID, friendID,
		), friendship)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrFriendshipExists
		}
		return nil, fmt.Errorf("insert friendship: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit friend request: %w", err)
	}

	if s.notificationService != nil {
		if err := s.notificationService.NotifyFriendRequestReceived(ctx, friendID, userID, friendship.ID); err != nil {
			logging.Error("Failed to send friend request notification", map[string]interface{}{
				"error":         err.Error(),
				"friendship_id": friendship.ID.String(),
			})
		}
	}
	return friendship, nil
}

// AcceptRequest accepts a pending request addressed to userID.
func (s *FriendService) AcceptRequest(ctx context.Context, userID, friendshipID uuid.UUID) (*models.Friendship, error) {
	friendship, err := s.respond(ctx, userID, friendshipID, models.FriendshipStatusAccepted)
	if err != nil {
		return nil, err
	}

	if s.notificationService != nil {
		if err := s.notificationService.NotifyFriendRequestAccepted(ctx, friendship.UserID, userID, friendship.ID); err != nil {
			logging.Error("Failed to send friend acceptance notification", map[string]interface{}{
				"error":         err.Error(),
				"friendship_id": friendship.ID.String(),
			})
		}
	}
	return friendship, nil
}

// RejectRequest declines a pending request addressed to userID.
func (s *FriendService) RejectRequest(ctx context.Context, userID, friendshipID uuid.UUID) error {
	_, err := s.respond(ctx, userID, friendshipID, models.FriendshipStatusRejected)
	return err
}

func (s *FriendService) respond(ctx context.Context, userID, friendshipID uuid.UUID, status models.FriendshipStatus) (*models.Friendship, error) {
	friendship := &models.Friendship{}
	err := scanFriendship(s.db.QueryRow(ctx,
		`UPDATE friendships
		 SET status = $3, updated_at = NOW()
		 WHERE id = $1 AND friend_id = $2 AND status = 'pending'
		 RETURNING `+friendshipColumns,
		friendshipID, userID, status,
	), friendship)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFriendshipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update friendship: %w", err)
	}
	return friendship, nil
}

// RemoveFriend ends an accepted friendship from either side.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM friendships
		 WHERE status = 'accepted'
		   AND ((user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1))`,
		userID, friendID,
	)
	if err != nil {
		return fmt.Errorf("remove friendship: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrFriendshipNotFound
	}
	return nil
}

// ListPendingRequests returns requests waiting for userID to respond.
func (s *FriendService) ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT f.id, f.user_id, f.friend_id, f.status, f.interaction_score, f.created_at, f.updated_at,
		        p.casa_name, p.avatar_url
		 FROM friendships f
		 JOIN profiles p ON p.id = f.user_id
		 WHERE f.friend_id = $1 AND f.status = 'pending'
		 ORDER BY f.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	return collectRows(rows, func(row Row) (models.FriendRequest, error) {
		var r models.FriendRequest
		err := row.Scan(
			&r.ID, &r.UserID, &r.FriendID, &r.Status, &r.InteractionScore, &r.CreatedAt, &r.UpdatedAt,
			&r.RequesterCasaName, &r.RequesterAvatarURL,
		)
		return r, err
	})
}

func (s *FriendService) IsFriend(ctx context.Context, userID, otherID uuid.UUID) (bool, error) {
	return isFriend(ctx, s.db, userID, otherID)
}

func isFriend(ctx context.Context, db DBConn, userID, otherID uuid.UUID) (bool, error) {
	var ok bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM friendships
			WHERE status = 'accepted'
			  AND ((user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1))
		)`,
		userID, otherID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return ok, nil
}

// BumpInteraction adds delta to the pair's interaction score. Pairs that are
// not friends are left alone.
func (s *FriendService) BumpInteraction(ctx context.Context, userID, otherID uuid.UUID, delta int) error {
	return bumpInteraction(ctx, s.db, userID, otherID, delta)
}

func bumpInteraction(ctx context.Context, db DBConn, userID, otherID uuid.UUID, delta int) error {
	if _, err := db.Exec(ctx,
		`UPDATE friendships
		 SET interaction_score = interaction_score + $3, updated_at = NOW()
		 WHERE status = 'accepted'
		   AND ((user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1))`,
		userID, otherID, delta,
	); err != nil {
		return fmt.Errorf("bump interaction score: %w", err)
	}
	return nil
}
