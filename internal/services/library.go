package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/tville/internal/logging"
	"github.com/HammerMeetNail/tville/internal/models"
)

var (
	ErrLibraryItemNotFound     = errors.New("library item not found")
	ErrInvalidLibraryItem      = errors.New("invalid library item")
	ErrInvalidRating           = errors.New("rating must be between 1 and 5")
	ErrCommentNotFound         = errors.New("comment not found")
	ErrInvalidComment          = errors.New("comment must be between 1 and 1000 characters")
	ErrRecommendationNotFound  = errors.New("recommendation not found")
	ErrCannotRecommendSelf     = errors.New("cannot recommend to yourself")
	ErrRecommendationNotFriend = errors.New("recommendations can only be sent to friends")
)

const (
	maxLibraryTitleLen   = 300
	maxLibraryCommentLen = 1000
)

const libraryItemColumns = `id, user_id, type, title, creator, cover_url, url, status, rating, notes,
	is_favorite, likes_count, created_at, updated_at`

func scanLibraryItem(row Row, item *models.LibraryItem) error {
	return row.Scan(
		&item.ID, &item.UserID, &item.Type, &item.Title, &item.Creator, &item.CoverURL, &item.URL,
		&item.Status, &item.Rating, &item.Notes, &item.IsFavorite, &item.LikesCount,
		&item.CreatedAt, &item.UpdatedAt,
	)
}

type LibraryService struct {
	db                  DB
	notificationService NotificationServiceInterface
}

func NewLibraryService(db DB) *LibraryService {
	return &LibraryService{db: db}
}

func (s *LibraryService) SetNotificationService(notificationService NotificationServiceInterface) {
	s.notificationService = notificationService
}

// Overview reads the user's items, unlocks and received recommendations and
// derives every aggregate from them in memory.
func (s *LibraryService) Overview(ctx context.Context, userID uuid.UUID) (*models.LibraryOverview, error) {
	items, err := s.ListItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlocked, err := s.listAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}
	recommendations, err := s.ListRecommendations(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := models.BuildLibraryStats(items)
	pending := 0
	for _, r := range recommendations {
		if r.Status == models.RecommendationPending {
			pending++
		}
	}

	return &models.LibraryOverview{
		Stats:                  stats,
		Collections:            models.GroupCollections(items),
		Achievements:           models.AchievementProgressFor(stats.ByType, unlocked),
		Recommendations:        recommendations,
		PendingRecommendations: pending,
	}, nil
}

func (s *LibraryService) ListItems(ctx context.Context, userID uuid.UUID) ([]models.LibraryItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+libraryItemColumns+` FROM library_items WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list library items: %w", err)
	}
	return collectRows(rows, func(row Row) (models.LibraryItem, error) {
		var item models.LibraryItem
		err := scanLibraryItem(row, &item)
		return item, err
	})
}

func (s *LibraryService) listAchievements(ctx context.Context, userID uuid.UUID) ([]models.LibraryAchievement, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, type, title, description, achieved_at
		 FROM library_achievements
		 WHERE user_id = $1
		 ORDER BY achieved_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return collectRows(rows, func(row Row) (models.LibraryAchievement, error) {
		var a models.LibraryAchievement
		err := row.Scan(&a.ID, &a.UserID, &a.Type, &a.Title, &a.Description, &a.AchievedAt)
		return a, err
	})
}

// ListRecommendations returns recommendations addressed to userID, newest
// first.
func (s *LibraryService) ListRecommendations(ctx context.Context, userID uuid.UUID) ([]models.LibraryRecommendation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT r.id, r.from_user_id, r.to_user_id, r.item_id, r.item_type, r.item_title,
		        r.item_creator, r.note, r.status, p.casa_name, r.created_at
		 FROM library_recommendations r
		 JOIN profiles p ON p.id = r.from_user_id
		 WHERE r.to_user_id = $1
		 ORDER BY r.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	return collectRows(rows, func(row Row) (models.LibraryRecommendation, error) {
		var r models.LibraryRecommendation
		err := row.Scan(
			&r.ID, &r.FromUserID, &r.ToUserID, &r.ItemID, &r.ItemType, &r.ItemTitle,
			&r.ItemCreator, &r.Note, &r.Status, &r.FromCasaName, &r.CreatedAt,
		)
		return r, err
	})
}

func validateRating(rating *int) error {
	if rating != nil && (*rating < models.MinRating || *rating > models.MaxRating) {
		return ErrInvalidRating
	}
	return nil
}

func (s *LibraryService) AddItem(ctx context.Context, params models.CreateLibraryItemParams) (*models.LibraryItem, error) {
	params.Title = strings.TrimSpace(params.Title)
	if params.Title == "" || len(params.Title) > maxLibraryTitleLen || !models.IsValidLibraryItemType(params.Type) {
		return nil, ErrInvalidLibraryItem
	}
	if params.Status == "" {
		params.Status = models.ConsumptionNotStarted
	}
	if !models.IsValidConsumptionStatus(params.Status) {
		return nil, ErrInvalidLibraryItem
	}
	if err := validateRating(params.Rating); err != nil {
		return nil, err
	}

	item, err := insertLibraryItem(ctx, s.db, params)
	if err != nil {
		return nil, err
	}
	s.unlockAchievements(ctx, params.UserID)
	return item, nil
}

func insertLibraryItem(ctx context.Context, db DBConn, params models.CreateLibraryItemParams) (*models.LibraryItem, error) {
	item := &models.LibraryItem{}
	err := scanLibraryItem(db.QueryRow(ctx,
		`INSERT INTO library_items (user_id, type, title, creator, cover_url, url, status, rating, notes, is_favorite)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+libraryItemColumns,
		params.UserID, params.Type, params.Title, params.Creator, params.CoverURL, params.URL,
		params.Status, params.Rating, params.Notes, params.IsFavorite,
	), item)
	if err != nil {
		return nil, fmt.Errorf("insert library item: %w", err)
	}
	return item, nil
}

func (s *LibraryService) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, params models.UpdateLibraryItemParams) (*models.LibraryItem, error) {
	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" || len(title) > maxLibraryTitleLen {
			return nil, ErrInvalidLibraryItem
		}
		params.Title = &title
	}
	if params.Status != nil && !models.IsValidConsumptionStatus(*params.Status) {
		return nil, ErrInvalidLibraryItem
	}
	if params.ClearRating && params.Rating != nil {
		return nil, ErrInvalidRating
	}
	if err := validateRating(params.Rating); err != nil {
		return nil, err
	}

	item := &models.LibraryItem{}
	err := scanLibraryItem(s.db.QueryRow(ctx,
		`UPDATE library_items SET
			title = COALESCE($3, title),
			creator = COALESCE($4, creator),
			cover_url = COALESCE($5, cover_url),
			url = COALESCE($6, url),
			status = COALESCE($7, status),
			rating = CASE WHEN $11 THEN NULL ELSE COALESCE($8, rating) END,
			notes = COALESCE($9, notes),
			is_favorite = COALESCE($10, is_favorite),
			updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+libraryItemColumns,
		itemID, userID, params.Title, params.Creator, params.CoverURL, params.URL,
		params.Status, params.Rating, params.Notes, params.IsFavorite, params.ClearRating,
	), item)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLibraryItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update library item: %w", err)
	}
	return item, nil
}

func (s *LibraryService) DeleteItem(ctx context.Context, userID, itemID uuid.UUID) error {
	result, err := s.db.Exec(ctx, `DELETE FROM library_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return fmt.Errorf("delete library item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLibraryItemNotFound
	}
	return nil
}

// LikeItem records a like. Liking twice is a no-op; the unique (item, user)
// constraint guarantees one like per user.
func (s *LibraryService) LikeItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return WithTx(ctx, s.db, func(tx Tx) error {
		result, err := tx.Exec(ctx,
			`INSERT INTO library_item_likes (item_id, user_id) VALUES ($1, $2) ON CONFLICT (item_id, user_id) DO NOTHING`,
			itemID, userID,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrLibraryItemNotFound
			}
			return fmt.Errorf("insert like: %w", err)
		}
		if result.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `UPDATE library_items SET likes_count = likes_count + 1 WHERE id = $1`, itemID); err != nil {
			return fmt.Errorf("increment likes: %w", err)
		}
		return nil
	})
}

func (s *LibraryService) UnlikeItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return WithTx(ctx, s.db, func(tx Tx) error {
		result, err := tx.Exec(ctx, `DELETE FROM library_item_likes WHERE item_id = $1 AND user_id = $2`, itemID, userID)
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		if result.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `UPDATE library_items SET likes_count = GREATEST(likes_count - 1, 0) WHERE id = $1`, itemID); err != nil {
			return fmt.Errorf("decrement likes: %w", err)
		}
		return nil
	})
}

func (s *LibraryService) ListComments(ctx context.Context, itemID uuid.UUID) ([]models.LibraryItemComment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.item_id, c.user_id, c.content, p.casa_name, c.created_at
		 FROM library_item_comments c
		 JOIN profiles p ON p.id = c.user_id
		 WHERE c.item_id = $1
		 ORDER BY c.created_at`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return collectRows(rows, func(row Row) (models.LibraryItemComment, error) {
		var c models.LibraryItemComment
		err := row.Scan(&c.ID, &c.ItemID, &c.UserID, &c.Content, &c.AuthorCasaName, &c.CreatedAt)
		return c, err
	})
}

func (s *LibraryService) AddComment(ctx context.Context, userID, itemID uuid.UUID, content string) (*models.LibraryItemComment, error) {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxLibraryCommentLen {
		return nil, ErrInvalidComment
	}

	comment := &models.LibraryItemComment{}
	err := s.db.QueryRow(ctx,
		`WITH inserted AS (
			INSERT INTO library_item_comments (item_id, user_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, item_id, user_id, content, created_at
		)
		SELECT i.id, i.item_id, i.user_id, i.content, p.casa_name, i.created_at
		FROM inserted i
		JOIN profiles p ON p.id = i.user_id`,
		itemID, userID, content,
	).Scan(&comment.ID, &comment.ItemID, &comment.UserID, &comment.Content, &comment.AuthorCasaName, &comment.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrLibraryItemNotFound
		}
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return comment, nil
}

// DeleteComment removes a comment written by userID or left on one of
// userID's items.
func (s *LibraryService) DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM library_item_comments c
		 USING library_items i
		 WHERE c.id = $1 AND i.id = c.item_id AND (c.user_id = $2 OR i.user_id = $2)`,
		commentID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

// SendRecommendation recommends one of fromID's items to a friend. The item
// is copied into the recommendation so it survives later edits.
func (s *LibraryService) SendRecommendation(ctx context.Context, fromID, toID, itemID uuid.UUID, note *string) (*models.LibraryRecommendation, error) {
	if fromID == toID {
		return nil, ErrCannotRecommendSelf
	}
	friends, err := isFriend(ctx, s.db, fromID, toID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, ErrRecommendationNotFriend
	}
	if note != nil {
		trimmed := strings.TrimSpace(*note)
		note = &trimmed
		if trimmed == "" {
			note = nil
		}
	}

	rec := &models.LibraryRecommendation{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO library_recommendations (from_user_id, to_user_id, item_id, item_type, item_title, item_creator, note)
		 SELECT $1, $2, i.id, i.type, i.title, i.creator, $4
		 FROM library_items i
		 WHERE i.id = $3 AND i.user_id = $1
		 RETURNING id, from_user_id, to_user_id, item_id, item_type, item_title, item_creator, note, status, created_at`,
		fromID, toID, itemID, note,
	).Scan(&rec.ID, &rec.FromUserID, &rec.ToUserID, &rec.ItemID, &rec.ItemType, &rec.ItemTitle,
		&rec.ItemCreator, &rec.Note, &rec.Status, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLibraryItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert recommendation: %w", err)
	}

	if s.notificationService != nil {
		if err := s.notificationService.NotifyRecommendationReceived(ctx, toID, fromID, rec.ID); err != nil {
			logging.Error("Failed to send recommendation notification", map[string]interface{}{
				"error":             err.Error(),
				"recommendation_id": rec.ID.String(),
			})
		}
	}
	return rec, nil
}

// AcceptRecommendation marks a pending recommendation accepted and adds the
// recommended title to the recipient's library.
func (s *LibraryService) AcceptRecommendation(ctx context.Context, userID, recommendationID uuid.UUID) (*models.LibraryItem, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin accept recommendation: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback is a no-op after commit

	params := models.CreateLibraryItemParams{UserID: userID, Status: models.ConsumptionNotStarted}
	err = tx.QueryRow(ctx,
		`UPDATE library_recommendations
		 SET status = 'accepted', updated_at = NOW()
		 WHERE id = $1 AND to_user_id = $2 AND status = 'pending'
		 RETURNING item_type, item_title, item_creator`,
		recommendationID, userID,
	).Scan(&params.Type, &params.Title, &params.Creator)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecommendationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("accept recommendation: %w", err)
	}

	item, err := insertLibraryItem(ctx, tx, params)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit accept recommendation: %w", err)
	}

	s.unlockAchievements(ctx, userID)
	return item, nil
}

func (s *LibraryService) DeclineRecommendation(ctx context.Context, userID, recommendationID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`UPDATE library_recommendations
		 SET status = 'rejected', updated_at = NOW()
		 WHERE id = $1 AND to_user_id = $2 AND status = 'pending'`,
		recommendationID, userID,
	)
	if err != nil {
		return fmt.Errorf("decline recommendation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRecommendationNotFound
	}
	return nil
}

func (s *LibraryService) DeleteRecommendation(ctx context.Context, userID, recommendationID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM library_recommendations WHERE id = $1 AND (to_user_id = $2 OR from_user_id = $2)`,
		recommendationID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete recommendation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRecommendationNotFound
	}
	return nil
}

// unlockAchievements stores every newly reached threshold. Failures are
// logged; the item write that triggered it has already succeeded.
func (s *LibraryService) unlockAchievements(ctx context.Context, userID uuid.UUID) {
	if err := s.checkAchievements(ctx, userID); err != nil {
		logging.Error("Failed to unlock library achievements", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID.String(),
		})
	}
}

func (s *LibraryService) checkAchievements(ctx context.Context, userID uuid.UUID) error {
	byType, err := s.countByType(ctx, userID)
	if err != nil {
		return err
	}
	unlocked, err := s.listAchievements(ctx, userID)
	if err != nil {
		return err
	}

	for _, def := range models.EvaluateAchievements(byType, unlocked) {
		if _, err := s.db.Exec(ctx,
			`INSERT INTO library_achievements (user_id, type, title, description)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (user_id, type) DO NOTHING`,
			userID, def.Type, def.Title, def.Description,
		); err != nil {
			return fmt.Errorf("insert achievement %s: %w", def.Type, err)
		}
	}
	return nil
}

func (s *LibraryService) countByType(ctx context.Context, userID uuid.UUID) (map[models.LibraryItemType]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT type, COUNT(*) FROM library_items WHERE user_id = $1 GROUP BY type`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("count library items: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.LibraryItemType]int, len(models.LibraryItemTypes))
	for rows.Next() {
		var t models.LibraryItemType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scan library count: %w", err)
		}
		counts[t] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate library counts: %w", err)
	}
	return counts, nil
}
