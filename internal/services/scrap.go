package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/tville/internal/logging"
	"github.com/HammerMeetNail/tville/internal/models"
)

var (
	ErrScrapNotFound       = errors.New("scrap not found")
	ErrScrapContentInvalid = errors.New("scrap content must be between 1 and 2000 characters")
	ErrInvalidAttachment   = errors.New("invalid scrap attachment")
	ErrParentScrapMismatch = errors.New("reply must belong to the same profile")
)

const scrapListLimit = 100

type ScrapService struct {
	db                  DB
	notificationService NotificationServiceInterface
}

func NewScrapService(db DB) *ScrapService {
	return &ScrapService{db: db}
}

func (s *ScrapService) SetNotificationService(notificationService NotificationServiceInterface) {
	s.notificationService = notificationService
}

const scrapSelect = `SELECT s.id, s.profile_id, s.author_id, s.parent_id, s.content, s.attachments,
	       s.likes, s.liked_by, s.created_at, s.updated_at, p.casa_name, p.avatar_url
	FROM scraps s
	JOIN profiles p ON p.id = s.author_id`

func scanScrap(row Row, viewerID uuid.UUID) (*models.Scrap, error) {
	var sc models.Scrap
	var attachments []byte
	if err := row.Scan(
		&sc.ID, &sc.ProfileID, &sc.AuthorID, &sc.ParentID, &sc.Content, &attachments,
		&sc.Likes, &sc.LikedBy, &sc.CreatedAt, &sc.UpdatedAt, &sc.AuthorCasaName, &sc.AuthorAvatarURL,
	); err != nil {
		return nil, err
	}
	sc.Attachments = []models.ScrapAttachment{}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &sc.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments: %w", err)
		}
	}
	sc.LikedByMe = viewerID != uuid.Nil && sc.IsLikedBy(viewerID)
	return &sc, nil
}

// List returns the scraps left on a profile, newest first. With a parent ID
// it returns the replies to that scrap instead.
func (s *ScrapService) List(ctx context.Context, profileID uuid.UUID, parentID *uuid.UUID, viewerID uuid.UUID) ([]models.Scrap, error) {
	query := scrapSelect + ` WHERE s.profile_id = $1 AND s.parent_id IS NULL ORDER BY s.created_at DESC LIMIT $2`
	args := []any{profileID, scrapListLimit}
	if parentID != nil {
		query = scrapSelect + ` WHERE s.profile_id = $1 AND s.parent_id = $3 ORDER BY s.created_at DESC LIMIT $2`
		args = append(args, *parentID)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scraps: %w", err)
	}
	defer rows.Close()

	scraps := []models.Scrap{}
	for rows.Next() {
		sc, err := scanScrap(rows, viewerID)
		if err != nil {
			return nil, fmt.Errorf("scan scrap: %w", err)
		}
		scraps = append(scraps, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scraps: %w", err)
	}
	return scraps, nil
}

func validateScrap(params models.CreateScrapParams) (string, error) {
	content := strings.TrimSpace(params.Content)
	if content == "" || utf8.RuneCountInString(content) > models.MaxScrapLength {
		return "", ErrScrapContentInvalid
	}
	if len(params.Attachments) > models.MaxScrapAttachments {
		return "", ErrInvalidAttachment
	}
	for _, a := range params.Attachments {
		if a.Type != models.AttachmentTypeImage && a.Type != models.AttachmentTypeGIF {
			return "", ErrInvalidAttachment
		}
		if strings.TrimSpace(a.URL) == "" {
			return "", ErrInvalidAttachment
		}
	}
	return content, nil
}

// Create leaves a scrap on a profile. A scrap between friends raises their
// interaction score, and the profile owner is notified.
func (s *ScrapService) Create(ctx context.Context, params models.CreateScrapParams) (*models.Scrap, error) {
	content, err := validateScrap(params)
	if err != nil {
		return nil, err
	}

	if params.ParentID != nil {
		var parentProfile uuid.UUID
		err := s.db.QueryRow(ctx, `SELECT profile_id FROM scraps WHERE id = $1`, *params.ParentID).Scan(&parentProfile)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScrapNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load parent scrap: %w", err)
		}
		if parentProfile != params.ProfileID {
			return nil, ErrParentScrapMismatch
		}
	}

	attachments := params.Attachments
	if attachments == nil {
		attachments = []models.ScrapAttachment{}
	}
	encoded, err := json.Marshal(attachments)
	if err != nil {
		return nil, fmt.Errorf("encode attachments: %w", err)
	}

	var id uuid.UUID
	err = s.db.QueryRow(ctx,
		`INSERT INTO scraps (profile_id, author_id, parent_id, content, attachments)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		params.ProfileID, params.AuthorID, params.ParentID, content, encoded,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("insert scrap: %w", err)
	}

	scrap, err := scanScrap(s.db.QueryRow(ctx, scrapSelect+` WHERE s.id = $1`, id), params.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("load scrap: %w", err)
	}

	if params.AuthorID != params.ProfileID {
		if err := bumpInteraction(ctx, s.db, params.AuthorID, params.ProfileID, models.ScrapInteractionPoints); err != nil {
			logging.Warn("Failed to bump interaction score", map[string]interface{}{
				"error":    err.Error(),
				"scrap_id": id.String(),
			})
		}
		if s.notificationService != nil {
			if err := s.notificationService.NotifyScrapReceived(ctx, params.ProfileID, params.AuthorID, id); err != nil {
				logging.Error("Failed to send scrap notification", map[string]interface{}{
					"error":    err.Error(),
					"scrap_id": id.String(),
				})
			}
		}
	}
	return scrap, nil
}

// Delete removes a scrap. Its author and the owner of the profile it was
// left on may delete it.
func (s *ScrapService) Delete(ctx context.Context, scrapID, userID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM scraps WHERE id = $1 AND (author_id = $2 OR profile_id = $2)`,
		scrapID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete scrap: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrScrapNotFound
	}
	return nil
}

// ToggleLike flips userID's like on a scrap in one statement. Both the
// membership test and the count change read the same locked row version,
// so concurrent toggles cannot drift apart.
func (s *ScrapService) ToggleLike(ctx context.Context, scrapID, userID uuid.UUID) (bool, int, error) {
	var liked bool
	var likes int
	err := s.db.QueryRow(ctx,
		`UPDATE scraps
		 SET liked_by = CASE WHEN $2::uuid = ANY(liked_by)
		                     THEN array_remove(liked_by, $2::uuid)
		                     ELSE array_append(liked_by, $2::uuid) END,
		     likes = CASE WHEN $2::uuid = ANY(liked_by)
		                  THEN GREATEST(likes - 1, 0)
		                  ELSE likes + 1 END,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING $2::uuid = ANY(liked_by), likes`,
		scrapID, userID,
	).Scan(&liked, &likes)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, 0, ErrScrapNotFound
	}
	if err != nil {
		return false, 0, fmt.Errorf("toggle scrap like: %w", err)
	}
	return liked, likes, nil
}
