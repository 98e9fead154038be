package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/tville/internal/logging"
	"github.com/HammerMeetNail/tville/internal/models"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrInvalidHouseStyle   = errors.New("invalid house style")
	ErrBackgroundLocked    = errors.New("custom background is not unlocked")
	ErrStorageNotAvailable = errors.New("media storage is not configured")
	ErrInvalidHouseAddress = errors.New("house number or street name too long")
)

const (
	presenceKeyPrefix = "presence:"
	// presenceThrottle limits how often Touch writes to the profile row.
	presenceThrottle  = time.Minute
	maxHouseNumberLen = 10
	maxStreetNameLen  = 100
	maxVisitMessage   = 500
	defaultVisitLimit = 20
	maxVisitLimit     = 100
)

const profileColumns = `id, casa_name, bio, location, house_motto, avatar_url, cover_url, background_url,
	reputation_points, level, visit_count, badges, house_color, house_style, house_number,
	street_name, garden_items, room_decorations, theme_color, status, is_public,
	custom_background_unlocked, created_at, updated_at`

func scanProfile(row Row, p *models.Profile) error {
	var decorations []byte
	if err := row.Scan(
		&p.ID, &p.CasaName, &p.Bio, &p.Location, &p.HouseMotto, &p.AvatarURL, &p.CoverURL, &p.BackgroundURL,
		&p.ReputationPoints, &p.Level, &p.VisitCount, &p.Badges, &p.HouseColor, &p.HouseStyle, &p.HouseNumber,
		&p.StreetName, &p.GardenItems, &decorations, &p.ThemeColor, &p.Status, &p.IsPublic,
		&p.CustomBackgroundUnlocked, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return err
	}
	p.RoomDecorations = models.RoomDecorations{}
	if len(decorations) > 0 {
		if err := json.Unmarshal(decorations, &p.RoomDecorations); err != nil {
			return fmt.Errorf("decode room decorations: %w", err)
		}
	}
	if p.Badges == nil {
		p.Badges = []string{}
	}
	if p.GardenItems == nil {
		p.GardenItems = []string{}
	}
	return nil
}

type ProfileService struct {
	db    DB
	redis RedisClient
	store ObjectStore
	now   func() time.Time
}

func NewProfileService(db DB, redis RedisClient, store ObjectStore) *ProfileService {
	return &ProfileService{db: db, redis: redis, store: store, now: time.Now}
}

func (s *ProfileService) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	return s.profileFrom(s.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, userID))
}

func (s *ProfileService) profileFrom(row Row) (*models.Profile, error) {
	profile := &models.Profile{}
	err := scanProfile(row, profile)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	profile.IsOnline = models.IsOnline(profile.UpdatedAt, s.now())
	return profile, nil
}

func (s *ProfileService) Update(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.Profile, error) {
	if params.CasaName != nil {
		name := strings.TrimSpace(*params.CasaName)
		if name == "" || len(name) > maxCasaNameLength {
			return nil, ErrInvalidCasaName
		}
		params.CasaName = &name
	}

	return s.profileFrom(s.db.QueryRow(ctx,
		`UPDATE profiles SET
			casa_name = COALESCE($2, casa_name),
			bio = COALESCE($3, bio),
			location = COALESCE($4, location),
			house_motto = COALESCE($5, house_motto),
			status = COALESCE($6, status),
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+profileColumns,
		userID, params.CasaName, params.Bio, params.Location, params.HouseMotto, params.Status,
	))
}

// Customize changes the look of the house. Only the provided fields change.
func (s *ProfileService) Customize(ctx context.Context, userID uuid.UUID, params models.CustomizeHouseParams) (*models.Profile, error) {
	if params.IsEmpty() {
		return s.GetByUserID(ctx, userID)
	}
	if params.HouseStyle != nil && !models.IsValidHouseStyle(*params.HouseStyle) {
		return nil, ErrInvalidHouseStyle
	}
	if (params.HouseNumber != nil && len(*params.HouseNumber) > maxHouseNumberLen) ||
		(params.StreetName != nil && len(*params.StreetName) > maxStreetNameLen) {
		return nil, ErrInvalidHouseAddress
	}

	var garden any
	if params.GardenItems != nil {
		garden = *params.GardenItems
	}
	var decorations any
	if params.RoomDecorations != nil {
		encoded, err := json.Marshal(*params.RoomDecorations)
		if err != nil {
			return nil, fmt.Errorf("encode room decorations: %w", err)
		}
		decorations = encoded
	}

	return s.profileFrom(s.db.QueryRow(ctx,
		`UPDATE profiles SET
			house_color = COALESCE($2, house_color),
			house_style = COALESCE($3, house_style),
			house_number = COALESCE($4, house_number),
			street_name = COALESCE($5, street_name),
			garden_items = COALESCE($6::text[], garden_items),
			room_decorations = COALESCE($7::jsonb, room_decorations),
			theme_color = COALESCE($8, theme_color),
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+profileColumns,
		userID, params.HouseColor, params.HouseStyle, params.HouseNumber, params.StreetName,
		garden, decorations, params.ThemeColor,
	))
}

// RecordVisit counts a visit by someone other than the owner and keeps a
// visit log entry. The owner's updated_at is not touched, since it is the
// presence signal.
func (s *ProfileService) RecordVisit(ctx context.Context, ownerID, visitorID uuid.UUID, message *string) error {
	if ownerID == visitorID {
		return nil
	}
	if message != nil {
		trimmed := strings.TrimSpace(*message)
		if len(trimmed) > maxVisitMessage {
			trimmed = trimmed[:maxVisitMessage]
		}
		message = &trimmed
		if trimmed == "" {
			message = nil
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin visit: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback is a no-op after commit

	result, err := tx.Exec(ctx, `UPDATE profiles SET visit_count = visit_count + 1 WHERE id = $1`, ownerID)
	if err != nil {
		return fmt.Errorf("increment visit count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO house_visits (visitor_id, house_owner_id, message) VALUES ($1, $2, $3)`,
		visitorID, ownerID, message,
	); err != nil {
		return fmt.Errorf("insert house visit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit visit: %w", err)
	}
	return nil
}

func (s *ProfileService) ListVisits(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.HouseVisit, error) {
	if limit <= 0 {
		limit = defaultVisitLimit
	}
	limit = min(limit, maxVisitLimit)
	rows, err := s.db.Query(ctx,
		`SELECT id, visitor_id, house_owner_id, message, is_public, created_at
		 FROM house_visits
		 WHERE house_owner_id = $1 AND is_public
		 ORDER BY created_at DESC
		 LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	visits := []models.HouseVisit{}
	for rows.Next() {
		var v models.HouseVisit
		if err := rows.Scan(&v.ID, &v.VisitorID, &v.HouseOwnerID, &v.Message, &v.IsPublic, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visits: %w", err)
	}
	return visits, nil
}

// Touch marks the user as active. Writes are throttled through Redis; if
// Redis is unavailable every call writes.
func (s *ProfileService) Touch(ctx context.Context, userID uuid.UUID) error {
	if s.redis != nil {
		acquired, err := s.redis.SetNX(ctx, presenceKeyPrefix+userID.String(), "1", presenceThrottle)
		if err != nil {
			logging.Warn("Presence throttle unavailable", map[string]interface{}{"error": err.Error()})
		} else if !acquired {
			return nil
		}
	}
	if _, err := s.db.Exec(ctx, `UPDATE profiles SET updated_at = NOW() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("touch profile: %w", err)
	}
	return nil
}

func (s *ProfileService) SetAvatar(ctx context.Context, userID uuid.UUID, data []byte) (*models.Profile, error) {
	url, err := s.storeImage(ctx, "avatars", userID, data, AvatarThumbnailSize)
	if err != nil {
		return nil, err
	}
	return s.profileFrom(s.db.QueryRow(ctx,
		`UPDATE profiles SET avatar_url = $2, updated_at = NOW() WHERE id = $1 RETURNING `+profileColumns,
		userID, url,
	))
}

// SetCover replaces the house cover picture. It requires the custom
// background unlock.
func (s *ProfileService) SetCover(ctx context.Context, userID uuid.UUID, data []byte) (*models.Profile, error) {
	profile, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !profile.CustomBackgroundUnlocked {
		return nil, ErrBackgroundLocked
	}

	url, err := s.storeImage(ctx, "covers", userID, data, CoverThumbnailSize)
	if err != nil {
		return nil, err
	}
	return s.profileFrom(s.db.QueryRow(ctx,
		`UPDATE profiles SET cover_url = $2, updated_at = NOW() WHERE id = $1 RETURNING `+profileColumns,
		userID, url,
	))
}

func (s *ProfileService) storeImage(ctx context.Context, prefix string, userID uuid.UUID, data []byte, size int) (string, error) {
	if s.store == nil {
		return "", ErrStorageNotAvailable
	}
	thumb, contentType, err := MakeThumbnail(data, size)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s/%s/%s%s", prefix, userID, uuid.New(), extensionFor(contentType))
	return s.store.Put(ctx, key, contentType, thumb)
}

// HouseCard renders the shareable PNG for a profile.
func (s *ProfileService) HouseCard(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	profile, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var stats HouseCardStats
	if err := s.db.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM friendships WHERE status = 'accepted' AND (user_id = $1 OR friend_id = $1)),
			(SELECT COUNT(*) FROM scraps WHERE profile_id = $1),
			(SELECT COUNT(*) FROM library_items WHERE user_id = $1)`,
		userID,
	).Scan(&stats.Friends, &stats.Scraps, &stats.LibraryItems); err != nil {
		return nil, fmt.Errorf("load house card stats: %w", err)
	}
	return RenderHouseCardPNG(*profile, stats)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ""
	}
}
