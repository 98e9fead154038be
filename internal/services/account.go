package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AccountService struct {
	db DB
}

func NewAccountService(db DB) *AccountService {
	return &AccountService{db: db}
}

// BuildExportZip packages everything the user owns as CSV files.
func (s *AccountService) BuildExportZip(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	user, err := getUserByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	if err := writeReadme(zipWriter, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := writeCSVFile(zipWriter, "user.csv", []string{
		"id", "email", "username", "email_verified", "email_verified_at", "created_at", "updated_at",
	}, func(w *csv.Writer) error {
		return w.Write([]string{
			user.ID.String(),
			sanitizeCSVValue(user.Email),
			sanitizeCSVValue(user.Username),
			boolString(user.EmailVerified),
			formatTime(user.EmailVerifiedAt),
			formatTimeValue(user.CreatedAt),
			formatTimeValue(user.UpdatedAt),
		})
	}); err != nil {
		return nil, err
	}

	writers := []func(context.Context, *zip.Writer, uuid.UUID) error{
		s.writeProfileCSV,
		s.writeFriendshipsCSV,
		s.writeScrapsCSV,
		s.writeLibraryItemsCSV,
		s.writeRecommendationsCSV,
		s.writeNotificationsCSV,
	}
	for _, write := range writers {
		if err := write(ctx, zipWriter, userID); err != nil {
			return nil, err
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("close export zip: %w", err)
	}

	return buf.Bytes(), nil
}

// Delete removes the user; rows that reference it cascade. Denormalised
// like counters on other people's content are corrected first.
func (s *AccountService) Delete(ctx context.Context, userID uuid.UUID) error {
	return WithTx(ctx, s.db, func(tx Tx) error {
		if err := lockUsers(ctx, tx, userID); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE scraps
			SET liked_by = array_remove(liked_by, $1),
			    likes = GREATEST(likes - 1, 0)
			WHERE $1 = ANY(liked_by)
		`, userID); err != nil {
			return fmt.Errorf("remove scrap likes: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE library_items
			SET likes_count = GREATEST(likes_count - 1, 0)
			WHERE id IN (SELECT item_id FROM library_item_likes WHERE user_id = $1)
		`, userID); err != nil {
			return fmt.Errorf("remove library likes: %w", err)
		}

		result, err := tx.Exec(ctx, "DELETE FROM users WHERE id = $1", userID)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

func writeReadme(zipWriter *zip.Writer, generatedAt time.Time) error {
	file, err := zipWriter.Create("README.txt")
	if err != nil {
		return fmt.Errorf("create README.txt: %w", err)
	}
	content := fmt.Sprintf(
		"T-Ville account export\nexport_version: 1\ngenerated_at: %s\nnotes: gallery albums are not stored server side and are not included.\n",
		generatedAt.Format(time.RFC3339),
	)
	if _, err := io.WriteString(file, content); err != nil {
		return fmt.Errorf("write README.txt: %w", err)
	}
	return nil
}

func writeCSVFile(zipWriter *zip.Writer, name string, header []string, writeRows func(*csv.Writer) error) error {
	file, err := zipWriter.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	if err := writeRows(writer); err != nil {
		return fmt.Errorf("write %s rows: %w", name, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	return nil
}

// writeQueryCSV streams the rows of one query into a CSV file. scan reads
// the current row and returns its record.
func writeQueryCSV(ctx context.Context, db DBConn, zipWriter *zip.Writer, name string, header []string, query string, args []any, scan func(Rows) ([]string, error)) error {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	return writeCSVFile(zipWriter, name, header, func(w *csv.Writer) error {
		for rows.Next() {
			record, err := scan(rows)
			if err != nil {
				return fmt.Errorf("scan %s: %w", name, err)
			}
			if err := w.Write(record); err != nil {
				return fmt.Errorf("write %s row: %w", name, err)
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate %s: %w", name, err)
		}
		return nil
	})
}

func (s *AccountService) writeProfileCSV(ctx context.Context, zipWriter *zip.Writer, userID uuid.UUID) error {
	return writeQueryCSV(ctx, s.db, zipWriter, "profile.csv",
		[]string{"casa_name", "bio", "location", "house_motto", "avatar_url", "cover_url", "visit_count", "house_style", "house_color", "street_name", "house_number", "created_at"},
		`SELECT casa_name, bio, location, house_motto, avatar_url, cover_url, visit_count,
		        house_style, house_color, street_name, house_number, created_at
		 FROM profiles WHERE id = $1`,
		[]any{userID},
		func(rows Rows) ([]string, error) {
			var (
				casaName, bio, location, motto string
				avatarURL, coverURL            *string
				visits                         int
				style, color, street, houseNum string
				createdAt                      time.Time
			)
			if err := rows.Scan(&casaName, &bio, &location, &motto, &avatarURL, &coverURL, &visits, &style, &color, &street, &houseNum, &createdAt); err != nil {
				return nil, err
			}
			return []string{
				sanitizeCSVValue(casaName),
				sanitizeCSVValue(bio),
				sanitizeCSVValue(location),
				sanitizeCSVValue(motto),
				nullableString(avatarURL),
				nullableString(coverURL),
				fmt.Sprintf("%d", visits),
				sanitizeCSVValue(style),
				sanitizeCSVValue(color),
				sanitizeCSVValue(street),
				sanitizeCSVValue(houseNum),
				formatTimeValue(createdAt),
			}, nil
		},
	)
}

func (s *AccountService) writeFriendshipsCSV(ctx context.Context, zipWriter *zip.Writer, userID uuid.UUID) error {
	return writeQueryCSV(ctx, s.db, zipWriter, "friendships.csv",
		[]string{"id", "user_id", "friend_id", "status", "interaction_score", "created_at"},
		`SELECT id, user_id, friend_id, status, interaction_score, created_at
		 FROM friendships
		 WHERE user_id = $1 OR friend_id = $1
		 ORDER BY created_at`,
		[]any{userID},
		func(rows Rows) ([]string, error) {
			var (
				id, a, b  uuid.UUID
				status    string
				score     int
				createdAt time.Time
			)
			if err := rows.Scan(&id, &a, &b, &status, &score, &createdAt); err != nil {
				return nil, err
			}
			return []string{id.String(), a.String(), b.String(), status, fmt.Sprintf("%d", score), formatTimeValue(createdAt)}, nil
		},
	)
}

func (s *AccountService) writeScrapsCSV(ctx context.Context, zipWriter *zip.Writer, userID uuid.UUID) error {
	return writeQueryCSV(ctx, s.db, zipWriter, "scraps.csv",
		[]string{"id", "profile_id", "author_id", "parent_id", "content", "likes", "created_at"},
		`SELECT id, profile_id, author_id, parent_id, content, likes, created_at
		 FROM scraps
		 WHERE author_id = $1 OR profile_id = $1
		 ORDER BY created_at`,
		[]any{userID},
		func(rows Rows) ([]string, error) {
			var (
				id, profileID, authorID uuid.UUID
				parentID                *uuid.UUID
				content                 string
				likes                   int
				createdAt               time.Time
			)
			if err := rows.Scan(&id, &profileID, &authorID, &parentID, &content, &likes, &createdAt); err != nil {
				return nil, err
			}
			return []string{id.String(), profileID.String(), authorID.String(), nullableUUID(parentID), sanitizeCSVValue(content), fmt.Sprintf("%d", likes), formatTimeValue(createdAt)}, nil
		},
	)
}

func (s *AccountService) writeLibraryItemsCSV(ctx context.Context, zipWriter *zip.Writer, userID uuid.UUID) error {
	return writeQueryCSV(ctx, s.db, zipWriter, "library_items.csv",
		[]string{"id", "type", "title", "creator", "status", "rating", "is_favorite", "notes", "likes_count", "created_at"},
		`SELECT id, type, title, creator, status, rating, is_favorite, notes, likes_count, created_at
		 FROM library_items
		 WHERE user_id = $1
		 ORDER BY created_at`,
		[]any{userID},
		func(rows Rows) ([]string, error) {
			var (
				id              uuid.UUID
				itemType, title string
				creator, notes  *string
				status          string
				rating          *int
				favorite        bool
				likes           int
				createdAt       time.Time
			)
			if err := rows.Scan(&id, &itemType, &title, &creator, &status, &rating, &favorite, &notes, &likes, &createdAt); err != nil {
				return nil, err
			}
			return []string{id.String(), itemType, sanitizeCSVValue(title), nullableString(creator), status, nullableInt(rating), boolString(favorite), nullableString(notes), fmt.Sprintf("%d", likes), formatTimeValue(createdAt)}, nil
		},
	)
}

func (s *AccountService) writeRecommendationsCSV(ctx context.Context, zipWriter *zip.Writer, userID uuid.UUID) error {
	return writeQueryCSV(ctx, s.db, zipWriter, "library_recommendations.csv",
		[]string{"id", "from_user_id", "to_user_id", "item_type", "item_title", "note", "status", "created_at"},
		`SELECT id, from_user_id, to_user_id, item_type, item_title, note, status, created_at
		 FROM library_recommendations
		 WHERE from_user_id = $1 OR to_user_id = $1
		 ORDER BY created_at`,
		[]any{userID},
		func(rows Rows) ([]string, error) {
			var (
				id, from, to    uuid.UUID
				itemType, title string
				note            *string
				status          string
				createdAt       time.Time
			)
			if err := rows.Scan(&id, &from, &to, &itemType, &title, &note, &status, &createdAt); err != nil {
				return nil, err
			}
			return []string{id.String(), from.String(), to.String(), itemType, sanitizeCSVValue(title), nullableString(note), status, formatTimeValue(createdAt)}, nil
		},
	)
}

func (s *AccountService) writeNotificationsCSV(ctx context.Context, zipWriter *zip.Writer, userID uuid.UUID) error {
	return writeQueryCSV(ctx, s.db, zipWriter, "notifications.csv",
		[]string{"id", "type", "actor_user_id", "read_at", "created_at"},
		`SELECT id, type, actor_user_id, read_at, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at`,
		[]any{userID},
		func(rows Rows) ([]string, error) {
			var (
				id        uuid.UUID
				kind      string
				actorID   *uuid.UUID
				readAt    *time.Time
				createdAt time.Time
			)
			if err := rows.Scan(&id, &kind, &actorID, &readAt, &createdAt); err != nil {
				return nil, err
			}
			return []string{id.String(), kind, nullableUUID(actorID), formatTime(readAt), formatTimeValue(createdAt)}, nil
		},
	)
}

func formatTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func formatTimeValue(value time.Time) string {
	return value.UTC().Format(time.RFC3339)
}

func boolString(value bool) string {
	if value {
		return "true"
	}
	return "false"
}

// sanitizeCSVValue neutralises values a spreadsheet would evaluate as a
// formula.
func sanitizeCSVValue(value string) string {
	switch firstNonSpace(value) {
	case '=', '+', '-', '@':
		return "'" + strings.ReplaceAll(value, "'", "''")
	default:
		return value
	}
}

func firstNonSpace(value string) rune {
	for _, r := range value {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return r
		}
	}
	return 0
}

func nullableString(value *string) string {
	if value == nil {
		return ""
	}
	return sanitizeCSVValue(*value)
}

func nullableInt(value *int) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%d", *value)
}

func nullableUUID(value *uuid.UUID) string {
	if value == nil {
		return ""
	}
	return value.String()
}
