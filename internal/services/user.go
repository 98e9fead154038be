package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/tville/internal/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
)

const userColumns = `id, email, password_hash, username, email_verified, email_verified_at, created_at, updated_at`

func scanUser(row Row, user *models.User) error {
	return row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Username, &user.EmailVerified, &user.EmailVerifiedAt, &user.CreatedAt, &user.UpdatedAt)
}

func getUserByID(ctx context.Context, db DBConn, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := scanUser(db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id), user)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return user, nil
}

func getUserByEmail(ctx context.Context, db DBConn, email string) (*models.User, error) {
	user := &models.User{}
	err := scanUser(db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, normalizeEmail(email)), user)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return user, nil
}

func markEmailVerified(ctx context.Context, db DBConn, userID uuid.UUID) error {
	_, err := db.Exec(ctx,
		`UPDATE users SET email_verified = true, email_verified_at = COALESCE(email_verified_at, NOW()), updated_at = NOW()
		 WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("marking email verified: %w", err)
	}
	return nil
}

// createUserWithProfile inserts a user and its house in the caller's
// transaction.
func createUserWithProfile(ctx context.Context, tx Tx, params models.CreateUserParams, verified bool) (*models.User, error) {
	user := &models.User{}
	err := scanUser(tx.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, username, email_verified, email_verified_at)
		 VALUES ($1, $2, $3, $4, CASE WHEN $4 THEN NOW() END)
		 RETURNING `+userColumns,
		params.Email, params.PasswordHash, params.Username, verified,
	), user)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	casaName := strings.TrimSpace(params.CasaName)
	if casaName == "" {
		casaName = params.Username
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO profiles (id, casa_name) VALUES ($1, $2)`,
		user.ID, casaName,
	); err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}

	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
