package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/tville/internal/models"
)

var (
	ErrInvalidProviderClaims   = errors.New("invalid provider claims")
	ErrProviderEmailUnverified = errors.New("provider email not verified")
	ErrProviderIdentityExists  = errors.New("provider identity already linked")
)

type ProviderAuthService struct {
	db DB
}

func NewProviderAuthService(db DB) *ProviderAuthService {
	return &ProviderAuthService{db: db}
}

// LinkOrCreateUser resolves provider claims to a resident. A known identity
// signs straight in. A verified email that matches an existing account is
// linked to it. Anyone else moves into a new house named after them.
func (s *ProviderAuthService) LinkOrCreateUser(ctx context.Context, claims IdentityClaims) (*models.User, error) {
	subject := strings.TrimSpace(claims.Subject)
	if strings.TrimSpace(string(claims.Provider)) == "" || subject == "" {
		return nil, ErrInvalidProviderClaims
	}

	user, err := userByIdentity(ctx, s.db, claims.Provider, subject)
	if !errors.Is(err, ErrUserNotFound) {
		return user, err
	}

	email := normalizeEmail(claims.Email)
	if email == "" || !claims.EmailVerified {
		return nil, ErrProviderEmailUnverified
	}

	err = WithTx(ctx, s.db, func(tx Tx) error {
		var err error
		user, err = getUserByEmail(ctx, tx, email)
		switch {
		case err == nil:
			err = markEmailVerified(ctx, tx, user.ID)
		case errors.Is(err, ErrUserNotFound):
			user, err = createUserWithProfile(ctx, tx, models.CreateUserParams{
				Email:    email,
				Username: usernameFromEmail(email),
				CasaName: casaNameFromClaims(claims, email),
			}, true)
		}
		if err != nil {
			return err
		}
		return linkIdentity(ctx, tx, user.ID, claims.Provider, subject, email)
	})
	if errors.Is(err, ErrProviderIdentityExists) {
		// A concurrent callback for the same identity won the insert.
		return userByIdentity(ctx, s.db, claims.Provider, subject)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// casaNameFromClaims names a new resident's house after their display name,
// or the local part of their email.
func casaNameFromClaims(claims IdentityClaims, email string) string {
	name := strings.TrimSpace(claims.Name)
	if name == "" {
		name = usernameFromEmail(email)
	}
	name += defaultCasaNameSuffix
	if len(name) > maxCasaNameLength {
		name = name[:maxCasaNameLength]
	}
	return name
}

func linkIdentity(ctx context.Context, tx Tx, userID uuid.UUID, provider Provider, subject, email string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO user_identities (user_id, provider, subject, email) VALUES ($1, $2, $3, $4)`,
		userID, provider, subject, email,
	)
	switch {
	case isUniqueViolation(err):
		return ErrProviderIdentityExists
	case err != nil:
		return fmt.Errorf("link %s identity: %w", provider, err)
	}
	return nil
}

func userByIdentity(ctx context.Context, db DBConn, provider Provider, subject string) (*models.User, error) {
	user := &models.User{}
	err := scanUser(db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE id = (SELECT user_id FROM user_identities WHERE provider = $1 AND subject = $2)`,
		provider, subject,
	), user)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s identity: %w", provider, err)
	}
	return user, nil
}
