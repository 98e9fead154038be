package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/HammerMeetNail/tville/internal/models"
)

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrPasswordTooShort     = errors.New("password too short")
	ErrInvalidCasaName      = errors.New("invalid house name")
	ErrVerificationNotFound = errors.New("verification token not found or expired")
)

const (
	sessionKeyPrefix      = "session:"
	sessionTokenBytes     = 32
	minPasswordLength     = 8
	verificationTokenTTL  = 24 * time.Hour
	DefaultSessionTTL     = 7 * 24 * time.Hour
	bcryptCost            = 12
	maxCasaNameLength     = 100
	defaultCasaNameSuffix = "'s house"
)

type SignUpParams struct {
	Email    string
	Password string
	CasaName string
}

type AuthService struct {
	db         DB
	redis      RedisClient
	email      EmailServiceInterface
	sessionTTL time.Duration
}

func NewAuthService(db DB, redis RedisClient, email EmailServiceInterface, sessionTTL time.Duration) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &AuthService{
		db:         db,
		redis:      redis,
		email:      email,
		sessionTTL: sessionTTL,
	}
}

func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// SignUp creates the user and its profile in one transaction, then sends a
// confirmation email. A failed email does not undo the signup.
func (s *AuthService) SignUp(ctx context.Context, params SignUpParams) (*models.User, error) {
	email := normalizeEmail(params.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	if len(params.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	username := usernameFromEmail(email)
	casaName := strings.TrimSpace(params.CasaName)
	if casaName == "" {
		casaName = username + defaultCasaNameSuffix
	}
	if len(casaName) > maxCasaNameLength {
		return nil, ErrInvalidCasaName
	}

	hash, err := s.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback is a no-op after commit

	user, err := createUserWithProfile(ctx, tx, models.CreateUserParams{
		Email:        email,
		PasswordHash: &hash,
		Username:     username,
		CasaName:     casaName,
	}, false)
	if err != nil {
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO email_verification_tokens (token_hash, user_id, expires_at) VALUES ($1, $2, $3)`,
		hashToken(token), user.ID, time.Now().Add(verificationTokenTTL),
	); err != nil {
		return nil, fmt.Errorf("storing verification token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	if s.email != nil {
		if err := s.email.SendVerificationEmail(ctx, user.Email, token); err != nil {
			return user, fmt.Errorf("%w: %v", ErrEmailDelivery, err)
		}
	}

	return user, nil
}

// SignIn checks credentials and opens a session. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := getUserByEmail(ctx, s.db, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if !user.HasPassword() || !s.CheckPassword(*user.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, sessionKeyPrefix+hashToken(token), userID.String(), s.sessionTTL); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return token, nil
}

// ValidateSession resolves a session token to its user and slides the
// session expiry forward.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	key := sessionKeyPrefix + hashToken(token)
	raw, err := s.redis.GetEx(ctx, key, s.sessionTTL)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		_ = s.redis.Del(ctx, key)
		return nil, ErrSessionNotFound
	}

	user, err := getUserByID(ctx, s.db, userID)
	if errors.Is(err, ErrUserNotFound) {
		_ = s.redis.Del(ctx, key)
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) DeleteSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.redis.Del(ctx, sessionKeyPrefix+hashToken(token)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// VerifyEmail consumes a confirmation token and marks its user verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx,
		`DELETE FROM email_verification_tokens
		 WHERE token_hash = $1 AND expires_at > NOW()
		 RETURNING user_id`,
		hashToken(token),
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrVerificationNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("consuming verification token: %w", err)
	}

	if err := markEmailVerified(ctx, s.db, userID); err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}

func generateToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func usernameFromEmail(email string) string {
	local := email
	if i := strings.Index(email, "@"); i > 0 {
		local = email[:i]
	}
	if len(local) > 50 {
		local = local[:50]
	}
	return local
}
