package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// lockUsers row-locks the given users in ascending id order, each at most
// once. Callers that touch two houses in one transaction (friend requests,
// account removal) take their locks here so concurrent writers agree on
// ordering. A missing user yields ErrUserNotFound.
func lockUsers(ctx context.Context, q DBConn, ids ...uuid.UUID) error {
	ordered := slices.Clone(ids)
	slices.SortFunc(ordered, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	ordered = slices.Compact(ordered)

	for _, id := range ordered {
		var locked uuid.UUID
		err := q.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return ErrUserNotFound
		case err != nil:
			return fmt.Errorf("lock user %s: %w", id, err)
		}
	}
	return nil
}
