package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/tville/internal/models"
)

func TestNotificationService_Notify_InsertsTypedRow(t *testing.T) {
	recipient := uuid.New()
	actor := uuid.New()
	ref := uuid.New()

	cases := []struct {
		name   string
		notify func(*NotificationService) error
		kind   models.NotificationType
		column string
	}{
		{
			name: "friend request received",
			notify: func(s *NotificationService) error {
				return s.NotifyFriendRequestReceived(context.Background(), recipient, actor, ref)
			},
			kind:   models.NotificationTypeFriendRequestReceived,
			column: "friendship_id",
		},
		{
			name: "friend request accepted",
			notify: func(s *NotificationService) error {
				return s.NotifyFriendRequestAccepted(context.Background(), recipient, actor, ref)
			},
			kind:   models.NotificationTypeFriendRequestAccepted,
			column: "friendship_id",
		},
		{
			name: "scrap received",
			notify: func(s *NotificationService) error {
				return s.NotifyScrapReceived(context.Background(), recipient, actor, ref)
			},
			kind:   models.NotificationTypeScrapReceived,
			column: "scrap_id",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotSQL string
			var gotArgs []any
			db := &fakeDB{
				ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
					gotSQL = sql
					gotArgs = args
					return fakeCommandTag{rowsAffected: 1}, nil
				},
			}
			if err := tc.notify(NewNotificationService(db, nil)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(gotSQL, "INSERT INTO notifications") || !strings.Contains(gotSQL, tc.column) {
				t.Fatalf("unexpected sql: %q", gotSQL)
			}
			if len(gotArgs) != 4 || gotArgs[0] != recipient || gotArgs[1] != tc.kind || gotArgs[2] != actor || gotArgs[3] != ref {
				t.Fatalf("unexpected args: %v", gotArgs)
			}
		})
	}
}

func TestNotificationService_Notify_SkipsSelf(t *testing.T) {
	userID := uuid.New()
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			t.Fatal("expected no insert for self notification")
			return nil, nil
		},
	}
	if err := NewNotificationService(db, nil).NotifyScrapReceived(context.Background(), userID, userID, uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNotificationService_NotifyRecommendation_EmailsVerifiedRecipient(t *testing.T) {
	email := &stubEmailService{}
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if !strings.Contains(sql, "FROM library_recommendations") {
				t.Fatalf("unexpected query: %q", sql)
			}
			return rowFromValues("maria@example.com", true, "Casa do Ze", "Dom Casmurro")
		},
	}
	svc := NewNotificationService(db, email)
	if err := svc.NotifyRecommendationReceived(context.Background(), uuid.New(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(email.recommendations) != 1 || email.recommendations[0] != "maria@example.com|Casa do Ze|Dom Casmurro" {
		t.Fatalf("unexpected emails: %v", email.recommendations)
	}
}

func TestNotificationService_NotifyRecommendation_SkipsUnverifiedAndIgnoresEmailErrors(t *testing.T) {
	verified := false
	email := &stubEmailService{}
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowFromValues("maria@example.com", verified, "Casa do Ze", "Dom Casmurro")
		},
	}
	svc := NewNotificationService(db, email)
	if err := svc.NotifyRecommendationReceived(context.Background(), uuid.New(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(email.recommendations) != 0 {
		t.Fatalf("expected no email for unverified recipient, got %v", email.recommendations)
	}

	verified = true
	email.err = errors.New("smtp down")
	if err := svc.NotifyRecommendationReceived(context.Background(), uuid.New(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("expected email failure to be swallowed, got %v", err)
	}
}

func TestNotificationService_List_BuildsQueryAndScans(t *testing.T) {
	userID := uuid.New()
	actorID := uuid.New()
	before := time.Now()
	casa := "Casa do Ze"
	var gotSQL string
	var gotArgs []any
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			gotSQL = sql
			gotArgs = args
			return &fakeRows{rows: [][]any{{
				uuid.New(), userID, "scrap_received", &actorID, &casa,
				nil, nil, nil, nil, before.Add(-time.Minute),
			}}}, nil
		},
	}

	svc := NewNotificationService(db, nil)
	list, err := svc.List(context.Background(), userID, NotificationListParams{Limit: 500, Before: &before, UnreadOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].Type != models.NotificationTypeScrapReceived {
		t.Fatalf("unexpected notifications: %+v", list)
	}
	if list[0].ActorCasaName == nil || *list[0].ActorCasaName != casa {
		t.Fatalf("expected actor casa name, got %v", list[0].ActorCasaName)
	}
	if !strings.Contains(gotSQL, "read_at IS NULL") || !strings.Contains(gotSQL, "n.created_at < $2") || !strings.Contains(gotSQL, "LIMIT $3") {
		t.Fatalf("unexpected sql: %q", gotSQL)
	}
	if gotArgs[2] != maxNotificationLimit {
		t.Fatalf("expected limit clamp to %d, got %v", maxNotificationLimit, gotArgs[2])
	}
}

func TestNotificationService_List_DefaultLimit(t *testing.T) {
	var gotArgs []any
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			gotArgs = args
			return &fakeRows{}, nil
		},
	}
	list, err := NewNotificationService(db, nil).List(context.Background(), uuid.New(), NotificationListParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", list)
	}
	if len(gotArgs) != 2 || gotArgs[1] != defaultNotificationLimit {
		t.Fatalf("unexpected args: %v", gotArgs)
	}
}

func TestNotificationService_MarkRead(t *testing.T) {
	t.Run("updated", func(t *testing.T) {
		db := &fakeDB{
			ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
				return fakeCommandTag{rowsAffected: 1}, nil
			},
		}
		if err := NewNotificationService(db, nil).MarkRead(context.Background(), uuid.New(), uuid.New()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("already read", func(t *testing.T) {
		id := uuid.New()
		db := &fakeDB{
			ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
				return fakeCommandTag{rowsAffected: 0}, nil
			},
			QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
				return rowFromValues(id)
			},
		}
		if err := NewNotificationService(db, nil).MarkRead(context.Background(), uuid.New(), id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		db := &fakeDB{
			ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
				return fakeCommandTag{rowsAffected: 0}, nil
			},
			QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
				return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
			},
		}
		err := NewNotificationService(db, nil).MarkRead(context.Background(), uuid.New(), uuid.New())
		if !errors.Is(err, ErrNotificationNotFound) {
			t.Fatalf("expected ErrNotificationNotFound, got %v", err)
		}
	})
}

func TestNotificationService_Delete_NotFound(t *testing.T) {
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			return fakeCommandTag{rowsAffected: 0}, nil
		},
	}
	err := NewNotificationService(db, nil).Delete(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
}

func TestNotificationService_UnreadCount(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if !strings.Contains(sql, "read_at IS NULL") {
				t.Fatalf("unexpected sql: %q", sql)
			}
			return rowFromValues(7)
		},
	}
	count, err := NewNotificationService(db, nil).UnreadCount(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected 7, got %d", count)
	}
}

func TestNotificationService_CleanupOld_UsesRetentionCutoff(t *testing.T) {
	var cutoff time.Time
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			cutoff = args[0].(time.Time)
			return fakeCommandTag{rowsAffected: 3}, nil
		},
	}
	if err := NewNotificationService(db, nil).CleanupOld(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	age := time.Since(cutoff)
	if age < models.NotificationRetention || age > models.NotificationRetention+time.Minute {
		t.Fatalf("unexpected cutoff age %v", age)
	}
}
