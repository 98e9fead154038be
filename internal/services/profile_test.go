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

func profileValues(id uuid.UUID, updatedAt time.Time, backgroundUnlocked bool) []any {
	return []any{
		id, "Casa Amarela", "bio", "Recife", "mi casa es su casa", nil, nil, nil,
		10, 2, 7, []string{"welcome"}, "#f5c542", "cottage", "42",
		"Rua das Flores", nil, []byte(`{"living_room":[{"id":"sofa-1","name":"Sofa","type":"furniture","position":{"x":1,"y":2},"rotation":0,"scale":1}]}`),
		"#ffffff", "em casa", true,
		backgroundUnlocked, updatedAt.Add(-time.Hour), updatedAt,
	}
}

func TestProfileService_GetByUserID(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowFromValues(profileValues(userID, now.Add(-time.Minute), false)...)
		},
	}
	svc := NewProfileService(db, nil, nil)
	svc.now = func() time.Time { return now }

	profile, err := svc.GetByUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !profile.IsOnline {
		t.Fatal("expected profile touched a minute ago to be online")
	}
	if len(profile.RoomDecorations["living_room"]) != 1 || profile.RoomDecorations["living_room"][0].Name != "Sofa" {
		t.Fatalf("unexpected decorations: %+v", profile.RoomDecorations)
	}
	if profile.GardenItems == nil || len(profile.GardenItems) != 0 {
		t.Fatalf("expected empty garden, got %v", profile.GardenItems)
	}
}

func TestProfileService_GetByUserID_NotFound(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}
	_, err := NewProfileService(db, nil, nil).GetByUserID(context.Background(), uuid.New())
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestProfileService_Update_RejectsBlankName(t *testing.T) {
	blank := "   "
	_, err := NewProfileService(&fakeDB{}, nil, nil).Update(context.Background(), uuid.New(), models.UpdateProfileParams{CasaName: &blank})
	if !errors.Is(err, ErrInvalidCasaName) {
		t.Fatalf("expected ErrInvalidCasaName, got %v", err)
	}
}

func TestProfileService_Customize(t *testing.T) {
	userID := uuid.New()

	t.Run("invalid style", func(t *testing.T) {
		style := "igloo"
		_, err := NewProfileService(&fakeDB{}, nil, nil).Customize(context.Background(), userID, models.CustomizeHouseParams{HouseStyle: &style})
		if !errors.Is(err, ErrInvalidHouseStyle) {
			t.Fatalf("expected ErrInvalidHouseStyle, got %v", err)
		}
	})

	t.Run("address too long", func(t *testing.T) {
		number := strings.Repeat("9", maxHouseNumberLen+1)
		_, err := NewProfileService(&fakeDB{}, nil, nil).Customize(context.Background(), userID, models.CustomizeHouseParams{HouseNumber: &number})
		if !errors.Is(err, ErrInvalidHouseAddress) {
			t.Fatalf("expected ErrInvalidHouseAddress, got %v", err)
		}
	})

	t.Run("encodes garden and decorations", func(t *testing.T) {
		garden := []string{"roses", "fountain"}
		rooms := models.RoomDecorations{"kitchen": {{ID: "pan", Name: "Pan", Type: "item"}}}
		var gotArgs []any
		db := &fakeDB{
			QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
				gotArgs = args
				return rowFromValues(profileValues(userID, time.Now(), false)...)
			},
		}
		_, err := NewProfileService(db, nil, nil).Customize(context.Background(), userID, models.CustomizeHouseParams{
			GardenItems:     &garden,
			RoomDecorations: &rooms,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g, ok := gotArgs[5].([]string); !ok || len(g) != 2 {
			t.Fatalf("expected garden slice arg, got %#v", gotArgs[5])
		}
		if d, ok := gotArgs[6].([]byte); !ok || !strings.Contains(string(d), `"kitchen"`) {
			t.Fatalf("expected encoded decorations, got %#v", gotArgs[6])
		}
		if gotArgs[1] != (*string)(nil) {
			t.Fatalf("expected nil house color, got %#v", gotArgs[1])
		}
	})
}

func TestProfileService_RecordVisit(t *testing.T) {
	owner := uuid.New()
	visitor := uuid.New()

	t.Run("own house is ignored", func(t *testing.T) {
		db := &fakeDB{BeginFunc: func(ctx context.Context) (Tx, error) {
			t.Fatal("unexpected transaction")
			return nil, nil
		}}
		if err := NewProfileService(db, nil, nil).RecordVisit(context.Background(), owner, owner, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("counts and logs without touching presence", func(t *testing.T) {
		var statements []string
		var message any
		committed := false
		tx := &fakeTx{
			ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
				statements = append(statements, sql)
				if strings.Contains(sql, "INSERT INTO house_visits") {
					message = args[2]
				}
				return fakeCommandTag{rowsAffected: 1}, nil
			},
			CommitFunc: func(ctx context.Context) error {
				committed = true
				return nil
			},
		}
		db := &fakeDB{BeginFunc: func(ctx context.Context) (Tx, error) { return tx, nil }}
		msg := "  passei pra dar um oi  "
		if err := NewProfileService(db, nil, nil).RecordVisit(context.Background(), owner, visitor, &msg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !committed || len(statements) != 2 {
			t.Fatalf("expected two statements and commit, got %v", statements)
		}
		for _, sql := range statements {
			if strings.Contains(sql, "updated_at") {
				t.Fatalf("visit must not change updated_at: %q", sql)
			}
		}
		if m, ok := message.(*string); !ok || *m != "passei pra dar um oi" {
			t.Fatalf("expected trimmed message, got %#v", message)
		}
	})

	t.Run("missing house", func(t *testing.T) {
		tx := &fakeTx{
			ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
				return fakeCommandTag{rowsAffected: 0}, nil
			},
		}
		db := &fakeDB{BeginFunc: func(ctx context.Context) (Tx, error) { return tx, nil }}
		err := NewProfileService(db, nil, nil).RecordVisit(context.Background(), owner, visitor, nil)
		if !errors.Is(err, ErrProfileNotFound) {
			t.Fatalf("expected ErrProfileNotFound, got %v", err)
		}
	})
}

func TestProfileService_Touch_Throttled(t *testing.T) {
	writes := 0
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			writes++
			return fakeCommandTag{rowsAffected: 1}, nil
		},
	}
	redis := newFakeRedis()
	svc := NewProfileService(db, redis, nil)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		if err := svc.Touch(context.Background(), userID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if writes != 1 {
		t.Fatalf("expected one write inside the throttle window, got %d", writes)
	}
	if redis.ttls[presenceKeyPrefix+userID.String()] != presenceThrottle {
		t.Fatalf("expected throttle ttl %v", presenceThrottle)
	}

	if err := svc.Touch(context.Background(), uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if writes != 2 {
		t.Fatalf("expected a different user to write, got %d", writes)
	}
}

func TestProfileService_Touch_RedisDownStillWrites(t *testing.T) {
	writes := 0
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			writes++
			return fakeCommandTag{rowsAffected: 1}, nil
		},
	}
	redis := newFakeRedis()
	redis.err = errors.New("redis down")
	svc := NewProfileService(db, redis, nil)

	_ = svc.Touch(context.Background(), uuid.New())
	_ = svc.Touch(context.Background(), uuid.New())
	if writes != 2 {
		t.Fatalf("expected every call to write, got %d", writes)
	}
}

func TestProfileService_SetAvatar_StoresThumbnail(t *testing.T) {
	userID := uuid.New()
	store := newMemoryStore()
	var gotURL any
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			gotURL = args[1]
			return rowFromValues(profileValues(userID, time.Now(), false)...)
		},
	}
	svc := NewProfileService(db, nil, store)
	if _, err := svc.SetAvatar(context.Background(), userID, encodePNG(t, 800, 600)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stored object, got %d", store.Len())
	}
	url, _ := gotURL.(string)
	if !strings.HasPrefix(url, "https://media.example.com/avatars/"+userID.String()+"/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("unexpected avatar url %q", url)
	}
}

func TestProfileService_SetAvatar_NoStorage(t *testing.T) {
	_, err := NewProfileService(&fakeDB{}, nil, nil).SetAvatar(context.Background(), uuid.New(), []byte("x"))
	if !errors.Is(err, ErrStorageNotAvailable) {
		t.Fatalf("expected ErrStorageNotAvailable, got %v", err)
	}
}

func TestProfileService_SetCover_RequiresUnlock(t *testing.T) {
	userID := uuid.New()
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowFromValues(profileValues(userID, time.Now(), false)...)
		},
	}
	store := newMemoryStore()
	_, err := NewProfileService(db, nil, store).SetCover(context.Background(), userID, encodePNG(t, 10, 10))
	if !errors.Is(err, ErrBackgroundLocked) {
		t.Fatalf("expected ErrBackgroundLocked, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("expected nothing stored")
	}
}

func TestProfileService_HouseCard(t *testing.T) {
	userID := uuid.New()
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "FROM friendships") {
				return rowFromValues(3, 12, 40)
			}
			return rowFromValues(profileValues(userID, time.Now(), false)...)
		},
	}
	png, err := NewProfileService(db, nil, nil).HouseCard(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Fatal("expected PNG output")
	}
}
