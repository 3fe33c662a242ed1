package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"donutbet/internal/model"
	"donutbet/internal/service/ledger"
	"donutbet/pkg/apperrors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*gorm.DB, *ledger.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.House{}, &model.LedgerEntry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db, ledger.NewService(db)
}

func seedUser(t *testing.T, db *gorm.DB, discordID string, coins int64) *model.User {
	t.Helper()

	user := &model.User{DiscordID: discordID, Username: "player-" + discordID, Coins: coins}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func TestGetCoinsUnknownUser(t *testing.T) {
	_, svc := newService(t)

	coins, err := svc.GetCoins(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("get coins failed: %v", err)
	}
	if coins != 0 {
		t.Fatalf("expected 0 coins for unknown id, got %d", coins)
	}
}

func TestAdjustCoins(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)
	user := seedUser(t, db, "100", 500)

	balance, err := svc.AdjustCoins(ctx, "100", 250)
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if balance != 750 {
		t.Fatalf("expected balance 750, got %d", balance)
	}

	var entry model.LedgerEntry
	if err := db.Where("user_id = ?", user.ID).First(&entry).Error; err != nil {
		t.Fatalf("expected ledger entry: %v", err)
	}
	if entry.Type != model.EntryAdjust || entry.Delta != 250 || entry.BalanceAfter != 750 {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}
}

func TestAdjustCoinsCannotGoNegative(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)
	seedUser(t, db, "100", 100)

	_, err := svc.AdjustCoins(ctx, "100", -101)
	if !errors.Is(err, apperrors.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	coins, err := svc.GetCoins(ctx, "100")
	if err != nil {
		t.Fatalf("get coins failed: %v", err)
	}
	if coins != 100 {
		t.Fatalf("expected balance unchanged at 100, got %d", coins)
	}
}

func TestAdjustCoinsUnknownUser(t *testing.T) {
	_, svc := newService(t)

	_, err := svc.AdjustCoins(context.Background(), "ghost", 10)
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestEnsureHouseIdempotent(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)

	if err := svc.EnsureHouse(ctx); err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	if err := svc.EnsureHouse(ctx); err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}

	var count int64
	if err := db.Model(&model.House{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count house rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 house row, got %d", count)
	}

	balance, err := svc.HouseBalance(ctx)
	if err != nil {
		t.Fatalf("house balance failed: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected empty house, got %d", balance)
	}
}
