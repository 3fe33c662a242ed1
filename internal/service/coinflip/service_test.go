package coinflip_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"donutbet/internal/model"
	"donutbet/internal/service/coinflip"
	"donutbet/pkg/apperrors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*gorm.DB, *coinflip.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.LedgerEntry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db, coinflip.NewService(db)
}

func seedUser(t *testing.T, db *gorm.DB, discordID string, coins int64) {
	t.Helper()

	if err := db.Create(&model.User{
		DiscordID: discordID,
		Username:  "player",
		Coins:     coins,
	}).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func TestFlipForcedWin(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)
	seedUser(t, db, "100", 500)
	svc.Draw = func() string { return coinflip.Heads }

	result, err := svc.Flip(ctx, "100", 10, coinflip.Heads)
	if err != nil {
		t.Fatalf("flip failed: %v", err)
	}
	if !result.Won || result.Result != coinflip.Heads {
		t.Fatalf("expected winning heads flip, got %+v", result)
	}
	if result.Coins != 510 {
		t.Fatalf("expected balance 510, got %d", result.Coins)
	}

	var entry model.LedgerEntry
	if err := db.First(&entry).Error; err != nil {
		t.Fatalf("expected ledger entry: %v", err)
	}
	if entry.Type != model.EntryWagerWin || entry.Delta != 10 || entry.BalanceAfter != 510 {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}
}

func TestFlipForcedLoss(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)
	seedUser(t, db, "100", 500)
	svc.Draw = func() string { return coinflip.Tails }

	result, err := svc.Flip(ctx, "100", 10, coinflip.Heads)
	if err != nil {
		t.Fatalf("flip failed: %v", err)
	}
	if result.Won || result.Result != coinflip.Tails {
		t.Fatalf("expected losing flip, got %+v", result)
	}
	if result.Coins != 490 {
		t.Fatalf("expected balance 490, got %d", result.Coins)
	}
}

func TestFlipRejectsInvalidBet(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)
	seedUser(t, db, "100", 500)

	if _, err := svc.Flip(ctx, "100", 0, coinflip.Heads); !errors.Is(err, apperrors.ErrInvalidBet) {
		t.Fatalf("expected ErrInvalidBet for zero bet, got %v", err)
	}
	if _, err := svc.Flip(ctx, "100", -5, coinflip.Tails); !errors.Is(err, apperrors.ErrInvalidBet) {
		t.Fatalf("expected ErrInvalidBet for negative bet, got %v", err)
	}
	if _, err := svc.Flip(ctx, "100", 10, "edge"); !errors.Is(err, apperrors.ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}

	var user model.User
	if err := db.Where("discord_id = ?", "100").First(&user).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if user.Coins != 500 {
		t.Fatalf("expected balance untouched at 500, got %d", user.Coins)
	}
}

func TestFlipRejectsOversizedBet(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)
	seedUser(t, db, "100", 50)
	svc.Draw = func() string { return coinflip.Heads }

	_, err := svc.Flip(ctx, "100", 51, coinflip.Heads)
	if !errors.Is(err, apperrors.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestFlipUnknownUser(t *testing.T) {
	_, svc := newService(t)

	_, err := svc.Flip(context.Background(), "ghost", 10, coinflip.Heads)
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

// Losing the whole balance must leave exactly zero, and the next wager of any
// size must fail the sufficiency check instead of going negative.
func TestFlipCannotDoubleSpend(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)
	seedUser(t, db, "100", 100)
	svc.Draw = func() string { return coinflip.Tails }

	result, err := svc.Flip(ctx, "100", 100, coinflip.Heads)
	if err != nil {
		t.Fatalf("flip failed: %v", err)
	}
	if result.Coins != 0 {
		t.Fatalf("expected zero balance, got %d", result.Coins)
	}

	if _, err := svc.Flip(ctx, "100", 1, coinflip.Heads); !errors.Is(err, apperrors.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance after bust, got %v", err)
	}

	var user model.User
	if err := db.Where("discord_id = ?", "100").First(&user).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if user.Coins != 0 {
		t.Fatalf("expected balance 0, got %d", user.Coins)
	}
}
