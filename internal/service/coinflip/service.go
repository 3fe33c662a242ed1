package coinflip

import (
	"context"
	"math/rand"

	"donutbet/internal/model"
	"donutbet/internal/service/ledger"
	"donutbet/pkg/apperrors"

	"gorm.io/gorm"
)

const (
	Heads = "heads"
	Tails = "tails"
)

type Service struct {
	db *gorm.DB

	// Draw picks the outcome. Overridable so tests can force a result;
	// the default is a fair 50/50.
	Draw func() string
}

type FlipResult struct {
	Result string `json:"result"`
	Won    bool   `json:"won"`
	Coins  int64  `json:"coins"`
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		db:   db,
		Draw: fairDraw,
	}
}

func fairDraw() string {
	if rand.Intn(2) == 0 {
		return Heads
	}
	return Tails
}

// Flip settles a single wager. Validation, the draw, and the balance write
// all happen under the user's row lock, so two concurrent flips cannot both
// pass the sufficiency check on the same coins.
func (s *Service) Flip(ctx context.Context, discordID string, bet int64, choice string) (*FlipResult, error) {
	if choice != Heads && choice != Tails {
		return nil, apperrors.ErrInvalidChoice
	}
	if bet <= 0 {
		return nil, apperrors.ErrInvalidBet
	}

	var result FlipResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := ledger.UserForUpdate(tx, discordID)
		if err != nil {
			return err
		}
		if bet > user.Coins {
			return apperrors.ErrInsufficientBalance
		}

		outcome := s.Draw()
		won := outcome == choice

		delta := -bet
		entryType := model.EntryWagerLoss
		if won {
			delta = bet
			entryType = model.EntryWagerWin
		}

		if err := ledger.ApplyDelta(tx, user, delta, entryType, map[string]interface{}{
			"bet":    bet,
			"choice": choice,
			"result": outcome,
		}); err != nil {
			return err
		}

		result = FlipResult{Result: outcome, Won: won, Coins: user.Coins}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
