// Package ledger is the single source of truth for coin balances. Every
// mutation goes through a locked read-modify-write and leaves a LedgerEntry
// row in the same transaction.
package ledger

import (
	"context"
	"encoding/json"
	"time"

	"donutbet/internal/model"
	"donutbet/pkg/apperrors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// EnsureHouse seeds the singleton house row on startup.
func (s *Service) EnsureHouse(ctx context.Context) error {
	house := model.House{ID: model.HouseID}
	return s.db.WithContext(ctx).FirstOrCreate(&house, model.House{ID: model.HouseID}).Error
}

// GetCoins returns 0 for unknown ids; the UI treats every visitor as having
// a balance.
func (s *Service) GetCoins(ctx context.Context, discordID string) (int64, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("discord_id = ?", discordID).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return user.Coins, nil
}

func (s *Service) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// AdjustCoins applies an administrative delta. The sufficiency check runs
// under the row lock, so concurrent adjustments cannot drive the balance
// negative.
func (s *Service) AdjustCoins(ctx context.Context, discordID string, delta int64) (int64, error) {
	var newBalance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := UserForUpdate(tx, discordID)
		if err != nil {
			return err
		}
		if err := ApplyDelta(tx, user, delta, model.EntryAdjust, map[string]interface{}{
			"source": "admin",
		}); err != nil {
			return err
		}
		newBalance = user.Coins
		return nil
	})
	return newBalance, err
}

func (s *Service) HouseBalance(ctx context.Context) (int64, error) {
	var house model.House
	if err := s.db.WithContext(ctx).First(&house, model.HouseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return house.Coins, nil
}

// UserForUpdate loads a user row under a FOR UPDATE lock. Callers must be
// inside a transaction.
func UserForUpdate(tx *gorm.DB, discordID string) (*model.User, error) {
	var user model.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("discord_id = ?", discordID).
		First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UserForUpdateByName is the payment-flow variant; deposits are keyed by the
// Minecraft username, not the discord id.
func UserForUpdateByName(tx *gorm.DB, username string) (*model.User, error) {
	var user model.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("username = ?", username).
		Order("id").
		First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ApplyDelta mutates a locked user row and appends the matching ledger entry.
// Rejects any delta that would leave the balance negative.
func ApplyDelta(tx *gorm.DB, user *model.User, delta int64, entryType string, meta map[string]interface{}) error {
	after := user.Coins + delta
	if after < 0 {
		return apperrors.ErrInsufficientBalance
	}

	now := time.Now()
	if err := tx.Model(&model.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"coins":      after,
			"updated_at": now,
		}).Error; err != nil {
		return err
	}
	user.Coins = after

	return tx.Create(&model.LedgerEntry{
		UserID:       user.ID,
		Type:         entryType,
		Delta:        delta,
		BalanceAfter: after,
		MetaJSON:     mustJSON(meta),
		CreatedAt:    now,
	}).Error
}

// CreditHouse adds the fee to the locked house row and logs it. The entry
// carries user id 0, matching how platform income is recorded.
func CreditHouse(tx *gorm.DB, fee int64, meta map[string]interface{}) error {
	var house model.House
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&house, model.HouseID).Error; err != nil {
		return err
	}
	house.Coins += fee
	if err := tx.Model(&model.House{}).
		Where("id = ?", model.HouseID).
		Update("coins", house.Coins).Error; err != nil {
		return err
	}
	return tx.Create(&model.LedgerEntry{
		UserID:       0,
		Type:         model.EntryHouseFee,
		Delta:        fee,
		BalanceAfter: house.Coins,
		MetaJSON:     mustJSON(meta),
		CreatedAt:    time.Now(),
	}).Error
}

func mustJSON(v map[string]interface{}) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}
