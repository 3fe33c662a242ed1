// Package game tracks the ephemeral per-player snake sessions and settles
// them against the ledger. A session moves none -> active -> cashing_out and
// is destroyed on kill (victim) or finish-cashout (self).
package game

import (
	"context"

	"donutbet/internal/config"
	"donutbet/internal/model"
	"donutbet/internal/service/ledger"
	"donutbet/pkg/apperrors"
	"donutbet/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const startingSegments = 3

// Cashout pays 95% to the player; the remainder goes to the house.
const cashoutNumerator = 95

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type JoinResult struct {
	SessionID      int64  `json:"sessionId"`
	Username       string `json:"username"`
	StartingCoins  int64  `json:"startingCoins"`
	RemainingCoins int64  `json:"remainingCoins"`
}

type KillResult struct {
	GainedCoins    int64 `json:"gainedCoins"`
	GainedSegments int   `json:"gainedSegments"`
	TotalCoins     int64 `json:"totalCoins"`
	TotalSegments  int   `json:"totalSegments"`
	TotalKills     int   `json:"totalKills"`
}

type CashoutResult struct {
	Gained     int64 `json:"gained"`
	Fee        int64 `json:"fee"`
	Kills      int   `json:"kills"`
	TotalCoins int64 `json:"totalCoins"`
}

type PlayerInfo struct {
	DiscordID    string `json:"discordId"`
	Username     string `json:"username"`
	Segments     int    `json:"segments"`
	IsCashingOut bool   `json:"isCashingOut"`
}

// Join deducts the entry fee and creates the session in one transaction.
// A player with any live session, cashing out or not, cannot join again.
func (s *Service) Join(ctx context.Context, discordID string, entryFee int64, isTournament bool) (*JoinResult, error) {
	if entryFee < 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	var result JoinResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := ledger.UserForUpdate(tx, discordID)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&model.GameSession{}).
			Where("discord_id = ?", discordID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperrors.ErrAlreadyInGame
		}

		if entryFee > user.Coins {
			return apperrors.ErrInsufficientBalance
		}
		if entryFee > 0 {
			if err := ledger.ApplyDelta(tx, user, -entryFee, model.EntryEntryFee, map[string]interface{}{
				"tournament": isTournament,
			}); err != nil {
				return err
			}
		}

		session := model.GameSession{
			UserID:       user.ID,
			DiscordID:    user.DiscordID,
			Username:     user.Username,
			CurrentCoins: entryFee,
			Segments:     startingSegments,
			EntryFee:     entryFee,
			IsTournament: isTournament,
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}

		result = JoinResult{
			SessionID:      session.ID,
			Username:       user.Username,
			StartingCoins:  entryFee,
			RemainingCoins: user.Coins,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// JoinTournament runs the normal join protocol with the configured
// tournament fee.
func (s *Service) JoinTournament(ctx context.Context, discordID string) (*JoinResult, error) {
	return s.Join(ctx, discordID, config.GlobalConfig.Game.TournamentFee, true)
}

// Kill transfers the victim's in-round coins and segments to the killer and
// destroys the victim's session. The victim's progress is forfeited, never
// paid out.
func (s *Service) Kill(ctx context.Context, killerDiscordID, victimDiscordID string) (*KillResult, error) {
	var result KillResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var killer model.GameSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("discord_id = ? AND is_cashing_out = ?", killerDiscordID, false).
			First(&killer).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.ErrSessionNotFound
			}
			return err
		}

		var victim model.GameSession
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("discord_id = ?", victimDiscordID).
			First(&victim).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.ErrSessionNotFound
			}
			return err
		}

		killer.CurrentCoins += victim.CurrentCoins
		killer.Segments += victim.Segments
		killer.Kills++

		if err := tx.Model(&model.GameSession{}).
			Where("id = ?", killer.ID).
			Updates(map[string]interface{}{
				"current_coins": killer.CurrentCoins,
				"segments":      killer.Segments,
				"kills":         killer.Kills,
			}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.GameSession{}, victim.ID).Error; err != nil {
			return err
		}

		result = KillResult{
			GainedCoins:    victim.CurrentCoins,
			GainedSegments: victim.Segments,
			TotalCoins:     killer.CurrentCoins,
			TotalSegments:  killer.Segments,
			TotalKills:     killer.Kills,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// StartCashout only flips the flag; no coins move until FinishCashout.
func (s *Service) StartCashout(ctx context.Context, discordID string) error {
	res := s.db.WithContext(ctx).Model(&model.GameSession{}).
		Where("discord_id = ?", discordID).
		Update("is_cashing_out", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

// FinishCashout converts the session's coins into persistent balance, skims
// the house fee, and destroys the session. Calling it twice fails with
// ErrNotCashingOut because the row is already gone.
func (s *Service) FinishCashout(ctx context.Context, discordID string) (*CashoutResult, error) {
	var result CashoutResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session model.GameSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("discord_id = ? AND is_cashing_out = ?", discordID, true).
			First(&session).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.ErrNotCashingOut
			}
			return err
		}

		payout := session.CurrentCoins * cashoutNumerator / 100
		fee := session.CurrentCoins - payout

		user, err := ledger.UserForUpdate(tx, discordID)
		if err != nil {
			return err
		}
		if payout > 0 {
			if err := ledger.ApplyDelta(tx, user, payout, model.EntryCashout, map[string]interface{}{
				"sessionId": session.ID,
				"kills":     session.Kills,
			}); err != nil {
				return err
			}
		}
		if fee > 0 {
			if err := ledger.CreditHouse(tx, fee, map[string]interface{}{
				"sessionId": session.ID,
				"userId":    user.ID,
			}); err != nil {
				return err
			}
		}

		if err := tx.Delete(&model.GameSession{}, session.ID).Error; err != nil {
			return err
		}

		result = CashoutResult{
			Gained:     payout,
			Fee:        fee,
			Kills:      session.Kills,
			TotalCoins: user.Coins,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("cashout settled",
		zap.String("discordID", discordID),
		zap.Int64("gained", result.Gained),
		zap.Int64("fee", result.Fee))
	return &result, nil
}

// Players is a best-effort snapshot for rendering other snakes. It carries no
// staleness guarantee and is never used for settlement.
func (s *Service) Players(ctx context.Context) ([]PlayerInfo, error) {
	var sessions []model.GameSession
	if err := s.db.WithContext(ctx).Order("id").Find(&sessions).Error; err != nil {
		return nil, err
	}
	players := make([]PlayerInfo, 0, len(sessions))
	for _, sess := range sessions {
		players = append(players, PlayerInfo{
			DiscordID:    sess.DiscordID,
			Username:     sess.Username,
			Segments:     sess.Segments,
			IsCashingOut: sess.IsCashingOut,
		})
	}
	return players, nil
}
