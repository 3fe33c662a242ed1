package model

import (
	"time"

	"gorm.io/datatypes"
)

// User is the persistent coin balance keyed by the Discord account id.
// Rows are created on first OAuth callback and never deleted.
type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	DiscordID string `gorm:"unique;not null" json:"discordId"`
	Username  string `gorm:"not null" json:"username"`
	Coins     int64  `gorm:"not null;default:0" json:"coins"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// House is the operator's singleton fee accumulator (row id is always 1).
type House struct {
	ID    int64 `gorm:"primaryKey" json:"id"`
	Coins int64 `gorm:"not null;default:0" json:"coins"`
}

const HouseID = 1

// Payment is a deposit intent. It transitions pending -> confirmed exactly
// once and is immutable afterwards.
type Payment struct {
	ID          string `gorm:"primaryKey;size:36"`
	Username    string `gorm:"index;not null"`
	Amount      int64  `gorm:"not null"`
	Status      string `gorm:"not null;default:pending"` // pending/confirmed
	CreatedAt   time.Time
	ConfirmedAt *time.Time
}

const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
)

// GameSession is a player's ephemeral in-round record. At most one per
// discord id; destroyed on kill (victim) or finish-cashout (self).
type GameSession struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	UserID       int64  `gorm:"not null"`
	DiscordID    string `gorm:"uniqueIndex;not null"`
	Username     string `gorm:"not null"`
	CurrentCoins int64  `gorm:"not null;default:0"`
	Segments     int    `gorm:"not null;default:3"`
	Kills        int    `gorm:"not null;default:0"`
	IsCashingOut bool   `gorm:"not null;default:false"`
	EntryFee     int64  `gorm:"not null;default:0"`
	IsTournament bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
}

// LedgerEntry records every balance mutation alongside the resulting balance,
// written in the same transaction as the mutation itself.
type LedgerEntry struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	UserID       int64 `gorm:"index"`
	Type         string
	Delta        int64
	BalanceAfter int64
	MetaJSON     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time
}

const (
	EntryDeposit   = "deposit"
	EntryWagerWin  = "wager_win"
	EntryWagerLoss = "wager_loss"
	EntryEntryFee  = "entry_fee"
	EntryCashout   = "cashout"
	EntryHouseFee  = "house_fee"
	EntryAdjust    = "adjust"
	EntryGrant     = "signup_grant"
)

// Admin accounts guard the operational endpoints (/change-coins, house view).
type Admin struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	Status       string `gorm:"default:active;not null"` // active/disabled
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
