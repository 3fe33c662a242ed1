// Package payment handles the Minecraft deposit flow: an intent is created
// pending and confirmed at most once, crediting coins in the same
// transaction.
package payment

import (
	"context"
	"strings"
	"time"

	"donutbet/internal/model"
	"donutbet/internal/service/ledger"
	"donutbet/pkg/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const StatusNotFound = "not_found"

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, username string, amount int64) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || amount <= 0 {
		return "", apperrors.ErrInvalidAmount
	}

	p := model.Payment{
		ID:       uuid.NewString(),
		Username: username,
		Amount:   amount,
		Status:   model.PaymentPending,
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return "", err
	}
	return p.ID, nil
}

// Confirm flips the oldest matching pending payment to confirmed and credits
// the coins. The status guard runs under the row lock, so a payment can be
// confirmed at most once even under concurrent requests.
func (s *Service) Confirm(ctx context.Context, username string, amount int64) error {
	username = strings.TrimSpace(username)
	if username == "" || amount <= 0 {
		return apperrors.ErrInvalidAmount
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Payment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("username = ? AND amount = ? AND status = ?", username, amount, model.PaymentPending).
			Order("created_at").
			First(&p).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.ErrPaymentNotFound
			}
			return err
		}

		now := time.Now()
		if err := tx.Model(&model.Payment{}).
			Where("id = ? AND status = ?", p.ID, model.PaymentPending).
			Updates(map[string]interface{}{
				"status":       model.PaymentConfirmed,
				"confirmed_at": now,
			}).Error; err != nil {
			return err
		}

		user, err := ledger.UserForUpdateByName(tx, username)
		if err != nil {
			return err
		}
		return ledger.ApplyDelta(tx, user, amount, model.EntryDeposit, map[string]interface{}{
			"paymentId": p.ID,
		})
	})
}

// Status returns "not_found" for unknown ids; the endpoint always answers
// 200 with a status body.
func (s *Service) Status(ctx context.Context, id string) (string, error) {
	var p model.Payment
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return StatusNotFound, nil
		}
		return "", err
	}
	return p.Status, nil
}
