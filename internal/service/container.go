package service

import (
	"context"

	"donutbet/internal/service/admin"
	"donutbet/internal/service/auth"
	"donutbet/internal/service/coinflip"
	"donutbet/internal/service/game"
	"donutbet/internal/service/ledger"
	"donutbet/internal/service/payment"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Auth     *auth.Service
	Ledger   *ledger.Service
	Payment  *payment.Service
	Coinflip *coinflip.Service
	Game     *game.Service
	Admin    *admin.Service
}

func NewContainer(db *gorm.DB, rdb *redis.Client) *Container {
	return &Container{
		Auth:     auth.NewService(db, rdb),
		Ledger:   ledger.NewService(db),
		Payment:  payment.NewService(db),
		Coinflip: coinflip.NewService(db),
		Game:     game.NewService(db),
		Admin:    admin.NewService(db),
	}
}

func (c *Container) Start(ctx context.Context) error {
	if err := c.Admin.EnsureDefaultAdmin(ctx); err != nil {
		return err
	}
	return c.Ledger.EnsureHouse(ctx)
}
