package service

import (
	"mahjong-ledger/internal/service/dashboard"
	"mahjong-ledger/internal/service/ledger"
	"mahjong-ledger/internal/service/player"
	"mahjong-ledger/internal/service/week"
	"mahjong-ledger/internal/ws"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Player    *player.Service
	Week      *week.Service
	Ledger    *ledger.Service
	Dashboard *dashboard.Service
	Feed      *ws.Hub
}

func NewContainer(db *gorm.DB, rdb *redis.Client) *Container {
	feed := ws.NewHub()
	players := player.NewService(db)
	weeks := week.NewService(db, rdb, players)

	return &Container{
		Player:    players,
		Week:      weeks,
		Ledger:    ledger.NewService(db, rdb, weeks, feed),
		Dashboard: dashboard.NewService(rdb, weeks, players),
		Feed:      feed,
	}
}
