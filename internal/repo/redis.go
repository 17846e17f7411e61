package repo

import (
	"context"

	"mahjong-ledger/internal/config"
	"mahjong-ledger/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var RDB *redis.Client

// DashboardSnapshotKey holds the cached scoreboard snapshot. Every ledger
// write and every settlement deletes it.
const DashboardSnapshotKey = "mahjong:dashboard:snapshot"

// InitRedis connects the optional dashboard cache. With no address
// configured the service runs without caching and RDB stays nil.
func InitRedis() {
	conf := config.GlobalConfig.Redis
	if conf.Addr == "" {
		logger.Log.Info("Redis not configured, dashboard cache disabled")
		return
	}

	RDB = redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	_, err := RDB.Ping(context.Background()).Result()
	if err != nil {
		logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
}
