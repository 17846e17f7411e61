package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"mahjong-ledger/internal/model"
	"mahjong-ledger/internal/repo"
	"mahjong-ledger/internal/service/player"
	"mahjong-ledger/internal/service/week"
	"mahjong-ledger/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const snapshotTTL = 5 * time.Minute

type Service struct {
	rdb     *redis.Client
	weeks   *week.Service
	players *player.Service
}

type PlayerRow struct {
	ID          int64                             `json:"id"`
	Name        string                            `json:"name"`
	TotalScore  decimal.Decimal                   `json:"totalScore"`
	PayInOut    decimal.Decimal                   `json:"payinOutBalance"`
	WeeklyTotal decimal.Decimal                   `json:"weeklyTotal"`
	Sessions    map[model.Weekday]decimal.Decimal `json:"sessions"`
}

// Snapshot is the scoreboard: one row per player with the weekday grid for
// the current week, plus the pool balance.
type Snapshot struct {
	Week     *model.Week     `json:"week"`
	Weekdays []model.Weekday `json:"weekdays"`
	Players  []PlayerRow     `json:"players"`
	Pool     decimal.Decimal `json:"poolBalance"`
}

func NewService(rdb *redis.Client, weeks *week.Service, players *player.Service) *Service {
	return &Service{rdb: rdb, weeks: weeks, players: players}
}

// Snapshot assembles the scoreboard for the current week, serving a cached
// copy when one exists. The cache is deleted on every ledger write and on
// settlement, so a hit is never stale.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	if cached := s.fromCache(ctx); cached != nil {
		return cached, nil
	}

	current, err := s.weeks.CurrentWeek(ctx)
	if err != nil {
		return nil, err
	}
	pool, err := s.weeks.Pool(ctx)
	if err != nil {
		return nil, err
	}
	players, err := s.players.List(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Week:     current,
		Weekdays: model.Weekdays(),
		Players:  make([]PlayerRow, 0, len(players)),
		Pool:     pool.Balance,
	}
	for _, p := range players {
		payInOut, err := s.players.PayInOutBalance(ctx, p.ID, current.ID)
		if err != nil {
			return nil, err
		}
		weeklyTotal, err := s.players.SessionTotal(ctx, p.ID, current.ID)
		if err != nil {
			return nil, err
		}
		sessions, err := s.players.SessionScoresByWeekday(ctx, p.ID, current.ID)
		if err != nil {
			return nil, err
		}
		snap.Players = append(snap.Players, PlayerRow{
			ID:          p.ID,
			Name:        p.Name,
			TotalScore:  p.TotalScore,
			PayInOut:    payInOut,
			WeeklyTotal: weeklyTotal,
			Sessions:    sessions,
		})
	}

	s.toCache(ctx, snap)
	return snap, nil
}

func (s *Service) fromCache(ctx context.Context) *Snapshot {
	if s.rdb == nil {
		return nil
	}
	raw, err := s.rdb.Get(ctx, repo.DashboardSnapshotKey).Bytes()
	if err != nil {
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil
	}
	return &snap
}

func (s *Service) toCache(ctx context.Context, snap *Snapshot) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, repo.DashboardSnapshotKey, raw, snapshotTTL).Err(); err != nil {
		logger.Log.Warn("failed to cache dashboard snapshot", zap.Error(err))
	}
}
