package week

import (
	"context"
	"errors"
	"time"

	"mahjong-ledger/internal/model"
	"mahjong-ledger/internal/repo"
	"mahjong-ledger/internal/service/player"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db      *gorm.DB
	rdb     *redis.Client
	players *player.Service
}

func NewService(db *gorm.DB, rdb *redis.Client, players *player.Service) *Service {
	return &Service{db: db, rdb: rdb, players: players}
}

// CurrentWeek returns the single open week, creating week 1 of the current
// year on first access. The get-or-create runs inside a transaction with the
// row locked so two concurrent first callers cannot both create week 1.
func (s *Service) CurrentWeek(ctx context.Context) (*model.Week, error) {
	var wk model.Week
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("is_current = ?", true).
			First(&wk).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		today := time.Now()
		wk = model.Week{
			WeekNumber: 1,
			Year:       today.Year(),
			StartDate:  today,
			IsCurrent:  true,
		}
		return tx.Create(&wk).Error
	})
	if err != nil {
		return nil, err
	}
	return &wk, nil
}

func (s *Service) List(ctx context.Context) ([]model.Week, error) {
	var weeks []model.Week
	err := s.db.WithContext(ctx).
		Order("year DESC").
		Order("week_number DESC").
		Find(&weeks).Error
	if err != nil {
		return nil, err
	}
	return weeks, nil
}

// Pool returns the singleton pool balance, creating the row on first access.
func (s *Service) Pool(ctx context.Context) (*model.Pool, error) {
	var pool model.Pool
	err := s.db.WithContext(ctx).
		FirstOrCreate(&pool, model.Pool{ID: 1}).Error
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func (s *Service) invalidateDashboard(ctx context.Context) {
	if s.rdb != nil {
		s.rdb.Del(ctx, repo.DashboardSnapshotKey)
	}
}
