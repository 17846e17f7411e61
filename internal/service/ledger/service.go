package ledger

import (
	"context"
	"errors"
	"fmt"

	"mahjong-ledger/internal/model"
	"mahjong-ledger/internal/repo"
	"mahjong-ledger/internal/service/week"
	appErr "mahjong-ledger/pkg/errors"
	"mahjong-ledger/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Publisher receives every appended ledger row, for the live feed.
type Publisher interface {
	PublishTransaction(txn *model.Transaction)
}

type Service struct {
	db    *gorm.DB
	rdb   *redis.Client
	weeks *week.Service
	feed  Publisher
}

func NewService(db *gorm.DB, rdb *redis.Client, weeks *week.Service, feed Publisher) *Service {
	return &Service{db: db, rdb: rdb, weeks: weeks, feed: feed}
}

// RecordSession appends a session score for a weekday of the current week.
// Session money is provisional: the player's running total is untouched
// until the week settles.
func (s *Service) RecordSession(ctx context.Context, playerID int64, weekday model.Weekday, value decimal.Decimal, description string) (*model.Transaction, error) {
	if _, ok := model.ParseWeekday(string(weekday)); !ok {
		return nil, fmt.Errorf("%w: session scores require a valid weekday", appErr.ErrValidation)
	}
	if err := checkValue(value); err != nil {
		return nil, err
	}

	current, err := s.weeks.CurrentWeek(ctx)
	if err != nil {
		return nil, err
	}

	var txn *model.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePlayer(tx, playerID); err != nil {
			return err
		}
		txn = &model.Transaction{
			PlayerID:    &playerID,
			WeekID:      current.ID,
			Type:        model.TypeSession,
			Weekday:     &weekday,
			Value:       value,
			Description: description,
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, txn)
	return txn, nil
}

// RecordPayInOut appends a pay-in (positive) or pay-out (negative) and
// adjusts the player's running total in the same transaction. Unlike
// session scores these are real cash movements, settled on the spot.
func (s *Service) RecordPayInOut(ctx context.Context, playerID int64, value decimal.Decimal, description string) (*model.Transaction, error) {
	if err := checkValue(value); err != nil {
		return nil, err
	}

	current, err := s.weeks.CurrentWeek(ctx)
	if err != nil {
		return nil, err
	}

	var txn *model.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Player
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, playerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.ErrPlayerNotFound
			}
			return err
		}

		txn = &model.Transaction{
			PlayerID:    &playerID,
			WeekID:      current.ID,
			Type:        model.TypePayInOut,
			Value:       value,
			Description: description,
		}
		if err := tx.Create(txn).Error; err != nil {
			return err
		}

		return tx.Model(&model.Player{}).
			Where("id = ?", playerID).
			UpdateColumn("total_score", p.TotalScore.Add(value)).Error
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, txn)
	return txn, nil
}

// Revert appends a compensating row for a current-week transaction and
// marks the original reverted. The original's value is never changed, and a
// row can be reverted at most once. Reverting a PAYIN_OUT also undoes its
// immediate effect on the player's running total.
func (s *Service) Revert(ctx context.Context, transactionID int64) (*model.Transaction, error) {
	current, err := s.weeks.CurrentWeek(ctx)
	if err != nil {
		return nil, err
	}

	var compensating *model.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var original model.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&original, transactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.ErrTransactionNotFound
			}
			return err
		}

		if original.IsReverted {
			return fmt.Errorf("%w: #%d", appErr.ErrAlreadyReverted, original.ID)
		}
		if original.WeekID != current.ID {
			return fmt.Errorf("%w: #%d", appErr.ErrStaleWeek, original.ID)
		}

		compensating = &model.Transaction{
			PlayerID:    original.PlayerID,
			WeekID:      original.WeekID,
			Type:        original.Type,
			Weekday:     original.Weekday,
			Value:       original.Value.Neg(),
			Description: fmt.Sprintf("Reversal of transaction #%d", original.ID),
		}
		if err := tx.Create(compensating).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.Transaction{}).
			Where("id = ?", original.ID).
			UpdateColumn("is_reverted", true).Error; err != nil {
			return err
		}

		if original.Type == model.TypePayInOut && original.PlayerID != nil {
			var p model.Player
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&p, *original.PlayerID).Error; err != nil {
				return err
			}
			return tx.Model(&model.Player{}).
				Where("id = ?", p.ID).
				UpdateColumn("total_score", p.TotalScore.Sub(original.Value)).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, compensating)
	return compensating, nil
}

// ListCurrentWeek returns the current week's rows, newest first. With
// excludeReverted set, rows already undone by a compensating entry are
// hidden; the compensating rows themselves always show.
func (s *Service) ListCurrentWeek(ctx context.Context, excludeReverted bool) ([]model.Transaction, error) {
	current, err := s.weeks.CurrentWeek(ctx)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("week_id = ?", current.ID)
	if excludeReverted {
		query = query.Where("is_reverted = ?", false)
	}

	var rows []model.Transaction
	if err := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) afterWrite(ctx context.Context, txn *model.Transaction) {
	if s.rdb != nil {
		s.rdb.Del(ctx, repo.DashboardSnapshotKey)
	}
	if s.feed != nil && txn != nil {
		s.feed.PublishTransaction(txn)
	}
	if txn != nil {
		logger.Log.Debug("ledger row appended",
			zap.Int64("id", txn.ID),
			zap.String("type", string(txn.Type)),
		)
	}
}

func requirePlayer(tx *gorm.DB, playerID int64) error {
	var count int64
	if err := tx.Model(&model.Player{}).Where("id = ?", playerID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return appErr.ErrPlayerNotFound
	}
	return nil
}

// checkValue enforces the ledger's 2-decimal money precision.
func checkValue(value decimal.Decimal) error {
	if value.IsZero() {
		return fmt.Errorf("%w: value must be nonzero", appErr.ErrValidation)
	}
	if value.Exponent() < -2 {
		return fmt.Errorf("%w: value must have at most 2 decimal places", appErr.ErrValidation)
	}
	return nil
}
