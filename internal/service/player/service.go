package player

import (
	"context"
	"fmt"
	"strings"

	"mahjong-ledger/internal/model"
	appErr "mahjong-ledger/pkg/errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, name string) (*model.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", appErr.ErrValidation)
	}

	var created model.Player
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Player{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", appErr.ErrDuplicatePlayerName, name)
		}
		created = model.Player{Name: name, TotalScore: decimal.Zero}
		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Player, error) {
	var p model.Player
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrPlayerNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) List(ctx context.Context) ([]model.Player, error) {
	var players []model.Player
	if err := s.db.WithContext(ctx).Order("name").Find(&players).Error; err != nil {
		return nil, err
	}
	return players, nil
}

// PayInOutBalance sums PAYIN_OUT values for the player in the given week.
// Reverted rows stay in the sum; their compensating rows cancel them out.
func (s *Service) PayInOutBalance(ctx context.Context, playerID, weekID int64) (decimal.Decimal, error) {
	return s.sumValues(ctx, playerID, weekID, "type = ?", model.TypePayInOut)
}

// SessionTotal is the player's weekly session total, the input to
// settlement. Pay-ins and pay-outs are excluded.
func (s *Service) SessionTotal(ctx context.Context, playerID, weekID int64) (decimal.Decimal, error) {
	return s.sumValues(ctx, playerID, weekID, "type = ?", model.TypeSession)
}

// SessionScoresByWeekday maps each weekday to the player's summed session
// values for that day, zero for days without entries.
func (s *Service) SessionScoresByWeekday(ctx context.Context, playerID, weekID int64) (map[model.Weekday]decimal.Decimal, error) {
	var rows []struct {
		Weekday string
		Total   decimal.Decimal
	}
	err := s.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("weekday, COALESCE(SUM(value), 0) AS total").
		Where("player_id = ? AND week_id = ? AND type = ?", playerID, weekID, model.TypeSession).
		Group("weekday").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	scores := make(map[model.Weekday]decimal.Decimal, 7)
	for _, d := range model.Weekdays() {
		scores[d] = decimal.Zero
	}
	for _, row := range rows {
		if d, ok := model.ParseWeekday(row.Weekday); ok {
			scores[d] = row.Total
		}
	}
	return scores, nil
}

func (s *Service) sumValues(ctx context.Context, playerID, weekID int64, query string, args ...interface{}) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := s.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("COALESCE(SUM(value), 0) AS total").
		Where("player_id = ? AND week_id = ?", playerID, weekID).
		Where(query, args...).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}
