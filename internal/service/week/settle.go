package week

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"mahjong-ledger/internal/model"
	appErr "mahjong-ledger/pkg/errors"
	"mahjong-ledger/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PlayerSettlement struct {
	PlayerID     int64           `json:"playerId"`
	Name         string          `json:"name"`
	SessionTotal decimal.Decimal `json:"sessionTotal"`
	Cashback     decimal.Decimal `json:"cashback"`
	NewTotal     decimal.Decimal `json:"newTotal"`
}

type SettlementSummary struct {
	Players   []PlayerSettlement `json:"players"`
	PoolDelta decimal.Decimal    `json:"poolDelta"`
}

type Preview struct {
	Week       *model.Week               `json:"week"`
	Players    []PlayerSettlement        `json:"players"`
	PoolDelta  decimal.Decimal           `json:"poolDelta"`
	Imbalances []appErr.WeekdayImbalance `json:"imbalances,omitempty"`
}

// Settle closes the current week: validates that session scores balance to
// zero per weekday, applies the cashback tiers to every player's running
// total, posts the net cashback flow to the pool, and opens the next week.
// The whole pass is one database transaction; a failure at any step leaves
// every balance and ledger row untouched.
func (s *Service) Settle(ctx context.Context) (*model.Week, error) {
	now := time.Now()
	var next model.Week

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Week
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("is_current = ?", true).
			First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.ErrWeekNotFound
			}
			return err
		}

		// 1. Zero-sum check per weekday. Mahjong scores are zero-sum at the
		// table, so any nonzero weekday sum is a data-entry error.
		imbalances, err := weekdayImbalances(tx, current.ID)
		if err != nil {
			return err
		}
		if len(imbalances) > 0 {
			return &appErr.UnbalancedWeekError{Imbalances: imbalances}
		}

		// 2. Realize session totals and apply cashback tiers, player by
		// player, holding locks on every row for the duration of the pass.
		var players []model.Player
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Order("name").
			Find(&players).Error; err != nil {
			return err
		}

		totals, err := sessionTotalsByPlayer(tx, current.ID)
		if err != nil {
			return err
		}

		poolDelta := decimal.Zero
		rows := make([]model.Transaction, 0, len(players)+1)
		summary := SettlementSummary{Players: make([]PlayerSettlement, 0, len(players))}

		for i := range players {
			p := &players[i]
			sessionTotal := totals[p.ID]
			adjustment, contribution := CashbackFor(sessionTotal)

			newTotal := p.TotalScore.Add(sessionTotal).Add(adjustment)
			if err := tx.Model(&model.Player{}).
				Where("id = ?", p.ID).
				UpdateColumn("total_score", newTotal).Error; err != nil {
				return err
			}
			poolDelta = poolDelta.Add(contribution)

			if !adjustment.IsZero() {
				txType := model.TypeCashbackDeduction
				desc := "Cashback deduction for weekly total of " + sessionTotal.String()
				if adjustment.IsPositive() {
					txType = model.TypeCashback
					desc = "Cashback for weekly total of " + sessionTotal.String()
				}
				rows = append(rows, model.Transaction{
					PlayerID:    &p.ID,
					WeekID:      current.ID,
					Type:        txType,
					Value:       adjustment,
					Description: desc,
					CreatedAt:   now,
				})
			}

			summary.Players = append(summary.Players, PlayerSettlement{
				PlayerID:     p.ID,
				Name:         p.Name,
				SessionTotal: sessionTotal,
				Cashback:     adjustment,
				NewTotal:     newTotal,
			})
		}
		summary.PoolDelta = poolDelta

		// 3. Net cashback flow goes to the pool. The delta can be negative
		// when credits to losers outweigh charges to winners.
		if !poolDelta.IsZero() {
			var pool model.Pool
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				FirstOrCreate(&pool, model.Pool{ID: 1}).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.Pool{}).
				Where("id = ?", pool.ID).
				Updates(map[string]interface{}{
					"balance":    pool.Balance.Add(poolDelta),
					"updated_at": now,
				}).Error; err != nil {
				return err
			}
			rows = append(rows, model.Transaction{
				WeekID:      current.ID,
				Type:        model.TypePoolAddition,
				Value:       poolDelta,
				Description: "Cashback to pool",
				CreatedAt:   now,
			})
		}

		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		// 4. Roll the current-week pointer forward.
		current.IsCurrent = false
		current.EndDate = &now
		current.SummaryJSON = mustJSON(summary)
		if err := tx.Save(&current).Error; err != nil {
			return err
		}

		next = model.Week{
			WeekNumber: current.WeekNumber + 1,
			Year:       current.Year,
			StartDate:  now,
			IsCurrent:  true,
		}
		return tx.Create(&next).Error
	})
	if err != nil {
		return nil, err
	}

	s.invalidateDashboard(ctx)
	logger.Log.Info("week settled",
		zap.Int("weekNumber", next.WeekNumber-1),
		zap.Int("year", next.Year),
	)
	return &next, nil
}

// SettlePreview reports what Settle would do without writing anything: each
// player's weekly total, tier adjustment, and projected running total, plus
// the projected pool delta and any weekday imbalances that would block the
// close.
func (s *Service) SettlePreview(ctx context.Context) (*Preview, error) {
	current, err := s.CurrentWeek(ctx)
	if err != nil {
		return nil, err
	}

	imbalances, err := weekdayImbalances(s.db.WithContext(ctx), current.ID)
	if err != nil {
		return nil, err
	}

	players, err := s.players.List(ctx)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		Week:       current,
		Players:    make([]PlayerSettlement, 0, len(players)),
		PoolDelta:  decimal.Zero,
		Imbalances: imbalances,
	}
	for _, p := range players {
		sessionTotal, err := s.players.SessionTotal(ctx, p.ID, current.ID)
		if err != nil {
			return nil, err
		}
		adjustment, contribution := CashbackFor(sessionTotal)
		preview.Players = append(preview.Players, PlayerSettlement{
			PlayerID:     p.ID,
			Name:         p.Name,
			SessionTotal: sessionTotal,
			Cashback:     adjustment,
			NewTotal:     p.TotalScore.Add(sessionTotal).Add(adjustment),
		})
		preview.PoolDelta = preview.PoolDelta.Add(contribution)
	}
	return preview, nil
}

func weekdayImbalances(tx *gorm.DB, weekID int64) ([]appErr.WeekdayImbalance, error) {
	var sums []struct {
		Weekday string
		Total   decimal.Decimal
	}
	err := tx.Model(&model.Transaction{}).
		Select("weekday, COALESCE(SUM(value), 0) AS total").
		Where("week_id = ? AND type = ?", weekID, model.TypeSession).
		Group("weekday").
		Scan(&sums).Error
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]decimal.Decimal, len(sums))
	for _, row := range sums {
		byDay[row.Weekday] = row.Total
	}

	// Report in calendar order so the error message is stable.
	var imbalances []appErr.WeekdayImbalance
	for _, d := range model.Weekdays() {
		if sum, ok := byDay[string(d)]; ok && !sum.IsZero() {
			imbalances = append(imbalances, appErr.WeekdayImbalance{
				Weekday: string(d),
				Sum:     sum,
			})
		}
	}
	return imbalances, nil
}

func sessionTotalsByPlayer(tx *gorm.DB, weekID int64) (map[int64]decimal.Decimal, error) {
	var sums []struct {
		PlayerID int64
		Total    decimal.Decimal
	}
	err := tx.Model(&model.Transaction{}).
		Select("player_id, COALESCE(SUM(value), 0) AS total").
		Where("week_id = ? AND type = ? AND player_id IS NOT NULL", weekID, model.TypeSession).
		Group("player_id").
		Scan(&sums).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[int64]decimal.Decimal, len(sums))
	for _, row := range sums {
		totals[row.PlayerID] = row.Total
	}
	return totals, nil
}

func mustJSON(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}
