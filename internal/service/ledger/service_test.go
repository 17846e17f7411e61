package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"mahjong-ledger/internal/model"
	"mahjong-ledger/internal/service/ledger"
	"mahjong-ledger/internal/service/player"
	"mahjong-ledger/internal/service/week"
	appErr "mahjong-ledger/pkg/errors"
	"mahjong-ledger/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recorded struct {
	rows []*model.Transaction
}

func (r *recorded) PublishTransaction(txn *model.Transaction) {
	r.rows = append(r.rows, txn)
}

func newLedger(t *testing.T) (*gorm.DB, *ledger.Service, *week.Service, *player.Service, *recorded) {
	t.Helper()
	logger.Log = zap.NewNop()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Player{}, &model.Week{}, &model.Transaction{}, &model.Pool{}); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	players := player.NewService(db)
	weeks := week.NewService(db, nil, players)
	feed := &recorded{}
	return db, ledger.NewService(db, nil, weeks, feed), weeks, players, feed
}

func seedPlayer(t *testing.T, players *player.Service, name string) *model.Player {
	t.Helper()
	p, err := players.Create(context.Background(), name)
	if err != nil {
		t.Fatalf("create player failed: %v", err)
	}
	return p
}

func TestRecordSessionLeavesTotalUntouched(t *testing.T) {
	ctx := context.Background()
	db, svc, _, players, feed := newLedger(t)
	p := seedPlayer(t, players, "Akira")

	txn, err := svc.RecordSession(ctx, p.ID, model.Wednesday, decimal.NewFromInt(120), "midweek game")
	if err != nil {
		t.Fatalf("record session failed: %v", err)
	}
	if txn.Type != model.TypeSession || txn.Weekday == nil || *txn.Weekday != model.Wednesday {
		t.Fatalf("unexpected session row: %+v", txn)
	}

	var reloaded model.Player
	if err := db.First(&reloaded, p.ID).Error; err != nil {
		t.Fatalf("reload player failed: %v", err)
	}
	if !reloaded.TotalScore.IsZero() {
		t.Fatalf("session posting must not touch the running total, got %s", reloaded.TotalScore)
	}

	if len(feed.rows) != 1 || feed.rows[0].ID != txn.ID {
		t.Fatalf("expected the row on the feed, got %+v", feed.rows)
	}
}

func TestRecordSessionValidation(t *testing.T) {
	ctx := context.Background()
	_, svc, _, players, _ := newLedger(t)
	p := seedPlayer(t, players, "Akira")

	if _, err := svc.RecordSession(ctx, p.ID, model.Weekday("Someday"), decimal.NewFromInt(10), ""); !errors.Is(err, appErr.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad weekday, got %v", err)
	}

	badValue, _ := decimal.NewFromString("10.005")
	if _, err := svc.RecordSession(ctx, p.ID, model.Monday, badValue, ""); !errors.Is(err, appErr.ErrValidation) {
		t.Fatalf("expected ErrValidation for sub-cent value, got %v", err)
	}

	if _, err := svc.RecordSession(ctx, p.ID, model.Monday, decimal.Zero, ""); !errors.Is(err, appErr.ErrValidation) {
		t.Fatalf("expected ErrValidation for zero value, got %v", err)
	}

	if _, err := svc.RecordSession(ctx, 9999, model.Monday, decimal.NewFromInt(10), ""); !errors.Is(err, appErr.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestRecordPayInOutPostsImmediately(t *testing.T) {
	ctx := context.Background()
	db, svc, _, players, _ := newLedger(t)
	p := seedPlayer(t, players, "Akira")

	txn, err := svc.RecordPayInOut(ctx, p.ID, decimal.NewFromInt(200), "buy-in")
	if err != nil {
		t.Fatalf("record pay-in failed: %v", err)
	}
	if txn.Type != model.TypePayInOut || txn.Weekday != nil {
		t.Fatalf("unexpected pay-in row: %+v", txn)
	}

	var reloaded model.Player
	if err := db.First(&reloaded, p.ID).Error; err != nil {
		t.Fatalf("reload player failed: %v", err)
	}
	if !reloaded.TotalScore.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected total 200 right after posting, got %s", reloaded.TotalScore)
	}

	if _, err := svc.RecordPayInOut(ctx, p.ID, decimal.NewFromInt(-80), "partial cash-out"); err != nil {
		t.Fatalf("record pay-out failed: %v", err)
	}
	if err := db.First(&reloaded, p.ID).Error; err != nil {
		t.Fatalf("reload player failed: %v", err)
	}
	if !reloaded.TotalScore.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected total 120 after pay-out, got %s", reloaded.TotalScore)
	}
}

func TestRevertPayInOut(t *testing.T) {
	ctx := context.Background()
	db, svc, _, players, _ := newLedger(t)
	p := seedPlayer(t, players, "Akira")

	original, err := svc.RecordPayInOut(ctx, p.ID, decimal.NewFromInt(200), "buy-in")
	if err != nil {
		t.Fatalf("record pay-in failed: %v", err)
	}

	compensating, err := svc.Revert(ctx, original.ID)
	if err != nil {
		t.Fatalf("revert failed: %v", err)
	}
	if !compensating.Value.Equal(decimal.NewFromInt(-200)) {
		t.Fatalf("expected compensating value -200, got %s", compensating.Value)
	}
	if compensating.Description != fmt.Sprintf("Reversal of transaction #%d", original.ID) {
		t.Fatalf("unexpected compensating description: %q", compensating.Description)
	}

	var reloadedOriginal model.Transaction
	if err := db.First(&reloadedOriginal, original.ID).Error; err != nil {
		t.Fatalf("reload original failed: %v", err)
	}
	if !reloadedOriginal.IsReverted {
		t.Fatal("expected original to be flagged reverted")
	}
	if !reloadedOriginal.Value.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("original value must never change, got %s", reloadedOriginal.Value)
	}

	var reloaded model.Player
	if err := db.First(&reloaded, p.ID).Error; err != nil {
		t.Fatalf("reload player failed: %v", err)
	}
	if !reloaded.TotalScore.IsZero() {
		t.Fatalf("expected total back to zero after revert, got %s", reloaded.TotalScore)
	}

	if _, err := svc.Revert(ctx, original.ID); !errors.Is(err, appErr.ErrAlreadyReverted) {
		t.Fatalf("expected ErrAlreadyReverted on second revert, got %v", err)
	}

	var count int64
	if err := db.Model(&model.Transaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count rows failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected exactly one compensating row, got %d rows total", count)
	}
}

func TestRevertSessionKeepsTotalUntouched(t *testing.T) {
	ctx := context.Background()
	db, svc, _, players, _ := newLedger(t)
	p := seedPlayer(t, players, "Akira")

	original, err := svc.RecordSession(ctx, p.ID, model.Monday, decimal.NewFromInt(75), "")
	if err != nil {
		t.Fatalf("record session failed: %v", err)
	}

	compensating, err := svc.Revert(ctx, original.ID)
	if err != nil {
		t.Fatalf("revert failed: %v", err)
	}
	if compensating.Weekday == nil || *compensating.Weekday != model.Monday {
		t.Fatalf("compensating row must keep the weekday, got %+v", compensating)
	}

	var reloaded model.Player
	if err := db.First(&reloaded, p.ID).Error; err != nil {
		t.Fatalf("reload player failed: %v", err)
	}
	if !reloaded.TotalScore.IsZero() {
		t.Fatalf("session revert must not touch the running total, got %s", reloaded.TotalScore)
	}
}

func TestRevertStaleWeek(t *testing.T) {
	ctx := context.Background()
	_, svc, weeks, players, _ := newLedger(t)
	a := seedPlayer(t, players, "Akira")
	b := seedPlayer(t, players, "Botan")

	original, err := svc.RecordSession(ctx, a.ID, model.Monday, decimal.NewFromInt(60), "")
	if err != nil {
		t.Fatalf("record session failed: %v", err)
	}
	if _, err := svc.RecordSession(ctx, b.ID, model.Monday, decimal.NewFromInt(-60), ""); err != nil {
		t.Fatalf("record session failed: %v", err)
	}

	if _, err := weeks.Settle(ctx); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	if _, err := svc.Revert(ctx, original.ID); !errors.Is(err, appErr.ErrStaleWeek) {
		t.Fatalf("expected ErrStaleWeek after rollover, got %v", err)
	}
}

func TestRevertUnknownTransaction(t *testing.T) {
	ctx := context.Background()
	_, svc, _, _, _ := newLedger(t)

	if _, err := svc.Revert(ctx, 4242); !errors.Is(err, appErr.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestListCurrentWeek(t *testing.T) {
	ctx := context.Background()
	_, svc, _, players, _ := newLedger(t)
	p := seedPlayer(t, players, "Akira")

	first, err := svc.RecordSession(ctx, p.ID, model.Monday, decimal.NewFromInt(30), "")
	if err != nil {
		t.Fatalf("record session failed: %v", err)
	}
	if _, err := svc.RecordPayInOut(ctx, p.ID, decimal.NewFromInt(100), ""); err != nil {
		t.Fatalf("record pay-in failed: %v", err)
	}
	if _, err := svc.Revert(ctx, first.ID); err != nil {
		t.Fatalf("revert failed: %v", err)
	}

	all, err := svc.ListCurrentWeek(ctx, false)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(all))
	}

	active, err := svc.ListCurrentWeek(ctx, true)
	if err != nil {
		t.Fatalf("list excluding reverted failed: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 rows with the reverted original hidden, got %d", len(active))
	}
	for _, row := range active {
		if row.ID == first.ID {
			t.Fatalf("reverted original should be hidden: %+v", row)
		}
	}
}
