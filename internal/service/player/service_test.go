package player_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"mahjong-ledger/internal/model"
	"mahjong-ledger/internal/service/player"
	appErr "mahjong-ledger/pkg/errors"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newRegistry(t *testing.T) (*gorm.DB, *player.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Player{}, &model.Week{}, &model.Transaction{}); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}
	return db, player.NewService(db)
}

func TestCreatePlayer(t *testing.T) {
	ctx := context.Background()
	_, svc := newRegistry(t)

	created, err := svc.Create(ctx, "Akira")
	if err != nil {
		t.Fatalf("create player failed: %v", err)
	}
	if created.ID == 0 || created.Name != "Akira" || !created.TotalScore.IsZero() {
		t.Fatalf("unexpected player: %+v", created)
	}
}

func TestCreateDuplicateName(t *testing.T) {
	ctx := context.Background()
	_, svc := newRegistry(t)

	if _, err := svc.Create(ctx, "Akira"); err != nil {
		t.Fatalf("create player failed: %v", err)
	}
	if _, err := svc.Create(ctx, "Akira"); !errors.Is(err, appErr.ErrDuplicatePlayerName) {
		t.Fatalf("expected ErrDuplicatePlayerName, got %v", err)
	}
}

func TestCreateBlankName(t *testing.T) {
	ctx := context.Background()
	_, svc := newRegistry(t)

	if _, err := svc.Create(ctx, "   "); !errors.Is(err, appErr.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestListPlayersAlphabetical(t *testing.T) {
	ctx := context.Background()
	_, svc := newRegistry(t)

	for _, name := range []string{"Chiyo", "Akira", "Botan"} {
		if _, err := svc.Create(ctx, name); err != nil {
			t.Fatalf("create %s failed: %v", name, err)
		}
	}

	players, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list players failed: %v", err)
	}
	if len(players) != 3 {
		t.Fatalf("expected 3 players, got %d", len(players))
	}
	for i, expected := range []string{"Akira", "Botan", "Chiyo"} {
		if players[i].Name != expected {
			t.Fatalf("expected %s at index %d, got %s", expected, i, players[i].Name)
		}
	}
}

func TestGetUnknownPlayer(t *testing.T) {
	ctx := context.Background()
	_, svc := newRegistry(t)

	if _, err := svc.Get(ctx, 77); !errors.Is(err, appErr.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestProjections(t *testing.T) {
	ctx := context.Background()
	db, svc := newRegistry(t)

	p, err := svc.Create(ctx, "Akira")
	if err != nil {
		t.Fatalf("create player failed: %v", err)
	}
	wk := model.Week{WeekNumber: 1, Year: 2026, IsCurrent: true}
	if err := db.Create(&wk).Error; err != nil {
		t.Fatalf("seed week failed: %v", err)
	}

	monday := model.Monday
	friday := model.Friday
	rows := []model.Transaction{
		{PlayerID: &p.ID, WeekID: wk.ID, Type: model.TypeSession, Weekday: &monday, Value: decimal.NewFromInt(100)},
		{PlayerID: &p.ID, WeekID: wk.ID, Type: model.TypeSession, Weekday: &monday, Value: decimal.NewFromInt(-30)},
		{PlayerID: &p.ID, WeekID: wk.ID, Type: model.TypeSession, Weekday: &friday, Value: decimal.NewFromInt(50)},
		{PlayerID: &p.ID, WeekID: wk.ID, Type: model.TypePayInOut, Value: decimal.NewFromInt(500)},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed transactions failed: %v", err)
	}

	payInOut, err := svc.PayInOutBalance(ctx, p.ID, wk.ID)
	if err != nil {
		t.Fatalf("payin/out balance failed: %v", err)
	}
	if !payInOut.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected payin/out 500, got %s", payInOut)
	}

	sessionTotal, err := svc.SessionTotal(ctx, p.ID, wk.ID)
	if err != nil {
		t.Fatalf("session total failed: %v", err)
	}
	if !sessionTotal.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected session total 120 excluding pay-ins, got %s", sessionTotal)
	}

	scores, err := svc.SessionScoresByWeekday(ctx, p.ID, wk.ID)
	if err != nil {
		t.Fatalf("weekday scores failed: %v", err)
	}
	if !scores[model.Monday].Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected Monday 70, got %s", scores[model.Monday])
	}
	if !scores[model.Friday].Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected Friday 50, got %s", scores[model.Friday])
	}
	if !scores[model.Tuesday].IsZero() {
		t.Fatalf("expected empty weekday to be zero, got %s", scores[model.Tuesday])
	}
	if len(scores) != 7 {
		t.Fatalf("expected all 7 weekdays present, got %d", len(scores))
	}
}
