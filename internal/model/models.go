package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// 2.1 Transaction kinds & weekdays

type TransactionType string

const (
	TypePayInOut          TransactionType = "PAYIN_OUT"
	TypeSession           TransactionType = "SESSION"
	TypeCashback          TransactionType = "CASHBACK"
	TypeCashbackDeduction TransactionType = "CASHBACK_DEDUCTION"
	TypePoolAddition      TransactionType = "POOL_ADDITION"
)

type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

// Weekdays returns the seven weekdays in calendar order, the canonical
// column order for scoreboards and imbalance reports.
func Weekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

func ParseWeekday(s string) (Weekday, bool) {
	for _, d := range Weekdays() {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

// 2.2 Player & Week

type Player struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string          `gorm:"unique;not null" json:"name"`
	TotalScore decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"totalScore"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Week is the settlement unit. Exactly one row has IsCurrent=true at any
// time; SummaryJSON is written once, when the week is closed.
type Week struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	WeekNumber  int            `gorm:"not null;uniqueIndex:idx_week_number_year" json:"weekNumber"`
	Year        int            `gorm:"not null;uniqueIndex:idx_week_number_year" json:"year"`
	StartDate   time.Time      `gorm:"not null" json:"startDate"`
	EndDate     *time.Time     `json:"endDate,omitempty"`
	IsCurrent   bool           `gorm:"default:false;not null" json:"isCurrent"`
	SummaryJSON datatypes.JSON `gorm:"type:jsonb" json:"summary,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// 2.3 Ledger

// Transaction is an append-only ledger row. A nil PlayerID means the row
// belongs to the pool. Rows are never mutated after creation except for the
// IsReverted flag; a reversal appends a compensating row with the value
// negated instead of touching the original.
type Transaction struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID    *int64          `gorm:"index" json:"playerId,omitempty"`
	WeekID      int64           `gorm:"index;not null" json:"weekId"`
	Type        TransactionType `gorm:"size:20;not null" json:"type"`
	Weekday     *Weekday        `gorm:"size:10" json:"weekday,omitempty"`
	Value       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"value"`
	Description string          `json:"description"`
	IsReverted  bool            `gorm:"default:false;not null" json:"isReverted"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Pool is the singleton club balance fed by net cashback flow.
type Pool struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	Balance   decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"balance"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
