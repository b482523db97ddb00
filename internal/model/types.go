package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceSystem tags every curated row with its origin.
const SourceSystem = "api"

// -----------------------------------------------------------------------------
// Snapshot Rows
// -----------------------------------------------------------------------------

// CashSnapshot is one append-only capture of the account cash breakdown.
type CashSnapshot struct {
	AccountID      int64
	CapturedAt     time.Time        // UTC capture time, shared across one run
	Blocked        *decimal.Decimal // funds locked by pending orders
	Free           *decimal.Decimal // available cash
	Invested       *decimal.Decimal // cost basis of open positions
	PieCash        *decimal.Decimal // cash held inside pies
	UnrealisedPPL  *decimal.Decimal
	RealisedResult *decimal.Decimal
	TotalEquity    *decimal.Decimal
	Payload        []byte // source payload, compact JSON
}

// Position is one open-position row in the portfolio snapshot.
type Position struct {
	AccountID       int64
	CapturedAt      time.Time
	Ticker          string
	Quantity        *decimal.Decimal
	AveragePrice    *decimal.Decimal
	CurrentPrice    *decimal.Decimal
	PPL             *decimal.Decimal
	FxPPL           *decimal.Decimal
	PieQuantity     *decimal.Decimal // portion of the position held via pies
	MaxBuy          *decimal.Decimal
	MaxSell         *decimal.Decimal
	InitialFillDate *time.Time
	Frontend        string // order origin (API, IOS, WEB, ...)
	Payload         []byte
}

// PieAllocation is one instrument slice of a pie, snapshot semantics.
type PieAllocation struct {
	AccountID    int64
	CapturedAt   time.Time
	PieID        string
	Ticker       string
	TargetWeight *decimal.Decimal // expected share, 0-1
	ActualWeight *decimal.Decimal // current share, 0-1
	Quantity     *decimal.Decimal
	Payload      []byte
}

// PendingOrder is one live order row in the pending-orders snapshot.
type PendingOrder struct {
	AccountID      int64
	CapturedAt     time.Time
	OrderID        int64
	Ticker         string
	OrderType      string
	OrderStatus    string
	Strategy       string
	Quantity       *decimal.Decimal
	Value          *decimal.Decimal
	LimitPrice     *decimal.Decimal
	StopPrice      *decimal.Decimal
	ExtendedHours  bool
	FilledQuantity *decimal.Decimal
	FilledValue    *decimal.Decimal
	CreatedAt      *time.Time
	Payload        []byte
}

// -----------------------------------------------------------------------------
// Historical Fact Rows
// -----------------------------------------------------------------------------

// Order is one historical order fill, append-only.
// Natural key: (OrderID, FillID); FillID may be nil for unexecuted orders.
type Order struct {
	AccountID       int64
	OrderID         int64
	ParentOrderID   *int64
	Ticker          string
	OrderType       string
	OrderStatus     string
	TimeValidity    string
	Executor        string
	ExtendedHours   bool
	OrderedQuantity *decimal.Decimal
	OrderedValue    *decimal.Decimal
	FilledQuantity  *decimal.Decimal
	FilledValue     *decimal.Decimal
	FillPrice       *decimal.Decimal
	FillCost        *decimal.Decimal
	FillResult      *decimal.Decimal
	FillType        string
	FillID          *int64
	LimitPrice      *decimal.Decimal
	StopPrice       *decimal.Decimal
	PlacedAt        *time.Time
	ExecutedAt      *time.Time
	ModifiedAt      *time.Time
	Payload         []byte
}

// Tax is one charge attached to an order fill.
// Natural key within the parent order: (FillID, TaxName).
type Tax struct {
	FillID      string
	TaxName     string
	Quantity    decimal.Decimal // zero when the source omits it
	TimeCharged *time.Time
	Payload     []byte
}

// OrderWithTaxes bundles a historical order with its dependent tax rows.
type OrderWithTaxes struct {
	Order Order
	Taxes []Tax
}

// Dividend is one dividend payment, append-only. Natural key: Reference.
type Dividend struct {
	AccountID           int64
	Reference           string
	Ticker              string
	DividendType        string
	Quantity            *decimal.Decimal
	GrossAmountPerShare *decimal.Decimal
	Amount              decimal.Decimal // account currency, zero when absent
	AmountEUR           *decimal.Decimal
	PaidAt              time.Time
	Payload             []byte
}

// Transaction is one cash movement, append-only. Natural key: Reference.
type Transaction struct {
	AccountID       int64
	Reference       string
	TransactionType string
	Amount          decimal.Decimal // account currency, zero when absent
	OccurredAt      time.Time
	Payload         []byte
}

// -----------------------------------------------------------------------------
// Dimension Rows
// -----------------------------------------------------------------------------

// Exchange is a trading venue dimension row, upserted by ExchangeID.
type Exchange struct {
	ExchangeID int64
	Name       string
	Payload    []byte
}

// WorkingSchedule links a trading calendar to its exchange.
type WorkingSchedule struct {
	ScheduleID int64
	ExchangeID int64
	Payload    []byte
}

// ScheduleEvent is one open/close event within a working schedule.
type ScheduleEvent struct {
	ScheduleID int64
	EventType  string
	EventTime  time.Time
	Payload    []byte
}

// Instrument is a tradable-instrument dimension row, upserted by Ticker.
type Instrument struct {
	Ticker            string
	ISIN              string
	Name              string
	ShortName         string
	CurrencyCode      string // upper-cased
	InstrumentType    string
	WorkingScheduleID *int64
	MaxOpenQuantity   *decimal.Decimal
	AddedOn           *time.Time
	Payload           []byte
}
