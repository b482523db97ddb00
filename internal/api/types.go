package api

import "github.com/shopspring/decimal"

// AccountInfo from GET /equity/account/info
type AccountInfo struct {
	ID           int64  `json:"id"`
	CurrencyCode string `json:"currencyCode"`
}

// AccountCash from GET /equity/account/cash
type AccountCash struct {
	Blocked  *decimal.Decimal `json:"blocked"`
	Free     *decimal.Decimal `json:"free"`
	Invested *decimal.Decimal `json:"invested"`
	PieCash  *decimal.Decimal `json:"pieCash"`
	PPL      *decimal.Decimal `json:"ppl"`
	Result   *decimal.Decimal `json:"result"`
	Total    *decimal.Decimal `json:"total"`
}

// Position from GET /equity/portfolio
type Position struct {
	Ticker       string           `json:"ticker"`
	Quantity     *decimal.Decimal `json:"quantity"`
	AveragePrice *decimal.Decimal `json:"averagePrice"`
	CurrentPrice *decimal.Decimal `json:"currentPrice"`
	PPL          *decimal.Decimal `json:"ppl"`
	FxPPL        *decimal.Decimal `json:"fxPpl"`
	PieQuantity  *decimal.Decimal `json:"pieQuantity"`
	MaxBuy       *decimal.Decimal `json:"maxBuy"`
	MaxSell      *decimal.Decimal `json:"maxSell"`

	// Timestamps (ISO 8601)
	InitialFillDate string `json:"initialFillDate"`

	Frontend string `json:"frontend"`
}

// PendingOrder from GET /equity/orders
type PendingOrder struct {
	ID             int64            `json:"id"`
	Ticker         string           `json:"ticker"`
	Type           string           `json:"type"`
	Status         string           `json:"status"`
	Strategy       string           `json:"strategy"`
	Quantity       *decimal.Decimal `json:"quantity"`
	Value          *decimal.Decimal `json:"value"`
	LimitPrice     *decimal.Decimal `json:"limitPrice"`
	StopPrice      *decimal.Decimal `json:"stopPrice"`
	ExtendedHours  bool             `json:"extendedHours"`
	FilledQuantity *decimal.Decimal `json:"filledQuantity"`
	FilledValue    *decimal.Decimal `json:"filledValue"`
	CreationTime   string           `json:"creationTime"`
}

// HistoricalOrder from GET /equity/history/orders
type HistoricalOrder struct {
	ID              int64            `json:"id"`
	ParentOrder     *int64           `json:"parentOrder"`
	Ticker          string           `json:"ticker"`
	Type            string           `json:"type"`
	Status          string           `json:"status"`
	TimeValidity    string           `json:"timeValidity"`
	Executor        string           `json:"executor"`
	ExtendedHours   bool             `json:"extendedHours"`
	OrderedQuantity *decimal.Decimal `json:"orderedQuantity"`
	OrderedValue    *decimal.Decimal `json:"orderedValue"`
	FilledQuantity  *decimal.Decimal `json:"filledQuantity"`
	FilledValue     *decimal.Decimal `json:"filledValue"`
	FillPrice       *decimal.Decimal `json:"fillPrice"`
	FillCost        *decimal.Decimal `json:"fillCost"`
	FillResult      *decimal.Decimal `json:"fillResult"`
	FillType        string           `json:"fillType"`
	FillID          *int64           `json:"fillId"`
	LimitPrice      *decimal.Decimal `json:"limitPrice"`
	StopPrice       *decimal.Decimal `json:"stopPrice"`

	// Timestamps (ISO 8601)
	DateCreated  string `json:"dateCreated"`
	DateExecuted string `json:"dateExecuted"`
	DateModified string `json:"dateModified"`

	Taxes []Tax `json:"taxes"`
}

// Tax is a charge attached to an order fill.
type Tax struct {
	FillID      string           `json:"fillId"`
	Name        string           `json:"name"`
	Quantity    *decimal.Decimal `json:"quantity"`
	TimeCharged string           `json:"timeCharged"`
}

// Dividend from GET /history/dividends
type Dividend struct {
	Reference           string           `json:"reference"`
	Ticker              string           `json:"ticker"`
	Type                string           `json:"type"`
	Quantity            *decimal.Decimal `json:"quantity"`
	GrossAmountPerShare *decimal.Decimal `json:"grossAmountPerShare"`
	Amount              *decimal.Decimal `json:"amount"`
	AmountInEuro        *decimal.Decimal `json:"amountInEuro"`
	PaidOn              string           `json:"paidOn"`
}

// Transaction from GET /history/transactions
type Transaction struct {
	Reference string           `json:"reference"`
	Type      string           `json:"type"`
	Amount    *decimal.Decimal `json:"amount"`
	DateTime  string           `json:"dateTime"`
}

// Exchange from GET /equity/metadata/exchanges
type Exchange struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	WorkingSchedules []WorkingSchedule `json:"workingSchedules"`
}

// WorkingSchedule is an exchange trading calendar.
type WorkingSchedule struct {
	ID         int64       `json:"id"`
	TimeEvents []TimeEvent `json:"timeEvents"`
}

// TimeEvent is one open/close event in a working schedule.
type TimeEvent struct {
	Date string `json:"date"`
	Type string `json:"type"`
}

// Instrument from GET /equity/metadata/instruments
type Instrument struct {
	Ticker            string           `json:"ticker"`
	ISIN              string           `json:"isin"`
	Name              string           `json:"name"`
	ShortName         string           `json:"shortName"`
	CurrencyCode      string           `json:"currencyCode"`
	Type              string           `json:"type"`
	WorkingScheduleID *int64           `json:"workingScheduleId"`
	MaxOpenQuantity   *decimal.Decimal `json:"maxOpenQuantity"`
	AddedOn           string           `json:"addedOn"`
}

// Pie from GET /equity/pies
type Pie struct {
	ID int64 `json:"id"`
}

// PieDetails from GET /equity/pies/{id}
type PieDetails struct {
	Settings    PieSettings     `json:"settings"`
	Instruments []PieInstrument `json:"instruments"`
}

// PieSettings carries pie identity and naming.
type PieSettings struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PieInstrument is one slice of a pie allocation.
type PieInstrument struct {
	Ticker        string           `json:"ticker"`
	ExpectedShare *decimal.Decimal `json:"expectedShare"`
	CurrentShare  *decimal.Decimal `json:"currentShare"`
	OwnedQuantity *decimal.Decimal `json:"ownedQuantity"`
}
