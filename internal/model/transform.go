package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/t212-data/internal/api"
)

// ParseAPITime parses the ISO 8601 timestamps the source emits. Values
// without zone information are taken as UTC. Returns nil for empty or
// unparseable input.
func ParseAPITime(value string) *time.Time {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		utc := t.UTC()
		return &utc
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", v); err == nil {
		utc := t.UTC()
		return &utc
	}
	return nil
}

func payloadJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// BuildCashSnapshot maps the cash breakdown into a snapshot row.
func BuildCashSnapshot(accountID int64, cash *api.AccountCash, capturedAt time.Time) CashSnapshot {
	return CashSnapshot{
		AccountID:      accountID,
		CapturedAt:     capturedAt,
		Blocked:        cash.Blocked,
		Free:           cash.Free,
		Invested:       cash.Invested,
		PieCash:        cash.PieCash,
		UnrealisedPPL:  cash.PPL,
		RealisedResult: cash.Result,
		TotalEquity:    cash.Total,
		Payload:        payloadJSON(cash),
	}
}

// BuildPositions maps open positions into portfolio snapshot rows.
func BuildPositions(accountID int64, positions []api.Position, capturedAt time.Time) []Position {
	rows := make([]Position, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, Position{
			AccountID:       accountID,
			CapturedAt:      capturedAt,
			Ticker:          p.Ticker,
			Quantity:        p.Quantity,
			AveragePrice:    p.AveragePrice,
			CurrentPrice:    p.CurrentPrice,
			PPL:             p.PPL,
			FxPPL:           p.FxPPL,
			PieQuantity:     p.PieQuantity,
			MaxBuy:          p.MaxBuy,
			MaxSell:         p.MaxSell,
			InitialFillDate: ParseAPITime(p.InitialFillDate),
			Frontend:        p.Frontend,
			Payload:         payloadJSON(p),
		})
	}
	return rows
}

// BuildPieAllocations flattens pie details into one row per instrument slice.
func BuildPieAllocations(accountID int64, details []api.PieDetails, capturedAt time.Time) []PieAllocation {
	var rows []PieAllocation
	for _, d := range details {
		pieID := ""
		if d.Settings.ID != 0 {
			pieID = strconv.FormatInt(d.Settings.ID, 10)
		}
		for _, inst := range d.Instruments {
			rows = append(rows, PieAllocation{
				AccountID:    accountID,
				CapturedAt:   capturedAt,
				PieID:        pieID,
				Ticker:       inst.Ticker,
				TargetWeight: inst.ExpectedShare,
				ActualWeight: inst.CurrentShare,
				Quantity:     inst.OwnedQuantity,
				Payload:      payloadJSON(inst),
			})
		}
	}
	return rows
}

// BuildPendingOrders maps live orders into pending-order snapshot rows.
func BuildPendingOrders(accountID int64, orders []api.PendingOrder, capturedAt time.Time) []PendingOrder {
	rows := make([]PendingOrder, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, PendingOrder{
			AccountID:      accountID,
			CapturedAt:     capturedAt,
			OrderID:        o.ID,
			Ticker:         o.Ticker,
			OrderType:      o.Type,
			OrderStatus:    o.Status,
			Strategy:       o.Strategy,
			Quantity:       o.Quantity,
			Value:          o.Value,
			LimitPrice:     o.LimitPrice,
			StopPrice:      o.StopPrice,
			ExtendedHours:  o.ExtendedHours,
			FilledQuantity: o.FilledQuantity,
			FilledValue:    o.FilledValue,
			CreatedAt:      ParseAPITime(o.CreationTime),
			Payload:        payloadJSON(o),
		})
	}
	return rows
}

// BuildOrderBundles maps historical orders and their tax charges into
// database-ready bundles.
func BuildOrderBundles(accountID int64, items []api.HistoricalOrder) []OrderWithTaxes {
	bundles := make([]OrderWithTaxes, 0, len(items))
	for _, item := range items {
		order := Order{
			AccountID:       accountID,
			OrderID:         item.ID,
			ParentOrderID:   item.ParentOrder,
			Ticker:          item.Ticker,
			OrderType:       item.Type,
			OrderStatus:     item.Status,
			TimeValidity:    item.TimeValidity,
			Executor:        item.Executor,
			ExtendedHours:   item.ExtendedHours,
			OrderedQuantity: item.OrderedQuantity,
			OrderedValue:    item.OrderedValue,
			FilledQuantity:  item.FilledQuantity,
			FilledValue:     item.FilledValue,
			FillPrice:       item.FillPrice,
			FillCost:        item.FillCost,
			FillResult:      item.FillResult,
			FillType:        item.FillType,
			FillID:          item.FillID,
			LimitPrice:      item.LimitPrice,
			StopPrice:       item.StopPrice,
			PlacedAt:        ParseAPITime(item.DateCreated),
			ExecutedAt:      ParseAPITime(item.DateExecuted),
			ModifiedAt:      ParseAPITime(item.DateModified),
			Payload:         payloadJSON(item),
		}

		taxes := make([]Tax, 0, len(item.Taxes))
		for _, tax := range item.Taxes {
			taxes = append(taxes, Tax{
				FillID:      tax.FillID,
				TaxName:     tax.Name,
				Quantity:    orZero(tax.Quantity),
				TimeCharged: ParseAPITime(tax.TimeCharged),
				Payload:     payloadJSON(tax),
			})
		}

		bundles = append(bundles, OrderWithTaxes{Order: order, Taxes: taxes})
	}
	return bundles
}

// BuildDividends maps dividend history items into fact rows. A missing paid
// timestamp falls back to capturedAt.
func BuildDividends(accountID int64, items []api.Dividend, capturedAt time.Time) []Dividend {
	rows := make([]Dividend, 0, len(items))
	for _, item := range items {
		paidAt := capturedAt
		if t := ParseAPITime(item.PaidOn); t != nil {
			paidAt = *t
		}
		rows = append(rows, Dividend{
			AccountID:           accountID,
			Reference:           item.Reference,
			Ticker:              item.Ticker,
			DividendType:        item.Type,
			Quantity:            item.Quantity,
			GrossAmountPerShare: item.GrossAmountPerShare,
			Amount:              orZero(item.Amount),
			AmountEUR:           item.AmountInEuro,
			PaidAt:              paidAt,
			Payload:             payloadJSON(item),
		})
	}
	return rows
}

// BuildTransactions maps cash movements into fact rows. A missing event
// timestamp falls back to capturedAt.
func BuildTransactions(accountID int64, items []api.Transaction, capturedAt time.Time) []Transaction {
	rows := make([]Transaction, 0, len(items))
	for _, item := range items {
		occurredAt := capturedAt
		if t := ParseAPITime(item.DateTime); t != nil {
			occurredAt = *t
		}
		rows = append(rows, Transaction{
			AccountID:       accountID,
			Reference:       item.Reference,
			TransactionType: item.Type,
			Amount:          orZero(item.Amount),
			OccurredAt:      occurredAt,
			Payload:         payloadJSON(item),
		})
	}
	return rows
}

// BuildExchangeRows flattens the exchange tree into dimension rows for
// exchanges, working schedules, and schedule events. Events without a
// parseable timestamp are skipped.
func BuildExchangeRows(exchanges []api.Exchange) ([]Exchange, []WorkingSchedule, []ScheduleEvent) {
	var exchangeRows []Exchange
	var scheduleRows []WorkingSchedule
	var eventRows []ScheduleEvent

	for _, ex := range exchanges {
		exchangeRows = append(exchangeRows, Exchange{
			ExchangeID: ex.ID,
			Name:       ex.Name,
			Payload:    payloadJSON(ex),
		})

		for _, sched := range ex.WorkingSchedules {
			scheduleRows = append(scheduleRows, WorkingSchedule{
				ScheduleID: sched.ID,
				ExchangeID: ex.ID,
				Payload:    payloadJSON(sched),
			})

			for _, event := range sched.TimeEvents {
				t := ParseAPITime(event.Date)
				if t == nil {
					continue
				}
				eventRows = append(eventRows, ScheduleEvent{
					ScheduleID: sched.ID,
					EventType:  event.Type,
					EventTime:  *t,
					Payload:    payloadJSON(event),
				})
			}
		}
	}

	return exchangeRows, scheduleRows, eventRows
}

// BuildInstruments maps the instrument universe into dimension rows.
func BuildInstruments(instruments []api.Instrument) []Instrument {
	rows := make([]Instrument, 0, len(instruments))
	for _, inst := range instruments {
		rows = append(rows, Instrument{
			Ticker:            inst.Ticker,
			ISIN:              inst.ISIN,
			Name:              inst.Name,
			ShortName:         inst.ShortName,
			CurrencyCode:      strings.ToUpper(inst.CurrencyCode),
			InstrumentType:    inst.Type,
			WorkingScheduleID: inst.WorkingScheduleID,
			MaxOpenQuantity:   inst.MaxOpenQuantity,
			AddedOn:           ParseAPITime(inst.AddedOn),
			Payload:           payloadJSON(inst),
		})
	}
	return rows
}
