package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/t212-data/internal/metrics"
	"github.com/rickgao/t212-data/internal/model"
)

// UpsertAccountProfile inserts or refreshes the account dimension row.
// First-seen is kept from the original insert; last-seen always moves
// forward.
func (r *Repository) UpsertAccountProfile(ctx context.Context, accountID int64, currencyCode string, seenAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO core.account_profile (account_id, currency_code, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (account_id) DO UPDATE SET
			currency_code = EXCLUDED.currency_code,
			last_seen_at = EXCLUDED.last_seen_at
	`, accountID, currencyCode, seenAt)
	if err != nil {
		return fmt.Errorf("upsert account profile: %w", err)
	}
	return nil
}

// UpsertExchanges writes the exchange tree in one transaction: exchanges and
// schedules are upserted by id, schedule events append with per-row
// duplicate tolerance.
func (r *Repository) UpsertExchanges(
	ctx context.Context,
	exchanges []model.Exchange,
	schedules []model.WorkingSchedule,
	events []model.ScheduleEvent,
) error {
	batch := &pgx.Batch{}
	for _, ex := range exchanges {
		batch.Queue(`
			INSERT INTO core.exchange (exchange_id, exchange_name, payload_json)
			VALUES ($1, $2, $3)
			ON CONFLICT (exchange_id) DO UPDATE SET
				exchange_name = EXCLUDED.exchange_name,
				payload_json = EXCLUDED.payload_json
		`, ex.ExchangeID, ex.Name, ex.Payload)
	}
	for _, sched := range schedules {
		batch.Queue(`
			INSERT INTO core.working_schedule (working_schedule_id, exchange_id, payload_json)
			VALUES ($1, $2, $3)
			ON CONFLICT (working_schedule_id) DO UPDATE SET
				exchange_id = EXCLUDED.exchange_id,
				payload_json = EXCLUDED.payload_json
		`, sched.ScheduleID, sched.ExchangeID, sched.Payload)
	}
	for _, event := range events {
		batch.Queue(`
			INSERT INTO core.working_schedule_event (
				working_schedule_id, event_type, event_time_utc, payload_json
			)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (working_schedule_id, event_type, event_time_utc) DO NOTHING
		`, event.ScheduleID, event.EventType, event.EventTime, event.Payload)
	}

	if err := r.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("upsert exchanges: %w", err)
	}

	metrics.RowsWrittenTotal.WithLabelValues("exchange").Add(float64(len(exchanges)))
	return nil
}

// UpsertInstruments refreshes the instrument universe keyed by ticker.
func (r *Repository) UpsertInstruments(ctx context.Context, rows []model.Instrument) error {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO core.instrument (
				ticker, isin, name, short_name, currency_code,
				instrument_type, working_schedule_id, max_open_quantity,
				added_on_utc, payload_json
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (ticker) DO UPDATE SET
				isin = EXCLUDED.isin,
				name = EXCLUDED.name,
				short_name = EXCLUDED.short_name,
				currency_code = EXCLUDED.currency_code,
				instrument_type = EXCLUDED.instrument_type,
				working_schedule_id = EXCLUDED.working_schedule_id,
				max_open_quantity = EXCLUDED.max_open_quantity,
				added_on_utc = EXCLUDED.added_on_utc,
				payload_json = EXCLUDED.payload_json
		`, row.Ticker, row.ISIN, row.Name, row.ShortName, row.CurrencyCode,
			row.InstrumentType, row.WorkingScheduleID, row.MaxOpenQuantity,
			row.AddedOn, row.Payload)
	}

	if err := r.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("upsert instruments: %w", err)
	}

	metrics.RowsWrittenTotal.WithLabelValues("instrument").Add(float64(len(rows)))
	return nil
}

func (r *Repository) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}
