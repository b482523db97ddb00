package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/t212-data/internal/metrics"
	"github.com/rickgao/t212-data/internal/model"
)

// InsertCashSnapshot appends one cash snapshot row. Cash is a time series:
// each run adds a generation instead of replacing the last one.
func (r *Repository) InsertCashSnapshot(ctx context.Context, row model.CashSnapshot) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO core.account_cash_snapshot (
			account_id, captured_at_utc, blocked_amount, free_amount,
			invested_amount, pie_cash_amount, unrealised_ppl, realised_result,
			total_equity, source_system, payload_json
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, row.AccountID, row.CapturedAt, row.Blocked, row.Free,
		row.Invested, row.PieCash, row.UnrealisedPPL, row.RealisedResult,
		row.TotalEquity, model.SourceSystem, row.Payload)
	if err != nil {
		return fmt.Errorf("insert cash snapshot: %w", err)
	}

	metrics.RowsWrittenTotal.WithLabelValues("cash_snapshot").Inc()
	return nil
}

// ReplacePortfolioSnapshot atomically replaces the portfolio positions for
// one account. An empty new set still clears the previous generation.
func (r *Repository) ReplacePortfolioSnapshot(ctx context.Context, accountID int64, rows []model.Position) error {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO core.portfolio_position_snapshot (
				account_id, captured_at_utc, ticker, quantity, average_price,
				current_price, ppl_amount, fx_ppl_amount, pie_quantity,
				max_buy_quantity, max_sell_quantity, initial_fill_date,
				frontend_origin, payload_json
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, row.AccountID, row.CapturedAt, row.Ticker, row.Quantity, row.AveragePrice,
			row.CurrentPrice, row.PPL, row.FxPPL, row.PieQuantity,
			row.MaxBuy, row.MaxSell, row.InitialFillDate,
			row.Frontend, row.Payload)
	}

	if err := r.replaceSnapshot(ctx, "core.portfolio_position_snapshot", accountID, batch); err != nil {
		return fmt.Errorf("replace portfolio snapshot: %w", err)
	}

	metrics.RowsWrittenTotal.WithLabelValues("portfolio_position").Add(float64(len(rows)))
	return nil
}

// ReplacePendingOrders atomically replaces the pending-order snapshot for
// one account.
func (r *Repository) ReplacePendingOrders(ctx context.Context, accountID int64, rows []model.PendingOrder) error {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO core.pending_order_snapshot (
				account_id, captured_at_utc, order_id, ticker, order_type,
				order_status, strategy, quantity, value_amount, limit_price,
				stop_price, extended_hours, filled_quantity, filled_value,
				creation_time_utc, payload_json
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`, row.AccountID, row.CapturedAt, row.OrderID, row.Ticker, row.OrderType,
			row.OrderStatus, row.Strategy, row.Quantity, row.Value, row.LimitPrice,
			row.StopPrice, row.ExtendedHours, row.FilledQuantity, row.FilledValue,
			row.CreatedAt, row.Payload)
	}

	if err := r.replaceSnapshot(ctx, "core.pending_order_snapshot", accountID, batch); err != nil {
		return fmt.Errorf("replace pending orders: %w", err)
	}

	metrics.RowsWrittenTotal.WithLabelValues("pending_order").Add(float64(len(rows)))
	return nil
}

// ReplacePieAllocations atomically replaces the pie allocation snapshot for
// one account.
func (r *Repository) ReplacePieAllocations(ctx context.Context, accountID int64, rows []model.PieAllocation) error {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO core.pie_allocation_snapshot (
				account_id, captured_at_utc, pie_id, ticker,
				target_weight_pct, actual_weight_pct, quantity, payload_json
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, row.AccountID, row.CapturedAt, row.PieID, row.Ticker,
			row.TargetWeight, row.ActualWeight, row.Quantity, row.Payload)
	}

	if err := r.replaceSnapshot(ctx, "core.pie_allocation_snapshot", accountID, batch); err != nil {
		return fmt.Errorf("replace pie allocations: %w", err)
	}

	metrics.RowsWrittenTotal.WithLabelValues("pie_allocation").Add(float64(len(rows)))
	return nil
}

// replaceSnapshot runs delete-then-insert for one account in a single
// transaction so exactly one generation is ever visible.
func (r *Repository) replaceSnapshot(ctx context.Context, table string, accountID int64, inserts *pgx.Batch) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE account_id = $1", accountID); err != nil {
		return fmt.Errorf("clear previous generation: %w", err)
	}

	if inserts.Len() > 0 {
		results := tx.SendBatch(ctx, inserts)
		for i := 0; i < inserts.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("insert row %d: %w", i+1, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	return tx.Commit(ctx)
}
