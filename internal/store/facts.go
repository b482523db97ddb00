package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/t212-data/internal/metrics"
	"github.com/rickgao/t212-data/internal/model"
)

// InsertOrderWithTaxes writes one historical order and its dependent tax
// rows. The natural key is (order_id, fill_id); a conflict resolves to the
// pre-existing row's identity and tax inserts proceed against it. Orders
// with a NULL fill_id never conflict with each other; the source emits such
// rows for unexecuted orders and they are kept as-is.
func (r *Repository) InsertOrderWithTaxes(ctx context.Context, bundle model.OrderWithTaxes) (Outcome, error) {
	order := bundle.Order
	outcome := Inserted

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return outcome, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var orderHistoryID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO core.order_history (
			account_id, order_id, parent_order_id, ticker, order_type,
			order_status, time_validity, executor, extended_hours,
			ordered_quantity, ordered_value, filled_quantity, filled_value,
			fill_price, fill_cost, fill_result, fill_type, fill_id,
			limit_price, stop_price, placed_at_utc, executed_at_utc,
			modified_at_utc, payload_json
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (order_id, fill_id) WHERE fill_id IS NOT NULL DO NOTHING
		RETURNING order_history_id
	`, order.AccountID, order.OrderID, order.ParentOrderID, order.Ticker, order.OrderType,
		order.OrderStatus, order.TimeValidity, order.Executor, order.ExtendedHours,
		order.OrderedQuantity, order.OrderedValue, order.FilledQuantity, order.FilledValue,
		order.FillPrice, order.FillCost, order.FillResult, order.FillType, order.FillID,
		order.LimitPrice, order.StopPrice, order.PlacedAt, order.ExecutedAt,
		order.ModifiedAt, order.Payload).Scan(&orderHistoryID)

	if errors.Is(err, pgx.ErrNoRows) {
		// Natural key already present; resolve the existing identity.
		outcome = Conflict
		err = tx.QueryRow(ctx, `
			SELECT order_history_id
			FROM core.order_history
			WHERE order_id = $1 AND fill_id = $2
			LIMIT 1
		`, order.OrderID, order.FillID).Scan(&orderHistoryID)
		if err != nil {
			return outcome, fmt.Errorf("resolve existing order %d: %w", order.OrderID, err)
		}
		r.logger.Debug("order history duplicate",
			"order_id", order.OrderID,
			"fill_id", order.FillID,
		)
	} else if err != nil {
		return outcome, fmt.Errorf("insert order %d: %w", order.OrderID, err)
	}

	for _, tax := range bundle.Taxes {
		// Each tax row tolerates its own duplicate without aborting siblings.
		_, err := tx.Exec(ctx, `
			INSERT INTO core.order_history_tax (
				order_history_id, fill_id, tax_name, tax_quantity,
				time_charged_utc, payload_json
			)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (order_history_id, fill_id, tax_name) DO NOTHING
		`, orderHistoryID, tax.FillID, tax.TaxName, tax.Quantity,
			tax.TimeCharged, tax.Payload)
		if err != nil {
			return outcome, fmt.Errorf("insert tax %q for order %d: %w", tax.TaxName, order.OrderID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return outcome, fmt.Errorf("commit: %w", err)
	}

	if outcome == Inserted {
		metrics.RowsWrittenTotal.WithLabelValues("order_history").Inc()
	}
	return outcome, nil
}

// InsertDividend writes one dividend fact. A reference conflict resolves to
// Conflict, not an error.
func (r *Repository) InsertDividend(ctx context.Context, row model.Dividend) (Outcome, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO core.dividend_history (
			account_id, reference, ticker, dividend_type, quantity,
			gross_amount_per_share, amount_account_ccy, amount_eur,
			paid_on_utc, payload_json
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, row.AccountID, row.Reference, row.Ticker, row.DividendType, row.Quantity,
		row.GrossAmountPerShare, row.Amount, row.AmountEUR,
		row.PaidAt, row.Payload)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Debug("dividend duplicate", "reference", row.Reference)
			return Conflict, nil
		}
		return Inserted, fmt.Errorf("insert dividend %q: %w", row.Reference, err)
	}

	metrics.RowsWrittenTotal.WithLabelValues("dividend").Inc()
	return Inserted, nil
}

// InsertTransaction writes one cash-movement fact. A reference conflict
// resolves to Conflict, not an error.
func (r *Repository) InsertTransaction(ctx context.Context, row model.Transaction) (Outcome, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO core.transaction_history (
			account_id, reference, transaction_type, amount_account_ccy,
			occurred_at_utc, payload_json
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, row.AccountID, row.Reference, row.TransactionType, row.Amount,
		row.OccurredAt, row.Payload)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Debug("transaction duplicate", "reference", row.Reference)
			return Conflict, nil
		}
		return Inserted, fmt.Errorf("insert transaction %q: %w", row.Reference, err)
	}

	metrics.RowsWrittenTotal.WithLabelValues("transaction").Inc()
	return Inserted, nil
}

// LatestTransactionTime returns the newest stored transaction timestamp for
// an account, or nil when none exist. Incremental runs use it as the fetch
// watermark.
func (r *Repository) LatestTransactionTime(ctx context.Context, accountID int64) (*time.Time, error) {
	var latest *time.Time
	err := r.db.QueryRow(ctx, `
		SELECT MAX(occurred_at_utc)
		FROM core.transaction_history
		WHERE account_id = $1
	`, accountID).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("latest transaction time: %w", err)
	}
	return latest, nil
}
