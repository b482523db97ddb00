package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/t212-data/internal/api"
	"github.com/rickgao/t212-data/internal/model"
	"github.com/rickgao/t212-data/internal/paginate"
	"github.com/rickgao/t212-data/internal/store"
)

// incrementalMaxPages bounds each incremental transaction pull; a backlog
// beyond it is picked up by the next run.
const incrementalMaxPages = 5

// IncrementalSummary counts the rows an incremental run produced.
type IncrementalSummary struct {
	AccountID          int64
	CashSnapshotRows   int
	PortfolioRows      int
	PendingOrderRows   int
	NewTransactionRows int
}

// RunIncremental refreshes the current-state snapshots and fetches only
// transactions newer than the latest stored one. Meant for frequent
// scheduled runs between full snapshots.
func (s *Service) RunIncremental(ctx context.Context) (*IncrementalSummary, error) {
	summary := &IncrementalSummary{}
	correlationID := uuid.New()

	s.logger.Info("starting incremental run", "correlation_id", correlationID)

	info, raw, err := s.client.GetAccountInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("account identity: %w", err)
	}
	if info.ID == 0 {
		return nil, fmt.Errorf("account info payload carries no account id")
	}
	summary.AccountID = info.ID
	capturedAt := s.recordRaw(ctx, api.PathAccountInfo, raw, nil, correlationID)

	cash, rawCash, err := s.client.GetAccountCash(ctx)
	if err != nil {
		return summary, fmt.Errorf("cash: %w", err)
	}
	s.recordRaw(ctx, api.PathAccountCash, rawCash, &info.ID, correlationID)
	if err := s.store.InsertCashSnapshot(ctx, model.BuildCashSnapshot(info.ID, cash, capturedAt)); err != nil {
		return summary, fmt.Errorf("cash: %w", err)
	}
	summary.CashSnapshotRows = 1

	positions, rawPositions, err := s.client.GetPortfolio(ctx)
	if err != nil {
		return summary, fmt.Errorf("portfolio: %w", err)
	}
	s.recordRaw(ctx, api.PathPortfolio, rawPositions, &info.ID, correlationID)
	positionRows := model.BuildPositions(info.ID, positions, capturedAt)
	if err := s.store.ReplacePortfolioSnapshot(ctx, info.ID, positionRows); err != nil {
		return summary, fmt.Errorf("portfolio: %w", err)
	}
	summary.PortfolioRows = len(positionRows)

	orders, rawOrders, err := s.client.GetPendingOrders(ctx)
	if err != nil {
		return summary, fmt.Errorf("pending orders: %w", err)
	}
	s.recordRaw(ctx, api.PathPendingOrders, rawOrders, &info.ID, correlationID)
	orderRows := model.BuildPendingOrders(info.ID, orders, capturedAt)
	if err := s.store.ReplacePendingOrders(ctx, info.ID, orderRows); err != nil {
		return summary, fmt.Errorf("pending orders: %w", err)
	}
	summary.PendingOrderRows = len(orderRows)

	newRows, err := s.collectNewTransactions(ctx, info.ID, correlationID)
	summary.NewTransactionRows = newRows
	if err != nil {
		return summary, fmt.Errorf("transactions: %w", err)
	}

	s.logger.Info("incremental run finished",
		"correlation_id", correlationID,
		"account_id", info.ID,
		"new_transactions", newRows,
	)
	return summary, nil
}

// collectNewTransactions paginates the transaction history newest-first and
// stops once a whole page falls behind the stored watermark.
func (s *Service) collectNewTransactions(ctx context.Context, accountID int64, correlationID uuid.UUID) (int, error) {
	watermark, err := s.store.LatestTransactionTime(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if watermark != nil {
		s.logger.Info("resuming from transaction watermark", "watermark", *watermark)
	} else {
		s.logger.Info("no stored transactions, collecting recent history")
	}

	p := paginate.New[api.Transaction](s.client, paginate.Config{
		BasePath:          api.PathTransactions,
		StripParams:       []string{"time"},
		EndOfDataStatuses: []int{400, 404},
		BaseQuery:         s.pageQuery(),
		PagePause:         s.cfg.HistoryPagePause,
		Cooldown:          s.cfg.RateLimitCooldown,
		MaxPages:          incrementalMaxPages,
	}, s.logger)
	p.OnRaw = s.rawSink(ctx, api.PathTransactions, &accountID, correlationID)

	inserted := 0
	capturedAt := time.Now().UTC()
	p.OnPage = func(items []api.Transaction) error {
		pageInserted := 0
		for _, row := range model.BuildTransactions(accountID, items, capturedAt) {
			if watermark != nil && row.OccurredAt.Before(*watermark) {
				continue
			}
			outcome, err := s.store.InsertTransaction(ctx, row)
			if err != nil {
				s.logger.Error("transaction insert failed", "reference", row.Reference, "error", err)
				continue
			}
			if outcome == store.Inserted {
				pageInserted++
			}
		}
		inserted += pageInserted

		// A page with nothing new means the rest is older still.
		if pageInserted == 0 {
			return paginate.ErrStop
		}
		return nil
	}

	res := p.Run(ctx)
	return inserted, res.Err
}
