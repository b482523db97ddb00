// Package ingest orchestrates full-snapshot and incremental ingestion runs:
// Account, Portfolio, History, Metadata phases with per-run row counting.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/t212-data/internal/api"
	"github.com/rickgao/t212-data/internal/metrics"
	"github.com/rickgao/t212-data/internal/model"
	"github.com/rickgao/t212-data/internal/paginate"
	"github.com/rickgao/t212-data/internal/store"
)

// Store is the persistence contract the orchestrator writes through.
// *store.Repository implements it.
type Store interface {
	RecordRawPayload(ctx context.Context, endpoint string, payload []byte, accountID *int64, correlationID uuid.UUID) (time.Time, error)
	UpsertAccountProfile(ctx context.Context, accountID int64, currencyCode string, seenAt time.Time) error
	InsertCashSnapshot(ctx context.Context, row model.CashSnapshot) error
	ReplacePortfolioSnapshot(ctx context.Context, accountID int64, rows []model.Position) error
	ReplacePendingOrders(ctx context.Context, accountID int64, rows []model.PendingOrder) error
	ReplacePieAllocations(ctx context.Context, accountID int64, rows []model.PieAllocation) error
	InsertOrderWithTaxes(ctx context.Context, bundle model.OrderWithTaxes) (store.Outcome, error)
	InsertDividend(ctx context.Context, row model.Dividend) (store.Outcome, error)
	InsertTransaction(ctx context.Context, row model.Transaction) (store.Outcome, error)
	UpsertExchanges(ctx context.Context, exchanges []model.Exchange, schedules []model.WorkingSchedule, events []model.ScheduleEvent) error
	UpsertInstruments(ctx context.Context, rows []model.Instrument) error
	LatestTransactionTime(ctx context.Context, accountID int64) (*time.Time, error)
}

// Config holds orchestration tuning.
type Config struct {
	PageLimit         int           // page size for paginated history resources
	MaxPages          int           // hard per-resource page ceiling
	RateLimitCooldown time.Duration // wait after 429 before retrying the same page
	HistoryPagePause  time.Duration // pause between history pages
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PageLimit:         50,
		MaxPages:          1000,
		RateLimitCooldown: 30 * time.Second,
		HistoryPagePause:  12 * time.Second,
	}
}

// Summary counts the rows each entity class produced during one run. Every
// field is present even when zero.
type Summary struct {
	AccountID           int64
	CashSnapshotRows    int
	PortfolioRows       int
	PendingOrderRows    int
	PieAllocationRows   int
	OrderHistoryRows    int
	DividendRows        int
	TransactionRows     int
	ExchangeRows        int
	WorkingScheduleRows int
	ScheduleEventRows   int
	InstrumentRows      int
	PhaseFailures       []string // phase names that ended with an error
}

// Service coordinates API fetches, transforms, and persistence.
type Service struct {
	cfg    Config
	client *api.Client
	store  Store
	logger *slog.Logger
}

// New creates an ingestion Service.
func New(cfg Config, client *api.Client, st Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:    cfg,
		client: client,
		store:  st,
		logger: logger,
	}
}

// RunFullSnapshot executes a complete pull: account identity and cash,
// portfolio state, full history, and instrument metadata. A missing account
// identity aborts the whole run; failures in later phases are isolated and
// reported in the summary.
func (s *Service) RunFullSnapshot(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	correlationID := uuid.New()

	s.logger.Info("starting full snapshot run", "correlation_id", correlationID)

	accountID, err := s.ingestAccountState(ctx, summary, correlationID)
	if err != nil {
		metrics.IngestRunsTotal.WithLabelValues("fatal").Inc()
		return nil, fmt.Errorf("account identity: %w", err)
	}
	summary.AccountID = accountID

	phases := []struct {
		name string
		run  func(context.Context, *Summary, int64, uuid.UUID) error
	}{
		{"portfolio", s.ingestPortfolioState},
		{"history", s.ingestHistory},
		{"metadata", s.ingestMetadata},
	}

	for _, phase := range phases {
		if err := phase.run(ctx, summary, accountID, correlationID); err != nil {
			s.logger.Error("phase failed",
				"phase", phase.name,
				"error", err,
			)
			summary.PhaseFailures = append(summary.PhaseFailures, phase.name)
		}
	}

	outcome := "complete"
	if len(summary.PhaseFailures) > 0 {
		outcome = "partial"
	}
	metrics.IngestRunsTotal.WithLabelValues(outcome).Inc()

	s.logger.Info("full snapshot run finished",
		"correlation_id", correlationID,
		"account_id", summary.AccountID,
		"order_history_rows", summary.OrderHistoryRows,
		"dividend_rows", summary.DividendRows,
		"transaction_rows", summary.TransactionRows,
		"failed_phases", summary.PhaseFailures,
	)
	return summary, nil
}

// ingestAccountState resolves the account identity and captures the cash
// snapshot. Returning an error here is fatal to the whole run.
func (s *Service) ingestAccountState(ctx context.Context, summary *Summary, correlationID uuid.UUID) (int64, error) {
	info, raw, err := s.client.GetAccountInfo(ctx)
	if err != nil {
		return 0, err
	}
	if info.ID == 0 {
		return 0, fmt.Errorf("account info payload carries no account id")
	}

	capturedAt := s.recordRaw(ctx, api.PathAccountInfo, raw, nil, correlationID)
	if err := s.store.UpsertAccountProfile(ctx, info.ID, info.CurrencyCode, capturedAt); err != nil {
		return 0, err
	}
	s.logger.Info("account profile updated",
		"account_id", info.ID,
		"currency", info.CurrencyCode,
	)

	cash, rawCash, err := s.client.GetAccountCash(ctx)
	if err != nil {
		return 0, err
	}
	cashCapturedAt := s.recordRaw(ctx, api.PathAccountCash, rawCash, &info.ID, correlationID)

	row := model.BuildCashSnapshot(info.ID, cash, cashCapturedAt)
	if err := s.store.InsertCashSnapshot(ctx, row); err != nil {
		return 0, err
	}
	summary.CashSnapshotRows = 1

	return info.ID, nil
}

// ingestPortfolioState refreshes the portfolio, pending-order, and pie
// allocation snapshots.
func (s *Service) ingestPortfolioState(ctx context.Context, summary *Summary, accountID int64, correlationID uuid.UUID) error {
	positions, raw, err := s.client.GetPortfolio(ctx)
	if err != nil {
		return fmt.Errorf("portfolio: %w", err)
	}
	capturedAt := s.recordRaw(ctx, api.PathPortfolio, raw, &accountID, correlationID)

	positionRows := model.BuildPositions(accountID, positions, capturedAt)
	if err := s.store.ReplacePortfolioSnapshot(ctx, accountID, positionRows); err != nil {
		return fmt.Errorf("portfolio: %w", err)
	}
	summary.PortfolioRows = len(positionRows)
	s.logger.Info("portfolio snapshot replaced", "positions", len(positionRows))

	orders, rawOrders, err := s.client.GetPendingOrders(ctx)
	if err != nil {
		return fmt.Errorf("pending orders: %w", err)
	}
	ordersCapturedAt := s.recordRaw(ctx, api.PathPendingOrders, rawOrders, &accountID, correlationID)

	orderRows := model.BuildPendingOrders(accountID, orders, ordersCapturedAt)
	if err := s.store.ReplacePendingOrders(ctx, accountID, orderRows); err != nil {
		return fmt.Errorf("pending orders: %w", err)
	}
	summary.PendingOrderRows = len(orderRows)
	s.logger.Info("pending orders snapshot replaced", "orders", len(orderRows))

	return s.ingestPies(ctx, summary, accountID, correlationID)
}

// ingestPies fetches every pie's allocation details and replaces the pie
// allocation snapshot.
func (s *Service) ingestPies(ctx context.Context, summary *Summary, accountID int64, correlationID uuid.UUID) error {
	pies, raw, err := s.client.GetPies(ctx)
	if err != nil {
		return fmt.Errorf("pies: %w", err)
	}
	capturedAt := s.recordRaw(ctx, api.PathPies, raw, &accountID, correlationID)

	details := make([]api.PieDetails, 0, len(pies))
	for _, pie := range pies {
		detail, rawDetail, err := s.client.GetPieDetails(ctx, pie.ID)
		if err != nil {
			// One broken pie does not lose the others.
			s.logger.Error("pie details fetch failed", "pie_id", pie.ID, "error", err)
			continue
		}
		s.recordRaw(ctx, fmt.Sprintf("%s/%d", api.PathPies, pie.ID), rawDetail, &accountID, correlationID)
		details = append(details, *detail)
	}

	rows := model.BuildPieAllocations(accountID, details, capturedAt)
	if err := s.store.ReplacePieAllocations(ctx, accountID, rows); err != nil {
		return fmt.Errorf("pies: %w", err)
	}
	summary.PieAllocationRows = len(rows)
	s.logger.Info("pie allocation snapshot replaced", "slices", len(rows))

	return nil
}

// ingestHistory pulls the three paginated history resources. Each resource
// fails independently; a partial pull keeps everything already written.
func (s *Service) ingestHistory(ctx context.Context, summary *Summary, accountID int64, correlationID uuid.UUID) error {
	var firstErr error

	if err := s.ingestOrderHistory(ctx, summary, accountID, correlationID); err != nil {
		s.logger.Error("order history incomplete", "error", err)
		firstErr = err
	}
	if err := s.ingestDividends(ctx, summary, accountID, correlationID); err != nil {
		s.logger.Error("dividend history incomplete", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	if err := s.ingestTransactions(ctx, summary, accountID, correlationID); err != nil {
		s.logger.Error("transaction history incomplete", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) ingestOrderHistory(ctx context.Context, summary *Summary, accountID int64, correlationID uuid.UUID) error {
	p := paginate.New[api.HistoricalOrder](s.client, paginate.Config{
		BasePath:  api.PathOrderHistory,
		BaseQuery: s.pageQuery(),
		PagePause: s.cfg.HistoryPagePause,
		Cooldown:  s.cfg.RateLimitCooldown,
		MaxPages:  s.cfg.MaxPages,
	}, s.logger)
	p.OnRaw = s.rawSink(ctx, api.PathOrderHistory, &accountID, correlationID)

	// The source occasionally repeats (order_id, fill_id) pairs inside one
	// response; scan and log what it actually returned before writing.
	seenPairs := make(map[[2]int64]bool)
	duplicatePairs := 0
	nullFillCount := 0

	p.OnPage = func(items []api.HistoricalOrder) error {
		for _, item := range items {
			if item.FillID == nil {
				nullFillCount++
			} else {
				pair := [2]int64{item.ID, *item.FillID}
				if seenPairs[pair] {
					duplicatePairs++
					s.logger.Warn("duplicate order/fill pair in response",
						"order_id", item.ID,
						"fill_id", *item.FillID,
					)
				}
				seenPairs[pair] = true
			}
		}

		for _, bundle := range model.BuildOrderBundles(accountID, items) {
			outcome, err := s.store.InsertOrderWithTaxes(ctx, bundle)
			if err != nil {
				// A single bad row never aborts the surrounding loop.
				s.logger.Error("order insert failed",
					"order_id", bundle.Order.OrderID,
					"error", err,
				)
				continue
			}
			if outcome == store.Inserted {
				summary.OrderHistoryRows++
			}
		}
		return nil
	}

	res := p.Run(ctx)
	s.logger.Info("order history pull finished",
		"pages", res.Pages,
		"items", res.Items,
		"inserted", summary.OrderHistoryRows,
		"duplicate_pairs", duplicatePairs,
		"null_fill_ids", nullFillCount,
		"cause", res.Cause,
	)
	return res.Err
}

func (s *Service) ingestDividends(ctx context.Context, summary *Summary, accountID int64, correlationID uuid.UUID) error {
	p := paginate.New[api.Dividend](s.client, paginate.Config{
		BasePath:  api.PathDividends,
		BaseQuery: s.pageQuery(),
		PagePause: s.cfg.HistoryPagePause,
		Cooldown:  s.cfg.RateLimitCooldown,
		MaxPages:  s.cfg.MaxPages,
	}, s.logger)
	p.OnRaw = s.rawSink(ctx, api.PathDividends, &accountID, correlationID)

	capturedAt := time.Now().UTC()
	p.OnPage = func(items []api.Dividend) error {
		for _, row := range model.BuildDividends(accountID, items, capturedAt) {
			outcome, err := s.store.InsertDividend(ctx, row)
			if err != nil {
				s.logger.Error("dividend insert failed", "reference", row.Reference, "error", err)
				continue
			}
			if outcome == store.Inserted {
				summary.DividendRows++
			}
		}
		return nil
	}

	res := p.Run(ctx)
	s.logger.Info("dividend history pull finished",
		"pages", res.Pages,
		"items", res.Items,
		"inserted", summary.DividendRows,
		"cause", res.Cause,
	)
	return res.Err
}

func (s *Service) ingestTransactions(ctx context.Context, summary *Summary, accountID int64, correlationID uuid.UUID) error {
	p := paginate.New[api.Transaction](s.client, paginate.Config{
		BasePath: api.PathTransactions,
		// The continuation token reintroduces a stale time filter.
		StripParams:       []string{"time"},
		EndOfDataStatuses: []int{400, 404},
		BaseQuery:         s.pageQuery(),
		PagePause:         s.cfg.HistoryPagePause,
		Cooldown:          s.cfg.RateLimitCooldown,
		MaxPages:          s.cfg.MaxPages,
	}, s.logger)
	p.OnRaw = s.rawSink(ctx, api.PathTransactions, &accountID, correlationID)

	capturedAt := time.Now().UTC()
	p.OnPage = func(items []api.Transaction) error {
		for _, row := range model.BuildTransactions(accountID, items, capturedAt) {
			outcome, err := s.store.InsertTransaction(ctx, row)
			if err != nil {
				s.logger.Error("transaction insert failed", "reference", row.Reference, "error", err)
				continue
			}
			if outcome == store.Inserted {
				summary.TransactionRows++
			}
		}
		return nil
	}

	res := p.Run(ctx)
	s.logger.Info("transaction history pull finished",
		"pages", res.Pages,
		"items", res.Items,
		"inserted", summary.TransactionRows,
		"cause", res.Cause,
	)
	return res.Err
}

// ingestMetadata refreshes the exchange tree and the instrument universe.
func (s *Service) ingestMetadata(ctx context.Context, summary *Summary, accountID int64, correlationID uuid.UUID) error {
	exchanges, raw, err := s.client.GetExchanges(ctx)
	if err != nil {
		return fmt.Errorf("exchanges: %w", err)
	}
	s.recordRaw(ctx, api.PathExchanges, raw, nil, correlationID)

	exchangeRows, scheduleRows, eventRows := model.BuildExchangeRows(exchanges)
	if err := s.store.UpsertExchanges(ctx, exchangeRows, scheduleRows, eventRows); err != nil {
		return fmt.Errorf("exchanges: %w", err)
	}
	summary.ExchangeRows = len(exchangeRows)
	summary.WorkingScheduleRows = len(scheduleRows)
	summary.ScheduleEventRows = len(eventRows)
	s.logger.Info("exchange metadata upserted",
		"exchanges", len(exchangeRows),
		"schedules", len(scheduleRows),
		"events", len(eventRows),
	)

	instruments, rawInstruments, err := s.client.GetInstruments(ctx)
	if err != nil {
		return fmt.Errorf("instruments: %w", err)
	}
	s.recordRaw(ctx, api.PathInstruments, rawInstruments, nil, correlationID)

	instrumentRows := model.BuildInstruments(instruments)
	if err := s.store.UpsertInstruments(ctx, instrumentRows); err != nil {
		return fmt.Errorf("instruments: %w", err)
	}
	summary.InstrumentRows = len(instrumentRows)
	s.logger.Info("instrument universe upserted", "instruments", len(instrumentRows))

	return nil
}

func (s *Service) pageQuery() url.Values {
	return url.Values{"limit": {strconv.Itoa(s.cfg.PageLimit)}}
}

// recordRaw captures a payload for audit and returns the capture time. An
// audit failure is logged, never fatal to the data it annotates.
func (s *Service) recordRaw(ctx context.Context, endpoint string, payload []byte, accountID *int64, correlationID uuid.UUID) time.Time {
	capturedAt, err := s.store.RecordRawPayload(ctx, endpoint, payload, accountID, correlationID)
	if err != nil {
		s.logger.Error("raw payload capture failed", "endpoint", endpoint, "error", err)
		return time.Now().UTC()
	}
	return capturedAt
}

func (s *Service) rawSink(ctx context.Context, endpoint string, accountID *int64, correlationID uuid.UUID) func([]byte) {
	return func(body []byte) {
		s.recordRaw(ctx, endpoint, body, accountID, correlationID)
	}
}
