// Package paginate drives cursor pagination for one logical resource until
// the source signals completion, normalizing next-page hints, detecting
// cursor loops, and classifying failures into retry, terminate, or abort.
package paginate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/rickgao/t212-data/internal/api"
	"github.com/rickgao/t212-data/internal/metrics"
)

// DefaultMaxPages is the hard page-count safety valve, independent of loop
// detection.
const DefaultMaxPages = 1000

// ErrStop ends a pagination run early without error when returned from an
// OnPage sink. Incremental collection uses it once a page falls entirely
// behind its watermark.
var ErrStop = errors.New("stop pagination")

// Getter issues one rate-limited GET and returns the raw response body.
// *api.Client satisfies this.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values, label string) ([]byte, error)
}

// StopCause classifies why a pagination run ended.
type StopCause string

const (
	StopComplete  StopCause = "complete"
	StopLoop      StopCause = "loop_detected"
	StopEndOfData StopCause = "end_of_data"
	StopPageLimit StopCause = "page_limit"
	StopError     StopCause = "error"
)

// Result summarizes one pagination run. Items already handed to the page
// sink remain valid regardless of the cause; a StopError result is a
// partial success, not a total loss.
type Result struct {
	Pages int
	Items int
	Cause StopCause
	Err   error // set only when Cause is StopError
}

// Config holds per-resource pagination tuning.
type Config struct {
	// BasePath is the resource path the first page is fetched from and the
	// fallback target for query-only cursor hints.
	BasePath string

	// Label keys rate-limit buckets and metrics; usually equals BasePath.
	Label string

	// BaseQuery is sent with the first page request, typically a page-size
	// limit.
	BaseQuery url.Values

	// StripParams lists query keys removed from every normalized cursor.
	StripParams []string

	// EndOfDataStatuses are HTTP statuses that signal logical completion
	// rather than failure. Transaction history ends with 400 or 404.
	EndOfDataStatuses []int

	// PagePause is slept before every page after the first. Tightly limited
	// history endpoints use this to stay inside a 6-per-minute budget.
	PagePause time.Duration

	// Cooldown is slept after a 429 before retrying the same page.
	Cooldown time.Duration

	// MaxPages caps the run; zero means DefaultMaxPages.
	MaxPages int
}

// Paginator fetches every page of one resource. T is the per-item shape of
// the resource's envelope.
type Paginator[T any] struct {
	client Getter
	cfg    Config
	logger *slog.Logger

	// OnRaw receives every page's raw body before items are extracted,
	// for audit capture.
	OnRaw func(body []byte)

	// OnPage receives each page's items as they arrive, so callers flush
	// in chunks instead of accumulating the full history in memory. An
	// error from the sink aborts the run.
	OnPage func(items []T) error

	// Overridable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Paginator for one resource.
func New[T any](client Getter, cfg Config, logger *slog.Logger) *Paginator[T] {
	if cfg.Label == "" {
		cfg.Label = cfg.BasePath
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Paginator[T]{
		client: client,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepCtx,
	}
}

type envelope[T any] struct {
	Items        []T     `json:"items"`
	NextPagePath *string `json:"nextPagePath"`
}

// Run fetches pages until the source reports completion, a loop or page
// ceiling stops the run, or a non-recoverable error occurs. The returned
// Result always reflects every page already processed.
func (p *Paginator[T]) Run(ctx context.Context) Result {
	var res Result
	seen := make(map[string]bool)

	path := p.cfg.BasePath
	query := cloneValues(p.cfg.BaseQuery)

	for {
		if res.Pages >= p.cfg.MaxPages {
			p.logger.Warn("page ceiling reached, stopping pagination",
				"resource", p.cfg.Label,
				"pages", res.Pages,
			)
			res.Cause = StopPageLimit
			break
		}

		if res.Pages > 0 && p.cfg.PagePause > 0 {
			if err := p.sleep(ctx, p.cfg.PagePause); err != nil {
				res.Cause = StopError
				res.Err = err
				break
			}
		}

		body, err := p.client.Get(ctx, path, query, p.cfg.Label)
		if err != nil {
			var apiErr *api.APIError
			if errors.As(err, &apiErr) {
				if apiErr.IsRateLimited() {
					// Same page is retried after a fixed cooldown; this
					// never counts toward loop tracking.
					p.logger.Warn("rate limit hit, cooling down",
						"resource", p.cfg.Label,
						"cooldown", p.cfg.Cooldown,
					)
					if err := p.sleep(ctx, p.cfg.Cooldown); err != nil {
						res.Cause = StopError
						res.Err = err
						break
					}
					continue
				}
				if p.isEndOfData(apiErr.StatusCode) {
					p.logger.Info("end of data reached",
						"resource", p.cfg.Label,
						"status", apiErr.StatusCode,
						"pages", res.Pages,
					)
					res.Cause = StopEndOfData
					break
				}
			}
			p.logger.Error("page fetch failed, stopping pagination",
				"resource", p.cfg.Label,
				"page", res.Pages+1,
				"error", err,
			)
			res.Cause = StopError
			res.Err = fmt.Errorf("fetch page %d: %w", res.Pages+1, err)
			break
		}

		res.Pages++
		metrics.PagesFetchedTotal.WithLabelValues(p.cfg.Label).Inc()

		if p.OnRaw != nil {
			p.OnRaw(body)
		}

		var page envelope[T]
		if err := json.Unmarshal(body, &page); err != nil {
			res.Cause = StopError
			res.Err = fmt.Errorf("decode page %d: %w", res.Pages, err)
			break
		}

		res.Items += len(page.Items)
		if p.OnPage != nil && len(page.Items) > 0 {
			if err := p.OnPage(page.Items); err != nil {
				if errors.Is(err, ErrStop) {
					res.Cause = StopComplete
					break
				}
				res.Cause = StopError
				res.Err = fmt.Errorf("page sink: %w", err)
				break
			}
		}

		if page.NextPagePath == nil || *page.NextPagePath == "" {
			res.Cause = StopComplete
			break
		}

		next := *page.NextPagePath
		if seen[next] {
			p.logger.Warn("pagination loop detected, stopping",
				"resource", p.cfg.Label,
				"cursor", next,
				"pages", res.Pages,
			)
			res.Cause = StopLoop
			break
		}
		seen[next] = true

		path, query = Normalize(p.cfg.BasePath, next, p.cfg.StripParams)
		if path == p.cfg.BasePath && len(query) == 0 {
			// The hint carried nothing usable; the loop detector and page
			// ceiling bound the re-request of the base path.
			p.logger.Warn("cursor hint carried no usable parameters",
				"resource", p.cfg.Label,
				"hint", next,
			)
		}

		p.logger.Debug("fetched page",
			"resource", p.cfg.Label,
			"page", res.Pages,
			"items", res.Items,
		)
	}

	metrics.PaginationStopsTotal.WithLabelValues(p.cfg.Label, string(res.Cause)).Inc()
	return res
}

func (p *Paginator[T]) isEndOfData(status int) bool {
	for _, s := range p.cfg.EndOfDataStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
