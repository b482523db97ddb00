// Package ratelimit tracks per-endpoint API quota state and gates requests.
//
// Trading 212 reports quota through x-ratelimit-* response headers. The
// limiter records the freshest state per endpoint key and sleeps before a
// request when the bucket is empty, or paces requests for tightly limited
// history endpoints.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rickgao/t212-data/internal/metrics"
)

// Rate limit response headers.
const (
	HeaderLimit     = "x-ratelimit-limit"
	HeaderPeriod    = "x-ratelimit-period"
	HeaderRemaining = "x-ratelimit-remaining"
	HeaderReset     = "x-ratelimit-reset"
	HeaderUsed      = "x-ratelimit-used"
)

// State is the last known quota for one endpoint key, replaced wholesale on
// every response that carries the full rate-limit header set.
type State struct {
	Limit      int   // requests allowed per period
	Period     int   // period length in seconds
	Remaining  int   // requests left in the current window
	ResetEpoch int64 // absolute Unix timestamp when the window resets
}

// Config holds limiter tuning.
type Config struct {
	HighCostPattern string        // endpoint keys containing this substring are treated as high-cost
	TightLimit      int           // per-period budget identifying the tightly limited class
	PaceDelay       time.Duration // inter-request pacing for the tightly limited class
	NoQuotaDelay    time.Duration // conservative wait for high-cost endpoints with no quota info
}

// DefaultConfig returns sensible defaults matching the Trading 212 contract.
func DefaultConfig() Config {
	return Config{
		HighCostPattern: "history",
		TightLimit:      6,
		PaceDelay:       10 * time.Second,
		NoQuotaDelay:    10 * time.Second,
	}
}

// Limiter gates requests per endpoint key. Safe for concurrent use.
type Limiter struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	state map[string]State
	seen  map[string]bool

	// Overridable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter.
func New(cfg Config, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		cfg:    cfg,
		logger: logger,
		state:  make(map[string]State),
		seen:   make(map[string]bool),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Wait blocks until a request to the endpoint may be issued. It returns early
// with the context error if the context is cancelled during a sleep.
func (l *Limiter) Wait(ctx context.Context, endpoint string) error {
	l.mu.Lock()
	st, known := l.state[endpoint]
	first := !l.seen[endpoint]
	l.seen[endpoint] = true
	l.mu.Unlock()

	if !known {
		// The source has not told us anything yet. The very first call per
		// key proceeds immediately; later blind calls to high-cost endpoints
		// get a conservative wait so we do not burst an invisible bucket.
		if l.isHighCost(endpoint) && !first {
			l.logger.Info("no rate limit info, waiting conservatively",
				"endpoint", endpoint,
				"wait", l.cfg.NoQuotaDelay,
			)
			metrics.RateLimitWaitsTotal.WithLabelValues("no_quota").Inc()
			return l.sleep(ctx, l.cfg.NoQuotaDelay)
		}
		return nil
	}

	if st.Remaining > 0 {
		// Tightly limited endpoints are paced so the bucket is spread across
		// the period instead of being burned in a burst.
		if l.isHighCost(endpoint) && st.Limit == l.cfg.TightLimit {
			l.logger.Info("pacing requests",
				"endpoint", endpoint,
				"wait", l.cfg.PaceDelay,
			)
			metrics.RateLimitWaitsTotal.WithLabelValues("pacing").Inc()
			return l.sleep(ctx, l.cfg.PaceDelay)
		}
		return nil
	}

	// Bucket is empty, wait until reset.
	wait := time.Duration(st.ResetEpoch-l.now().Unix()) * time.Second
	if wait <= 0 {
		return nil
	}
	l.logger.Info("rate limit reached, waiting for reset",
		"endpoint", endpoint,
		"wait", wait,
	)
	metrics.RateLimitWaitsTotal.WithLabelValues("exhausted").Inc()
	if err := l.sleep(ctx, wait); err != nil {
		return err
	}
	l.logger.Debug("resuming requests", "endpoint", endpoint)
	return nil
}

// UpdateFromHeaders refreshes recorded state from a response's rate-limit
// headers. A response lacking any of the four required headers never erases
// existing state.
func (l *Limiter) UpdateFromHeaders(endpoint string, headers http.Header) {
	limit, ok1 := headerInt(headers, HeaderLimit)
	period, ok2 := headerInt(headers, HeaderPeriod)
	remaining, ok3 := headerInt(headers, HeaderRemaining)
	reset, ok4 := headerInt(headers, HeaderReset)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return
	}
	if remaining < 0 {
		remaining = 0
	}

	l.mu.Lock()
	l.state[endpoint] = State{
		Limit:      limit,
		Period:     period,
		Remaining:  remaining,
		ResetEpoch: int64(reset),
	}
	l.mu.Unlock()

	metrics.RateLimitRemaining.WithLabelValues(endpoint).Set(float64(remaining))
}

// Snapshot returns the recorded state for an endpoint, if any.
func (l *Limiter) Snapshot(endpoint string) (State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.state[endpoint]
	return st, ok
}

func (l *Limiter) isHighCost(endpoint string) bool {
	return l.cfg.HighCostPattern != "" && strings.Contains(endpoint, l.cfg.HighCostPattern)
}

func headerInt(headers http.Header, key string) (int, bool) {
	v := headers.Get(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
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
