package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/t212-data/internal/auth"
	"github.com/rickgao/t212-data/internal/ratelimit"
)

func testCreds() *auth.Credentials {
	return &auth.Credentials{Key: "test-key", Secret: "test-secret"}
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://demo.trading212.com/api/v0", testCreds())

		if c.baseURL != "https://demo.trading212.com/api/v0" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://demo.trading212.com/api/v0")
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 5 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 5)
		}
		if c.retryBackoff != 2*time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 2*time.Second)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with timeout option", func(t *testing.T) {
		c := NewClient("https://example.com", testCreds(), WithTimeout(5*time.Second))
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 5*time.Second)
		}
	})

	t.Run("with retries option", func(t *testing.T) {
		c := NewClient("https://example.com", testCreds(), WithRetries(3, time.Second))
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.retryBackoff != time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, time.Second)
		}
	})

	t.Run("with logger option", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("https://example.com", testCreds(), WithLogger(logger))
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		customClient := &http.Client{Timeout: 10 * time.Second}
		c := NewClient("https://example.com", testCreds(), WithHTTPClient(customClient))
		if c.httpClient != customClient {
			t.Error("custom HTTP client not set")
		}
	})

	t.Run("with rate limiter", func(t *testing.T) {
		limiter := ratelimit.New(ratelimit.DefaultConfig(), nil)
		c := NewClient("https://example.com", testCreds(), WithRateLimiter(limiter))
		if c.limiter != limiter {
			t.Error("rate limiter not set")
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	t.Run("Error method", func(t *testing.T) {
		err := &APIError{
			StatusCode: 404,
			Message:    "Not Found",
			Body:       []byte(`{"error": "no more data"}`),
		}
		expected := "t212 api error 404: Not Found"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
	})

	t.Run("IsRetryable", func(t *testing.T) {
		tests := []struct {
			code     int
			expected bool
		}{
			{500, true},
			{502, true},
			{503, true},
			{429, false}, // rate limits get a fixed cooldown, not backoff
			{400, false},
			{401, false},
			{404, false},
			{200, false},
		}

		for _, tt := range tests {
			err := &APIError{StatusCode: tt.code}
			if got := err.IsRetryable(); got != tt.expected {
				t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
			}
		}
	})

	t.Run("IsRateLimited", func(t *testing.T) {
		if !(&APIError{StatusCode: 429}).IsRateLimited() {
			t.Error("429 should be rate limited")
		}
		if (&APIError{StatusCode: 500}).IsRateLimited() {
			t.Error("500 should not be rate limited")
		}
	})
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/equity/portfolio", "equity/portfolio"},
		{"equity/portfolio", "equity/portfolio"},
		{"/api/v0/equity/history/orders", "equity/history/orders"},
		{"api/v0/history/transactions", "history/transactions"},
	}

	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestDoRequest tests the HTTP request functionality.
func TestDoRequest(t *testing.T) {
	t.Run("successful request with auth headers", func(t *testing.T) {
		creds := testCreds()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("Accept header = %q, want %q", r.Header.Get("Accept"), "application/json")
			}
			if r.Header.Get("Authorization") != creds.AuthorizationHeader() {
				t.Errorf("Authorization header = %q, want %q", r.Header.Get("Authorization"), creds.AuthorizationHeader())
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status": "ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, creds)
		body, err := c.doRequest(context.Background(), "/test", nil, "/test")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"status": "ok"}` {
			t.Errorf("body = %q, want %q", string(body), `{"status": "ok"}`)
		}
	})

	t.Run("api/v0 prefix is stripped from relative paths", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/equity/history/orders" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/equity/history/orders")
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds())
		if _, err := c.doRequest(context.Background(), "/api/v0/equity/history/orders", nil, "label"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("absolute URL is used verbatim", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/somewhere/else" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/somewhere/else")
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient("http://unused.invalid", testCreds())
		if _, err := c.doRequest(context.Background(), server.URL+"/somewhere/else", nil, "label"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("request with query parameters", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("limit") != "50" {
				t.Errorf("limit = %q, want %q", r.URL.Query().Get("limit"), "50")
			}
			if r.URL.Query().Get("cursor") != "abc123" {
				t.Errorf("cursor = %q, want %q", r.URL.Query().Get("cursor"), "abc123")
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds())
		query := url.Values{}
		query.Set("limit", "50")
		query.Set("cursor", "abc123")
		if _, err := c.doRequest(context.Background(), "/test", query, "/test"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("4xx error returns APIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "not found"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds())
		_, err := c.doRequest(context.Background(), "/test", nil, "/test")
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.StatusCode != 404 {
			t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, 404)
		}
		if !strings.Contains(string(apiErr.Body), "not found") {
			t.Errorf("Body should contain 'not found', got %q", string(apiErr.Body))
		}
	})

	t.Run("rate limit headers feed the limiter on success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("x-ratelimit-limit", "30")
			w.Header().Set("x-ratelimit-period", "60")
			w.Header().Set("x-ratelimit-remaining", "29")
			w.Header().Set("x-ratelimit-reset", "1700000000")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		limiter := ratelimit.New(ratelimit.DefaultConfig(), nil)
		c := NewClient(server.URL, testCreds(), WithRateLimiter(limiter))

		if _, err := c.doRequest(context.Background(), "/equity/portfolio", nil, "/equity/portfolio"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		st, ok := limiter.Snapshot("/equity/portfolio")
		if !ok {
			t.Fatal("limiter did not record quota state")
		}
		if st.Remaining != 29 {
			t.Errorf("Remaining = %d, want 29", st.Remaining)
		}
	})

	t.Run("error responses do not feed the limiter", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("x-ratelimit-limit", "30")
			w.Header().Set("x-ratelimit-period", "60")
			w.Header().Set("x-ratelimit-remaining", "0")
			w.Header().Set("x-ratelimit-reset", "1700000000")
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		limiter := ratelimit.New(ratelimit.DefaultConfig(), nil)
		c := NewClient(server.URL, testCreds(), WithRateLimiter(limiter))

		_, err := c.doRequest(context.Background(), "/equity/portfolio", nil, "/equity/portfolio")
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if _, ok := limiter.Snapshot("/equity/portfolio"); ok {
			t.Error("limiter recorded state from an error response")
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := c.doRequest(ctx, "/test", nil, "/test"); err == nil {
			t.Fatal("expected error from cancelled context, got nil")
		}
	})
}

// TestGet tests retry behavior.
func TestGet(t *testing.T) {
	t.Run("retries 5xx then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds(), WithRetries(3, 10*time.Millisecond))
		body, err := c.Get(context.Background(), "/test", nil, "/test")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"ok": true}` {
			t.Errorf("body = %q, want %q", string(body), `{"ok": true}`)
		}
		if got := calls.Load(); got != 3 {
			t.Errorf("server calls = %d, want 3", got)
		}
	})

	t.Run("retries dropped connection then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				// Drop the connection mid-request so the client sees a
				// transport error instead of a status code.
				hj, ok := w.(http.Hijacker)
				if !ok {
					t.Error("server does not support hijacking")
					return
				}
				conn, _, err := hj.Hijack()
				if err != nil {
					t.Errorf("hijack failed: %v", err)
					return
				}
				conn.Close()
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds(), WithRetries(3, 10*time.Millisecond))
		body, err := c.Get(context.Background(), "/test", nil, "/test")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"ok": true}` {
			t.Errorf("body = %q, want %q", string(body), `{"ok": true}`)
		}
		if got := calls.Load(); got != 2 {
			t.Errorf("server calls = %d, want 2", got)
		}
	})

	t.Run("does not retry cancelled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := NewClient(server.URL, testCreds(), WithRetries(3, 10*time.Millisecond))
		_, err := c.Get(ctx, "/test", nil, "/test")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
	})

	t.Run("does not retry 4xx", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds(), WithRetries(3, 10*time.Millisecond))
		if _, err := c.Get(context.Background(), "/test", nil, "/test"); err == nil {
			t.Fatal("expected error, got nil")
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("server calls = %d, want 1", got)
		}
	})

	t.Run("does not retry 429", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds(), WithRetries(3, 10*time.Millisecond))
		_, err := c.Get(context.Background(), "/test", nil, "/test")

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRateLimited() {
			t.Fatalf("expected rate-limited APIError, got %v", err)
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("server calls = %d, want 1", got)
		}
	})

	t.Run("exhausts retries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, testCreds(), WithRetries(2, 5*time.Millisecond))
		_, err := c.Get(context.Background(), "/test", nil, "/test")
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("error = %v, want max retries exceeded", err)
		}
	})
}

// TestEndpoints tests the typed endpoint wrappers.
func TestEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/equity/account/info", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 12345, "currencyCode": "EUR"}`))
	})
	mux.HandleFunc("/equity/account/cash", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"free": 100.5, "total": 250.75, "invested": 150.25}`))
	})
	mux.HandleFunc("/equity/portfolio", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"ticker": "AAPL_US_EQ", "quantity": 2.5, "averagePrice": 171.2}]`))
	})
	mux.HandleFunc("/equity/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 7001, "ticker": "MSFT_US_EQ", "type": "LIMIT", "limitPrice": 300}]`))
	})
	mux.HandleFunc("/equity/metadata/exchanges", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 1, "name": "NYSE", "workingSchedules": [{"id": 10, "timeEvents": [{"date": "2024-01-02T14:30:00Z", "type": "OPEN"}]}]}]`))
	})
	mux.HandleFunc("/equity/metadata/instruments", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"ticker": "AAPL_US_EQ", "isin": "US0378331005", "currencyCode": "USD", "workingScheduleId": 10}]`))
	})
	mux.HandleFunc("/equity/pies", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 42}]`))
	})
	mux.HandleFunc("/equity/pies/42", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"settings": {"id": 42, "name": "Tech"}, "instruments": [{"ticker": "AAPL_US_EQ", "expectedShare": 0.5}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewClient(server.URL, testCreds())
	ctx := context.Background()

	t.Run("GetAccountInfo", func(t *testing.T) {
		info, raw, err := c.GetAccountInfo(ctx)
		if err != nil {
			t.Fatalf("GetAccountInfo failed: %v", err)
		}
		if info.ID != 12345 {
			t.Errorf("ID = %d, want 12345", info.ID)
		}
		if info.CurrencyCode != "EUR" {
			t.Errorf("CurrencyCode = %q, want %q", info.CurrencyCode, "EUR")
		}
		if len(raw) == 0 {
			t.Error("raw body is empty")
		}
	})

	t.Run("GetAccountCash", func(t *testing.T) {
		cash, _, err := c.GetAccountCash(ctx)
		if err != nil {
			t.Fatalf("GetAccountCash failed: %v", err)
		}
		if cash.Free == nil || !cash.Free.Equal(decimalFromString(t, "100.5")) {
			t.Errorf("Free = %v, want 100.5", cash.Free)
		}
		if cash.Blocked != nil {
			t.Errorf("Blocked = %v, want nil", cash.Blocked)
		}
	})

	t.Run("GetPortfolio", func(t *testing.T) {
		positions, _, err := c.GetPortfolio(ctx)
		if err != nil {
			t.Fatalf("GetPortfolio failed: %v", err)
		}
		if len(positions) != 1 {
			t.Fatalf("len(positions) = %d, want 1", len(positions))
		}
		if positions[0].Ticker != "AAPL_US_EQ" {
			t.Errorf("Ticker = %q, want %q", positions[0].Ticker, "AAPL_US_EQ")
		}
	})

	t.Run("GetPendingOrders", func(t *testing.T) {
		orders, _, err := c.GetPendingOrders(ctx)
		if err != nil {
			t.Fatalf("GetPendingOrders failed: %v", err)
		}
		if len(orders) != 1 || orders[0].ID != 7001 {
			t.Errorf("orders = %+v, want one order with ID 7001", orders)
		}
	})

	t.Run("GetExchanges", func(t *testing.T) {
		exchanges, _, err := c.GetExchanges(ctx)
		if err != nil {
			t.Fatalf("GetExchanges failed: %v", err)
		}
		if len(exchanges) != 1 || exchanges[0].Name != "NYSE" {
			t.Fatalf("exchanges = %+v, want one NYSE", exchanges)
		}
		if len(exchanges[0].WorkingSchedules) != 1 || len(exchanges[0].WorkingSchedules[0].TimeEvents) != 1 {
			t.Errorf("schedules not decoded: %+v", exchanges[0].WorkingSchedules)
		}
	})

	t.Run("GetInstruments", func(t *testing.T) {
		instruments, _, err := c.GetInstruments(ctx)
		if err != nil {
			t.Fatalf("GetInstruments failed: %v", err)
		}
		if len(instruments) != 1 || instruments[0].ISIN != "US0378331005" {
			t.Errorf("instruments = %+v, want one with ISIN US0378331005", instruments)
		}
		if instruments[0].WorkingScheduleID == nil || *instruments[0].WorkingScheduleID != 10 {
			t.Errorf("WorkingScheduleID = %v, want 10", instruments[0].WorkingScheduleID)
		}
	})

	t.Run("GetPies and details", func(t *testing.T) {
		pies, _, err := c.GetPies(ctx)
		if err != nil {
			t.Fatalf("GetPies failed: %v", err)
		}
		if len(pies) != 1 || pies[0].ID != 42 {
			t.Fatalf("pies = %+v, want one with ID 42", pies)
		}

		details, _, err := c.GetPieDetails(ctx, pies[0].ID)
		if err != nil {
			t.Fatalf("GetPieDetails failed: %v", err)
		}
		if details.Settings.ID != 42 || len(details.Instruments) != 1 {
			t.Errorf("details = %+v, want settings id 42 and one instrument", details)
		}
	})
}
