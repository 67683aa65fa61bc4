package quoteapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
	"resty.dev/v3"

	"quotesync/internal/fetcher"
	"quotesync/internal/quote"
)

// Default retry and throttle configuration
const (
	defaultTimeout       = 10 * time.Second
	defaultMaxRetries    = 3
	defaultRetryBaseWait = 500 * time.Millisecond
	defaultRetryMaxWait  = 5 * time.Second
	defaultCooldown      = 30 * time.Second
)

// Config tunes the client's calling discipline against the external API.
type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseWait  time.Duration
	RetryMaxWait   time.Duration
	RatePerSec     float64
	Burst          int
	Cooldown       time.Duration
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryBaseWait <= 0 {
		c.RetryBaseWait = defaultRetryBaseWait
	}
	if c.RetryMaxWait <= 0 {
		c.RetryMaxWait = defaultRetryMaxWait
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
}

// Client fetches quotes over HTTP with a shared rate limiter, per-request
// timeout, and bounded retry with exponential backoff and jitter. It
// implements fetcher.Transport. Safe for concurrent use.
type Client struct {
	http    *resty.Client
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger

	// notBefore gates ALL requests after a 429: the limit is API-wide,
	// not per symbol.
	mu        sync.Mutex
	notBefore time.Time
}

// New creates a Client for the configured base URL.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	httpc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.RequestTimeout)

	return &Client{
		http:    httpc,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		logger:  logger,
	}
}

// numeric accepts both quoted ("178.23") and bare (178.23) JSON numbers;
// quote APIs are split on which they send.
type numeric string

func (n *numeric) UnmarshalJSON(b []byte) error {
	*n = numeric(strings.Trim(string(b), `"`))
	return nil
}

// quoteResponse is the expected shape of the remote quote endpoint.
type quoteResponse struct {
	Symbol        string  `json:"symbol"`
	Price         numeric `json:"price"`
	Change        numeric `json:"change"`
	ChangePercent numeric `json:"changePercent"`
	Volume        numeric `json:"volume"`
}

// Fetch retrieves and validates the quote for one symbol. Timeouts,
// network errors, and 5xx responses are retried with exponential backoff;
// NotFound and MalformedResponse are reported immediately. A 429 response
// starts the API-wide cool-down before being retried.
func (c *Client) Fetch(ctx context.Context, symbol string) (quote.Quote, error) {
	sym := quote.NormalizeSymbol(symbol)
	if sym == "" {
		return quote.Quote{}, fetcher.NewMalformedError("empty symbol")
	}

	var lastErr *fetcher.FetchError
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			c.logger.Debug("retrying fetch",
				"symbol", sym,
				"attempt", attempt,
				"wait", wait,
				"kind", lastErr.Kind,
			)
			if err := sleepCtx(ctx, wait); err != nil {
				return quote.Quote{}, fetcher.NewTimeoutError(err)
			}
		}

		if err := c.waitTurn(ctx); err != nil {
			return quote.Quote{}, fetcher.NewTimeoutError(err)
		}

		q, err := c.doFetch(ctx, sym)
		if err == nil {
			return q, nil
		}

		var fe *fetcher.FetchError
		if !errors.As(err, &fe) {
			fe = fetcher.NewNetworkError(err)
		}
		if fe.Kind == fetcher.KindRateLimited {
			c.startCooldown()
		}
		if !fe.Retryable {
			return quote.Quote{}, fe
		}
		lastErr = fe
	}

	return quote.Quote{}, lastErr
}

// waitTurn blocks for any active cool-down, then for a limiter token.
func (c *Client) waitTurn(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Until(c.notBefore)
	c.mu.Unlock()

	if wait > 0 {
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
	return c.limiter.Wait(ctx)
}

// startCooldown pushes out the earliest time any symbol may be fetched.
func (c *Client) startCooldown() {
	c.mu.Lock()
	until := time.Now().Add(c.cfg.Cooldown)
	if until.After(c.notBefore) {
		c.notBefore = until
	}
	c.mu.Unlock()

	c.logger.Warn("rate limited by remote API, cooling down", "cooldown", c.cfg.Cooldown)
}

// doFetch issues a single request attempt and parses the response.
func (c *Client) doFetch(ctx context.Context, sym string) (quote.Quote, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": sym,
			"apikey": c.cfg.APIKey,
		}).
		Get("quote")

	if err != nil {
		if isTimeout(err) {
			return quote.Quote{}, fetcher.NewTimeoutError(err)
		}
		return quote.Quote{}, fetcher.NewNetworkError(err)
	}

	if !resp.IsSuccess() {
		return quote.Quote{}, fetcher.ClassifyHTTPStatus(resp.StatusCode(), sym)
	}

	var body quoteResponse
	if err := json.Unmarshal(resp.Bytes(), &body); err != nil {
		return quote.Quote{}, fetcher.NewMalformedError(fmt.Sprintf("unparseable response body: %v", err))
	}

	return buildQuote(sym, body)
}

// buildQuote validates the parsed response and normalizes it into a Quote.
func buildQuote(sym string, body quoteResponse) (quote.Quote, error) {
	price, err := parseDecimal(body.Price, "price")
	if err != nil {
		return quote.Quote{}, err
	}
	if price.IsNegative() {
		return quote.Quote{}, fetcher.NewMalformedError("negative price")
	}

	change, err := parseDecimal(body.Change, "change")
	if err != nil {
		return quote.Quote{}, err
	}
	changePct, err := parseDecimal(body.ChangePercent, "changePercent")
	if err != nil {
		return quote.Quote{}, err
	}

	if body.Volume == "" {
		return quote.Quote{}, fetcher.NewMalformedError("missing volume")
	}
	volume, err := strconv.ParseInt(string(body.Volume), 10, 64)
	if err != nil {
		return quote.Quote{}, fetcher.NewMalformedError(fmt.Sprintf("invalid volume %q", body.Volume))
	}
	if volume < 0 {
		return quote.Quote{}, fetcher.NewMalformedError("negative volume")
	}

	return quote.Quote{
		Symbol:        sym,
		Price:         price,
		Change:        change,
		ChangePercent: changePct,
		Volume:        volume,
		FetchedAt:     time.Now().UTC(),
	}, nil
}

func parseDecimal(n numeric, field string) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, fetcher.NewMalformedError("missing " + field)
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero, fetcher.NewMalformedError(fmt.Sprintf("invalid %s %q", field, n))
	}
	return d, nil
}

// backoff returns the exponential wait before the given retry attempt,
// capped at RetryMaxWait, with up to 25% added jitter.
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.cfg.RetryBaseWait
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= c.cfg.RetryMaxWait {
			wait = c.cfg.RetryMaxWait
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(wait)/4 + 1))
	wait += jitter
	if wait > c.cfg.RetryMaxWait {
		wait = c.cfg.RetryMaxWait
	}
	return wait
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
