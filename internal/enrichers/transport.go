package enrichers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lepinkainen/bookmeta/internal/config"
	errs "github.com/lepinkainen/bookmeta/internal/errors"
	"github.com/lepinkainen/bookmeta/internal/metrics"
	"github.com/lepinkainen/bookmeta/internal/ratelimit"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxResults = 10
)

// Options configures a source adapter. Zero values fall back to the
// source's defaults.
type Options struct {
	BaseURL string
	APIKey  string
	// RateLimit is requests per second. Zero or less means unlimited.
	RateLimit float64
	Timeout   time.Duration

	HTTPClient *http.Client
	// Breaker is nil or disabled to run without a circuit breaker.
	Breaker *config.BreakerConfig
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// transport is the HTTP plumbing shared by every adapter: a per-request
// timeout, a rate limiter, an optional circuit breaker and metrics.
type transport struct {
	source  string
	opts    Options
	timeout time.Duration

	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
	breaker     *gobreaker.CircuitBreaker
	initOnce    sync.Once
}

func newTransport(source string, opts Options) *transport {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &transport{source: source, opts: opts, timeout: timeout}
}

func (t *transport) init() {
	t.initOnce.Do(func() {
		t.httpClient = t.opts.HTTPClient
		if t.httpClient == nil {
			t.httpClient = &http.Client{Timeout: t.timeout}
		}
		t.rateLimiter = ratelimit.New(t.source, t.opts.RateLimit)
		if b := t.opts.Breaker; b != nil && b.Enabled {
			t.breaker = newBreaker(t.source, *b, t.opts.Metrics, t.logger())
		}
	})
}

func (t *transport) logger() *slog.Logger {
	if t.opts.Logger != nil {
		return t.opts.Logger
	}
	return slog.Default()
}

func newBreaker(source string, cfg config.BreakerConfig, m *metrics.Collector, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        source,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "source", name, "from", from.String(), "to", to.String())
			m.SetBreakerState(name, int(to))
		},
		// Cancellation is not a failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// getJSON fetches rawURL and decodes a 200 response into out. A 404 yields
// found=false with no error. Every call is metered; failures are logged
// and returned as *errors.SourceError.
func (t *transport) getJSON(ctx context.Context, operation, rawURL string, header http.Header, out any) (found bool, err error) {
	t.init()
	start := time.Now()

	if t.breaker != nil {
		var res any
		res, err = t.breaker.Execute(func() (any, error) {
			return t.do(ctx, operation, rawURL, header, out)
		})
		if err != nil && !errs.IsSourceError(err) {
			// Breaker rejections carry no HTTP status.
			err = errs.NewSourceError(t.source, operation, 0, err)
		}
		found, _ = res.(bool)
	} else {
		found, err = t.do(ctx, operation, rawURL, header, out)
	}

	outcome := metrics.OutcomeOK
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		outcome = metrics.OutcomeCancelled
		t.logger().Debug("Source request cancelled", "source", t.source, "operation", operation)
	case err != nil:
		outcome = metrics.OutcomeError
		t.logger().Warn("Source request failed", "source", t.source, "operation", operation, "error", err)
	case !found:
		outcome = metrics.OutcomeNotFound
		t.logger().Debug("Source returned no result", "source", t.source, "operation", operation)
	}
	t.opts.Metrics.ObserveSourceCall(t.source, operation, outcome, time.Since(start))

	return found, err
}

func (t *transport) do(ctx context.Context, operation, rawURL string, header http.Header, out any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.rateLimiter.Wait(ctx); err != nil {
		return false, errs.NewSourceError(t.source, operation, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, errs.NewSourceError(t.source, operation, 0, fmt.Errorf("creating request: %w", err))
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return false, errs.NewSourceError(t.source, operation, 0, fmt.Errorf("API request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		retry := parseRetryAfter(resp.Header.Get("Retry-After"))
		return false, errs.NewSourceError(t.source, operation, resp.StatusCode,
			errs.NewRateLimitErrorWithRetry(t.source+" rate limit exceeded", retry))
	case resp.StatusCode != http.StatusOK:
		return false, errs.NewSourceError(t.source, operation, resp.StatusCode,
			fmt.Errorf("API returned status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, errs.NewSourceError(t.source, operation, resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}
	return true, nil
}

// ping issues a bare GET and reports any status other than 200 or the
// accepted ones as a *errors.SourceError. It bypasses the breaker and the metrics.
func (t *transport) ping(ctx context.Context, rawURL string, header http.Header, accept ...int) error {
	t.init()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s ping failed: %w", t.source, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	for _, code := range accept {
		if resp.StatusCode == code {
			return nil
		}
	}
	return errs.NewSourceError(t.source, "ping", resp.StatusCode, fmt.Errorf("API returned status %d", resp.StatusCode))
}

// parseRetryAfter understands both delay-seconds and HTTP-date values.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
