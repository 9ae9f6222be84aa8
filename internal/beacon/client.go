package beacon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/litix/data-go/internal/version"
)

// Common errors returned by the client.
var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	ErrMaxRetries  = errors.New("max retries exceeded")
)

// Default client configuration values.
const (
	DefaultTimeout           = 10 * time.Second
	DefaultRetryAttempts     = 3
	DefaultRetryDelay        = 1 * time.Second
	DefaultRetryMaxDelay     = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultCircuitThreshold  = 5
	DefaultCircuitTimeout    = 30 * time.Second
)

// HTTP header names used on the beacon path.
const (
	headerContentType     = "Content-Type"
	headerContentEncoding = "Content-Encoding"
	headerUserAgent       = "User-Agent"
	headerEnvKey          = "X-Litix-Env-Key"
)

// ClientConfig holds the configuration for the delivery client.
type ClientConfig struct {
	// Timeout is the overall request timeout.
	Timeout time.Duration
	// RetryAttempts is the number of retry attempts for failed requests.
	RetryAttempts int
	// RetryDelay is the initial delay between retries.
	RetryDelay time.Duration
	// RetryMaxDelay is the maximum delay between retries.
	RetryMaxDelay time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
	// CircuitThreshold is the number of failures before the circuit opens.
	CircuitThreshold int
	// CircuitTimeout is how long the circuit stays open before trying again.
	CircuitTimeout time.Duration
	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
	// Logger is the structured logger for request logging.
	Logger *slog.Logger
	// BaseClient is the underlying http.Client. If nil, one is created.
	BaseClient *http.Client
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:           DefaultTimeout,
		RetryAttempts:     DefaultRetryAttempts,
		RetryDelay:        DefaultRetryDelay,
		RetryMaxDelay:     DefaultRetryMaxDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
		CircuitThreshold:  DefaultCircuitThreshold,
		CircuitTimeout:    DefaultCircuitTimeout,
		UserAgent:         version.UserAgent(),
		Logger:            slog.Default(),
	}
}

// Client posts beacon payloads to the collector with circuit breaker
// protection and automatic retries.
type Client struct {
	config  ClientConfig
	client  *http.Client
	breaker *circuitBreaker
	logger  *slog.Logger
}

// NewClient creates a delivery client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BackoffMultiplier <= 1 {
		cfg.BackoffMultiplier = DefaultBackoffMultiplier
	}

	baseClient := cfg.BaseClient
	if baseClient == nil {
		baseClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		config:  cfg,
		client:  baseClient,
		breaker: newCircuitBreaker(cfg.CircuitThreshold, cfg.CircuitTimeout),
		logger:  cfg.Logger.With("component", "beacon_client"),
	}
}

// Post delivers one payload. The body is replayed from the byte slice
// on each retry; the response body is drained and discarded.
func (c *Client) Post(ctx context.Context, url, envKey, contentEncoding string, body []byte) error {
	var lastErr error
	delay := c.config.RetryDelay

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying beacon delivery",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * c.config.BackoffMultiplier)
			if delay > c.config.RetryMaxDelay {
				delay = c.config.RetryMaxDelay
			}
		}

		if !c.breaker.Allow() {
			lastErr = ErrCircuitOpen
			c.logger.Warn("circuit breaker open, skipping beacon delivery")
			continue
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating beacon request: %w", err)
		}
		req.Header.Set(headerContentType, "application/json")
		req.Header.Set(headerUserAgent, c.config.UserAgent)
		if contentEncoding != "" {
			req.Header.Set(headerContentEncoding, contentEncoding)
		}
		if envKey != "" {
			req.Header.Set(headerEnvKey, envKey)
		}

		start := time.Now()
		resp, err := c.client.Do(req)
		duration := time.Since(start)

		if err != nil {
			c.breaker.RecordFailure()
			lastErr = err
			c.logger.Warn("beacon delivery failed",
				slog.Duration("duration", duration),
				slog.String("error", err.Error()),
				slog.Int("attempt", attempt))

			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			continue
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if isRetryableStatus(resp.StatusCode) {
			c.breaker.RecordFailure()
			lastErr = fmt.Errorf("retryable status code: %d", resp.StatusCode)
			c.logger.Warn("retryable collector status",
				slog.Int("status", resp.StatusCode),
				slog.Duration("duration", duration),
				slog.Int("attempt", attempt))
			continue
		}

		if resp.StatusCode >= http.StatusBadRequest {
			c.breaker.RecordSuccess()
			return fmt.Errorf("collector rejected beacon: status %d", resp.StatusCode)
		}

		c.breaker.RecordSuccess()
		c.logger.Debug("beacon delivered",
			slog.Int("status", resp.StatusCode),
			slog.Duration("duration", duration),
			slog.Int("bytes", len(body)))
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrMaxRetries, lastErr)
	}
	return ErrMaxRetries
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// circuitState represents the state of the circuit breaker.
type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// circuitBreaker guards the collector against hammering a failing
// endpoint. Closed until threshold consecutive failures, then open for
// the timeout, then half-open for one probe.
type circuitBreaker struct {
	mu         sync.Mutex
	state      circuitState
	failures   int
	threshold  int
	timeout    time.Duration
	openedAt   time.Time
	probeInUse bool
}

func newCircuitBreaker(threshold int, timeout time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = DefaultCircuitThreshold
	}
	if timeout <= 0 {
		timeout = DefaultCircuitTimeout
	}
	return &circuitBreaker{threshold: threshold, timeout: timeout}
}

// Allow reports whether a request may proceed.
func (b *circuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitClosed:
		return true
	case circuitOpen:
		if time.Since(b.openedAt) >= b.timeout {
			b.state = circuitHalfOpen
			b.probeInUse = true
			return true
		}
		return false
	default: // half-open
		if b.probeInUse {
			return false
		}
		b.probeInUse = true
		return true
	}
}

// RecordSuccess closes the circuit.
func (b *circuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = circuitClosed
	b.failures = 0
	b.probeInUse = false
}

// RecordFailure counts a failure and opens the circuit at threshold.
func (b *circuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == circuitHalfOpen {
		b.state = circuitOpen
		b.openedAt = time.Now()
		b.probeInUse = false
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.state = circuitOpen
		b.openedAt = time.Now()
	}
}
