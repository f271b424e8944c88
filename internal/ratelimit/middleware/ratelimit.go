package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"onboard/internal/ratelimit/metrics"
	"onboard/internal/ratelimit/models"
	"onboard/pkg/platform/circuit"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/requestcontext"
)

// BucketStore counts requests per key within a window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// Middleware limits requests per client IP. When the primary store keeps
// failing, a circuit breaker switches to an in-process fallback store and
// marks responses with X-RateLimit-Status: degraded.
type Middleware struct {
	primary  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	limit    int
	window   time.Duration
	scope    string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithFallback sets the store used while the circuit is open. Without one the
// middleware fails open.
func WithFallback(store BucketStore) Option {
	return func(m *Middleware) {
		m.fallback = store
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

// WithWindow overrides the one-minute window.
func WithWindow(window time.Duration) Option {
	return func(m *Middleware) {
		if window > 0 {
			m.window = window
		}
	}
}

// WithScope names the bucket family, so limits on different routes do not share counters.
func WithScope(scope string) Option {
	return func(m *Middleware) {
		if scope != "" {
			m.scope = scope
		}
	}
}

// New limits each client IP to limit requests per window (one minute unless
// overridden). A limit of zero disables the middleware.
func New(primary BucketStore, limit int, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		breaker: circuit.New("ratelimit"),
		limit:   limit,
		window:  time.Minute,
		scope:   "onboard",
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if limit <= 0 || primary == nil {
		m.disabled = true
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit rejects requests over the per-IP limit with 429 and Retry-After.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		key := models.NewIPRateLimitKey(m.scope, ip)

		result, degraded, err := m.check(ctx, key)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check IP rate limit",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			m.metrics.IncrementStoreErrors()
			next.ServeHTTP(w, r)
			return
		}

		m.metrics.SetDegraded(degraded)
		if degraded {
			w.Header().Set("X-RateLimit-Status", "degraded")
		}
		addRateLimitHeaders(w, result)
		m.metrics.IncrementDecision(result.Allowed)

		if !result.Allowed {
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"request_id", requestcontext.RequestID(ctx),
				"client_ip", ip,
			)
			writeRateLimitExceeded(w, result)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// check consults the primary store unless the circuit is open. It reports
// whether the answer came from the fallback.
func (m *Middleware) check(ctx context.Context, key string) (*models.RateLimitResult, bool, error) {
	if !m.breaker.IsOpen() {
		result, err := m.primary.Allow(ctx, key, m.limit, m.window)
		if err == nil {
			m.breaker.RecordSuccess()
			return result, false, nil
		}
		if useFallback, _ := m.breaker.RecordFailure(); !useFallback || m.fallback == nil {
			return nil, false, err
		}
		m.logger.WarnContext(ctx, "rate limit store failing, switching to fallback", "error", err)
		result, err = m.fallback.Allow(ctx, key, m.limit, m.window)
		return result, true, err
	}

	// Probe the primary so the circuit can close once it recovers.
	if _, err := m.primary.Allow(ctx, key, m.limit, m.window); err == nil {
		if _, change := m.breaker.RecordSuccess(); change.Closed {
			m.logger.InfoContext(ctx, "rate limit store recovered")
		}
	} else {
		m.breaker.RecordFailure()
	}

	if m.fallback == nil {
		return &models.RateLimitResult{Allowed: true, Limit: m.limit, Remaining: m.limit}, true, nil
	}
	result, err := m.fallback.Allow(ctx, key, m.limit, m.window)
	return result, true, err
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	if !result.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	}
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many onboarding attempts from this IP address. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
