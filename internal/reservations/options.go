package reservations

import (
	"context"
	"time"

	"eventbook/internal/bookings"
	"eventbook/internal/shared/clock"
	"eventbook/internal/shared/config"
	"eventbook/pkg/logger"

	"go.opentelemetry.io/otel/trace"
)

// Strategy selects how concurrent reservations on one pool are serialized.
type Strategy string

const (
	// Pessimistic locks the pool row for the whole unit of work.
	Pessimistic Strategy = "pessimistic"
	// Optimistic relies on the version compare-and-set and retries on conflict.
	Optimistic Strategy = "optimistic"
)

func (s Strategy) IsValid() bool {
	return s == Pessimistic || s == Optimistic
}

const (
	defaultMaxAttempts   = 4
	defaultBaseBackoff   = 10 * time.Millisecond
	defaultMaxBackoff    = 200 * time.Millisecond
	defaultCommitTimeout = 5 * time.Second
)

// Publisher announces confirmed bookings once they are durable.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, booking *bookings.Booking) error
}

// Invalidator drops cached reads that a reservation made stale.
type Invalidator interface {
	Delete(ctx context.Context, keys ...string) error
}

type Option func(*Engine)

func WithClock(clk clock.Clock) Option {
	return func(e *Engine) {
		if clk != nil {
			e.clock = clk
		}
	}
}

func WithStrategy(s Strategy) Option {
	return func(e *Engine) {
		if s.IsValid() {
			e.strategy = s
		}
	}
}

// WithRetry bounds the optimistic retry loop.
func WithRetry(maxAttempts int, base, max time.Duration) Option {
	return func(e *Engine) {
		if maxAttempts > 0 {
			e.maxAttempts = maxAttempts
		}
		if base > 0 {
			e.baseBackoff = base
		}
		if max >= e.baseBackoff {
			e.maxBackoff = max
		}
	}
}

// WithCommitTimeout bounds every store round trip, lock waits included.
func WithCommitTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.commitTimeout = d
		}
	}
}

func WithCache(c Invalidator) Option {
	return func(e *Engine) { e.cache = c }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// FromConfig applies the reservation section of the service config.
func FromConfig(cfg config.ReservationConfig) Option {
	return func(e *Engine) {
		WithStrategy(Strategy(cfg.Strategy))(e)
		WithRetry(cfg.MaxAttempts, cfg.BaseBackoff, cfg.MaxBackoff)(e)
		WithCommitTimeout(cfg.CommitTimeout)(e)
	}
}
