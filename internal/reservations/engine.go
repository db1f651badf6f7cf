package reservations

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"eventbook/internal/bookings"
	"eventbook/internal/events"
	"eventbook/internal/shared/clock"
	"eventbook/internal/shared/constants"
	"eventbook/internal/shared/pgerrors"
	"eventbook/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"
)

const tracerName = "eventbook/internal/reservations"

// Request asks for Quantity tickets of the pool named TicketType.
type Request struct {
	EventID    uuid.UUID
	TicketType string
	BuyerID    uuid.UUID
	Quantity   int
	// IdempotencyKey is optional. A repeated key with the same request
	// returns the booking created the first time.
	IdempotencyKey string
}

type Result struct {
	Booking  *bookings.Booking
	Replayed bool
	Attempts int
}

// Engine performs the check, decrement and booking append for one pool as a
// single unit of work.
type Engine struct {
	store         Store
	clock         clock.Clock
	strategy      Strategy
	maxAttempts   int
	baseBackoff   time.Duration
	maxBackoff    time.Duration
	commitTimeout time.Duration

	cache     Invalidator
	publisher Publisher
	observer  Observer
	log       *logger.Logger
	tracer    trace.Tracer
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		clock:         clock.NewSystem(),
		strategy:      Pessimistic,
		maxAttempts:   defaultMaxAttempts,
		baseBackoff:   defaultBaseBackoff,
		maxBackoff:    defaultMaxBackoff,
		commitTimeout: defaultCommitTimeout,
		log:           logger.GetDefault(),
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Strategy() Strategy { return e.strategy }

// Reserve claims req.Quantity tickets. Callers may abandon the call through
// ctx only until the commit starts; after that Reserve always waits for the
// store to commit or roll back and reports that outcome.
func (e *Engine) Reserve(ctx context.Context, req Request) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "reservations.reserve", trace.WithAttributes(
		attribute.String("event.id", req.EventID.String()),
		attribute.String("ticket.type", req.TicketType),
		attribute.Int("ticket.quantity", req.Quantity),
		attribute.String("reservation.strategy", string(e.strategy)),
	))
	defer span.End()

	tr := newTracker(uuid.NewString(), e.observer)
	res, err := e.reserve(ctx, req, tr)
	if err != nil {
		tr.abort()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		e.logFailure(ctx, req, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("booking.id", res.Booking.ID.String()),
		attribute.Bool("reservation.replayed", res.Replayed),
		attribute.Int("reservation.attempts", res.Attempts),
	)
	span.SetStatus(codes.Ok, "reservation confirmed")
	return res, nil
}

func (e *Engine) reserve(ctx context.Context, req Request, tr *tracker) (*Result, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	fingerprint := requestFingerprint(req)

	// Replay a booking already made under this key
	if req.IdempotencyKey != "" {
		prior, err := e.findPrior(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			return e.replay(tr, prior, fingerprint)
		}
	}

	// Reject hopeless requests before taking any lock
	if err := e.precheck(ctx, req); err != nil {
		return nil, err
	}
	if err := tr.advance(StateReserving); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		booking, err := e.attempt(ctx, req, fingerprint, tr)
		if err == nil {
			if err := tr.advance(StateConfirmed); err != nil {
				return nil, err
			}
			e.afterCommit(ctx, booking)
			return &Result{Booking: booking, Attempts: attempt}, nil
		}

		switch {
		case errors.Is(err, errVersionConflict):
			if e.strategy == Pessimistic {
				return nil, fmt.Errorf("%w: version conflict on a locked pool", ErrInternalInconsistency)
			}
			if attempt >= e.maxAttempts {
				return nil, fmt.Errorf("%w: gave up after %d attempts", ErrReservationConflict, attempt)
			}
		case errors.Is(err, bookings.ErrDuplicateIdempotencyKey):
			// A concurrent call with the same key committed first
			prior, findErr := e.findPrior(ctx, req.IdempotencyKey)
			if findErr != nil {
				return nil, findErr
			}
			if prior == nil {
				return nil, fmt.Errorf("%w: idempotency key %q rejected but not found", ErrInternalInconsistency, req.IdempotencyKey)
			}
			return e.replay(tr, prior, fingerprint)
		default:
			return nil, err
		}

		// Back off and retry from a fresh read
		if tr.state == StateCommitting {
			if err := tr.advance(StateReserving); err != nil {
				return nil, err
			}
		}
		delay := fullJitter(attempt, e.baseBackoff, e.maxBackoff)
		e.log.LogReservationRetry(ctx, req.EventID.String(), req.TicketType, attempt, delay)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, abandoned(ctx)
		}
	}
}

// precheck validates the request against a committed snapshot without
// locking, so hopeless requests never queue behind a pool lock.
func (e *Engine) precheck(ctx context.Context, req Request) error {
	sctx, cancel := context.WithTimeout(ctx, e.commitTimeout)
	defer cancel()

	err := e.store.Do(sctx, func(ctx context.Context, uow UnitOfWork) error {
		if _, err := uow.GetEvent(ctx, req.EventID); err != nil {
			return err
		}
		pool, err := uow.LoadPool(ctx, req.EventID, req.TicketType, false)
		if err != nil {
			return err
		}
		return checkPool(pool, req.Quantity)
	})
	return e.classify(ctx, err, false)
}

func checkPool(pool *events.TicketPool, qty int) error {
	if pool == nil {
		return ErrInvalidTicketType
	}
	if pool.RemainingQuantity < 0 {
		return fmt.Errorf("%w: pool %s has negative remaining quantity %d", ErrInternalInconsistency, pool.ID, pool.RemainingQuantity)
	}
	if pool.RemainingQuantity < qty {
		return ErrInsufficientInventory
	}
	return nil
}

// attempt runs one unit of work. It detaches from the caller's context so
// that a cancellation arriving after the commit started cannot interrupt it.
func (e *Engine) attempt(ctx context.Context, req Request, fingerprint string, tr *tracker) (*bookings.Booking, error) {
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.commitTimeout)
	defer cancel()

	gate := &commitGate{}
	stop := context.AfterFunc(ctx, func() {
		if gate.abandon() {
			cancel()
		}
	})
	defer stop()

	var booking *bookings.Booking
	err := e.store.Do(txCtx, func(ctx context.Context, uow UnitOfWork) error {
		ctx, span := e.tracer.Start(ctx, "reservations.unit_of_work")
		defer span.End()

		// Load event and pool, locking the pool when pessimistic
		if _, err := uow.GetEvent(ctx, req.EventID); err != nil {
			return err
		}
		pool, err := uow.LoadPool(ctx, req.EventID, req.TicketType, e.strategy == Pessimistic)
		if err != nil {
			return err
		}
		if err := checkPool(pool, req.Quantity); err != nil {
			return err
		}

		if !gate.enter() {
			return context.Canceled
		}
		if err := tr.advance(StateCommitting); err != nil {
			return err
		}

		// Decrement inventory
		ok, err := uow.DecrementPool(ctx, pool.ID, req.Quantity, pool.Version)
		if err != nil {
			return err
		}
		if !ok {
			return errVersionConflict
		}

		// Append the booking in the same transaction
		b := e.newBooking(req, pool, fingerprint)
		if err := uow.AppendBooking(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		// A rejection decided before the caller left is still the answer
		if gate.abandoned() && !isEngineOutcome(err) {
			return nil, abandoned(ctx)
		}
		return nil, e.classify(ctx, err, true)
	}
	return booking, nil
}

// classify maps store errors onto the reservation taxonomy. Engine errors and
// the internal retry signals pass through untouched.
func (e *Engine) classify(ctx context.Context, err error, inTx bool) error {
	switch {
	case err == nil:
		return nil
	case isEngineOutcome(err),
		errors.Is(err, errVersionConflict), errors.Is(err, bookings.ErrDuplicateIdempotencyKey):
		return err
	case !inTx && ctx.Err() != nil && isContextError(err):
		// the caller gave up; a timeout of our own store budget falls through
		return abandoned(ctx)
	case pgerrors.IsCheckViolation(err):
		// remaining_quantity >= 0 tripped: the decrement guard failed
		return fmt.Errorf("%w: %w", ErrInternalInconsistency, err)
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

func isEngineOutcome(err error) bool {
	return errors.Is(err, ErrEventNotFound) || errors.Is(err, ErrInvalidTicketType) ||
		errors.Is(err, ErrInsufficientInventory) || errors.Is(err, ErrInternalInconsistency)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// abandoned reports a call the caller cancelled or let run past its deadline.
func abandoned(ctx context.Context) error {
	cause := ctx.Err()
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("%w: %w", ErrAbandoned, cause)
}

func (e *Engine) findPrior(ctx context.Context, key string) (*bookings.Booking, error) {
	sctx, cancel := context.WithTimeout(ctx, e.commitTimeout)
	defer cancel()

	var prior *bookings.Booking
	err := e.store.Do(sctx, func(ctx context.Context, uow UnitOfWork) error {
		b, err := uow.FindBookingByKey(ctx, key)
		prior = b
		return err
	})
	if err != nil {
		return nil, e.classify(ctx, err, false)
	}
	return prior, nil
}

func (e *Engine) replay(tr *tracker, prior *bookings.Booking, fingerprint string) (*Result, error) {
	if prior.RequestHash != fingerprint {
		return nil, ErrIdempotencyConflict
	}
	if err := tr.advance(StateConfirmed); err != nil {
		return nil, err
	}
	return &Result{Booking: prior, Replayed: true}, nil
}

func (e *Engine) newBooking(req Request, pool *events.TicketPool, fingerprint string) *bookings.Booking {
	now := e.clock.Now()
	b := &bookings.Booking{
		ID:          uuid.New(),
		BookingRef:  bookings.NewBookingRef(now),
		EventID:     req.EventID,
		BuyerID:     req.BuyerID,
		TicketType:  pool.Name,
		Quantity:    req.Quantity,
		UnitPrice:   pool.UnitPrice,
		TotalPrice:  pool.UnitPrice * float64(req.Quantity),
		Status:      bookings.StatusConfirmed,
		RequestHash: fingerprint,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		b.IdempotencyKey = &key
	}
	return b
}

// afterCommit runs best effort side effects of a durable booking. Failures
// are logged and never change the outcome.
func (e *Engine) afterCommit(ctx context.Context, b *bookings.Booking) {
	ctx = context.WithoutCancel(ctx)
	eventID := b.EventID.String()

	if e.cache != nil {
		cctx, cancel := context.WithTimeout(ctx, time.Second)
		if err := e.cache.Delete(cctx, constants.EventKeys(eventID)...); err != nil {
			e.log.WithError(err).Warn("Failed to invalidate event cache", "event_id", eventID)
		}
		cancel()
	}
	if e.publisher != nil {
		if err := e.publisher.PublishBookingConfirmed(ctx, b); err != nil {
			e.log.WithError(err).Warn("Failed to publish booking", "booking_id", b.ID.String())
		}
	}
	e.log.LogBookingCreated(ctx, b.ID.String(), eventID, b.BuyerID.String(), b.TicketType, b.Quantity)
}

func (e *Engine) logFailure(ctx context.Context, req Request, err error) {
	eventID := req.EventID.String()
	switch kind := KindOf(err); {
	case IsRejection(err), kind == KindReservationConflict, kind == KindCancelled:
		e.log.LogReservationRejected(ctx, eventID, req.TicketType, string(kind), req.Quantity)
	case kind == KindInternalInconsistency:
		e.log.LogInvariantViolation(ctx, "reservation", err, map[string]interface{}{
			"event_id":    eventID,
			"ticket_type": req.TicketType,
			"quantity":    req.Quantity,
			"strategy":    string(e.strategy),
		})
	default:
		e.log.ErrorWithContext(ctx, "Reservation failed", err, map[string]interface{}{
			"event_id":    eventID,
			"ticket_type": req.TicketType,
			"kind":        string(kind),
		})
	}
}

// requestFingerprint identifies the intent behind an idempotency key.
func requestFingerprint(req Request) string {
	sum := blake2b.Sum256([]byte(req.EventID.String() + "|" + req.TicketType + "|" +
		req.BuyerID.String() + "|" + strconv.Itoa(req.Quantity)))
	return hex.EncodeToString(sum[:])
}

// commitGate decides the race between the caller abandoning the call and the
// unit of work entering Committing. Whichever comes first wins.
type commitGate struct {
	mu         sync.Mutex
	committing bool
	cancelled  bool
}

func (g *commitGate) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelled {
		return false
	}
	g.committing = true
	return true
}

func (g *commitGate) abandon() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.committing {
		return false
	}
	g.cancelled = true
	return true
}

func (g *commitGate) abandoned() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled
}
