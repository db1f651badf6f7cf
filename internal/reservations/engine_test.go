package reservations

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"eventbook/internal/bookings"
	"eventbook/internal/events"
	"eventbook/internal/shared/clock"
	"eventbook/internal/shared/constants"
	"eventbook/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

var strategies = []Strategy{Pessimistic, Optimistic}

type fixture struct {
	store   *MemoryStore
	engine  *Engine
	eventID uuid.UUID
}

func quietLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "error", true)
}

// newFixture seeds event "Conf2025" with the given pools.
func newFixture(t *testing.T, strategy Strategy, pools []events.TicketPool, opts ...Option) *fixture {
	t.Helper()
	store := NewMemoryStore()
	event := events.Event{
		ID:          uuid.New(),
		OrganizerID: uuid.New(),
		Title:       "Conf2025",
		Category:    events.CategoryTechnology,
		Visibility:  events.VisibilityPublic,
		TicketPools: pools,
	}
	store.AddEvent(event)

	base := []Option{
		WithStrategy(strategy),
		WithRetry(5, time.Millisecond, 5*time.Millisecond),
		WithLogger(quietLogger()),
		WithTracer(noop.NewTracerProvider().Tracer("test")),
		WithClock(clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))),
	}
	return &fixture{
		store:   store,
		engine:  NewEngine(store, append(base, opts...)...),
		eventID: event.ID,
	}
}

func gaOnly(capacity int) []events.TicketPool {
	return []events.TicketPool{events.NewPool(0, "GA", 50, capacity)}
}

func (f *fixture) remaining(t *testing.T, name string) int {
	t.Helper()
	pool, ok := f.store.Pool(f.eventID, name)
	require.True(t, ok)
	return pool.RemainingQuantity
}

func (f *fixture) reserve(buyer uuid.UUID, name string, qty int) (*Result, error) {
	return f.engine.Reserve(context.Background(), Request{
		EventID: f.eventID, TicketType: name, BuyerID: buyer, Quantity: qty,
	})
}

func TestReserve_ConcurrentBuyersOnLastTickets(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy, gaOnly(2))

			var wg sync.WaitGroup
			start := make(chan struct{})
			errs := make([]error, 2)
			qty := []int{2, 1}
			for i := range qty {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					_, errs[i] = f.reserve(uuid.New(), "GA", qty[i])
				}(i)
			}
			close(start)
			wg.Wait()

			var succeeded, sold int
			for i, err := range errs {
				if err == nil {
					succeeded++
					sold += qty[i]
					continue
				}
				assert.ErrorIs(t, err, ErrInsufficientInventory)
			}
			// 2+1 never fits in 2: whoever commits first wins
			assert.Equal(t, 1, succeeded)
			assert.LessOrEqual(t, sold, 2)
			assert.Equal(t, 2-sold, f.remaining(t, "GA"))
			assert.Len(t, f.store.Bookings(), succeeded)
		})
	}
}

func TestReserve_ScenarioA_ExactlyOneWins(t *testing.T) {
	// With quantities 2 and 1 on capacity 2, the 2 wins only if it goes
	// first; the test forces that order and checks the loser.
	f := newFixture(t, Pessimistic, gaOnly(2))

	_, err := f.reserve(uuid.New(), "GA", 2)
	require.NoError(t, err)
	_, err = f.reserve(uuid.New(), "GA", 1)
	assert.ErrorIs(t, err, ErrInsufficientInventory)
	assert.Equal(t, 0, f.remaining(t, "GA"))
}

func TestReserve_Preconditions(t *testing.T) {
	f := newFixture(t, Pessimistic, gaOnly(5))
	buyer := uuid.New()

	tests := []struct {
		name string
		req  Request
		err  error
		kind Kind
	}{
		{"zero quantity", Request{EventID: f.eventID, TicketType: "GA", BuyerID: buyer, Quantity: 0}, ErrInvalidQuantity, KindInvalidQuantity},
		{"negative quantity", Request{EventID: f.eventID, TicketType: "GA", BuyerID: buyer, Quantity: -3}, ErrInvalidQuantity, KindInvalidQuantity},
		{"unknown event", Request{EventID: uuid.New(), TicketType: "GA", BuyerID: buyer, Quantity: 1}, ErrEventNotFound, KindEventNotFound},
		{"unknown ticket type", Request{EventID: f.eventID, TicketType: "VIP", BuyerID: buyer, Quantity: 1}, ErrInvalidTicketType, KindInvalidTicketType},
		{"too many", Request{EventID: f.eventID, TicketType: "GA", BuyerID: buyer, Quantity: 6}, ErrInsufficientInventory, KindInsufficientInventory},
		{"quantity checked before event", Request{EventID: uuid.New(), TicketType: "nope", BuyerID: buyer, Quantity: 0}, ErrInvalidQuantity, KindInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.engine.Reserve(context.Background(), tt.req)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, 5, f.remaining(t, "GA"))
			assert.Empty(t, f.store.Bookings())
		})
	}
}

func TestReserve_ScenarioD_PriceAndRemaining(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy, gaOnly(5))
			buyerA := uuid.New()

			res, err := f.reserve(buyerA, "GA", 3)
			require.NoError(t, err)
			b := res.Booking
			assert.Equal(t, 150.0, b.TotalPrice)
			assert.Equal(t, 50.0, b.UnitPrice)
			assert.Equal(t, bookings.StatusConfirmed, b.Status)
			assert.Equal(t, buyerA, b.BuyerID)
			assert.Equal(t, "GA", b.TicketType)
			assert.Equal(t, 1, res.Attempts)
			assert.False(t, res.Replayed)
			assert.Regexp(t, `^EVT-20250601-`, b.BookingRef)
			assert.Equal(t, 2, f.remaining(t, "GA"))

			_, err = f.reserve(uuid.New(), "GA", 3)
			assert.ErrorIs(t, err, ErrInsufficientInventory)
			assert.Equal(t, 2, f.remaining(t, "GA"))
			assert.Len(t, f.store.Bookings(), 1)
		})
	}
}

func TestReserve_NoOversellUnderLoad(t *testing.T) {
	const capacity = 40
	const buyers = 60

	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy, gaOnly(capacity), WithRetry(10, time.Millisecond, 4*time.Millisecond))

			var sold atomic.Int64
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < buyers; i++ {
				wg.Add(1)
				go func(qty int) {
					defer wg.Done()
					<-start
					res, err := f.reserve(uuid.New(), "GA", qty)
					if err != nil {
						kind := KindOf(err)
						assert.Contains(t, []Kind{KindInsufficientInventory, KindReservationConflict}, kind)
						return
					}
					sold.Add(int64(res.Booking.Quantity))
				}(i%3 + 1)
			}
			close(start)
			wg.Wait()

			total := 0
			for _, b := range f.store.Bookings() {
				total += b.Quantity
			}
			assert.LessOrEqual(t, total, capacity)
			assert.Equal(t, int64(total), sold.Load())
			assert.Equal(t, capacity-total, f.remaining(t, "GA"))
		})
	}
}

func TestReserve_PoolsDoNotBlockEachOther(t *testing.T) {
	f := newFixture(t, Pessimistic, []events.TicketPool{
		events.NewPool(0, "GA", 50, 10),
		events.NewPool(1, "VIP", 200, 10),
	})

	blocked := make(chan struct{})
	release := make(chan struct{})
	var first atomic.Bool
	f.store.SetHook(PointAppend, func(ctx context.Context) error {
		if first.CompareAndSwap(false, true) {
			close(blocked)
			<-release
		}
		return nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.reserve(uuid.New(), "GA", 1)
		done <- err
	}()
	<-blocked

	// GA is locked mid-commit; VIP must still go through
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := f.engine.Reserve(ctx, Request{EventID: f.eventID, TicketType: "VIP", BuyerID: uuid.New(), Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 8, f.remaining(t, "VIP"))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 9, f.remaining(t, "GA"))
}

func TestReserve_AbortAfterDecrementLeavesNoTrace(t *testing.T) {
	for _, point := range []FaultPoint{PointAppend, PointCommit} {
		for _, strategy := range strategies {
			t.Run(string(point)+"/"+string(strategy), func(t *testing.T) {
				f := newFixture(t, strategy, gaOnly(5))
				f.store.FailOnce(point, errors.New("write failed"))

				_, err := f.reserve(uuid.New(), "GA", 2)
				assert.ErrorIs(t, err, ErrStoreUnavailable)
				assert.Equal(t, 5, f.remaining(t, "GA"))
				assert.Empty(t, f.store.Bookings())

				// the store recovered, the same request now succeeds
				_, err = f.reserve(uuid.New(), "GA", 2)
				require.NoError(t, err)
				assert.Equal(t, 3, f.remaining(t, "GA"))
			})
		}
	}
}

func TestReserve_CommitTimeoutIsStoreUnavailable(t *testing.T) {
	f := newFixture(t, Pessimistic, gaOnly(5), WithCommitTimeout(20*time.Millisecond))
	f.store.SetHook(PointCommit, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	_, err := f.reserve(uuid.New(), "GA", 1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 5, f.remaining(t, "GA"))
	assert.Empty(t, f.store.Bookings())
}

func TestReserve_OptimisticRetriesLostRace(t *testing.T) {
	f := newFixture(t, Optimistic, gaOnly(5))

	var raced atomic.Bool
	f.store.SetHook(PointDecrement, func(ctx context.Context) error {
		if raced.CompareAndSwap(false, true) {
			// a competitor commits between our read and our write
			_, err := f.reserve(uuid.New(), "GA", 1)
			require.NoError(t, err)
		}
		return nil
	})

	res, err := f.reserve(uuid.New(), "GA", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, f.remaining(t, "GA"))
	assert.Len(t, f.store.Bookings(), 2)
}

func TestReserve_OptimisticGivesUp(t *testing.T) {
	f := newFixture(t, Optimistic, gaOnly(100), WithRetry(3, time.Millisecond, time.Millisecond))

	var competing atomic.Bool
	f.store.SetHook(PointDecrement, func(ctx context.Context) error {
		if competing.CompareAndSwap(false, true) {
			defer competing.Store(false)
			_, err := f.reserve(uuid.New(), "GA", 1)
			require.NoError(t, err)
		}
		return nil
	})

	_, err := f.reserve(uuid.New(), "GA", 1)
	assert.ErrorIs(t, err, ErrReservationConflict)
	assert.Equal(t, KindReservationConflict, KindOf(err))
	// three competitors won, the loser left nothing behind
	assert.Equal(t, 97, f.remaining(t, "GA"))
	assert.Len(t, f.store.Bookings(), 3)
}

func TestReserve_PessimisticVersionMismatchIsInconsistency(t *testing.T) {
	f := newFixture(t, Pessimistic, gaOnly(5))
	f.store.SetHook(PointDecrement, func(ctx context.Context) error {
		f.store.mu.Lock()
		defer f.store.mu.Unlock()
		for _, p := range f.store.pools {
			p.Version++
		}
		return nil
	})

	_, err := f.reserve(uuid.New(), "GA", 1)
	assert.ErrorIs(t, err, ErrInternalInconsistency)
	assert.Equal(t, 5, f.remaining(t, "GA"))
}

func TestReserve_IdempotentReplay(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy, gaOnly(5))
			req := Request{EventID: f.eventID, TicketType: "GA", BuyerID: uuid.New(), Quantity: 2, IdempotencyKey: "order-42"}

			first, err := f.engine.Reserve(context.Background(), req)
			require.NoError(t, err)
			second, err := f.engine.Reserve(context.Background(), req)
			require.NoError(t, err)

			assert.False(t, first.Replayed)
			assert.True(t, second.Replayed)
			assert.Equal(t, first.Booking.ID, second.Booking.ID)
			assert.Equal(t, first.Booking.BookingRef, second.Booking.BookingRef)
			assert.Equal(t, 3, f.remaining(t, "GA"))
			assert.Len(t, f.store.Bookings(), 1)

			changed := req
			changed.Quantity = 1
			_, err = f.engine.Reserve(context.Background(), changed)
			assert.ErrorIs(t, err, ErrIdempotencyConflict)
			assert.Equal(t, 3, f.remaining(t, "GA"))
		})
	}
}

func TestReserve_ConcurrentSameKeyBooksOnce(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy, gaOnly(50))
			req := Request{EventID: f.eventID, TicketType: "GA", BuyerID: uuid.New(), Quantity: 1, IdempotencyKey: "retry-storm"}

			const callers = 8
			ids := make([]uuid.UUID, callers)
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					res, err := f.engine.Reserve(context.Background(), req)
					if assert.NoError(t, err) {
						ids[i] = res.Booking.ID
					}
				}(i)
			}
			close(start)
			wg.Wait()

			for _, id := range ids[1:] {
				assert.Equal(t, ids[0], id)
			}
			assert.Equal(t, 49, f.remaining(t, "GA"))
			assert.Len(t, f.store.Bookings(), 1)
		})
	}
}

func TestReserve_RemainingNeverIncreases(t *testing.T) {
	f := newFixture(t, Optimistic, gaOnly(12))
	f.store.FailOnce(PointCommit, errors.New("flaky"))

	last := f.remaining(t, "GA")
	for i := 0; i < 10; i++ {
		_, _ = f.reserve(uuid.New(), "GA", i%4+1)
		now := f.remaining(t, "GA")
		assert.LessOrEqual(t, now, last)
		last = now
	}
	assert.GreaterOrEqual(t, last, 0)
}

func TestReserve_CancelBeforeCommit(t *testing.T) {
	f := newFixture(t, Pessimistic, gaOnly(5))
	ctx, cancel := context.WithCancel(context.Background())

	var loads atomic.Int32
	f.store.SetHook(PointLoadPool, func(txCtx context.Context) error {
		// the first load is the snapshot check, the second is inside the unit of work
		if loads.Add(1) == 2 {
			cancel()
			<-txCtx.Done()
			return txCtx.Err()
		}
		return nil
	})

	_, err := f.engine.Reserve(ctx, Request{EventID: f.eventID, TicketType: "GA", BuyerID: uuid.New(), Quantity: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCancelled, KindOf(err))
	assert.Equal(t, 5, f.remaining(t, "GA"))
	assert.Empty(t, f.store.Bookings())
}

func TestReserve_CancelDuringCommitStillCommits(t *testing.T) {
	f := newFixture(t, Pessimistic, gaOnly(5))
	ctx, cancel := context.WithCancel(context.Background())

	f.store.SetHook(PointCommit, func(txCtx context.Context) error {
		cancel()
		time.Sleep(10 * time.Millisecond)
		return txCtx.Err()
	})

	res, err := f.engine.Reserve(ctx, Request{EventID: f.eventID, TicketType: "GA", BuyerID: uuid.New(), Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Booking.Quantity)
	assert.Equal(t, 3, f.remaining(t, "GA"))
	assert.Len(t, f.store.Bookings(), 1)
}

func TestReserve_AlreadyCancelled(t *testing.T) {
	f := newFixture(t, Pessimistic, gaOnly(5))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Reserve(ctx, Request{EventID: f.eventID, TicketType: "GA", BuyerID: uuid.New(), Quantity: 1})
	assert.Equal(t, KindCancelled, KindOf(err))
	assert.Equal(t, 5, f.remaining(t, "GA"))
}

func TestReserve_DeadlineDuringBackoffIsCancelled(t *testing.T) {
	f := newFixture(t, Optimistic, gaOnly(100), WithRetry(5, 200*time.Millisecond, 200*time.Millisecond))

	// Every attempt loses to a competitor, and the first loss takes longer
	// than the caller is willing to wait.
	var competing, slowed atomic.Bool
	f.store.SetHook(PointDecrement, func(ctx context.Context) error {
		if !competing.CompareAndSwap(false, true) {
			return nil
		}
		defer competing.Store(false)
		_, err := f.reserve(uuid.New(), "GA", 1)
		require.NoError(t, err)
		if slowed.CompareAndSwap(false, true) {
			time.Sleep(50 * time.Millisecond)
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := f.engine.Reserve(ctx, Request{EventID: f.eventID, TicketType: "GA", BuyerID: uuid.New(), Quantity: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAbandoned)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, KindCancelled, KindOf(err))
	assert.NotErrorIs(t, err, ErrInternalInconsistency)

	status, _ := StatusFor(err)
	assert.Equal(t, http.StatusRequestTimeout, status)
	// only the competitor sold a ticket
	assert.Equal(t, 99, f.remaining(t, "GA"))
	assert.Len(t, f.store.Bookings(), 1)
}

func TestReserve_RejectionBeatsLateCancel(t *testing.T) {
	f := newFixture(t, Optimistic, gaOnly(5))
	ctx, cancel := context.WithCancel(context.Background())

	// Inside the unit of work a competitor empties the pool, then the caller
	// leaves. The fresh re-check already decided the outcome.
	var loads atomic.Int32
	var competing atomic.Bool
	f.store.SetHook(PointLoadPool, func(context.Context) error {
		if competing.Load() || loads.Add(1) != 2 {
			return nil
		}
		competing.Store(true)
		_, err := f.reserve(uuid.New(), "GA", 5)
		competing.Store(false)
		require.NoError(t, err)
		cancel()
		return nil
	})

	_, err := f.engine.Reserve(ctx, Request{EventID: f.eventID, TicketType: "GA", BuyerID: uuid.New(), Quantity: 1})
	assert.ErrorIs(t, err, ErrInsufficientInventory)
	assert.Equal(t, KindInsufficientInventory, KindOf(err))
	assert.Equal(t, 0, f.remaining(t, "GA"))
	assert.Len(t, f.store.Bookings(), 1)
}

type transition struct{ from, to State }

type recorder struct {
	mu   sync.Mutex
	seen []transition
}

func (r *recorder) observe(_ string, from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, transition{from, to})
}

func TestReserve_StateTransitions(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		rec := &recorder{}
		f := newFixture(t, Pessimistic, gaOnly(5), WithObserver(rec.observe))
		_, err := f.reserve(uuid.New(), "GA", 1)
		require.NoError(t, err)
		assert.Equal(t, []transition{
			{StateValidating, StateReserving},
			{StateReserving, StateCommitting},
			{StateCommitting, StateConfirmed},
		}, rec.seen)
	})

	t.Run("rejected while validating", func(t *testing.T) {
		rec := &recorder{}
		f := newFixture(t, Pessimistic, gaOnly(1), WithObserver(rec.observe))
		_, err := f.reserve(uuid.New(), "GA", 2)
		require.Error(t, err)
		assert.Equal(t, []transition{{StateValidating, StateAborted}}, rec.seen)
	})

	t.Run("aborted while committing", func(t *testing.T) {
		rec := &recorder{}
		f := newFixture(t, Pessimistic, gaOnly(5), WithObserver(rec.observe))
		f.store.FailOnce(PointAppend, errors.New("boom"))
		_, err := f.reserve(uuid.New(), "GA", 1)
		require.Error(t, err)
		assert.Equal(t, []transition{
			{StateValidating, StateReserving},
			{StateReserving, StateCommitting},
			{StateCommitting, StateAborted},
		}, rec.seen)
	})

	t.Run("replay", func(t *testing.T) {
		rec := &recorder{}
		f := newFixture(t, Pessimistic, gaOnly(5), WithObserver(rec.observe))
		req := Request{EventID: f.eventID, TicketType: "GA", BuyerID: uuid.New(), Quantity: 1, IdempotencyKey: "k"}
		_, err := f.engine.Reserve(context.Background(), req)
		require.NoError(t, err)
		rec.seen = nil

		_, err = f.engine.Reserve(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, []transition{{StateValidating, StateConfirmed}}, rec.seen)
	})
}

type fakePublisher struct {
	mu        sync.Mutex
	published []uuid.UUID
	err       error
}

func (p *fakePublisher) PublishBookingConfirmed(_ context.Context, b *bookings.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, b.ID)
	return p.err
}

type fakeInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (c *fakeInvalidator) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, keys...)
	return nil
}

func TestReserve_SideEffectsOnlyAfterCommit(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	inv := &fakeInvalidator{}
	f := newFixture(t, Pessimistic, gaOnly(3), WithPublisher(pub), WithCache(inv))

	res, err := f.reserve(uuid.New(), "GA", 1)
	require.NoError(t, err, "publisher failures must not fail the reservation")
	assert.Equal(t, []uuid.UUID{res.Booking.ID}, pub.published)
	assert.Equal(t, constants.EventKeys(f.eventID.String()), inv.keys)

	_, err = f.reserve(uuid.New(), "GA", 5)
	require.Error(t, err)
	assert.Len(t, pub.published, 1)
	assert.Len(t, inv.keys, 2)
}

func TestRequestFingerprint(t *testing.T) {
	req := Request{EventID: uuid.New(), TicketType: "GA", BuyerID: uuid.New(), Quantity: 2, IdempotencyKey: "a"}
	same := req
	same.IdempotencyKey = "b"
	other := req
	other.Quantity = 3

	assert.Len(t, requestFingerprint(req), 64)
	assert.Equal(t, requestFingerprint(req), requestFingerprint(same))
	assert.NotEqual(t, requestFingerprint(req), requestFingerprint(other))
}
