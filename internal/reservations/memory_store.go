package reservations

import (
	"context"
	"sync"
	"time"

	"eventbook/internal/bookings"
	"eventbook/internal/events"

	"github.com/google/uuid"
)

// FaultPoint names a step of a memory unit of work where a hook can run.
type FaultPoint string

const (
	PointLoadPool  FaultPoint = "load_pool"
	PointDecrement FaultPoint = "decrement"
	PointAppend    FaultPoint = "append"
	PointCommit    FaultPoint = "commit"
)

// Hook runs at a fault point. A non-nil error aborts the unit of work.
type Hook func(ctx context.Context) error

type poolKey struct {
	eventID uuid.UUID
	name    string
}

// MemoryStore is an in-process Store. Writes are buffered per unit of work
// and applied under a single mutex at commit, where optimistic versions are
// checked again. Readers only ever observe committed state.
type MemoryStore struct {
	mu        sync.Mutex
	events    map[uuid.UUID]events.Event
	pools     map[uuid.UUID]*events.TicketPool
	poolIndex map[poolKey]uuid.UUID
	locks     map[uuid.UUID]chan struct{}
	ledger    []bookings.Booking
	keys      map[string]int

	hookMu sync.Mutex
	hooks  map[FaultPoint]Hook
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    make(map[uuid.UUID]events.Event),
		pools:     make(map[uuid.UUID]*events.TicketPool),
		poolIndex: make(map[poolKey]uuid.UUID),
		locks:     make(map[uuid.UUID]chan struct{}),
		keys:      make(map[string]int),
		hooks:     make(map[FaultPoint]Hook),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddEvent stores a copy of event and its pools.
func (s *MemoryStore) AddEvent(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	for _, p := range event.TicketPools {
		pool := p
		if pool.ID == uuid.Nil {
			pool.ID = uuid.New()
		}
		pool.EventID = event.ID
		s.pools[pool.ID] = &pool
		s.poolIndex[poolKey{event.ID, pool.Name}] = pool.ID
		s.locks[pool.ID] = make(chan struct{}, 1)
	}
	event.TicketPools = nil
	s.events[event.ID] = event
}

// Pool returns the committed state of a pool.
func (s *MemoryStore) Pool(eventID uuid.UUID, name string) (events.TicketPool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.poolIndex[poolKey{eventID, name}]
	if !ok {
		return events.TicketPool{}, false
	}
	return *s.pools[id], true
}

// Bookings returns a copy of the committed ledger.
func (s *MemoryStore) Bookings() []bookings.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bookings.Booking, len(s.ledger))
	copy(out, s.ledger)
	return out
}

// SetHook installs fn at point, replacing any previous hook. A nil fn
// removes it.
func (s *MemoryStore) SetHook(point FaultPoint, fn Hook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	if fn == nil {
		delete(s.hooks, point)
		return
	}
	s.hooks[point] = fn
}

// FailOnce makes the next unit of work reaching point fail with err.
func (s *MemoryStore) FailOnce(point FaultPoint, err error) {
	var once sync.Once
	s.SetHook(point, func(context.Context) error {
		fired := false
		once.Do(func() { fired = true })
		if fired {
			return err
		}
		return nil
	})
}

func (s *MemoryStore) fire(ctx context.Context, point FaultPoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.hookMu.Lock()
	fn := s.hooks[point]
	s.hookMu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (s *MemoryStore) Do(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	uow := &memoryUnitOfWork{store: s, held: make(map[uuid.UUID]chan struct{})}
	defer uow.release()

	if err := fn(ctx, uow); err != nil {
		return err
	}
	if err := s.fire(ctx, PointCommit); err != nil {
		return err
	}
	return s.commit(uow)
}

func (s *MemoryStore) commit(uow *memoryUnitOfWork) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range uow.decrements {
		pool := s.pools[d.poolID]
		if pool == nil || pool.Version != d.version || pool.RemainingQuantity < d.qty {
			return errVersionConflict
		}
	}
	for _, b := range uow.appends {
		if b.IdempotencyKey == nil {
			continue
		}
		if _, taken := s.keys[*b.IdempotencyKey]; taken {
			return bookings.ErrDuplicateIdempotencyKey
		}
	}

	for _, d := range uow.decrements {
		pool := s.pools[d.poolID]
		pool.RemainingQuantity -= d.qty
		pool.Version++
	}
	for _, b := range uow.appends {
		now := s.now()
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		b.UpdatedAt = now
		s.ledger = append(s.ledger, b)
		if b.IdempotencyKey != nil {
			s.keys[*b.IdempotencyKey] = len(s.ledger) - 1
		}
	}
	return nil
}

type pendingDecrement struct {
	poolID  uuid.UUID
	qty     int
	version int64
}

type memoryUnitOfWork struct {
	store      *MemoryStore
	held       map[uuid.UUID]chan struct{}
	decrements []pendingDecrement
	appends    []bookings.Booking
}

func (u *memoryUnitOfWork) release() {
	for id, ch := range u.held {
		<-ch
		delete(u.held, id)
	}
}

func (u *memoryUnitOfWork) lock(ctx context.Context, poolID uuid.UUID) error {
	if _, ok := u.held[poolID]; ok {
		return nil
	}
	u.store.mu.Lock()
	ch := u.store.locks[poolID]
	u.store.mu.Unlock()

	select {
	case ch <- struct{}{}:
		u.held[poolID] = ch
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *memoryUnitOfWork) GetEvent(ctx context.Context, eventID uuid.UUID) (*events.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	event, ok := u.store.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &event, nil
}

func (u *memoryUnitOfWork) LoadPool(ctx context.Context, eventID uuid.UUID, name string, forUpdate bool) (*events.TicketPool, error) {
	if err := u.store.fire(ctx, PointLoadPool); err != nil {
		return nil, err
	}

	u.store.mu.Lock()
	id, ok := u.store.poolIndex[poolKey{eventID, name}]
	u.store.mu.Unlock()
	if !ok {
		return nil, nil
	}

	if forUpdate {
		if err := u.lock(ctx, id); err != nil {
			return nil, err
		}
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	pool := *u.store.pools[id]
	return &pool, nil
}

func (u *memoryUnitOfWork) DecrementPool(ctx context.Context, poolID uuid.UUID, qty int, expectedVersion int64) (bool, error) {
	if err := u.store.fire(ctx, PointDecrement); err != nil {
		return false, err
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	pool, ok := u.store.pools[poolID]
	if !ok || pool.Version != expectedVersion || pool.RemainingQuantity < qty {
		return false, nil
	}
	u.decrements = append(u.decrements, pendingDecrement{poolID: poolID, qty: qty, version: expectedVersion})
	return true, nil
}

func (u *memoryUnitOfWork) AppendBooking(ctx context.Context, booking *bookings.Booking) error {
	if err := u.store.fire(ctx, PointAppend); err != nil {
		return err
	}
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}

	if booking.IdempotencyKey != nil {
		key := *booking.IdempotencyKey
		u.store.mu.Lock()
		_, taken := u.store.keys[key]
		u.store.mu.Unlock()
		if taken {
			return bookings.ErrDuplicateIdempotencyKey
		}
		for _, b := range u.appends {
			if b.IdempotencyKey != nil && *b.IdempotencyKey == key {
				return bookings.ErrDuplicateIdempotencyKey
			}
		}
	}

	u.appends = append(u.appends, *booking)
	return nil
}

func (u *memoryUnitOfWork) FindBookingByKey(ctx context.Context, key string) (*bookings.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	i, ok := u.store.keys[key]
	if !ok {
		return nil, nil
	}
	b := u.store.ledger[i]
	return &b, nil
}
