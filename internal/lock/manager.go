package lock

import (
	"context"
	"sync"
	"time"

	"voicecampaign_backend/platform/logger"

	"github.com/google/uuid"
)

// pollInterval is how long a waiter sleeps between acquisition attempts.
const pollInterval = 500 * time.Millisecond

// Manager layers an in-process mutex per lock name on top of the
// persisted lock table, so only one goroutine per process ever contends
// for the distributed row. The holder identifier is unique per process.
type Manager struct {
	store  Store
	holder uuid.UUID
	log    *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// overridable in tests
	poll time.Duration
	now  func() time.Time
}

// NewManager creates a lock manager with a fresh process-unique holder id.
func NewManager(store Store, log *logger.Logger) *Manager {
	return &Manager{
		store:  store,
		holder: uuid.New(),
		log:    log,
		locks:  make(map[string]*sync.Mutex),
		poll:   pollInterval,
		now:    time.Now,
	}
}

// Holder returns this process's holder identifier.
func (m *Manager) Holder() uuid.UUID {
	return m.holder
}

func (m *Manager) processMutex(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	mutex, ok := m.locks[name]
	if !ok {
		mutex = &sync.Mutex{}
		m.locks[name] = mutex
	}
	return mutex
}

// Acquire attempts to take the named lock, waiting up to waitFor while
// another holder owns it. It returns true on success; the lock is then
// held until Release or until holdFor elapses. A false return is a
// normal outcome under contention, callers skip their work for the
// cycle rather than treating it as an error.
//
// Expired rows are reclaimed by any waiter regardless of holder, so a
// crashed process cannot wedge the resource. There is no renewal: a
// critical section that outlives holdFor can briefly overlap the next
// holder, so holdFor must comfortably exceed the slowest expected
// critical section.
func (m *Manager) Acquire(ctx context.Context, name string, holdFor, waitFor time.Duration) bool {
	mutex := m.processMutex(name)
	mutex.Lock()

	deadline := m.now().Add(waitFor)
	for {
		row, err := m.store.Get(ctx, name)
		if err != nil {
			m.log.DatabaseError("lock.get", err)
		} else if row == nil || m.now().After(row.ExpiresAt) {
			if err := m.store.Upsert(ctx, name, m.holder, m.now().Add(holdFor)); err != nil {
				m.log.DatabaseError("lock.upsert", err)
			} else {
				return true
			}
		}

		if m.now().After(deadline) {
			mutex.Unlock()
			m.log.Warn("lock acquisition timed out", "lock", name, "waited", waitFor.String())
			return false
		}

		select {
		case <-ctx.Done():
			mutex.Unlock()
			return false
		case <-time.After(m.poll):
		}
	}
}

// Release deletes the lock row if this process still holds it, then
// frees the in-process mutex. Safe to call after expiry; the delete is
// conditional on the holder identifier.
func (m *Manager) Release(ctx context.Context, name string) {
	if err := m.store.Delete(ctx, name, m.holder); err != nil {
		m.log.DatabaseError("lock.delete", err)
	}
	m.processMutex(name).Unlock()
}
