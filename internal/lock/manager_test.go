package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"voicecampaign_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store with the same conditional semantics
// as the database table.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string]Row
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]Row)}
}

func (s *fakeStore) Get(ctx context.Context, name string) (*Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[name]
	if !ok {
		return nil, nil
	}
	copied := row
	return &copied, nil
}

func (s *fakeStore) Upsert(ctx context.Context, name string, holder uuid.UUID, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[name] = Row{Name: name, LockedBy: holder, ExpiresAt: expiresAt}
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, name string, holder uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[name]; ok && row.LockedBy == holder {
		delete(s.rows, name)
	}
	return nil
}

func (s *fakeStore) holderOf(name string) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[name]
	return row.LockedBy, ok
}

func newTestManager(store Store) *Manager {
	m := NewManager(store, logger.New("test"))
	m.poll = time.Millisecond
	return m
}

func TestAcquireAndRelease(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	ctx := context.Background()

	if !m.Acquire(ctx, "dispatch", time.Minute, time.Second) {
		t.Fatal("acquire on a free lock failed")
	}
	if holder, ok := store.holderOf("dispatch"); !ok || holder != m.Holder() {
		t.Fatalf("lock row holder = %v ok=%t, want this manager", holder, ok)
	}

	m.Release(ctx, "dispatch")
	if _, ok := store.holderOf("dispatch"); ok {
		t.Error("lock row still present after release")
	}
}

func TestAcquireTimesOutUnderContention(t *testing.T) {
	store := newFakeStore()
	other := newTestManager(store)
	ctx := context.Background()

	if !other.Acquire(ctx, "dispatch", time.Minute, time.Second) {
		t.Fatal("setup acquire failed")
	}

	m := newTestManager(store)
	if m.Acquire(ctx, "dispatch", time.Minute, 10*time.Millisecond) {
		t.Fatal("acquired a lock another process holds")
	}
	if holder, _ := store.holderOf("dispatch"); holder != other.Holder() {
		t.Errorf("lock row holder changed to %v during failed acquire", holder)
	}
}

func TestAcquireReclaimsExpiredLock(t *testing.T) {
	store := newFakeStore()
	crashed := newTestManager(store)
	ctx := context.Background()

	// A holder that never releases, as if the process died.
	if !crashed.Acquire(ctx, "dispatch", 20*time.Millisecond, time.Second) {
		t.Fatal("setup acquire failed")
	}
	time.Sleep(30 * time.Millisecond)

	m := newTestManager(store)
	if !m.Acquire(ctx, "dispatch", time.Minute, time.Second) {
		t.Fatal("could not reclaim an expired lock")
	}
	if holder, _ := store.holderOf("dispatch"); holder != m.Holder() {
		t.Errorf("lock row holder = %v, want the reclaiming manager", holder)
	}
}

func TestReleaseAfterTakeoverKeepsNewHolder(t *testing.T) {
	store := newFakeStore()
	stale := newTestManager(store)
	ctx := context.Background()

	if !stale.Acquire(ctx, "dispatch", 20*time.Millisecond, time.Second) {
		t.Fatal("setup acquire failed")
	}
	time.Sleep(30 * time.Millisecond)

	current := newTestManager(store)
	if !current.Acquire(ctx, "dispatch", time.Minute, time.Second) {
		t.Fatal("takeover acquire failed")
	}

	// The stale holder releasing late must not delete the new
	// holder's row.
	stale.Release(ctx, "dispatch")
	if holder, ok := store.holderOf("dispatch"); !ok || holder != current.Holder() {
		t.Errorf("lock row holder = %v ok=%t, want the current holder intact", holder, ok)
	}
}

func TestAcquireWaitsForRelease(t *testing.T) {
	store := newFakeStore()
	first := newTestManager(store)
	second := newTestManager(store)
	ctx := context.Background()

	if !first.Acquire(ctx, "dispatch", time.Minute, time.Second) {
		t.Fatal("setup acquire failed")
	}

	acquired := make(chan bool, 1)
	go func() {
		acquired <- second.Acquire(ctx, "dispatch", time.Minute, 2*time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	first.Release(ctx, "dispatch")

	select {
	case ok := <-acquired:
		if !ok {
			t.Fatal("waiter did not acquire after release")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("waiter never returned")
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	store := newFakeStore()
	holder := newTestManager(store)
	if !holder.Acquire(context.Background(), "dispatch", time.Minute, time.Second) {
		t.Fatal("setup acquire failed")
	}

	m := newTestManager(store)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	if m.Acquire(ctx, "dispatch", time.Minute, time.Minute) {
		t.Fatal("acquired despite cancelled context")
	}
}
