package localstore

import (
	"context"
	"iter"
	"sort"
	"sync"

	"github.com/pastvra/pastvra/internal/domain/models"
)

type memoryEntry struct {
	seq    int64
	record models.PendingWeightRecord
}

// Memory is an in-process Store used by tests and ephemeral agents.
type Memory struct {
	mu      sync.Mutex
	drain   sync.Mutex
	seq     int64
	pending map[string]memoryEntry
	animals map[string]models.AnimalSummaryCache
	subs    subscribers
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		pending: make(map[string]memoryEntry),
		animals: make(map[string]models.AnimalSummaryCache),
	}
}

func (m *Memory) Enqueue(_ context.Context, rec models.PendingWeightRecord) error {
	m.mu.Lock()
	m.seq++
	m.pending[rec.IdempotencyKey] = memoryEntry{seq: m.seq, record: rec}
	count := len(m.pending)
	m.mu.Unlock()

	m.subs.notify(count)
	return nil
}

func (m *Memory) ListOrderedByQueueTime(_ context.Context) iter.Seq2[models.PendingWeightRecord, error] {
	return func(yield func(models.PendingWeightRecord, error) bool) {
		m.mu.Lock()
		snapshot := make([]memoryEntry, 0, len(m.pending))
		for _, e := range m.pending {
			snapshot = append(snapshot, e)
		}
		m.mu.Unlock()

		sort.Slice(snapshot, func(i, j int) bool {
			a, b := snapshot[i], snapshot[j]
			if !a.record.QueuedAt.Equal(b.record.QueuedAt) {
				return a.record.QueuedAt.Before(b.record.QueuedAt)
			}
			return a.seq < b.seq
		})

		for _, e := range snapshot {
			m.mu.Lock()
			current, ok := m.pending[e.record.IdempotencyKey]
			m.mu.Unlock()
			if !ok || current.seq != e.seq {
				continue
			}
			if !yield(e.record, nil) {
				return
			}
		}
	}
}

func (m *Memory) Remove(_ context.Context, idempotencyKey string) error {
	m.mu.Lock()
	_, ok := m.pending[idempotencyKey]
	delete(m.pending, idempotencyKey)
	count := len(m.pending)
	m.mu.Unlock()

	if ok {
		m.subs.notify(count)
	}
	return nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending), nil
}

func (m *Memory) TryLockDrain(context.Context) (func(), bool, error) {
	if !m.drain.TryLock() {
		return nil, false, nil
	}
	var once sync.Once
	return func() { once.Do(m.drain.Unlock) }, true, nil
}

func (m *Memory) Subscribe(fn func(count int)) func() {
	return m.subs.add(fn)
}

func (m *Memory) PutAnimal(_ context.Context, summary models.AnimalSummaryCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.animals[summary.AnimalID] = summary
	return nil
}

func (m *Memory) FindAnimal(_ context.Context, farmID, term string) (*models.AnimalSummaryCache, error) {
	if term == "" {
		return nil, models.ErrNotCached
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.animals {
		if a.FarmID != farmID {
			continue
		}
		if a.ChipID == term || a.EarTag == term {
			found := a
			return &found, nil
		}
	}
	return nil, models.ErrNotCached
}

func (m *Memory) GetAnimal(_ context.Context, animalID string) (*models.AnimalSummaryCache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.animals[animalID]
	if !ok {
		return nil, models.ErrNotCached
	}
	return &a, nil
}

func (m *Memory) Close() error { return nil }
