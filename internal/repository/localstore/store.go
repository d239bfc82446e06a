// Package localstore holds the device-local state of the field agent: the
// queue of weight captures waiting for reconciliation and the animal cache
// used for offline lookups. Nothing here touches the network.
package localstore

import (
	"context"
	"iter"
	"sync"

	"github.com/pastvra/pastvra/internal/domain/models"
)

// PendingStore is the queue consumed by the capture flow and the reconciler.
type PendingStore interface {
	Enqueue(ctx context.Context, rec models.PendingWeightRecord) error
	// ListOrderedByQueueTime yields records FIFO by QueuedAt, ties broken by
	// insertion order. The set of records is fixed when iteration starts;
	// records enqueued during iteration are seen by the next call.
	ListOrderedByQueueTime(ctx context.Context) iter.Seq2[models.PendingWeightRecord, error]
	// Remove deletes the record with the given key. Removing an absent key is not an error.
	Remove(ctx context.Context, idempotencyKey string) error
	Count(ctx context.Context) (int, error)
	// TryLockDrain claims the right to drain the queue. It reports ok=false
	// without blocking when another pass, in this process or another one
	// sharing the same database, holds the claim.
	TryLockDrain(ctx context.Context) (release func(), ok bool, err error)
	// Subscribe registers fn to receive the queue size after every change.
	Subscribe(fn func(count int)) (cancel func())
}

// AnimalCache keeps the last known summary of animals for offline lookups.
type AnimalCache interface {
	PutAnimal(ctx context.Context, summary models.AnimalSummaryCache) error
	// FindAnimal matches term against chip id or ear tag within the farm and
	// returns models.ErrNotCached on a miss.
	FindAnimal(ctx context.Context, farmID, term string) (*models.AnimalSummaryCache, error)
	GetAnimal(ctx context.Context, animalID string) (*models.AnimalSummaryCache, error)
}

// Store is the full device-local persistence surface.
type Store interface {
	PendingStore
	AnimalCache
	Close() error
}

type subscribers struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(int)
}

func (s *subscribers) add(fn func(int)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(int))
	}
	id := s.nextID
	s.nextID++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) notify(count int) {
	s.mu.Lock()
	fns := make([]func(int), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(count)
	}
}
