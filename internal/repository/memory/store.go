// Package memory is an in-process implementation of repository.Store for
// tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/pastvra/pastvra/internal/domain/models"
	"github.com/pastvra/pastvra/internal/repository"
)

// Store keeps every collection in maps guarded by one mutex.
type Store struct {
	mu        sync.RWMutex
	farms     map[string]models.Farm
	animals   map[string]models.Animal
	weights   []models.AnimalWeightRecord
	keys      map[string]struct{}
	movements []models.InventoryMovementRecord
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		farms:   make(map[string]models.Farm),
		animals: make(map[string]models.Animal),
		keys:    make(map[string]struct{}),
	}
}

func (s *Store) InsertWeight(_ context.Context, rec models.AnimalWeightRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.FarmID + "\x00" + rec.IdempotencyKey
	if _, dup := s.keys[key]; dup {
		return models.ErrDuplicateWeight
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.MeasuredOn = models.DateOnly(rec.MeasuredOn)
	s.keys[key] = struct{}{}
	s.weights = append(s.weights, rec)
	return nil
}

func (s *Store) ListWeightsByAnimal(_ context.Context, farmID, animalID string) ([]models.AnimalWeightRecord, error) {
	return s.filterWeights(func(w models.AnimalWeightRecord) bool {
		return w.FarmID == farmID && w.AnimalID == animalID
	}), nil
}

func (s *Store) ListWeightsByFarmYear(_ context.Context, farmID string, year int) ([]models.AnimalWeightRecord, error) {
	start, end := repository.YearBounds(year)
	return s.filterWeights(func(w models.AnimalWeightRecord) bool {
		return w.FarmID == farmID && !w.MeasuredOn.Before(start) && w.MeasuredOn.Before(end)
	}), nil
}

func (s *Store) filterWeights(keep func(models.AnimalWeightRecord) bool) []models.AnimalWeightRecord {
	s.mu.RLock()
	out := make([]models.AnimalWeightRecord, 0)
	for _, w := range s.weights {
		if keep(w) {
			out = append(out, w)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].MeasuredOn.Equal(out[j].MeasuredOn) {
			return out[i].MeasuredOn.Before(out[j].MeasuredOn)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) UpsertAnimal(_ context.Context, animal models.Animal) error {
	if animal.Status == "" {
		animal.Status = models.AnimalAlive
	}
	s.mu.Lock()
	s.animals[animal.ID] = animal
	s.mu.Unlock()
	return nil
}

func (s *Store) ListAnimals(_ context.Context, farmID string) ([]models.Animal, error) {
	s.mu.RLock()
	out := make([]models.Animal, 0)
	for _, a := range s.animals {
		if a.FarmID == farmID {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EarTag != out[j].EarTag {
			return out[i].EarTag < out[j].EarTag
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) FindAnimalByIdentifier(_ context.Context, farmID, term string) (*models.Animal, error) {
	if term == "" {
		return nil, models.ErrAnimalNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.animals {
		if a.FarmID == farmID && (a.ChipID == term || a.EarTag == term) {
			found := a
			return &found, nil
		}
	}
	return nil, models.ErrAnimalNotFound
}

func (s *Store) UpsertFarm(_ context.Context, farm models.Farm) error {
	s.mu.Lock()
	s.farms[farm.ID] = farm
	s.mu.Unlock()
	return nil
}

func (s *Store) GetFarm(_ context.Context, farmID string) (*models.Farm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.farms[farmID]
	if !ok {
		return nil, models.ErrFarmNotFound
	}
	return &f, nil
}

func (s *Store) InsertMovement(_ context.Context, rec models.InventoryMovementRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.MovementDate = models.DateOnly(rec.MovementDate)
	s.mu.Lock()
	s.movements = append(s.movements, rec)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListMovements(_ context.Context, f models.MovementFilter) ([]models.InventoryMovementRecord, error) {
	s.mu.RLock()
	out := make([]models.InventoryMovementRecord, 0)
	for _, m := range s.movements {
		if matches(m, f) {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].MovementDate.Equal(out[j].MovementDate) {
			return out[i].MovementDate.Before(out[j].MovementDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func matches(m models.InventoryMovementRecord, f models.MovementFilter) bool {
	switch {
	case m.FarmID != f.FarmID:
		return false
	case f.From != nil && m.MovementDate.Before(models.DateOnly(*f.From)):
		return false
	case f.To != nil && m.MovementDate.After(models.DateOnly(*f.To)):
		return false
	case f.Destination != nil && (m.Destination == nil || *m.Destination != *f.Destination):
		return false
	case f.Category != nil && (m.Category == nil || *m.Category != *f.Category):
		return false
	}
	return true
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }
