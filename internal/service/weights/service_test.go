package weights

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastvra/pastvra/internal/config"
	"github.com/pastvra/pastvra/internal/domain/models"
	"github.com/pastvra/pastvra/internal/repository/memory"
)

type capturePublisher struct {
	events []models.AnimalWeightRecord
	err    error
}

func (p *capturePublisher) PublishWeightRecorded(_ context.Context, rec models.AnimalWeightRecord) error {
	p.events = append(p.events, rec)
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

type mapCache struct {
	entries     map[string]models.Animal
	invalidated []string
}

func newMapCache() *mapCache { return &mapCache{entries: map[string]models.Animal{}} }

func (c *mapCache) Get(_ context.Context, farmID, term string) (*models.Animal, bool) {
	a, ok := c.entries[farmID+"/"+term]
	if !ok {
		return nil, false
	}
	return &a, true
}

func (c *mapCache) Set(_ context.Context, farmID, term string, animal models.Animal) {
	c.entries[farmID+"/"+term] = animal
}

func (c *mapCache) Invalidate(_ context.Context, animal models.Animal) {
	c.invalidated = append(c.invalidated, animal.ID)
}

var defaults = config.FarmDefaults{LowGainThresholdADG: 0.3, OverdueDays: 45}

func newTestService(t *testing.T) (*Service, *memory.Store, *mapCache, *capturePublisher) {
	t.Helper()
	store := memory.New()
	cache := newMapCache()
	pub := &capturePublisher{}
	svc := NewService(store, cache, pub, defaults, nil)
	svc.now = func() time.Time { return time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC) }
	return svc, store, cache, pub
}

func TestRecordCommitsAndPublishes(t *testing.T) {
	svc, store, _, pub := newTestService(t)
	before := testutil.ToFloat64(ingestCounter.WithLabelValues(models.SourceOnline, "committed"))

	rec, err := svc.Record(context.Background(), RecordInput{
		FarmID:         "farm-1",
		AnimalID:       "a1",
		MeasuredOn:     time.Date(2025, time.May, 30, 17, 45, 0, 0, time.UTC),
		WeightKg:       412.5,
		IdempotencyKey: "key-1",
		Source:         models.SourceOnline,
		CreatedBy:      "operator",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, time.Date(2025, time.May, 30, 0, 0, 0, 0, time.UTC), rec.MeasuredOn)
	assert.Equal(t, svc.now(), rec.CreatedAt)

	stored, err := store.ListWeightsByAnimal(context.Background(), "farm-1", "a1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "key-1", stored[0].IdempotencyKey)

	require.Len(t, pub.events, 1)
	assert.Equal(t, rec.ID, pub.events[0].ID)
	assert.Equal(t, before+1, testutil.ToFloat64(ingestCounter.WithLabelValues(models.SourceOnline, "committed")))
}

func TestRecordDefaultsKeyAndSource(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	rec, err := svc.Record(context.Background(), RecordInput{FarmID: "farm-1", AnimalID: "a1", MeasuredOn: svc.now(), WeightKg: 300})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.IdempotencyKey)
	assert.Equal(t, models.SourceAPI, rec.Source)
}

func TestRecordDuplicateKeepsFirst(t *testing.T) {
	svc, store, _, pub := newTestService(t)
	ctx := context.Background()
	in := RecordInput{FarmID: "farm-1", AnimalID: "a1", MeasuredOn: svc.now(), WeightKg: 300, IdempotencyKey: "same"}

	_, err := svc.Record(ctx, in)
	require.NoError(t, err)

	in.WeightKg = 999
	_, err = svc.Record(ctx, in)
	assert.ErrorIs(t, err, models.ErrDuplicateWeight)

	stored, err := store.ListWeightsByAnimal(ctx, "farm-1", "a1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 300.0, stored[0].WeightKg)
	assert.Len(t, pub.events, 1)
}

func TestRecordRejectsInvalid(t *testing.T) {
	svc, store, _, pub := newTestService(t)
	ctx := context.Background()

	for name, in := range map[string]RecordInput{
		"zero weight":    {FarmID: "farm-1", AnimalID: "a1", MeasuredOn: svc.now(), WeightKg: 0},
		"negative":       {FarmID: "farm-1", AnimalID: "a1", MeasuredOn: svc.now(), WeightKg: -3},
		"missing animal": {FarmID: "farm-1", MeasuredOn: svc.now(), WeightKg: 10},
		"missing date":   {FarmID: "farm-1", AnimalID: "a1", WeightKg: 10},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Record(ctx, in)
			assert.ErrorIs(t, err, models.ErrInvalidWeight)
		})
	}

	stored, err := store.ListWeightsByFarmYear(ctx, "farm-1", 2025)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Empty(t, pub.events)
}

func TestRecordPublishFailureIsNotFatal(t *testing.T) {
	svc, _, _, pub := newTestService(t)
	pub.err = errors.New("broker down")

	rec, err := svc.Record(context.Background(), RecordInput{FarmID: "farm-1", AnimalID: "a1", MeasuredOn: svc.now(), WeightKg: 300})
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestLookupUsesCacheAndReturnsNewestFirst(t *testing.T) {
	svc, store, cache, _ := newTestService(t)
	ctx := context.Background()
	animal := models.Animal{ID: "a1", FarmID: "farm-1", EarTag: "T-7", ChipID: "982000"}
	require.NoError(t, store.UpsertAnimal(ctx, animal))

	for i, kg := range []float64{200, 220, 240} {
		_, err := svc.Record(ctx, RecordInput{
			FarmID:     "farm-1",
			AnimalID:   "a1",
			MeasuredOn: time.Date(2025, time.January, 1+i*10, 0, 0, 0, 0, time.UTC),
			WeightKg:   kg,
		})
		require.NoError(t, err)
	}

	got, history, err := svc.Lookup(ctx, "farm-1", "T-7")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
	require.Len(t, history, 3)
	assert.Equal(t, 240.0, history[0].WeightKg)
	assert.Equal(t, 200.0, history[2].WeightKg)
	assert.Contains(t, cache.entries, "farm-1/T-7")

	_, _, err = svc.Lookup(ctx, "farm-1", "unknown")
	assert.ErrorIs(t, err, models.ErrAnimalNotFound)
}

func TestSaveAnimal(t *testing.T) {
	svc, store, cache, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SaveAnimal(ctx, models.Animal{FarmID: "farm-1", Name: "Lola"})
	assert.ErrorIs(t, err, models.ErrInvalidAnimal)

	saved, err := svc.SaveAnimal(ctx, models.Animal{FarmID: "farm-1", EarTag: "T-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, []string{saved.ID}, cache.invalidated)

	found, err := store.FindAnimalByIdentifier(ctx, "farm-1", "T-1")
	require.NoError(t, err)
	assert.Equal(t, models.AnimalAlive, found.Status)
}

func TestFarmFallsBackToDefaults(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	farm, err := svc.Farm(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, 0.3, farm.LowGainThresholdADG)
	assert.Equal(t, 45, farm.OverdueDays)

	require.NoError(t, store.UpsertFarm(ctx, models.Farm{ID: "farm-1", Name: "La Loma", OverdueDays: 30}))
	farm, err = svc.Farm(ctx, "farm-1")
	require.NoError(t, err)
	assert.Equal(t, 0.3, farm.LowGainThresholdADG)
	assert.Equal(t, 30, farm.OverdueDays)
}

func TestSaveFarmValidatesThresholds(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.SaveFarm(ctx, models.Farm{ID: "farm-1", LowGainThresholdADG: 0, OverdueDays: 30}), models.ErrInvalidFarm)
	assert.ErrorIs(t, svc.SaveFarm(ctx, models.Farm{ID: "farm-1", LowGainThresholdADG: 0.4, OverdueDays: -1}), models.ErrInvalidFarm)
	require.NoError(t, svc.SaveFarm(ctx, models.Farm{ID: "farm-1", LowGainThresholdADG: 0.4, OverdueDays: 30}))

	farm, err := svc.Farm(ctx, "farm-1")
	require.NoError(t, err)
	assert.Equal(t, 0.4, farm.LowGainThresholdADG)
}
