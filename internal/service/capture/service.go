// Package capture implements the field operator's weighing flow: animal
// lookup and weight capture, online against the farm API or offline against
// the device-local store.
package capture

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/analytics"
	"github.com/pastvra/pastvra/internal/domain/models"
	"github.com/pastvra/pastvra/internal/repository/localstore"
)

// Connectivity reports whether the authoritative store is reachable. It is
// consulted exactly once per operation.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// Remote is the subset of the authoritative store the capture flow needs.
type Remote interface {
	InsertWeight(ctx context.Context, rec models.AnimalWeightRecord) error
	FindAnimalByIdentifier(ctx context.Context, farmID, term string) (*models.Animal, error)
	ListWeightsByAnimal(ctx context.Context, farmID, animalID string) ([]models.AnimalWeightRecord, error)
}

// Thresholds are the farm alert settings used for immediate feedback.
type Thresholds struct {
	LowGainADG  float64
	OverdueDays int
}

// OutcomeKind distinguishes where a capture ended up.
type OutcomeKind int

const (
	// Committed means the record is in the authoritative store.
	Committed OutcomeKind = iota + 1
	// Queued means the record waits in the local queue for reconciliation.
	Queued
)

func (k OutcomeKind) String() string {
	switch k {
	case Committed:
		return "committed"
	case Queued:
		return "queued"
	default:
		return "unknown"
	}
}

// Outcome is the result of one capture attempt.
type Outcome struct {
	Kind           OutcomeKind
	IdempotencyKey string
}

// Input is a single weighing entered by the operator. Previous is the last
// known measurement of the animal, typically taken from Lookup.
type Input struct {
	FarmID     string    `validate:"required"`
	AnimalID   string    `validate:"required"`
	MeasuredOn time.Time `validate:"required"`
	WeightKg   float64   `validate:"gt=0"`
	Previous   *models.WeightPoint
}

// Result is returned to the operator after a capture.
type Result struct {
	Outcome Outcome
	ADG     *float64
	Tags    analytics.TagSet
}

// Lookup is the animal card shown before weighing.
type Lookup struct {
	Animal models.AnimalSummaryCache
	// History is newest first. Offline it holds at most the cached last point.
	History []models.WeightPoint
	Online  bool
}

// Service runs lookups and captures for one operator.
type Service struct {
	conn       Connectivity
	remote     Remote
	local      localstore.Store
	operator   string
	thresholds Thresholds
	logger     *zap.Logger
	now        func() time.Time
	newKey     func() string
}

// NewService wires the capture flow.
func NewService(conn Connectivity, remote Remote, local localstore.Store, operator string, thresholds Thresholds, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		conn:       conn,
		remote:     remote,
		local:      local,
		operator:   operator,
		thresholds: thresholds,
		logger:     logger.Named("svc.capture"),
		now:        time.Now,
		newKey:     uuid.NewString,
	}
}

// Lookup finds an animal by chip id or ear tag. Online it refreshes the local
// cache from the farm API; offline it answers from the cache alone.
func (s *Service) Lookup(ctx context.Context, farmID, term string) (*Lookup, error) {
	if term == "" {
		return nil, models.ErrAnimalNotFound
	}

	if !s.conn.Online(ctx) {
		cached, err := s.local.FindAnimal(ctx, farmID, term)
		if err != nil {
			return nil, err
		}
		out := &Lookup{Animal: *cached, History: []models.WeightPoint{}}
		if p := cached.LastPoint(); p != nil {
			out.History = append(out.History, *p)
		}
		return out, nil
	}

	animal, err := s.remote.FindAnimalByIdentifier(ctx, farmID, term)
	if err != nil {
		return nil, err
	}
	records, err := s.remote.ListWeightsByAnimal(ctx, farmID, animal.ID)
	if err != nil {
		return nil, fmt.Errorf("loading weight history: %w", err)
	}

	history := models.Points(records)
	slices.Reverse(history)

	summary := models.AnimalSummaryCache{
		AnimalID:    animal.ID,
		FarmID:      animal.FarmID,
		ChipID:      animal.ChipID,
		EarTag:      animal.EarTag,
		DisplayName: animal.DisplayName(),
		PhotoPath:   animal.PhotoPath,
	}
	if summary.FarmID == "" {
		summary.FarmID = farmID
	}
	if len(history) > 0 {
		weight, measuredOn := history[0].WeightKg, history[0].MeasuredOn
		summary.LastWeightKg = &weight
		summary.LastMeasuredOn = &measuredOn
	}
	if err := s.local.PutAnimal(ctx, summary); err != nil {
		s.logger.Warn("refreshing animal cache", zap.String("animal_id", animal.ID), zap.Error(err))
	}

	return &Lookup{Animal: summary, History: history, Online: true}, nil
}

// Capture validates and records a weighing. Invalid input is returned as an
// error wrapping models.ErrInvalidWeight and is never queued. A failed online
// insert is returned too; the operator decides whether to retry.
func (s *Service) Capture(ctx context.Context, in Input) (*Result, error) {
	if err := models.ValidateWeight(in); err != nil {
		return nil, err
	}
	return s.record(ctx, in, s.conn.Online(ctx))
}

// CaptureWith is Capture for an attempt whose connectivity was already
// decided, typically by the Lookup that resolved the animal.
func (s *Service) CaptureWith(ctx context.Context, in Input, online bool) (*Result, error) {
	if err := models.ValidateWeight(in); err != nil {
		return nil, err
	}
	return s.record(ctx, in, online)
}

func (s *Service) record(ctx context.Context, in Input, online bool) (*Result, error) {
	measuredOn := models.DateOnly(in.MeasuredOn)
	key := s.newKey()
	now := s.now().UTC()

	var outcome Outcome
	if online {
		err := s.remote.InsertWeight(ctx, models.AnimalWeightRecord{
			FarmID:         in.FarmID,
			AnimalID:       in.AnimalID,
			MeasuredOn:     measuredOn,
			WeightKg:       in.WeightKg,
			IdempotencyKey: key,
			Source:         models.SourceOnline,
			CreatedBy:      s.operator,
			CreatedAt:      now,
		})
		if err != nil && !errors.Is(err, models.ErrDuplicateWeight) {
			return nil, fmt.Errorf("recording weight: %w", err)
		}
		outcome = Outcome{Kind: Committed, IdempotencyKey: key}
	} else {
		err := s.local.Enqueue(ctx, models.PendingWeightRecord{
			IdempotencyKey: key,
			FarmID:         in.FarmID,
			AnimalID:       in.AnimalID,
			MeasuredOn:     measuredOn,
			WeightKg:       in.WeightKg,
			QueuedAt:       now,
		})
		if err != nil {
			return nil, fmt.Errorf("queueing weight: %w", err)
		}
		outcome = Outcome{Kind: Queued, IdempotencyKey: key}
	}

	s.logger.Info("weight captured",
		zap.String("outcome", outcome.Kind.String()),
		zap.String("animal_id", in.AnimalID),
		zap.Float64("weight_kg", in.WeightKg),
		zap.String("idempotency_key", key))

	current := models.WeightPoint{MeasuredOn: measuredOn, WeightKg: in.WeightKg}
	s.rememberLastWeight(ctx, in, current)

	return &Result{
		Outcome: outcome,
		ADG:     analytics.AverageDailyGain(in.Previous, current),
		Tags:    analytics.DeriveTags(in.Previous, current, s.thresholds.LowGainADG, s.thresholds.OverdueDays),
	}, nil
}

// rememberLastWeight advances the cached last point so a following offline
// capture of the same animal gets correct feedback.
func (s *Service) rememberLastWeight(ctx context.Context, in Input, current models.WeightPoint) {
	cached, err := s.local.GetAnimal(ctx, in.AnimalID)
	if err != nil || cached.FarmID != in.FarmID {
		return
	}
	if cached.LastMeasuredOn != nil && cached.LastMeasuredOn.After(current.MeasuredOn) {
		return
	}
	cached.LastWeightKg = &current.WeightKg
	cached.LastMeasuredOn = &current.MeasuredOn
	if err := s.local.PutAnimal(ctx, *cached); err != nil {
		s.logger.Warn("updating cached last weight", zap.String("animal_id", in.AnimalID), zap.Error(err))
	}
}
