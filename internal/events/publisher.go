// Package events publishes domain events about recorded weights.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/pastvra/pastvra/internal/domain/models"
)

// EventWeightRecorded is the event_type header of weight events.
const EventWeightRecorded = "weight.recorded"

// Publisher emits events after the authoritative store accepted a write.
type Publisher interface {
	PublishWeightRecorded(ctx context.Context, rec models.AnimalWeightRecord) error
	Close() error
}

// WeightRecorded is the JSON payload of a weight.recorded event.
type WeightRecorded struct {
	ID             string    `json:"id"`
	FarmID         string    `json:"farm_id"`
	AnimalID       string    `json:"animal_id"`
	MeasuredOn     string    `json:"measured_on"`
	WeightKg       float64   `json:"weight_kg"`
	IdempotencyKey string    `json:"idempotency_key"`
	Source         string    `json:"source"`
	CreatedAt      time.Time `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes weight events keyed by animal so an animal's events
// stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a synchronous writer for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}}
}

func (p *KafkaPublisher) PublishWeightRecorded(ctx context.Context, rec models.AnimalWeightRecord) error {
	msg, err := weightMessage(rec)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", EventWeightRecorded, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func weightMessage(rec models.AnimalWeightRecord) (kafka.Message, error) {
	body, err := json.Marshal(WeightRecorded{
		ID:             rec.ID,
		FarmID:         rec.FarmID,
		AnimalID:       rec.AnimalID,
		MeasuredOn:     rec.MeasuredOn.Format(models.DateLayout),
		WeightKg:       rec.WeightKg,
		IdempotencyKey: rec.IdempotencyKey,
		Source:         rec.Source,
		CreatedAt:      rec.CreatedAt,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s: %w", EventWeightRecorded, err)
	}

	return kafka.Message{
		Key:   []byte(rec.FarmID + "/" + rec.AnimalID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventWeightRecorded)},
			{Key: "farm_id", Value: []byte(rec.FarmID)},
		},
		Time: rec.CreatedAt,
	}, nil
}

// NopPublisher drops every event. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishWeightRecorded(context.Context, models.AnimalWeightRecord) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
