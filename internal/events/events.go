// Package events publishes committed transitions to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/and161185/car-registry/internal/model"
)

// TransitionCommitted describes one committed transition.
type TransitionCommitted struct {
	ID         uuid.UUID       `json:"id"`
	Transition string          `json:"transition"`
	Actor      model.Pubkey    `json:"actor"`
	Addresses  []model.Address `json:"addresses"`
	At         time.Time       `json:"at"`
}

// NewTransitionCommitted stamps a new event id.
func NewTransitionCommitted(transition string, actor model.Pubkey, addrs []model.Address, at time.Time) (TransitionCommitted, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return TransitionCommitted{}, err
	}
	return TransitionCommitted{ID: id, Transition: transition, Actor: actor, Addresses: addrs, At: at.UTC()}, nil
}

// Publisher delivers events after commit.
type Publisher interface {
	Publish(ctx context.Context, ev TransitionCommitted) error
	Close()
}

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Kafka produces events to one topic keyed by the primary address.
type Kafka struct {
	client producer
	topic  string
}

// NewKafka connects a franz-go producer to brokers.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Kafka{client: client, topic: topic}, nil
}

// Publish writes ev synchronously.
func (k *Kafka) Publish(ctx context.Context, ev TransitionCommitted) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	rec := &kgo.Record{Topic: k.topic, Value: value}
	if len(ev.Addresses) > 0 {
		rec.Key = []byte(ev.Addresses[0].String())
	}
	rec.Headers = []kgo.RecordHeader{{Key: "transition", Value: []byte(ev.Transition)}}
	return k.client.ProduceSync(ctx, rec).FirstErr()
}

// Close flushes and closes the producer.
func (k *Kafka) Close() { k.client.Close() }

// Nop drops events.
type Nop struct{}

func (Nop) Publish(context.Context, TransitionCommitted) error { return nil }
func (Nop) Close()                                             {}
