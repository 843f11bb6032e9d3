package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	applog "storefront/internal/log"
	"storefront/internal/repos"
)

type Publisher interface {
	Publish(ctx context.Context, rec repos.OutboxRecord) error
	Close() error
}

// KafkaPublisher writes records to the topic each one names.
type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokersCSV string) *KafkaPublisher {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, rec repos.OutboxRecord) error {
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic: rec.Topic,
		Key:   []byte(rec.Key),
		Value: []byte(rec.Payload),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(rec.EventID)},
		},
	})
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// LogPublisher writes records to the structured log when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, rec repos.OutboxRecord) error {
	applog.Logger().WithFields(logrus.Fields{
		"event_id": rec.EventID,
		"topic":    rec.Topic,
		"key":      rec.Key,
		"payload":  json.RawMessage(rec.Payload),
	}).Info("event.published")
	return nil
}

func (LogPublisher) Close() error { return nil }
