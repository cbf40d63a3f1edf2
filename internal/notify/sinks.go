package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// LogSink writes each event as a structured log entry
type LogSink struct {
	Log logrus.FieldLogger
}

func (s LogSink) Name() string { return "log" }

func (s LogSink) Deliver(_ context.Context, ev Event) error {
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	tx := ev.Transaction
	fields := logrus.Fields{
		"reference":   tx.Reference,
		"sender":      tx.SenderID,
		"amount":      tx.Amount.String(),
		"type":        tx.Type,
		"status":      tx.Status,
		"description": tx.Description,
	}
	if tx.ReceiverID != nil {
		fields["receiver"] = *tx.ReceiverID
	}
	if tx.Commission.IsPositive() {
		fields["commission"] = tx.Commission.String()
	}
	log.WithFields(fields).Info("Notification: " + ev.Label)
	return nil
}

// RedisSink publishes events as JSON on a pub/sub channel
type RedisSink struct {
	Client  redis.UniversalClient
	Channel string
}

func (s RedisSink) Name() string { return "redis" }

func (s RedisSink) Deliver(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := s.Client.Publish(ctx, s.Channel, b).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", s.Channel, err)
	}
	return nil
}

// MessageWriter is the subset of *kafka.Writer used by KafkaSink
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink writes events to a Kafka topic keyed by transaction reference
type KafkaSink struct {
	Writer MessageWriter
}

func (s KafkaSink) Name() string { return "kafka" }

func (s KafkaSink) Deliver(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Transaction.Reference),
		Value: b,
		Time:  ev.QueuedAt,
	})
}

// NewKafkaWriter returns a writer for topic on brokers, tuned for small event payloads
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  1, // A retry could publish an event twice
	}
}
