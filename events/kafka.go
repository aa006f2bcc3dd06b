package events

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers     []string `json:"brokers" yaml:"brokers"`
	TopicPrefix string   `json:"topic_prefix" yaml:"topic_prefix"`
	MaxAttempts int      `json:"max_attempts" yaml:"max_attempts"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes each event to "<prefix><topic>" keyed by the trader
// when the payload names one.
type Kafka struct {
	w      messageWriter
	prefix string
	log    *zap.Logger
}

func NewKafka(cfg KafkaConfig, log *zap.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker is required")
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            attempts,
		WriteBackoffMin:        50 * time.Millisecond,
		WriteBackoffMax:        500 * time.Millisecond,
	}
	return newKafka(w, cfg.TopicPrefix, log), nil
}

func newKafka(w messageWriter, prefix string, log *zap.Logger) *Kafka {
	return &Kafka{w: w, prefix: prefix, log: log.Named("kafka")}
}

func (k *Kafka) Publish(ctx context.Context, ev Event) error {
	msg, err := k.message(ev)
	if err != nil {
		return err
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		k.log.Error("publish failed", zap.String("topic", msg.Topic), zap.Error(err))
		return fmt.Errorf("kafka publish %s: %w", msg.Topic, err)
	}
	k.log.Debug("published", zap.String("topic", msg.Topic), zap.String("id", ev.ID))
	return nil
}

func (k *Kafka) message(ev Event) (kafka.Message, error) {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka marshal %s: %w", ev.Topic, err)
	}
	return kafka.Message{
		Topic: k.prefix + ev.Topic,
		Key:   []byte(partitionKey(ev)),
		Value: data,
		Time:  ev.Time,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.ID)},
		},
	}, nil
}

func (k *Kafka) Close() error {
	return k.w.Close()
}

func partitionKey(ev Event) string {
	switch p := ev.Payload.(type) {
	case Opened:
		return p.Trader
	case Closed:
		return p.Trader
	case Deposited:
		return p.Trader
	case Swapped:
		return p.Trader
	case PriceSet:
		return p.Asset
	}
	return ev.Topic
}
