package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the notifier needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes each message as one record on a topic.
type KafkaNotifier struct {
	Topic  string
	writer messageWriter
}

// NewKafkaNotifier constructs a writer compatible with kafka-go v0.4.x.
func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, fmt.Errorf("kafka: brokers and topic are required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           200 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{Topic: topic, writer: w}, nil
}

func (k *KafkaNotifier) Name() string { return "kafka" }

func (k *KafkaNotifier) Publish(ctx context.Context, message string) error {
	err := k.writer.WriteMessages(ctx, kafka.Message{
		Value: []byte(message),
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("kafka write %s: %w", k.Topic, err)
	}
	return nil
}

// Close flushes pending records and closes the writer.
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
