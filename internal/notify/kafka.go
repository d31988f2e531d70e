package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaNotifier produces notification events to a Kafka topic, keyed by
// declaration id so each declaration's events stay ordered on one partition.
// Downstream consumers (mailer, SMS dispatcher) own actual delivery.
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
}

// NewKafkaNotifier connects to the brokers and ensures the topic exists.
func NewKafkaNotifier(ctx context.Context, brokers []string, topic string) (*KafkaNotifier, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	return &KafkaNotifier{client: client, topic: topic}, nil
}

// ensureTopic creates the notification topic when it does not exist yet.
// A conflict means another instance won the race, which is fine.
func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 3, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

func (n *KafkaNotifier) Send(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}
	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(event.DeclarationID),
		Value: value,
	}
	if err := n.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification event: %w", err)
	}
	return nil
}

// Close flushes pending records and releases the client.
func (n *KafkaNotifier) Close() {
	n.client.Close()
}
