package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"mountpass/internal/passes/models"
)

const headerEventType = "event_type"

// KafkaPublisher produces pass events to one topic, keyed by pass id so the
// events of a pass stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects to the given seed brokers.
func NewKafkaPublisher(brokers []string, topic string, opts ...kgo.Opt) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	opts = append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}, opts...)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

// EnsureTopic creates the topic unless it already exists.
func (p *KafkaPublisher) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(p.client)
	_, err := adm.CreateTopic(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("kafka: create topic %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, entry models.OutboxEntry) error {
	record, err := newRecord(p.topic, entry)
	if err != nil {
		return err
	}
	return p.client.ProduceSync(ctx, record).FirstErr()
}

// Ping checks that at least one broker answers.
func (p *KafkaPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

func newRecord(topic string, entry models.OutboxEntry) (*kgo.Record, error) {
	payload, err := json.Marshal(entry.Event)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", entry.Event.ID, err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(entry.Event.PassID, 10)),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: headerEventType, Value: []byte(entry.Event.Type)},
		},
		Timestamp: entry.Event.OccurredAt,
	}, nil
}
