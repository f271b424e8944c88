package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaStore publishes events as JSON records keyed by request ID, so every
// outcome of one request lands on the same partition.
type KafkaStore struct {
	client *kgo.Client
	topic  string
}

// KafkaOption configures a KafkaStore.
type KafkaOption func(*kafkaConfig)

type kafkaConfig struct {
	partitions  int32
	replication int16
	extra       []kgo.Opt
}

// WithTopicLayout sets the partition count and replication factor used when
// the topic has to be created.
func WithTopicLayout(partitions int32, replication int16) KafkaOption {
	return func(c *kafkaConfig) {
		c.partitions = partitions
		c.replication = replication
	}
}

// WithClientOptions appends raw franz-go client options.
func WithClientOptions(opts ...kgo.Opt) KafkaOption {
	return func(c *kafkaConfig) {
		c.extra = append(c.extra, opts...)
	}
}

// NewKafkaStore connects to brokers and makes sure topic exists.
func NewKafkaStore(ctx context.Context, brokers []string, topic string, opts ...KafkaOption) (*KafkaStore, error) {
	cfg := kafkaConfig{partitions: 3, replication: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	clientOpts := append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordDeliveryTimeout(10 * time.Second),
	}, cfg.extra...)
	client, err := kgo.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, kadm.NewClient(client), topic, cfg.partitions, cfg.replication); err != nil {
		client.Close()
		return nil, err
	}

	return &KafkaStore{client: client, topic: topic}, nil
}

func ensureTopic(ctx context.Context, adm *kadm.Client, topic string, partitions int32, replication int16) error {
	resp, err := adm.CreateTopic(ctx, partitions, replication, nil, topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}

// Append produces event and waits for the broker acknowledgement.
func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.RequestID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
		},
		Timestamp: event.Timestamp,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Ping checks broker connectivity.
func (s *KafkaStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return fmt.Errorf("ping kafka: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *KafkaStore) Close() {
	s.client.Close()
}
