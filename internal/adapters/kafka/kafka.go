package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"zawj-chat/internal/realtime"
	"zawj-chat/pkg/logger"

	"github.com/IBM/sarama"
)

// Producer is the subset of sarama.SyncProducer the exporter uses.
type Producer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

func InitKafkaProducer(brokers []string, topic string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	// Events of one topic (a conversation or a pair) stay on one partition.
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Version = sarama.V2_0_0_0
	config.ClientID = "zawj-chat"
	config.Producer.MaxMessageBytes = 1000000

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer for topic %s: %w", topic, err)
	}
	return producer, nil
}

// EventExporter copies realtime events to a Kafka topic for downstream
// consumers (moderation, analytics).
type EventExporter struct {
	producer Producer
	topic    string
	logger   *logger.Logger
}

func NewEventExporter(producer Producer, topic string, log *logger.Logger) *EventExporter {
	return &EventExporter{producer: producer, topic: topic, logger: log}
}

func (e *EventExporter) Emit(ctx context.Context, ev realtime.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: e.topic,
		Key:   sarama.StringEncoder(ev.Topic),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("table"), Value: []byte(ev.Table)},
			{Key: []byte("type"), Value: []byte(ev.Type)},
		},
		Timestamp: ev.CommittedAt,
	}
	partition, offset, err := e.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to export event to %s: %w", e.topic, err)
	}
	e.logger.Debug("Exported event", "topic", ev.Topic, "partition", partition, "offset", offset)
	return nil
}

func (e *EventExporter) Close() error {
	return e.producer.Close()
}
