package eventsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/trezcool/bursar/core"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each event to the topic named after its type, keyed by the affected record id.
type KafkaPublisher struct {
	writer      kafkaWriter
	topicPrefix string
}

var _ core.EventPublisher = (*KafkaPublisher)(nil) // interface compliance check

func NewKafkaPublisher(conf *core.Config) (*KafkaPublisher, error) {
	err := vala.BeginValidation().Validate(
		vala.GreaterThan(len(conf.Kafka.Brokers), 0, "kafka brokers"),
	).Check()
	if err != nil {
		return nil, err
	}

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(conf.Kafka.Brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topicPrefix: conf.Kafka.TopicPrefix,
	}, nil
}

func (p *KafkaPublisher) topic(eventType string) string {
	if p.topicPrefix == "" {
		return eventType
	}
	return p.topicPrefix + "." + eventType
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...core.Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			return errors.Wrapf(err, "encoding %s event", evt.Type)
		}
		msgs = append(msgs, kafka.Message{
			Topic: p.topic(evt.Type),
			Key:   []byte(evt.Key),
			Value: payload,
			Time:  time.Now().UTC(),
		})
	}
	return errors.Wrap(p.writer.WriteMessages(ctx, msgs...), "writing kafka messages")
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
