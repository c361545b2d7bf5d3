package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	kafka "github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/logger"
)

type Producer interface {
	PublishTicketLinkRequest(ctx context.Context, event kafka.TicketLinkRequestEvent) error
	PublishTicketLinkResult(ctx context.Context, event kafka.TicketLinkResultEvent) error
	PublishDeadLetter(ctx context.Context, event kafka.DeadLetterEvent) error
	Close() error
}

type implProducer struct {
	l      logger.Logger
	prod   sarama.SyncProducer
	topics kafka.Topics
}

func NewProducer(prod sarama.SyncProducer, topics kafka.Topics, l logger.Logger) Producer {
	return &implProducer{
		l:      l,
		prod:   prod,
		topics: topics,
	}
}

func (p *implProducer) PublishTicketLinkRequest(ctx context.Context, event kafka.TicketLinkRequestEvent) error {
	return p.publish(ctx, p.topics.RequestLink, event.Username, event, nil)
}

func (p *implProducer) PublishTicketLinkResult(ctx context.Context, event kafka.TicketLinkResultEvent) error {
	return p.publish(ctx, p.topics.AccessToken, event.Username, event, nil)
}

func (p *implProducer) PublishDeadLetter(ctx context.Context, event kafka.DeadLetterEvent) error {
	if event.FailedAt.IsZero() {
		event.FailedAt = time.Now()
	}

	return p.publish(ctx, p.topics.RequestLinkDeadLetter, event.Key, event, []sarama.RecordHeader{
		{
			Key:   []byte(kafka.HeaderReason),
			Value: []byte(event.Reason),
		},
	})
}

// publish sends synchronously. Messages are keyed by username so one user's
// messages stay ordered on a single partition.
func (p *implProducer) publish(ctx context.Context, topic, key string, event any, headers []sarama.RecordHeader) error {
	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.publish: %v", err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(val),
		Headers: append([]sarama.RecordHeader{
			{
				Key:   []byte(kafka.HeaderTimestamp),
				Value: []byte(time.Now().Format(time.RFC3339)),
			},
		}, headers...),
	}

	partition, offset, err := p.prod.SendMessage(msg)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.publish: topic=%s: %v", topic, err)
		return err
	}

	p.l.Debugf(ctx, "delivery.kafka.producer.publish: topic=%s partition=%d offset=%d key=%s", topic, partition, offset, key)

	return nil
}

func (p *implProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		return err
	}

	return nil
}
