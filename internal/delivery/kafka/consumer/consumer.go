package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka/producer"
	appErrors "github.com/vogiaan1904/ticketbottle-ticketlink/internal/errors"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/service"
	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/logger"
)

type Config struct {
	// Location is used to parse available_from in result messages.
	Location     *time.Location
	RetryMax     int
	RetryBackoff time.Duration
	// RejoinBackoff is the pause before rejoining the group after Consume fails.
	RejoinBackoff time.Duration
}

const defaultRejoinBackoff = time.Second

type handlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

type Consumer struct {
	consGr   sarama.ConsumerGroup
	handlers map[string]handlerFunc
	// Permanent failures are dead-lettered through dlq. When nil they are logged and skipped.
	dlq   producer.Producer
	tlSvc service.TicketLinkService
	rSvc  service.RuleService
	cfg   Config
	l     logger.Logger
	wg    sync.WaitGroup
}

// NewTicketingConsumer consumes the result channel and activates ticket links.
func NewTicketingConsumer(
	consGr sarama.ConsumerGroup,
	topics kafka.Topics,
	tlSvc service.TicketLinkService,
	cfg Config,
	l logger.Logger,
) *Consumer {
	c := newConsumer(consGr, cfg, l)
	c.tlSvc = tlSvc
	c.handlers[topics.AccessToken] = c.HandleTicketLinkResult

	return c
}

// NewRuleConsumer consumes the request channel and publishes one result per request.
func NewRuleConsumer(
	consGr sarama.ConsumerGroup,
	topics kafka.Topics,
	rSvc service.RuleService,
	dlq producer.Producer,
	cfg Config,
	l logger.Logger,
) *Consumer {
	c := newConsumer(consGr, cfg, l)
	c.rSvc = rSvc
	c.dlq = dlq
	c.handlers[topics.RequestLink] = c.HandleTicketLinkRequest

	return c
}

func newConsumer(consGr sarama.ConsumerGroup, cfg Config, l logger.Logger) *Consumer {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RejoinBackoff <= 0 {
		cfg.RejoinBackoff = defaultRejoinBackoff
	}

	return &Consumer{
		consGr:   consGr,
		handlers: make(map[string]handlerFunc),
		cfg:      cfg,
		l:        l,
	}
}

func (c *Consumer) Topics() []string {
	topics := make([]string, 0, len(c.handlers))
	for t := range c.handlers {
		topics = append(topics, t)
	}
	return topics
}

func (c *Consumer) Start(ctx context.Context) error {
	topics := c.Topics()
	c.wg.Go(func() {
		for {
			if err := c.consGr.Consume(ctx, topics, c); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.Start: %v", err)

				select {
				case <-ctx.Done():
				case <-time.After(c.cfg.RejoinBackoff):
				}
			}

			if ctx.Err() != nil {
				c.l.Infof(ctx, "delivery.kafka.consumer.consumer.Start: %v", ctx.Err())
				return
			}
		}
	})

	c.wg.Go(func() {
		for err := range c.consGr.Errors() {
			c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.Start: %v", err)
		}
	})

	c.l.Infof(ctx, "Consumer is consuming topics: %v", topics)
	return nil
}

func (c *Consumer) Close() error {
	if err := c.consGr.Close(); err != nil {
		return err
	}

	c.wg.Wait()
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session started")
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session ended")
	return nil
}

func (c *Consumer) ConsumeClaim(ss sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			ctx := c.l.With(ss.Context(),
				"topic", message.Topic,
				"partition", message.Partition,
				"offset", message.Offset,
			)
			if !c.handle(ctx, message) {
				// Session is ending; leave the offset so the message is redelivered.
				return nil
			}

			ss.MarkMessage(message, "")

		case <-ss.Context().Done():
			return nil
		}
	}
}

// handle runs the topic handler and reports whether the offset may be marked.
func (c *Consumer) handle(ctx context.Context, msg *sarama.ConsumerMessage) bool {
	h, ok := c.handlers[msg.Topic]
	if !ok {
		c.l.Warnf(ctx, "delivery.kafka.consumer.consumer.handle: unknown topic %s", msg.Topic)
		return true
	}

	err := c.processWithRetry(ctx, h, msg)
	switch {
	case err == nil:
		metrics.ConsumedMessagesTotal.WithLabelValues(msg.Topic, metrics.OutcomeProcessed).Inc()
		return true
	case isPermanent(err):
		c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.handle: unprocessable message: %v", err)
		c.deadLetter(ctx, msg, err)
		return true
	case ctx.Err() != nil:
		return false
	default:
		c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.handle: giving up after %d retries: %v", c.cfg.RetryMax, err)
		c.deadLetter(ctx, msg, err)
		return true
	}
}

func (c *Consumer) processWithRetry(ctx context.Context, h handlerFunc, msg *sarama.ConsumerMessage) error {
	var err error
	for attempt := 0; attempt <= c.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}

		if err = h(ctx, msg); err == nil || isPermanent(err) {
			return err
		}

		c.l.Warnf(ctx, "delivery.kafka.consumer.consumer.processWithRetry: attempt %d: %v", attempt+1, err)
	}

	return err
}

func (c *Consumer) deadLetter(ctx context.Context, msg *sarama.ConsumerMessage, cause error) {
	if c.dlq == nil {
		metrics.ConsumedMessagesTotal.WithLabelValues(msg.Topic, metrics.OutcomeError).Inc()
		return
	}

	if err := c.dlq.PublishDeadLetter(ctx, kafka.DeadLetterEvent{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       string(msg.Key),
		Payload:   string(msg.Value),
		Reason:    cause.Error(),
		FailedAt:  time.Now(),
	}); err != nil {
		metrics.ConsumedMessagesTotal.WithLabelValues(msg.Topic, metrics.OutcomeError).Inc()
		c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.deadLetter: %v", err)
		return
	}

	metrics.ConsumedMessagesTotal.WithLabelValues(msg.Topic, metrics.OutcomeDeadLettered).Inc()
}

// permanentError marks a message that will fail the same way on every attempt.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe) || errors.Is(err, appErrors.ErrInvalidRole)
}
