package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/service"
	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/util"
)

func (c *Consumer) HandleTicketLinkRequest(ctx context.Context, message *sarama.ConsumerMessage) error {
	c.l.Debug(ctx, "HandleTicketLinkRequest consumed")

	var e kafka.TicketLinkRequestEvent
	if err := json.Unmarshal(message.Value, &e); err != nil {
		return permanent(fmt.Errorf("decode ticket link request: %w", err))
	}

	if e.Username == "" {
		return permanent(errors.New("ticket link request without username"))
	}

	ctx = c.l.With(ctx, "username", e.Username)
	if err := c.rSvc.ProcessTicketLinkRequest(ctx, service.TicketLinkRequestInput{
		Username: e.Username,
		Role:     e.Role,
	}); err != nil {
		return err
	}

	return nil
}

func (c *Consumer) HandleTicketLinkResult(ctx context.Context, message *sarama.ConsumerMessage) error {
	c.l.Debug(ctx, "HandleTicketLinkResult consumed")

	var e kafka.TicketLinkResultEvent
	if err := json.Unmarshal(message.Value, &e); err != nil {
		return permanent(fmt.Errorf("decode ticket link result: %w", err))
	}

	if e.Username == "" || e.AccessToken == "" {
		return permanent(errors.New("ticket link result without username or access token"))
	}

	from, err := util.ParseDateTime(e.AvailableFrom, c.cfg.Location)
	if err != nil {
		return permanent(fmt.Errorf("parse available_from %q: %w", e.AvailableFrom, err))
	}

	ctx = c.l.With(ctx, "username", e.Username)
	if err := c.tlSvc.HandleTicketLinkResult(ctx, service.TicketLinkResultInput{
		Username:      e.Username,
		AccessToken:   e.AccessToken,
		AvailableFrom: from,
	}); err != nil {
		return err
	}

	return nil
}
